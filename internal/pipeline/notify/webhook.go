package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// WebhookNotifier sends alerts via webhook.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

type webhookPayload struct {
	MsgType string      `json:"msgtype"`
	Text    webhookText `json:"text"`
}

type webhookText struct {
	Content string `json:"content"`
}

// NewWebhookNotifier constructs a notifier.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify sends an alert to webhook.
func (n *WebhookNotifier) Notify(ctx context.Context, msg AlertMessage) error {
	if n == nil || n.url == "" {
		return errors.New("webhook notifier: empty url")
	}
	payload := webhookPayload{
		MsgType: "text",
		Text:    webhookText{Content: formatAlertMessage(msg)},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook notifier: status %d", resp.StatusCode)
	}
	return nil
}

func formatAlertMessage(msg AlertMessage) string {
	var b strings.Builder
	switch msg.Kind {
	case KindBias:
		b.WriteString("[Chiller Forecast Bias Alert]\n")
	case KindRunFailed:
		b.WriteString("[Chiller Forecast Run Failed]\n")
	default:
		b.WriteString("[Chiller Forecast Alert]\n")
	}
	if msg.Dataset != "" {
		fmt.Fprintf(&b, "Dataset: %s\n", msg.Dataset)
	}
	if msg.RunID != "" {
		fmt.Fprintf(&b, "Run: %s\n", msg.RunID)
	}
	if msg.GlobalBiasPct != nil {
		fmt.Fprintf(&b, "Global bias: %.2f%% (threshold %.2f%%)\n", *msg.GlobalBiasPct, msg.ThresholdPct)
	}
	if msg.Error != "" {
		fmt.Fprintf(&b, "Error: %s\n", msg.Error)
	}
	if msg.ReportURL != "" {
		fmt.Fprintf(&b, "Report URL: %s\n", msg.ReportURL)
	}
	if msg.RecommendedAction != "" {
		fmt.Fprintf(&b, "Suggested: %s\n", msg.RecommendedAction)
	}
	if len(msg.Summary) > 0 {
		if raw, err := json.Marshal(msg.Summary); err == nil {
			fmt.Fprintf(&b, "Summary: %s\n", string(raw))
		}
	}
	if len(msg.Meta) > 0 {
		keys := make([]string, 0, len(msg.Meta))
		for k := range msg.Meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "%s: %s\n", k, msg.Meta[k])
		}
	}
	return strings.TrimSpace(b.String())
}
