package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebhookNotifierPostsText(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bias := 14.256
	err := NewWebhookNotifier(srv.URL).Notify(context.Background(), AlertMessage{
		Kind:          KindBias,
		Dataset:       "plant-a",
		RunID:         "run-20240310",
		GlobalBiasPct: &bias,
		ThresholdPct:  10,
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if got.MsgType != "text" {
		t.Fatalf("unexpected msgtype %q", got.MsgType)
	}
	for _, want := range []string{"Bias Alert", "Dataset: plant-a", "Global bias: 14.26% (threshold 10.00%)"} {
		if !strings.Contains(got.Text.Content, want) {
			t.Fatalf("missing %q in %q", want, got.Text.Content)
		}
	}
}

func TestWebhookNotifierErrors(t *testing.T) {
	if err := NewWebhookNotifier("").Notify(context.Background(), AlertMessage{}); err == nil {
		t.Fatalf("expected error for empty url")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	if err := NewWebhookNotifier(srv.URL).Notify(context.Background(), AlertMessage{Kind: KindRunFailed}); err == nil {
		t.Fatalf("expected error for non-2xx")
	}
}
