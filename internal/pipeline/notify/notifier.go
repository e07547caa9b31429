package notify

import "context"

// Alert kinds.
const (
	KindBias      = "bias"
	KindRunFailed = "run_failed"
)

// AlertMessage represents a notification payload.
type AlertMessage struct {
	Kind              string            `json:"kind"`
	Dataset           string            `json:"dataset"`
	RunID             string            `json:"run_id"`
	GlobalBiasPct     *float64          `json:"global_bias_pct,omitempty"`
	ThresholdPct      float64           `json:"threshold_pct,omitempty"`
	Error             string            `json:"error,omitempty"`
	ReportURL         string            `json:"report_url,omitempty"`
	Summary           map[string]any    `json:"summary,omitempty"`
	RecommendedAction string            `json:"recommended_action,omitempty"`
	Meta              map[string]string `json:"meta,omitempty"`
}

// Notifier sends notifications.
type Notifier interface {
	Notify(ctx context.Context, msg AlertMessage) error
}
