package telemetry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingRequiredColumn is returned when no electric power column can be resolved.
	ErrMissingRequiredColumn = errors.New("telemetry: missing required column")
	// ErrEmptyExport is returned for an export without data rows.
	ErrEmptyExport = errors.New("telemetry: empty export")
	// ErrUnsupportedFormat is returned for an unknown source file extension.
	ErrUnsupportedFormat = errors.New("telemetry: unsupported format")
)

// MissingColumnError reports which field could not be resolved and the headers seen.
type MissingColumnError struct {
	Field   string
	Headers []string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("telemetry: missing required column %s (headers: %s)", e.Field, strings.Join(e.Headers, ", "))
}

// Unwrap allows errors.Is(err, ErrMissingRequiredColumn).
func (e *MissingColumnError) Unwrap() error { return ErrMissingRequiredColumn }
