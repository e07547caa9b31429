package artifact

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an artifact was never written.
	ErrNotFound = errors.New("artifact: not found")
	// ErrMissingColumn is returned when a stored table lacks an expected column.
	ErrMissingColumn = errors.New("artifact: missing column")
	// ErrInvalidCell is returned when a stored cell cannot be converted.
	ErrInvalidCell = errors.New("artifact: invalid cell")
	// ErrInvalidName is returned for an empty or path-like artifact name.
	ErrInvalidName = errors.New("artifact: invalid name")
)

// WriteError reports that an artifact could not be persisted. The previous version is intact.
type WriteError struct {
	Name string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("artifact: write %s: %v", e.Name, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
