package enrichment

import "errors"

var (
	// ErrMissingColumn is returned when an enrichment table lacks a required column.
	ErrMissingColumn = errors.New("enrichment: missing column")
	// ErrNoData is returned when a table has no usable row.
	ErrNoData = errors.New("enrichment: no usable rows")
)
