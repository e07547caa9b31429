package statistic

import "errors"

var (
	// ErrInvalidMonth is returned when a month label cannot be resolved.
	ErrInvalidMonth = errors.New("statistic: invalid month")
	// ErrInvalidYear is returned when a year cell is missing or not an integer.
	ErrInvalidYear = errors.New("statistic: invalid year")
	// ErrInvalidEstimateType is returned for an unknown estimate classification.
	ErrInvalidEstimateType = errors.New("statistic: invalid estimate type")
	// ErrMissingColumn is returned when a persisted table lacks a required column.
	ErrMissingColumn = errors.New("statistic: missing column")
)
