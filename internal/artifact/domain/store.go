package artifact

import "context"

// Artifact names produced by the pipeline.
const (
	NameSamples       = "chiller_samples"
	NameRawSeparated  = "chiller_raw_separated"
	NameHistory       = "monthly_history"
	NameEstimates     = "consumption_estimates"
	NameAccuracy      = "accuracy_ledger"
	BlobForecastPDF   = "forecast_report.pdf"
	BlobForecastExcel = "forecast_workbook.xlsx"
)

// Store persists named tables. Write keeps the previous version recoverable and never
// leaves a partially written table behind.
type Store interface {
	Read(ctx context.Context, name string) (Table, error)
	Write(ctx context.Context, name string, table Table) error
}

// BlobStore persists named binary documents with the same guarantees as Store.
type BlobStore interface {
	ReadBlob(ctx context.Context, name string) ([]byte, error)
	WriteBlob(ctx context.Context, name string, data []byte) error
}

// Repository is a Store that also keeps blobs.
type Repository interface {
	Store
	BlobStore
}
