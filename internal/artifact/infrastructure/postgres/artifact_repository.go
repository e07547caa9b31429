package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	artifact "chiller-forecast/internal/artifact/domain"
)

const (
	defaultVersionTable = "artifact_versions"
	defaultBlobTable    = "artifact_blobs"
	defaultRetention    = 5
)

// ArtifactRepository keeps versioned artifacts in Postgres. It is dataset-scoped: all
// read/write operations are bound to one dataset id. Each write adds a version and prunes
// versions beyond the retention, so the previous versions play the role of backups.
type ArtifactRepository struct {
	db        *sql.DB
	table     string
	blobTable string
	datasetID string
	retention int
}

// NewArtifactRepository creates a repository using the default table names.
func NewArtifactRepository(db *sql.DB, datasetID string, opts ...RepositoryOption) *ArtifactRepository {
	repo := &ArtifactRepository{
		db:        db,
		table:     defaultVersionTable,
		blobTable: defaultBlobTable,
		datasetID: datasetID,
		retention: defaultRetention,
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// RepositoryOption configures the repository.
type RepositoryOption func(*ArtifactRepository)

// WithTable overrides the version table name.
func WithTable(table string) RepositoryOption {
	return func(repo *ArtifactRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// WithBlobTable overrides the blob table name.
func WithBlobTable(table string) RepositoryOption {
	return func(repo *ArtifactRepository) {
		if table != "" {
			repo.blobTable = table
		}
	}
}

// WithRetention sets how many versions are kept per artifact, the current one included.
func WithRetention(n int) RepositoryOption {
	return func(repo *ArtifactRepository) {
		if n > 0 {
			repo.retention = n
		}
	}
}

// Read loads the newest version of a table artifact.
func (r *ArtifactRepository) Read(ctx context.Context, name string) (artifact.Table, error) {
	datasetID, err := r.resolveDatasetID()
	if err != nil {
		return artifact.Table{}, err
	}
	if name == "" {
		return artifact.Table{}, artifact.ErrInvalidName
	}

	query := fmt.Sprintf(`
SELECT
	columns,
	rows
FROM %s
WHERE dataset_id = $1
	AND name = $2
ORDER BY version DESC
LIMIT 1`, r.table)

	table, err := scanTable(r.db.QueryRowContext(ctx, query, datasetID, name))
	if errors.Is(err, sql.ErrNoRows) {
		return artifact.Table{}, artifact.ErrNotFound
	}
	if err != nil {
		return artifact.Table{}, err
	}
	return table, nil
}

// Versions returns the stored version numbers of a table artifact, newest first.
func (r *ArtifactRepository) Versions(ctx context.Context, name string) ([]int64, error) {
	return r.versions(ctx, r.table, name)
}

// BlobVersions returns the stored version numbers of a binary artifact, newest first.
func (r *ArtifactRepository) BlobVersions(ctx context.Context, name string) ([]int64, error) {
	return r.versions(ctx, r.blobTable, name)
}

func (r *ArtifactRepository) versions(ctx context.Context, table, name string) ([]int64, error) {
	datasetID, err := r.resolveDatasetID()
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
SELECT version
FROM %s
WHERE dataset_id = $1
	AND name = $2
ORDER BY version DESC`, table)

	rows, err := r.db.QueryContext(ctx, query, datasetID, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []int64
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		result = append(result, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Write stores a new version of a table artifact in one transaction.
func (r *ArtifactRepository) Write(ctx context.Context, name string, table artifact.Table) error {
	if err := r.write(ctx, name, table); err != nil {
		return &artifact.WriteError{Name: name, Err: err}
	}
	return nil
}

func (r *ArtifactRepository) write(ctx context.Context, name string, table artifact.Table) error {
	datasetID, err := r.resolveDatasetID()
	if err != nil {
		return err
	}
	if name == "" {
		return artifact.ErrInvalidName
	}
	columns, err := json.Marshal(table.Columns)
	if err != nil {
		return err
	}
	rows, err := json.Marshal(encodeRows(table.Rows))
	if err != nil {
		return err
	}

	insert := fmt.Sprintf(`
INSERT INTO %s (
	dataset_id,
	name,
	version,
	columns,
	rows,
	row_count
)
SELECT $1, $2, COALESCE(MAX(version), 0) + 1, $3, $4, $5
FROM %s
WHERE dataset_id = $1
	AND name = $2`, r.table, r.table)

	return r.insertVersion(ctx, r.table, name, insert, datasetID, name, columns, rows, table.Len())
}

// insertVersion runs insert and prunes versions of name beyond the retention in one
// transaction.
func (r *ArtifactRepository) insertVersion(ctx context.Context, table, name, insert string, args ...any) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
		return err
	}

	prune := fmt.Sprintf(`
DELETE FROM %s
WHERE dataset_id = $1
	AND name = $2
	AND version <= (
		SELECT MAX(version) - $3 FROM %s WHERE dataset_id = $1 AND name = $2
	)`, table, table)

	if _, err := tx.ExecContext(ctx, prune, r.datasetID, name, r.retention); err != nil {
		return err
	}
	return tx.Commit()
}

// ReadBlob loads the newest version of a binary artifact.
func (r *ArtifactRepository) ReadBlob(ctx context.Context, name string) ([]byte, error) {
	datasetID, err := r.resolveDatasetID()
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
SELECT content
FROM %s
WHERE dataset_id = $1
	AND name = $2
ORDER BY version DESC
LIMIT 1`, r.blobTable)

	var content []byte
	err = r.db.QueryRowContext(ctx, query, datasetID, name).Scan(&content)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, artifact.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return content, nil
}

// WriteBlob stores a new version of a binary artifact and prunes versions beyond the
// retention, like Write.
func (r *ArtifactRepository) WriteBlob(ctx context.Context, name string, data []byte) error {
	datasetID, err := r.resolveDatasetID()
	if err != nil {
		return &artifact.WriteError{Name: name, Err: err}
	}
	if name == "" {
		return &artifact.WriteError{Name: name, Err: artifact.ErrInvalidName}
	}
	if data == nil {
		data = []byte{}
	}

	insert := fmt.Sprintf(`
INSERT INTO %s (
	dataset_id,
	name,
	version,
	content
)
SELECT $1, $2, COALESCE(MAX(version), 0) + 1, $3
FROM %s
WHERE dataset_id = $1
	AND name = $2`, r.blobTable, r.blobTable)

	if err := r.insertVersion(ctx, r.blobTable, name, insert, datasetID, name, data); err != nil {
		return &artifact.WriteError{Name: name, Err: err}
	}
	return nil
}

func (r *ArtifactRepository) resolveDatasetID() (string, error) {
	if r.datasetID == "" {
		return "", errors.New("artifact repo: empty dataset id")
	}
	return r.datasetID, nil
}

// encodeRows keeps cell types through JSON: numbers stay numbers and nil becomes null.
func encodeRows(rows [][]any) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		cells := make([]any, len(row))
		for j, cell := range row {
			switch v := cell.(type) {
			case nil, string, float64, int:
				cells[j] = v
			default:
				cells[j] = fmt.Sprint(v)
			}
		}
		out[i] = cells
	}
	return out
}

func scanTable(scanner interface{ Scan(dest ...any) error }) (artifact.Table, error) {
	var (
		columnsJSON []byte
		rowsJSON    []byte
	)
	if err := scanner.Scan(&columnsJSON, &rowsJSON); err != nil {
		return artifact.Table{}, err
	}

	var table artifact.Table
	if err := json.Unmarshal(columnsJSON, &table.Columns); err != nil {
		return artifact.Table{}, fmt.Errorf("artifact repo: decode columns: %w", err)
	}
	if err := json.Unmarshal(rowsJSON, &table.Rows); err != nil {
		return artifact.Table{}, fmt.Errorf("artifact repo: decode rows: %w", err)
	}
	return table, nil
}

var _ artifact.Repository = (*ArtifactRepository)(nil)
