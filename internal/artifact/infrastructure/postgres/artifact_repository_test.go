package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	artifact "chiller-forecast/internal/artifact/domain"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestArtifactRepository_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if !tableExists(db, defaultVersionTable) || !tableExists(db, defaultBlobTable) {
		t.Skip("artifact tables missing; run migrations")
	}

	ctx := context.Background()
	datasetID := "dataset-it"
	_, _ = db.ExecContext(ctx, "DELETE FROM artifact_versions WHERE dataset_id = $1", datasetID)
	_, _ = db.ExecContext(ctx, "DELETE FROM artifact_blobs WHERE dataset_id = $1", datasetID)

	repo := NewArtifactRepository(db, datasetID, WithRetention(2))

	if _, err := repo.Read(ctx, artifact.NameHistory); !errors.Is(err, artifact.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	for i := 1; i <= 3; i++ {
		table := artifact.NewTable("Ano", "Mês", "Consumo_kWh")
		table.Append(2024, "Janeiro", float64(i)*10.5)
		table.Append(2024, "Fevereiro", nil)
		if err := repo.Write(ctx, artifact.NameHistory, table); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	got, err := repo.Read(ctx, artifact.NameHistory)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", got.Len())
	}
	if v, _ := got.Float(0, 2); v == nil || *v != 31.5 {
		t.Fatalf("expected newest version, got %v", v)
	}
	if v, _ := got.Float(1, 2); v != nil {
		t.Fatalf("expected null cell")
	}
	if year, err := got.Int(0, 0); err != nil || year != 2024 {
		t.Fatalf("unexpected year %v %v", year, err)
	}

	versions, err := repo.Versions(ctx, artifact.NameHistory)
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if len(versions) != 2 || versions[0] != 3 || versions[1] != 2 {
		t.Fatalf("unexpected versions %v", versions)
	}

	for _, content := range []string{"%PDF-1", "%PDF-2", "%PDF-3"} {
		if err := repo.WriteBlob(ctx, artifact.BlobForecastPDF, []byte(content)); err != nil {
			t.Fatalf("write blob: %v", err)
		}
	}
	blob, err := repo.ReadBlob(ctx, artifact.BlobForecastPDF)
	if err != nil || string(blob) != "%PDF-3" {
		t.Fatalf("unexpected blob %q %v", blob, err)
	}
	blobVersions, err := repo.BlobVersions(ctx, artifact.BlobForecastPDF)
	if err != nil {
		t.Fatalf("blob versions: %v", err)
	}
	if len(blobVersions) != 2 || blobVersions[0] != 3 || blobVersions[1] != 2 {
		t.Fatalf("expected previous blob kept within retention, got %v", blobVersions)
	}
}

func TestArtifactRepositoryRequiresDataset(t *testing.T) {
	repo := NewArtifactRepository(nil, "")
	if _, err := repo.Read(context.Background(), artifact.NameHistory); err == nil {
		t.Fatalf("expected error for empty dataset id")
	}
	var werr *artifact.WriteError
	if err := repo.Write(context.Background(), artifact.NameHistory, artifact.NewTable("a")); !errors.As(err, &werr) {
		t.Fatalf("expected write error, got %v", err)
	}
	if err := repo.WriteBlob(context.Background(), artifact.BlobForecastPDF, []byte("%PDF")); !errors.As(err, &werr) {
		t.Fatalf("expected blob write error, got %v", err)
	}
	if _, err := repo.BlobVersions(context.Background(), artifact.BlobForecastPDF); err == nil {
		t.Fatalf("expected error for empty dataset id")
	}
}

func tableExists(db *sql.DB, name string) bool {
	var exists bool
	err := db.QueryRow(`SELECT EXISTS (
		SELECT 1 FROM information_schema.tables WHERE table_name = $1
	)`, name).Scan(&exists)
	return err == nil && exists
}
