package metrics

import (
	"database/sql"
	"errors"
	"log"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
)

// RegisterStoreMetrics exposes the number of stored artifact versions of a Postgres store.
func RegisterStoreMetrics(reg prometheus.Registerer, db *sql.DB, logger *log.Logger) {
	if reg == nil || db == nil {
		return
	}
	reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "artifact_versions_stored",
			Help: "Artifact versions kept in the database",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM artifact_versions")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}

// WriteTextfile writes the gathered metrics in the node-exporter textfile format.
// An empty path is a no-op.
func WriteTextfile(g prometheus.Gatherer, path string) error {
	if path == "" {
		return nil
	}
	if g == nil {
		return errors.New("metrics: nil gatherer")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return prometheus.WriteToTextfile(path, g)
}
