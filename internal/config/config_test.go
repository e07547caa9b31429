package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CHILLER_CONFIG", "")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Driver != DriverFile || cfg.BackupRetention != 5 || cfg.OnThresholdKW != 0 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.BackupPath() != filepath.Join("output", "_backup") {
		t.Fatalf("unexpected backup path %q", cfg.BackupPath())
	}
}

func TestLoadYAMLWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chiller.yaml")
	content := `
dataset: plant-a
output_dir: /data/out
backup_retention: 3
on_threshold_kw: 2.5
timezone: America/Sao_Paulo
sources:
  chiller: [a.csv, b.xlsx]
  prices: precos.xlsx
schedule:
  daily_at: "04:30"
alert:
  bias_pct: 10
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CHILLER_BIAS_ALERT_PCT", "12.5")
	t.Setenv("CHILLER_TEMPERATURE_SOURCES", "t1.csv, t2.csv")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dataset != "plant-a" || cfg.BackupRetention != 3 || cfg.OnThresholdKW != 2.5 {
		t.Fatalf("yaml not applied: %+v", cfg)
	}
	if len(cfg.Sources.Chiller) != 2 || cfg.Sources.Prices != "precos.xlsx" {
		t.Fatalf("unexpected sources: %+v", cfg.Sources)
	}
	if len(cfg.Sources.Temperature) != 2 || cfg.Sources.Temperature[1] != "t2.csv" {
		t.Fatalf("env temperature override not applied: %v", cfg.Sources.Temperature)
	}
	if cfg.Alert.BiasPct != 12.5 || cfg.Schedule.DailyAt != "04:30" {
		t.Fatalf("unexpected alert/schedule: %+v %+v", cfg.Alert, cfg.Schedule)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "America/Sao_Paulo" {
		t.Fatalf("unexpected location %v err=%v", loc, err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no chiller", func(c *Config) { c.Sources.Chiller = nil }},
		{"postgres without dsn", func(c *Config) { c.Store = StoreConfig{Driver: DriverPostgres} }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "s3" }},
		{"retention", func(c *Config) { c.BackupRetention = 0 }},
		{"timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
