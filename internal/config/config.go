package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store drivers.
const (
	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// Sources lists the input files of a run, relative to BaseDir or SourceURL.
type Sources struct {
	Chiller     []string `yaml:"chiller"`
	Temperature []string `yaml:"temperature"`
	Prices      string   `yaml:"prices"`
	Emission    string   `yaml:"emission"`
}

// StoreConfig selects where artifacts are persisted.
type StoreConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ScheduleConfig defines the daily run time in serve mode.
type ScheduleConfig struct {
	DailyAt string `yaml:"daily_at"`
}

// AlertConfig defines the webhook notifications.
type AlertConfig struct {
	WebhookURL string  `yaml:"webhook_url"`
	BiasPct    float64 `yaml:"bias_pct"`
	ReportURL  string  `yaml:"report_url"`
}

// Config is the full service configuration.
type Config struct {
	Dataset         string         `yaml:"dataset"`
	BaseDir         string         `yaml:"base_dir"`
	OutputDir       string         `yaml:"output_dir"`
	BackupDir       string         `yaml:"backup_dir"`
	BackupRetention int            `yaml:"backup_retention"`
	OnThresholdKW   float64        `yaml:"on_threshold_kw"`
	Timezone        string         `yaml:"timezone"`
	SynonymsPath    string         `yaml:"synonyms_path"`
	Sources         Sources        `yaml:"sources"`
	SourceURL       string         `yaml:"source_url"`
	SourceToken     string         `yaml:"source_token"`
	CacheDir        string         `yaml:"cache_dir"`
	Store           StoreConfig    `yaml:"store"`
	MetricsTextfile string         `yaml:"metrics_textfile"`
	HTTPAddr        string         `yaml:"http_addr"`
	JWTSecret       string         `yaml:"jwt_secret"`
	Schedule        ScheduleConfig `yaml:"schedule"`
	Alert           AlertConfig    `yaml:"alert"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Dataset:         "chiller",
		BaseDir:         ".",
		OutputDir:       "output",
		BackupRetention: 5,
		OnThresholdKW:   0,
		Timezone:        "UTC",
		Sources: Sources{
			Chiller: []string{"chiller.csv"},
		},
		Store:    StoreConfig{Driver: DriverFile},
		HTTPAddr: ":8080",
		Schedule: ScheduleConfig{DailyAt: "03:00"},
	}
}

// Load reads the yaml file at path (if any) over the defaults and applies environment
// overrides. An empty path falls back to CHILLER_CONFIG.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("CHILLER_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Dataset = getenvDefault("CHILLER_DATASET", cfg.Dataset)
	cfg.BaseDir = getenvDefault("CHILLER_BASE_DIR", cfg.BaseDir)
	cfg.OutputDir = getenvDefault("CHILLER_OUTPUT_DIR", cfg.OutputDir)
	cfg.BackupDir = getenvDefault("CHILLER_BACKUP_DIR", cfg.BackupDir)
	cfg.BackupRetention = getenvIntDefault("CHILLER_BACKUP_RETENTION", cfg.BackupRetention)
	cfg.OnThresholdKW = getenvFloatDefault("CHILLER_ON_THRESHOLD_KW", cfg.OnThresholdKW)
	cfg.Timezone = getenvDefault("CHILLER_TIMEZONE", cfg.Timezone)
	cfg.SynonymsPath = getenvDefault("CHILLER_SYNONYMS", cfg.SynonymsPath)
	if chiller := splitCSV(os.Getenv("CHILLER_SOURCES")); len(chiller) > 0 {
		cfg.Sources.Chiller = chiller
	}
	if temps := splitCSV(os.Getenv("CHILLER_TEMPERATURE_SOURCES")); len(temps) > 0 {
		cfg.Sources.Temperature = temps
	}
	cfg.Sources.Prices = getenvDefault("CHILLER_PRICES_SOURCE", cfg.Sources.Prices)
	cfg.Sources.Emission = getenvDefault("CHILLER_EMISSION_SOURCE", cfg.Sources.Emission)
	cfg.SourceURL = getenvDefault("CHILLER_SOURCE_URL", cfg.SourceURL)
	cfg.SourceToken = getenvDefault("CHILLER_SOURCE_TOKEN", cfg.SourceToken)
	cfg.CacheDir = getenvDefault("CHILLER_CACHE_DIR", cfg.CacheDir)
	cfg.Store.Driver = getenvDefault("CHILLER_STORE", cfg.Store.Driver)
	cfg.Store.DSN = getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", cfg.Store.DSN))
	cfg.MetricsTextfile = getenvDefault("CHILLER_METRICS_TEXTFILE", cfg.MetricsTextfile)
	cfg.HTTPAddr = getenvDefault("HTTP_ADDR", cfg.HTTPAddr)
	cfg.JWTSecret = getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", cfg.JWTSecret))
	cfg.Schedule.DailyAt = getenvDefault("CHILLER_DAILY_AT", cfg.Schedule.DailyAt)
	cfg.Alert.WebhookURL = getenvDefault("CHILLER_WEBHOOK_URL", cfg.Alert.WebhookURL)
	cfg.Alert.BiasPct = getenvFloatDefault("CHILLER_BIAS_ALERT_PCT", cfg.Alert.BiasPct)
	cfg.Alert.ReportURL = getenvDefault("CHILLER_REPORT_URL", cfg.Alert.ReportURL)
}

// Validate checks the settings a run cannot start without.
func (c Config) Validate() error {
	if len(c.Sources.Chiller) == 0 {
		return errors.New("config: at least one chiller source required")
	}
	if c.OutputDir == "" && c.Store.Driver == DriverFile {
		return errors.New("config: output dir required")
	}
	switch c.Store.Driver {
	case DriverFile:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return errors.New("config: DATABASE_URL or PG_DSN is required for the postgres store")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	if c.BackupRetention < 1 {
		return errors.New("config: backup retention must be positive")
	}
	if c.OnThresholdKW < 0 {
		return errors.New("config: on threshold must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the configured time zone; empty means UTC.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// BackupPath returns the backup directory, defaulting to <output>/_backup.
func (c Config) BackupPath() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}
	return filepath.Join(c.OutputDir, "_backup")
}

// CachePath returns the download cache directory, defaulting to <base>/_cache.
func (c Config) CachePath() string {
	if c.CacheDir != "" {
		return c.CacheDir
	}
	return filepath.Join(c.BaseDir, "_cache")
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
