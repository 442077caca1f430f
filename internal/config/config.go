package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type AppConfig struct {
	Port            string
	HTTPTimeout     time.Duration
	ShutdownTimeout time.Duration

	Store StoreConfig

	// IngestInterval controls how often the scheduler ingests new daily data.
	IngestInterval time.Duration
	BackfillYears  int

	// Default trailing windows of the analysis endpoints.
	ViabilityYears   int
	PerformanceYears int

	OpenMeteo      OpenMeteoConfig
	GeocoderAPIKey string

	Log LogConfig
}

type StoreConfig struct {
	Driver string // postgres, sqlite or memory
	DSN    string
}

type OpenMeteoConfig struct {
	BaseURL     string
	Model       string
	RateLimit   float64 // requests per second
	Concurrency int
}

type LogConfig struct {
	Level  string
	Format string // json or console
}

// Load reads configuration from a .env file, if any, and the environment,
// with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &AppConfig{
		Port:           getenvDefault("PORT", "8080"),
		GeocoderAPIKey: os.Getenv("GEOCODER_API_KEY"),
		Store: StoreConfig{
			Driver: getenvDefault("STORE_DRIVER", "sqlite"),
			DSN:    getenvDefault("DATABASE_URL", "wine-regions.db"),
		},
		OpenMeteo: OpenMeteoConfig{
			BaseURL: getenvDefault("OPENMETEO_BASE_URL", "https://climate-api.open-meteo.com/v1/climate"),
			Model:   getenvDefault("OPENMETEO_MODEL", "MRI_AGCM3_2_S"),
		},
		Log: LogConfig{
			Level:  getenvDefault("LOG_LEVEL", "info"),
			Format: getenvDefault("LOG_FORMAT", "json"),
		},
	}

	var err error
	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getenvDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.IngestInterval, err = getenvDuration("INGEST_INTERVAL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.BackfillYears, err = getenvPositiveInt("BACKFILL_YEARS", 1); err != nil {
		return nil, err
	}
	if cfg.ViabilityYears, err = getenvPositiveInt("VIABILITY_YEARS", 30); err != nil {
		return nil, err
	}
	if cfg.PerformanceYears, err = getenvPositiveInt("PERFORMANCE_YEARS", 10); err != nil {
		return nil, err
	}
	if cfg.OpenMeteo.Concurrency, err = getenvPositiveInt("OPENMETEO_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.OpenMeteo.RateLimit, err = getenvFloat("OPENMETEO_RATE_LIMIT", 5); err != nil {
		return nil, err
	}

	switch cfg.Store.Driver {
	case "postgres", "sqlite", "memory":
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q: must be postgres, sqlite or memory", cfg.Store.Driver)
	}
	switch cfg.Log.Format {
	case "json", "console":
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT %q: must be json or console", cfg.Log.Format)
	}

	return cfg, nil
}

// InitLogger builds the zap logger described by cfg and installs it as the
// global logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func getenvPositiveInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return n, nil
}

func getenvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if f <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return f, nil
}
