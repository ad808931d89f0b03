package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/02loveslollipop/ldas-malaria-viewer/services/api/analysis"
	"github.com/02loveslollipop/ldas-malaria-viewer/services/api/dataset"
)

const (
	SourceCSV      = "csv"
	SourcePostgres = "postgres"
)

// Config holds environment-driven settings for the viewer API.
type Config struct {
	DatasetSource string
	DatasetPath   string
	DatabaseURL   string

	GeometryPath         string
	GeometryIDProperty   string
	GeometryNameProperty string
	GeometryIDPad        int

	Port            int
	BearerToken     string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	DefaultSpecies      string
	Window              analysis.Window
	ShiftOrder          analysis.ShiftOrder
	CorrelationCacheTTL time.Duration
	ChoroplethClasses   int
}

// Load reads configuration from environment variables (optionally .env).
func Load() (Config, error) {
	_ = godotenv.Load() // ignore missing file

	cfg := Config{
		DatasetSource:        SourceCSV,
		GeometryIDProperty:   "id",
		GeometryNameProperty: "name",
		Port:                 8080,
		LogLevel:             "info",
		LogFormat:            "json",
		ShutdownTimeout:      10 * time.Second,
		DefaultSpecies:       analysis.DefaultSpecies,
		Window:               analysis.DefaultWindow(),
		ShiftOrder:           analysis.ShiftThenWindow,
		CorrelationCacheTTL:  10 * time.Minute,
		ChoroplethClasses:    5,
	}

	if v := env("DATASET_SOURCE"); v != "" {
		cfg.DatasetSource = strings.ToLower(v)
	}
	cfg.DatasetPath = env("DATASET_PATH")
	cfg.DatabaseURL = env("DATABASE_URL")
	cfg.GeometryPath = env("GEOMETRY_PATH")

	switch cfg.DatasetSource {
	case SourceCSV:
		if cfg.DatasetPath == "" {
			return cfg, errors.New("DATASET_PATH is required when DATASET_SOURCE=csv")
		}
		if cfg.GeometryPath == "" {
			return cfg, errors.New("GEOMETRY_PATH is required when DATASET_SOURCE=csv")
		}
	case SourcePostgres:
		if cfg.DatabaseURL == "" {
			return cfg, errors.New("DATABASE_URL is required when DATASET_SOURCE=postgres")
		}
	default:
		return cfg, fmt.Errorf("invalid DATASET_SOURCE: %s", cfg.DatasetSource)
	}

	if v := env("GEOMETRY_ID_PROPERTY"); v != "" {
		cfg.GeometryIDProperty = v
	}
	if v := env("GEOMETRY_NAME_PROPERTY"); v != "" {
		cfg.GeometryNameProperty = v
	}
	if v := env("GEOMETRY_ID_PAD"); v != "" {
		pad, err := strconv.Atoi(v)
		if err != nil || pad < 0 {
			return cfg, fmt.Errorf("invalid GEOMETRY_ID_PAD: %s", v)
		}
		cfg.GeometryIDPad = pad
	}

	if portStr := env("PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid PORT: %s", portStr)
		}
	} else if portStr := env("API_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil && port > 0 {
			cfg.Port = port
		} else {
			return cfg, fmt.Errorf("invalid API_PORT: %s", portStr)
		}
	}

	cfg.BearerToken = env("API_BEARER_TOKEN")

	if v := env("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := env("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	if v := env("SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("invalid SHUTDOWN_TIMEOUT: %s", v)
		}
		cfg.ShutdownTimeout = d
	}

	if v := env("DEFAULT_SPECIES"); v != "" {
		cfg.DefaultSpecies = v
	}

	if v := env("WINDOW_START"); v != "" {
		t, err := dataset.ParseDate(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid WINDOW_START: %s", v)
		}
		cfg.Window.Start = t
	}
	if v := env("WINDOW_END"); v != "" {
		t, err := dataset.ParseDate(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid WINDOW_END: %s", v)
		}
		cfg.Window.End = t
	}
	if cfg.Window.End.Before(cfg.Window.Start) {
		return cfg, errors.New("WINDOW_END must not be before WINDOW_START")
	}

	if v := env("SHIFT_ORDER"); v != "" {
		order, err := analysis.ParseShiftOrder(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid SHIFT_ORDER: %s", v)
		}
		cfg.ShiftOrder = order
	}

	if v := env("CORRELATION_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("invalid CORRELATION_CACHE_TTL: %s", v)
		}
		cfg.CorrelationCacheTTL = d
	}

	if v := env("CHOROPLETH_CLASSES"); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil || k < 1 || k > 10 {
			return cfg, fmt.Errorf("invalid CHOROPLETH_CLASSES: %s", v)
		}
		cfg.ChoroplethClasses = k
	}

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// ListenAddr returns the host:port string for the HTTP server.
func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}
