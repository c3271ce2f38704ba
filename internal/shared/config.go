package shared

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultLayerURL is the hosted "points of relaxing" layer.
const DefaultLayerURL = "https://services1.arcgis.com/6677msI40mnLuuLr/arcgis/rest/services/PointsofRelaxing/FeatureServer/0"

var ErrMissingAPIKey = errors.New("ARCGIS_API_KEY is not set; an ArcGIS API key is required to reach the basemap and feature service")

type Config struct {
	AppEnv       string
	LogLevel     string
	HTTPAddr     string
	MetricsAddr  string
	APIKey       string
	LayerURL     string
	Basemap      string
	RPS          int
	Timeout      time.Duration
	RedisAddr    string
	RedisDB      int
	RedisPass    string
	MetadataTTL  time.Duration
	ViewWidth    int
	ViewHeight   int
	ShutdownWait time.Duration
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-numeric setting")
		}
		return def
	}
	c := Config{
		AppEnv:       env("APP_ENV", "prod"),
		LogLevel:     env("LOG_LEVEL", "info"),
		HTTPAddr:     env("HTTP_ADDR", ":8080"),
		MetricsAddr:  env("METRICS_ADDR", ""),
		APIKey:       env("ARCGIS_API_KEY", ""),
		LayerURL:     env("ARCGIS_LAYER_URL", DefaultLayerURL),
		Basemap:      env("BASEMAP_STYLE", "arcgis-imagery"),
		RPS:          atoi("ARCGIS_RPS", 5),
		Timeout:      time.Duration(atoi("ARCGIS_TIMEOUT_SECONDS", 20)) * time.Second,
		RedisAddr:    env("REDIS_ADDR", ""),
		RedisPass:    env("REDIS_PASSWORD", ""),
		RedisDB:      atoi("REDIS_DB", 0),
		MetadataTTL:  time.Duration(atoi("METADATA_TTL_SECONDS", 900)) * time.Second,
		ViewWidth:    atoi("VIEW_WIDTH", 800),
		ViewHeight:   atoi("VIEW_HEIGHT", 700),
		ShutdownWait: time.Duration(atoi("SHUTDOWN_WAIT_SECONDS", 10)) * time.Second,
	}
	return c
}

// Validate reports settings the application cannot start without.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
