package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed thresholds.yaml
var thresholdsYAML []byte

type Config struct {
	Extractor  ExtractorConfig
	Database   DatabaseConfig
	Gallery    GalleryConfig
	Thresholds ThresholdsConfig
}

type ExtractorConfig struct {
	URL            string // defaults to http://localhost:8000
	TimeoutSeconds int    // per-call timeout for the face extractor (default 10)
	MaxImageSize   int    // longest image side sent to the extractor (default 1280)
}

type DatabaseConfig struct {
	URL                 string // PostgreSQL connection URL; empty runs in memory-only mode
	MaxOpenConns        int    // Maximum open connections (default 25)
	MaxIdleConns        int    // Maximum idle connections (default 5)
	StoreTimeoutSeconds int    // per-call timeout for store reads/writes (default 5)
}

type GalleryConfig struct {
	Path string // JSON gallery file; used when no database is configured
	Dim  int    // embedding dimension (default 128)
}

// ThresholdsConfig holds the tunable detection parameters. Defaults come from
// the embedded thresholds.yaml; individual values can be overridden via env.
type ThresholdsConfig struct {
	Match struct {
		Threshold float64 `yaml:"threshold"`
	} `yaml:"match"`
	Liveness struct {
		MovementThreshold float64 `yaml:"movement_threshold"`
		BlinkThreshold    float64 `yaml:"blink_threshold"`
		RequiredBlinks    int     `yaml:"required_blinks"`
		// DisableMovement forces the blink or combined strategy, for
		// deployments where frame differencing is useless (single-shot
		// cameras). Env-only, no yaml default.
		DisableMovement bool `yaml:"-"`
	} `yaml:"liveness"`
	Session struct {
		MinFrames     int `yaml:"min_frames"`
		WindowSeconds int `yaml:"window_seconds"`
	} `yaml:"session"`
	Guard struct {
		MaxFailures       int `yaml:"max_failures"`
		WindowMinutes     int `yaml:"window_minutes"`
		BlockMinutes      int `yaml:"block_minutes"`
		RequestsPerMinute int `yaml:"requests_per_minute"`
		Burst             int `yaml:"burst"`
	} `yaml:"guard"`
}

// envStr reads an environment variable, returning the default when unset.
func envStr(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func Load() *Config {
	var thresholds ThresholdsConfig
	if err := yaml.Unmarshal(thresholdsYAML, &thresholds); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded thresholds.yaml: " + err.Error())
	}

	thresholds.Match.Threshold = envFloat("MATCH_THRESHOLD", thresholds.Match.Threshold)
	thresholds.Liveness.MovementThreshold = envFloat("MOVEMENT_THRESHOLD", thresholds.Liveness.MovementThreshold)
	thresholds.Liveness.BlinkThreshold = envFloat("BLINK_THRESHOLD", thresholds.Liveness.BlinkThreshold)
	thresholds.Liveness.RequiredBlinks = envInt("REQUIRED_BLINKS", thresholds.Liveness.RequiredBlinks)
	thresholds.Liveness.DisableMovement = os.Getenv("LIVENESS_DISABLE_MOVEMENT") == "true"
	thresholds.Session.MinFrames = envInt("SESSION_MIN_FRAMES", thresholds.Session.MinFrames)
	thresholds.Session.WindowSeconds = envInt("SESSION_WINDOW_SECONDS", thresholds.Session.WindowSeconds)
	thresholds.Guard.MaxFailures = envInt("GUARD_MAX_FAILURES", thresholds.Guard.MaxFailures)
	thresholds.Guard.WindowMinutes = envInt("GUARD_WINDOW_MINUTES", thresholds.Guard.WindowMinutes)
	thresholds.Guard.BlockMinutes = envInt("GUARD_BLOCK_MINUTES", thresholds.Guard.BlockMinutes)
	thresholds.Guard.RequestsPerMinute = envInt("GUARD_REQUESTS_PER_MINUTE", thresholds.Guard.RequestsPerMinute)
	thresholds.Guard.Burst = envInt("GUARD_BURST", thresholds.Guard.Burst)

	return &Config{
		Extractor: ExtractorConfig{
			URL:            envStr("EXTRACTOR_URL", "http://localhost:8000"),
			TimeoutSeconds: envInt("EXTRACTOR_TIMEOUT_SECONDS", 10),
			MaxImageSize:   envInt("EXTRACTOR_MAX_IMAGE_SIZE", 1280),
		},
		Database: DatabaseConfig{
			URL:                 os.Getenv("DATABASE_URL"),
			MaxOpenConns:        envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:        envInt("DATABASE_MAX_IDLE_CONNS", 5),
			StoreTimeoutSeconds: envInt("STORE_TIMEOUT_SECONDS", 5),
		},
		Gallery: GalleryConfig{
			Path: os.Getenv("GALLERY_PATH"),
			Dim:  envInt("GALLERY_DIM", 128),
		},
		Thresholds: thresholds,
	}
}
