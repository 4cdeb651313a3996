package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func mustAtoi64(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func mustAtoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

func logLevel() string {
	switch strings.ToLower(os.Getenv("DEBUG")) {
	case "1", "true", "yes", "on":
		return "debug"
	}
	return strings.ToLower(getenv("LOG_LEVEL", "info"))
}

func LoadConfig() (*Config, error) {
	dataDir := getenv("DATA_DIR", "./data")
	cacheDir := filepath.Join(dataDir, "cache")

	// CACHE_LIMIT is a plain byte count; 0 disables the cache.
	cacheLimit := getenv("CACHE_LIMIT", "1073741824") // default 1GB
	cfg := &Config{
		DataDir:         dataDir,
		CacheDir:        cacheDir,
		CacheLimitBytes: mustAtoi64(cacheLimit),
		EnableCache:     getenv("ENABLE_CACHE", "true") == "true",
		EnableHistory:   getenv("ENABLE_HISTORY", "true") == "true",
		Workers:         mustAtoi(getenv("WORKERS", strconv.Itoa(runtime.NumCPU()))),
		MetricsFile:     os.Getenv("METRICS_FILE"),
		LogLevel:        logLevel(),
		Output: Output{
			Codec:        getenv("OUTPUT_CODEC", "libopus"),
			Format:       os.Getenv("OUTPUT_FORMAT"),
			SampleRate:   mustAtoi(getenv("OUTPUT_SAMPLE_RATE", "48000")),
			Channels:     mustAtoi(getenv("OUTPUT_CHANNELS", "2")),
			SampleFormat: getenv("OUTPUT_SAMPLE_FORMAT", "s16"),
			BitRate:      mustAtoi64(getenv("OUTPUT_BIT_RATE", "96000")),
		},
	}
	if cfg.CacheLimitBytes <= 0 {
		cfg.EnableCache = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.EnableCache || cfg.EnableHistory {
		_ = os.MkdirAll(cfg.DataDir, 0o755)
	}
	if cfg.EnableCache {
		_ = os.MkdirAll(cfg.CacheDir, 0o755)
		_ = os.MkdirAll(filepath.Join(cfg.CacheDir, "tmp"), 0o755)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return ErrConfig("WORKERS must be a positive number")
	}
	if c.Output.Codec == "" {
		return ErrConfig("OUTPUT_CODEC required")
	}
	if c.Output.SampleRate <= 0 {
		return ErrConfig("OUTPUT_SAMPLE_RATE must be a positive number")
	}
	if c.Output.Channels != 1 && c.Output.Channels != 2 {
		return ErrConfig("OUTPUT_CHANNELS must be 1 or 2")
	}
	if c.Output.BitRate <= 0 {
		return ErrConfig("OUTPUT_BIT_RATE must be a positive number")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		return ErrConfig("LOG_LEVEL must be one of debug, info, warn, error")
	}
	return nil
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
