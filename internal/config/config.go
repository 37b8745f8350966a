package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

// Mode selects what RequestTiles does with a registry miss.
type Mode string

const (
	// ModeWeb fetches missing tiles over HTTP and writes through to disk.
	ModeWeb Mode = "web"
	// ModeLocalOnly never touches the network: a disk miss is a hole.
	ModeLocalOnly Mode = "local-only"
	// ModeDummy dispatches no work at all; every miss stays Pending forever.
	ModeDummy Mode = "dummy"
)

type Config struct {
	Port              int
	CacheRoot         string
	Mode              Mode
	URLTemplate       string
	RasterURLTemplate string
	WorkerCount       int
	VipsMaxCacheMB    int
	VipsConcurrency   int
	LogLevel          string
}

func Load() (*Config, error) {
	cacheRoot := getEnv("CACHE_ROOT", "/data/tiles")
	mode := Mode(getEnv("TILE_MODE", string(ModeWeb)))

	cfg := &Config{
		Port:              getEnvInt("PORT", 8080),
		CacheRoot:         getEnv("CACHE_ROOT", filepath.Clean(cacheRoot)),
		Mode:              mode,
		URLTemplate:       getEnv("TILE_URL_TEMPLATE", ""),
		RasterURLTemplate: getEnv("RASTER_URL_TEMPLATE", ""),
		WorkerCount:       getEnvInt("WORKER_COUNT", runtime.NumCPU()),
		VipsMaxCacheMB:    getEnvInt("VIPS_MAX_CACHE_MB", 64),
		VipsConcurrency:   getEnvInt("VIPS_CONCURRENCY", 1),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Mode {
	case ModeWeb, ModeLocalOnly, ModeDummy:
	default:
		return fmt.Errorf("config: unknown TILE_MODE %q", c.Mode)
	}
	if c.Mode == ModeWeb && c.URLTemplate == "" {
		return fmt.Errorf("config: TILE_URL_TEMPLATE is required in web mode")
	}
	if c.WorkerCount < 1 {
		return fmt.Errorf("config: WORKER_COUNT must be at least 1")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
