package config

import (
	"errors"
	"os"
	"strconv"
)

// Default archive root on the CEDA/JASMIN filesystem.
const defaultArchiveRoot = "/badc/ecmwf-era5/data/oper/an_sfc"

// Config holds process-level settings, populated from environment variables.
// Per-run parameters (years, variables, mode, city list) are CLI flags.
type Config struct {
	ArchiveRoot  string
	GridRefPath  string // empty means "derive from the archive root"
	OutputDir    string
	MonitorAddr  string // empty disables the monitor server
	LogLevel     string
	LogFormat    string
	WriteWorkers int
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	cfg := &Config{
		ArchiveRoot: envOrDefault("ERA5_ARCHIVE_ROOT", defaultArchiveRoot),
		GridRefPath: os.Getenv("ERA5_GRID_REF"),
		OutputDir:   envOrDefault("ERA5_OUTPUT_DIR", "outputs/era5"),
		MonitorAddr: os.Getenv("MONITOR_ADDR"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		LogFormat:   envOrDefault("LOG_FORMAT", "text"),
	}

	workers, err := parseWriteWorkers()
	if err != nil {
		return nil, err
	}
	cfg.WriteWorkers = workers

	if cfg.ArchiveRoot == "" {
		return nil, errors.New("ERA5_ARCHIVE_ROOT must not be empty")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("ERA5_OUTPUT_DIR must not be empty")
	}
	return cfg, nil
}

func parseWriteWorkers() (int, error) {
	s := os.Getenv("WRITE_WORKERS")
	if s == "" {
		return 4, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, errors.New("invalid WRITE_WORKERS")
	}
	return n, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
