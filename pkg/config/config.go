// Package config loads the runtime knobs the storage engine needs at
// process start: page size, buffer pool capacity, and the on-disk
// locations of table files and the log.
package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl"

	"storemy/pkg/storage/page"
)

// Config holds every setting the engine reads at startup. Fields left
// zero in the config file fall back to their default.
type Config struct {
	DataDir        string `hcl:"data_dir"`
	LogFile        string `hcl:"log_file"`
	BufferPoolSize int    `hcl:"buffer_pool_size"`
	PageSize       int    `hcl:"page_size"`
}

// Default returns the configuration used when no config file is given.
func Default() Config {
	return Config{
		DataDir:        "./data",
		LogFile:        "./data/wal.log",
		BufferPoolSize: 64,
		PageSize:       page.PageSize,
	}
}

// Load reads and decodes an HCL config file at path, filling in
// defaults for anything the file leaves unset.
func Load(path string) (Config, error) {
	cfg := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var overrides Config
	if err := hcl.Decode(&overrides, string(b)); err != nil {
		return Config{}, fmt.Errorf("failed to decode config %s: %w", path, err)
	}

	if overrides.DataDir != "" {
		cfg.DataDir = overrides.DataDir
	}
	if overrides.LogFile != "" {
		cfg.LogFile = overrides.LogFile
	}
	if overrides.BufferPoolSize > 0 {
		cfg.BufferPoolSize = overrides.BufferPoolSize
	}
	if overrides.PageSize > 0 {
		cfg.PageSize = overrides.PageSize
	}

	if cfg.PageSize != page.PageSize {
		return Config{}, fmt.Errorf("page_size %d does not match the compiled page size %d", cfg.PageSize, page.PageSize)
	}

	return cfg, nil
}
