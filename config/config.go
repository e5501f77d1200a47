// Package config holds the settings the storage engine reads once at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"simpledb/buffer"
	"simpledb/common"
	"simpledb/logger"
	"simpledb/telemetry"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// Dir is the database directory. It is created when it does not exist.
	Dir      string `yaml:"dir"`
	PageSize int    `yaml:"page_size"`
	PoolSize int    `yaml:"pool_size"`
	LogFile  string `yaml:"log_file"`

	// MaxPinWait bounds how long a pin waits for a free buffer.
	MaxPinWait time.Duration `yaml:"max_pin_wait"`
	// FSync makes every page write durable before it returns.
	FSync bool `yaml:"fsync"`
	// InMemory keeps every file in memory, nothing is written to Dir.
	InMemory bool   `yaml:"in_memory"`
	Replacer string `yaml:"replacer"`

	Logger    logger.Config    `yaml:"logger"`
	Telemetry telemetry.Config `yaml:"telemetry"`
}

func Default() Config {
	return Config{
		Dir:        "simpledb",
		PageSize:   common.DefaultPageSize,
		PoolSize:   common.DefaultPoolSize,
		LogFile:    common.DefaultLogFile,
		MaxPinWait: common.DefaultMaxPinWait,
		Replacer:   buffer.ClockReplacerName,
		Logger: logger.Config{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a yaml file on top of the defaults. Keys missing from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Dir == "" {
		errs = append(errs, errors.New("dir must be set"))
	}
	// a log page must hold its boundary and at least one empty record
	if c.PageSize < 3*common.IntSize {
		errs = append(errs, fmt.Errorf("page_size must be at least %d, got %d", 3*common.IntSize, c.PageSize))
	}
	if c.PoolSize <= 0 {
		errs = append(errs, fmt.Errorf("pool_size must be positive, got %d", c.PoolSize))
	}
	if c.LogFile == "" {
		errs = append(errs, errors.New("log_file must be set"))
	}
	if c.MaxPinWait <= 0 {
		errs = append(errs, fmt.Errorf("max_pin_wait must be positive, got %v", c.MaxPinWait))
	}
	switch c.Replacer {
	case buffer.ClockReplacerName, buffer.LruReplacerName:
	default:
		errs = append(errs, fmt.Errorf("replacer must be %q or %q, got %q", buffer.ClockReplacerName, buffer.LruReplacerName, c.Replacer))
	}
	return errors.Join(errs...)
}
