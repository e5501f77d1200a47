package main

import (
	"time"

	"simpledb/config"
	"simpledb/db"
	"simpledb/disk"
)

// Globals are the flags shared by every command. Flags that are set override the config file.
type Globals struct {
	Config     string        `name:"config" short:"c" help:"Path to a yaml config file" type:"path"`
	Dir        string        `help:"Database directory" type:"path"`
	PageSize   int           `name:"page-size" help:"Page size in bytes"`
	PoolSize   int           `name:"pool-size" help:"Number of buffers in the pool"`
	MaxPinWait time.Duration `name:"max-pin-wait" help:"How long a pin waits for a free buffer"`
	Replacer   string        `help:"Buffer replacement policy (clock or lru)"`
	InMemory   bool          `name:"in-memory" help:"Keep every file in memory"`
	LogLevel   string        `name:"log-level" help:"Log level (debug, info, warn, error)"`
}

func (g *Globals) load() (config.Config, error) {
	cfg := config.Default()
	if g.Config != "" {
		var err error
		if cfg, err = config.Load(g.Config); err != nil {
			return config.Config{}, err
		}
	}

	if g.Dir != "" {
		cfg.Dir = g.Dir
	}
	if g.PageSize != 0 {
		cfg.PageSize = g.PageSize
	}
	if g.PoolSize != 0 {
		cfg.PoolSize = g.PoolSize
	}
	if g.MaxPinWait != 0 {
		cfg.MaxPinWait = g.MaxPinWait
	}
	if g.Replacer != "" {
		cfg.Replacer = g.Replacer
	}
	if g.InMemory {
		cfg.InMemory = true
	}
	if g.LogLevel != "" {
		cfg.Logger.Level = g.LogLevel
	}
	return cfg, cfg.Validate()
}

func (g *Globals) open() (*db.DB, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, err
	}
	return db.Open(cfg)
}

// ensureBlocks appends blocks to file until it has at least n of them.
func ensureBlocks(fm *disk.FileManager, file string, n int64) error {
	count, err := fm.BlockCount(file)
	if err != nil {
		return err
	}
	for ; count < n; count++ {
		if _, err := fm.Append(file); err != nil {
			return err
		}
	}
	return nil
}
