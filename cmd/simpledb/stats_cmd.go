package main

import (
	"context"
	"fmt"

	"simpledb/db"
	"simpledb/disk"

	"github.com/alecthomas/kong"
	"go.uber.org/multierr"
)

type StatsCmd struct {
	Records int    `help:"Number of log records to append" default:"100"`
	Blocks  int    `help:"Number of data blocks to cycle through the pool" default:"16"`
	File    string `help:"Data file used by the workload" default:"stats"`
}

func (c *StatsCmd) Run(g *Globals, ctx *kong.Context) (err error) {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	cfg.Telemetry.Enabled = true
	if err := cfg.Validate(); err != nil {
		return err
	}

	d, err := db.Open(cfg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, d.Close()) }()

	for i := 0; i < c.Records; i++ {
		rec, err := encodeRecord(fmt.Sprintf("record%d", i), int32(i))
		if err != nil {
			return err
		}
		if _, err := d.Lm.Append(rec); err != nil {
			return err
		}
	}

	if err := ensureBlocks(d.Fm, c.File, int64(c.Blocks)); err != nil {
		return err
	}
	for round := 0; round < 2; round++ {
		for i := 0; i < c.Blocks; i++ {
			h, err := d.Bm.Pin(context.Background(), disk.NewBlock(c.File, int64(i)))
			if err != nil {
				return err
			}
			if err := d.Bm.Unpin(h); err != nil {
				return err
			}
		}
	}

	if err := d.Lm.Flush(d.Lm.LatestLSN()); err != nil {
		return err
	}
	return d.Tel.WriteText(ctx.Stdout)
}
