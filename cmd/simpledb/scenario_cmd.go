package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"simpledb/buffer"
	"simpledb/common"
	"simpledb/disk"

	"github.com/alecthomas/kong"
	"go.uber.org/multierr"
)

// ScenarioCmd fills a pool with pinned blocks, shows that one more pin is refused, then unpins a modified
// block and shows that it is written back, after the log, when its buffer is reused.
type ScenarioCmd struct {
	File string `help:"Data file used by the scenario" default:"scenario"`
}

func (c *ScenarioCmd) Run(g *Globals, ctx *kong.Context) (err error) {
	d, err := g.open()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, d.Close()) }()

	out := ctx.Stdout
	poolSize := d.Config().PoolSize
	background := context.Background()

	// one block more than the pool can hold
	if err := ensureBlocks(d.Fm, c.File, int64(poolSize)+1); err != nil {
		return err
	}

	handles := make([]*buffer.Handle, 0, poolSize)
	for i := 0; i < poolSize; i++ {
		h, err := d.Bm.Pin(background, disk.NewBlock(c.File, int64(i)))
		if err != nil {
			return err
		}
		handles = append(handles, h)
		fmt.Fprintf(out, "pinned %v, available buffers: %d\n", h.Block(), d.Bm.Available())
	}

	first := handles[0]
	lsn, err := d.Lm.Append([]byte(fmt.Sprintf("set %v offset 0 to 12345", first.Block())))
	if err != nil {
		return err
	}
	if err := first.Page().SetInt(0, 12345); err != nil {
		return err
	}
	if err := d.Bm.SetModified(first, 1, lsn); err != nil {
		return err
	}
	fmt.Fprintf(out, "modified %v with log record %d, log is durable up to %d\n", first.Block(), lsn, d.Lm.LastFlushedLSN())

	extra := disk.NewBlock(c.File, int64(poolSize))
	start := time.Now()
	_, err = d.Bm.Pin(background, extra)
	if !errors.Is(err, common.ErrBufferPoolExhausted) {
		return fmt.Errorf("expected the pool to be exhausted, got %v", err)
	}
	fmt.Fprintf(out, "pinning %v failed after %v: %v\n", extra, time.Since(start).Round(time.Millisecond), err)

	if err := d.Bm.Unpin(first); err != nil {
		return err
	}
	fmt.Fprintf(out, "unpinned %v, available buffers: %d\n", first.Block(), d.Bm.Available())

	h, err := d.Bm.Pin(background, extra)
	if err != nil {
		return err
	}
	handles[0] = h
	fmt.Fprintf(out, "pinned %v, log is durable up to %d\n", h.Block(), d.Lm.LastFlushedLSN())

	if err := printBlockInt(out, d.Fm, first.Block()); err != nil {
		return err
	}

	for _, h := range handles {
		if err := d.Bm.Unpin(h); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "released every pin, available buffers: %d\n", d.Bm.Available())
	return nil
}

func printBlockInt(out io.Writer, fm *disk.FileManager, blk disk.Block) error {
	p, err := fm.Read(blk)
	if err != nil {
		return err
	}
	v, err := p.GetInt(0)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%v on disk holds %d at offset 0\n", blk, v)
	return nil
}
