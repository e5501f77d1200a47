package main

import (
	"errors"
	"fmt"

	"simpledb/common"

	"github.com/alecthomas/kong"
	"go.uber.org/multierr"
)

type LogAppendCmd struct {
	Records  []string `arg:"" optional:"" help:"Records to append, each is stored with its position as the int"`
	Generate int      `help:"Also append this many generated records" default:"0"`
	Start    int      `help:"Number of the first generated record" default:"1"`
}

func (c *LogAppendCmd) Run(g *Globals, ctx *kong.Context) (err error) {
	d, err := g.open()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, d.Close()) }()

	type rec struct {
		s string
		n int32
	}
	var recs []rec
	for i, s := range c.Records {
		recs = append(recs, rec{s, int32(i)})
	}
	for i := c.Start; i < c.Start+c.Generate; i++ {
		recs = append(recs, rec{fmt.Sprintf("record%d", i), int32(i + 100)})
	}

	for _, r := range recs {
		b, err := encodeRecord(r.s, r.n)
		if err != nil {
			return err
		}
		lsn, err := d.Lm.Append(b)
		if err != nil {
			return err
		}
		fmt.Fprintf(ctx.Stdout, "lsn %d: [%s, %d]\n", lsn, r.s, r.n)
	}

	return d.Lm.Flush(d.Lm.LatestLSN())
}

type LogDumpCmd struct {
	Limit int `help:"Stop after this many records, 0 prints all of them" default:"0"`
}

func (c *LogDumpCmd) Run(g *Globals, ctx *kong.Context) (err error) {
	d, err := g.open()
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, d.Close()) }()

	it, err := d.Lm.Iterator()
	if err != nil {
		return err
	}

	for i := 0; c.Limit == 0 || i < c.Limit; i++ {
		rec, err := it.Next()
		if errors.Is(err, common.ErrIteratorDone) {
			break
		}
		if err != nil {
			return err
		}

		if s, n, err := decodeRecord(rec); err == nil {
			fmt.Fprintf(ctx.Stdout, "[%s, %d]\n", s, n)
		} else {
			fmt.Fprintf(ctx.Stdout, "%x\n", rec)
		}
	}
	return nil
}
