package main

import (
	"fmt"

	"github.com/alecthomas/kong"
)

type VersionCmd struct{}

func (c *VersionCmd) Run(ctx *kong.Context) error {
	fmt.Fprintf(ctx.Stdout, "simpledb %s\n", version)
	return nil
}
