// Command simpledb drives the storage engine from the command line. It appends and dumps log records, runs
// the buffer pool scenario and prints the collected metrics.
package main

import (
	"github.com/alecthomas/kong"
)

const version = "0.1.0"

type CLI struct {
	Globals

	Log      LogGroup    `cmd:"" help:"Log manager operations"`
	Scenario ScenarioCmd `cmd:"" help:"Pin blocks in a small pool until it is exhausted and show the eviction"`
	Stats    StatsCmd    `cmd:"" help:"Run a small workload and print the collected metrics"`
	Version  VersionCmd  `cmd:"" help:"Print version information"`
}

type LogGroup struct {
	Append LogAppendCmd `cmd:"" help:"Append records to the log"`
	Dump   LogDumpCmd   `cmd:"" help:"Print every log record, newest first"`
}

func kongOptions() []kong.Option {
	return []kong.Option{
		kong.Name("simpledb"),
		kong.Description("simpledb - pages, buffers and a write-ahead log"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	}
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli, kongOptions()...)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
