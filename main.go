package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"ad_copy_planner/cmd"
)

const version = "0.1.0"

func main() {
	app := &cli.App{
		Name:    "adplanner",
		Usage:   "Conversational ad copy variation generator",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Load configuration from `FILE` (default ./adplanner.toml or ~/.adplanner.toml)",
			},
		},
		Commands: []*cli.Command{
			cmd.ServeCommand(),
			cmd.ConfigCommand(),
			cmd.HistoryCommand(),
			cmd.CopiesCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
