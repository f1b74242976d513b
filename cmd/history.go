package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"ad_copy_planner/publisher"
)

// HistoryCommand returns the history command
func HistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect saved generation runs",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List recent runs, newest first",
				Flags:  []cli.Flag{tenantFlag()},
				Action: runHistoryList,
			},
			{
				Name:      "delete",
				Usage:     "Delete a run",
				ArgsUsage: "ID",
				Flags:     []cli.Flag{tenantFlag()},
				Action:    runHistoryDelete,
			},
			{
				Name:      "export",
				Usage:     "Write a run's variations as CSV to stdout",
				ArgsUsage: "ID",
				Flags:     []cli.Flag{tenantFlag()},
				Action:    runHistoryExport,
			},
		},
	}
}

func runHistoryList(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	entries := openHistory(cfg).List(c.String("tenant"))
	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tVARIATIONS\tSEED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", e.ID, e.Timestamp.Format("2006-01-02 15:04"), len(e.Variations), e.SeedSummary)
	}
	return tw.Flush()
}

func runHistoryDelete(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("history id is required")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := openHistory(cfg).Delete(c.String("tenant"), id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Deleted %s\n", id)
	return nil
}

func runHistoryExport(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return fmt.Errorf("history id is required")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	entry, err := openHistory(cfg).Get(c.String("tenant"), id)
	if err != nil {
		return err
	}
	return publisher.WriteVariationsCSV(c.App.Writer, entry)
}

func tenantFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "tenant",
		Usage: "Tenant id",
		Value: "local",
	}
}
