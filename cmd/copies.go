package cmd

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"ad_copy_planner/publisher"
)

// CopiesCommand returns the one-shot copy generation command
func CopiesCommand() *cli.Command {
	return &cli.Command{
		Name:      "copies",
		Usage:     "Generate a list of copy ideas from a brief",
		ArgsUsage: "BRIEF",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "csv",
				Usage: "Write CSV instead of a plain list",
			},
		},
		Action: runCopies,
	}
}

func runCopies(c *cli.Context) error {
	brief := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(brief) == "" {
		return fmt.Errorf("brief is required")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	agent, err := buildAgent(cfg)
	if err != nil {
		return err
	}
	ideas, err := agent.Copies(c.Context, brief, nil)
	if err != nil {
		return err
	}
	if c.Bool("csv") {
		return publisher.WriteCopyIdeasCSV(c.App.Writer, ideas)
	}
	for i, idea := range ideas {
		fmt.Fprintf(c.App.Writer, "%d. %s: %s\n", i+1, idea.Title, idea.Description)
	}
	return nil
}
