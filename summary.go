package main

import (
	"context"
	"fmt"
	"os"

	experiment "smartsim.io/smartsim-hpc/experiment"
	ledger "smartsim.io/smartsim-hpc/ledger"
)

type SummaryCommand struct {
	Help   bool   `short:"h" long:"help" description:"Show this help message"`
	Ledger string `long:"ledger" description:"SQLite file written by the experiment command" required:"true"`
}

var summaryCommand SummaryCommand

// Execute prints the launches of the named experiments, or of every
// experiment in the ledger.
func (x *SummaryCommand) Execute(args []string) error {
	if x.Help {
		return createHelpErr()
	}
	if _, err := os.Stat(x.Ledger); err != nil {
		return fmt.Errorf("summary: %w", err)
	}
	db, err := ledger.Open(x.Ledger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	names := args
	if len(names) == 0 {
		if names, err = db.Experiments(ctx); err != nil {
			return err
		}
	}
	for i, name := range names {
		launches, err := db.Summary(ctx, name)
		if err != nil {
			return err
		}
		if len(launches) == 0 {
			return fmt.Errorf("summary: no launches recorded for %s", name)
		}
		if i > 0 {
			fmt.Fprintln(stdout)
		}
		fmt.Fprintf(stdout, "%s\n\n", name)
		printTable(experiment.SummaryTable(launches))
	}
	return nil
}

func init() {
	parser.AddCommand("summary",
		"Show recorded launches",
		"The summary command prints the launches an experiment recorded in its ledger",
		&summaryCommand)
}
