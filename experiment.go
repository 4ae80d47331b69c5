package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	experiment "smartsim.io/smartsim-hpc/experiment"
	launcher "smartsim.io/smartsim-hpc/launcher"
	ledger "smartsim.io/smartsim-hpc/ledger"
	logger "smartsim.io/smartsim-hpc/logger"
)

type ExperimentCommand struct {
	Help bool `short:"h" long:"help" description:"Show this help message"`
	ProfileFlags

	Ledger       string `long:"ledger" description:"SQLite file recording launches (default: in memory)"`
	StatusPort   int    `long:"status-port" description:"serve GET /status on this port while running"`
	Poll         string `long:"poll" description:"poll interval, overrides the file"`
	ReadyTimeout string `long:"ready-timeout" description:"how long a running orchestrator may take to answer PING, overrides the file"`
	DryRun       bool   `long:"dry-run" description:"print what would be launched and exit"`
	Args         struct {
		File string `positional-arg-name:"file" description:"experiment file (HCL)"`
	} `positional-args:"true" required:"1"`
}

var experimentCommand ExperimentCommand

func (x *ExperimentCommand) Execute(args []string) error {
	if x.Help {
		return createHelpErr()
	}
	profile, err := x.resolve()
	if err != nil {
		return fmt.Errorf("experiment: %w", err)
	}
	file, err := experiment.LoadFile(x.Args.File, profile)
	if err != nil {
		return err
	}
	if len(x.Launcher) > 0 && x.Launcher != file.Launcher {
		logger.WarningPrintf("experiment: %s names launcher %s, ignoring %s", x.Args.File, file.Launcher, x.Launcher)
	}
	if len(x.Poll) > 0 {
		if file.PollInterval, err = time.ParseDuration(x.Poll); err != nil {
			return fmt.Errorf("experiment: poll: %w", err)
		}
	}
	if len(x.ReadyTimeout) > 0 {
		if file.ReadyTimeout, err = time.ParseDuration(x.ReadyTimeout); err != nil {
			return fmt.Errorf("experiment: ready-timeout: %w", err)
		}
	}
	if x.DryRun {
		for _, line := range file.Describe() {
			fmt.Fprintln(stdout, line)
		}
		return nil
	}

	var opts []experiment.Option
	if len(x.Ledger) > 0 {
		db, err := ledger.Open(x.Ledger)
		if err != nil {
			return err
		}
		defer db.Close()
		opts = append(opts, experiment.WithLedger(db))
	}
	exp, plan, err := file.Build(func(name string) (launcher.Launcher, error) {
		return newLauncher(name, commander)
	}, opts...)
	if err != nil {
		return err
	}
	defer exp.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if x.StatusPort != 0 {
		srvCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := exp.Serve(srvCtx, fmt.Sprintf(":%d", x.StatusPort)); err != nil {
				logger.ErrorPrintf("experiment: status endpoint: %v", err)
			}
		}()
	}

	runErr := exp.Run(ctx, plan)
	if table, err := exp.Summary(context.Background()); err == nil {
		printTable(table)
	}
	return runErr
}

func init() {
	parser.AddCommand("experiment",
		"Run an experiment file",
		"The experiment command loads an HCL experiment file, starts its orchestrators, runs its models and ensembles to completion, then stops the orchestrators",
		&experimentCommand)
}
