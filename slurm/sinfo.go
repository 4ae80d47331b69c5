package slurm

import (
	"context"
	"fmt"
	"os"
	"strings"

	core "smartsim.io/smartsim-hpc/core"
	launcher "smartsim.io/smartsim-hpc/launcher"
)

// Hosts reports compute hosts of a step: squeue %N for batch jobs, the
// enclosing allocation (SLURM_JOB_NODELIST) for srun steps.
func (l *Launcher) Hosts(ctx context.Context, h launcher.Handle) ([]string, error) {
	if h.Batch {
		out, err := l.Commander.Output(ctx, nil, SQueueName, "-h", "-j", h.ID, "-o", "%N")
		if err != nil {
			return nil, fmt.Errorf("squeue: %w", err)
		}
		return ExpandNodelist(strings.TrimSpace(string(out)))
	}
	if nodelist := os.Getenv("SLURM_JOB_NODELIST"); len(nodelist) > 0 {
		return ExpandNodelist(nodelist)
	}
	host, err := os.Hostname()
	if err != nil {
		return nil, err
	}
	return []string{host}, nil
}

var _ launcher.HostResolver = (*Launcher)(nil)

// Partitions lists partition rows from sinfo: name, availability, time
// limit, node count and node list.
func (l *Launcher) Partitions(ctx context.Context) ([][]string, error) {
	out, err := l.Commander.Output(ctx, nil, SInfoName, "-h", "-o", "%P|%a|%l|%D|%N")
	if err != nil {
		return nil, fmt.Errorf("sinfo: %w", err)
	}
	table := [][]string{
		{"PARTITION", "AVAIL", "TIMELIMIT", "NODES", "NODELIST"},
	}
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if fields := strings.Split(line, "|"); len(fields) == 5 {
			table = append(table, fields)
		}
	}
	return table, nil
}

// Available reports whether the Slurm client commands can be found.
func Available() error {
	if len(core.LookPath(SBatchName)) == 0 {
		return fmt.Errorf("slurm: %s not found on PATH", SBatchName)
	}
	return nil
}
