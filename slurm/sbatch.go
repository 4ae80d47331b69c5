package slurm

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	core "smartsim.io/smartsim-hpc/core"
	launcher "smartsim.io/smartsim-hpc/launcher"
	logger "smartsim.io/smartsim-hpc/logger"
)

// Launcher runs srun steps as local processes and submits batch steps with
// sbatch. Batch jobs are polled with squeue, then sacct once they leave the
// queue, and cancelled with scancel.
type Launcher struct {
	*launcher.Local
	Commander core.Commander

	mu        sync.Mutex
	cancelled map[string]bool
}

func NewLauncher(commander core.Commander) *Launcher {
	if commander == nil {
		commander = core.ExecCommander{}
	}
	return &Launcher{
		Local:     launcher.NewLocal(),
		Commander: commander,
		cancelled: map[string]bool{},
	}
}

func (l *Launcher) Name() string { return "slurm" }

// Spawn submits batch steps. The script is written to <OutputDir>/<Name>.sh
// when an output directory is set, else it is piped to sbatch.
func (l *Launcher) Spawn(ctx context.Context, step launcher.Step) (launcher.Handle, error) {
	if !step.Batch() {
		return l.Local.Spawn(ctx, step)
	}
	var args []string
	var stdin io.Reader = strings.NewReader(step.Script)
	if len(step.OutputDir) > 0 {
		scriptFile := filepath.Join(step.OutputDir, step.Name+".sh")
		if err := os.MkdirAll(step.OutputDir, 0755); err != nil {
			return launcher.Handle{}, err
		}
		if err := os.WriteFile(scriptFile, []byte(step.Script), 0755); err != nil {
			return launcher.Handle{}, err
		}
		args = append(args, scriptFile)
		stdin = nil
	}
	out, err := l.Commander.Output(ctx, stdin, SBatchName, args...)
	if err != nil {
		return launcher.Handle{}, fmt.Errorf("sbatch: %s: %w", step.Name, err)
	}
	id, err := ParseJobID(string(out))
	if err != nil {
		return launcher.Handle{}, err
	}
	logger.InfoPrintf("sbatch: %s submitted as job %s", step.Name, id)
	return launcher.Handle{ID: id, Name: step.Name, Batch: true}, nil
}

// ParseJobID reads "Submitted batch job 2723147".
func ParseJobID(output string) (string, error) {
	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "Submitted batch job") {
			parts := strings.Fields(line)
			return parts[len(parts)-1], nil
		}
	}
	return "", fmt.Errorf("sbatch: unable to parse output: %q", strings.TrimSpace(output))
}

var _ launcher.Launcher = (*Launcher)(nil)
