package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	launcher "smartsim.io/smartsim-hpc/launcher"
	logger "smartsim.io/smartsim-hpc/logger"
	lsf "smartsim.io/smartsim-hpc/lsf"
	settings "smartsim.io/smartsim-hpc/settings"
	slurm "smartsim.io/smartsim-hpc/slurm"
)

type RunCommand struct {
	Help bool `short:"h" long:"help" description:"Show this help message"`
	ProfileFlags

	// srun
	Nodes        int      `short:"N" long:"nodes" description:"nodes (slurm)"`
	TasksPerNode int      `long:"tasks-per-node" description:"tasks per node (slurm)"`
	CPUsPerTask  int      `short:"c" long:"cpus-per-task" description:"cpus per task (slurm)"`
	Hosts        []string `short:"w" long:"hostlist" description:"hosts to run on (slurm)"`
	Exclude      []string `short:"x" long:"exclude" description:"hosts to avoid (slurm)"`
	Time         string   `short:"t" long:"time" description:"time limit (slurm)"`
	// jsrun
	NumRS      string `long:"nrs" description:"resource sets, a count or ALL_HOSTS (lsf)"`
	CPUsPerRS  string `long:"cpu-per-rs" description:"cpus per resource set, a count or ALL_CPUS (lsf)"`
	GPUsPerRS  string `long:"gpu-per-rs" description:"gpus per resource set, a count or ALL_GPUS (lsf)"`
	RSPerHost  int    `long:"rs-per-host" description:"resource sets per host (lsf)"`
	TasksPerRS int    `long:"tasks-per-rs" description:"tasks per resource set (lsf)"`
	Bind       string `long:"bind" description:"binding policy (lsf)"`
	// both
	Tasks  int      `short:"n" long:"tasks" description:"total tasks"`
	Chdir  string   `short:"D" long:"chdir" description:"working directory"`
	Env    []string `short:"e" long:"env" description:"KEY=VALUE exported to the step"`
	Raw    []string `short:"a" long:"arg" description:"raw run option key[=value]"`
	DryRun bool     `long:"dry-run" description:"print the command line and exit"`
	Poll   string   `long:"poll" description:"poll interval" default:"1s"`
}

var runCommand RunCommand

// count reads a numeric count or a sentinel, warning on unknown sentinels.
func count(setter, s string) settings.Count {
	c := settings.ParseCount(s)
	if c.IsSentinel() && !settings.IsKnownSentinel(s) {
		logger.WarningPrintf("%s: unknown sentinel %q passed through", setter, s)
	}
	return c
}

// runSettings builds the run settings of the selected launcher.
func (x *RunCommand) runSettings(launcherName, exe string, exeArgs []string) (settings.Run, error) {
	var run settings.Run
	var base *settings.RunSettings
	switch launcherName {
	case "lsf":
		s := lsf.NewJsrunSettings(exe, exeArgs)
		if len(x.NumRS) > 0 {
			s.SetNumRS(count("jsrun: nrs", x.NumRS))
		}
		if len(x.CPUsPerRS) > 0 {
			s.SetCPUsPerRS(count("jsrun: cpu_per_rs", x.CPUsPerRS))
		}
		if len(x.GPUsPerRS) > 0 {
			s.SetGPUsPerRS(count("jsrun: gpu_per_rs", x.GPUsPerRS))
		}
		if x.RSPerHost != 0 {
			s.SetRSPerHost(x.RSPerHost)
		}
		if x.Tasks != 0 {
			s.SetTasks(x.Tasks)
		}
		if x.TasksPerRS != 0 {
			s.SetTasksPerRS(x.TasksPerRS)
		}
		if len(x.Bind) > 0 {
			s.SetBinding(x.Bind)
		}
		run, base = s, s.RunSettings
	case "slurm":
		s := slurm.NewSrunSettings(exe, exeArgs)
		if x.Nodes != 0 {
			s.SetNodes(x.Nodes)
		}
		if x.Tasks != 0 {
			s.SetTasks(x.Tasks)
		}
		if x.TasksPerNode != 0 {
			s.SetTasksPerNode(x.TasksPerNode)
		}
		if x.CPUsPerTask != 0 {
			s.SetCPUsPerTask(x.CPUsPerTask)
		}
		if len(x.Hosts) > 0 {
			if err := s.SetHostlist(x.Hosts); err != nil {
				return nil, err
			}
		}
		if len(x.Exclude) > 0 {
			if err := s.SetExcludedHosts(x.Exclude); err != nil {
				return nil, err
			}
		}
		if len(x.Time) > 0 {
			s.SetWalltime(x.Time)
		}
		run, base = s, s.RunSettings
	default:
		s := settings.NewRunSettings(exe, exeArgs, "")
		if len(x.Raw) > 0 {
			return nil, errors.New("run: raw options need the slurm or lsf launcher")
		}
		run, base = s, s
	}
	if len(x.Chdir) > 0 {
		base.SetWorkingDir(x.Chdir)
	}
	for _, kv := range x.Env {
		k, v, found := strings.Cut(kv, "=")
		if !found || len(k) == 0 {
			return nil, errors.New("run: environment must be KEY=VALUE, got " + kv)
		}
		base.SetEnv(k, v)
	}
	if err := applyRawArgs(base, x.Raw); err != nil {
		return nil, fmt.Errorf("run: %w", err)
	}
	return run, nil
}

func (x *RunCommand) Execute(args []string) error {
	if x.Help || len(args) == 0 {
		return createHelpErr()
	}
	profile, err := x.resolve()
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if len(x.Hosts) == 0 && profile.Launcher == "slurm" {
		x.Hosts = profile.HostList
	}
	run, err := x.runSettings(profile.Launcher, args[0], args[1:])
	if err != nil {
		return err
	}
	cmd := settings.Command(run)
	if x.DryRun {
		fmt.Fprintln(stdout, settings.ShellJoin(cmd))
		return nil
	}
	interval, err := time.ParseDuration(x.Poll)
	if err != nil {
		return fmt.Errorf("run: poll: %w", err)
	}

	l, err := newLauncher(profile.Launcher, commander)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	h, err := l.Spawn(ctx, launcher.Step{
		Name:    filepath.Base(args[0]),
		Command: cmd,
		Env:     settings.EnvList(run.Env()),
		Dir:     run.WorkingDir(),
	})
	if err != nil {
		return err
	}
	res, err := launcher.Wait(ctx, l, h, interval)
	if err != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if serr := l.Stop(stopCtx, h); serr != nil {
			logger.WarningPrintf("run: stop %s: %v", h.Name, serr)
		}
		return err
	}
	logger.InfoPrintf("run: %s %s, code %d", h.Name, res.Status, res.ReturnCode)
	if res.ReturnCode != 0 {
		code := res.ReturnCode
		if code == launcher.NoReturnCode {
			code = 1
		}
		return &exitError{code: code}
	}
	return nil
}

func init() {
	parser.AddCommand("run",
		"Run a command through the launcher",
		"The run command formats the launch command of the selected launcher (srun, jsrun or a plain local process) and runs it to completion: smartsim-hpc run [options] -- exe args",
		&runCommand)
}
