package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	core "smartsim.io/smartsim-hpc/core"
	launcher "smartsim.io/smartsim-hpc/launcher"
	lsf "smartsim.io/smartsim-hpc/lsf"
	settings "smartsim.io/smartsim-hpc/settings"
	slurm "smartsim.io/smartsim-hpc/slurm"
)

type BatchCommand struct {
	Help bool `short:"h" long:"help" description:"Show this help message"`
	ProfileFlags

	Nodes     int      `short:"N" long:"nodes" description:"nodes"`
	Time      string   `short:"t" long:"time" description:"walltime"`
	Project   string   `short:"P" long:"project" description:"project (lsf)"`
	Queue     string   `short:"q" long:"queue" description:"queue (lsf)"`
	Account   string   `short:"A" long:"account" description:"account (slurm)"`
	Partition string   `short:"p" long:"partition" description:"partition (slurm)"`
	JobName   string   `short:"J" long:"job-name" description:"job name"`
	Hosts     []string `short:"w" long:"hostlist" description:"hosts"`
	Raw       []string `short:"a" long:"arg" description:"raw batch option key[=value]"`
	Script    string   `short:"s" long:"script" description:"job script whose directives and body are reused"`
	OutputDir string   `short:"o" long:"output-dir" description:"keep the submitted script in this directory"`
	DryRun    bool     `long:"dry-run" description:"print the job script and exit"`
}

var batchCommand BatchCommand

// jobScript is what both schedulers' batch settings render from.
type jobScript interface {
	settings.Batch
	Set(key string, v settings.Value)
	Directives() []string
}

func readScript(path string, parse func(*os.File) (jobScript, core.JobScript, error)) (jobScript, core.JobScript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.JobScript{}, err
	}
	defer f.Close()
	return parse(f)
}

func scriptBody(js core.JobScript) []string {
	var body []string
	for _, line := range strings.Split(strings.TrimRight(string(js.Script), "\n"), "\n") {
		if len(body) == 0 && len(strings.TrimSpace(line)) == 0 {
			continue
		}
		body = append(body, line)
	}
	return body
}

func (x *BatchCommand) bsub(profile core.Profile) (jobScript, core.JobScript, error) {
	if len(x.Account) > 0 || len(x.Partition) > 0 {
		return nil, core.JobScript{}, errors.New("batch: account and partition need the slurm launcher")
	}
	b := lsf.NewBsubSettings(0, profile.Walltime, profile.Project)
	if len(profile.Queue) > 0 {
		b.SetQueue(profile.Queue)
	}
	var js core.JobScript
	if len(x.Script) > 0 {
		parsed, script, err := readScript(x.Script, func(f *os.File) (jobScript, core.JobScript, error) {
			return lsf.ParseDirectives(f)
		})
		if err != nil {
			return nil, js, err
		}
		b, js = parsed.(*lsf.BsubSettings), script
	}
	if x.Nodes != 0 {
		b.SetNodes(x.Nodes)
	}
	if len(x.Time) > 0 {
		b.SetWalltime(x.Time)
	}
	if len(x.Project) > 0 {
		b.SetProject(x.Project)
	}
	if len(x.Queue) > 0 {
		b.SetQueue(x.Queue)
	}
	if len(x.JobName) > 0 {
		b.SetJobName(x.JobName)
	}
	if len(x.Hosts) > 0 {
		if err := b.SetHostlist(x.Hosts); err != nil {
			return nil, js, err
		}
	}
	return b, js, nil
}

func (x *BatchCommand) sbatch(profile core.Profile) (jobScript, core.JobScript, error) {
	if len(x.Project) > 0 || len(x.Queue) > 0 {
		return nil, core.JobScript{}, errors.New("batch: project and queue need the lsf launcher")
	}
	overrides := slurm.NewSbatchSettings(x.Nodes, x.Time, x.Account)
	if len(x.Partition) > 0 {
		overrides.SetPartition(x.Partition)
	}
	if len(x.JobName) > 0 {
		overrides.Set("job-name", settings.String(x.JobName))
	}
	if len(x.Hosts) > 0 {
		if err := overrides.SetHostlist(x.Hosts); err != nil {
			return nil, core.JobScript{}, err
		}
	}

	b := slurm.NewSbatchSettings(0, profile.Walltime, profile.Account)
	if len(profile.Partition) > 0 {
		b.SetPartition(profile.Partition)
	}
	var js core.JobScript
	if len(x.Script) > 0 {
		parsed, script, err := readScript(x.Script, func(f *os.File) (jobScript, core.JobScript, error) {
			return slurm.ParseDirectives(f)
		})
		if err != nil {
			return nil, js, err
		}
		b, js = parsed.(*slurm.SbatchSettings), script
	}
	b.Merge(overrides)
	return b, js, nil
}

// render builds the job script: directives, then the body of --script, then
// the command given on the command line.
func (x *BatchCommand) render(profile core.Profile, args []string) (string, error) {
	var b jobScript
	var js core.JobScript
	var directive string
	var err error
	switch profile.Launcher {
	case "lsf":
		b, js, err = x.bsub(profile)
		directive = lsf.Directive
	case "slurm":
		b, js, err = x.sbatch(profile)
		directive = slurm.Directive
	default:
		return "", errors.New("batch: the " + profile.Launcher + " launcher cannot submit job scripts")
	}
	if err != nil {
		return "", err
	}
	if err := applyRawArgs(b, x.Raw); err != nil {
		return "", fmt.Errorf("batch: %w", err)
	}
	body := scriptBody(js)
	if len(args) > 0 {
		body = append(body, settings.ShellJoin(args))
	}
	if len(body) == 0 {
		return "", errors.New("batch: nothing to run, give a command or --script")
	}
	shell := "/bin/bash"
	if len(x.Script) > 0 && len(js.Shell) > 0 {
		shell = js.Shell
	}
	return core.WriteJobScript(shell, directive, b.Directives(), body), nil
}

func (x *BatchCommand) Execute(args []string) error {
	if x.Help {
		return createHelpErr()
	}
	profile, err := x.resolve()
	if err != nil {
		return fmt.Errorf("batch: %w", err)
	}
	script, err := x.render(profile, args)
	if err != nil {
		return err
	}
	if x.DryRun {
		fmt.Fprint(stdout, script)
		return nil
	}
	l, err := newLauncher(profile.Launcher, commander)
	if err != nil {
		return err
	}
	name := x.JobName
	if len(name) == 0 {
		name = "batch"
	}
	h, err := l.Spawn(context.Background(), launcher.Step{Name: name, Script: script, OutputDir: x.OutputDir})
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, h.ID)
	return nil
}

func init() {
	parser.AddCommand("batch",
		"Submit a job script",
		"The batch command renders a job script with #SBATCH or #BSUB directives from the options, the profile and an optional existing script, then submits it: smartsim-hpc batch [options] -- command",
		&batchCommand)
}
