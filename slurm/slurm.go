package slurm

import (
	"strings"

	core "smartsim.io/smartsim-hpc/core"
	settings "smartsim.io/smartsim-hpc/settings"
)

// Slurm CLI commands
const (
	SRunName    = "srun"
	SBatchName  = "sbatch"
	SCancelName = "scancel"
	SQueueName  = "squeue"
	SAcctName   = "sacct"
	SInfoName   = "sinfo"
	Directive   = "SBATCH"
)

// SrunSettings configures an srun launch. The working directory is applied
// to the process, so chdir and its short form D are never formatted.
type SrunSettings struct {
	*settings.RunSettings
}

func NewSrunSettings(exe string, exeArgs []string) *SrunSettings {
	return &SrunSettings{settings.NewRunSettings(exe, exeArgs, SRunName, "D")}
}

func (s *SrunSettings) SetNodes(n int) {
	s.Set("nodes", settings.Int(n))
}

func (s *SrunSettings) SetTasks(n int) {
	s.Set("ntasks", settings.Int(n))
}

func (s *SrunSettings) SetTasksPerNode(n int) {
	s.Set("ntasks-per-node", settings.Int(n))
}

func (s *SrunSettings) SetCPUsPerTask(n int) {
	s.Set("cpus-per-task", settings.Int(n))
}

// SetHostlist sets --nodelist from a string or a list of strings.
func (s *SrunSettings) SetHostlist(hosts interface{}) error {
	list, err := settings.HostlistFromValue("srun: hostlist", hosts)
	if err != nil {
		return err
	}
	s.Set("nodelist", settings.String(strings.Join(list, ",")))
	return nil
}

// SetExcludedHosts sets --exclude from a string or a list of strings.
func (s *SrunSettings) SetExcludedHosts(hosts interface{}) error {
	list, err := settings.HostlistFromValue("srun: exclude", hosts)
	if err != nil {
		return err
	}
	s.Set("exclude", settings.String(strings.Join(list, ",")))
	return nil
}

// SetWalltime sets --time, HH:MM:SS.
func (s *SrunSettings) SetWalltime(walltime string) {
	s.Set("time", settings.String(walltime))
}

// SetAllocation runs the step inside an existing job with --jobid.
func (s *SrunSettings) SetAllocation(jobID string) {
	s.Set("jobid", settings.String(jobID))
}

// SbatchSettings configures an sbatch submission. Options are written with
// the GNU rules of srun: --long=value, -s value.
type SbatchSettings struct {
	*settings.BatchSettings
}

func NewSbatchSettings(nodes int, walltime, account string) *SbatchSettings {
	b := &SbatchSettings{settings.NewBatchSettings(SBatchName)}
	if nodes != 0 {
		b.SetNodes(nodes)
	}
	if len(walltime) > 0 {
		b.SetWalltime(walltime)
	}
	if len(account) > 0 {
		b.SetAccount(account)
	}
	return b
}

func (b *SbatchSettings) SetNodes(n int) {
	b.Set("nodes", settings.Int(n))
}

func (b *SbatchSettings) SetWalltime(walltime string) {
	b.Set("time", settings.String(walltime))
}

func (b *SbatchSettings) SetAccount(account string) {
	b.Set("account", settings.String(account))
}

func (b *SbatchSettings) SetPartition(partition string) {
	b.Set("partition", settings.String(partition))
}

func (b *SbatchSettings) SetCPUsPerTask(n int) {
	b.Set("cpus-per-task", settings.Int(n))
}

func (b *SbatchSettings) SetHostlist(hosts interface{}) error {
	list, err := settings.HostlistFromValue("sbatch: hostlist", hosts)
	if err != nil {
		return err
	}
	b.Set("nodelist", settings.String(strings.Join(list, ",")))
	return nil
}

func (b *SbatchSettings) FormatBatchArgs() []string {
	return settings.FormatLongBatchArgs(b.BatchArgs)
}

// Directives returns one "#SBATCH" line body per option; short options keep
// their value on the same line.
func (b *SbatchSettings) Directives() []string {
	var lines []string
	b.BatchArgs.Each(func(key string, v settings.Value) {
		one := settings.NewArgs()
		one.Set(key, v)
		lines = append(lines, strings.Join(settings.FormatLongBatchArgs(one), " "))
	})
	return lines
}

func (b *SbatchSettings) Script(commands [][]string) string {
	body := make([]string, 0, len(commands))
	for _, cmd := range commands {
		body = append(body, settings.ShellJoin(cmd))
	}
	return core.WriteJobScript("/bin/bash", Directive, b.Directives(), body)
}
