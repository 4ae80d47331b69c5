package lsf

import (
	"strings"

	core "smartsim.io/smartsim-hpc/core"
	settings "smartsim.io/smartsim-hpc/settings"
)

const (
	RunCommand   = "jsrun"
	BatchCommand = "bsub"
	Directive    = "BSUB"
)

// JsrunSettings configures a jsrun launch on resource sets.
//
//	jsrun --nrs=4 --cpu_per_rs=ALL_CPUS --np=32 ./model
type JsrunSettings struct {
	*settings.RunSettings
}

func NewJsrunSettings(exe string, exeArgs []string) *JsrunSettings {
	return &JsrunSettings{settings.NewRunSettings(exe, exeArgs, RunCommand)}
}

// SetNumRS sets --nrs, a count or ALL_HOSTS.
func (s *JsrunSettings) SetNumRS(c settings.Count) {
	s.Set("nrs", c.Value())
}

// SetCPUsPerRS sets --cpu_per_rs, a count or ALL_CPUS.
func (s *JsrunSettings) SetCPUsPerRS(c settings.Count) {
	s.Set("cpu_per_rs", c.Value())
}

// SetGPUsPerRS sets --gpu_per_rs, a count or ALL_GPUS.
func (s *JsrunSettings) SetGPUsPerRS(c settings.Count) {
	s.Set("gpu_per_rs", c.Value())
}

func (s *JsrunSettings) SetRSPerHost(n int) {
	s.Set("rs_per_host", settings.Int(n))
}

func (s *JsrunSettings) SetTasks(n int) {
	s.Set("np", settings.Int(n))
}

func (s *JsrunSettings) SetTasksPerRS(n int) {
	s.Set("tasks_per_rs", settings.Int(n))
}

// SetBinding sets --bind (e.g. "rs", "packed:2", "none").
func (s *JsrunSettings) SetBinding(binding string) {
	s.Set("bind", settings.String(binding))
}

// BsubSettings configures a bsub submission. Walltime and project are kept
// out of the option mapping and only written to the generated script.
type BsubSettings struct {
	*settings.BatchSettings

	walltime *string
	project  *string
}

// NewBsubSettings returns settings with -nnodes set when nodes is non zero.
func NewBsubSettings(nodes int, walltime, project string) *BsubSettings {
	b := &BsubSettings{BatchSettings: settings.NewBatchSettings(BatchCommand)}
	if nodes != 0 {
		b.SetNodes(nodes)
	}
	b.SetWalltime(walltime)
	b.SetProject(project)
	return b
}

func (b *BsubSettings) SetNodes(n int) {
	b.Set("nnodes", settings.Int(n))
}

// SetHostlist sets -m from a string or a list of strings.
func (b *BsubSettings) SetHostlist(hosts interface{}) error {
	list, err := settings.HostlistFromValue("bsub: hostlist", hosts)
	if err != nil {
		return err
	}
	b.Set("m", settings.String(settings.QuoteHostlist(list)))
	return nil
}

// SetWalltime stores -W in hh:mm. An empty string leaves it unset and bsub
// reports the problem at submission.
func (b *BsubSettings) SetWalltime(walltime string) {
	b.walltime = optional(walltime)
}

// SetProject stores -P. An empty string leaves it unset.
func (b *BsubSettings) SetProject(project string) {
	b.project = optional(project)
}

func (b *BsubSettings) Walltime() (string, bool) {
	return deref(b.walltime)
}

func (b *BsubSettings) Project() (string, bool) {
	return deref(b.project)
}

func (b *BsubSettings) SetQueue(queue string) {
	b.Set("q", settings.String(queue))
}

func (b *BsubSettings) SetJobName(name string) {
	b.Set("J", settings.String(name))
}

func (b *BsubSettings) FormatBatchArgs() []string {
	return settings.FormatBatchArgs(b.BatchArgs)
}

// Directives returns the "#BSUB" line bodies: the formatted options followed
// by -W and -P when set.
func (b *BsubSettings) Directives() []string {
	directives := b.FormatBatchArgs()
	if w, ok := b.Walltime(); ok {
		directives = append(directives, "-W "+w)
	}
	if p, ok := b.Project(); ok {
		directives = append(directives, "-P "+p)
	}
	return directives
}

// Script renders a job script running each command in turn.
func (b *BsubSettings) Script(commands [][]string) string {
	body := make([]string, 0, len(commands))
	for _, cmd := range commands {
		body = append(body, settings.ShellJoin(cmd))
	}
	return core.WriteJobScript("/bin/bash", Directive, b.Directives(), body)
}

func optional(s string) *string {
	if s = strings.TrimSpace(s); len(s) == 0 {
		return nil
	}
	return &s
}

func deref(s *string) (string, bool) {
	if s == nil {
		return "", false
	}
	return *s, true
}
