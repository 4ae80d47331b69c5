package experiment

import (
	"strconv"

	core "smartsim.io/smartsim-hpc/core"
	launcher "smartsim.io/smartsim-hpc/launcher"
	settings "smartsim.io/smartsim-hpc/settings"
)

// Entity types as reported in summaries
const (
	TypeModel        = "Model"
	TypeEnsemble     = "Ensemble"
	TypeOrchestrator = "Orchestrator"
)

const (
	DefaultDbExe  = "redis-server"
	DefaultDbPort = 6379
)

// Entity is something an experiment launches: a model, an ensemble of
// models or an orchestrator.
type Entity interface {
	Name() string
	Type() string
	// steps lists what to spawn, with ssdb exported to every step when set
	steps(ssdb string) []launcher.Step
}

// Model is a single simulation run.
type Model struct {
	name  string
	run   settings.Run
	batch settings.Batch
}

func (m *Model) Name() string { return m.name }

func (m *Model) Type() string { return TypeModel }

func (m *Model) RunSettings() settings.Run { return m.run }

// BatchSettings is nil for models run inside the current allocation.
func (m *Model) BatchSettings() settings.Batch { return m.batch }

func (m *Model) steps(ssdb string) []launcher.Step {
	return []launcher.Step{stepFor(m.name, m.run, m.batch, ssdb)}
}

// Ensemble is a set of replicas of one model. With batch settings the
// replicas share a single submission.
type Ensemble struct {
	name    string
	Members []*Model
	batch   settings.Batch
}

func (e *Ensemble) Name() string { return e.name }

func (e *Ensemble) Type() string { return TypeEnsemble }

func (e *Ensemble) steps(ssdb string) []launcher.Step {
	if e.batch != nil {
		commands := make([][]string, 0, len(e.Members))
		for _, m := range e.Members {
			commands = append(commands, command(m.run, ssdb))
		}
		return []launcher.Step{{
			Name:   e.name,
			Dir:    e.Members[0].run.WorkingDir(),
			Script: e.batch.Script(commands),
		}}
	}
	steps := make([]launcher.Step, 0, len(e.Members))
	for _, m := range e.Members {
		steps = append(steps, stepFor(m.name, m.run, nil, ssdb))
	}
	return steps
}

// Orchestrator is the database models exchange data through.
type Orchestrator struct {
	name      string
	Port      int
	DBNodes   int
	Interface string
	run       settings.Run
	batch     settings.Batch

	hosts []string
}

func (o *Orchestrator) Name() string { return o.name }

func (o *Orchestrator) Type() string { return TypeOrchestrator }

// Hosts is empty until the orchestrator has been started.
func (o *Orchestrator) Hosts() []string { return append([]string(nil), o.hosts...) }

// Addresses returns host:port for each database host.
func (o *Orchestrator) Addresses() []string {
	addrs := make([]string, 0, len(o.hosts))
	for _, h := range o.hosts {
		addrs = append(addrs, h+":"+strconv.Itoa(o.Port))
	}
	return addrs
}

func (o *Orchestrator) steps(string) []launcher.Step {
	return []launcher.Step{stepFor(o.name, o.run, o.batch, "")}
}

// command is the argument vector of run, behind env(1) when variables must
// reach a batch script.
func command(run settings.Run, ssdb string) []string {
	env := map[string]string{}
	for k, v := range run.Env() {
		env[k] = v
	}
	if len(ssdb) > 0 {
		env[core.EnvSSDB] = ssdb
	}
	cmd := settings.Command(run)
	if len(env) == 0 {
		return cmd
	}
	return append(append([]string{"env"}, settings.EnvList(env)...), cmd...)
}

func stepFor(name string, run settings.Run, batch settings.Batch, ssdb string) launcher.Step {
	if batch != nil {
		return launcher.Step{
			Name:   name,
			Dir:    run.WorkingDir(),
			Script: batch.Script([][]string{command(run, ssdb)}),
		}
	}
	env := settings.EnvList(run.Env())
	if len(ssdb) > 0 {
		env = append(env, core.EnvSSDB+"="+ssdb)
	}
	return launcher.Step{
		Name:    name,
		Command: settings.Command(run),
		Env:     env,
		Dir:     run.WorkingDir(),
	}
}
