package experiment

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"

	core "smartsim.io/smartsim-hpc/core"
	logger "smartsim.io/smartsim-hpc/logger"
	lsf "smartsim.io/smartsim-hpc/lsf"
	settings "smartsim.io/smartsim-hpc/settings"
	slurm "smartsim.io/smartsim-hpc/slurm"
)

// Launcher names accepted in experiment files and on the command line
const (
	LauncherLocal = "local"
	LauncherSlurm = "slurm"
	LauncherLSF   = "lsf"
)

// hclFile is the top-level structure of an experiment file.
type hclFile struct {
	Experiment    *hclExperiment     `hcl:"experiment,block"`
	Orchestrators []*hclOrchestrator `hcl:"orchestrator,block"`
	Models        []*hclModel        `hcl:"model,block"`
	Ensembles     []*hclEnsemble     `hcl:"ensemble,block"`
}

type hclExperiment struct {
	Name         string `hcl:"name,label"`
	Launcher     string `hcl:"launcher,optional"`
	PollInterval string `hcl:"poll_interval,optional"`
	ReadyTimeout string `hcl:"ready_timeout,optional"`
	OutputDir    string `hcl:"output_dir,optional"`
}

// hclRun holds run options of every launcher; each launcher rejects the
// ones it does not know.
type hclRun struct {
	NumRS        hcl.Expression `hcl:"nrs,optional"`
	CPUsPerRS    hcl.Expression `hcl:"cpu_per_rs,optional"`
	GPUsPerRS    hcl.Expression `hcl:"gpu_per_rs,optional"`
	RSPerHost    hcl.Expression `hcl:"rs_per_host,optional"`
	TasksPerRS   hcl.Expression `hcl:"tasks_per_rs,optional"`
	Binding      hcl.Expression `hcl:"bind,optional"`
	Tasks        hcl.Expression `hcl:"tasks,optional"`
	Nodes        hcl.Expression `hcl:"nodes,optional"`
	TasksPerNode hcl.Expression `hcl:"tasks_per_node,optional"`
	CPUsPerTask  hcl.Expression `hcl:"cpus_per_task,optional"`
	Hostlist     hcl.Expression `hcl:"hostlist,optional"`
	Exclude      hcl.Expression `hcl:"exclude,optional"`
	Time         hcl.Expression `hcl:"time,optional"`
	Chdir        hcl.Expression `hcl:"chdir,optional"`
	Args         hcl.Expression `hcl:"args,optional"`
}

type hclBatch struct {
	Nodes       hcl.Expression `hcl:"nodes,optional"`
	Time        hcl.Expression `hcl:"time,optional"`
	Project     hcl.Expression `hcl:"project,optional"`
	Account     hcl.Expression `hcl:"account,optional"`
	Partition   hcl.Expression `hcl:"partition,optional"`
	Queue       hcl.Expression `hcl:"queue,optional"`
	JobName     hcl.Expression `hcl:"job_name,optional"`
	CPUsPerTask hcl.Expression `hcl:"cpus_per_task,optional"`
	Hostlist    hcl.Expression `hcl:"hostlist,optional"`
	Args        hcl.Expression `hcl:"args,optional"`
}

type hclModel struct {
	Name    string            `hcl:"name,label"`
	Exe     string            `hcl:"exe"`
	ExeArgs []string          `hcl:"exe_args,optional"`
	Env     map[string]string `hcl:"env,optional"`
	Block   *bool             `hcl:"block,optional"`
	Run     *hclRun           `hcl:"run,block"`
	Batch   *hclBatch         `hcl:"batch,block"`
}

type hclEnsemble struct {
	Name     string            `hcl:"name,label"`
	Replicas int               `hcl:"replicas"`
	Exe      string            `hcl:"exe"`
	ExeArgs  []string          `hcl:"exe_args,optional"`
	Env      map[string]string `hcl:"env,optional"`
	Block    *bool             `hcl:"block,optional"`
	Run      *hclRun           `hcl:"run,block"`
	Batch    *hclBatch         `hcl:"batch,block"`
}

type hclOrchestrator struct {
	Name      string         `hcl:"name,label"`
	Port      int            `hcl:"port,optional"`
	DBNodes   hcl.Expression `hcl:"db_nodes,optional"`
	Interface string         `hcl:"interface,optional"`
	Exe       string         `hcl:"exe,optional"`
	ExeArgs   []string       `hcl:"exe_args,optional"`
	Run       *hclRun        `hcl:"run,block"`
	Batch     *hclBatch      `hcl:"batch,block"`
}

// ModelSpec is a model or ensemble read from a file, ready to be created.
type ModelSpec struct {
	Name     string
	Replicas int
	Run      settings.Run
	Batch    settings.Batch
	Block    bool
}

// File is a decoded experiment file.
type File struct {
	Name          string
	Launcher      string
	PollInterval  time.Duration
	ReadyTimeout  time.Duration
	OutputDir     string
	Orchestrators []OrchestratorConfig
	Models        []ModelSpec
	Ensembles     []ModelSpec
}

// evalContext exposes the process environment as env.NAME.
func evalContext() *hcl.EvalContext {
	env := map[string]cty.Value{}
	for k, v := range core.Environ() {
		env[k] = cty.StringVal(v)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"env": cty.ObjectVal(env),
		},
	}
}

// LoadFile parses and decodes an experiment file. The profile supplies the
// launcher when the file names none, and defaults for orchestrator and batch
// blocks.
func LoadFile(path string, defaults core.Profile) (*File, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	return decodeFile(f.Body, path, defaults)
}

// Parse decodes an experiment from source held in memory.
func Parse(src []byte, filename string, defaults core.Profile) (*File, error) {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file %s: %w", filename, diags)
	}
	return decodeFile(f.Body, filename, defaults)
}

func decodeFile(body hcl.Body, filename string, defaults core.Profile) (*File, error) {
	ctx := evalContext()
	var parsed hclFile
	if diags := gohcl.DecodeBody(body, ctx, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, diags)
	}
	if parsed.Experiment == nil {
		return nil, fmt.Errorf("%s: missing experiment block", filename)
	}

	file := &File{
		Name:         parsed.Experiment.Name,
		Launcher:     parsed.Experiment.Launcher,
		PollInterval: DefaultPollInterval,
		OutputDir:    parsed.Experiment.OutputDir,
	}
	if len(file.Launcher) == 0 {
		file.Launcher = defaults.Launcher
	}
	if len(file.Launcher) == 0 {
		file.Launcher = LauncherLocal
	}
	switch file.Launcher {
	case LauncherLocal, LauncherSlurm, LauncherLSF:
	default:
		return nil, fmt.Errorf("%s: unknown launcher %q", filename, file.Launcher)
	}
	if len(parsed.Experiment.PollInterval) > 0 {
		d, err := time.ParseDuration(parsed.Experiment.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("%s: poll_interval: %w", filename, err)
		}
		file.PollInterval = d
	}
	if len(parsed.Experiment.ReadyTimeout) > 0 {
		d, err := time.ParseDuration(parsed.Experiment.ReadyTimeout)
		if err != nil {
			return nil, fmt.Errorf("%s: ready_timeout: %w", filename, err)
		}
		file.ReadyTimeout = d
	}

	dec := &decoder{ctx: ctx, launcher: file.Launcher, defaults: defaults}
	for _, o := range parsed.Orchestrators {
		file.Orchestrators = append(file.Orchestrators, dec.orchestrator(o))
	}
	for _, m := range parsed.Models {
		file.Models = append(file.Models, dec.model(m.Name, 1, m.Exe, m.ExeArgs, m.Env, m.Block, m.Run, m.Batch))
	}
	for _, e := range parsed.Ensembles {
		file.Ensembles = append(file.Ensembles, dec.model(e.Name, e.Replicas, e.Exe, e.ExeArgs, e.Env, e.Block, e.Run, e.Batch))
	}
	if dec.diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL file %s: %w", filename, dec.diags)
	}
	return file, nil
}

// decoder evaluates launcher specific blocks, collecting diagnostics.
type decoder struct {
	ctx      *hcl.EvalContext
	launcher string
	defaults core.Profile
	diags    hcl.Diagnostics
}

func (d *decoder) errorf(rng hcl.Range, summary, format string, a ...interface{}) {
	r := rng
	d.diags = append(d.diags, &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   fmt.Sprintf(format, a...),
		Subject:  &r,
	})
}

// value evaluates expr, false when the attribute is absent or null.
func (d *decoder) value(expr hcl.Expression) (cty.Value, bool) {
	if expr == nil {
		return cty.NilVal, false
	}
	v, diags := expr.Value(d.ctx)
	d.diags = append(d.diags, diags...)
	if diags.HasErrors() || v.IsNull() || !v.IsWhollyKnown() {
		return cty.NilVal, false
	}
	return v, true
}

func (d *decoder) int(expr hcl.Expression, name string) (int, bool) {
	v, ok := d.value(expr)
	if !ok {
		return 0, false
	}
	num, err := convert.Convert(v, cty.Number)
	var n int
	if err == nil {
		err = gocty.FromCtyValue(num, &n)
	}
	if err != nil {
		d.errorf(expr.Range(), "Invalid "+name, "%s must be a whole number: %s", name, err)
		return 0, false
	}
	return n, true
}

func (d *decoder) string(expr hcl.Expression, name string) (string, bool) {
	v, ok := d.value(expr)
	if !ok {
		return "", false
	}
	s, err := convert.Convert(v, cty.String)
	if err != nil {
		d.errorf(expr.Range(), "Invalid "+name, "%s must be a string: %s", name, err)
		return "", false
	}
	return s.AsString(), true
}

func (d *decoder) stringOr(expr hcl.Expression, name, def string) string {
	if s, ok := d.string(expr, name); ok {
		return s
	}
	return def
}

// count reads a number or a sentinel such as "ALL_CPUS".
func (d *decoder) count(expr hcl.Expression, name string) (settings.Count, bool) {
	v, ok := d.value(expr)
	if !ok {
		return settings.Count{}, false
	}
	switch v.Type() {
	case cty.Number:
		n, ok := d.int(expr, name)
		return settings.Numeric(n), ok
	case cty.String:
		c := settings.ParseCount(v.AsString())
		if c.IsSentinel() && !settings.IsKnownSentinel(c.String()) {
			logger.WarningPrintf("%s: %s: unknown sentinel %q passed through", expr.Range(), name, c.String())
		}
		return c, true
	default:
		d.errorf(expr.Range(), "Invalid "+name, "%s must be a number or a sentinel string", name)
		return settings.Count{}, false
	}
}

// hosts reads a host name or a list of host names.
func (d *decoder) hosts(expr hcl.Expression, setter string) (interface{}, bool) {
	v, ok := d.value(expr)
	if !ok {
		return nil, false
	}
	native, err := ctyToNative(v)
	if err != nil {
		d.errorf(expr.Range(), "Invalid host list", "%s", err)
		return nil, false
	}
	if _, err := settings.HostlistFromValue(setter, native); err != nil {
		d.errorf(expr.Range(), "Invalid host list", "%s", err)
		return nil, false
	}
	return native, true
}

// args reads an object of raw options, keeping source order. A null or true
// value is a bare flag and false leaves the option out.
func (d *decoder) args(expr hcl.Expression) *settings.Args {
	args := settings.NewArgs()
	if _, ok := d.value(expr); !ok {
		return args
	}
	pairs, diags := hcl.ExprMap(expr)
	d.diags = append(d.diags, diags...)
	for _, pair := range pairs {
		key, ok := d.string(pair.Key, "args key")
		if !ok {
			continue
		}
		v, diags := pair.Value.Value(d.ctx)
		d.diags = append(d.diags, diags...)
		if diags.HasErrors() {
			continue
		}
		switch {
		case v.IsNull():
			args.Set(key, settings.None())
		case v.Type() == cty.Bool:
			if v.True() {
				args.Set(key, settings.None())
			}
		case v.Type() == cty.Number:
			if n, ok := d.int(pair.Value, key); ok {
				args.Set(key, settings.Int(n))
			}
		case v.Type() == cty.String:
			args.Set(key, settings.String(v.AsString()))
		default:
			d.errorf(pair.Value.Range(), "Invalid argument", "%s must be a number, a string, a bool or null", key)
		}
	}
	return args
}

// unsupported reports attributes set in a block the launcher cannot use.
func (d *decoder) unsupported(block string, attrs map[string]hcl.Expression) {
	for name, expr := range attrs {
		if _, set := d.value(expr); set {
			d.errorf(expr.Range(), "Unsupported argument",
				"%s.%s is not supported by the %s launcher", block, name, d.launcher)
		}
	}
}

func (d *decoder) runSettings(exe string, exeArgs []string, run *hclRun) (settings.Run, *settings.RunSettings) {
	if run == nil {
		run = &hclRun{}
	}
	switch d.launcher {
	case LauncherLSF:
		s := lsf.NewJsrunSettings(exe, exeArgs)
		if c, ok := d.count(run.NumRS, "nrs"); ok {
			s.SetNumRS(c)
		}
		if c, ok := d.count(run.CPUsPerRS, "cpu_per_rs"); ok {
			s.SetCPUsPerRS(c)
		}
		if c, ok := d.count(run.GPUsPerRS, "gpu_per_rs"); ok {
			s.SetGPUsPerRS(c)
		}
		if n, ok := d.int(run.RSPerHost, "rs_per_host"); ok {
			s.SetRSPerHost(n)
		}
		if n, ok := d.int(run.Tasks, "tasks"); ok {
			s.SetTasks(n)
		}
		if n, ok := d.int(run.TasksPerRS, "tasks_per_rs"); ok {
			s.SetTasksPerRS(n)
		}
		if b, ok := d.string(run.Binding, "bind"); ok {
			s.SetBinding(b)
		}
		d.unsupported("run", map[string]hcl.Expression{
			"nodes": run.Nodes, "tasks_per_node": run.TasksPerNode, "cpus_per_task": run.CPUsPerTask,
			"hostlist": run.Hostlist, "exclude": run.Exclude, "time": run.Time,
		})
		d.common(s.RunSettings, run)
		return s, s.RunSettings
	case LauncherSlurm:
		s := slurm.NewSrunSettings(exe, exeArgs)
		if n, ok := d.int(run.Nodes, "nodes"); ok {
			s.SetNodes(n)
		}
		if n, ok := d.int(run.Tasks, "tasks"); ok {
			s.SetTasks(n)
		}
		if n, ok := d.int(run.TasksPerNode, "tasks_per_node"); ok {
			s.SetTasksPerNode(n)
		}
		if n, ok := d.int(run.CPUsPerTask, "cpus_per_task"); ok {
			s.SetCPUsPerTask(n)
		}
		if h, ok := d.hosts(run.Hostlist, "srun: hostlist"); ok {
			if err := s.SetHostlist(h); err != nil {
				d.errorf(run.Hostlist.Range(), "Invalid hostlist", "%v", err)
			}
		}
		if h, ok := d.hosts(run.Exclude, "srun: exclude"); ok {
			if err := s.SetExcludedHosts(h); err != nil {
				d.errorf(run.Exclude.Range(), "Invalid exclude", "%v", err)
			}
		}
		if t, ok := d.string(run.Time, "time"); ok {
			s.SetWalltime(t)
		}
		d.unsupported("run", map[string]hcl.Expression{
			"nrs": run.NumRS, "cpu_per_rs": run.CPUsPerRS, "gpu_per_rs": run.GPUsPerRS,
			"rs_per_host": run.RSPerHost, "tasks_per_rs": run.TasksPerRS, "bind": run.Binding,
		})
		d.common(s.RunSettings, run)
		return s, s.RunSettings
	default:
		s := settings.NewRunSettings(exe, exeArgs, "")
		d.unsupported("run", map[string]hcl.Expression{
			"nrs": run.NumRS, "cpu_per_rs": run.CPUsPerRS, "gpu_per_rs": run.GPUsPerRS,
			"rs_per_host": run.RSPerHost, "tasks_per_rs": run.TasksPerRS, "bind": run.Binding,
			"tasks": run.Tasks, "nodes": run.Nodes, "tasks_per_node": run.TasksPerNode,
			"cpus_per_task": run.CPUsPerTask, "hostlist": run.Hostlist, "exclude": run.Exclude,
			"time": run.Time, "args": run.Args,
		})
		if dir, ok := d.string(run.Chdir, "chdir"); ok {
			s.SetWorkingDir(dir)
		}
		return s, s
	}
}

// common applies chdir and raw args, which every run command accepts.
func (d *decoder) common(s *settings.RunSettings, run *hclRun) {
	if dir, ok := d.string(run.Chdir, "chdir"); ok {
		s.SetWorkingDir(dir)
	}
	d.args(run.Args).Each(func(key string, v settings.Value) {
		s.Set(key, v)
	})
}

func (d *decoder) batchSettings(b *hclBatch) settings.Batch {
	if b == nil {
		return nil
	}
	switch d.launcher {
	case LauncherLSF:
		nodes, _ := d.int(b.Nodes, "nodes")
		walltime := d.stringOr(b.Time, "time", d.defaults.Walltime)
		project := d.stringOr(b.Project, "project", d.defaults.Project)
		s := lsf.NewBsubSettings(nodes, walltime, project)
		if q := d.stringOr(b.Queue, "queue", d.defaults.Queue); len(q) > 0 {
			s.SetQueue(q)
		}
		if name, ok := d.string(b.JobName, "job_name"); ok {
			s.SetJobName(name)
		}
		if h, ok := d.hosts(b.Hostlist, "bsub: hostlist"); ok {
			if err := s.SetHostlist(h); err != nil {
				d.errorf(b.Hostlist.Range(), "Invalid hostlist", "%v", err)
			}
		}
		d.unsupported("batch", map[string]hcl.Expression{
			"account": b.Account, "partition": b.Partition, "cpus_per_task": b.CPUsPerTask,
		})
		d.args(b.Args).Each(func(key string, v settings.Value) {
			s.Set(key, v)
		})
		return s
	case LauncherSlurm:
		nodes, _ := d.int(b.Nodes, "nodes")
		walltime := d.stringOr(b.Time, "time", d.defaults.Walltime)
		account := d.stringOr(b.Account, "account", d.defaults.Account)
		s := slurm.NewSbatchSettings(nodes, walltime, account)
		if p := d.stringOr(b.Partition, "partition", d.defaults.Partition); len(p) > 0 {
			s.SetPartition(p)
		}
		if name, ok := d.string(b.JobName, "job_name"); ok {
			s.Set("job-name", settings.String(name))
		}
		if n, ok := d.int(b.CPUsPerTask, "cpus_per_task"); ok {
			s.SetCPUsPerTask(n)
		}
		if h, ok := d.hosts(b.Hostlist, "sbatch: hostlist"); ok {
			if err := s.SetHostlist(h); err != nil {
				d.errorf(b.Hostlist.Range(), "Invalid hostlist", "%v", err)
			}
		}
		d.unsupported("batch", map[string]hcl.Expression{
			"project": b.Project, "queue": b.Queue,
		})
		d.args(b.Args).Each(func(key string, v settings.Value) {
			s.Set(key, v)
		})
		return s
	default:
		d.diags = append(d.diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Unsupported block",
			Detail:   "batch blocks need the slurm or lsf launcher",
		})
		return nil
	}
}

func (d *decoder) model(name string, replicas int, exe string, exeArgs []string, env map[string]string, block *bool, run *hclRun, batch *hclBatch) ModelSpec {
	r, base := d.runSettings(exe, exeArgs, run)
	for k, v := range env {
		base.SetEnv(k, v)
	}
	return ModelSpec{
		Name:     name,
		Replicas: replicas,
		Run:      r,
		Batch:    d.batchSettings(batch),
		Block:    block == nil || *block,
	}
}

func (d *decoder) orchestrator(o *hclOrchestrator) OrchestratorConfig {
	cfg := OrchestratorConfig{
		Name:      o.Name,
		Port:      o.Port,
		DBNodes:   1,
		Interface: o.Interface,
		Exe:       o.Exe,
		ExeArgs:   o.ExeArgs,
	}
	if cfg.Port == 0 {
		cfg.Port = d.defaults.DbPort
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultDbPort
	}
	if len(cfg.Interface) == 0 {
		cfg.Interface = d.defaults.Interface
	}
	if len(cfg.Exe) == 0 {
		cfg.Exe = DefaultDbExe
	}
	if d.launcher != LauncherLocal || o.Run != nil {
		cfg.Run, _ = d.runSettings(cfg.Exe, DbCommandArgs(cfg.Port, cfg.ExeArgs), o.Run)
	}
	cfg.Batch = d.batchSettings(o.Batch)
	if n, ok := d.int(o.DBNodes, "db_nodes"); ok {
		if n < 1 {
			d.errorf(o.DBNodes.Range(), "Invalid db_nodes", "orchestrator %s: db_nodes must be at least 1, got %d", o.Name, n)
		} else if err := spreadDatabase(cfg.Run, cfg.Batch, n); err != nil {
			d.errorf(o.DBNodes.Range(), "Invalid db_nodes", "orchestrator %s: %v", o.Name, err)
		} else {
			cfg.DBNodes = n
		}
	}
	return cfg
}

// ctyToNative converts strings and lists of values for host list checks.
// Numbers stay numbers so that type errors name them.
func ctyToNative(v cty.Value) (interface{}, error) {
	ty := v.Type()
	switch {
	case v.IsNull():
		return nil, nil
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Number:
		f, _ := v.AsBigFloat().Float64()
		if v.AsBigFloat().IsInt() {
			i, _ := v.AsBigFloat().Int(new(big.Int))
			return int(i.Int64()), nil
		}
		return f, nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		list := make([]interface{}, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, err
			}
			list = append(list, native)
		}
		return list, nil
	default:
		return nil, errors.New("unsupported value of type " + ty.FriendlyName())
	}
}

// Build creates the experiment entities of f on l.
func (f *File) Build(l LauncherFactory, opts ...Option) (*Experiment, Plan, error) {
	lnch, err := l(f.Launcher)
	if err != nil {
		return nil, Plan{}, err
	}
	if len(f.OutputDir) > 0 {
		opts = append([]Option{WithOutputDir(f.OutputDir)}, opts...)
	}
	if f.ReadyTimeout > 0 {
		opts = append([]Option{WithReadyTimeout(f.ReadyTimeout)}, opts...)
	}
	exp, err := New(f.Name, lnch, opts...)
	if err != nil {
		return nil, Plan{}, err
	}
	plan := Plan{PollInterval: f.PollInterval}
	for _, cfg := range f.Orchestrators {
		o, err := exp.CreateDatabase(cfg)
		if err != nil {
			return nil, Plan{}, err
		}
		plan.Orchestrators = append(plan.Orchestrators, o)
	}
	add := func(spec ModelSpec, entity Entity) {
		if spec.Block {
			plan.Entities = append(plan.Entities, entity)
		} else {
			plan.Background = append(plan.Background, entity)
		}
	}
	for _, spec := range f.Models {
		m, err := exp.CreateModel(spec.Name, spec.Run, spec.Batch)
		if err != nil {
			return nil, Plan{}, err
		}
		add(spec, m)
	}
	for _, spec := range f.Ensembles {
		ens, err := exp.CreateEnsemble(spec.Name, spec.Replicas, spec.Run, spec.Batch)
		if err != nil {
			return nil, Plan{}, err
		}
		add(spec, ens)
	}
	return exp, plan, nil
}

// Describe lists the command line or batch script of every entity, the way
// they would be launched without an orchestrator address.
func (f *File) Describe() []string {
	var lines []string
	describe := func(kind, name string, run settings.Run, batch settings.Batch) {
		if batch != nil {
			lines = append(lines, fmt.Sprintf("%s %s: %s", kind, name, strings.Join(batch.FormatBatchArgs(), " ")))
		}
		lines = append(lines, fmt.Sprintf("%s %s: %s", kind, name, settings.ShellJoin(settings.Command(run))))
	}
	for _, o := range f.Orchestrators {
		run := o.Run
		if run == nil {
			run = settings.NewRunSettings(o.Exe, DbCommandArgs(o.Port, o.ExeArgs), "")
		}
		describe(TypeOrchestrator, o.Name, run, o.Batch)
	}
	for _, m := range f.Models {
		describe(TypeModel, m.Name, m.Run, m.Batch)
	}
	for _, e := range f.Ensembles {
		describe(TypeEnsemble, fmt.Sprintf("%s[%d]", e.Name, e.Replicas), e.Run, e.Batch)
	}
	return lines
}
