package experiment

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	launcher "smartsim.io/smartsim-hpc/launcher"
	ledger "smartsim.io/smartsim-hpc/ledger"
	logger "smartsim.io/smartsim-hpc/logger"
	settings "smartsim.io/smartsim-hpc/settings"
)

var (
	ErrNotStarted = errors.New("experiment: entity not started")
	ErrDuplicate  = errors.New("experiment: duplicate entity name")
	ErrFailed     = errors.New("experiment: entities failed")
)

const (
	DefaultPollInterval = 5 * time.Second
	DefaultReadyTimeout = 60 * time.Second
)

// job is one spawned step and its latest known result.
type job struct {
	entity   Entity
	step     launcher.Step
	handle   launcher.Handle
	result   launcher.Result
	runID    int
	ledgerID string
}

// Experiment launches entities on one launcher and tracks them to
// completion.
type Experiment struct {
	name       string
	launcher   launcher.Launcher
	ledger     *ledger.Ledger
	ownsLedger bool

	dir          string
	readyTimeout time.Duration
	ping         func(ctx context.Context, addr string) error

	mu       sync.Mutex
	entities map[string]Entity
	jobs     map[string][]*job
	runs     int
	ssdb     []string
}

type Option func(*Experiment)

// WithLedger records launches in l instead of a private in-memory ledger.
func WithLedger(l *ledger.Ledger) Option {
	return func(e *Experiment) { e.ledger = l }
}

// WithOutputDir writes each step's output under dir/<entity>.
func WithOutputDir(dir string) Option {
	return func(e *Experiment) { e.dir = dir }
}

// WithReadyTimeout bounds the wait for a running orchestrator to answer PING.
func WithReadyTimeout(d time.Duration) Option {
	return func(e *Experiment) { e.readyTimeout = d }
}

// WithPinger replaces the Redis PING used to check orchestrator readiness.
func WithPinger(ping func(ctx context.Context, addr string) error) Option {
	return func(e *Experiment) { e.ping = ping }
}

func New(name string, l launcher.Launcher, opts ...Option) (*Experiment, error) {
	if len(name) == 0 {
		return nil, errors.New("experiment: name required")
	}
	if l == nil {
		return nil, errors.New("experiment: launcher required")
	}
	e := &Experiment{
		name:         name,
		launcher:     l,
		readyTimeout: DefaultReadyTimeout,
		ping:         redisPing,
		entities:     map[string]Entity{},
		jobs:         map[string][]*job{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.ledger == nil {
		db, err := ledger.Open(ledger.Memory)
		if err != nil {
			return nil, err
		}
		e.ledger = db
		e.ownsLedger = true
	}
	return e, nil
}

func (e *Experiment) Name() string { return e.name }

func (e *Experiment) Launcher() launcher.Launcher { return e.launcher }

// Close releases the private ledger, if any.
func (e *Experiment) Close() error {
	if e.ownsLedger {
		return e.ledger.Close()
	}
	return nil
}

func (e *Experiment) register(entity Entity) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.entities[entity.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, entity.Name())
	}
	e.entities[entity.Name()] = entity
	return nil
}

// Entity returns a created entity by name.
func (e *Experiment) Entity(name string) (Entity, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entity, ok := e.entities[name]
	return entity, ok
}

// CreateModel registers a model. batch may be nil.
func (e *Experiment) CreateModel(name string, run settings.Run, batch settings.Batch) (*Model, error) {
	if run == nil {
		return nil, fmt.Errorf("experiment: model %s: run settings required", name)
	}
	m := &Model{name: name, run: run, batch: batch}
	if err := e.register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// CreateEnsemble registers replicas copies of one model, named <name>_<i>.
func (e *Experiment) CreateEnsemble(name string, replicas int, run settings.Run, batch settings.Batch) (*Ensemble, error) {
	if run == nil {
		return nil, fmt.Errorf("experiment: ensemble %s: run settings required", name)
	}
	if replicas < 1 {
		return nil, fmt.Errorf("experiment: ensemble %s: replicas must be positive, got %d", name, replicas)
	}
	ens := &Ensemble{name: name, batch: batch}
	for i := 0; i < replicas; i++ {
		ens.Members = append(ens.Members, &Model{name: name + "_" + strconv.Itoa(i), run: run})
	}
	if err := e.register(ens); err != nil {
		return nil, err
	}
	return ens, nil
}

// OrchestratorConfig describes the database. Without Run a plain local
// "redis-server --port N" is launched. DBNodes above one places a server on
// each node and needs srun or jsrun run settings.
type OrchestratorConfig struct {
	Name      string
	Port      int
	DBNodes   int
	Interface string
	Exe       string
	ExeArgs   []string
	Run       settings.Run
	Batch     settings.Batch
}

// DbCommandArgs are the database server arguments for port and any extras.
func DbCommandArgs(port int, extra []string) []string {
	return append([]string{"--port", strconv.Itoa(port)}, extra...)
}

func (e *Experiment) CreateDatabase(cfg OrchestratorConfig) (*Orchestrator, error) {
	if len(cfg.Name) == 0 {
		cfg.Name = "orchestrator"
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultDbPort
	}
	if cfg.DBNodes == 0 {
		cfg.DBNodes = 1
	}
	if len(cfg.Exe) == 0 {
		cfg.Exe = DefaultDbExe
	}
	run := cfg.Run
	if run == nil {
		run = settings.NewRunSettings(cfg.Exe, DbCommandArgs(cfg.Port, cfg.ExeArgs), "")
	}
	if err := spreadDatabase(run, cfg.Batch, cfg.DBNodes); err != nil {
		return nil, fmt.Errorf("experiment: orchestrator %s: %w", cfg.Name, err)
	}
	o := &Orchestrator{
		name:      cfg.Name,
		Port:      cfg.Port,
		DBNodes:   cfg.DBNodes,
		Interface: cfg.Interface,
		run:       run,
		batch:     cfg.Batch,
	}
	if err := e.register(o); err != nil {
		return nil, err
	}
	return o, nil
}

// orchestratorsFirst orders entities so databases start before models.
func orchestratorsFirst(entities []Entity) []Entity {
	sorted := append([]Entity(nil), entities...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Type() == TypeOrchestrator && sorted[j].Type() != TypeOrchestrator
	})
	return sorted
}

// Start launches entities, orchestrators first. Once an orchestrator answers
// its address is exported as SSDB to every model started after it. With
// block set Start polls the started models until they finish.
func (e *Experiment) Start(ctx context.Context, block bool, entities ...Entity) error {
	e.mu.Lock()
	e.runs++
	runID := e.runs
	e.mu.Unlock()

	var started []Entity
	for _, entity := range orchestratorsFirst(entities) {
		if _, ok := e.Entity(entity.Name()); !ok {
			if err := e.register(entity); err != nil {
				return err
			}
		}
		if err := e.launch(ctx, runID, entity); err != nil {
			return err
		}
		if o, ok := entity.(*Orchestrator); ok {
			if err := e.waitReady(ctx, o); err != nil {
				return err
			}
			continue
		}
		started = append(started, entity)
	}
	if block && len(started) > 0 {
		return e.Poll(ctx, DefaultPollInterval, started...)
	}
	return nil
}

func (e *Experiment) launch(ctx context.Context, runID int, entity Entity) error {
	e.mu.Lock()
	ssdb := strings.Join(e.ssdb, ",")
	e.jobs[entity.Name()] = []*job{}
	e.mu.Unlock()

	for _, step := range entity.steps(ssdb) {
		if len(e.dir) > 0 {
			step.OutputDir = filepath.Join(e.dir, entity.Name())
		}
		h, err := e.launcher.Spawn(ctx, step)
		if err != nil {
			return fmt.Errorf("experiment: start %s: %w", step.Name, err)
		}
		j := &job{
			entity: entity,
			step:   step,
			handle: h,
			result: launcher.Result{Status: launcher.StatusNew, ReturnCode: launcher.NoReturnCode},
			runID:  runID,
		}
		e.mu.Lock()
		e.jobs[entity.Name()] = append(e.jobs[entity.Name()], j)
		e.mu.Unlock()
		j.ledgerID, err = e.ledger.Record(ctx, ledger.Launch{
			Experiment: e.name,
			Name:       step.Name,
			EntityType: entity.Type(),
			RunID:      runID,
			Launcher:   e.launcher.Name(),
			JobID:      h.ID,
			Status:     j.result.Status,
			ReturnCode: j.result.ReturnCode,
		})
		if err != nil {
			return err
		}
		logger.Event(logger.HPC_INFO_LOGGING, "launched",
			"experiment", e.name, "entity", step.Name, "type", entity.Type(), "job", h.ID, "launcher", e.launcher.Name())
	}
	return nil
}

func (e *Experiment) jobsOf(entities []Entity) ([]*job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	var jobs []*job
	for _, entity := range entities {
		js, ok := e.jobs[entity.Name()]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotStarted, entity.Name())
		}
		jobs = append(jobs, js...)
	}
	return jobs, nil
}

// refresh polls j once, logging and recording a change of status.
func (e *Experiment) refresh(ctx context.Context, j *job) (launcher.Result, error) {
	e.mu.Lock()
	prev := j.result
	e.mu.Unlock()
	if prev.Status.Terminal() {
		return prev, nil
	}
	res, err := e.launcher.Poll(ctx, j.handle)
	if err != nil {
		return prev, fmt.Errorf("experiment: poll %s: %w", j.step.Name, err)
	}
	if res == prev {
		return res, nil
	}
	e.mu.Lock()
	j.result = res
	e.mu.Unlock()
	logger.Event(logger.HPC_INFO_LOGGING, "status",
		"experiment", e.name, "entity", j.step.Name, "from", prev.Status.String(), "to", res.Status.String())
	if err := e.ledger.Update(ctx, j.ledgerID, res); err != nil {
		logger.WarningPrintf("%v", err)
	}
	return res, nil
}

// Poll refreshes entities every interval until all have finished.
func (e *Experiment) Poll(ctx context.Context, interval time.Duration, entities ...Entity) error {
	jobs, err := e.jobsOf(entities)
	if err != nil {
		return err
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		done := true
		for _, j := range jobs {
			res, err := e.refresh(ctx, j)
			if err != nil {
				return err
			}
			if !res.Status.Terminal() {
				done = false
			}
		}
		if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// GetStatus returns the current status of every step of entities, in order.
func (e *Experiment) GetStatus(ctx context.Context, entities ...Entity) ([]launcher.Status, error) {
	jobs, err := e.jobsOf(entities)
	if err != nil {
		return nil, err
	}
	statuses := make([]launcher.Status, 0, len(jobs))
	for _, j := range jobs {
		res, err := e.refresh(ctx, j)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, res.Status)
	}
	return statuses, nil
}

// Finished reports whether every step of entities reached a terminal status.
func (e *Experiment) Finished(ctx context.Context, entities ...Entity) (bool, error) {
	statuses, err := e.GetStatus(ctx, entities...)
	if err != nil {
		return false, err
	}
	for _, s := range statuses {
		if !s.Terminal() {
			return false, nil
		}
	}
	return true, nil
}

// Stop ends every unfinished step of entities.
func (e *Experiment) Stop(ctx context.Context, entities ...Entity) error {
	jobs, err := e.jobsOf(entities)
	if err != nil {
		return err
	}
	var errs []error
	for _, j := range jobs {
		e.mu.Lock()
		terminal := j.result.Status.Terminal()
		e.mu.Unlock()
		if terminal {
			continue
		}
		if err := e.launcher.Stop(ctx, j.handle); err != nil {
			errs = append(errs, fmt.Errorf("experiment: stop %s: %w", j.step.Name, err))
			continue
		}
		logger.InfoPrintf("experiment: stopped %s", j.step.Name)
		if _, err := e.refresh(ctx, j); err != nil {
			errs = append(errs, err)
		}
	}
	for _, entity := range entities {
		if o, ok := entity.(*Orchestrator); ok {
			e.forget(o)
		}
	}
	return errors.Join(errs...)
}

// started filters entities down to those launched.
func (e *Experiment) started(entities []Entity) []Entity {
	e.mu.Lock()
	defer e.mu.Unlock()
	var ret []Entity
	for _, entity := range entities {
		if _, ok := e.jobs[entity.Name()]; ok {
			ret = append(ret, entity)
		}
	}
	return ret
}

// failed lists the steps of entities that ended in failure.
func (e *Experiment) failed(entities []Entity) []string {
	jobs, err := e.jobsOf(entities)
	if err != nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	var names []string
	for _, j := range jobs {
		if j.result.Status == launcher.StatusFailed {
			names = append(names, j.step.Name)
		}
	}
	return names
}

// Plan is the usual experiment sequence: databases, then models.
type Plan struct {
	Orchestrators []*Orchestrator
	Entities      []Entity
	// Background entities are started with Entities but not waited for.
	// They are stopped once Entities are done.
	Background   []Entity
	PollInterval time.Duration
	// StopTimeout bounds the database shutdown once models are done
	StopTimeout time.Duration
}

// Run starts the databases, starts and polls the models, then stops the
// background models and the databases. Those are stopped even when a model
// fails or ctx ends.
func (e *Experiment) Run(ctx context.Context, plan Plan) (err error) {
	dbs := make([]Entity, 0, len(plan.Orchestrators))
	for _, o := range plan.Orchestrators {
		dbs = append(dbs, o)
	}
	// background entities go first so they stop before the databases
	cleanup := append(append([]Entity(nil), plan.Background...), dbs...)
	if len(cleanup) > 0 {
		defer func() {
			timeout := plan.StopTimeout
			if timeout <= 0 {
				timeout = 30 * time.Second
			}
			stopCtx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			started := e.started(cleanup)
			if len(started) == 0 {
				return
			}
			if serr := e.Stop(stopCtx, started...); serr != nil && err == nil {
				err = serr
			}
		}()
		if err := e.Start(ctx, false, dbs...); err != nil {
			return err
		}
	}
	if len(plan.Entities) == 0 && len(plan.Background) == 0 {
		return nil
	}
	if err := e.Start(ctx, false, append(append([]Entity(nil), plan.Background...), plan.Entities...)...); err != nil {
		return err
	}
	if len(plan.Entities) == 0 {
		return nil
	}
	if err := e.Poll(ctx, plan.PollInterval, plan.Entities...); err != nil {
		return err
	}
	if failed := e.failed(plan.Entities); len(failed) > 0 {
		return fmt.Errorf("%w: %s", ErrFailed, strings.Join(failed, ", "))
	}
	return nil
}
