package experiment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	launcher "smartsim.io/smartsim-hpc/launcher"
	ledger "smartsim.io/smartsim-hpc/ledger"
	lsf "smartsim.io/smartsim-hpc/lsf"
	settings "smartsim.io/smartsim-hpc/settings"
	slurm "smartsim.io/smartsim-hpc/slurm"
)

func okPing(context.Context, string) error { return nil }

func shell(script string) *settings.RunSettings {
	return settings.NewRunSettings("/bin/sh", []string{"-c", script}, "")
}

func newLocal(t *testing.T, opts ...Option) *Experiment {
	t.Helper()
	exp, err := New("test", launcher.NewLocal(), append([]Option{WithPinger(okPing)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { exp.Close() })
	return exp
}

func TestNewRequiresNameAndLauncher(t *testing.T) {
	_, err := New("", launcher.NewLocal())
	assert.Error(t, err)
	_, err = New("exp", nil)
	assert.Error(t, err)
}

func TestDuplicateNames(t *testing.T) {
	exp := newLocal(t)
	_, err := exp.CreateModel("sim", shell("true"), nil)
	require.NoError(t, err)
	_, err = exp.CreateModel("sim", shell("true"), nil)
	assert.ErrorIs(t, err, ErrDuplicate)
	_, err = exp.CreateEnsemble("sim", 2, shell("true"), nil)
	assert.ErrorIs(t, err, ErrDuplicate)
	_, err = exp.CreateDatabase(OrchestratorConfig{Name: "sim"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestStatusBeforeStart(t *testing.T) {
	exp := newLocal(t)
	m, err := exp.CreateModel("sim", shell("true"), nil)
	require.NoError(t, err)

	_, err = exp.GetStatus(context.Background(), m)
	assert.ErrorIs(t, err, ErrNotStarted)
	_, err = exp.Finished(context.Background(), m)
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.ErrorIs(t, exp.Stop(context.Background(), m), ErrNotStarted)
}

func TestCreateEnsemble(t *testing.T) {
	exp := newLocal(t)
	_, err := exp.CreateEnsemble("ens", 0, shell("true"), nil)
	assert.Error(t, err)

	ens, err := exp.CreateEnsemble("ens", 3, shell("exit 0"), nil)
	require.NoError(t, err)
	require.Len(t, ens.Members, 3)
	assert.Equal(t, "ens_0", ens.Members[0].Name())
	assert.Equal(t, "ens_2", ens.Members[2].Name())

	ctx := context.Background()
	require.NoError(t, exp.Start(ctx, false, ens))
	require.NoError(t, exp.Poll(ctx, 10*time.Millisecond, ens))
	statuses, err := exp.GetStatus(ctx, ens)
	require.NoError(t, err)
	assert.Equal(t, []launcher.Status{launcher.StatusCompleted, launcher.StatusCompleted, launcher.StatusCompleted}, statuses)
	done, err := exp.Finished(ctx, ens)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestBatchEnsembleIsOneScript(t *testing.T) {
	run := settings.NewRunSettings("/bin/echo", []string{"hi"}, "")
	ens := &Ensemble{name: "ens", batch: lsf.NewBsubSettings(2, "00:10", "")}
	for i := 0; i < 2; i++ {
		ens.Members = append(ens.Members, &Model{name: "ens_" + string(rune('0'+i)), run: run})
	}

	steps := ens.steps("h1:6379")
	require.Len(t, steps, 1)
	assert.True(t, steps[0].Batch())
	assert.Contains(t, steps[0].Script, "#BSUB -nnodes 2\n")
	assert.Contains(t, steps[0].Script, "#BSUB -W 00:10\n")
	assert.Equal(t, 2, strings.Count(steps[0].Script, "env SSDB=h1:6379 /bin/echo hi\n"))
}

func TestRunExportsDatabaseAddress(t *testing.T) {
	out := t.TempDir()
	db, err := ledger.Open(ledger.Memory)
	require.NoError(t, err)
	defer db.Close()
	exp := newLocal(t, WithOutputDir(out), WithLedger(db))

	orc, err := exp.CreateDatabase(OrchestratorConfig{Port: 6399, Run: shell("exec sleep 30")})
	require.NoError(t, err)
	m, err := exp.CreateModel("sim", shell("echo $SSDB"), nil)
	require.NoError(t, err)

	ctx := context.Background()
	err = exp.Run(ctx, Plan{
		Orchestrators: []*Orchestrator{orc},
		Entities:      []Entity{m},
		PollInterval:  10 * time.Millisecond,
	})
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(out, "sim", "sim.out"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6399\n", string(data))
	assert.Equal(t, []string{"127.0.0.1:6399"}, orc.Addresses())

	statuses, err := exp.GetStatus(ctx, orc)
	require.NoError(t, err)
	assert.Equal(t, []launcher.Status{launcher.StatusCancelled}, statuses)
	assert.Empty(t, exp.SSDB())

	table, err := exp.Summary(ctx)
	require.NoError(t, err)
	require.Len(t, table, 3)
	assert.Equal(t, summaryHeader, table[0])
	assert.Equal(t, []string{"orchestrator", TypeOrchestrator}, table[1][:2])
	assert.Equal(t, "Cancelled", table[1][4])
	assert.Equal(t, []string{"sim", TypeModel, "2"}, table[2][:3])
	assert.Equal(t, "Completed", table[2][4])
	assert.Equal(t, "0", table[2][5])
}

func TestRunStopsDatabaseWhenModelFails(t *testing.T) {
	exp := newLocal(t)
	orc, err := exp.CreateDatabase(OrchestratorConfig{Run: shell("exec sleep 30")})
	require.NoError(t, err)
	bad, err := exp.CreateModel("bad", shell("exit 2"), nil)
	require.NoError(t, err)
	bg, err := exp.CreateModel("bg", shell("exec sleep 30"), nil)
	require.NoError(t, err)

	ctx := context.Background()
	err = exp.Run(ctx, Plan{
		Orchestrators: []*Orchestrator{orc},
		Entities:      []Entity{bad},
		Background:    []Entity{bg},
		PollInterval:  10 * time.Millisecond,
	})
	require.ErrorIs(t, err, ErrFailed)
	assert.Contains(t, err.Error(), "bad")

	for _, entity := range []Entity{orc, bg} {
		statuses, err := exp.GetStatus(ctx, entity)
		require.NoError(t, err)
		assert.Equal(t, []launcher.Status{launcher.StatusCancelled}, statuses, entity.Name())
	}
}

func TestDatabaseNotReady(t *testing.T) {
	exp, err := New("test", launcher.NewLocal(),
		WithReadyTimeout(100*time.Millisecond),
		WithPinger(func(context.Context, string) error { return errors.New("connection refused") }))
	require.NoError(t, err)
	defer exp.Close()

	orc, err := exp.CreateDatabase(OrchestratorConfig{Run: shell("exec sleep 30")})
	require.NoError(t, err)
	m, err := exp.CreateModel("sim", shell("true"), nil)
	require.NoError(t, err)

	ctx := context.Background()
	err = exp.Run(ctx, Plan{Orchestrators: []*Orchestrator{orc}, Entities: []Entity{m}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not ready")

	statuses, err := exp.GetStatus(ctx, orc)
	require.NoError(t, err)
	assert.Equal(t, []launcher.Status{launcher.StatusCancelled}, statuses)
	_, err = exp.GetStatus(ctx, m)
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestDatabaseExitsEarly(t *testing.T) {
	exp := newLocal(t)
	orc, err := exp.CreateDatabase(OrchestratorConfig{Run: shell("exit 1")})
	require.NoError(t, err)

	// the process may still be running on the first poll
	err = exp.Start(context.Background(), false, orc)
	if err != nil {
		assert.Contains(t, err.Error(), "exited")
	}
}

func TestStatusHandler(t *testing.T) {
	exp := newLocal(t)
	m, err := exp.CreateModel("sim", shell("exit 0"), nil)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, exp.Run(ctx, Plan{Entities: []Entity{m}, PollInterval: 10 * time.Millisecond}))

	srv := httptest.NewServer(exp.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var rows []StepStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "sim", rows[0].Name)
	assert.Equal(t, TypeModel, rows[0].Type)
	assert.Equal(t, "Completed", rows[0].Status)
	assert.Equal(t, 0, rows[0].ReturnCode)

	resp2, err := http.Get(srv.URL + "/status/sim")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)

	resp3, err := http.Get(srv.URL + "/status/other")
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp3.StatusCode)
}

func TestSummaryTable(t *testing.T) {
	now := time.Now()
	table := SummaryTable([]ledger.Launch{
		{Name: "sim", EntityType: TypeModel, RunID: 1, JobID: "42", Status: launcher.StatusRunning,
			ReturnCode: launcher.NoReturnCode, StartedAt: now},
		{Name: "db", EntityType: TypeOrchestrator, RunID: 1, JobID: "43", Status: launcher.StatusFailed,
			ReturnCode: 1, StartedAt: now, CompletedAt: &now},
	})
	require.Len(t, table, 3)
	assert.Equal(t, []string{"sim", TypeModel, "1", "42", "Running", "-"}, table[1][:6])
	assert.Equal(t, "-", table[1][7])
	assert.Equal(t, []string{"db", TypeOrchestrator, "1", "43", "Failed", "1"}, table[2][:6])
	assert.NotEqual(t, "-", table[2][7])
}

// queuedLauncher reports its steps as queued until release has passed, then
// as running.
type queuedLauncher struct {
	release time.Time
}

func (l *queuedLauncher) Name() string { return "queued" }

func (l *queuedLauncher) Spawn(ctx context.Context, step launcher.Step) (launcher.Handle, error) {
	return launcher.Handle{ID: "1", Name: step.Name}, nil
}

func (l *queuedLauncher) Poll(ctx context.Context, h launcher.Handle) (launcher.Result, error) {
	if time.Now().Before(l.release) {
		return launcher.Result{Status: launcher.StatusNew, ReturnCode: launcher.NoReturnCode}, nil
	}
	return launcher.Result{Status: launcher.StatusRunning, ReturnCode: launcher.NoReturnCode}, nil
}

func (l *queuedLauncher) Stop(ctx context.Context, h launcher.Handle) error { return nil }

func TestDatabaseQueuedPastReadyTimeout(t *testing.T) {
	l := &queuedLauncher{release: time.Now().Add(300 * time.Millisecond)}
	exp, err := New("test", l, WithPinger(okPing), WithReadyTimeout(50*time.Millisecond))
	require.NoError(t, err)
	defer exp.Close()

	orc, err := exp.CreateDatabase(OrchestratorConfig{})
	require.NoError(t, err)
	require.NoError(t, exp.Start(context.Background(), false, orc))
	assert.Equal(t, []string{"127.0.0.1:6379"}, exp.SSDB())

	l.release = time.Now().Add(time.Hour)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	orc2, err := exp.CreateDatabase(OrchestratorConfig{Name: "queued", Port: 6380})
	require.NoError(t, err)
	err = exp.Start(ctx, false, orc2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not running")
}

func TestCreateDatabaseNodes(t *testing.T) {
	exp := newLocal(t)
	_, err := exp.CreateDatabase(OrchestratorConfig{DBNodes: 3})
	assert.ErrorContains(t, err, "needs the slurm or lsf launcher")

	run := slurm.NewSrunSettings(DefaultDbExe, DbCommandArgs(6379, nil))
	batch := slurm.NewSbatchSettings(4, "", "")
	orc, err := exp.CreateDatabase(OrchestratorConfig{Name: "db", DBNodes: 3, Run: run, Batch: batch})
	require.NoError(t, err)
	assert.Equal(t, 3, orc.DBNodes)
	assert.Equal(t, []string{"--nodes=3", "--ntasks=3", "--ntasks-per-node=1"}, run.FormatRunArgs())
	assert.Equal(t, []string{"--nodes=4"}, batch.FormatBatchArgs())
}
