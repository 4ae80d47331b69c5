package slurm

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartsim.io/smartsim-hpc/core/coretest"
	launcher "smartsim.io/smartsim-hpc/launcher"
	settings "smartsim.io/smartsim-hpc/settings"
)

func TestSrunFormatting(t *testing.T) {
	s := NewSrunSettings("hello", []string{"Hello World!"})
	s.SetNodes(2)
	s.SetTasksPerNode(4)
	s.SetCPUsPerTask(2)
	require.NoError(t, s.SetHostlist([]string{"nid001", "nid002"}))
	require.NoError(t, s.SetExcludedHosts("nid003"))
	s.SetWalltime("00:10:00")
	s.SetWorkingDir("/scratch")
	s.Set("D", settings.String("/scratch"))
	s.Set("C", settings.String("haswell"))
	s.Set("exclusive", settings.None())

	assert.Equal(t, []string{
		"--nodes=2",
		"--ntasks-per-node=4",
		"--cpus-per-task=2",
		"--nodelist=nid001,nid002",
		"--exclude=nid003",
		"--time=00:10:00",
		"-C", "haswell",
		"--exclusive",
	}, s.FormatRunArgs())
	assert.Equal(t, "srun", settings.Command(s)[0])
	assert.Equal(t, "/scratch", s.WorkingDir())
}

func TestSrunHostlistTypeError(t *testing.T) {
	s := NewSrunSettings("hello", nil)
	err := s.SetHostlist(map[string]string{})
	var typeErr *settings.TypeError
	require.True(t, errors.As(err, &typeErr))
	assert.Equal(t, "srun: hostlist", typeErr.Setter)
}

func TestSbatchScriptRoundTrip(t *testing.T) {
	b := NewSbatchSettings(2, "00:30:00", "e3sm")
	b.SetPartition("debug")
	b.Set("C", settings.String("haswell"))
	b.Set("exclusive", settings.None())

	assert.Equal(t, []string{"--nodes=2", "--time=00:30:00", "--account=e3sm", "--partition=debug", "-C", "haswell", "--exclusive"}, b.FormatBatchArgs())

	run := NewSrunSettings("./model", nil)
	run.SetTasks(64)
	script := b.Script([][]string{settings.Command(run)})
	assert.Equal(t, `#!/bin/bash
#SBATCH --nodes=2
#SBATCH --time=00:30:00
#SBATCH --account=e3sm
#SBATCH --partition=debug
#SBATCH -C haswell
#SBATCH --exclusive

srun --ntasks=64 ./model
`, script)

	parsed, js, err := ParseDirectives(strings.NewReader(script))
	require.NoError(t, err)
	assert.Equal(t, "srun --ntasks=64 ./model\n", string(js.Script))
	assert.Equal(t, []string{"--nodes=2", "--time=00:30:00", "--account=e3sm", "--partition=debug", "--constraint=haswell", "--exclusive"},
		parsed.FormatBatchArgs(), "short options are stored under their long name")
}

func TestParseArgsAndMerge(t *testing.T) {
	script, rest, err := ParseArgs([]string{"-N", "4", "--time=01:00:00", "-w", "a1,a2", "job.sh", "--ignored"})
	require.NoError(t, err)
	assert.Equal(t, []string{"job.sh", "--ignored"}, rest)

	cmdline, _, err := ParseArgs([]string{"--nodes=8", "-p", "gpu"})
	require.NoError(t, err)
	script.Merge(cmdline)
	assert.Equal(t, []string{"--nodes=8", "--time=01:00:00", "--nodelist=a1,a2", "--partition=gpu"}, script.FormatBatchArgs())

	_, _, err = ParseArgs([]string{"--nodes=lots"})
	require.Error(t, err)
	_, _, err = ParseArgs([]string{"--bogus=1"})
	require.Error(t, err)
}

func TestExpandNodelist(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want []string
	}{
		{"nid[001-003],login1", []string{"nid001", "nid002", "nid003", "login1"}},
		{"c[1,3-4]", []string{"c1", "c3", "c4"}},
		{"r[1-2]n[1-2]", []string{"r1n1", "r1n2", "r2n1", "r2n2"}},
		{"node7", []string{"node7"}},
	} {
		got, err := ExpandNodelist(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
	for _, bad := range []string{"nid[001-003", "nid]", "nid[3-1]", "nid[a-b]"} {
		_, err := ExpandNodelist(bad)
		assert.Error(t, err, bad)
	}
}

func TestJobStatus(t *testing.T) {
	assert.Equal(t, launcher.StatusNew, JobStatus("PENDING"))
	assert.Equal(t, launcher.StatusRunning, JobStatus("RUNNING"))
	assert.Equal(t, launcher.StatusCancelled, JobStatus("CANCELLED by 1234"))
	assert.Equal(t, launcher.StatusCancelled, JobStatus("CANCELLED+"))
	assert.Equal(t, launcher.StatusFailed, JobStatus("TIMEOUT"))
	assert.Equal(t, launcher.StatusUnknown, JobStatus(""))
}

func TestLauncherBatchLifecycle(t *testing.T) {
	ctx := context.Background()
	fake := coretest.NewCommander().
		On("sbatch", "Submitted batch job 2723147\n").
		On("squeue", "PENDING\n", "RUNNING\n", "").
		On("sacct", "FAILED      2:0\n")
	l := NewLauncher(fake)

	h, err := l.Spawn(ctx, launcher.Step{Name: "model", Script: "#!/bin/bash\nsrun ./model\n"})
	require.NoError(t, err)
	assert.Equal(t, "2723147", h.ID)
	assert.True(t, h.Batch)
	assert.Equal(t, "#!/bin/bash\nsrun ./model\n", fake.Calls[0].Stdin)

	res, err := l.Poll(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, launcher.StatusNew, res.Status)
	res, _ = l.Poll(ctx, h)
	assert.Equal(t, launcher.StatusRunning, res.Status)
	res, _ = l.Poll(ctx, h)
	assert.Equal(t, launcher.Result{Status: launcher.StatusFailed, ReturnCode: 2}, res)

	assert.Contains(t, fake.Lines(), "squeue -h -j 2723147 -o %T")
	assert.Contains(t, fake.Lines(), "sacct -n -X -j 2723147 -o State,ExitCode")
}

func TestLauncherScriptFileAndCancel(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fake := coretest.NewCommander().
		On("sbatch", "Submitted batch job 11\n").
		On("scancel", "").
		Fail("squeue", errors.New("slurm_load_jobs error: Invalid job id specified")).
		On("sacct", "FAILED 0:15\n")
	l := NewLauncher(fake)

	h, err := l.Spawn(ctx, launcher.Step{Name: "db", Script: "#!/bin/bash\n", OutputDir: dir})
	require.NoError(t, err)
	scriptFile := filepath.Join(dir, "db.sh")
	assert.Equal(t, "sbatch "+scriptFile, fake.Lines()[0])
	data, err := os.ReadFile(scriptFile)
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/bash\n", string(data))

	require.NoError(t, l.Stop(ctx, h))
	res, err := l.Poll(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, launcher.StatusCancelled, res.Status)
}

func TestHostsAndPartitions(t *testing.T) {
	ctx := context.Background()
	fake := coretest.NewCommander().
		On("squeue", "nid[001-002]\n").
		On("sinfo", "debug*|up|30:00|4|nid[001-004]\nregular|up|2-00:00:00|100|nid[100-199]\n")
	l := NewLauncher(fake)

	hosts, err := l.Hosts(ctx, launcher.Handle{ID: "5", Batch: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"nid001", "nid002"}, hosts)

	t.Setenv("SLURM_JOB_NODELIST", "c[1-2]")
	hosts, err = l.Hosts(ctx, launcher.Handle{ID: "123"})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, hosts)

	table, err := l.Partitions(ctx)
	require.NoError(t, err)
	require.Len(t, table, 3)
	assert.Equal(t, "debug*", table[1][0])
}

func TestParseJobID(t *testing.T) {
	_, err := ParseJobID("sbatch: error: Batch job submission failed")
	require.Error(t, err)
}
