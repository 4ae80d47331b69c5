package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "smartsim.io/smartsim-hpc/core"
	coretest "smartsim.io/smartsim-hpc/core/coretest"
	settings "smartsim.io/smartsim-hpc/settings"
)

// execute parses args with fresh command state and returns what was printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	runCommand = RunCommand{}
	batchCommand = BatchCommand{}
	experimentCommand = ExperimentCommand{}
	summaryCommand = SummaryCommand{}
	configCommand = ConfigCommand{}
	launchersCommand = LaunchersCommand{}
	envCommand = EnvCommand{}

	var out bytes.Buffer
	stdout = &out
	t.Cleanup(func() { stdout = os.Stdout })
	_, err := parser.ParseArgs(args)
	return out.String(), err
}

// isolate points the profile config at a temporary file outside any
// allocation.
func isolate(t *testing.T) {
	t.Setenv(core.HpcConfigEnv, filepath.Join(t.TempDir(), "config.json"))
	t.Setenv("SLURM_JOB_ID", "")
	t.Setenv("LSB_JOBID", "")
}

func TestParseRawArg(t *testing.T) {
	key, v, err := parseRawArg("smpiargs=-gpu")
	require.NoError(t, err)
	assert.Equal(t, "smpiargs", key)
	assert.Equal(t, settings.String("-gpu"), v)

	key, v, err = parseRawArg("--exclusive")
	require.NoError(t, err)
	assert.Equal(t, "exclusive", key)
	assert.True(t, v.IsNone())

	_, v, err = parseRawArg("mem=4")
	require.NoError(t, err)
	assert.Equal(t, settings.Int(4), v)

	_, _, err = parseRawArg("=4")
	assert.Error(t, err)
}

func TestRunDryRunJsrun(t *testing.T) {
	isolate(t)
	out, err := execute(t, "run", "-l", "lsf", "--nrs", "4", "--cpu-per-rs", "ALL_CPUS", "-n", "32",
		"-a", "smpiargs=-gpu", "-D", "/tmp", "--dry-run", "--", "./model", "--steps", "10")
	require.NoError(t, err)
	assert.Equal(t, "jsrun --nrs=4 --cpu_per_rs=ALL_CPUS --np=32 --smpiargs=-gpu ./model --steps 10\n", out)
}

func TestRunDryRunSrunFromProfile(t *testing.T) {
	isolate(t)
	_, err := execute(t, "config", "set", "-l", "slurm", "-w", "n1", "-w", "n2", "hpc")
	require.NoError(t, err)
	_, err = execute(t, "config", "use", "hpc")
	require.NoError(t, err)

	out, err := execute(t, "run", "-N", "2", "-n", "8", "--dry-run", "--", "./model")
	require.NoError(t, err)
	assert.Equal(t, "srun --nodes=2 --ntasks=8 --nodelist=n1,n2 ./model\n", out)
}

func TestRunDryRunSrunHosts(t *testing.T) {
	isolate(t)
	out, err := execute(t, "run", "-l", "slurm", "-w", "n1", "-w", "n2", "-x", "n3", "--dry-run", "--", "./model")
	require.NoError(t, err)
	assert.Equal(t, "srun --nodelist=n1,n2 --exclude=n3 ./model\n", out)
}

func TestRunLocal(t *testing.T) {
	isolate(t)
	out, err := execute(t, "run", "-l", "local", "--poll", "10ms", "-e", "GREETING=hi", "--",
		"/bin/sh", "-c", "echo $GREETING")
	require.NoError(t, err)
	assert.Equal(t, "hi\n", out)

	_, err = execute(t, "run", "-l", "local", "--poll", "10ms", "--", "/bin/sh", "-c", "exit 3")
	var exitErr *exitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.code)

	_, err = execute(t, "run", "-l", "local", "-a", "exclusive", "--", "true")
	assert.ErrorContains(t, err, "raw options")
}

func TestRunHelp(t *testing.T) {
	isolate(t)
	_, err := execute(t, "run")
	var flagsErr *flags.Error
	require.True(t, errors.As(err, &flagsErr))
	assert.Equal(t, flags.ErrHelp, flagsErr.Type)
}

func TestBatchDryRunBsub(t *testing.T) {
	isolate(t)
	out, err := execute(t, "batch", "-l", "lsf", "-N", "2", "-t", "00:30", "-P", "e3sm", "--dry-run",
		"--", "jsrun", "./model")
	require.NoError(t, err)
	assert.Equal(t, "#!/bin/bash\n#BSUB -nnodes 2\n#BSUB -W 00:30\n#BSUB -P e3sm\n\njsrun ./model\n", out)

	_, err = execute(t, "batch", "-l", "lsf", "-A", "acct", "--dry-run", "--", "true")
	assert.Error(t, err)
}

func TestBatchScriptOverrides(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "job.sh")
	require.NoError(t, os.WriteFile(path,
		[]byte("#!/bin/bash\n#SBATCH -N 1\n#SBATCH --time=00:10:00\n\nsrun ./a\n"), 0644))

	out, err := execute(t, "batch", "-l", "slurm", "-s", path, "-N", "4", "-A", "proj", "--dry-run")
	require.NoError(t, err)
	assert.Equal(t,
		"#!/bin/bash\n#SBATCH --nodes=4\n#SBATCH --time=00:10:00\n#SBATCH --account=proj\n\nsrun ./a\n", out)
}

func TestBatchSubmit(t *testing.T) {
	isolate(t)
	fake := coretest.NewCommander().On("sbatch", "Submitted batch job 42\n")
	commander = fake
	t.Cleanup(func() { commander = core.ExecCommander{} })

	out, err := execute(t, "batch", "-l", "slurm", "-N", "1", "--", "./run.sh")
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)
	require.Len(t, fake.Calls, 1)
	assert.Equal(t, "sbatch", fake.Calls[0].Name)
	assert.Equal(t, "#!/bin/bash\n#SBATCH --nodes=1\n\n./run.sh\n", fake.Calls[0].Stdin)

	_, err = execute(t, "batch", "-l", "local", "--", "./run.sh")
	assert.ErrorContains(t, err, "cannot submit")
}

func TestConfigCommands(t *testing.T) {
	isolate(t)
	_, err := execute(t, "config", "list")
	assert.ErrorIs(t, err, core.ErrNoConfig)

	_, err = execute(t, "config", "set", "-l", "lsf", "-P", "e3sm", "-t", "00:30", "--db-port", "6780", "summit")
	require.NoError(t, err)
	_, err = execute(t, "config", "set", "-l", "pbs", "other")
	assert.Error(t, err)
	_, err = execute(t, "config", "use", "missing")
	assert.Error(t, err)

	profile, err := core.GetProfile("summit")
	require.NoError(t, err)
	assert.Equal(t, core.Profile{Launcher: "lsf", Project: "e3sm", Walltime: "00:30", DbPort: 6780}, profile)

	out, err := execute(t, "config", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "summit")
	assert.Contains(t, out, "6780")
}

const helloFile = `
experiment "hello" {
  poll_interval = "10ms"
}

model "hello" {
  exe      = "/bin/sh"
  exe_args = ["-c", "exit 0"]
}
`

func TestExperimentAndSummary(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "hello.hcl")
	require.NoError(t, os.WriteFile(path, []byte(helloFile), 0644))

	out, err := execute(t, "experiment", "--dry-run", path)
	require.NoError(t, err)
	assert.Equal(t, "Model hello: /bin/sh -c 'exit 0'\n", out)

	_, err = execute(t, "experiment", "--ready-timeout", "later", path)
	assert.ErrorContains(t, err, "ready-timeout")

	ledgerPath := filepath.Join(dir, "ledger.db")
	out, err = execute(t, "experiment", "--ledger", ledgerPath, "--ready-timeout", "2m", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Completed")

	out, err = execute(t, "summary", "--ledger", ledgerPath)
	require.NoError(t, err)
	assert.Contains(t, out, "hello\n")
	assert.Contains(t, out, "Entity-Type")
	assert.Contains(t, out, "Completed")

	_, err = execute(t, "summary", "--ledger", ledgerPath, "other")
	assert.ErrorContains(t, err, "no launches")
	_, err = execute(t, "summary", "--ledger", filepath.Join(dir, "missing.db"))
	assert.Error(t, err)
}

func TestEnvAndLaunchers(t *testing.T) {
	isolate(t)
	t.Setenv(core.EnvSSDB, "10.0.0.1:6379")
	out, err := execute(t, "env")
	require.NoError(t, err)
	assert.Contains(t, out, "10.0.0.1:6379")
	assert.Contains(t, out, "SMARTSIM_HPC_LOGLEVEL")

	out, err = execute(t, "launchers")
	require.NoError(t, err)
	assert.Contains(t, out, "Launcher")
	assert.Contains(t, out, "local")
}
