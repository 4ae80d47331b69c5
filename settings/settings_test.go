package settings

import (
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatRunArgs_ShortAndLong(t *testing.T) {
	args := NewArgs()
	args.Set("a", Int(1))
	args.Set("nrs", Int(4))
	args.Set("bind", String("rs"))

	got := FormatRunArgs(args, nil)

	assert.Equal(t, []string{"-a", "1", "--nrs=4", "--bind=rs"}, got)
}

func TestFormatRunArgs_FalsyValuesEmitBareFlag(t *testing.T) {
	args := NewArgs()
	args.Set("exclusive", None())
	args.Set("np", Int(0))
	args.Set("b", String(""))
	args.Set("x", None())

	got := FormatRunArgs(args, nil)

	assert.Equal(t, []string{"--exclusive", "--np", "-b", "-x"}, got)
}

func TestFormatRunArgs_RestrictedKeysNeverEmitted(t *testing.T) {
	args := NewArgs()
	args.Set("chdir", String("/scratch/case"))
	args.Set("np", Int(8))
	args.Set("D", String("/tmp"))

	got := FormatRunArgs(args, NewRestricted("chdir", "D"))

	assert.Equal(t, []string{"--np=8"}, got)
	v, ok := args.Get("chdir")
	require.True(t, ok, "restricted keys are filtered at format time only")
	assert.Equal(t, "/scratch/case", v.String())
}

func TestFormatRunArgs_Idempotent(t *testing.T) {
	args := NewArgs()
	args.Set("nrs", String(AllHosts))
	args.Set("c", Int(2))

	first := FormatRunArgs(args, nil)
	second := FormatRunArgs(args, nil)

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"nrs", "c"}, args.Keys())
}

func TestFormatBatchArgs(t *testing.T) {
	args := NewArgs()
	args.Set("nnodes", Int(4))
	args.Set("m", String(QuoteHostlist([]string{"node1", "node2"})))
	args.Set("alloc_flags", String("smt4"))
	args.Set("x", None())

	got := FormatBatchArgs(args)

	assert.Equal(t, []string{`-nnodes 4`, `-m "node1,node2"`, `-alloc_flags smt4`, `-x`}, got)
}

func TestFormatLongBatchArgs(t *testing.T) {
	args := NewArgs()
	args.Set("nodes", Int(2))
	args.Set("C", String("haswell"))
	args.Set("chdir", String("/work"))

	assert.Equal(t, []string{"--nodes=2", "-C", "haswell", "--chdir=/work"}, FormatLongBatchArgs(args))
}

func TestArgs_OverwriteKeepsPosition(t *testing.T) {
	args := NewArgs()
	args.Set("a", Int(1))
	args.Set("b", Int(2))
	args.Set("a", Int(3))

	assert.Equal(t, []string{"a", "b"}, args.Keys())
	v, _ := args.Get("a")
	n, ok := v.AsInt()
	require.True(t, ok)
	assert.Equal(t, 3, n)

	args.Delete("a")
	args.Set("a", Int(4))
	assert.Equal(t, []string{"b", "a"}, args.Keys())
}

func TestParseCount(t *testing.T) {
	tests := []struct {
		in       string
		sentinel bool
		want     string
	}{
		{"32", false, "32"},
		{"-1", false, "-1"},
		{" 4 ", true, " 4 "},
		{AllHosts, true, AllHosts},
		{" " + AllHosts, true, " " + AllHosts},
		{"all", true, "all"},
		{"", true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c := ParseCount(tt.in)
			assert.Equal(t, tt.sentinel, c.IsSentinel())
			assert.Equal(t, tt.want, c.String())
		})
	}

	empty := Sentinel("")
	assert.True(t, empty.IsSentinel())
	assert.Equal(t, String(""), empty.Value())
	assert.False(t, Numeric(0).IsSentinel())
	assert.Equal(t, Int(0), Numeric(0).Value())

	assert.True(t, IsKnownSentinel(AllGPUs))
	assert.False(t, IsKnownSentinel("ALL_NODES"))
}

func TestParseInt_WrapsNumError(t *testing.T) {
	_, err := ParseInt("set_tasks", "many")
	require.Error(t, err)

	var numErr *strconv.NumError
	require.True(t, errors.As(err, &numErr))
	assert.ErrorIs(t, err, strconv.ErrSyntax)
	assert.Contains(t, err.Error(), "set_tasks")

	n, err := ParseInt("set_tasks", "16")
	require.NoError(t, err)
	assert.Equal(t, 16, n)
}

func TestHostlistFromValue(t *testing.T) {
	hosts, err := HostlistFromValue("set_hostlist", []string{"node1", "node2"})
	require.NoError(t, err)
	assert.Equal(t, `"node1,node2"`, QuoteHostlist(hosts))

	hosts, err = HostlistFromValue("set_hostlist", "  node7 ")
	require.NoError(t, err)
	assert.Equal(t, []string{"node7"}, hosts)

	hosts, err = HostlistFromValue("set_hostlist", []interface{}{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, hosts)

	var typeErr *TypeError
	_, err = HostlistFromValue("set_hostlist", 42)
	require.True(t, errors.As(err, &typeErr))
	assert.Equal(t, 42, typeErr.Got)

	_, err = HostlistFromValue("set_hostlist", []interface{}{"a", 3})
	require.True(t, errors.As(err, &typeErr))
	assert.Equal(t, "a list of strings", typeErr.Want)
}

func TestCommand(t *testing.T) {
	s := NewRunSettings("echo", SplitExeArgs("Hello World!"), "")
	assert.Equal(t, []string{"echo", "Hello", "World!"}, Command(s))

	s = NewRunSettings("./ocean_model", []string{"-n", "namelist.ocean"}, "mpirun")
	s.Set("np", Int(4))
	s.SetWorkingDir("/scratch/run")
	assert.Equal(t, []string{"mpirun", "--np=4", "./ocean_model", "-n", "namelist.ocean"}, Command(s))
	assert.Equal(t, "/scratch/run", s.WorkingDir())
}

func TestShellJoin(t *testing.T) {
	assert.Equal(t, `jsrun --nrs=2 echo 'Hello World!' ''`,
		ShellJoin([]string{"jsrun", "--nrs=2", "echo", "Hello World!", ""}))
	assert.Equal(t, `'it'"'"'s'`, ShellJoin([]string{"it's"}))
}

func TestEnvList(t *testing.T) {
	assert.Equal(t, []string{"A=1", "SSDB=10.0.0.1:6379"},
		EnvList(map[string]string{"SSDB": "10.0.0.1:6379", "A": "1"}))
}
