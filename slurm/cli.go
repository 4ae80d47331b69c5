package slurm

import (
	"errors"
	"io"
	"strings"

	flag "github.com/juju/gnuflag"

	core "smartsim.io/smartsim-hpc/core"
	settings "smartsim.io/smartsim-hpc/settings"
)

// Slurm uses Short and Long command line options
// Both are registered with the same flag value
type gnuFlag struct {
	Short string
	Long  string
	Usage string
	Bool  bool
}

// Supported sbatch options, in the order sbatch documents them
var sBatchFlags = []gnuFlag{
	{Short: "A", Long: "account", Usage: "charge resources to this account"},
	{Short: "C", Long: "constraint", Usage: "required node features"},
	{Short: "c", Long: "cpus-per-task", Usage: "processors per task"},
	{Short: "D", Long: "chdir", Usage: "working directory of the batch script"},
	{Short: "e", Long: "error", Usage: "stderr file pattern"},
	{Long: "exclusive", Usage: "do not share nodes", Bool: true},
	{Long: "gres", Usage: "generic consumable resources"},
	{Short: "J", Long: "job-name", Usage: "job name"},
	{Long: "mem", Usage: "memory per node"},
	{Short: "N", Long: "nodes", Usage: "number of nodes"},
	{Short: "n", Long: "ntasks", Usage: "number of tasks"},
	{Long: "ntasks-per-node", Usage: "tasks per node"},
	{Short: "o", Long: "output", Usage: "stdout file pattern"},
	{Short: "p", Long: "partition", Usage: "partition"},
	{Short: "q", Long: "qos", Usage: "quality of service"},
	{Long: "requeue", Usage: "allow requeue", Bool: true},
	{Short: "t", Long: "time", Usage: "time limit"},
	{Short: "w", Long: "nodelist", Usage: "hosts to run on"},
	{Short: "x", Long: "exclude", Usage: "hosts to avoid"},
}

// directive stores one parsed option into SbatchSettings under its long
// name, in the order options are met.
type directive struct {
	gnuFlag
	batch *SbatchSettings
}

func (d *directive) String() string { return "" }

func (d *directive) IsBoolFlag() bool { return d.Bool }

func (d *directive) Set(value string) error {
	switch d.Long {
	case "nodes":
		n, err := settings.ParseInt("sbatch: --nodes", value)
		if err != nil {
			return err
		}
		d.batch.SetNodes(n)
	case "cpus-per-task":
		n, err := settings.ParseInt("sbatch: --cpus-per-task", value)
		if err != nil {
			return err
		}
		d.batch.SetCPUsPerTask(n)
	case "nodelist":
		return d.batch.SetHostlist(strings.Split(value, ","))
	default:
		if d.Bool {
			d.batch.Set(d.Long, settings.None())
		} else {
			d.batch.Set(d.Long, settings.String(value))
		}
	}
	return nil
}

// ParseArgs reads sbatch options up to the first positional argument and
// returns the rest.
func ParseArgs(args []string) (*SbatchSettings, []string, error) {
	batch := NewSbatchSettings(0, "", "")
	flags := flag.NewFlagSet(SBatchName, flag.ContinueOnError)
	flags.SetOutput(io.Discard)
	for _, f := range sBatchFlags {
		value := &directive{gnuFlag: f, batch: batch}
		flags.Var(value, f.Long, f.Usage)
		if len(f.Short) > 0 {
			flags.Var(value, f.Short, f.Usage)
		}
	}
	if err := flags.Parse(false, args); err != nil {
		return nil, nil, errors.New("sbatch: cannot process flags: " + err.Error())
	}
	return batch, flags.Args(), nil
}

// ParseDirectives reads the #SBATCH block of an existing job script.
func ParseDirectives(r io.Reader) (*SbatchSettings, core.JobScript, error) {
	js, err := core.ReadJobScript(Directive, r)
	if err != nil {
		return nil, js, err
	}
	batch, rest, err := ParseArgs(js.Args)
	if err != nil {
		return nil, js, err
	}
	if len(rest) > 0 {
		return nil, js, errors.New("sbatch: unexpected directive argument " + rest[0])
	}
	return batch, js, nil
}

// Merge applies overrides on top of b: command line options win over the
// job script, as with sbatch itself.
func (b *SbatchSettings) Merge(overrides *SbatchSettings) {
	overrides.BatchArgs.Each(func(key string, v settings.Value) {
		b.Set(key, v)
	})
}
