package lsf

import (
	"errors"
	"flag"
	"io"
	"io/ioutil"
	"strings"

	core "smartsim.io/smartsim-hpc/core"
	settings "smartsim.io/smartsim-hpc/settings"
)

// Supported #BSUB options
// map[string]struct{} enables querying supported options using:
// _, ok := bsubSupportedArgs()["<option>"]
func bsubSupportedArgs() map[string]struct{} {
	return map[string]struct{}{
		"nnodes":      struct{}{},
		"W":           struct{}{},
		"P":           struct{}{},
		"q":           struct{}{},
		"J":           struct{}{},
		"m":           struct{}{},
		"o":           struct{}{},
		"e":           struct{}{},
		"alloc_flags": struct{}{},
		"G":           struct{}{},
	}
}

// options without a value
func bsubBoolArgs() map[string]struct{} {
	return map[string]struct{}{
		"x": struct{}{},
		"N": struct{}{},
		"B": struct{}{},
	}
}

// directive feeds one parsed option into BsubSettings, in script order.
type directive struct {
	name  string
	batch *BsubSettings
	flag  bool
}

func (d *directive) String() string { return "" }

func (d *directive) IsBoolFlag() bool { return d.flag }

func (d *directive) Set(value string) error {
	switch d.name {
	case "W":
		d.batch.SetWalltime(value)
	case "P":
		d.batch.SetProject(value)
	case "nnodes":
		n, err := settings.ParseInt("bsub: -nnodes", value)
		if err != nil {
			return err
		}
		d.batch.SetNodes(n)
	case "m":
		hosts := strings.FieldsFunc(strings.Trim(value, `"'`), func(r rune) bool {
			return r == ',' || r == ' '
		})
		return d.batch.SetHostlist(hosts)
	default:
		if d.flag {
			d.batch.Set(d.name, settings.None())
		} else {
			d.batch.Set(d.name, settings.String(value))
		}
	}
	return nil
}

// ParseArgs reads bsub options (single dash, space separated values).
func ParseArgs(args []string) (*BsubSettings, []string, error) {
	batch := NewBsubSettings(0, "", "")
	flags := flag.NewFlagSet(BatchCommand, flag.ContinueOnError)
	flags.SetOutput(ioutil.Discard)
	for name := range bsubSupportedArgs() {
		flags.Var(&directive{name: name, batch: batch}, name, name)
	}
	for name := range bsubBoolArgs() {
		flags.Var(&directive{name: name, batch: batch, flag: true}, name, name)
	}
	if err := flags.Parse(args); err != nil {
		return nil, nil, errors.New("bsub: cannot process flags: " + err.Error())
	}
	return batch, flags.Args(), nil
}

// ParseDirectives reads the #BSUB block of an existing job script.
func ParseDirectives(r io.Reader) (*BsubSettings, core.JobScript, error) {
	js, err := core.ReadJobScript(Directive, r)
	if err != nil {
		return nil, js, err
	}
	batch, rest, err := ParseArgs(js.Args)
	if err != nil {
		return nil, js, err
	}
	if len(rest) > 0 {
		return nil, js, errors.New("bsub: unexpected directive argument " + rest[0])
	}
	return batch, js, nil
}
