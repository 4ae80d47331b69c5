package main

import (
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	core "smartsim.io/smartsim-hpc/core"
	experiment "smartsim.io/smartsim-hpc/experiment"
	launcher "smartsim.io/smartsim-hpc/launcher"
	lsf "smartsim.io/smartsim-hpc/lsf"
	settings "smartsim.io/smartsim-hpc/settings"
	slurm "smartsim.io/smartsim-hpc/slurm"
)

// stdout is where commands print, replaced in tests.
var stdout io.Writer = os.Stdout

// ProfileFlags select the launcher and the profile seeding option defaults.
type ProfileFlags struct {
	Profile  string `long:"profile" description:"configuration profile (default: the active one)"`
	Launcher string `short:"l" long:"launcher" description:"local, slurm or lsf (default: profile, then allocation)"`
}

// resolve returns the selected profile with its launcher filled in.
func (p ProfileFlags) resolve() (core.Profile, error) {
	profile, err := core.GetProfile(p.Profile)
	if err != nil {
		return core.Profile{}, err
	}
	if len(p.Launcher) > 0 {
		profile.Launcher = p.Launcher
	}
	if len(profile.Launcher) == 0 {
		profile.Launcher = experiment.DetectLauncher()
	}
	if !validLauncher(profile.Launcher) {
		return core.Profile{}, errors.New("unknown launcher " + profile.Launcher)
	}
	return profile, nil
}

// parseRawArg reads "key", "key=" or "key=value"; integers keep their type.
func parseRawArg(s string) (string, settings.Value, error) {
	key, value, found := strings.Cut(s, "=")
	key = strings.TrimLeft(key, "-")
	if len(key) == 0 {
		return "", settings.Value{}, errors.New("empty option name in " + strconv.Quote(s))
	}
	if !found {
		return key, settings.None(), nil
	}
	if n, err := strconv.Atoi(value); err == nil {
		return key, settings.Int(n), nil
	}
	return key, settings.String(value), nil
}

type setter interface {
	Set(key string, v settings.Value)
}

func applyRawArgs(s setter, raw []string) error {
	for _, r := range raw {
		key, v, err := parseRawArg(r)
		if err != nil {
			return err
		}
		s.Set(key, v)
	}
	return nil
}

// newLauncher returns the named launcher with local output on the terminal.
func newLauncher(name string, commander core.Commander) (launcher.Launcher, error) {
	l, err := experiment.Launchers(commander)(name)
	if err != nil {
		return nil, err
	}
	switch v := l.(type) {
	case *launcher.Local:
		v.Stdout, v.Stderr = stdout, os.Stderr
	case *lsf.Launcher:
		v.Local.Stdout, v.Local.Stderr = stdout, os.Stderr
	case *slurm.Launcher:
		v.Local.Stdout, v.Local.Stderr = stdout, os.Stderr
	}
	return l, nil
}

// commander runs scheduler commands, replaced in tests.
var commander core.Commander = core.ExecCommander{}

func printTable(table [][]string) {
	core.PrintTable(stdout, table)
}
