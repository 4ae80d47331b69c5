package experiment

import (
	"fmt"

	core "smartsim.io/smartsim-hpc/core"
	launcher "smartsim.io/smartsim-hpc/launcher"
	lsf "smartsim.io/smartsim-hpc/lsf"
	slurm "smartsim.io/smartsim-hpc/slurm"
)

// LauncherFactory returns the launcher registered under name.
type LauncherFactory func(name string) (launcher.Launcher, error)

// Launchers builds launchers that run scheduler commands through commander,
// the local shell when nil.
func Launchers(commander core.Commander) LauncherFactory {
	return func(name string) (launcher.Launcher, error) {
		switch name {
		case LauncherLocal, "":
			return launcher.NewLocal(), nil
		case LauncherSlurm:
			return slurm.NewLauncher(commander), nil
		case LauncherLSF:
			return lsf.NewLauncher(commander), nil
		}
		return nil, fmt.Errorf("experiment: unknown launcher %q", name)
	}
}

// DetectLauncher names the launcher of the allocation this process runs in,
// local outside of one.
func DetectLauncher() string {
	name, _ := core.InAllocation()
	switch name {
	case LauncherSlurm, LauncherLSF:
		return name
	}
	return LauncherLocal
}
