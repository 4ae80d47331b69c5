package main

import (
	"context"
	"errors"

	core "smartsim.io/smartsim-hpc/core"
	lsf "smartsim.io/smartsim-hpc/lsf"
	slurm "smartsim.io/smartsim-hpc/slurm"
)

type LaunchersCommand struct {
	Help       bool `short:"h" long:"help" description:"Show this help message"`
	Partitions bool `short:"p" long:"partitions" description:"list Slurm partitions"`
}

var launchersCommand LaunchersCommand

// Execute reports which launchers can be used from this node.
func (x *LaunchersCommand) Execute(args []string) error {
	if x.Help {
		return createHelpErr()
	}
	allocation, id := core.InAllocation()
	table := [][]string{{"Launcher", "Status", "Command", "Allocation"}}
	row := func(name string, err error, command string) {
		status := "available"
		if err != nil {
			status = err.Error()
		}
		alloc := "-"
		if allocation == name {
			alloc = id
		}
		table = append(table, []string{name, status, dash(core.LookPath(command)), alloc})
	}
	row("local", nil, "sh")
	row("slurm", slurm.Available(), slurm.SRunName)
	row("lsf", lsf.Available(), lsf.RunCommand)
	printTable(table)

	if !x.Partitions {
		return nil
	}
	if err := slurm.Available(); err != nil {
		return errors.New("launchers: cannot list partitions: " + err.Error())
	}
	partitions, err := slurm.NewLauncher(commander).Partitions(context.Background())
	if err != nil {
		return err
	}
	printTable(partitions)
	return nil
}

func init() {
	parser.AddCommand("launchers",
		"Available launchers",
		"The launchers command lists the schedulers found on PATH and the allocation this shell runs in",
		&launchersCommand)
}
