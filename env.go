package main

import (
	"os"

	core "smartsim.io/smartsim-hpc/core"
	logger "smartsim.io/smartsim-hpc/logger"
)

type EnvCommand struct {
	Help bool `short:"h" long:"help" description:"Show this help message"`
}

var envCommand EnvCommand

// Execute prints the environment experiments read or export, with the
// logging controls.
func (x *EnvCommand) Execute(args []string) error {
	if x.Help {
		return createHelpErr()
	}
	names := append(core.ConsumedEnv(), logger.EnvVars()...)
	table := [][]string{{"Variable", "Value"}}
	for _, name := range names {
		value, ok := os.LookupEnv(name)
		if !ok {
			value = "-"
		}
		table = append(table, []string{name, value})
	}
	printTable(table)
	logger.DebugPrintf("env: %d variables", len(names))
	return nil
}

func init() {
	parser.AddCommand("env",
		"Environment variables",
		"The env command lists the environment variables read by experiments and simulations",
		&envCommand)
}
