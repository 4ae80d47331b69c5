package core

import (
	"os"
	"strings"
)

// Environment consumed by experiments and simulations
const (
	EnvSSDB        = "SSDB"
	EnvSmartSimDir = "SMARTSIM_PATH"
	EnvModulePath  = "MODULEPATH"
	EnvUser        = "USER"
)

func ConsumedEnv() []string {
	return []string{EnvSSDB, EnvSmartSimDir, EnvModulePath, EnvUser}
}

// Environ returns the process environment as a map.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 {
			env[pair[0]] = pair[1]
		}
	}
	return env
}

// InAllocation reports the scheduler allocation this process runs in, if any.
func InAllocation() (launcher, id string) {
	if id := os.Getenv("SLURM_JOB_ID"); len(id) > 0 {
		return "slurm", id
	}
	if id := os.Getenv("LSB_JOBID"); len(id) > 0 {
		return "lsf", id
	}
	return "", ""
}
