package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	logger "smartsim.io/smartsim-hpc/logger"
)

// Commander runs a scheduler command line and returns its combined output.
type Commander interface {
	Output(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error)
}

// ExecCommander shells out with os/exec.
type ExecCommander struct{}

func (ExecCommander) Output(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	logger.DebugPrintf("exec: %s %s", name, strings.Join(args, " "))
	err := cmd.Run()
	outTrim := strings.TrimSpace(out.String())
	if err != nil {
		return out.Bytes(), fmt.Errorf("%s: %w (%q)", name, err, outTrim)
	}
	return out.Bytes(), nil
}

// LookPath reports the location of a scheduler binary, empty when missing.
func LookPath(name string) string {
	if path, err := exec.LookPath(name); err == nil {
		return path
	}
	return ""
}
