// Package coretest fakes scheduler command lines for tests.
package coretest

import (
	"context"
	"errors"
	"io"
	"io/ioutil"
	"strings"
	"sync"
)

// Call is one recorded invocation.
type Call struct {
	Name  string
	Args  []string
	Stdin string
}

// Line joins the command name and arguments with spaces.
func (c Call) Line() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Commander answers with canned output keyed by command name. Outputs for a
// name are consumed in order; the last one repeats.
type Commander struct {
	mu      sync.Mutex
	outputs map[string][]string
	errs    map[string]error
	Calls   []Call
}

func NewCommander() *Commander {
	return &Commander{outputs: map[string][]string{}, errs: map[string]error{}}
}

// On queues outputs for name.
func (c *Commander) On(name string, outputs ...string) *Commander {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputs[name] = append(c.outputs[name], outputs...)
	return c
}

// Fail makes every call to name return err.
func (c *Commander) Fail(name string, err error) *Commander {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs[name] = err
	return c
}

func (c *Commander) Output(ctx context.Context, stdin io.Reader, name string, args ...string) ([]byte, error) {
	call := Call{Name: name, Args: append([]string(nil), args...)}
	if stdin != nil {
		data, _ := ioutil.ReadAll(stdin)
		call.Stdin = string(data)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, call)
	if err := c.errs[name]; err != nil {
		return nil, err
	}
	queue, ok := c.outputs[name]
	if !ok || len(queue) == 0 {
		return nil, errors.New(name + ": command not found")
	}
	out := queue[0]
	if len(queue) > 1 {
		c.outputs[name] = queue[1:]
	}
	return []byte(out), nil
}

// Lines returns the recorded command lines.
func (c *Commander) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := make([]string, len(c.Calls))
	for i, call := range c.Calls {
		lines[i] = call.Line()
	}
	return lines
}
