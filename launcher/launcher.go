package launcher

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Status of a launched step
type Status int

const (
	StatusNew Status = iota
	StatusRunning
	StatusPaused
	StatusCompleted
	StatusFailed
	StatusCancelled
	StatusUnknown
)

// NoReturnCode is reported until a step has exited.
const NoReturnCode = -1

var statusNames = map[Status]string{
	StatusNew:       "New",
	StatusRunning:   "Running",
	StatusPaused:    "Paused",
	StatusCompleted: "Completed",
	StatusFailed:    "Failed",
	StatusCancelled: "Cancelled",
	StatusUnknown:   "Unknown",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return statusNames[StatusUnknown]
}

// Terminal reports whether no further transition is expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ParseStatus is the inverse of Status.String, case-insensitive.
func ParseStatus(s string) Status {
	for status, name := range statusNames {
		if strings.EqualFold(name, s) {
			return status
		}
	}
	return StatusUnknown
}

var (
	ErrUnknownHandle = errors.New("launcher: unknown handle")
	ErrNoCommand     = errors.New("launcher: step has no command")
	ErrNoBatch       = errors.New("launcher: batch steps are not supported")
)

// Step is one invocation handed to a launcher.
type Step struct {
	Name    string
	Command []string
	// Env is appended to the launcher process environment, KEY=VALUE
	Env []string
	Dir string
	// OutputDir receives <Name>.out and <Name>.err when set
	OutputDir string
	// Script is submitted through the scheduler batch system when set,
	// Command is then ignored.
	Script string
}

// Batch reports whether the step is a batch submission.
func (s Step) Batch() bool {
	return len(s.Script) > 0
}

// Handle identifies a spawned step: a pid for processes, a job id for
// batch submissions.
type Handle struct {
	ID    string
	Name  string
	Batch bool
}

type Result struct {
	Status     Status
	ReturnCode int
}

// Launcher spawns, polls and stops steps on one scheduler.
type Launcher interface {
	Name() string
	Spawn(ctx context.Context, step Step) (Handle, error)
	Poll(ctx context.Context, h Handle) (Result, error)
	Stop(ctx context.Context, h Handle) error
}

// HostResolver is implemented by launchers that can tell where a step runs.
type HostResolver interface {
	Hosts(ctx context.Context, h Handle) ([]string, error)
}

// Wait polls h every interval until it reaches a terminal status.
func Wait(ctx context.Context, l Launcher, h Handle, interval time.Duration) (Result, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		res, err := l.Poll(ctx, h)
		if err != nil {
			return res, err
		}
		if res.Status.Terminal() {
			return res, nil
		}
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-ticker.C:
		}
	}
}
