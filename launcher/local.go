package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/keybase/go-ps"

	logger "smartsim.io/smartsim-hpc/logger"
)

type process struct {
	cmd       *exec.Cmd
	done      chan struct{}
	status    Status
	code      int
	cancelled bool
}

// Local runs steps as child processes of this one. Scheduler launchers use it
// for their run commands (srun, jsrun), which block like any other process.
type Local struct {
	mu    sync.Mutex
	procs map[string]*process

	// Stdout and Stderr receive output of steps without an OutputDir.
	Stdout io.Writer
	Stderr io.Writer
}

func NewLocal() *Local {
	return &Local{procs: map[string]*process{}}
}

func (l *Local) Name() string { return "local" }

func openOutput(step Step) (stdout, stderr *os.File, err error) {
	if err = os.MkdirAll(step.OutputDir, 0755); err != nil {
		return nil, nil, err
	}
	stdout, err = os.Create(filepath.Join(step.OutputDir, step.Name+".out"))
	if err != nil {
		return nil, nil, err
	}
	stderr, err = os.Create(filepath.Join(step.OutputDir, step.Name+".err"))
	if err != nil {
		stdout.Close()
		return nil, nil, err
	}
	return stdout, stderr, nil
}

func (l *Local) Spawn(ctx context.Context, step Step) (Handle, error) {
	if step.Batch() {
		return Handle{}, ErrNoBatch
	}
	if len(step.Command) == 0 {
		return Handle{}, ErrNoCommand
	}
	// the process outlives ctx, Stop ends it
	cmd := exec.Command(step.Command[0], step.Command[1:]...)
	cmd.Env = append(os.Environ(), step.Env...)
	cmd.Dir = step.Dir
	cmd.Stdout = l.Stdout
	cmd.Stderr = l.Stderr

	var files []*os.File
	if len(step.OutputDir) > 0 {
		stdout, stderr, err := openOutput(step)
		if err != nil {
			return Handle{}, fmt.Errorf("%s: %w", step.Name, err)
		}
		cmd.Stdout, cmd.Stderr = stdout, stderr
		files = append(files, stdout, stderr)
	}
	logger.DebugPrintf("local: %s: %s", step.Name, strings.Join(step.Command, " "))
	if err := cmd.Start(); err != nil {
		for _, f := range files {
			f.Close()
		}
		return Handle{}, fmt.Errorf("%s: %w", step.Name, err)
	}

	p := &process{cmd: cmd, done: make(chan struct{}), status: StatusRunning, code: NoReturnCode}
	h := Handle{ID: strconv.Itoa(cmd.Process.Pid), Name: step.Name}

	l.mu.Lock()
	if l.procs == nil {
		l.procs = map[string]*process{}
	}
	l.procs[h.ID] = p
	l.mu.Unlock()

	go func() {
		err := cmd.Wait()
		for _, f := range files {
			f.Close()
		}
		l.mu.Lock()
		defer l.mu.Unlock()
		p.code = cmd.ProcessState.ExitCode()
		switch {
		case p.cancelled:
			p.status = StatusCancelled
		case err == nil:
			p.status = StatusCompleted
		default:
			p.status = StatusFailed
		}
		close(p.done)
		logger.InfoPrintf("local: %s (pid %s) exited: %s, code %d", step.Name, h.ID, p.status, p.code)
	}()
	return h, nil
}

func (l *Local) lookup(h Handle) (*process, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.procs[h.ID]
	return p, ok
}

// Poll reports the state of a spawned process. A pid this launcher did not
// start is looked up in the process table: alive is Running, gone is
// Completed with no return code.
func (l *Local) Poll(ctx context.Context, h Handle) (Result, error) {
	if p, ok := l.lookup(h); ok {
		l.mu.Lock()
		defer l.mu.Unlock()
		return Result{Status: p.status, ReturnCode: p.code}, nil
	}
	pid, err := strconv.Atoi(h.ID)
	if err != nil || h.Batch {
		return Result{Status: StatusUnknown, ReturnCode: NoReturnCode}, ErrUnknownHandle
	}
	proc, err := ps.FindProcess(pid)
	if err != nil {
		return Result{Status: StatusUnknown, ReturnCode: NoReturnCode}, err
	}
	if proc != nil {
		return Result{Status: StatusRunning, ReturnCode: NoReturnCode}, nil
	}
	return Result{Status: StatusCompleted, ReturnCode: NoReturnCode}, nil
}

// Stop terminates the process and waits for it to exit or ctx to end.
func (l *Local) Stop(ctx context.Context, h Handle) error {
	p, ok := l.lookup(h)
	if !ok {
		return l.stopForeign(h)
	}
	l.mu.Lock()
	select {
	case <-p.done:
		l.mu.Unlock()
		return nil
	default:
	}
	p.cancelled = true
	l.mu.Unlock()

	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("%s: %w", h.Name, err)
	}
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		p.cmd.Process.Kill()
		<-p.done
		return ctx.Err()
	}
}

func (l *Local) stopForeign(h Handle) error {
	pid, err := strconv.Atoi(h.ID)
	if err != nil || h.Batch {
		return ErrUnknownHandle
	}
	if proc, err := ps.FindProcess(pid); err != nil || proc == nil {
		return nil
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return proc.Signal(syscall.SIGTERM)
}
