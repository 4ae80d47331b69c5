package slurm

import (
	"context"
	"strconv"
	"strings"

	launcher "smartsim.io/smartsim-hpc/launcher"
	logger "smartsim.io/smartsim-hpc/logger"
)

// JobStatus maps a Slurm job state (squeue %T or sacct State) onto a
// launcher status. "CANCELLED by 1234" and "CANCELLED+" are accepted.
func JobStatus(state string) launcher.Status {
	fields := strings.Fields(state)
	if len(fields) == 0 {
		return launcher.StatusUnknown
	}
	switch strings.ToUpper(strings.TrimRight(fields[0], "+")) {
	case "PENDING", "CONFIGURING", "REQUEUED", "RESIZING":
		return launcher.StatusNew
	case "RUNNING", "COMPLETING":
		return launcher.StatusRunning
	case "SUSPENDED", "STOPPED", "PREEMPTED":
		return launcher.StatusPaused
	case "COMPLETED":
		return launcher.StatusCompleted
	case "FAILED", "TIMEOUT", "NODE_FAIL", "OUT_OF_MEMORY", "BOOT_FAIL", "DEADLINE":
		return launcher.StatusFailed
	case "CANCELLED":
		return launcher.StatusCancelled
	default:
		return launcher.StatusUnknown
	}
}

func (l *Launcher) squeue(ctx context.Context, id string) string {
	out, err := l.Commander.Output(ctx, nil, SQueueName, "-h", "-j", id, "-o", "%T")
	if err != nil {
		// squeue fails with "Invalid job id" once the job left the queue
		logger.DebugPrintf("squeue: %v", err)
		return ""
	}
	text := strings.TrimSpace(string(out))
	if len(text) == 0 {
		return ""
	}
	return strings.TrimSpace(strings.Split(text, "\n")[0])
}

// sacct reads "COMPLETED 0:0": the state and the exit code before ':'.
func (l *Launcher) sacct(ctx context.Context, id string) (launcher.Result, error) {
	res := launcher.Result{Status: launcher.StatusUnknown, ReturnCode: launcher.NoReturnCode}
	out, err := l.Commander.Output(ctx, nil, SAcctName, "-n", "-X", "-j", id, "-o", "State,ExitCode")
	if err != nil {
		return res, err
	}
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		res.Status = JobStatus(fields[0])
		last := fields[len(fields)-1]
		if i := strings.IndexByte(last, ':'); i > 0 {
			if code, cerr := strconv.Atoi(last[:i]); cerr == nil {
				res.ReturnCode = code
			}
		}
		break
	}
	return res, nil
}

// Poll asks squeue first; sacct is optional and a job that left the queue
// without accounting is reported Unknown.
func (l *Launcher) Poll(ctx context.Context, h launcher.Handle) (launcher.Result, error) {
	if !h.Batch {
		return l.Local.Poll(ctx, h)
	}
	res := launcher.Result{Status: launcher.StatusUnknown, ReturnCode: launcher.NoReturnCode}
	if state := l.squeue(ctx, h.ID); len(state) > 0 {
		res.Status = JobStatus(state)
	} else if acct, err := l.sacct(ctx, h.ID); err == nil {
		res = acct
	} else {
		logger.DebugPrintf("sacct: %v", err)
	}
	l.mu.Lock()
	if l.cancelled[h.ID] && res.Status == launcher.StatusFailed {
		res.Status = launcher.StatusCancelled
	}
	l.mu.Unlock()
	return res, nil
}
