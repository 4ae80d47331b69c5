package lsf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"

	core "smartsim.io/smartsim-hpc/core"
	launcher "smartsim.io/smartsim-hpc/launcher"
	logger "smartsim.io/smartsim-hpc/logger"
)

var submittedRe = regexp.MustCompile(`Job <(\d+)> is submitted`)

// Launcher runs jsrun steps as local processes and submits batch steps with
// bsub. Batch jobs are tracked with bjobs and cancelled with bkill.
type Launcher struct {
	*launcher.Local
	Commander core.Commander

	mu        sync.Mutex
	cancelled map[string]bool
}

func NewLauncher(commander core.Commander) *Launcher {
	if commander == nil {
		commander = core.ExecCommander{}
	}
	return &Launcher{
		Local:     launcher.NewLocal(),
		Commander: commander,
		cancelled: map[string]bool{},
	}
}

func (l *Launcher) Name() string { return "lsf" }

func (l *Launcher) Spawn(ctx context.Context, step launcher.Step) (launcher.Handle, error) {
	if !step.Batch() {
		return l.Local.Spawn(ctx, step)
	}
	out, err := l.Commander.Output(ctx, strings.NewReader(step.Script), BatchCommand)
	if err != nil {
		return launcher.Handle{}, fmt.Errorf("bsub: %s: %w", step.Name, err)
	}
	id, err := ParseJobID(string(out))
	if err != nil {
		return launcher.Handle{}, err
	}
	logger.InfoPrintf("bsub: %s submitted as job %s", step.Name, id)
	return launcher.Handle{ID: id, Name: step.Name, Batch: true}, nil
}

// ParseJobID extracts N from "Job <N> is submitted to queue <q>."
func ParseJobID(output string) (string, error) {
	match := submittedRe.FindStringSubmatch(output)
	if match == nil {
		return "", fmt.Errorf("bsub: unable to parse output: %q", strings.TrimSpace(output))
	}
	return match[1], nil
}

// JobStatus maps a bjobs STAT column onto a launcher status.
func JobStatus(stat string) launcher.Status {
	switch strings.ToUpper(strings.TrimSpace(stat)) {
	case "PEND", "WAIT", "PROV":
		return launcher.StatusNew
	case "RUN":
		return launcher.StatusRunning
	case "PSUSP", "USUSP", "SSUSP":
		return launcher.StatusPaused
	case "DONE":
		return launcher.StatusCompleted
	case "EXIT":
		return launcher.StatusFailed
	default:
		return launcher.StatusUnknown
	}
}

func (l *Launcher) Poll(ctx context.Context, h launcher.Handle) (launcher.Result, error) {
	if !h.Batch {
		return l.Local.Poll(ctx, h)
	}
	res := launcher.Result{Status: launcher.StatusUnknown, ReturnCode: launcher.NoReturnCode}
	out, err := l.Commander.Output(ctx, nil, "bjobs", "-noheader", "-o", "stat exit_code", h.ID)
	if err != nil {
		return res, fmt.Errorf("bjobs: %w", err)
	}
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return res, nil
	}
	res.Status = JobStatus(fields[0])
	if len(fields) > 1 {
		if code, cerr := strconv.Atoi(fields[1]); cerr == nil {
			res.ReturnCode = code
		}
	}
	if res.Status == launcher.StatusCompleted && res.ReturnCode == launcher.NoReturnCode {
		res.ReturnCode = 0
	}
	l.mu.Lock()
	if l.cancelled[h.ID] && res.Status == launcher.StatusFailed {
		res.Status = launcher.StatusCancelled
	}
	l.mu.Unlock()
	return res, nil
}

func (l *Launcher) Stop(ctx context.Context, h launcher.Handle) error {
	if !h.Batch {
		return l.Local.Stop(ctx, h)
	}
	if _, err := l.Commander.Output(ctx, nil, "bkill", h.ID); err != nil {
		return fmt.Errorf("bkill: %w", err)
	}
	l.mu.Lock()
	l.cancelled[h.ID] = true
	l.mu.Unlock()
	return nil
}

// ParseExecHost reads the bjobs exec_host column, "1*batch1:42*h41n04",
// into unique host names in order.
func ParseExecHost(s string) []string {
	var hosts []string
	seen := map[string]bool{}
	for _, slot := range strings.Split(strings.TrimSpace(s), ":") {
		if i := strings.Index(slot, "*"); i >= 0 {
			slot = slot[i+1:]
		}
		if len(slot) == 0 || slot == "-" || seen[slot] {
			continue
		}
		seen[slot] = true
		hosts = append(hosts, slot)
	}
	return hosts
}

// Hosts reports compute hosts of a step. Batch jobs ask bjobs; jsrun steps
// use the allocation in LSB_MCPU_HOSTS, less its launch node.
func (l *Launcher) Hosts(ctx context.Context, h launcher.Handle) ([]string, error) {
	if h.Batch {
		out, err := l.Commander.Output(ctx, nil, "bjobs", "-noheader", "-o", "exec_host", h.ID)
		if err != nil {
			return nil, fmt.Errorf("bjobs: %w", err)
		}
		return ParseExecHost(string(out)), nil
	}
	if hosts := allocationHosts(os.Getenv("LSB_MCPU_HOSTS")); len(hosts) > 0 {
		return hosts, nil
	}
	host, err := os.Hostname()
	if err != nil {
		return nil, err
	}
	return []string{host}, nil
}

// allocationHosts reads "batch1 1 h41n04 42 h41n05 42".
func allocationHosts(mcpu string) []string {
	fields := strings.Fields(mcpu)
	var hosts []string
	for i := 2; i < len(fields); i += 2 {
		hosts = append(hosts, fields[i])
	}
	return hosts
}

var _ launcher.HostResolver = (*Launcher)(nil)

var errNotLSF = errors.New("lsf: bsub not found on PATH")

// Available reports whether the LSF client commands can be found.
func Available() error {
	if len(core.LookPath(BatchCommand)) == 0 {
		return errNotLSF
	}
	return nil
}
