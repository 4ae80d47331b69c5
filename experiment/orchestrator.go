package experiment

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	launcher "smartsim.io/smartsim-hpc/launcher"
	logger "smartsim.io/smartsim-hpc/logger"
	lsf "smartsim.io/smartsim-hpc/lsf"
	settings "smartsim.io/smartsim-hpc/settings"
	slurm "smartsim.io/smartsim-hpc/slurm"
)

const readyRetry = 500 * time.Millisecond

func redisPing(ctx context.Context, addr string) error {
	client := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
		MaxRetries:  -1,
	})
	defer client.Close()
	return client.Ping(ctx).Err()
}

// interfaceAddr returns the first IPv4 address of a local network interface.
func interfaceAddr(name string) (string, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return "", err
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil {
			return ipnet.IP.String(), nil
		}
	}
	return "", fmt.Errorf("interface %s has no IPv4 address", name)
}

// spreadDatabase runs one database server on each of n nodes. The batch
// allocation is raised to n nodes when it asks for fewer.
func spreadDatabase(run settings.Run, batch settings.Batch, n int) error {
	if n <= 1 {
		return nil
	}
	switch r := run.(type) {
	case *slurm.SrunSettings:
		r.SetNodes(n)
		r.SetTasks(n)
		r.SetTasksPerNode(1)
	case *lsf.JsrunSettings:
		r.SetNumRS(settings.Numeric(n))
		r.SetRSPerHost(1)
		r.SetTasks(n)
	default:
		return fmt.Errorf("db_nodes = %d needs the slurm or lsf launcher", n)
	}
	switch b := batch.(type) {
	case *slurm.SbatchSettings:
		atLeast(b.BatchArgs, "nodes", n)
	case *lsf.BsubSettings:
		atLeast(b.BatchArgs, "nnodes", n)
	}
	return nil
}

func atLeast(args *settings.Args, key string, n int) {
	if v, ok := args.Get(key); ok {
		if have, ok := v.AsInt(); ok && have >= n {
			return
		}
	}
	args.Set(key, settings.Int(n))
}

// dbHosts asks the launcher where the orchestrator runs. Launchers that
// cannot tell run it on this node.
func (e *Experiment) dbHosts(ctx context.Context, o *Orchestrator, j *job) ([]string, error) {
	if resolver, ok := e.launcher.(launcher.HostResolver); ok {
		hosts, err := resolver.Hosts(ctx, j.handle)
		if err != nil {
			return nil, err
		}
		if len(hosts) > 0 {
			return hosts, nil
		}
	}
	if len(o.Interface) > 0 {
		ip, err := interfaceAddr(o.Interface)
		if err == nil {
			return []string{ip}, nil
		}
		logger.WarningPrintf("orchestrator %s: %v, using loopback", o.name, err)
	}
	return []string{"127.0.0.1"}, nil
}

// waitReady waits for the orchestrator to run, then for it to answer PING on
// every host, and exports its addresses to models started afterwards. Time
// queued in the scheduler is bounded only by ctx; readyTimeout starts once the
// job is running.
func (e *Experiment) waitReady(ctx context.Context, o *Orchestrator) error {
	jobs, err := e.jobsOf([]Entity{o})
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return fmt.Errorf("%w: %s", ErrNotStarted, o.name)
	}
	j := jobs[0]
	ticker := time.NewTicker(readyRetry)
	defer ticker.Stop()

	wait := func(ctx context.Context, state string) error {
		select {
		case <-ctx.Done():
			return fmt.Errorf("experiment: orchestrator %s %s: %w", o.name, state, ctx.Err())
		case <-ticker.C:
			return nil
		}
	}
	for {
		res, err := e.refresh(ctx, j)
		if err != nil {
			return err
		}
		if res.Status.Terminal() {
			return fmt.Errorf("experiment: orchestrator %s exited: %s", o.name, res.Status)
		}
		if res.Status == launcher.StatusRunning {
			break
		}
		if err := wait(ctx, "not running"); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, e.readyTimeout)
	defer cancel()
	hosts, err := e.dbHosts(ctx, o, j)
	if err != nil {
		return fmt.Errorf("experiment: orchestrator %s hosts: %w", o.name, err)
	}
	o.hosts = hosts
	for _, addr := range o.Addresses() {
		for {
			perr := e.ping(ctx, addr)
			if perr == nil {
				break
			}
			logger.DebugPrintf("orchestrator %s: ping %s: %v", o.name, addr, perr)
			if err := wait(ctx, "not ready"); err != nil {
				return err
			}
		}
	}

	e.mu.Lock()
	e.ssdb = append(e.ssdb, o.Addresses()...)
	e.mu.Unlock()
	logger.Event(logger.HPC_INFO_LOGGING, "orchestrator ready",
		"experiment", e.name, "entity", o.name, "addresses", o.Addresses())
	return nil
}

// forget drops a stopped orchestrator from the exported addresses.
func (e *Experiment) forget(o *Orchestrator) {
	gone := map[string]bool{}
	for _, addr := range o.Addresses() {
		gone[addr] = true
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	kept := e.ssdb[:0]
	for _, addr := range e.ssdb {
		if !gone[addr] {
			kept = append(kept, addr)
		}
	}
	e.ssdb = kept
}

// SSDB returns the value exported to models as SSDB, empty without a
// running orchestrator.
func (e *Experiment) SSDB() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.ssdb...)
}
