package slurm

import (
	"context"
	"fmt"

	launcher "smartsim.io/smartsim-hpc/launcher"
	logger "smartsim.io/smartsim-hpc/logger"
)

func (l *Launcher) Stop(ctx context.Context, h launcher.Handle) error {
	if !h.Batch {
		return l.Local.Stop(ctx, h)
	}
	if _, err := l.Commander.Output(ctx, nil, SCancelName, h.ID); err != nil {
		return fmt.Errorf("scancel: %w", err)
	}
	l.mu.Lock()
	l.cancelled[h.ID] = true
	l.mu.Unlock()
	logger.InfoPrintf("scancel: cancelled job %s (%s)", h.ID, h.Name)
	return nil
}
