// Package worker contains background coordinators run by the agent.
// Each coordinator owns one periodic concern and runs until its context
// is cancelled.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/candleworks/candle/internal/connectivity"
	"github.com/candleworks/candle/internal/types"
)

// Syncer replays pending queue operations for every owner.
// *client.Service satisfies this interface.
type Syncer interface {
	SyncAll(ctx context.Context) map[string]types.DrainSummary
}

// ConnectivityProbe reports whether the remote server is reachable.
type ConnectivityProbe interface {
	IsOnline() bool
}

// DrainCoordinator periodically drains the sync queue. It also watches
// for offline-to-online transitions and drains immediately when
// connectivity comes back, instead of waiting a full interval.
type DrainCoordinator struct {
	syncer   Syncer
	probe    ConnectivityProbe
	interval time.Duration
}

// NewDrainCoordinator creates a coordinator that drains the sync queue
// on the given interval.
func NewDrainCoordinator(syncer Syncer, probe ConnectivityProbe, interval time.Duration) *DrainCoordinator {
	return &DrainCoordinator{
		syncer:   syncer,
		probe:    probe,
		interval: interval,
	}
}

// Run starts the coordinator loop.
func (c *DrainCoordinator) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "drain-coordinator",
		"action", "worker_started",
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Connectivity transitions are watched more often than the drain
	// interval so a reconnect is picked up within seconds.
	transitions := connectivity.Watch(ctx, c.probe, c.probeInterval())

	// Drain immediately on start
	c.drain(ctx, "startup")

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "drain-coordinator",
				"action", "worker_stopped",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			c.drain(ctx, "interval")
		case online, ok := <-transitions:
			if !ok {
				transitions = nil
				continue
			}
			if online {
				c.drain(ctx, "reconnect")
			}
		}
	}
}

// connectivityProbeEvery is how often the probe is polled for an
// offline-to-online transition.
const connectivityProbeEvery = 2 * time.Second

func (c *DrainCoordinator) probeInterval() time.Duration {
	if c.interval < connectivityProbeEvery {
		return c.interval
	}
	return connectivityProbeEvery
}

// drain runs one sync cycle across all owners and logs a summary.
func (c *DrainCoordinator) drain(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}

	summaries := c.syncer.SyncAll(ctx)

	var synced, failed, remaining int
	skipped := true
	for _, summary := range summaries {
		synced += summary.Synced
		failed += summary.Failed
		remaining += summary.Remaining
		if !summary.Skipped {
			skipped = false
		}
	}

	if len(summaries) == 0 {
		return // nothing queued, stay quiet
	}

	if skipped {
		slog.Debug("drain skipped while offline",
			"component", "worker",
			"worker", "drain-coordinator",
			"action", "drain_skipped",
			"trigger", trigger,
			"owners", len(summaries),
		)
		return
	}

	slog.Info("drain cycle completed",
		"component", "worker",
		"worker", "drain-coordinator",
		"action", "cycle_complete",
		"trigger", trigger,
		"owners", len(summaries),
		"synced", synced,
		"failed", failed,
		"remaining", remaining,
	)
}
