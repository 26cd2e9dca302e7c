package engine

import (
	"context"
	"time"

	"github.com/blackwell-systems/memprune/internal/logging"
	"github.com/blackwell-systems/memprune/internal/procs"
)

// RelaunchRecorder records that a package came back after a kill.
type RelaunchRecorder interface {
	IncrementRelaunch(pkg string, timeMs int64) error
}

// Tracker detects packages that restarted shortly after being killed.
// It only maintains counters; acting on them is left to the analyzer.
type Tracker struct {
	exec  procs.Capturer
	stats RelaunchRecorder
	now   func() time.Time
	log   *logging.Logger
}

// NewTracker creates a Tracker. now and log may be nil.
func NewTracker(exec procs.Capturer, stats RelaunchRecorder, now func() time.Time, log *logging.Logger) *Tracker {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logging.Default()
	}
	return &Tracker{exec: exec, stats: stats, now: now, log: log}
}

// Check re-samples running packages and increments the relaunch counter
// once for every killed package found running again. It returns those
// packages. A failed re-sample records nothing.
func (t *Tracker) Check(ctx context.Context, killed []string) []string {
	if len(killed) == 0 {
		return nil
	}
	running, ok := procs.Names(ctx, t.exec)
	if !ok {
		t.log.Debug("relaunch check skipped: process list unavailable")
		return nil
	}

	now := t.now().UnixMilli()
	var relaunched []string
	seen := make(map[string]struct{}, len(killed))
	for _, pkg := range killed {
		if _, dup := seen[pkg]; dup {
			continue
		}
		seen[pkg] = struct{}{}
		if _, ok := running[pkg]; !ok {
			continue
		}
		if err := t.stats.IncrementRelaunch(pkg, now); err != nil {
			t.log.Error("failed to record relaunch of %s: %v", pkg, err)
			continue
		}
		relaunched = append(relaunched, pkg)
	}
	return relaunched
}
