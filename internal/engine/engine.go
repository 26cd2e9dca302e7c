// Package engine runs reclamation cycles: snapshot the running packages,
// decide which may be terminated, terminate them in one command, record
// stats and check which ones came back.
package engine

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/blackwell-systems/memprune/internal/logging"
	"github.com/blackwell-systems/memprune/internal/pkginfo"
	"github.com/blackwell-systems/memprune/internal/policy"
	"github.com/blackwell-systems/memprune/internal/store"
)

// DefaultSettleDelay is how long the OS gets to restart packages before
// the relaunch re-sample.
const DefaultSettleDelay = 2 * time.Second

// ForegroundCommand dumps the current activity stack.
const ForegroundCommand = "dumpsys activity activities"

// Abort reasons reported in Result.Aborted.
const (
	AbortNoPrivilege = "no privilege available"
	AbortPolicy      = "policy unavailable"
	AbortForeground  = "foreground state unavailable"
	AbortProcesses   = "process list unavailable"
	AbortKill        = "kill command failed"
	AbortCancelled   = "cancelled"
)

// Broker executes privileged shell commands.
type Broker interface {
	HasAnyPrivilege() bool
	Execute(ctx context.Context, command string) bool
	ExecuteCapture(ctx context.Context, command string) (string, bool)
}

// StatsStore is the subset of the stats store the engine writes to.
type StatsStore interface {
	GetStats(pkg string) (*store.AppStats, error)
	InsertStats(st *store.AppStats) error
	IncrementKill(pkg string, timeMs int64) error
	IncrementRelaunch(pkg string, timeMs int64) error
}

// Labeler supplies user-configured display names.
type Labeler interface {
	Lookup(pkg string) string
}

// Result describes one finished cycle.
type Result struct {
	CycleID    uuid.UUID
	Started    time.Time
	Killed     []string
	Relaunched []string
	// Aborted is empty when the cycle ran to completion.
	Aborted string
}

// Config wires an Engine to its collaborators.
type Config struct {
	Broker   Broker
	Policy   policy.Store
	Stats    StatsStore
	Packages pkginfo.Resolver
	Labels   Labeler
	Notifier Notifier

	// SettleDelay before the relaunch check; zero means DefaultSettleDelay
	// and a negative value disables the wait.
	SettleDelay time.Duration

	Now    func() time.Time
	Logger *logging.Logger
}

// Engine performs reclamation cycles. It is safe for concurrent use but
// callers are expected to serialize cycles on one worker.
type Engine struct {
	broker   Broker
	policy   policy.Store
	stats    StatsStore
	packages pkginfo.Resolver
	labels   Labeler
	notifier Notifier
	tracker  *Tracker
	settle   time.Duration
	now      func() time.Time
	log      *logging.Logger
}

// New creates an Engine.
func New(cfg Config) *Engine {
	e := &Engine{
		broker:   cfg.Broker,
		policy:   cfg.Policy,
		stats:    cfg.Stats,
		packages: cfg.Packages,
		labels:   cfg.Labels,
		notifier: cfg.Notifier,
		settle:   cfg.SettleDelay,
		now:      cfg.Now,
		log:      cfg.Logger,
	}
	if e.notifier == nil {
		e.notifier = NopNotifier{}
	}
	if e.settle == 0 {
		e.settle = DefaultSettleDelay
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.log == nil {
		e.log = logging.Default()
	}
	e.tracker = NewTracker(cfg.Broker, cfg.Stats, e.now, e.log)
	return e
}

// Tracker returns the relaunch tracker used after each cycle.
func (e *Engine) Tracker() *Tracker {
	return e.tracker
}

// Perform runs one reclamation cycle. done, if non-nil, is called exactly
// once with the result, whether the cycle completed or aborted early.
func (e *Engine) Perform(ctx context.Context, done func(Result)) Result {
	c := &cycle{
		result: Result{CycleID: uuid.New(), Started: e.now()},
	}

	for _, s := range e.steps() {
		if err := s.run(ctx, c); err != nil {
			var abort *abortError
			switch {
			case errors.As(err, &abort):
				c.result.Aborted = abort.reason
				e.log.Info("cycle %s aborted at %s: %s", c.result.CycleID, s.name, abort.reason)
				if abort.notify {
					e.notifier.Unavailable(abort.reason)
				}
			case errors.Is(err, errNothingToKill):
				e.log.Debug("cycle %s: nothing to kill", c.result.CycleID)
			default:
				c.result.Aborted = err.Error()
				e.log.Error("cycle %s failed at %s: %v", c.result.CycleID, s.name, err)
			}
			break
		}
	}

	if c.result.Aborted == "" && len(c.result.Killed) > 0 {
		e.log.Info("cycle %s killed %d package(s), %d relaunched",
			c.result.CycleID, len(c.result.Killed), len(c.result.Relaunched))
	}
	if done != nil {
		done(c.result)
	}
	return c.result
}

// killCommand batches every force-stop into one shell invocation followed
// by a generic kill of remaining background processes.
func killCommand(pkgs []string) string {
	var b strings.Builder
	for _, pkg := range pkgs {
		b.WriteString("am force-stop ")
		b.WriteString(pkg)
		b.WriteString("; ")
	}
	b.WriteString("am kill-all")
	return b.String()
}
