package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blackwell-systems/memprune/internal/config"
	"github.com/blackwell-systems/memprune/internal/engine"
	"github.com/blackwell-systems/memprune/internal/logging"
)

// Kind names an external trigger.
type Kind string

const (
	TriggerPeriodic      Kind = "periodic"
	TriggerManual        Kind = "manual"
	TriggerScreenOff     Kind = "screen_off"
	TriggerBootCompleted Kind = "boot_completed"
)

// ParseKind accepts the externally triggerable kinds.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case TriggerManual, TriggerScreenOff, TriggerBootCompleted:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownTrigger, s)
	}
}

// Trigger outcomes.
var (
	ErrUnknownTrigger = errors.New("unknown trigger")
	ErrBelowThreshold = errors.New("memory usage below threshold")
	ErrDisabled       = errors.New("trigger disabled in settings")
)

// DefaultPruneInterval is how often the retention pruner runs.
const DefaultPruneInterval = time.Hour

// Performer runs one reclamation cycle.
type Performer interface {
	Perform(ctx context.Context, done func(engine.Result)) engine.Result
}

// SettingsSource returns the settings in effect right now.
type SettingsSource interface {
	Current() config.Settings
}

// Gate reports memory pressure.
type Gate interface {
	UsedPercent() int
	AboveThreshold(threshold int) bool
}

// Pruner deletes stats whose activity is older than a cutoff.
type Pruner interface {
	DeleteOlderThan(thresholdMs int64) (int64, error)
}

// Reapplier re-asserts persisted autostart blocks.
type Reapplier interface {
	Reapply(ctx context.Context) error
}

// Config wires a Scheduler to its collaborators. Autostart may be nil.
type Config struct {
	Engine    Performer
	Settings  SettingsSource
	Gate      Gate
	Stats     Pruner
	Autostart Reapplier

	PruneInterval time.Duration
	Now           func() time.Time
	Logger        *logging.Logger
}

// Scheduler owns the periodic loop, the pruner and the worker that runs
// every cycle.
type Scheduler struct {
	engine    Performer
	settings  SettingsSource
	gate      Gate
	stats     Pruner
	autostart Reapplier

	pruneInterval time.Duration
	now           func() time.Time
	log           *logging.Logger

	worker *Worker
	state  *State
	alive  atomic.Bool

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New creates a stopped Scheduler.
func New(cfg Config) *Scheduler {
	s := &Scheduler{
		engine:        cfg.Engine,
		settings:      cfg.Settings,
		gate:          cfg.Gate,
		stats:         cfg.Stats,
		autostart:     cfg.Autostart,
		pruneInterval: cfg.PruneInterval,
		now:           cfg.Now,
		log:           cfg.Logger,
		worker:        NewWorker(defaultQueueSize),
		state:         NewState(),
	}
	if s.pruneInterval <= 0 {
		s.pruneInterval = DefaultPruneInterval
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = logging.Default()
	}
	return s
}

// State returns the running-state accessor.
func (s *Scheduler) State() *State {
	return s.state
}

// Start launches the worker, the periodic loop and the pruner.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alive.Load() {
		return fmt.Errorf("scheduler already running")
	}
	if s.stopCh != nil {
		return fmt.Errorf("scheduler cannot be restarted")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.stopCh = make(chan struct{})
	s.alive.Store(true)
	s.state.setRunning(true, s.now())

	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		s.worker.Run(s.ctx)
	}()
	go s.runPeriodic()
	go s.runPruner()

	s.log.Info("scheduler started")
	return nil
}

// Stop clears the liveness flag, cancels in-flight work and waits for every
// goroutine to exit.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.alive.Swap(false) {
		s.mu.Unlock()
		return nil
	}
	close(s.stopCh)
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.state.setRunning(false, s.now())
	s.log.Info("scheduler stopped")
	return nil
}

// runPeriodic is the Idle, Waiting, Running loop.
func (s *Scheduler) runPeriodic() {
	defer s.wg.Done()

	for {
		if !s.alive.Load() {
			return
		}
		interval := s.settings.Current().Interval
		s.state.setPhase(PhaseWaiting, s.now().Add(interval))

		timer := time.NewTimer(interval)
		select {
		case <-timer.C:
		case <-s.stopCh:
			timer.Stop()
			return
		}

		if !s.alive.Load() {
			return
		}
		st := s.settings.Current()
		if !st.PeriodicEnabled {
			continue
		}
		if err := s.checkGate(st); err != nil {
			s.log.Debug("periodic cycle skipped: %v", err)
			continue
		}

		done := make(chan struct{})
		if err := s.enqueueCycle(TriggerPeriodic, func() { close(done) }); err != nil {
			s.log.Error("periodic cycle not queued: %v", err)
			continue
		}
		select {
		case <-done:
		case <-s.stopCh:
			return
		}
	}
}

// Trigger fires a cycle or maintenance action for an external signal.
// Cycle triggers honour the RAM gate; screen-off also requires
// kill_on_screen_off.
func (s *Scheduler) Trigger(kind Kind) error {
	if !s.alive.Load() {
		return ErrStopped
	}
	st := s.settings.Current()

	switch kind {
	case TriggerManual:
	case TriggerScreenOff:
		if !st.KillOnScreenOff {
			return ErrDisabled
		}
	case TriggerBootCompleted:
		return s.enqueueBoot(st.BootDelay)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTrigger, kind)
	}

	if err := s.checkGate(st); err != nil {
		s.log.Info("%s trigger skipped: %v", kind, err)
		return err
	}
	return s.enqueueCycle(kind, nil)
}

func (s *Scheduler) checkGate(st config.Settings) error {
	if !st.RAMGate.Enabled || s.gate == nil {
		return nil
	}
	if s.gate.AboveThreshold(st.RAMGate.Threshold) {
		return nil
	}
	reason := fmt.Sprintf("%d%% used, threshold %d%%", s.gate.UsedPercent(), st.RAMGate.Threshold)
	s.state.skipped(reason)
	return fmt.Errorf("%w (%s)", ErrBelowThreshold, reason)
}

// enqueueCycle submits a cycle to the worker. then runs after the cycle's
// completion signal unless the scheduler has shut down by then.
func (s *Scheduler) enqueueCycle(kind Kind, then func()) error {
	return s.worker.Submit(func(ctx context.Context) {
		if !s.alive.Load() {
			return
		}
		s.state.begin()
		s.engine.Perform(ctx, func(r engine.Result) {
			if !s.alive.Load() {
				return
			}
			s.state.finished(kind, r, s.now())
			if then != nil {
				then()
			}
		})
	})
}

func (s *Scheduler) enqueueBoot(delay time.Duration) error {
	if s.autostart == nil {
		return ErrDisabled
	}
	return s.worker.Submit(func(ctx context.Context) {
		if delay > 0 {
			t := time.NewTimer(delay)
			defer t.Stop()
			select {
			case <-t.C:
			case <-ctx.Done():
				return
			}
		}
		if err := s.autostart.Reapply(ctx); err != nil {
			s.log.Error("failed to re-apply autostart blocks: %v", err)
			return
		}
		s.log.Info("autostart blocks re-applied")
	})
}

func (s *Scheduler) runPruner() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.worker.Submit(func(context.Context) { s.Prune() }); err != nil {
				s.log.Debug("prune not queued: %v", err)
			}
		case <-s.stopCh:
			return
		}
	}
}

// Prune deletes stats older than the retention window and returns the
// number of rows removed.
func (s *Scheduler) Prune() int64 {
	return Prune(s.stats, s.settings.Current().Retention, s.now(), s.log)
}

// Prune deletes stats older than retention relative to now. Failures are
// logged and reported as zero rows.
func Prune(st Pruner, retention time.Duration, now time.Time, log *logging.Logger) int64 {
	if st == nil {
		return 0
	}
	if retention <= 0 {
		retention = config.DefaultRetention
	}
	n, err := st.DeleteOlderThan(now.Add(-retention).UnixMilli())
	if err != nil {
		log.Error("failed to prune stats: %v", err)
		return 0
	}
	if n > 0 {
		log.Info("pruned %d stats record(s) older than %s", n, retention)
	}
	return n
}
