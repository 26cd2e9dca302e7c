package scheduler

import (
	"sync"
	"time"

	"github.com/blackwell-systems/memprune/internal/engine"
)

// Phase is the periodic loop's position.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseWaiting Phase = "waiting"
	PhaseRunning Phase = "running"
	PhaseStopped Phase = "stopped"
)

// CycleSummary is the JSON-friendly view of an engine.Result.
type CycleSummary struct {
	ID         string    `json:"id"`
	Trigger    Kind      `json:"trigger"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
	Killed     []string  `json:"killed"`
	Relaunched []string  `json:"relaunched,omitempty"`
	Aborted    string    `json:"aborted,omitempty"`
}

// StateView is a point-in-time copy of the running state.
type StateView struct {
	Running   bool          `json:"running"`
	Phase     Phase         `json:"phase"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	NextRun   time.Time     `json:"next_run,omitempty"`
	Cycles    int           `json:"cycles"`
	Killed    int           `json:"killed_total"`
	LastSkip  string        `json:"last_skip,omitempty"`
	Last      *CycleSummary `json:"last_cycle,omitempty"`
}

// State is the scheduler's running state, owned by its lifecycle and read
// by anything that needs to know whether reclamation is active.
type State struct {
	mu   sync.RWMutex
	view StateView
}

// NewState returns an idle, not-running state.
func NewState() *State {
	return &State{view: StateView{Phase: PhaseIdle}}
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() StateView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.view
	if v.Last != nil {
		last := *v.Last
		v.Last = &last
	}
	return v
}

// Running reports whether the scheduler is live.
func (s *State) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.Running
}

func (s *State) setRunning(running bool, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.Running = running
	if running {
		s.view.StartedAt = now
		s.view.Phase = PhaseIdle
	} else {
		s.view.Phase = PhaseStopped
		s.view.NextRun = time.Time{}
	}
}

func (s *State) setPhase(p Phase, next time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.view.Running {
		return
	}
	s.view.Phase = p
	s.view.NextRun = next
}

func (s *State) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view.Running {
		s.view.Phase = PhaseRunning
	}
}

func (s *State) skipped(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.view.LastSkip = reason
}

func (s *State) finished(kind Kind, r engine.Result, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view.Running {
		if s.view.NextRun.After(now) {
			s.view.Phase = PhaseWaiting
		} else {
			s.view.Phase = PhaseIdle
		}
	}
	s.view.Cycles++
	s.view.Killed += len(r.Killed)
	s.view.Last = &CycleSummary{
		ID:         r.CycleID.String(),
		Trigger:    kind,
		Started:    r.Started,
		Finished:   now,
		Killed:     r.Killed,
		Relaunched: r.Relaunched,
		Aborted:    r.Aborted,
	}
}
