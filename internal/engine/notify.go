package engine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blackwell-systems/memprune/internal/logging"
)

// Notifier receives best-effort cycle side effects. Implementations must
// not block and must swallow their own failures.
type Notifier interface {
	Killed(count int)
	Refresh()
	Unavailable(reason string)
}

// NopNotifier discards every notification.
type NopNotifier struct{}

func (NopNotifier) Killed(int)         {}
func (NopNotifier) Refresh()           {}
func (NopNotifier) Unavailable(string) {}

// Notifiers fans out to several notifiers in order.
type Notifiers []Notifier

func (ns Notifiers) Killed(count int) {
	for _, n := range ns {
		n.Killed(count)
	}
}

func (ns Notifiers) Refresh() {
	for _, n := range ns {
		n.Refresh()
	}
}

func (ns Notifiers) Unavailable(reason string) {
	for _, n := range ns {
		n.Unavailable(reason)
	}
}

// LogNotifier reports notifications on a logger.
type LogNotifier struct {
	Log *logging.Logger
}

func (n LogNotifier) logger() *logging.Logger {
	if n.Log == nil {
		return logging.Default()
	}
	return n.Log
}

func (n LogNotifier) Killed(count int) {
	n.logger().Info("killed %d background app(s)", count)
}

func (n LogNotifier) Refresh() {}

func (n LogNotifier) Unavailable(reason string) {
	n.logger().Error("reclamation unavailable: %s", reason)
}

// Status is the last-notification summary persisted for status readers.
type Status struct {
	LastKillAt    time.Time `json:"last_kill_at,omitempty"`
	LastKilled    int       `json:"last_killed"`
	TotalKilled   int       `json:"total_killed"`
	LastProblem   string    `json:"last_problem,omitempty"`
	LastProblemAt time.Time `json:"last_problem_at,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StatusFile persists notifications as JSON so a separate CLI process can
// show them.
type StatusFile struct {
	Path string
	Now  func() time.Time

	mu     sync.Mutex
	status Status
}

// NewStatusFile creates a StatusFile writing to path, seeded from any
// existing file.
func NewStatusFile(path string) *StatusFile {
	f := &StatusFile{Path: path, Now: time.Now}
	if st, err := ReadStatus(path); err == nil {
		f.status = st
	}
	return f
}

// ReadStatus loads a status file written by StatusFile.
func ReadStatus(path string) (Status, error) {
	var st Status
	data, err := os.ReadFile(path)
	if err != nil {
		return st, err
	}
	err = json.Unmarshal(data, &st)
	return st, err
}

func (f *StatusFile) Killed(count int) {
	f.update(func(st *Status, now time.Time) {
		st.LastKillAt = now
		st.LastKilled = count
		st.TotalKilled += count
	})
}

func (f *StatusFile) Refresh() {
	f.update(func(*Status, time.Time) {})
}

func (f *StatusFile) Unavailable(reason string) {
	f.update(func(st *Status, now time.Time) {
		st.LastProblem = reason
		st.LastProblemAt = now
	})
}

// Snapshot returns the in-memory status.
func (f *StatusFile) Snapshot() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *StatusFile) update(mutate func(*Status, time.Time)) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.Now()
	mutate(&f.status, now)
	f.status.UpdatedAt = now

	data, err := json.MarshalIndent(f.status, "", "  ")
	if err != nil {
		return
	}
	tmp := f.Path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return
	}
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return
	}
	os.Rename(tmp, f.Path)
}
