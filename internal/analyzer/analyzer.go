// Package analyzer reads the kill/relaunch history and points out packages
// that keep coming back after being terminated.
package analyzer

import "github.com/blackwell-systems/memprune/internal/store"

// StatsReader is the read side of the stats store.
type StatsReader interface {
	QueryWindow(sinceMs int64) ([]*store.AppStats, error)
	RelaunchedSince(sinceMs int64) ([]*store.AppStats, error)
}

// SetReader reads policy sets.
type SetReader interface {
	GetSet(key string) (map[string]struct{}, error)
}

// Analyzer computes history summaries and greedy-app suggestions.
type Analyzer struct {
	stats  StatsReader
	policy SetReader
}

// New creates a new Analyzer. policy may be nil, in which case no package
// is considered already blocked.
func New(stats StatsReader, policy SetReader) *Analyzer {
	return &Analyzer{stats: stats, policy: policy}
}
