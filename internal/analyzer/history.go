package analyzer

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/blackwell-systems/memprune/internal/policy"
	"github.com/blackwell-systems/memprune/internal/store"
)

// History returns every package killed or relaunched within window before
// now, ordered by kill count (most killed first). Packages whose relaunch
// count exceeds threshold are flagged greedy.
func (a *Analyzer) History(now time.Time, window time.Duration, threshold int) ([]HistoryEntry, error) {
	rows, err := a.stats.QueryWindow(now.Add(-window).UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	entries := make([]HistoryEntry, 0, len(rows))
	for _, st := range rows {
		if st.KillCount == 0 && st.RelaunchCount == 0 {
			continue
		}
		entries = append(entries, HistoryEntry{
			Package:       st.Package,
			DisplayName:   DisplayName(st),
			KillCount:     st.KillCount,
			RelaunchCount: st.RelaunchCount,
			LastKill:      fromMillis(st.LastKillTime),
			LastRelaunch:  fromMillis(st.LastRelaunchTime),
			Greedy:        st.RelaunchCount > threshold,
		})
	}
	return entries, nil
}

// Greedy returns packages relaunched more than threshold times within
// window, excluding those whose autostart is already blocked. The result
// is ordered by relaunch count, highest first.
func (a *Analyzer) Greedy(now time.Time, window time.Duration, threshold int) ([]GreedyApp, error) {
	rows, err := a.stats.RelaunchedSince(now.Add(-window).UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to query relaunches: %w", err)
	}

	blocked := map[string]struct{}{}
	if a.policy != nil {
		blocked, err = a.policy.GetSet(policy.KeyAutostartDisabled)
		if err != nil {
			return nil, fmt.Errorf("failed to read autostart set: %w", err)
		}
	}

	var apps []GreedyApp
	for _, st := range rows {
		if st.RelaunchCount <= threshold {
			continue
		}
		if _, ok := blocked[st.Package]; ok {
			continue
		}
		apps = append(apps, GreedyApp{
			Package:       st.Package,
			DisplayName:   DisplayName(st),
			RelaunchCount: st.RelaunchCount,
			KillCount:     st.KillCount,
			LastRelaunch:  fromMillis(st.LastRelaunchTime),
		})
	}

	sort.SliceStable(apps, func(i, j int) bool {
		return apps[i].RelaunchCount > apps[j].RelaunchCount
	})
	return apps, nil
}

// Summarize totals a history listing.
func Summarize(entries []HistoryEntry, since time.Time) Summary {
	s := Summary{Since: since, Packages: len(entries)}
	for _, e := range entries {
		s.TotalKills += e.KillCount
		s.TotalRelaunch += e.RelaunchCount
		if e.Greedy {
			s.Greedy++
		}
	}
	return s
}

// DisplayName prefers the stored label and falls back to the last
// dot-separated segment of the package name.
func DisplayName(st *store.AppStats) string {
	if st.DisplayName != "" {
		return st.DisplayName
	}
	name := st.Package
	if i := strings.LastIndex(name, "."); i != -1 && i < len(name)-1 {
		return name[i+1:]
	}
	return name
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
