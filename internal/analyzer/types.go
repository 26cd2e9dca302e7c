package analyzer

import "time"

// HistoryEntry is one package's activity within the history window.
type HistoryEntry struct {
	Package       string
	DisplayName   string
	KillCount     int
	RelaunchCount int
	LastKill      time.Time // zero if never killed
	LastRelaunch  time.Time // zero if never relaunched
	Greedy        bool      // relaunch count above the greedy threshold
}

// GreedyApp is a package suggested for autostart blocking.
type GreedyApp struct {
	Package       string
	DisplayName   string
	RelaunchCount int
	KillCount     int
	LastRelaunch  time.Time
}

// Summary aggregates a history window.
type Summary struct {
	Since         time.Time
	Packages      int
	TotalKills    int
	TotalRelaunch int
	Greedy        int
}
