package store

// AppStats holds per-package kill and relaunch counters. Counters only
// ever grow; pruning removes whole rows.
type AppStats struct {
	Package          string
	DisplayName      string
	KillCount        int
	RelaunchCount    int
	LastKillTime     int64 // unix ms, 0 if never
	LastRelaunchTime int64 // unix ms, 0 if never
}
