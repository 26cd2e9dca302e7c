package analyzer

import (
	"testing"
	"time"

	"github.com/blackwell-systems/memprune/internal/policy"
	"github.com/blackwell-systems/memprune/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := s.CreateSchema(); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return s
}

func insertStats(t *testing.T, s *store.Store, st store.AppStats) {
	t.Helper()
	if err := s.InsertStats(&st); err != nil {
		t.Fatalf("failed to insert stats for %s: %v", st.Package, err)
	}
}

func TestHistory(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()

	now := time.Now()
	recent := now.Add(-time.Hour).UnixMilli()
	old := now.Add(-24 * time.Hour).UnixMilli()

	insertStats(t, s, store.AppStats{Package: "com.example.chatty", DisplayName: "Chatty", KillCount: 9, RelaunchCount: 5, LastKillTime: recent, LastRelaunchTime: recent})
	insertStats(t, s, store.AppStats{Package: "com.example.quiet", KillCount: 2, LastKillTime: recent})
	insertStats(t, s, store.AppStats{Package: "com.example.stale", KillCount: 20, LastKillTime: old})

	a := New(s, s)
	entries, err := a.History(now, 12*time.Hour, 3)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Package != "com.example.chatty" {
		t.Errorf("expected most-killed first, got %s", entries[0].Package)
	}
	if !entries[0].Greedy {
		t.Error("expected com.example.chatty to be flagged greedy")
	}
	if entries[1].Greedy {
		t.Error("com.example.quiet should not be greedy")
	}
	if entries[1].DisplayName != "quiet" {
		t.Errorf("expected fallback display name 'quiet', got %q", entries[1].DisplayName)
	}
	if !entries[1].LastRelaunch.IsZero() {
		t.Errorf("expected zero relaunch time, got %v", entries[1].LastRelaunch)
	}

	sum := Summarize(entries, now.Add(-12*time.Hour))
	if sum.Packages != 2 || sum.TotalKills != 11 || sum.TotalRelaunch != 5 || sum.Greedy != 1 {
		t.Errorf("unexpected summary: %+v", sum)
	}
}

func TestGreedy(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()

	now := time.Now()
	recent := now.Add(-30 * time.Minute).UnixMilli()

	insertStats(t, s, store.AppStats{Package: "com.example.a", RelaunchCount: 4, LastRelaunchTime: recent})
	insertStats(t, s, store.AppStats{Package: "com.example.b", RelaunchCount: 7, LastRelaunchTime: recent})
	insertStats(t, s, store.AppStats{Package: "com.example.c", RelaunchCount: 3, LastRelaunchTime: recent})
	insertStats(t, s, store.AppStats{Package: "com.example.blocked", RelaunchCount: 10, LastRelaunchTime: recent})
	insertStats(t, s, store.AppStats{Package: "com.example.old", RelaunchCount: 10, LastRelaunchTime: now.Add(-13 * time.Hour).UnixMilli()})

	if err := s.AddToSet(policy.KeyAutostartDisabled, "com.example.blocked"); err != nil {
		t.Fatalf("AddToSet failed: %v", err)
	}

	apps, err := New(s, s).Greedy(now, 12*time.Hour, 3)
	if err != nil {
		t.Fatalf("Greedy failed: %v", err)
	}

	var got []string
	for _, app := range apps {
		got = append(got, app.Package)
	}
	want := []string{"com.example.b", "com.example.a"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestGreedy_NilPolicy(t *testing.T) {
	s := setupTestStore(t)
	defer s.Close()

	now := time.Now()
	insertStats(t, s, store.AppStats{Package: "com.example.a", RelaunchCount: 4, LastRelaunchTime: now.UnixMilli()})

	apps, err := New(s, nil).Greedy(now, time.Hour, 3)
	if err != nil {
		t.Fatalf("Greedy failed: %v", err)
	}
	if len(apps) != 1 {
		t.Fatalf("expected 1 greedy app, got %d", len(apps))
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		st   store.AppStats
		want string
	}{
		{store.AppStats{Package: "com.example.maps", DisplayName: "Maps"}, "Maps"},
		{store.AppStats{Package: "com.example.maps"}, "maps"},
		{store.AppStats{Package: "com.example."}, "com.example."},
		{store.AppStats{Package: "plain"}, "plain"},
	}

	for _, tt := range tests {
		if got := DisplayName(&tt.st); got != tt.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tt.st.Package, got, tt.want)
		}
	}
}
