package store

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/blackwell-systems/memprune/internal/policy"
)

// TestGetStats_NoSchema_ReturnsErrNotInitialized verifies that calling
// GetStats on a fresh DB (no CreateSchema) returns ErrNotInitialized.
func TestGetStats_NoSchema_ReturnsErrNotInitialized(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Close()

	// Do NOT call CreateSchema; simulate uninitialized database.
	_, err = s.GetStats("com.example.a")
	if err == nil {
		t.Fatal("GetStats() should return an error on uninitialized DB")
	}
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("GetStats() error = %v; want errors.Is(err, ErrNotInitialized) to be true", err)
	}
}

func TestGetSet_NoSchema_ReturnsErrNotInitialized(t *testing.T) {
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer s.Close()

	_, err = s.GetSet(policy.KeyHidden)
	if !errors.Is(err, ErrNotInitialized) {
		t.Errorf("GetSet() error = %v; want ErrNotInitialized", err)
	}
}

func TestErrNotInitialized_ErrorMessage(t *testing.T) {
	if !strings.Contains(ErrNotInitialized.Error(), "memprune") {
		t.Errorf("ErrNotInitialized message %q should mention memprune", ErrNotInitialized.Error())
	}
}

// Helper function to create an in-memory store for testing
func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	if err := store.CreateSchema(); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return store
}

func TestCreateSchema(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	tables := []string{"app_stats", "policy_sets", "settings"}
	for _, table := range tables {
		var name string
		err := store.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s not found: %v", table, err)
		}
	}

	// Schema creation is idempotent
	if err := store.CreateSchema(); err != nil {
		t.Errorf("second CreateSchema() failed: %v", err)
	}
}

func TestInsertAndGetStats(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	if got, err := store.GetStats("com.example.a"); err != nil || got != nil {
		t.Fatalf("GetStats() on empty table = %v, %v; want nil, nil", got, err)
	}

	if err := store.InsertStats(&AppStats{Package: "com.example.a", DisplayName: "Example A"}); err != nil {
		t.Fatalf("InsertStats() failed: %v", err)
	}

	got, err := store.GetStats("com.example.a")
	if err != nil {
		t.Fatalf("GetStats() failed: %v", err)
	}
	if got.DisplayName != "Example A" || got.KillCount != 0 || got.RelaunchCount != 0 {
		t.Errorf("GetStats() = %+v", got)
	}
}

func TestInsertStats_DoesNotResetCounters(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	store.InsertStats(&AppStats{Package: "com.example.a"})
	store.IncrementKill("com.example.a", 1000)
	store.IncrementKill("com.example.a", 2000)

	if err := store.InsertStats(&AppStats{Package: "com.example.a", DisplayName: "again"}); err != nil {
		t.Fatalf("InsertStats() on existing row failed: %v", err)
	}

	got, _ := store.GetStats("com.example.a")
	if got.KillCount != 2 || got.LastKillTime != 2000 {
		t.Errorf("existing row modified by InsertStats: %+v", got)
	}
}

func TestIncrementCounters(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	store.InsertStats(&AppStats{Package: "com.example.a"})

	if err := store.IncrementKill("com.example.a", 1000); err != nil {
		t.Fatalf("IncrementKill() failed: %v", err)
	}
	if err := store.IncrementRelaunch("com.example.a", 1500); err != nil {
		t.Fatalf("IncrementRelaunch() failed: %v", err)
	}

	got, _ := store.GetStats("com.example.a")
	if got.KillCount != 1 || got.LastKillTime != 1000 {
		t.Errorf("kill counters = %d/%d, want 1/1000", got.KillCount, got.LastKillTime)
	}
	if got.RelaunchCount != 1 || got.LastRelaunchTime != 1500 {
		t.Errorf("relaunch counters = %d/%d, want 1/1500", got.RelaunchCount, got.LastRelaunchTime)
	}
}

func TestIncrementKill_Concurrent(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	store.InsertStats(&AppStats{Package: "com.example.a"})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(ts int64) {
			defer wg.Done()
			store.IncrementKill("com.example.a", ts)
		}(int64(i))
	}
	wg.Wait()

	got, _ := store.GetStats("com.example.a")
	if got.KillCount != 20 {
		t.Errorf("KillCount = %d, want 20", got.KillCount)
	}
}

func TestQueryWindow(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	for _, pkg := range []string{"com.example.a", "com.example.b", "com.example.old"} {
		store.InsertStats(&AppStats{Package: pkg})
	}
	store.IncrementKill("com.example.a", 5000)
	store.IncrementKill("com.example.b", 5000)
	store.IncrementKill("com.example.b", 6000)
	store.IncrementKill("com.example.old", 100)

	stats, err := store.QueryWindow(1000)
	if err != nil {
		t.Fatalf("QueryWindow() failed: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("QueryWindow() returned %d rows, want 2", len(stats))
	}
	if stats[0].Package != "com.example.b" || stats[1].Package != "com.example.a" {
		t.Errorf("QueryWindow() order = %s, %s; want b, a", stats[0].Package, stats[1].Package)
	}
}

func TestRelaunchedSince(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	store.InsertStats(&AppStats{Package: "com.example.a"})
	store.InsertStats(&AppStats{Package: "com.example.b"})
	store.IncrementRelaunch("com.example.a", 5000)
	store.IncrementRelaunch("com.example.b", 5000)
	store.IncrementRelaunch("com.example.b", 5100)
	store.IncrementKill("com.example.c", 5000) // no row, no effect

	stats, err := store.RelaunchedSince(1000)
	if err != nil {
		t.Fatalf("RelaunchedSince() failed: %v", err)
	}
	if len(stats) != 2 || stats[0].Package != "com.example.b" || stats[0].RelaunchCount != 2 {
		t.Errorf("RelaunchedSince() = %+v", stats)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	store.InsertStats(&AppStats{Package: "com.example.old"})
	store.InsertStats(&AppStats{Package: "com.example.recentkill"})
	store.InsertStats(&AppStats{Package: "com.example.recentrelaunch"})
	store.IncrementKill("com.example.old", 100)
	store.IncrementKill("com.example.recentkill", 9000)
	store.IncrementKill("com.example.recentrelaunch", 100)
	store.IncrementRelaunch("com.example.recentrelaunch", 9000)

	n, err := store.DeleteOlderThan(5000)
	if err != nil {
		t.Fatalf("DeleteOlderThan() failed: %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteOlderThan() removed %d rows, want 1", n)
	}
	if got, _ := store.GetStats("com.example.old"); got != nil {
		t.Error("old row should be pruned")
	}
	for _, pkg := range []string{"com.example.recentkill", "com.example.recentrelaunch"} {
		got, _ := store.GetStats(pkg)
		if got == nil || got.KillCount != 1 {
			t.Errorf("%s should survive pruning with counters intact, got %+v", pkg, got)
		}
	}
}

func TestPolicySets(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	if err := store.AddToSet(policy.KeyWhitelisted, "com.example.a", "com.example.b"); err != nil {
		t.Fatalf("AddToSet() failed: %v", err)
	}
	// Adding twice is a no-op
	if err := store.AddToSet(policy.KeyWhitelisted, "com.example.a"); err != nil {
		t.Fatalf("AddToSet() duplicate failed: %v", err)
	}
	if err := store.AddToSet(policy.KeyHidden, "com.example.h"); err != nil {
		t.Fatalf("AddToSet() failed: %v", err)
	}

	set, err := store.GetSet(policy.KeyWhitelisted)
	if err != nil {
		t.Fatalf("GetSet() failed: %v", err)
	}
	if len(set) != 2 {
		t.Errorf("GetSet() = %v, want 2 members", set)
	}

	if err := store.RemoveFromSet(policy.KeyWhitelisted, "com.example.a", "com.example.missing"); err != nil {
		t.Fatalf("RemoveFromSet() failed: %v", err)
	}
	set, _ = store.GetSet(policy.KeyWhitelisted)
	if _, ok := set["com.example.a"]; ok || len(set) != 1 {
		t.Errorf("GetSet() after remove = %v", set)
	}

	hidden, _ := store.GetSet(policy.KeyHidden)
	if _, ok := hidden["com.example.h"]; !ok || len(hidden) != 1 {
		t.Errorf("sets leaked across keys: hidden = %v", hidden)
	}
}

func TestSaveSet_Replaces(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	store.AddToSet(policy.KeyBlacklisted, "com.example.a")
	err := store.SaveSet(policy.KeyBlacklisted, map[string]struct{}{"com.example.b": {}, "com.example.c": {}})
	if err != nil {
		t.Fatalf("SaveSet() failed: %v", err)
	}

	set, _ := store.GetSet(policy.KeyBlacklisted)
	if len(set) != 2 {
		t.Fatalf("GetSet() = %v, want b and c", set)
	}
	if _, ok := set["com.example.a"]; ok {
		t.Error("SaveSet() should replace previous members")
	}
}

func TestKillMode(t *testing.T) {
	store := newTestStore(t)
	defer store.Close()

	mode, err := store.GetKillMode()
	if err != nil || mode != policy.Whitelist {
		t.Fatalf("default GetKillMode() = %v, %v; want whitelist", mode, err)
	}

	if err := store.SetKillMode(policy.Blacklist); err != nil {
		t.Fatalf("SetKillMode() failed: %v", err)
	}
	if mode, _ := store.GetKillMode(); mode != policy.Blacklist {
		t.Errorf("GetKillMode() = %v, want blacklist", mode)
	}

	store.SetKillMode(policy.Whitelist)
	if mode, _ := store.GetKillMode(); mode != policy.Whitelist {
		t.Errorf("GetKillMode() = %v, want whitelist", mode)
	}
}

func TestOpen_CreatesSchema(t *testing.T) {
	path := t.TempDir() + "/memprune.db"
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer st.Close()

	if _, err := st.GetSet(policy.KeyHidden); err != nil {
		t.Errorf("GetSet() after Open() failed: %v", err)
	}
}
