package store

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/blackwell-systems/memprune/internal/policy"
)

// App stats operations

const statsColumns = `package_name, app_name, kill_count, relaunch_count, last_kill_time, last_relaunch_time`

// GetStats retrieves the stats row for a package. Returns nil, nil when the
// package has never been killed.
func (s *Store) GetStats(pkg string) (*AppStats, error) {
	query := `SELECT ` + statsColumns + ` FROM app_stats WHERE package_name = ?`

	var st AppStats
	err := s.db.QueryRow(query, pkg).Scan(
		&st.Package,
		&st.DisplayName,
		&st.KillCount,
		&st.RelaunchCount,
		&st.LastKillTime,
		&st.LastRelaunchTime,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr(err, "failed to get stats for %s", pkg)
	}
	return &st, nil
}

// InsertStats creates a stats row. An existing row is left untouched so
// concurrent first kills from two processes cannot reset counters.
func (s *Store) InsertStats(st *AppStats) error {
	query := `
		INSERT OR IGNORE INTO app_stats
		(` + statsColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		st.Package,
		st.DisplayName,
		st.KillCount,
		st.RelaunchCount,
		st.LastKillTime,
		st.LastRelaunchTime,
	)
	if err != nil {
		return wrapErr(err, "failed to insert stats for %s", st.Package)
	}
	return nil
}

// IncrementKill adds one to the kill counter and stamps the kill time.
func (s *Store) IncrementKill(pkg string, timeMs int64) error {
	query := `UPDATE app_stats SET kill_count = kill_count + 1, last_kill_time = ? WHERE package_name = ?`
	if _, err := s.db.Exec(query, timeMs, pkg); err != nil {
		return wrapErr(err, "failed to increment kill count for %s", pkg)
	}
	return nil
}

// IncrementRelaunch adds one to the relaunch counter and stamps the time.
func (s *Store) IncrementRelaunch(pkg string, timeMs int64) error {
	query := `UPDATE app_stats SET relaunch_count = relaunch_count + 1, last_relaunch_time = ? WHERE package_name = ?`
	if _, err := s.db.Exec(query, timeMs, pkg); err != nil {
		return wrapErr(err, "failed to increment relaunch count for %s", pkg)
	}
	return nil
}

// QueryWindow returns packages killed or relaunched after sinceMs, ordered
// by kill count descending.
func (s *Store) QueryWindow(sinceMs int64) ([]*AppStats, error) {
	query := `
		SELECT ` + statsColumns + `
		FROM app_stats
		WHERE last_kill_time > ? OR last_relaunch_time > ?
		ORDER BY kill_count DESC, package_name
	`
	return s.queryStats(query, sinceMs, sinceMs)
}

// RelaunchedSince returns packages relaunched after sinceMs, ordered by
// relaunch count descending.
func (s *Store) RelaunchedSince(sinceMs int64) ([]*AppStats, error) {
	query := `
		SELECT ` + statsColumns + `
		FROM app_stats
		WHERE last_relaunch_time > ?
		ORDER BY relaunch_count DESC, package_name
	`
	return s.queryStats(query, sinceMs)
}

func (s *Store) queryStats(query string, args ...interface{}) ([]*AppStats, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapErr(err, "failed to query stats")
	}
	defer rows.Close()

	var out []*AppStats
	for rows.Next() {
		var st AppStats
		if err := rows.Scan(
			&st.Package,
			&st.DisplayName,
			&st.KillCount,
			&st.RelaunchCount,
			&st.LastKillTime,
			&st.LastRelaunchTime,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		out = append(out, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stats: %w", err)
	}
	return out, nil
}

// DeleteOlderThan removes rows whose kill and relaunch times both fall
// before thresholdMs. Returns the number of rows removed.
func (s *Store) DeleteOlderThan(thresholdMs int64) (int64, error) {
	query := `DELETE FROM app_stats WHERE last_kill_time < ? AND last_relaunch_time < ?`
	result, err := s.db.Exec(query, thresholdMs, thresholdMs)
	if err != nil {
		return 0, wrapErr(err, "failed to prune stats")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// Policy set operations

// GetSet returns the members of a policy set.
func (s *Store) GetSet(key string) (map[string]struct{}, error) {
	rows, err := s.db.Query(`SELECT package_name FROM policy_sets WHERE set_key = ?`, key)
	if err != nil {
		return nil, wrapErr(err, "failed to read set %s", key)
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var pkg string
		if err := rows.Scan(&pkg); err != nil {
			return nil, fmt.Errorf("failed to scan set row: %w", err)
		}
		set[pkg] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating set %s: %w", key, err)
	}
	return set, nil
}

// SaveSet replaces a policy set in a single transaction. Prefer AddToSet and
// RemoveFromSet for incremental edits; SaveSet is for restores.
func (s *Store) SaveSet(key string, ids map[string]struct{}) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM policy_sets WHERE set_key = ?`, key); err != nil {
		return wrapErr(err, "failed to clear set %s", key)
	}
	for id := range ids {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO policy_sets (set_key, package_name) VALUES (?, ?)`, key, id); err != nil {
			return wrapErr(err, "failed to add %s to %s", id, key)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit set %s: %w", key, err)
	}
	return nil
}

// AddToSet adds ids to a policy set. Adding an existing member is a no-op.
func (s *Store) AddToSet(key string, ids ...string) error {
	for _, id := range ids {
		if _, err := s.db.Exec(`INSERT OR IGNORE INTO policy_sets (set_key, package_name) VALUES (?, ?)`, key, id); err != nil {
			return wrapErr(err, "failed to add %s to %s", id, key)
		}
	}
	return nil
}

// RemoveFromSet removes ids from a policy set. Missing members are ignored.
func (s *Store) RemoveFromSet(key string, ids ...string) error {
	for _, id := range ids {
		if _, err := s.db.Exec(`DELETE FROM policy_sets WHERE set_key = ? AND package_name = ?`, key, id); err != nil {
			return wrapErr(err, "failed to remove %s from %s", id, key)
		}
	}
	return nil
}

// Settings operations

const keyKillMode = "kill_mode"

// GetKillMode returns the active kill mode, defaulting to whitelist.
func (s *Store) GetKillMode() (policy.KillMode, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, keyKillMode).Scan(&value)
	if err == sql.ErrNoRows {
		return policy.Whitelist, nil
	}
	if err != nil {
		return policy.Whitelist, wrapErr(err, "failed to read kill mode")
	}

	n, err := strconv.Atoi(value)
	if err != nil || n != int(policy.Blacklist) {
		return policy.Whitelist, nil
	}
	return policy.Blacklist, nil
}

// SetKillMode persists the kill mode.
func (s *Store) SetKillMode(mode policy.KillMode) error {
	query := `INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := s.db.Exec(query, keyKillMode, strconv.Itoa(int(mode))); err != nil {
		return wrapErr(err, "failed to save kill mode")
	}
	return nil
}

// Compile-time check that Store satisfies the policy contract.
var _ policy.Store = (*Store)(nil)
