package store

// Timestamps are unix milliseconds.
const schema = `
CREATE TABLE IF NOT EXISTS app_stats (
    package_name TEXT PRIMARY KEY,
    app_name TEXT NOT NULL DEFAULT '',
    kill_count INTEGER NOT NULL DEFAULT 0,
    relaunch_count INTEGER NOT NULL DEFAULT 0,
    last_kill_time INTEGER NOT NULL DEFAULT 0,
    last_relaunch_time INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS policy_sets (
    set_key TEXT NOT NULL,
    package_name TEXT NOT NULL,
    PRIMARY KEY (set_key, package_name)
);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stats_kill_time ON app_stats(last_kill_time);
CREATE INDEX IF NOT EXISTS idx_stats_relaunch_time ON app_stats(last_relaunch_time);
CREATE INDEX IF NOT EXISTS idx_policy_key ON policy_sets(set_key);
`
