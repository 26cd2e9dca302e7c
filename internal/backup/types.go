// Package backup exports and restores the user's policy sets as a JSON
// document.
package backup

import (
	"github.com/blackwell-systems/memprune/internal/policy"
)

// KeyKillMode holds the kill mode name in a backup document.
const KeyKillMode = "kill_mode"

// Document is the decoded form of a backup. A nil set means the key was
// absent.
type Document struct {
	Sets     map[string][]string
	KillMode *policy.KillMode
}

// Manager reads and writes policy backups against a policy store.
type Manager struct {
	store policy.Store
}

// New creates a backup Manager.
func New(store policy.Store) *Manager {
	return &Manager{store: store}
}
