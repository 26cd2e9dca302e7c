// Package policy holds the user's kill configuration and the rules that
// decide which running packages a reclamation cycle may terminate.
package policy

import (
	"fmt"
	"strings"
)

// KillMode selects how eligibility is decided.
type KillMode int

const (
	// Whitelist terminates every running package not explicitly spared.
	Whitelist KillMode = iota
	// Blacklist terminates only explicitly listed packages.
	Blacklist
)

func (m KillMode) String() string {
	switch m {
	case Blacklist:
		return "blacklist"
	default:
		return "whitelist"
	}
}

// ParseKillMode accepts "whitelist" or "blacklist".
func ParseKillMode(s string) (KillMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "whitelist":
		return Whitelist, nil
	case "blacklist":
		return Blacklist, nil
	default:
		return Whitelist, fmt.Errorf("unknown kill mode %q (want whitelist or blacklist)", s)
	}
}

// Set keys understood by the policy store.
const (
	KeyHidden            = "hidden_apps"
	KeyWhitelisted       = "whitelisted_apps"
	KeyBlacklisted       = "blacklisted_apps"
	KeyAutostartDisabled = "autostart_disabled_apps"
)

// Keys lists every set key in a stable order.
var Keys = []string{KeyHidden, KeyWhitelisted, KeyBlacklisted, KeyAutostartDisabled}

// ValidKey reports whether key names a policy set.
func ValidKey(key string) bool {
	for _, k := range Keys {
		if k == key {
			return true
		}
	}
	return false
}

// Store is the persistent policy collaborator. Mutations are expressed as
// deltas so concurrent writers from different processes compose.
type Store interface {
	GetSet(key string) (map[string]struct{}, error)
	SaveSet(key string, ids map[string]struct{}) error
	AddToSet(key string, ids ...string) error
	RemoveFromSet(key string, ids ...string) error
	GetKillMode() (KillMode, error)
	SetKillMode(mode KillMode) error
}

// Snapshot is a consistent view of the policy taken once per cycle.
type Snapshot struct {
	Mode             KillMode
	Hidden           map[string]struct{}
	Whitelisted      map[string]struct{}
	Blacklisted      map[string]struct{}
	AutostartBlocked map[string]struct{}
}

// Load reads every set and the kill mode from st.
func Load(st Store) (*Snapshot, error) {
	mode, err := st.GetKillMode()
	if err != nil {
		return nil, fmt.Errorf("failed to read kill mode: %w", err)
	}
	snap := &Snapshot{Mode: mode}

	targets := map[string]*map[string]struct{}{
		KeyHidden:            &snap.Hidden,
		KeyWhitelisted:       &snap.Whitelisted,
		KeyBlacklisted:       &snap.Blacklisted,
		KeyAutostartDisabled: &snap.AutostartBlocked,
	}
	for key, dst := range targets {
		set, err := st.GetSet(key)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", key, err)
		}
		*dst = set
	}
	return snap, nil
}

func has(set map[string]struct{}, id string) bool {
	_, ok := set[id]
	return ok
}
