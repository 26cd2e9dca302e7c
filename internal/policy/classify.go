package policy

import "strings"

// SelfPackage is the package this tool runs as on the device.
const SelfPackage = "com.blackwell.memprune"

// builtinProtected are critical packages that are never terminated.
var builtinProtected = []string{
	SelfPackage,
	"com.google.android.gms",
	"com.android.systemui",
	"com.android.bluetooth",
	"com.android.externalstorage",
	"com.google.android.providers.media.module",
	"com.miui.miwallpaper",
	"com.android.camera",
}

// BuiltinProtected returns a copy of the fixed protected list.
func BuiltinProtected() []string {
	out := make([]string, len(builtinProtected))
	copy(out, builtinProtected)
	return out
}

// Protected is the fixed list plus the dynamically resolved input method
// and launcher packages. It is never user-editable.
type Protected struct {
	set map[string]struct{}
}

// NewProtected builds the protected set. Empty dynamic ids are ignored.
func NewProtected(dynamic ...string) *Protected {
	p := &Protected{set: make(map[string]struct{}, len(builtinProtected)+len(dynamic))}
	for _, id := range builtinProtected {
		p.set[id] = struct{}{}
	}
	for _, id := range dynamic {
		if id != "" {
			p.set[id] = struct{}{}
		}
	}
	return p
}

// Contains reports whether id must never be terminated.
func (p *Protected) Contains(id string) bool {
	if p == nil {
		return isBuiltin(id)
	}
	return has(p.set, id)
}

func isBuiltin(id string) bool {
	for _, b := range builtinProtected {
		if b == id {
			return true
		}
	}
	return false
}

// InForeground approximates whether pkg is in active use by looking for it
// anywhere in the activity dump. The dump format is not stable, so this is
// a plain substring test; its looseness errs towards sparing packages.
func InForeground(dump, pkg string) bool {
	return strings.Contains(dump, pkg)
}

// Classification is derived per cycle and never stored.
type Classification struct {
	IsSystem      bool
	IsPersistent  bool
	IsProtected   bool
	IsForeground  bool
	IsWhitelisted bool
	IsBlacklisted bool
	IsHidden      bool
}

// Classify combines the policy snapshot, protection, foreground dump and
// package metadata for one package.
func (s *Snapshot) Classify(pkg string, prot *Protected, foregroundDump string, isSystem, isPersistent bool) Classification {
	return Classification{
		IsSystem:      isSystem,
		IsPersistent:  isPersistent,
		IsProtected:   prot.Contains(pkg),
		IsForeground:  InForeground(foregroundDump, pkg),
		IsWhitelisted: has(s.Whitelisted, pkg),
		IsBlacklisted: has(s.Blacklisted, pkg),
		IsHidden:      has(s.Hidden, pkg),
	}
}

// Eligible reports whether the package may be terminated under mode.
// Hidden, protected and foreground packages are always spared.
func (c Classification) Eligible(mode KillMode) bool {
	if c.IsHidden || c.IsProtected || c.IsForeground {
		return false
	}
	if mode == Blacklist {
		return c.IsBlacklisted
	}
	return !c.IsWhitelisted && !c.IsPersistent
}
