package policy

import (
	"errors"
	"testing"
)

type memStore struct {
	sets map[string]map[string]struct{}
	mode KillMode
	err  error
}

func newMemStore() *memStore {
	return &memStore{sets: make(map[string]map[string]struct{})}
}

func (m *memStore) GetSet(key string) (map[string]struct{}, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]struct{})
	for k := range m.sets[key] {
		out[k] = struct{}{}
	}
	return out, nil
}

func (m *memStore) SaveSet(key string, ids map[string]struct{}) error {
	m.sets[key] = ids
	return nil
}

func (m *memStore) AddToSet(key string, ids ...string) error {
	if m.sets[key] == nil {
		m.sets[key] = make(map[string]struct{})
	}
	for _, id := range ids {
		m.sets[key][id] = struct{}{}
	}
	return nil
}

func (m *memStore) RemoveFromSet(key string, ids ...string) error {
	for _, id := range ids {
		delete(m.sets[key], id)
	}
	return nil
}

func (m *memStore) GetKillMode() (KillMode, error) { return m.mode, nil }
func (m *memStore) SetKillMode(mode KillMode) error { m.mode = mode; return nil }

func TestParseKillMode(t *testing.T) {
	if m, err := ParseKillMode("Blacklist"); err != nil || m != Blacklist {
		t.Errorf("ParseKillMode(Blacklist) = %v, %v", m, err)
	}
	if m, err := ParseKillMode("whitelist"); err != nil || m != Whitelist {
		t.Errorf("ParseKillMode(whitelist) = %v, %v", m, err)
	}
	if _, err := ParseKillMode("greylist"); err == nil {
		t.Error("ParseKillMode(greylist) should fail")
	}
	if Blacklist.String() != "blacklist" || Whitelist.String() != "whitelist" {
		t.Error("KillMode.String() mismatch")
	}
}

func TestLoad(t *testing.T) {
	st := newMemStore()
	st.mode = Blacklist
	st.AddToSet(KeyBlacklisted, "com.example.b")
	st.AddToSet(KeyHidden, "com.example.h")

	snap, err := Load(st)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if snap.Mode != Blacklist {
		t.Errorf("Mode = %v, want blacklist", snap.Mode)
	}
	if !has(snap.Blacklisted, "com.example.b") || !has(snap.Hidden, "com.example.h") {
		t.Errorf("Load() snapshot missing entries: %+v", snap)
	}
	if snap.Whitelisted == nil || snap.AutostartBlocked == nil {
		t.Error("Load() should return non-nil empty sets")
	}

	// Later mutations do not leak into an already-loaded snapshot.
	st.AddToSet(KeyBlacklisted, "com.example.c")
	if has(snap.Blacklisted, "com.example.c") {
		t.Error("snapshot changed after store mutation")
	}
}

func TestLoad_Error(t *testing.T) {
	st := newMemStore()
	st.err = errors.New("disk gone")
	if _, err := Load(st); err == nil {
		t.Error("Load() should propagate store errors")
	}
}

func TestProtected(t *testing.T) {
	p := NewProtected("com.example.keyboard", "", "com.example.launcher")
	for _, id := range []string{"com.android.systemui", "com.google.android.gms", SelfPackage, "com.example.keyboard", "com.example.launcher"} {
		if !p.Contains(id) {
			t.Errorf("Protected.Contains(%s) = false, want true", id)
		}
	}
	if p.Contains("com.example.a") {
		t.Error("Protected.Contains(com.example.a) = true, want false")
	}
	if p.Contains("") {
		t.Error("empty dynamic id should not be protected")
	}

	var nilProt *Protected
	if !nilProt.Contains("com.android.systemui") {
		t.Error("nil Protected should still cover the builtin list")
	}
}

func TestInForeground(t *testing.T) {
	dump := "  mResumedActivity: ActivityRecord{1a2b u0 com.example.game/.MainActivity t42}"
	if !InForeground(dump, "com.example.game") {
		t.Error("InForeground() missed resumed package")
	}
	if InForeground(dump, "com.example.other") {
		t.Error("InForeground() matched absent package")
	}
	if InForeground("", "com.example.game") {
		t.Error("InForeground() matched against empty dump")
	}
}

// TestEligible_Whitelist checks P eligible <=> !hidden && !protected &&
// !foreground && !whitelisted && !persistent over every combination.
func TestEligible_Whitelist(t *testing.T) {
	for mask := 0; mask < 1<<5; mask++ {
		c := Classification{
			IsHidden:      mask&1 != 0,
			IsProtected:   mask&2 != 0,
			IsForeground:  mask&4 != 0,
			IsWhitelisted: mask&8 != 0,
			IsPersistent:  mask&16 != 0,
		}
		want := mask == 0
		if got := c.Eligible(Whitelist); got != want {
			t.Errorf("Eligible(Whitelist) for %+v = %v, want %v", c, got, want)
		}
	}
}

// TestEligible_Blacklist checks P eligible <=> !hidden && !protected &&
// !foreground && blacklisted, regardless of persistence or whitelist.
func TestEligible_Blacklist(t *testing.T) {
	for mask := 0; mask < 1<<6; mask++ {
		c := Classification{
			IsHidden:      mask&1 != 0,
			IsProtected:   mask&2 != 0,
			IsForeground:  mask&4 != 0,
			IsBlacklisted: mask&8 != 0,
			IsWhitelisted: mask&16 != 0,
			IsPersistent:  mask&32 != 0,
		}
		want := !c.IsHidden && !c.IsProtected && !c.IsForeground && c.IsBlacklisted
		if got := c.Eligible(Blacklist); got != want {
			t.Errorf("Eligible(Blacklist) for %+v = %v, want %v", c, got, want)
		}
	}
}

func TestClassify_ProtectionDominates(t *testing.T) {
	snap := &Snapshot{
		Mode:        Blacklist,
		Blacklisted: map[string]struct{}{"com.android.systemui": {}},
		Whitelisted: map[string]struct{}{},
		Hidden:      map[string]struct{}{},
	}
	c := snap.Classify("com.android.systemui", NewProtected(), "", true, false)
	if !c.IsProtected || !c.IsBlacklisted {
		t.Fatalf("Classify() = %+v, want protected and blacklisted", c)
	}
	if c.Eligible(Blacklist) || c.Eligible(Whitelist) {
		t.Error("protected package must never be eligible")
	}
}
