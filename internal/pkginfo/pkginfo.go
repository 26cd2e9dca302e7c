// Package pkginfo resolves package metadata through the device package
// manager.
package pkginfo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrNotFound is returned for packages that are not installed.
var ErrNotFound = errors.New("package not installed")

// ErrUnavailable is returned when the package manager could not be queried.
var ErrUnavailable = errors.New("package manager unavailable")

const (
	listInstalledCommand = "pm list packages"
	listSystemCommand    = "pm list packages -s"

	// DefaultListTTL bounds how stale the installed/system sets may get.
	DefaultListTTL = 5 * time.Minute

	defaultCacheSize = 512
)

// Info is the metadata the reclamation engine needs for one package.
type Info struct {
	Package      string
	DisplayName  string
	IsSystem     bool
	IsPersistent bool
}

// Capturer runs a command and returns its output, or ok=false when the
// output could not be obtained.
type Capturer interface {
	ExecuteCapture(ctx context.Context, command string) (string, bool)
}

// Resolver looks up package metadata.
type Resolver interface {
	Lookup(ctx context.Context, id string) (Info, error)
}

// ShellResolver answers lookups with package-manager commands run through
// a privileged executor.
type ShellResolver struct {
	exec Capturer
	ttl  time.Duration
	now  func() time.Time

	mu        sync.Mutex
	installed map[string]struct{}
	system    map[string]struct{}
	refreshed time.Time

	cache *lru.Cache[string, Info]
}

// Option configures a ShellResolver.
type Option func(*ShellResolver)

// WithListTTL sets how long package lists are reused before re-querying.
func WithListTTL(ttl time.Duration) Option {
	return func(r *ShellResolver) { r.ttl = ttl }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *ShellResolver) { r.now = now }
}

// NewShellResolver creates a resolver over exec.
func NewShellResolver(exec Capturer, opts ...Option) *ShellResolver {
	cache, err := lru.New[string, Info](defaultCacheSize)
	if err != nil {
		// Only fails for a non-positive size.
		panic(err)
	}
	r := &ShellResolver{
		exec:  exec,
		ttl:   DefaultListTTL,
		now:   time.Now,
		cache: cache,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lookup returns metadata for id. Uninstalled packages yield ErrNotFound.
func (r *ShellResolver) Lookup(ctx context.Context, id string) (Info, error) {
	installed, system, err := r.lists(ctx)
	if err != nil {
		return Info{}, err
	}
	if _, ok := installed[id]; !ok {
		r.cache.Remove(id)
		return Info{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}

	if info, ok := r.cache.Get(id); ok {
		return info, nil
	}

	out, ok := r.exec.ExecuteCapture(ctx, "dumpsys package "+id)
	if !ok {
		return Info{}, fmt.Errorf("dumpsys package %s: %w", id, ErrUnavailable)
	}

	_, isSystem := system[id]
	info := Info{
		Package:      id,
		DisplayName:  id,
		IsSystem:     isSystem,
		IsPersistent: parsePersistent(out),
	}
	r.cache.Add(id, info)
	return info, nil
}

// Installed returns the current set of installed packages.
func (r *ShellResolver) Installed(ctx context.Context) (map[string]struct{}, error) {
	installed, _, err := r.lists(ctx)
	return installed, err
}

// Invalidate drops cached lists and metadata.
func (r *ShellResolver) Invalidate() {
	r.mu.Lock()
	r.installed, r.system = nil, nil
	r.refreshed = time.Time{}
	r.mu.Unlock()
	r.cache.Purge()
}

func (r *ShellResolver) lists(ctx context.Context) (installed, system map[string]struct{}, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.installed != nil && r.now().Sub(r.refreshed) < r.ttl {
		return r.installed, r.system, nil
	}

	out, ok := r.exec.ExecuteCapture(ctx, listInstalledCommand)
	if !ok {
		return nil, nil, fmt.Errorf("%s: %w", listInstalledCommand, ErrUnavailable)
	}
	sysOut, ok := r.exec.ExecuteCapture(ctx, listSystemCommand)
	if !ok {
		return nil, nil, fmt.Errorf("%s: %w", listSystemCommand, ErrUnavailable)
	}

	r.installed = parsePackageList(out)
	r.system = parsePackageList(sysOut)
	r.refreshed = r.now()
	return r.installed, r.system, nil
}
