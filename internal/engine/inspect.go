package engine

import (
	"context"
	"errors"

	"github.com/blackwell-systems/memprune/internal/pkginfo"
	"github.com/blackwell-systems/memprune/internal/policy"
	"github.com/blackwell-systems/memprune/internal/procs"
)

// ErrUnavailable is returned by Inspect when privileged state could not be
// read.
var ErrUnavailable = errors.New("device state unavailable")

// Candidate is one running package with its classification.
type Candidate struct {
	procs.Record
	Info     pkginfo.Info
	Class    policy.Classification
	Eligible bool
}

// Inspect classifies every running package without terminating anything.
// Packages the package manager does not know are omitted.
func (e *Engine) Inspect(ctx context.Context) ([]Candidate, policy.KillMode, error) {
	if !e.broker.HasAnyPrivilege() {
		return nil, policy.Whitelist, errors.New(AbortNoPrivilege)
	}
	snap, err := policy.Load(e.policy)
	if err != nil {
		return nil, policy.Whitelist, err
	}
	c := &cycle{snap: snap, protected: e.resolveProtected(ctx)}

	dump, ok := e.broker.ExecuteCapture(ctx, ForegroundCommand)
	if !ok {
		return nil, snap.Mode, ErrUnavailable
	}
	c.foreground = dump

	running, ok := procs.Snapshot(ctx, e.broker)
	if !ok {
		return nil, snap.Mode, ErrUnavailable
	}
	procs.SortByMemory(running)

	out := make([]Candidate, 0, len(running))
	for _, rec := range running {
		if cand, ok := e.classify(ctx, c, rec); ok {
			out = append(out, cand)
		}
	}
	return out, snap.Mode, nil
}

// classify resolves metadata for rec and applies the policy. ok is false
// when the package should be skipped silently.
func (e *Engine) classify(ctx context.Context, c *cycle, rec procs.Record) (Candidate, bool) {
	info, err := e.packages.Lookup(ctx, rec.Package)
	if err != nil {
		if !errors.Is(err, pkginfo.ErrNotFound) {
			e.log.Debug("metadata lookup for %s: %v", rec.Package, err)
		}
		return Candidate{}, false
	}
	class := c.snap.Classify(rec.Package, c.protected, c.foreground, info.IsSystem, info.IsPersistent)
	return Candidate{
		Record:   rec,
		Info:     info,
		Class:    class,
		Eligible: class.Eligible(c.snap.Mode),
	}, true
}

// resolveProtected adds the current input method and launcher to the
// fixed protected list. Either may be unresolvable, in which case only the
// fixed list applies.
func (e *Engine) resolveProtected(ctx context.Context) *policy.Protected {
	return policy.NewProtected(
		pkginfo.InputMethod(ctx, e.broker),
		pkginfo.Launcher(ctx, e.broker),
	)
}
