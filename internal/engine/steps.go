package engine

import (
	"context"
	"errors"
	"time"

	"github.com/blackwell-systems/memprune/internal/pkginfo"
	"github.com/blackwell-systems/memprune/internal/policy"
	"github.com/blackwell-systems/memprune/internal/procs"
	"github.com/blackwell-systems/memprune/internal/store"
)

// errNothingToKill ends a cycle early without counting as an abort.
var errNothingToKill = errors.New("nothing to kill")

// abortError ends a cycle with a reason. notify marks reasons the user
// should hear about.
type abortError struct {
	reason string
	notify bool
}

func (e *abortError) Error() string { return e.reason }

func abort(reason string, notify bool) error {
	return &abortError{reason: reason, notify: notify}
}

// cycle carries state between the steps of one Perform call.
type cycle struct {
	result Result

	snap       *policy.Snapshot
	protected  *policy.Protected
	foreground string
	running    []procs.Record
	targets    []string
	infos      map[string]pkginfo.Info
}

type step struct {
	name string
	run  func(ctx context.Context, c *cycle) error
}

func (e *Engine) steps() []step {
	return []step{
		{"privilege", e.checkPrivilege},
		{"policy", e.loadPolicy},
		{"foreground", e.captureForeground},
		{"processes", e.captureProcesses},
		{"decide", e.decide},
		{"terminate", e.terminate},
		{"record", e.recordKills},
		{"notify", e.notifyKilled},
		{"settle", e.waitSettle},
		{"relaunch", e.checkRelaunch},
	}
}

func (e *Engine) checkPrivilege(ctx context.Context, c *cycle) error {
	if !e.broker.HasAnyPrivilege() {
		return abort(AbortNoPrivilege, true)
	}
	return nil
}

func (e *Engine) loadPolicy(ctx context.Context, c *cycle) error {
	snap, err := policy.Load(e.policy)
	if err != nil {
		e.log.Error("cycle %s: %v", c.result.CycleID, err)
		return abort(AbortPolicy, false)
	}
	c.snap = snap
	c.protected = e.resolveProtected(ctx)
	return nil
}

func (e *Engine) captureForeground(ctx context.Context, c *cycle) error {
	dump, ok := e.broker.ExecuteCapture(ctx, ForegroundCommand)
	if !ok {
		return abort(AbortForeground, true)
	}
	c.foreground = dump
	return nil
}

func (e *Engine) captureProcesses(ctx context.Context, c *cycle) error {
	running, ok := procs.Snapshot(ctx, e.broker)
	if !ok {
		return abort(AbortProcesses, true)
	}
	c.running = running
	return nil
}

func (e *Engine) decide(ctx context.Context, c *cycle) error {
	c.infos = make(map[string]pkginfo.Info, len(c.running))
	for _, rec := range c.running {
		cand, ok := e.classify(ctx, c, rec)
		if !ok {
			continue
		}
		c.infos[rec.Package] = cand.Info
		if cand.Eligible {
			c.targets = append(c.targets, rec.Package)
		}
	}
	if len(c.targets) == 0 {
		return errNothingToKill
	}
	return nil
}

func (e *Engine) terminate(ctx context.Context, c *cycle) error {
	if !e.broker.Execute(ctx, killCommand(c.targets)) {
		if ctx.Err() != nil {
			return abort(AbortCancelled, false)
		}
		return abort(AbortKill, true)
	}
	c.result.Killed = append([]string(nil), c.targets...)
	return nil
}

func (e *Engine) recordKills(ctx context.Context, c *cycle) error {
	now := e.now().UnixMilli()
	for _, pkg := range c.result.Killed {
		if err := e.ensureStats(pkg, c.infos[pkg]); err != nil {
			e.log.Error("cycle %s: %v", c.result.CycleID, err)
			continue
		}
		if err := e.stats.IncrementKill(pkg, now); err != nil {
			e.log.Error("cycle %s: %v", c.result.CycleID, err)
		}
	}
	return nil
}

// ensureStats creates the stats row for pkg on its first kill.
func (e *Engine) ensureStats(pkg string, info pkginfo.Info) error {
	existing, err := e.stats.GetStats(pkg)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}
	return e.stats.InsertStats(&store.AppStats{Package: pkg, DisplayName: e.displayName(pkg, info)})
}

func (e *Engine) displayName(pkg string, info pkginfo.Info) string {
	if e.labels != nil {
		if name := e.labels.Lookup(pkg); name != "" {
			return name
		}
	}
	if info.DisplayName != "" {
		return info.DisplayName
	}
	return pkg
}

func (e *Engine) notifyKilled(ctx context.Context, c *cycle) error {
	e.notifier.Killed(len(c.result.Killed))
	e.notifier.Refresh()
	return nil
}

func (e *Engine) waitSettle(ctx context.Context, c *cycle) error {
	if e.settle <= 0 {
		return nil
	}
	t := time.NewTimer(e.settle)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return abort(AbortCancelled, false)
	}
}

func (e *Engine) checkRelaunch(ctx context.Context, c *cycle) error {
	c.result.Relaunched = e.tracker.Check(ctx, c.result.Killed)
	return nil
}
