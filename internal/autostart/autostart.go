// Package autostart blocks packages from starting at boot by disabling
// their BOOT_COMPLETED receivers.
package autostart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/blackwell-systems/memprune/internal/logging"
	"github.com/blackwell-systems/memprune/internal/pkginfo"
	"github.com/blackwell-systems/memprune/internal/policy"
)

// ErrApplyFailed is returned when the receiver command could not be run.
var ErrApplyFailed = errors.New("autostart command failed")

// Executor runs privileged commands.
type Executor interface {
	Execute(ctx context.Context, command string) bool
	ExecuteCapture(ctx context.Context, command string) (string, bool)
}

// Manager keeps the device's boot receivers in line with the
// autostart-disabled policy set.
type Manager struct {
	exec   Executor
	policy policy.Store
	log    *logging.Logger
}

// New creates a Manager.
func New(exec Executor, store policy.Store, log *logging.Logger) *Manager {
	if log == nil {
		log = logging.Default()
	}
	return &Manager{exec: exec, policy: store, log: log}
}

// Command builds one shell line that disables the receivers of every
// package in disabled and enables the receivers of every other package.
// Packages are visited in sorted order so the line is stable.
func Command(receivers map[string][]string, disabled map[string]struct{}) string {
	pkgs := make([]string, 0, len(receivers))
	for pkg := range receivers {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)

	var b strings.Builder
	for _, pkg := range pkgs {
		action := "enable"
		if _, ok := disabled[pkg]; ok {
			action = "disable"
		}
		for _, cls := range receivers[pkg] {
			fmt.Fprintf(&b, "pm %s %s/%s; ", action, pkg, cls)
		}
	}
	return strings.TrimSuffix(b.String(), " ")
}

// Apply reads the autostart-disabled set and pushes it to the device.
// It returns the number of packages whose receivers were touched.
func (m *Manager) Apply(ctx context.Context) (int, error) {
	disabled, err := m.policy.GetSet(policy.KeyAutostartDisabled)
	if err != nil {
		return 0, fmt.Errorf("failed to read autostart set: %w", err)
	}

	receivers, err := pkginfo.BootReceivers(ctx, m.exec)
	if err != nil {
		return 0, err
	}

	cmd := Command(receivers, disabled)
	if cmd == "" {
		m.log.Debug("no boot receivers found")
		return 0, nil
	}
	if !m.exec.Execute(ctx, cmd) {
		return 0, ErrApplyFailed
	}

	blocked := 0
	for pkg := range receivers {
		if _, ok := disabled[pkg]; ok {
			blocked++
		}
	}
	m.log.Info("autostart applied: %d blocked, %d allowed", blocked, len(receivers)-blocked)
	return len(receivers), nil
}

// Reapply re-asserts persisted blocks, as needed after a reboot.
func (m *Manager) Reapply(ctx context.Context) error {
	_, err := m.Apply(ctx)
	return err
}

// Block adds ids to the autostart-disabled set and applies it.
func (m *Manager) Block(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := m.policy.AddToSet(policy.KeyAutostartDisabled, ids...); err != nil {
		return fmt.Errorf("failed to update autostart set: %w", err)
	}
	_, err := m.Apply(ctx)
	return err
}

// Unblock removes ids from the autostart-disabled set and applies it.
func (m *Manager) Unblock(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := m.policy.RemoveFromSet(policy.KeyAutostartDisabled, ids...); err != nil {
		return fmt.Errorf("failed to update autostart set: %w", err)
	}
	_, err := m.Apply(ctx)
	return err
}
