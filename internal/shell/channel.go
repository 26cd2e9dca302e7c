package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync/atomic"

	"github.com/google/shlex"
)

// Default command lines for the two channels.
const (
	DefaultRootCommand   = "su"
	DefaultBrokerCommand = "rish"
)

// Channel executes one shell command string with elevated privileges.
// Run returns a non-nil error only for transport or I/O failures; a command
// that ran and exited non-zero is not a channel failure.
type Channel interface {
	Name() string
	Run(ctx context.Context, command string, capture bool) (string, error)
}

// Prober is a Channel whose availability can only be established by
// running something through it. The Broker probes it once in the
// background and caches the answer.
type Prober interface {
	Channel
	Probe(ctx context.Context) bool
}

// Checker is a Channel with a cheap, synchronous readiness check.
type Checker interface {
	Channel
	Ready() bool
}

// ParseArgv splits a configured command line into argv.
func ParseArgv(line string) ([]string, error) {
	argv, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("invalid command line %q: %w", line, err)
	}
	if len(argv) == 0 {
		return nil, ErrEmptyArgv
	}
	return argv, nil
}

// RootChannel runs commands by feeding them to a root shell's stdin.
type RootChannel struct {
	argv []string
}

// NewRootChannel creates a root channel from a command line such as "su"
// or "su --mount-master".
func NewRootChannel(line string) (*RootChannel, error) {
	argv, err := ParseArgv(line)
	if err != nil {
		return nil, err
	}
	return &RootChannel{argv: argv}, nil
}

func (c *RootChannel) Name() string { return "root" }

// Probe reports whether the root shell accepts a command and exits cleanly.
func (c *RootChannel) Probe(ctx context.Context) bool {
	res, err := spawn(ctx, c.argv, "id\nexit\n")
	return err == nil && res.exitCode == 0
}

// Run writes the command followed by an explicit exit to the root shell.
func (c *RootChannel) Run(ctx context.Context, command string, capture bool) (string, error) {
	res, err := spawn(ctx, c.argv, command+"\nexit\n")
	if err != nil {
		return "", err
	}
	if !capture {
		return "", nil
	}
	return res.combined(), nil
}

// BrokeredChannel runs commands as "sh -c <command>" through a mediating
// broker process that holds the elevated permission.
type BrokeredChannel struct {
	argv   []string
	denied atomic.Bool
}

// NewBrokeredChannel creates a brokered channel from a command line such as
// "rish" or "adb shell".
func NewBrokeredChannel(line string) (*BrokeredChannel, error) {
	argv, err := ParseArgv(line)
	if err != nil {
		return nil, err
	}
	return &BrokeredChannel{argv: argv}, nil
}

func (c *BrokeredChannel) Name() string { return "broker" }

// Bound reports whether the broker executable can be resolved.
func (c *BrokeredChannel) Bound() bool {
	_, err := exec.LookPath(c.argv[0])
	return err == nil
}

// PermissionGranted reports whether the broker has not refused us.
func (c *BrokeredChannel) PermissionGranted() bool {
	return !c.denied.Load()
}

// Grant clears a recorded permission denial, e.g. after the user approved
// the broker's permission prompt.
func (c *BrokeredChannel) Grant() {
	c.denied.Store(false)
}

// Ready is Bound && PermissionGranted.
func (c *BrokeredChannel) Ready() bool {
	return c.Bound() && c.PermissionGranted()
}

func (c *BrokeredChannel) Run(ctx context.Context, command string, capture bool) (string, error) {
	argv := make([]string, 0, len(c.argv)+3)
	argv = append(argv, c.argv...)
	argv = append(argv, "sh", "-c", command)

	res, err := spawn(ctx, argv, "")
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			c.denied.Store(true)
		}
		return "", err
	}
	if !capture {
		return "", nil
	}
	return res.combined(), nil
}
