// Package shell executes command strings through an elevated channel.
//
// Two channels are supported: a root shell (su) and a mediated broker
// (e.g. rish). The Broker holds them as an ordered strategy list and tries
// each in turn, so callers never need to know which one ran a command.
package shell

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// stderrPrefix marks stderr lines in captured output.
const stderrPrefix = "ERROR: "

// waitDelay bounds how long Wait blocks on pipe copies after the process
// group has been killed.
const waitDelay = 2 * time.Second

// ErrEmptyArgv is returned when a channel is configured without a command.
var ErrEmptyArgv = errors.New("shell: empty command line")

// procResult holds what a finished subprocess left behind.
type procResult struct {
	stdout   string
	stderr   string
	exitCode int
}

// combined renders stdout followed by prefixed stderr lines, each line
// newline-terminated.
func (r procResult) combined() string {
	var sb strings.Builder
	appendLines(&sb, r.stdout, "")
	appendLines(&sb, r.stderr, stderrPrefix)
	return sb.String()
}

func appendLines(sb *strings.Builder, text, prefix string) {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		sb.WriteString(prefix)
		sb.WriteString(scanner.Text())
		sb.WriteByte('\n')
	}
}

// spawn runs argv with the given stdin, draining stdout and stderr fully and
// waiting for exit. The child runs in its own process group; when ctx ends
// the whole group is killed so no shell is left behind.
func spawn(ctx context.Context, argv []string, stdin string) (procResult, error) {
	if len(argv) == 0 {
		return procResult{}, ErrEmptyArgv
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return killGroup(cmd)
	}
	cmd.WaitDelay = waitDelay

	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return procResult{}, fmt.Errorf("failed to start %s: %w", argv[0], err)
	}

	waitErr := cmd.Wait()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return procResult{}, ctxErr
	}

	res := procResult{
		stdout:   stdout.String(),
		stderr:   stderr.String(),
		exitCode: cmd.ProcessState.ExitCode(),
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		return res, fmt.Errorf("failed waiting for %s: %w", argv[0], waitErr)
	}

	return res, nil
}

// killGroup sends SIGKILL to the child's process group.
func killGroup(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	if err := unix.Kill(-cmd.Process.Pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return err
	}
	return nil
}
