package scheduler

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
)

func TestIsDaemonRunning_NotRunning(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "memprune.pid")

	running, err := IsDaemonRunning(pidFile)
	if err != nil {
		t.Errorf("IsDaemonRunning() error = %v, want nil", err)
	}
	if running {
		t.Error("IsDaemonRunning() = true, want false for non-existent PID file")
	}
}

func TestIsDaemonRunning_WithCurrentProcess(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "memprune.pid")

	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		t.Fatalf("failed to write PID file: %v", err)
	}

	running, err := IsDaemonRunning(pidFile)
	if err != nil {
		t.Errorf("IsDaemonRunning() error = %v, want nil", err)
	}
	if !running {
		t.Error("IsDaemonRunning() = false, want true for current process")
	}
}

func TestIsDaemonRunning_StalePIDRemoved(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "memprune.pid")

	// A PID far above the usual pid_max
	if err := os.WriteFile(pidFile, []byte("999999\n"), 0644); err != nil {
		t.Fatalf("failed to write PID file: %v", err)
	}

	running, err := IsDaemonRunning(pidFile)
	if err != nil {
		t.Errorf("IsDaemonRunning() error = %v, want nil", err)
	}
	if running {
		t.Error("IsDaemonRunning() = true, want false for dead process")
	}
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Error("stale PID file was not removed")
	}
}

func TestIsDaemonRunning_InvalidPID(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "memprune.pid")

	if err := os.WriteFile(pidFile, []byte("not-a-number\n"), 0644); err != nil {
		t.Fatalf("failed to write PID file: %v", err)
	}

	running, err := IsDaemonRunning(pidFile)
	if err != nil {
		t.Errorf("IsDaemonRunning() error = %v, want nil for invalid PID", err)
	}
	if running {
		t.Error("IsDaemonRunning() = true, want false for invalid PID")
	}
}

func TestStopDaemon_NotRunning(t *testing.T) {
	if err := StopDaemon(filepath.Join(t.TempDir(), "memprune.pid")); err == nil {
		t.Error("StopDaemon() expected error for non-existent daemon, got nil")
	}
}

func TestStopDaemon_InvalidPID(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "memprune.pid")
	if err := os.WriteFile(pidFile, []byte("invalid\n"), 0644); err != nil {
		t.Fatalf("failed to write PID file: %v", err)
	}

	if err := StopDaemon(pidFile); err == nil {
		t.Error("StopDaemon() expected error for invalid PID, got nil")
	}
}

func TestStartDaemon_AlreadyRunning(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "memprune.pid")
	logFile := filepath.Join(dir, "memprune.log")

	if err := os.WriteFile(pidFile, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		t.Fatalf("failed to write PID file: %v", err)
	}

	if err := StartDaemon(pidFile, logFile, "daemon"); err == nil {
		t.Error("StartDaemon() expected error for already running daemon, got nil")
	}
}

func TestStartDaemon_InvalidLogFile(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "memprune.pid")
	logFile := filepath.Join(dir, "missing", "dir", "memprune.log")

	if err := StartDaemon(pidFile, logFile, "daemon"); err == nil {
		t.Error("StartDaemon() expected error for invalid log path, got nil")
	}
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Error("PID file written despite failed start")
	}
}

type recordingService struct {
	name     string
	order    *[]string
	startErr error
	onStart  func()
}

func (r *recordingService) Start() error {
	*r.order = append(*r.order, "start "+r.name)
	if r.onStart != nil {
		r.onStart()
	}
	return r.startErr
}

func (r *recordingService) Stop() error {
	*r.order = append(*r.order, "stop "+r.name)
	return nil
}

func TestRunDaemon_StopsInReverseOnSignal(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "memprune.pid")
	var order []string

	first := &recordingService{name: "scheduler", order: &order}
	second := &recordingService{name: "api", order: &order, onStart: func() {
		if _, err := os.Stat(pidFile); err != nil {
			t.Errorf("PID file missing while running: %v", err)
		}
		syscall.Kill(os.Getpid(), syscall.SIGTERM)
	}}

	if err := RunDaemon(pidFile, first, second); err != nil {
		t.Fatalf("RunDaemon() error = %v", err)
	}

	want := []string{"start scheduler", "start api", "stop api", "stop scheduler"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Error("PID file not removed on shutdown")
	}
}

func TestRunDaemon_StartFailure(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "memprune.pid")
	var order []string
	boom := errors.New("boom")

	first := &recordingService{name: "scheduler", order: &order}
	second := &recordingService{name: "api", order: &order, startErr: boom}

	err := RunDaemon(pidFile, first, second)
	if !errors.Is(err, boom) {
		t.Fatalf("RunDaemon() error = %v, want %v", err, boom)
	}

	// Only the service that started is stopped.
	want := []string{"start scheduler", "start api", "stop scheduler"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
	if _, err := os.Stat(pidFile); !os.IsNotExist(err) {
		t.Error("PID file not removed after failed start")
	}
}
