package app

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/memprune/internal/api"
	"github.com/blackwell-systems/memprune/internal/autostart"
	"github.com/blackwell-systems/memprune/internal/meminfo"
	"github.com/blackwell-systems/memprune/internal/output"
	"github.com/blackwell-systems/memprune/internal/scheduler"
)

var (
	daemonBackground bool
	daemonChild      bool
	daemonPIDFile    string
	daemonLogFile    string
	daemonStop       bool
	daemonNoAPI      bool

	daemonCmd = &cobra.Command{
		Use:   "daemon",
		Short: "Run periodic and triggered reclamation",
		Long: `Run the reclamation scheduler.

The daemon runs a cycle every configured interval (10s, 18s, 30s, 1m or 5m;
default 18s). When the RAM gate is enabled, a cycle only runs while memory
usage is at or above the threshold. Settings are re-read before every wait,
so edits to config.yaml take effect on the next cycle.

Triggers are accepted from 'memprune trigger <kind>' and from the loopback
status API:
  • manual: run a cycle now
  • screen_off: run a cycle if kill_on_screen_off is set
  • boot_completed: re-apply autostart blocks

Modes:
  • Foreground (default): Run in current terminal with Ctrl+C to stop
  • Daemon: Run as background process
  • Stop: Stop a running daemon`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  memprune daemon

  # Run as background daemon
  memprune daemon --daemon

  # Stop running daemon
  memprune daemon --stop`,
		RunE: runDaemon,
	}
)

func init() {
	daemonCmd.Flags().BoolVar(&daemonBackground, "daemon", false, "run as background daemon")
	daemonCmd.Flags().BoolVar(&daemonChild, "daemon-child", false, "internal flag for daemon child process")
	daemonCmd.Flags().StringVar(&daemonPIDFile, "pid-file", "", "PID file path (default: ~/.memprune/daemon.pid)")
	daemonCmd.Flags().StringVar(&daemonLogFile, "log-file", "", "log file path (default: ~/.memprune/daemon.log)")
	daemonCmd.Flags().BoolVar(&daemonStop, "stop", false, "stop running daemon")
	daemonCmd.Flags().BoolVar(&daemonNoAPI, "no-api", false, "do not start the loopback status API")

	// Hide the internal daemon-child flag from help
	daemonCmd.Flags().MarkHidden("daemon-child")

	RootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	if daemonPIDFile == "" {
		p, err := getDefaultPIDFile()
		if err != nil {
			return fmt.Errorf("failed to get default PID file path: %w", err)
		}
		daemonPIDFile = p
	}
	if daemonLogFile == "" {
		p, err := getDefaultLogFile()
		if err != nil {
			return fmt.Errorf("failed to get default log file path: %w", err)
		}
		daemonLogFile = p
	}

	if daemonStop {
		return stopDaemon()
	}
	if daemonBackground {
		return startDaemon()
	}

	services, parts, err := buildDaemon()
	if err != nil {
		return err
	}
	defer parts.close()

	if daemonChild {
		// Output is redirected to the log file.
		return scheduler.RunDaemon(daemonPIDFile, services...)
	}

	fmt.Println("Starting reclamation (press Ctrl+C to stop)...")
	return scheduler.RunDaemon("", services...)
}

func stopDaemon() error {
	running, err := scheduler.IsDaemonRunning(daemonPIDFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}
	if !running {
		fmt.Println("Daemon is not running")
		return nil
	}

	spinner := output.StartSpinner("Stopping daemon...")
	if err := scheduler.StopDaemon(daemonPIDFile); err != nil {
		spinner.Stop()
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	spinner.StopWithMessage("✓ Daemon stopped")
	return nil
}

func startDaemon() error {
	args := []string{"daemon", "--pid-file", daemonPIDFile, "--log-file", daemonLogFile}
	if dbPath != "" {
		args = append(args, "--db", dbPath)
	}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	if daemonNoAPI {
		args = append(args, "--no-api")
	}

	spinner := output.StartSpinner("Starting daemon...")
	if err := scheduler.StartDaemon(daemonPIDFile, daemonLogFile, args...); err != nil {
		spinner.Stop()
		return err
	}
	spinner.StopWithMessage("✓ Daemon started")

	fmt.Printf("\nReclamation daemon started\n")
	fmt.Printf("  PID file: %s\n", daemonPIDFile)
	fmt.Printf("  Log file: %s\n", daemonLogFile)
	fmt.Printf("\nTo stop: memprune daemon --stop\n")
	return nil
}

// daemonParts holds what the daemon must release on exit.
type daemonParts struct {
	rt *runtime
}

func (d *daemonParts) close() {
	d.rt.Close()
}

// buildDaemon wires the scheduler, trigger watcher and status API, in the
// order they must be started.
func buildDaemon() ([]scheduler.Service, *daemonParts, error) {
	rt, err := newRuntime()
	if err != nil {
		return nil, nil, err
	}

	// Give the root probe a moment so the first cycle is not skipped.
	if ok, err := rt.broker.WaitForPrivilege(context.Background(), privilegeWait); err == nil && !ok {
		fmt.Fprintln(os.Stderr, "warning: no privileged channel available yet; cycles will be skipped until one is")
	}

	gate := meminfo.Gate{}
	sched := scheduler.New(scheduler.Config{
		Engine:    rt.engine(statusNotifier(rt.log)),
		Settings:  rt.source,
		Gate:      gate,
		Stats:     rt.store,
		Autostart: autostart.New(rt.broker, rt.store, rt.log),
		Logger:    rt.log,
	})

	triggerDir, err := getTriggerDir()
	if err != nil {
		rt.Close()
		return nil, nil, err
	}
	watcher, err := scheduler.NewTriggerWatcher(triggerDir, sched, rt.log)
	if err != nil {
		rt.Close()
		return nil, nil, err
	}

	services := []scheduler.Service{sched, watcher}
	if !daemonNoAPI {
		mem := func() (meminfo.Info, error) { return meminfo.Read(meminfo.DefaultPath) }
		services = append(services, api.New(rt.settings.StatusAddr, sched.State(), sched, mem, rt.log))
	}
	return services, &daemonParts{rt: rt}, nil
}
