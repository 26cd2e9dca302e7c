package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/memprune/internal/config"
	"github.com/blackwell-systems/memprune/internal/meminfo"
	"github.com/blackwell-systems/memprune/internal/output"
	"github.com/blackwell-systems/memprune/internal/scheduler"
	"github.com/blackwell-systems/memprune/internal/shell"
	"github.com/blackwell-systems/memprune/internal/store"
)

// doctorProbeTimeout bounds the root probe; su may be waiting on a grant
// prompt.
const doctorProbeTimeout = 10 * time.Second

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose privilege channels and daemon health",
	Long: `Runs diagnostic checks on your memprune installation.

Checks:
  • Database exists and is accessible
  • Settings file parses
  • Root shell is granted
  • Broker is installed and has not refused us
  • Daemon is running
  • Memory statistics are readable

Missing privilege on both channels is critical; everything else is a warning.`,
	RunE: runDoctor,
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}

// doctorReport counts critical and warning-level findings.
type doctorReport struct {
	critical int
	warnings int
}

func (r *doctorReport) ok(format string, args ...interface{}) {
	fmt.Printf("✓ "+format+"\n", args...)
}

func (r *doctorReport) warn(action, format string, args ...interface{}) {
	fmt.Printf("⚠ "+format+"\n", args...)
	if action != "" {
		fmt.Println("  Action:", action)
	}
	r.warnings++
}

func (r *doctorReport) fail(action, format string, args ...interface{}) {
	fmt.Printf("✗ "+format+"\n", args...)
	if action != "" {
		fmt.Println("  Action:", action)
	}
	r.critical++
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("Running memprune diagnostics...")
	fmt.Println()

	r := &doctorReport{}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	checkDatabase(r)
	settings := checkSettings(r)
	checkPrivilege(ctx, r, settings)
	checkDaemon(r)
	checkMemory(r, settings)

	fmt.Println()
	if r.critical == 0 && r.warnings == 0 {
		fmt.Println("✓ All checks passed!")
		fmt.Println()
		fmt.Println("Next steps:")
		fmt.Println("  • Preview a cycle: memprune ps")
		fmt.Println("  • Start reclamation: memprune daemon --daemon")
		return nil
	}

	if r.critical > 0 {
		fmt.Printf("Found %d critical issue(s) and %d warning(s).\n", r.critical, r.warnings)
		return fmt.Errorf("diagnostics failed")
	}

	fmt.Printf("Found %d warning(s). Reclamation works but is not fully configured.\n", r.warnings)
	return nil
}

func checkDatabase(r *doctorReport) {
	path, err := getDBPath()
	if err != nil {
		r.fail("", "Database path error: %v", err)
		return
	}
	st, err := store.Open(path)
	if err != nil {
		r.fail("Check permissions on "+path, "Cannot open database: %v", err)
		return
	}
	defer st.Close()

	var n int
	if err := st.DB().QueryRow("SELECT COUNT(*) FROM app_stats").Scan(&n); err != nil {
		r.fail("", "Cannot read statistics: %v", err)
		return
	}
	r.ok("Database accessible: %s (%d package(s) with statistics)", path, n)
}

func checkSettings(r *doctorReport) config.Settings {
	path, err := getConfigPath()
	if err != nil {
		r.warn("", "Cannot resolve settings path: %v", err)
		return config.Defaults()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		r.ok("No settings file, using defaults (%s)", path)
		return config.Defaults()
	}
	s, err := config.LoadSettings(path)
	if err != nil {
		r.warn("Fix or delete "+path, "Settings file invalid, using defaults: %v", err)
		return config.Defaults()
	}
	r.ok("Settings loaded: %s", path)
	return s
}

func checkPrivilege(ctx context.Context, r *doctorReport, s config.Settings) {
	rootOK := false
	root, err := shell.NewRootChannel(s.RootCommand)
	if err != nil {
		r.warn("Fix root_command in config.yaml", "Invalid root_command: %v", err)
	} else {
		spinner := output.StartSpinner("Probing root shell...")
		rootOK, err = shell.NewBroker(root).WaitForPrivilege(ctx, doctorProbeTimeout)
		switch {
		case err != nil:
			spinner.StopWithMessage(fmt.Sprintf("⚠ Root probe interrupted: %v", err))
			r.warnings++
		case rootOK:
			spinner.StopWithMessage("✓ Root shell granted")
		default:
			spinner.StopWithMessage("⚠ Root shell not available")
			r.warnings++
		}
	}

	brokerOK := false
	brokered, err := shell.NewBrokeredChannel(s.BrokerCommand)
	switch {
	case err != nil:
		r.warn("Fix broker_command in config.yaml", "Invalid broker_command: %v", err)
	case !brokered.Bound():
		r.warn("Install the broker or set broker_command", "Broker %q not found", s.BrokerCommand)
	case !brokered.PermissionGranted():
		r.warn("Grant the broker permission", "Broker permission not granted")
	default:
		brokerOK = true
		r.ok("Broker available: %s", s.BrokerCommand)
	}

	if !rootOK && !brokerOK {
		r.fail("Grant root or install the broker; cycles abort without either", "No privileged channel available")
	}
}

func checkDaemon(r *doctorReport) {
	pidFile, err := getDefaultPIDFile()
	if err != nil {
		r.warn("", "Failed to get PID file path: %v", err)
		return
	}
	running, err := scheduler.IsDaemonRunning(pidFile)
	switch {
	case err != nil:
		r.warn("", "Failed to check daemon status: %v", err)
	case !running:
		r.warn("Run 'memprune daemon --daemon'", "Daemon not running")
	default:
		r.ok("Daemon running (PID %d)", readPIDFile(pidFile))
	}
}

func checkMemory(r *doctorReport, s config.Settings) {
	info, err := meminfo.Read(meminfo.DefaultPath)
	if err != nil {
		if s.RAMGate.Enabled {
			r.warn("Disable ram_gate; every gated cycle will be skipped", "Cannot read memory statistics: %v", err)
		} else {
			r.warn("", "Cannot read memory statistics: %v", err)
		}
		return
	}
	r.ok("Memory statistics readable (%d%% used)", info.UsedPercent())
}
