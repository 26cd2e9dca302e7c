package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/memprune/internal/scheduler"
)

var triggerCmd = &cobra.Command{
	Use:   "trigger <kind>",
	Short: "Send a trigger to the running daemon",
	Long: `Ask the running daemon to act on an external signal.

Kinds:
  manual          run a reclamation cycle now (RAM gate applies)
  screen_off      run a cycle if kill_on_screen_off is enabled
  boot_completed  re-apply persisted autostart blocks

Wire screen_off and boot_completed to your device's screen-lock and boot
hooks.`,
	Example: `  memprune trigger manual
  memprune trigger screen_off`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(scheduler.TriggerManual), string(scheduler.TriggerScreenOff), string(scheduler.TriggerBootCompleted)},
	RunE:      runTrigger,
}

func init() {
	RootCmd.AddCommand(triggerCmd)
}

func runTrigger(cmd *cobra.Command, args []string) error {
	kind, err := scheduler.ParseKind(args[0])
	if err != nil {
		return err
	}

	pidFile, err := getDefaultPIDFile()
	if err != nil {
		return err
	}
	running, err := scheduler.IsDaemonRunning(pidFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}
	if !running {
		return fmt.Errorf("daemon is not running (start it with 'memprune daemon --daemon', or use 'memprune kill')")
	}

	dir, err := getTriggerDir()
	if err != nil {
		return err
	}
	if err := scheduler.RequestTrigger(dir, kind); err != nil {
		return err
	}
	fmt.Printf("✓ %s trigger sent\n", kind)
	return nil
}
