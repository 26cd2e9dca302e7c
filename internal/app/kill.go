package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/memprune/internal/engine"
	"github.com/blackwell-systems/memprune/internal/meminfo"
	"github.com/blackwell-systems/memprune/internal/output"
)

var (
	killIgnoreGate bool

	killCmd = &cobra.Command{
		Use:   "kill",
		Short: "Run one reclamation cycle now",
		Long: `Run a single reclamation cycle in this process: capture the foreground
activity and running packages, stop every eligible package in one command,
record kill counts, then check which packages relaunched.

The cycle honours the RAM gate from config.yaml unless --force is given.
To ask a running daemon for a cycle instead, use 'memprune trigger manual'.`,
		Example: `  memprune kill
  memprune kill --force`,
		RunE: runKill,
	}
)

func init() {
	killCmd.Flags().BoolVar(&killIgnoreGate, "force", false, "run even when memory usage is below the RAM threshold")
	RootCmd.AddCommand(killCmd)
}

func runKill(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := rt.requirePrivilege(ctx); err != nil {
		return err
	}

	if gate := rt.settings.RAMGate; gate.Enabled && !killIgnoreGate {
		g := meminfo.Gate{}
		if !g.AboveThreshold(gate.Threshold) {
			fmt.Printf("Memory usage %d%% is below the %d%% threshold; nothing to do (use --force to run anyway)\n",
				g.UsedPercent(), gate.Threshold)
			return nil
		}
	}

	spinner := output.StartSpinner("Reclaiming memory...")
	result := rt.engine(statusNotifier(rt.log)).Perform(ctx, nil)
	spinner.Stop()

	printResult(result)
	if result.Aborted != "" {
		return fmt.Errorf("cycle aborted: %s", result.Aborted)
	}
	return nil
}

func printResult(r engine.Result) {
	if r.Aborted != "" {
		fmt.Printf("✗ Cycle %s aborted: %s\n", shortID(r.CycleID.String()), r.Aborted)
		return
	}
	if len(r.Killed) == 0 {
		fmt.Println("✓ Nothing to kill")
		return
	}
	fmt.Printf("✓ Killed %d package(s)\n", len(r.Killed))
	for _, pkg := range r.Killed {
		fmt.Printf("  %s\n", pkg)
	}
	if len(r.Relaunched) > 0 {
		fmt.Printf("\n⚠ Relaunched: %s\n", strings.Join(r.Relaunched, ", "))
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
