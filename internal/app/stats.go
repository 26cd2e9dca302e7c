package app

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/memprune/internal/analyzer"
	"github.com/blackwell-systems/memprune/internal/autostart"
	"github.com/blackwell-systems/memprune/internal/output"
)

var (
	statsGreedy      bool
	statsBlockGreedy bool
	statsWindow      time.Duration

	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show kill and relaunch history",
		Long: `Show how often each package was killed and relaunched within the history
window (12h by default, 'history_window' in config.yaml).

A package relaunched more than 'greedy_threshold' times (default 3) is
"greedy": it restarts as soon as it is stopped. Blocking its autostart is
usually more effective than killing it again.`,
		Example: `  memprune stats
  memprune stats --greedy
  memprune stats --greedy --block`,
		RunE: runStats,
	}
)

func init() {
	statsCmd.Flags().BoolVar(&statsGreedy, "greedy", false, "only show greedy apps not yet autostart-blocked")
	statsCmd.Flags().BoolVar(&statsBlockGreedy, "block", false, "block autostart for every greedy app (with --greedy)")
	statsCmd.Flags().DurationVar(&statsWindow, "window", 0, "history window (default: history_window setting)")
	RootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	if statsBlockGreedy && !statsGreedy {
		return fmt.Errorf("--block requires --greedy")
	}

	settings, _, err := loadSettings()
	if err != nil {
		return err
	}
	window := settings.HistoryWindow
	if statsWindow > 0 {
		window = statsWindow
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	a := analyzer.New(st, st)
	now := time.Now()

	if !statsGreedy {
		entries, err := a.History(now, window, settings.GreedyThreshold)
		if err != nil {
			return err
		}
		sum := analyzer.Summarize(entries, now.Add(-window))
		fmt.Printf("Kill history (last %s)\n\n", window)
		fmt.Print(output.RenderHistoryTable(entries))
		if sum.Packages > 0 {
			fmt.Printf("\n%d package(s) · %d kill(s) · %d relaunch(es)", sum.Packages, sum.TotalKills, sum.TotalRelaunch)
			if sum.Greedy > 0 {
				fmt.Printf(" · %d greedy (see 'memprune stats --greedy')", sum.Greedy)
			}
			fmt.Println()
		}
		return nil
	}

	apps, err := a.Greedy(now, window, settings.GreedyThreshold)
	if err != nil {
		return err
	}
	fmt.Print(output.RenderGreedyTable(apps))
	if len(apps) == 0 || !statsBlockGreedy {
		return nil
	}

	ids := make([]string, 0, len(apps))
	for _, app := range apps {
		ids = append(ids, app.Package)
	}

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
	if err := autostart.New(rt.broker, rt.store, rt.log).Block(ctx, ids...); err != nil {
		return fmt.Errorf("failed to block autostart: %w", err)
	}
	fmt.Printf("\n✓ Autostart blocked for %d greedy app(s)\n", len(ids))
	return nil
}
