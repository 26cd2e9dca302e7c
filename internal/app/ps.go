package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/memprune/internal/engine"
	"github.com/blackwell-systems/memprune/internal/output"
)

var (
	psEligibleOnly bool

	psCmd = &cobra.Command{
		Use:   "ps",
		Short: "Show running packages and what a cycle would do",
		Long: `List running application packages with their memory use and the decision
the next reclamation cycle would make for each. Nothing is stopped.`,
		Example: `  memprune ps
  memprune ps --eligible`,
		RunE: runPs,
	}
)

func init() {
	psCmd.Flags().BoolVar(&psEligibleOnly, "eligible", false, "only show packages that would be killed")
	RootCmd.AddCommand(psCmd)
}

func runPs(cmd *cobra.Command, args []string) error {
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

	spinner := output.StartSpinner("Capturing processes...")
	candidates, mode, err := rt.engine(nil).Inspect(ctx)
	spinner.Stop()
	if err != nil {
		return fmt.Errorf("failed to inspect processes: %w", err)
	}

	shown := candidates
	if psEligibleOnly {
		shown = filterEligible(candidates)
	}

	fmt.Printf("Kill mode: %s\n\n", mode)
	fmt.Print(output.RenderProcessTable(shown))

	eligible := filterEligible(candidates)
	var total uint64
	for _, c := range eligible {
		total += c.RSSKb
	}
	fmt.Printf("\n%d of %d running package(s) eligible · %s reclaimable\n",
		len(eligible), len(candidates), output.FormatKb(total))
	return nil
}

func filterEligible(candidates []engine.Candidate) []engine.Candidate {
	var out []engine.Candidate
	for _, c := range candidates {
		if c.Eligible {
			out = append(out, c)
		}
	}
	return out
}
