package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/memprune/internal/logging"
	"github.com/blackwell-systems/memprune/internal/scheduler"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete kill statistics older than the retention window",
	Long: `Delete statistics for packages neither killed nor relaunched within the
retention window (48h by default, 'retention' in config.yaml). The daemon
also prunes on its own every hour.`,
	RunE: runPrune,
}

func init() {
	RootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	settings, _, err := loadSettings()
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	n := scheduler.Prune(st, settings.Retention, time.Now(), logging.Default())
	fmt.Printf("✓ Pruned %d record(s) older than %s\n", n, settings.Retention)
	return nil
}
