package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/memprune/internal/autostart"
	"github.com/blackwell-systems/memprune/internal/procs"
)

var autostartCmd = &cobra.Command{
	Use:   "autostart",
	Short: "Block packages from starting at boot",
	Long: `Block or allow autostart by disabling or enabling each package's
BOOT_COMPLETED receivers. Blocks are stored and re-applied by the daemon on
the boot_completed trigger.`,
	Example: `  memprune autostart block com.example.chatty
  memprune autostart unblock com.example.chatty
  memprune autostart apply`,
}

var autostartBlockCmd = &cobra.Command{
	Use:   "block <package>...",
	Short: "Block packages from starting at boot",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAutostart(cmd, func(ctx context.Context, m *autostart.Manager) error {
			if err := m.Block(ctx, args...); err != nil {
				return err
			}
			fmt.Printf("✓ Autostart blocked for %d package(s)\n", len(args))
			return nil
		}, args)
	},
}

var autostartUnblockCmd = &cobra.Command{
	Use:   "unblock <package>...",
	Short: "Allow packages to start at boot again",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAutostart(cmd, func(ctx context.Context, m *autostart.Manager) error {
			if err := m.Unblock(ctx, args...); err != nil {
				return err
			}
			fmt.Printf("✓ Autostart allowed for %d package(s)\n", len(args))
			return nil
		}, args)
	},
}

var autostartApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Re-apply stored autostart blocks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAutostart(cmd, func(ctx context.Context, m *autostart.Manager) error {
			n, err := m.Apply(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Autostart settings applied to %d package(s)\n", n)
			return nil
		}, nil)
	},
}

func init() {
	autostartCmd.AddCommand(autostartBlockCmd, autostartUnblockCmd, autostartApplyCmd)
	RootCmd.AddCommand(autostartCmd)
}

func withAutostart(cmd *cobra.Command, fn func(context.Context, *autostart.Manager) error, ids []string) error {
	for _, id := range ids {
		if !procs.IsPackageName(id) {
			return fmt.Errorf("%q is not a package name", id)
		}
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

	return fn(ctx, autostart.New(rt.broker, rt.store, rt.log))
}
