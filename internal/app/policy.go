package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/memprune/internal/output"
	"github.com/blackwell-systems/memprune/internal/policy"
	"github.com/blackwell-systems/memprune/internal/procs"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Edit hidden, whitelist and blacklist sets and the kill mode",
	Long: `Manage which packages reclamation cycles may stop.

  whitelist mode: every running package except whitelisted, hidden,
                  persistent, protected and foreground ones is stopped
  blacklist mode: only blacklisted packages are stopped (hidden,
                  protected and foreground ones are still spared)

Protected packages cannot be added to any set.`,
	Example: `  memprune policy show
  memprune policy whitelist com.example.music
  memprune policy mode blacklist
  memprune policy blacklist com.example.game com.example.shop`,
}

func init() {
	policyCmd.AddCommand(
		setCommand("hide", "Hide packages from every cycle", policy.KeyHidden, true),
		setCommand("unhide", "Stop hiding packages", policy.KeyHidden, false),
		setCommand("whitelist", "Spare packages in whitelist mode", policy.KeyWhitelisted, true),
		setCommand("unwhitelist", "Remove packages from the whitelist", policy.KeyWhitelisted, false),
		setCommand("blacklist", "Kill packages in blacklist mode", policy.KeyBlacklisted, true),
		setCommand("unblacklist", "Remove packages from the blacklist", policy.KeyBlacklisted, false),
		policyModeCmd,
		policyShowCmd,
	)
	RootCmd.AddCommand(policyCmd)
}

// setCommand builds an add or remove subcommand for one policy set.
func setCommand(use, short, key string, add bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <package>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return editSet(key, add, args)
		},
	}
}

func editSet(key string, add bool, ids []string) error {
	for _, id := range ids {
		if !procs.IsPackageName(id) {
			return fmt.Errorf("%q is not a package name", id)
		}
		if add && policy.NewProtected().Contains(id) {
			return fmt.Errorf("%s is protected and cannot be added to %s", id, key)
		}
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if add {
		err = st.AddToSet(key, ids...)
	} else {
		err = st.RemoveFromSet(key, ids...)
	}
	if err != nil {
		return err
	}

	verb := "Added to"
	if !add {
		verb = "Removed from"
	}
	fmt.Printf("✓ %s %s: %d package(s)\n", verb, key, len(ids))
	return nil
}

var policyModeCmd = &cobra.Command{
	Use:       "mode [whitelist|blacklist]",
	Short:     "Show or set the kill mode",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"whitelist", "blacklist"},
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		if len(args) == 0 {
			mode, err := st.GetKillMode()
			if err != nil {
				return err
			}
			fmt.Println(mode)
			return nil
		}

		mode, err := policy.ParseKillMode(args[0])
		if err != nil {
			return err
		}
		if err := st.SetKillMode(mode); err != nil {
			return err
		}
		fmt.Printf("✓ Kill mode set to %s\n", mode)
		return nil
	},
}

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show every policy set and the kill mode",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		snap, err := policy.Load(st)
		if err != nil {
			return err
		}

		fmt.Printf("Kill mode: %s\n\n", snap.Mode)
		fmt.Print(output.RenderSetTable(map[string]map[string]struct{}{
			policy.KeyHidden:            snap.Hidden,
			policy.KeyWhitelisted:       snap.Whitelisted,
			policy.KeyBlacklisted:       snap.Blacklisted,
			policy.KeyAutostartDisabled: snap.AutostartBlocked,
		}, policy.Keys))
		return nil
	},
}
