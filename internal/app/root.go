package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/memprune/internal/config"
)

var (
	dbPath     string
	configPath string

	// RootCmd is the root command for memprune
	RootCmd = &cobra.Command{
		Use:   "memprune",
		Short: "Reclaim memory by stopping background apps",
		Long: `memprune stops background application packages to free memory, either on a
schedule or when triggered (screen off, manual). It needs a privileged shell:
a root shell (su) or a mediated broker (rish).

Quick Start:
  1. memprune doctor              # check privilege channels
  2. memprune ps                  # see what would be killed
  3. memprune policy whitelist <package>
  4. memprune daemon --daemon     # start periodic reclamation

Kill modes:
  • whitelist (default): stop everything except whitelisted packages
  • blacklist: stop only blacklisted packages

Protected packages (system UI, input method, launcher, ...) and whatever is
in the foreground are never stopped.

Examples:
  # Run one reclamation cycle now
  memprune kill

  # Ask the running daemon for a cycle
  memprune trigger manual

  # Show kill history and apps that keep relaunching
  memprune stats --greedy`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("memprune: background app reclamation")
			fmt.Println()
			fmt.Println("Run 'memprune doctor' to check privileges.")
			fmt.Println("Run 'memprune --help' for all commands.")
			return nil
		},
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default: ~/.memprune/memprune.db)")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "settings file (default: $XDG_CONFIG_HOME/memprune/config.yaml)")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// dataDir returns ~/.memprune, creating it if needed.
func dataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	dir := filepath.Join(home, ".memprune")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create memprune directory: %w", err)
	}
	return dir, nil
}

// getDBPath returns the database path, using the flag value or default
func getDBPath() (string, error) {
	if dbPath != "" {
		return dbPath, nil
	}
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "memprune.db"), nil
}

// getConfigPath returns the settings file path, using the flag value or default
func getConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	dir, err := config.Dir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve config directory: %w", err)
	}
	return filepath.Join(dir, config.SettingsFile), nil
}

// dataFile returns a file path inside the data directory.
func dataFile(name string) (string, error) {
	dir, err := dataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func getDefaultPIDFile() (string, error) { return dataFile("daemon.pid") }
func getDefaultLogFile() (string, error) { return dataFile("daemon.log") }
func getStatusFile() (string, error)     { return dataFile("status.json") }
func getTriggerDir() (string, error)     { return dataFile("triggers") }
