package app

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/memprune/internal/backup"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Export or import policy sets",
	Long: `Export the hidden, whitelist, blacklist and autostart sets plus the kill
mode as JSON, or import such a file. Import only replaces the sets present in
the file.`,
	Example: `  memprune backup export policy.json
  memprune backup export -          # to stdout
  memprune backup import policy.json`,
}

var backupExportCmd = &cobra.Command{
	Use:   "export <file|->",
	Short: "Write policy sets to a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		m := backup.New(st)
		if args[0] == "-" {
			data, err := m.Export()
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		}
		if err := m.ExportFile(args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Policy exported to %s\n", args[0])
		return nil
	},
}

var backupImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Restore policy sets from a JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		doc, err := backup.New(st).ImportFile(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("✓ Imported %d set(s)", len(doc.Sets))
		if doc.KillMode != nil {
			fmt.Printf(", kill mode %s", *doc.KillMode)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	backupCmd.AddCommand(backupExportCmd, backupImportCmd)
	RootCmd.AddCommand(backupCmd)
}
