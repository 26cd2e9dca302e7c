package app

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/memprune/internal/api"
	"github.com/blackwell-systems/memprune/internal/engine"
	"github.com/blackwell-systems/memprune/internal/meminfo"
	"github.com/blackwell-systems/memprune/internal/output"
	"github.com/blackwell-systems/memprune/internal/scheduler"
)

const statusTimeout = 2 * time.Second

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon state, memory use and the last cycle",
	Long: `Display whether the reclamation daemon is running and what it last did.

Shows:
  • Daemon running status and PID
  • Scheduler phase, next periodic run and last cycle (from the status API)
  • Current memory use and the RAM gate
  • Last notification recorded in the status file`,
	Example: `  memprune status`,
	RunE:    runStatus,
}

func init() {
	RootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	pidFile, err := getDefaultPIDFile()
	if err != nil {
		return fmt.Errorf("failed to get PID file path: %w", err)
	}

	running, err := scheduler.IsDaemonRunning(pidFile)
	if err != nil {
		return fmt.Errorf("failed to check daemon status: %w", err)
	}

	settings, _, err := loadSettings()
	if err != nil {
		return err
	}

	if running {
		fmt.Printf("Daemon:      running (PID %d)\n", readPIDFile(pidFile))
	} else {
		fmt.Println("Daemon:      stopped")
	}

	if running && settings.StatusAddr != "" {
		if resp, err := fetchStatus(settings.StatusAddr); err == nil {
			printStateView(resp.State)
		} else {
			fmt.Printf("Status API:  unreachable (%v)\n", err)
		}
	}

	if info, err := meminfo.Read(meminfo.DefaultPath); err == nil {
		fmt.Printf("Memory:      %d%% used (%s of %s available)\n",
			info.UsedPercent(), output.FormatKb(info.AvailableKb), output.FormatKb(info.TotalKb))
	}
	if settings.RAMGate.Enabled {
		fmt.Printf("RAM gate:    kill only above %d%%\n", settings.RAMGate.Threshold)
	} else {
		fmt.Println("RAM gate:    off")
	}
	if settings.PeriodicEnabled {
		fmt.Printf("Periodic:    every %s\n", settings.Interval)
	} else {
		fmt.Println("Periodic:    off")
	}

	if path, err := getStatusFile(); err == nil {
		if st, err := engine.ReadStatus(path); err == nil {
			printNotifications(st)
		}
	}

	if !running {
		fmt.Println()
		fmt.Println("Run 'memprune daemon --daemon' to start reclamation.")
	}
	return nil
}

func readPIDFile(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, _ := strconv.Atoi(strings.TrimSpace(string(data)))
	return pid
}

// fetchStatus asks the daemon's loopback API for its state.
func fetchStatus(addr string) (*api.StatusResponse, error) {
	client := &http.Client{Timeout: statusTimeout}
	resp, err := client.Get("http://" + addr + "/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var out api.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("invalid status response: %w", err)
	}
	return &out, nil
}

func printStateView(v scheduler.StateView) {
	fmt.Printf("Phase:       %s\n", v.Phase)
	if !v.NextRun.IsZero() {
		fmt.Printf("Next run:    %s\n", humanize.Time(v.NextRun))
	}
	fmt.Printf("Cycles:      %d (%d package(s) killed)\n", v.Cycles, v.Killed)
	if v.LastSkip != "" {
		fmt.Printf("Last skip:   %s\n", v.LastSkip)
	}
	if v.Last != nil {
		line := fmt.Sprintf("%s %s, %d killed", v.Last.Trigger, humanize.Time(v.Last.Finished), len(v.Last.Killed))
		if len(v.Last.Relaunched) > 0 {
			line += fmt.Sprintf(", %d relaunched", len(v.Last.Relaunched))
		}
		if v.Last.Aborted != "" {
			line += " (aborted: " + v.Last.Aborted + ")"
		}
		fmt.Printf("Last cycle:  %s\n", line)
	}
}

func printNotifications(st engine.Status) {
	if !st.LastKillAt.IsZero() {
		fmt.Printf("Last kill:   %d package(s) %s, %d total\n", st.LastKilled, humanize.Time(st.LastKillAt), st.TotalKilled)
	}
	if st.LastProblem != "" {
		fmt.Printf("Problem:     %s (%s)\n", st.LastProblem, humanize.Time(st.LastProblemAt))
	}
}
