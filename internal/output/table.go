// Package output provides terminal output utilities for memprune.
//
// This package includes:
//   - Table rendering for running packages, kill history and greedy apps
//   - A spinner for indeterminate operations
//   - Human-readable formatting for memory sizes and times
//
// Tables use plain characters and ANSI color codes when stdout is a TTY.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/memprune/internal/analyzer"
	"github.com/blackwell-systems/memprune/internal/engine"
)

// ANSI color codes for status display
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderProcessTable renders running packages with their classification.
// Candidates are shown in the order given.
func RenderProcessTable(candidates []engine.Candidate) string {
	if len(candidates) == 0 {
		return "No running packages found.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-40s %-20s %-9s %s\n", "Package", "Name", "Memory", "Status"))
	sb.WriteString(strings.Repeat("─", 84))
	sb.WriteString("\n")

	for _, c := range candidates {
		label, color := StatusLabel(c)
		name := c.Info.DisplayName
		if name == "" {
			name = "—"
		}
		sb.WriteString(fmt.Sprintf("%-40s %-20s %-9s %s\n",
			truncate(c.Package, 40),
			truncate(name, 20),
			FormatKb(c.RSSKb),
			colorize(color, label)))
	}

	return sb.String()
}

// StatusLabel explains why a candidate will or will not be killed. The
// first matching rule wins, in the order the engine applies them.
func StatusLabel(c engine.Candidate) (label, color string) {
	cl := c.Class
	switch {
	case c.Eligible:
		return "✗ kill", colorRed
	case cl.IsProtected:
		return "protected", colorGreen
	case cl.IsHidden:
		return "hidden", colorGray
	case cl.IsForeground:
		return "foreground", colorGreen
	case cl.IsWhitelisted:
		return "whitelisted", colorGreen
	case cl.IsPersistent:
		return "persistent", colorGray
	default:
		return "not listed", colorGray
	}
}

// RenderHistoryTable renders kill/relaunch activity, most killed first.
func RenderHistoryTable(entries []analyzer.HistoryEntry) string {
	if len(entries) == 0 {
		return "No activity in the history window.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-24s %-7s %-16s %-10s %-16s %s\n",
		"App", "Kills", "Last Kill", "Relaunch", "Last Relaunch", ""))
	sb.WriteString(strings.Repeat("─", 84))
	sb.WriteString("\n")

	for _, e := range entries {
		flag := ""
		if e.Greedy {
			flag = colorize(colorYellow, "⚠ greedy")
		}
		sb.WriteString(fmt.Sprintf("%-24s %-7d %-16s %-10d %-16s %s\n",
			truncate(e.DisplayName, 24),
			e.KillCount,
			formatRelativeTime(e.LastKill),
			e.RelaunchCount,
			formatRelativeTime(e.LastRelaunch),
			flag))
	}

	return sb.String()
}

// RenderGreedyTable renders autostart-blocking suggestions.
func RenderGreedyTable(apps []analyzer.GreedyApp) string {
	if len(apps) == 0 {
		return "No greedy apps found.\n"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-40s %-20s %-10s %s\n", "Package", "Name", "Relaunch", "Last Relaunch"))
	sb.WriteString(strings.Repeat("─", 84))
	sb.WriteString("\n")

	for _, a := range apps {
		sb.WriteString(fmt.Sprintf("%-40s %-20s %-10d %s\n",
			truncate(a.Package, 40),
			truncate(a.DisplayName, 20),
			a.RelaunchCount,
			formatRelativeTime(a.LastRelaunch)))
	}

	return sb.String()
}

// RenderSetTable renders named package sets, members sorted.
func RenderSetTable(sets map[string]map[string]struct{}, order []string) string {
	var sb strings.Builder
	for _, key := range order {
		members := make([]string, 0, len(sets[key]))
		for id := range sets[key] {
			members = append(members, id)
		}
		sort.Strings(members)

		sb.WriteString(fmt.Sprintf("%s (%d)\n", key, len(members)))
		if len(members) == 0 {
			sb.WriteString("  —\n")
			continue
		}
		for _, id := range members {
			sb.WriteString("  ")
			sb.WriteString(id)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// FormatKb converts a kilobyte count to a human-readable size.
func FormatKb(kb uint64) string {
	if kb == 0 {
		return "—"
	}
	return humanize.IBytes(kb * 1024)
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 hours ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	if time.Since(t) < time.Minute {
		return "just now"
	}
	return humanize.Time(t)
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
