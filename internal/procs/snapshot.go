// Package procs turns privileged process listings into package records.
package procs

import (
	"bufio"
	"context"
	"sort"
	"strconv"
	"strings"
)

// Commands used for process introspection.
const (
	// SnapshotCommand lists resident memory and name for package-shaped
	// processes, dropping sub-processes such as "com.foo:remote".
	SnapshotCommand = `ps -A -o rss,name | grep '\.' | grep -v '[-:@]'`

	// NamesCommand is the lighter name-only listing used after a kill cycle.
	NamesCommand = `ps -A -o name | grep '\.'`
)

// excludedChars are those that never appear in an application package
// name but do appear in system log daemons and sub-process names.
const excludedChars = "-:@"

// Record is one running application package.
type Record struct {
	Package string
	RSSKb   uint64
}

// Capturer runs a command and returns its output, or ok=false when the
// output could not be obtained.
type Capturer interface {
	ExecuteCapture(ctx context.Context, command string) (string, bool)
}

// IsPackageName reports whether s is shaped like an application package.
func IsPackageName(s string) bool {
	if s == "" || !strings.Contains(s, ".") {
		return false
	}
	if strings.HasPrefix(s, "ERROR:") {
		return false
	}
	if strings.ContainsAny(s, excludedChars) {
		return false
	}
	return true
}

// Snapshot returns the running packages with approximate resident memory.
// ok is false when the listing could not be captured; callers must abort
// rather than act on an empty result.
func Snapshot(ctx context.Context, c Capturer) ([]Record, bool) {
	out, ok := c.ExecuteCapture(ctx, SnapshotCommand)
	if !ok {
		return nil, false
	}
	return ParseSnapshot(out), true
}

// ParseSnapshot parses "rss name" lines. Unparseable lines are dropped.
// When a package appears more than once its resident memory is summed.
func ParseSnapshot(output string) []Record {
	byName := make(map[string]uint64)
	var order []string

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		rss, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			continue
		}
		name := fields[1]
		if !IsPackageName(name) {
			continue
		}
		if _, seen := byName[name]; !seen {
			order = append(order, name)
		}
		byName[name] += rss
	}

	records := make([]Record, 0, len(order))
	for _, name := range order {
		records = append(records, Record{Package: name, RSSKb: byName[name]})
	}
	return records
}

// Names returns the set of running package names.
func Names(ctx context.Context, c Capturer) (map[string]struct{}, bool) {
	out, ok := c.ExecuteCapture(ctx, NamesCommand)
	if !ok {
		return nil, false
	}
	return ParseNames(out), true
}

// ParseNames parses one name per line, keeping package-shaped entries.
func ParseNames(output string) map[string]struct{} {
	names := make(map[string]struct{})
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if IsPackageName(name) {
			names[name] = struct{}{}
		}
	}
	return names
}

// SortByMemory orders records by resident memory, largest first, with the
// package name as a tie-breaker.
func SortByMemory(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].RSSKb != records[j].RSSKb {
			return records[i].RSSKb > records[j].RSSKb
		}
		return records[i].Package < records[j].Package
	})
}
