// Package meminfo reads coarse system memory totals.
package meminfo

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// DefaultPath is the kernel memory report.
const DefaultPath = "/proc/meminfo"

// Info holds the totals the RAM gate needs, in kilobytes.
type Info struct {
	TotalKb     uint64
	AvailableKb uint64
}

// Read parses the meminfo file at path.
func Read(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	info, err := Parse(f)
	if err != nil {
		return Info{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return info, nil
}

// Parse reads MemTotal and MemAvailable from r.
// Example input:
//
//	MemTotal:        7823456 kB
//	MemFree:          312004 kB
//	MemAvailable:    2954120 kB
func Parse(r io.Reader) (Info, error) {
	var info Info
	var haveTotal, haveAvail bool

	scanner := bufio.NewScanner(r)
	for scanner.Scan() && !(haveTotal && haveAvail) {
		key, rest, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		switch key {
		case "MemTotal":
			v, err := strconv.ParseUint(fields[0], 10, 64)
			if err != nil {
				return Info{}, fmt.Errorf("invalid MemTotal %q: %w", fields[0], err)
			}
			info.TotalKb, haveTotal = v, true
		case "MemAvailable":
			v, err := strconv.ParseUint(fields[0], 10, 64)
			if err != nil {
				return Info{}, fmt.Errorf("invalid MemAvailable %q: %w", fields[0], err)
			}
			info.AvailableKb, haveAvail = v, true
		}
	}
	if err := scanner.Err(); err != nil {
		return Info{}, err
	}
	if !haveTotal || info.TotalKb == 0 {
		return Info{}, fmt.Errorf("MemTotal missing")
	}
	if !haveAvail {
		return Info{}, fmt.Errorf("MemAvailable missing")
	}
	return info, nil
}

// UsedKb returns total minus available memory.
func (i Info) UsedKb() uint64 {
	if i.AvailableKb >= i.TotalKb {
		return 0
	}
	return i.TotalKb - i.AvailableKb
}

// UsedPercent returns used memory as a whole percentage of total.
func (i Info) UsedPercent() int {
	if i.TotalKb == 0 {
		return 0
	}
	return int(i.UsedKb() * 100 / i.TotalKb)
}

// Gate decides whether memory pressure justifies a reclamation cycle.
type Gate struct {
	Path string
}

// UsedPercent reads the current usage. A failed read reports 0, so a
// gated cycle is skipped rather than run blind.
func (g Gate) UsedPercent() int {
	path := g.Path
	if path == "" {
		path = DefaultPath
	}
	info, err := Read(path)
	if err != nil {
		return 0
	}
	return info.UsedPercent()
}

// AboveThreshold reports whether usage is at or above threshold percent.
func (g Gate) AboveThreshold(threshold int) bool {
	return g.UsedPercent() >= threshold
}
