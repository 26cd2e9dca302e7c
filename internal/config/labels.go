// Package config provides configuration file parsing for memprune.
package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Dir returns the memprune config directory, respecting XDG_CONFIG_HOME.
// Defaults to ~/.config/memprune if XDG_CONFIG_HOME is not set.
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "memprune"), nil
}

// Labels maps package identifiers to the display names the user gave them.
// The package manager shell interface does not expose application labels,
// so this file is the only source of friendly names.
type Labels struct {
	Names map[string]string
}

// LoadLabels reads the labels file at {dir}/labels and returns the parsed
// mapping. If the file does not exist, an empty mapping is returned without
// an error. Invalid or malformed lines are silently skipped.
func LoadLabels(dir string) (*Labels, error) {
	labels := &Labels{
		Names: make(map[string]string),
	}

	path := filepath.Join(dir, "labels")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return labels, nil
		}
		return labels, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip blank lines and comments.
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// The first "=" separates package from label; labels may contain "=".
		idx := strings.IndexByte(line, '=')
		if idx <= 0 {
			continue
		}

		pkg := strings.TrimSpace(line[:idx])
		name := strings.TrimSpace(line[idx+1:])

		if pkg == "" || name == "" || !strings.Contains(pkg, ".") {
			continue
		}

		labels.Names[pkg] = name
	}

	if err := scanner.Err(); err != nil {
		return labels, err
	}

	return labels, nil
}

// Lookup returns the label for pkg, or "" if none was configured.
func (l *Labels) Lookup(pkg string) string {
	if l == nil {
		return ""
	}
	return l.Names[pkg]
}
