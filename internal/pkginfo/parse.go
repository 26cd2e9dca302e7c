package pkginfo

import (
	"bufio"
	"strings"
)

// parsePackageList parses `pm list packages` output.
// Example input:
//
//	package:com.android.settings
//	package:com.example.app
func parsePackageList(output string) map[string]struct{} {
	set := make(map[string]struct{})
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		name, ok := strings.CutPrefix(line, "package:")
		if !ok || name == "" {
			continue
		}
		set[name] = struct{}{}
	}
	return set
}

// parsePersistent reports whether the first flags line of a
// `dumpsys package` report carries PERSISTENT.
// Example input:
//
//	Packages:
//	  Package [com.android.phone] (4c1d2e):
//	    flags=[ SYSTEM HAS_CODE PERSISTENT ALLOW_CLEAR_USER_DATA ]
func parsePersistent(output string) bool {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "flags=[") && !strings.HasPrefix(line, "pkgFlags=[") {
			continue
		}
		for _, flag := range strings.Fields(strings.Trim(line[strings.Index(line, "[")+1:], "] ")) {
			if flag == "PERSISTENT" {
				return true
			}
		}
		return false
	}
	return false
}

// parseComponentPackage extracts the package from the last "pkg/class"
// line of output. Returns "" when there is none or the value is "null".
// Example input:
//
//	priority=0 preferredOrder=0 match=0x108000 specificIndex=-1 isDefault=true
//	com.google.android.apps.nexuslauncher/.NexusLauncherActivity
func parseComponentPackage(output string) string {
	var pkg string
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line == "null" || strings.HasPrefix(line, "ERROR:") {
			continue
		}
		name, _, found := strings.Cut(line, "/")
		if !found || strings.ContainsAny(name, " =") || !strings.Contains(name, ".") {
			continue
		}
		pkg = name
	}
	return pkg
}

// parseReceivers groups "pkg/receiver" lines by package, keeping the
// receiver as printed.
// Example input:
//
//	com.example.app/.BootReceiver
//	com.example.app/com.example.app.SyncReceiver
//	com.other/.StartupReceiver
func parseReceivers(output string) map[string][]string {
	receivers := make(map[string][]string)
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "ERROR:") || strings.ContainsAny(line, " =") {
			continue
		}
		pkg, cls, found := strings.Cut(line, "/")
		if !found || pkg == "" || cls == "" || !strings.Contains(pkg, ".") {
			continue
		}
		if _, dup := seen[line]; dup {
			continue
		}
		seen[line] = struct{}{}
		receivers[pkg] = append(receivers[pkg], cls)
	}
	return receivers
}
