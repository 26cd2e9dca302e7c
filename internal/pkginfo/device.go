package pkginfo

import (
	"context"
	"fmt"
)

const (
	inputMethodCommand   = "settings get secure default_input_method"
	launcherCommand      = "cmd package resolve-activity --brief -a android.intent.action.MAIN -c android.intent.category.HOME"
	bootReceiversCommand = "cmd package query-receivers --brief -a android.intent.action.BOOT_COMPLETED"
)

// InputMethod returns the package of the current input method, or "" when
// none is set or it could not be read.
func InputMethod(ctx context.Context, c Capturer) string {
	out, ok := c.ExecuteCapture(ctx, inputMethodCommand)
	if !ok {
		return ""
	}
	return parseComponentPackage(out)
}

// Launcher returns the package of the current home activity, or "".
func Launcher(ctx context.Context, c Capturer) string {
	out, ok := c.ExecuteCapture(ctx, launcherCommand)
	if !ok {
		return ""
	}
	return parseComponentPackage(out)
}

// BootReceivers returns the BOOT_COMPLETED receivers of every package that
// has any, keyed by package.
func BootReceivers(ctx context.Context, c Capturer) (map[string][]string, error) {
	out, ok := c.ExecuteCapture(ctx, bootReceiversCommand)
	if !ok {
		return nil, fmt.Errorf("query boot receivers: %w", ErrUnavailable)
	}
	return parseReceivers(out), nil
}
