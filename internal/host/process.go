package host

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v4/process"
)

// IsRunning reports whether a process named TargetExe, started from root,
// is running. Processes whose name or executable cannot be read (usually
// due to permissions) are ignored.
func IsRunning(ctx context.Context, root string) (bool, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return false, fmt.Errorf("list processes: %w", err)
	}

	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || !strings.EqualFold(name, TargetExe) {
			continue
		}
		exe, err := p.ExeWithContext(ctx)
		if err != nil || exe == "" {
			continue
		}
		if samePath(filepath.Dir(exe), root) {
			return true, nil
		}
	}

	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return false, nil
}

// samePath compares two directory paths, case-insensitively on Windows.
func samePath(a, b string) bool {
	a, b = filepath.Clean(a), filepath.Clean(b)
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}
