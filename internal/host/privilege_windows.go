//go:build windows

package host

import "golang.org/x/sys/windows"

// isElevated reports whether the process token is elevated (run as administrator).
func isElevated() (bool, error) {
	return windows.GetCurrentProcessToken().IsElevated(), nil
}
