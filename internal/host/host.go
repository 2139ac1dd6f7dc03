// Package host implements the installer's view of the local machine:
// locating the chat client, checking whether it runs, sniffing its
// architecture and checking the installer's own privileges.
package host

import (
	"context"
	"os"
)

const (
	// TargetExe is the chat client's executable name.
	TargetExe = "QQ.exe"
	// LicenseMarker must exist in a genuine (Electron-based) client install root.
	LicenseMarker = "LICENSE.electron.txt"
	// LoaderProfileEnv is set by manual plugin-loader installations.
	LoaderProfileEnv = "LITELOADERQQNT_PROFILE"
)

// System is the production implementation of the installer's host
// collaborators.
type System struct {
	locator *Locator
}

// NewSystem creates a System that discovers the install root with locator.
func NewSystem(locator *Locator) *System {
	return &System{locator: locator}
}

// HasElevatedPrivilege reports whether the installer runs elevated.
func (s *System) HasElevatedPrivilege() (bool, error) {
	return isElevated()
}

// LocateInstallRoot returns the absolute client install directory.
func (s *System) LocateInstallRoot(ctx context.Context) (string, error) {
	return s.locator.Locate(ctx)
}

// IsTargetProcessRunning reports whether the client started from root is running.
func (s *System) IsTargetProcessRunning(ctx context.Context, root string) (bool, error) {
	return IsRunning(ctx, root)
}

// DetectArchitecture sniffs the PE header of the client executable.
func (s *System) DetectArchitecture(exePath string) (Arch, error) {
	return DetectArch(exePath)
}

// PriorLoaderProfile reports a manual plugin-loader installation.
func (s *System) PriorLoaderProfile() (string, bool) {
	return os.LookupEnv(LoaderProfileEnv)
}
