//go:build windows

package host

import (
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sys/windows/registry"
)

const uninstallKey = `Software\Microsoft\Windows\CurrentVersion\Uninstall\QQ`

// registryInstallDir reads the client's uninstaller location from the
// machine-wide uninstall registry key and returns its directory.
func registryInstallDir() (string, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE, uninstallKey, registry.QUERY_VALUE)
	if err != nil {
		return "", fmt.Errorf("open HKLM\\%s: %w", uninstallKey, err)
	}
	defer key.Close()

	uninstall, _, err := key.GetStringValue("UninstallString")
	if err != nil {
		return "", fmt.Errorf("read UninstallString: %w", err)
	}

	uninstall = strings.Trim(strings.TrimSpace(uninstall), `"`)
	if uninstall == "" {
		return "", fmt.Errorf("empty UninstallString")
	}
	return filepath.Dir(uninstall), nil
}
