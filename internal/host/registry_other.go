//go:build !windows

package host

import "errors"

func registryInstallDir() (string, error) {
	return "", errors.New("registry is only available on windows")
}
