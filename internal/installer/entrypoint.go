package installer

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
)

// BackupSuffix names the copy of the launcher script taken before the first rewrite.
const BackupSuffix = ".llob-backup"

// LauncherContent returns the launcher script that loads the plugin loader
// from loaderDir before chain-loading the client.
func LauncherContent(loaderDir string) string {
	return "require(String.raw`" + loaderDir + "`);\r\nrequire('./launcher.node').load('external_index', module);"
}

// registerEntrypoint rewrites the launcher script at launcherPath. It does
// nothing when the script already has the wanted content. Otherwise the
// current script is backed up once and replaced atomically.
func registerEntrypoint(launcherPath, loaderDir string) (bool, error) {
	// String.raw keeps backslashes but still ends at a backtick and interpolates ${
	if strings.Contains(loaderDir, "`") || strings.Contains(loaderDir, "${") {
		return false, fmt.Errorf("%w: %s", ErrUnsafeLoaderPath, loaderDir)
	}

	want := []byte(LauncherContent(loaderDir))

	current, err := os.ReadFile(launcherPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("read launcher: %w", err)
	}
	if bytes.Equal(current, want) {
		return false, nil
	}

	if current != nil {
		backupPath := launcherPath + BackupSuffix
		if _, err := os.Stat(backupPath); errors.Is(err, os.ErrNotExist) {
			if err := writeFileAtomic(backupPath, current, 0o644); err != nil {
				return false, fmt.Errorf("back up launcher: %w", err)
			}
		}
	}

	if err := writeFileAtomic(launcherPath, want, 0o644); err != nil {
		return false, fmt.Errorf("write launcher: %w", err)
	}
	return true, nil
}
