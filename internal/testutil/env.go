// Package testutil provides utilities for testing the installer in isolation.
package testutil

import (
	"debug/pe"
	"os"
	"path/filepath"
	"testing"
)

// StockLauncher is the stock content of the client's app_launcher/index.js.
const StockLauncher = "require('./launcher.node').load('external_index', module);"

// Env describes an isolated fake host created by SetupTestEnv.
type Env struct {
	// Home is the user profile directory (USERPROFILE and HOME point here).
	Home string
	// InstallRoot is a fake chat-client installation directory.
	InstallRoot string
}

// ExePath returns the path of the fake client executable, a 64-bit PE image.
func (e *Env) ExePath() string {
	return filepath.Join(e.InstallRoot, "QQ.exe")
}

// LauncherPath returns the path of the fake client's entry-point script.
func (e *Env) LauncherPath() string {
	return filepath.Join(e.InstallRoot, "resources", "app", "app_launcher", "index.js")
}

// SetupTestEnv creates isolated test directories for each test.
// This ensures installer tests never touch:
// - the real user profile
// - a real client installation
//
// The cleanup is handled by t.TempDir(), so callers don't need to clean up.
func SetupTestEnv(t *testing.T) *Env {
	t.Helper()

	tmpDir := t.TempDir()
	env := &Env{
		Home:        filepath.Join(tmpDir, "home"),
		InstallRoot: filepath.Join(tmpDir, "QQ"),
	}

	t.Setenv("USERPROFILE", env.Home)
	t.Setenv("HOME", env.Home)

	// Make sure a developer's own loader install does not leak into tests
	t.Setenv("LITELOADERQQNT_PROFILE", "")
	os.Unsetenv("LITELOADERQQNT_PROFILE")

	dirs := []string{
		env.Home,
		filepath.Dir(env.LauncherPath()),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}

	files := map[string][]byte{
		env.ExePath(): PEBytes(t, pe.IMAGE_FILE_MACHINE_AMD64),
		filepath.Join(env.InstallRoot, "LICENSE.electron.txt"): []byte("Copyright (c) Electron contributors"),
		env.LauncherPath(): []byte(StockLauncher),
	}
	for path, content := range files {
		if err := os.WriteFile(path, content, 0o644); err != nil {
			t.Fatalf("failed to create test file %s: %v", path, err)
		}
	}

	return env
}
