package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"github.com/super1207/llobinstall/internal/logging"
)

// ErrInstallNotFound is returned when no discovery method finds a client install.
var ErrInstallNotFound = errors.New("chat client installation not found")

// Locator discovers the chat client's install directory. Methods are tried
// in order: configured executable path, the installer's own directory, the
// Windows uninstall registry key.
type Locator struct {
	// ConfiguredExe is an explicit path to the client executable (may be relative).
	ConfiguredExe string
	// ExecutableDir is the installer's directory. Defaults to the running executable's.
	ExecutableDir string

	registryLookup func() (string, error)
	logger         logging.Logger
}

// NewLocator creates a Locator. configuredExe may be empty.
func NewLocator(configuredExe string, logger logging.Logger) *Locator {
	return &Locator{
		ConfiguredExe:  configuredExe,
		registryLookup: registryInstallDir,
		logger:         logging.OrNop(logger),
	}
}

// Locate returns the absolute, cleaned client install root. The root must
// contain LicenseMarker.
func (l *Locator) Locate(ctx context.Context) (string, error) {
	type method struct {
		name string
		find func() (string, error)
	}
	methods := []method{
		{"config file", l.fromConfig},
		{"installer directory", l.fromExecutableDir},
		{"registry", l.fromRegistry},
	}

	var result *multierror.Error
	for _, m := range methods {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		dir, err := m.find()
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", m.name, err))
			continue
		}

		root, err := absClean(dir)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", m.name, err))
			continue
		}

		if !isFile(filepath.Join(root, LicenseMarker)) {
			result = multierror.Append(result, fmt.Errorf("%s: %s has no %s", m.name, root, LicenseMarker))
			continue
		}

		l.logger.Info("found client installation", "method", m.name, "root", root)
		return root, nil
	}

	if err := result.ErrorOrNil(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInstallNotFound, err)
	}
	return "", ErrInstallNotFound
}

func (l *Locator) fromConfig() (string, error) {
	if l.ConfiguredExe == "" {
		return "", errors.New("qq_exe_path not configured")
	}
	exe, err := absClean(l.ConfiguredExe)
	if err != nil {
		return "", err
	}
	if !isFile(exe) {
		return "", fmt.Errorf("%s is not a file", exe)
	}
	return filepath.Dir(exe), nil
}

func (l *Locator) fromExecutableDir() (string, error) {
	dir := l.ExecutableDir
	if dir == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", fmt.Errorf("resolve installer path: %w", err)
		}
		dir = filepath.Dir(exe)
	}
	if !isFile(filepath.Join(dir, TargetExe)) {
		return "", fmt.Errorf("no %s next to installer in %s", TargetExe, dir)
	}
	return dir, nil
}

func (l *Locator) fromRegistry() (string, error) {
	if l.registryLookup == nil {
		return "", errors.New("registry lookup unavailable")
	}
	return l.registryLookup()
}

// absClean makes path absolute against the working directory and cleans it.
func absClean(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return filepath.Clean(abs), nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
