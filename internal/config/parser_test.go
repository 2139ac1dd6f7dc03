package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/super1207/llobinstall/internal/host"
)

// mockDetector is a test implementation of host.Detector.
type mockDetector struct {
	info *host.Info
	err  error
}

func (m *mockDetector) Detect(ctx context.Context) (*host.Info, error) {
	return m.info, m.err
}

func windowsDetector() *mockDetector {
	return &mockDetector{info: &host.Info{OS: "windows", Arch: "amd64", Platform: "microsoft windows 11 pro"}}
}

func TestParser_ParseString_Minimal(t *testing.T) {
	cfg, err := NewParser(nil, nil).ParseString(context.Background(), `llob = {}`)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}

	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("empty llob table should yield defaults, got %+v", cfg)
	}
}

func TestParser_ParseString_Full(t *testing.T) {
	luaCode := `
		llob = {
			qq_exe_path = [[D:\QQNT\QQ.exe]],
			work_dir = [[D:\llob]],
			mirrors = {
				"https://kkgithub.com",
				"https://github.com",
			},
			probe = {
				path = "/owner/repo/releases/download/v1/VERSION",
				check = "version",
			},
			race_timeout = 2.5,
			user_agent = "llobinstall-test",
			insecure_tls = false,
			log = {
				level = "debug",
				file = [[D:\llob\install.log]],
			},
		}
	`

	cfg, err := NewParser(nil, nil).ParseString(context.Background(), luaCode)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}

	want := &Config{
		QQExePath: `D:\QQNT\QQ.exe`,
		WorkDir:   `D:\llob`,
		Mirrors:   []string{"https://kkgithub.com", "https://github.com"},
		Probe: ProbeConfig{
			Path:  "/owner/repo/releases/download/v1/VERSION",
			Check: CheckVersion,
		},
		RaceTimeout: 2500 * time.Millisecond,
		UserAgent:   "llobinstall-test",
		InsecureTLS: false,
		Log:         LogConfig{Level: "debug", File: `D:\llob\install.log`},
	}
	if !reflect.DeepEqual(cfg, want) {
		t.Errorf("ParseString() =\n%+v\nwant\n%+v", cfg, want)
	}
}

func TestParser_ParseString_PlatformConditionals(t *testing.T) {
	luaCode := `
		llob = {
			mirrors = {
				platform.when(platform.is_windows, "https://kkgithub.com"),
				platform.when(platform.os == "linux", "https://dgithub.xyz"),
				"https://github.com",
			},
			work_dir = platform.is_windows and [[C:\llob]] or "/tmp/llob",
		}
	`

	cfg, err := NewParser(windowsDetector(), nil).ParseString(context.Background(), luaCode)
	if err != nil {
		t.Fatalf("ParseString() error = %v", err)
	}

	wantMirrors := []string{"https://kkgithub.com", "https://github.com"}
	if !reflect.DeepEqual(cfg.Mirrors, wantMirrors) {
		t.Errorf("Mirrors = %v, want %v", cfg.Mirrors, wantMirrors)
	}
	if cfg.WorkDir != `C:\llob` {
		t.Errorf("WorkDir = %q, want %q", cfg.WorkDir, `C:\llob`)
	}
}

func TestParser_ParseString_PlatformReadOnly(t *testing.T) {
	_, err := NewParser(windowsDetector(), nil).ParseString(context.Background(), `
		platform.is_windows = false
		llob = {}
	`)
	if err == nil || !strings.Contains(err.Error(), "read-only") {
		t.Fatalf("expected read-only error, got %v", err)
	}
}

func TestParser_ParseString_DetectorError(t *testing.T) {
	detectErr := errors.New("wmi unavailable")
	_, err := NewParser(&mockDetector{err: detectErr}, nil).ParseString(context.Background(), `llob = {}`)
	if !errors.Is(err, detectErr) {
		t.Fatalf("expected detector error in chain, got %v", err)
	}
}

func TestParser_ParseString_Errors(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
	}{
		{name: "syntax error", code: `llob = {`, wantMsg: "Lua syntax error"},
		{name: "missing table", code: `x = 1`, wantMsg: "missing or invalid 'llob' table"},
		{name: "table is a string", code: `llob = "yes"`, wantMsg: "missing or invalid 'llob' table"},
		{name: "wrong field type", code: `llob = { race_timeout = "10" }`, wantMsg: "race_timeout: expected number"},
		{name: "wrong nested type", code: `llob = { log = { level = 3 } }`, wantMsg: "log.level: expected string"},
		{name: "wrong mirror type", code: `llob = { mirrors = { "https://github.com", 42 } }`, wantMsg: "mirrors[2]: expected string"},
		{name: "empty mirrors", code: `llob = { mirrors = {} }`, wantMsg: "at least one mirror"},
		{name: "bad mirror scheme", code: `llob = { mirrors = { "ftp://github.com" } }`, wantMsg: "unsupported scheme"},
		{name: "mirror with query", code: `llob = { mirrors = { "https://github.com/?a=b" } }`, wantMsg: "query"},
		{name: "relative probe path", code: `llob = { probe = { path = "x.dll" } }`, wantMsg: "probe.path"},
		{name: "unknown probe check", code: `llob = { probe = { check = "sha256" } }`, wantMsg: "unknown check"},
		{name: "zero timeout", code: `llob = { race_timeout = 0 }`, wantMsg: "race_timeout"},
		{name: "huge timeout", code: `llob = { race_timeout = 3600 }`, wantMsg: "race_timeout"},
		{name: "blank user agent", code: `llob = { user_agent = "  " }`, wantMsg: "user_agent"},
		{name: "bad log level", code: `llob = { log = { level = "loud" } }`, wantMsg: "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewParser(nil, nil).ParseString(context.Background(), tt.code)
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Fatalf("expected *ParseError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want substring %q", err, tt.wantMsg)
			}
		})
	}
}

func TestParser_Load(t *testing.T) {
	dir := t.TempDir()
	parser := NewParser(nil, nil)

	cfg, err := parser.Load(context.Background(), filepath.Join(dir, DefaultFileName))
	if err != nil {
		t.Fatalf("Load() missing file error = %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("missing file should yield defaults, got %+v", cfg)
	}

	path := filepath.Join(dir, DefaultFileName)
	if err := os.WriteFile(path, []byte(`llob = { race_timeout = 3 }`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = parser.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RaceTimeout != 3*time.Second {
		t.Errorf("RaceTimeout = %v, want 3s", cfg.RaceTimeout)
	}
}

func TestParser_ParseFile(t *testing.T) {
	dir := t.TempDir()
	parser := NewParser(nil, nil)

	if _, err := parser.ParseFile(context.Background(), filepath.Join(dir, "missing.lua")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}

	big := filepath.Join(dir, "big.lua")
	if err := os.WriteFile(big, []byte("-- "+strings.Repeat("x", MaxFileSize)), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := parser.ParseFile(context.Background(), big)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) || !strings.Contains(parseErr.Message, "too large") {
		t.Errorf("expected too large error, got %v", err)
	}
}

func TestParser_Load_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	if err := os.WriteFile(path, []byte(`llob = { mirrors = "github" }`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewParser(nil, nil).Load(context.Background(), path)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}

	a, b := Default(), Default()
	a.Mirrors[0] = "https://example.invalid"
	if b.Mirrors[0] == a.Mirrors[0] || DefaultMirrors[0] == a.Mirrors[0] {
		t.Error("Default() must not share the mirror slice")
	}
}

func TestFormatError(t *testing.T) {
	err := &ParseError{
		Message: "Lua syntax error",
		Detail:  "<string>:1: unexpected EOF\nstack traceback:\n\t[G]: ?",
	}

	short := FormatError(err, false)
	if strings.Contains(short, "stack traceback") {
		t.Errorf("non-verbose output should drop the traceback: %q", short)
	}
	if !strings.Contains(short, "unexpected EOF") {
		t.Errorf("non-verbose output lost the detail: %q", short)
	}

	if verbose := FormatError(err, true); !strings.Contains(verbose, "stack traceback") {
		t.Errorf("verbose output should keep the traceback: %q", verbose)
	}

	plain := errors.New("plain")
	if got := FormatError(plain, false); got != "plain" {
		t.Errorf("FormatError(plain) = %q", got)
	}
}
