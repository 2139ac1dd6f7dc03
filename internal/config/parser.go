package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/super1207/llobinstall/internal/host"
	"github.com/super1207/llobinstall/internal/logging"
)

// Parser represents a Lua config parser with host detection.
type Parser struct {
	detector host.Detector
	logger   logging.Logger
}

// NewParser creates a new config parser. A nil detector leaves the platform
// table out of the Lua environment.
func NewParser(detector host.Detector, logger logging.Logger) *Parser {
	return &Parser{detector: detector, logger: logging.OrNop(logger)}
}

// Load parses the configuration file at path. A missing file yields Default.
func (p *Parser) Load(ctx context.Context, path string) (*Config, error) {
	cfg, err := p.ParseFile(ctx, path)
	if errors.Is(err, os.ErrNotExist) {
		p.logger.Debug("no config file, using defaults", "path", path)
		return Default(), nil
	}
	return cfg, err
}

// ParseFile parses the configuration file at path.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if len(data) > MaxFileSize {
		return nil, &ParseError{
			Message: "config file too large",
			Detail:  fmt.Sprintf("%s exceeds %d bytes", path, MaxFileSize),
		}
	}

	cfg, err := p.ParseString(ctx, string(data))
	if err != nil {
		return nil, err
	}
	p.logger.Info("loaded config file", "path", path)
	return cfg, nil
}

// ParseString parses a Lua config from a string.
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*Config, error) {
	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if p.detector != nil {
		info, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		injectPlatformTable(L, info)
	}

	if err := L.DoString(luaCode); err != nil {
		return nil, &ParseError{
			Message: "Lua syntax error",
			Detail:  err.Error(),
		}
	}

	return extractConfig(L)
}

// ParseError represents a config parsing error with friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// extractConfig reads the global "llob" table over the defaults.
func extractConfig(L *lua.LState) (*Config, error) {
	llobTable, ok := L.GetGlobal(luaGlobalLlob).(*lua.LTable)
	if !ok {
		return nil, &ParseError{
			Message: "missing or invalid 'llob' table",
			Detail:  fmt.Sprintf("expected table, got %s", L.GetGlobal(luaGlobalLlob).Type()),
		}
	}

	config := Default()
	var readErr error
	r := &fieldReader{table: llobTable, err: &readErr}

	r.str(luaFieldQQExePath, &config.QQExePath)
	r.str(luaFieldWorkDir, &config.WorkDir)
	r.str(luaFieldUserAgent, &config.UserAgent)
	r.boolean(luaFieldInsecure, &config.InsecureTLS)
	r.seconds(luaFieldRaceTime, &config.RaceTimeout)
	r.stringList(luaFieldMirrors, &config.Mirrors)

	if probe := r.sub(luaFieldProbe); probe != nil {
		probe.str(luaFieldPath, &config.Probe.Path)
		probe.str(luaFieldCheck, &config.Probe.Check)
	}
	if logTable := r.sub(luaFieldLog); logTable != nil {
		logTable.str(luaFieldLevel, &config.Log.Level)
		logTable.str(luaFieldFile, &config.Log.File)
	}

	if readErr != nil {
		return nil, &ParseError{Message: "invalid config value", Detail: readErr.Error()}
	}

	if err := config.Validate(); err != nil {
		return nil, &ParseError{
			Message: "config validation failed",
			Detail:  err.Error(),
		}
	}

	return config, nil
}

// fieldReader copies typed fields out of a Lua table. Absent fields leave
// the destination untouched; the first type mismatch is stored in *err,
// which nested readers share.
type fieldReader struct {
	table  *lua.LTable
	prefix string
	err    *error
}

func (r *fieldReader) get(name string, want lua.LValueType) (lua.LValue, bool) {
	if *r.err != nil {
		return nil, false
	}
	v := r.table.RawGetString(name)
	if v.Type() == lua.LTNil {
		return nil, false
	}
	if v.Type() != want {
		*r.err = fmt.Errorf("%s%s: expected %s, got %s", r.prefix, name, want, v.Type())
		return nil, false
	}
	return v, true
}

func (r *fieldReader) str(name string, dst *string) {
	if v, ok := r.get(name, lua.LTString); ok {
		*dst = strings.TrimSpace(v.String())
	}
}

func (r *fieldReader) boolean(name string, dst *bool) {
	if v, ok := r.get(name, lua.LTBool); ok {
		*dst = bool(v.(lua.LBool))
	}
}

func (r *fieldReader) seconds(name string, dst *time.Duration) {
	if v, ok := r.get(name, lua.LTNumber); ok {
		*dst = time.Duration(float64(v.(lua.LNumber)) * float64(time.Second))
	}
}

// stringList reads an array of strings, dropping nil holes left by
// platform.when and rejecting other types.
func (r *fieldReader) stringList(name string, dst *[]string) {
	v, ok := r.get(name, lua.LTTable)
	if !ok {
		return
	}

	var out []string
	v.(*lua.LTable).ForEach(func(key, value lua.LValue) {
		if *r.err != nil {
			return
		}
		switch value.Type() {
		case lua.LTNil:
		case lua.LTString:
			out = append(out, strings.TrimSpace(value.String()))
		default:
			*r.err = fmt.Errorf("%s%s[%s]: expected string, got %s", r.prefix, name, key.String(), value.Type())
		}
	})
	if *r.err == nil {
		*dst = out
	}
}

// sub returns a reader for a nested table, or nil when absent or invalid.
func (r *fieldReader) sub(name string) *fieldReader {
	v, ok := r.get(name, lua.LTTable)
	if !ok {
		return nil
	}
	return &fieldReader{table: v.(*lua.LTable), prefix: r.prefix + name + ".", err: r.err}
}

// FormatError formats a ParseError for user display.
// In verbose mode, show the raw Lua error. Otherwise, show friendly message.
func FormatError(err error, verbose bool) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}
