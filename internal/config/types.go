package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/super1207/llobinstall/internal/fetch"
)

// Config is the installer configuration.
type Config struct {
	// QQExePath points at the client executable. Empty means auto-discovery.
	QQExePath string
	// WorkDir receives the loader archive and tree. Empty means the user profile.
	WorkDir string
	// Mirrors are the candidate base URLs raced for the download endpoint.
	Mirrors []string
	Probe   ProbeConfig
	// RaceTimeout bounds the endpoint race.
	RaceTimeout time.Duration
	// UserAgent is sent to the release metadata APIs.
	UserAgent string
	// InsecureTLS disables certificate checks for metadata and artifact
	// downloads. Probes never verify certificates.
	InsecureTLS bool
	Log         LogConfig
}

// ProbeConfig describes the request used to race mirrors.
type ProbeConfig struct {
	Path  string
	Check string // CheckPE or CheckVersion
}

// LogConfig configures logging.
type LogConfig struct {
	Level string
	File  string // empty or "console" means stderr only
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Mirrors: append([]string(nil), DefaultMirrors...),
		Probe: ProbeConfig{
			Path:  DefaultProbePath,
			Check: CheckPE,
		},
		RaceTimeout: DefaultRaceTimeout,
		UserAgent:   fetch.BrowserUserAgent,
		InsecureTLS: true,
		Log:         LogConfig{Level: DefaultLogLevel},
	}
}

// Validate performs basic validation on a Config.
func (c *Config) Validate() error {
	if len(c.Mirrors) == 0 {
		return &ValidationError{Field: luaFieldMirrors, Message: "at least one mirror is required"}
	}
	if len(c.Mirrors) > MaxMirrorCount {
		return &ValidationError{
			Field:   luaFieldMirrors,
			Message: fmt.Sprintf("too many mirrors (%d), maximum is %d", len(c.Mirrors), MaxMirrorCount),
		}
	}
	for i, m := range c.Mirrors {
		if err := validateMirror(m); err != nil {
			return &ValidationError{Field: fmt.Sprintf("mirrors[%d]", i+1), Message: err.Error()}
		}
	}

	if !strings.HasPrefix(c.Probe.Path, "/") {
		return &ValidationError{Field: "probe.path", Message: fmt.Sprintf("must start with '/': %q", c.Probe.Path)}
	}
	switch c.Probe.Check {
	case CheckPE, CheckVersion:
	default:
		return &ValidationError{
			Field:   "probe.check",
			Message: fmt.Sprintf("unknown check %q (expected %q or %q)", c.Probe.Check, CheckPE, CheckVersion),
		}
	}

	if c.RaceTimeout <= 0 || c.RaceTimeout > MaxRaceTimeout {
		return &ValidationError{
			Field:   luaFieldRaceTime,
			Message: fmt.Sprintf("must be between 0 and %d seconds, got %s", int(MaxRaceTimeout.Seconds()), c.RaceTimeout),
		}
	}

	if strings.TrimSpace(c.UserAgent) == "" {
		return &ValidationError{Field: luaFieldUserAgent, Message: "cannot be empty"}
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return &ValidationError{Field: "log.level", Message: err.Error()}
	}

	return nil
}

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "config validation failed for " + e.Field + ": " + e.Message
	}
	return "config validation failed: " + e.Message
}

// validateMirror accepts absolute http(s) URLs without query or fragment.
// A path is allowed for prefix-style proxies.
func validateMirror(raw string) error {
	if raw == "" {
		return fmt.Errorf("mirror cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("unsupported scheme in %q (expected http or https)", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("query and fragment are not allowed in %q", raw)
	}
	return nil
}
