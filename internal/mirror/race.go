// Package mirror picks the fastest working distribution endpoint among a set
// of mirrors by racing concurrent probe requests against a hard timeout.
//
// # Race semantics
//
// Every candidate gets its own goroutine that fetches base+probePath and
// evaluates a content predicate on the body. Only a passing probe publishes
// its base URL; any other outcome is dropped. A timer goroutine publishes a
// timeout sentinel, so the race always ends. The first published value wins.
//
// Losing probes are abandoned rather than cancelled. They own nothing but
// their HTTP call, which is bounded by the racer's client timeout, and the
// result channel is sized so their late sends never block.
package mirror

import (
	"context"
	"errors"
	"io"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/super1207/llobinstall/internal/fetch"
	"github.com/super1207/llobinstall/internal/logging"
)

const (
	// DefaultTimeout bounds the whole race
	DefaultTimeout = 10 * time.Second
	// DefaultProbeTimeout bounds a single probe request, including abandoned ones
	DefaultProbeTimeout = 30 * time.Second
	// maxProbeBody caps how much of a probe response is buffered
	maxProbeBody = 32 << 20
)

// ErrNoWinner is returned when no candidate passed the probe before the timeout.
var ErrNoWinner = errors.New("no reachable endpoint")

// OutcomeKind is the result of a single probe or of the timer.
type OutcomeKind int

const (
	// Won means the probe passed the predicate.
	Won OutcomeKind = iota
	// Lost means the probe failed; lost outcomes are never published.
	Lost
	// TimedOut is the timer sentinel.
	TimedOut
)

// String returns the string representation of the outcome kind
func (k OutcomeKind) String() string {
	switch k {
	case Won:
		return "won"
	case Lost:
		return "lost"
	case TimedOut:
		return "timed out"
	default:
		return "unknown"
	}
}

// Outcome is a value published on the race's completion channel.
type Outcome struct {
	Kind    OutcomeKind
	BaseURL string
}

// Racer races probe requests against candidate base URLs.
type Racer struct {
	client *http.Client
	logger logging.Logger
}

// Option customizes a Racer.
type Option func(*Racer)

// WithProbeTimeout sets the per-probe HTTP timeout.
func WithProbeTimeout(d time.Duration) Option {
	return func(r *Racer) {
		r.client = newProbeClient(d)
	}
}

// WithLogger sets the logger for probe diagnostics.
func WithLogger(l logging.Logger) Option {
	return func(r *Racer) { r.logger = logging.OrNop(l) }
}

// NewRacer creates a racer whose probes skip TLS verification and ignore
// proxy settings.
func NewRacer(opts ...Option) *Racer {
	r := &Racer{
		client: newProbeClient(DefaultProbeTimeout),
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func newProbeClient(timeout time.Duration) *http.Client {
	return fetch.NewClient(timeout, fetch.Options{InsecureSkipVerify: true, NoProxy: true})
}

// Race probes every candidate concurrently and returns the base URL of the
// first one whose probe response passes accept. It returns ErrNoWinner when
// timeout elapses first, and ctx.Err() when ctx is done first.
func (r *Racer) Race(ctx context.Context, candidates []string, probePath string, accept Predicate, timeout time.Duration) (string, error) {
	results := make(chan Outcome, len(candidates)+1)

	for _, base := range candidates {
		go r.probe(ctx, base, probePath, accept, results)
	}

	go func() {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case <-timer.C:
			results <- Outcome{Kind: TimedOut}
		case <-ctx.Done():
		}
	}()

	select {
	case outcome := <-results:
		if outcome.Kind != Won {
			r.logger.Warn("endpoint race timed out", "candidates", len(candidates), "timeout", timeout.String())
			return "", ErrNoWinner
		}
		r.logger.Info("endpoint race won", "base", outcome.BaseURL)
		return outcome.BaseURL, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// probe fetches base+probePath and publishes a Won outcome if accept passes.
func (r *Racer) probe(ctx context.Context, base, probePath string, accept Predicate, results chan<- Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("panic in endpoint probe", "base", base, "recover", rec, "stack", string(debug.Stack()))
		}
	}()

	url := strings.TrimRight(base, "/") + probePath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		r.logger.Debug("probe request invalid", "url", url, "error", err)
		return
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Debug("probe failed", "url", url, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		r.logger.Debug("probe rejected", "url", url, "status", resp.StatusCode)
		return
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProbeBody))
	if err != nil {
		r.logger.Debug("probe body read failed", "url", url, "error", err)
		return
	}

	if !accept(body) {
		r.logger.Debug("probe content check failed", "url", url, "bytes", len(body))
		return
	}

	results <- Outcome{Kind: Won, BaseURL: base}
}
