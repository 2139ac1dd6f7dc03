package mirror

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const probePath = "/LiteLoaderQQNT/QQNTFileVerifyPatch/releases/download/DllHijack_1.0.8/dbghelp_x64.dll"

// newMirror starts a test mirror that answers probePath after delay.
// Handlers still sleeping when the test ends are released before the server closes.
func newMirror(t *testing.T, delay time.Duration, status int, body string) string {
	t.Helper()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(delay):
		case <-release:
			return
		}
		if r.URL.Path != probePath {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	t.Cleanup(func() { close(release) })

	return server.URL
}

func TestRaceFastCandidateWins(t *testing.T) {
	fast := newMirror(t, 100*time.Millisecond, http.StatusOK, "MZ\x90\x00")
	slow := newMirror(t, 5*time.Second, http.StatusOK, "MZ\x90\x00")

	start := time.Now()
	winner, err := NewRacer().Race(context.Background(), []string{slow, fast}, probePath, MagicPrefix(PEMagic), time.Second)

	require.NoError(t, err)
	assert.Equal(t, fast, winner)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRaceNoCandidatePassesInTime(t *testing.T) {
	slowSuccess := newMirror(t, time.Second, http.StatusOK, "MZ")
	fastWrongContent := newMirror(t, 100*time.Millisecond, http.StatusOK, "<html>captcha</html>")
	neverResponds := newMirror(t, time.Hour, http.StatusOK, "MZ")

	start := time.Now()
	winner, err := NewRacer().Race(context.Background(),
		[]string{slowSuccess, fastWrongContent, neverResponds},
		probePath, MagicPrefix(PEMagic), 500*time.Millisecond)

	assert.ErrorIs(t, err, ErrNoWinner)
	assert.Empty(t, winner)
	assert.GreaterOrEqual(t, time.Since(start), 500*time.Millisecond)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRaceEmptyCandidates(t *testing.T) {
	start := time.Now()
	winner, err := NewRacer().Race(context.Background(), nil, probePath, MagicPrefix(PEMagic), 200*time.Millisecond)

	assert.ErrorIs(t, err, ErrNoWinner)
	assert.Empty(t, winner)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestRaceIgnoresNonOKAndUnreachable(t *testing.T) {
	notFound := newMirror(t, 0, http.StatusNotFound, "MZ")
	redirectedError := newMirror(t, 0, http.StatusInternalServerError, "MZ")
	good := newMirror(t, 200*time.Millisecond, http.StatusOK, "MZ")

	closed := httptest.NewServer(http.NotFoundHandler())
	unreachable := closed.URL
	closed.Close()

	winner, err := NewRacer().Race(context.Background(),
		[]string{notFound, redirectedError, unreachable, good},
		probePath, MagicPrefix(PEMagic), 2*time.Second)

	require.NoError(t, err)
	assert.Equal(t, good, winner)
}

func TestRaceTrailingSlashCandidate(t *testing.T) {
	base := newMirror(t, 0, http.StatusOK, "MZ")

	winner, err := NewRacer().Race(context.Background(), []string{base + "/"}, probePath, MagicPrefix(PEMagic), time.Second)

	require.NoError(t, err)
	assert.Equal(t, base+"/", winner)
}

func TestRaceContextCancelled(t *testing.T) {
	hanging := newMirror(t, time.Hour, http.StatusOK, "MZ")

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := NewRacer().Race(ctx, []string{hanging}, probePath, MagicPrefix(PEMagic), 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRacePanickingPredicateDoesNotCrash(t *testing.T) {
	base := newMirror(t, 0, http.StatusOK, "MZ")
	boom := func([]byte) bool { panic("bad predicate") }

	_, err := NewRacer().Race(context.Background(), []string{base}, probePath, boom, 300*time.Millisecond)
	assert.ErrorIs(t, err, ErrNoWinner)
}

func TestRaceAbandonedProbesAreBounded(t *testing.T) {
	fast := newMirror(t, 0, http.StatusOK, "MZ")
	hanging := newMirror(t, time.Hour, http.StatusOK, "MZ")

	racer := NewRacer(WithProbeTimeout(200 * time.Millisecond))
	winner, err := racer.Race(context.Background(), []string{hanging, fast}, probePath, MagicPrefix(PEMagic), time.Second)

	require.NoError(t, err)
	assert.Equal(t, fast, winner)

	// The abandoned probe gives up on its own once the client timeout passes;
	// a second race with only the hanging mirror cannot win in time either.
	_, err = racer.Race(context.Background(), []string{hanging}, probePath, MagicPrefix(PEMagic), 400*time.Millisecond)
	assert.ErrorIs(t, err, ErrNoWinner)
}

func TestOutcomeKindString(t *testing.T) {
	assert.Equal(t, "won", Won.String())
	assert.Equal(t, "lost", Lost.String())
	assert.Equal(t, "timed out", TimedOut.String())
}
