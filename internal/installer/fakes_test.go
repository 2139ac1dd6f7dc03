package installer

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/super1207/llobinstall/internal/fetch"
	"github.com/super1207/llobinstall/internal/host"
	"github.com/super1207/llobinstall/internal/mirror"
)

type fakeEnv struct {
	elevated   bool
	elevErr    error
	root       string
	locateErr  error
	running    bool
	runningErr error
	arch       host.Arch
	archErr    error
	profile    string
	hasProfile bool

	archExe string
}

func (f *fakeEnv) HasElevatedPrivilege() (bool, error) { return f.elevated, f.elevErr }

func (f *fakeEnv) LocateInstallRoot(ctx context.Context) (string, error) {
	return f.root, f.locateErr
}

func (f *fakeEnv) IsTargetProcessRunning(ctx context.Context, root string) (bool, error) {
	return f.running, f.runningErr
}

func (f *fakeEnv) DetectArchitecture(exePath string) (host.Arch, error) {
	f.archExe = exePath
	return f.arch, f.archErr
}

func (f *fakeEnv) PriorLoaderProfile() (string, bool) { return f.profile, f.hasProfile }

type fakeResolver struct {
	endpoint string
	err      error
	calls    int

	candidates []string
	probePath  string
	timeout    time.Duration
}

func (f *fakeResolver) Race(ctx context.Context, candidates []string, probePath string, accept mirror.Predicate, timeout time.Duration) (string, error) {
	f.calls++
	f.candidates, f.probePath, f.timeout = candidates, probePath, timeout
	return f.endpoint, f.err
}

// fakeFetcher serves canned bodies by URL. Unknown URLs answer 404.
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string][]byte
	fail   map[string]error
	calls  []string
	opts   map[string]fetch.Options
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		bodies: map[string][]byte{},
		fail:   map[string]error{},
		opts:   map[string]fetch.Options{},
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string, opts fetch.Options) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, url)
	f.opts[url] = opts
	if err, ok := f.fail[url]; ok {
		return nil, err
	}
	body, ok := f.bodies[url]
	if !ok {
		return nil, &fetch.Error{Kind: fetch.KindStatus, URL: url, StatusCode: http.StatusNotFound}
	}
	return body, nil
}

func (f *fakeFetcher) called(url string) bool {
	for _, c := range f.calls {
		if c == url {
			return true
		}
	}
	return false
}
