// Package installer drives the linear install plan: check the host, race the
// distribution mirrors, then download, persist and wire the file-verify
// patch, the plugin loader and the bot-bridge plugin into the client.
package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/super1207/llobinstall/internal/archive"
	"github.com/super1207/llobinstall/internal/fetch"
	"github.com/super1207/llobinstall/internal/host"
	"github.com/super1207/llobinstall/internal/logging"
	"github.com/super1207/llobinstall/internal/mirror"
)

// GitHubOrigin is the upstream the mirrors proxy. Asset downloads from a
// mirror fall back to it.
const GitHubOrigin = "https://github.com"

// Install layout
const (
	LoaderDirName     = "LiteLoaderQQNT-main"
	LoaderArchiveName = LoaderDirName + ".zip"
	PatchFileName     = "dbghelp.dll"
	PluginDirName     = "LLOneBot"
)

// Environment is the host the installer runs on.
type Environment interface {
	HasElevatedPrivilege() (bool, error)
	LocateInstallRoot(ctx context.Context) (string, error)
	IsTargetProcessRunning(ctx context.Context, root string) (bool, error)
	DetectArchitecture(exePath string) (host.Arch, error)
	PriorLoaderProfile() (string, bool)
}

// EndpointResolver picks the distribution endpoint among mirrors.
type EndpointResolver interface {
	Race(ctx context.Context, candidates []string, probePath string, accept mirror.Predicate, timeout time.Duration) (string, error)
}

// Fetcher downloads a URL into memory.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts fetch.Options) ([]byte, error)
}

// ArchiveExtractor unpacks a zip archive.
type ArchiveExtractor interface {
	Extract(archivePath, destRoot string, stripRoot bool) error
}

// Options configures an install run.
type Options struct {
	Mirrors     []string
	ProbePath   string
	Probe       mirror.Predicate
	RaceTimeout time.Duration
	// UserAgent is sent to the metadata APIs, which reject clients without one.
	UserAgent string
	// InsecureTLS skips certificate verification for metadata and assets.
	InsecureTLS bool
	// WorkDir receives the loader. Empty means the user's home directory.
	WorkDir string

	PatchMetadata  MetadataSource
	PluginMetadata MetadataSource

	Logger logging.Logger
}

// Source tells which URL produced fetched bytes.
type Source int

const (
	Primary Source = iota
	Fallback
)

// String returns the string representation of the source
func (s Source) String() string {
	if s == Fallback {
		return "fallback"
	}
	return "primary"
}

// FetchResult is a successful download and its provenance.
type FetchResult struct {
	Data   []byte
	Source Source
	URL    string
}

// Result describes how far a run got and what it installed.
type Result struct {
	// Stage is the last completed stage: StageNone when nothing completed,
	// StageDone on success.
	Stage       Stage
	InstallRoot string
	Arch        host.Arch
	Endpoint    string
	PatchTag    string
	PatchSource Source
	WorkDir     string
	LoaderDir   string
	// LauncherChanged is false when the launcher script was already registered.
	LauncherChanged bool
	PluginTag       string
	PluginDir       string
}

// Installer runs the install plan.
type Installer struct {
	env       Environment
	resolver  EndpointResolver
	fetcher   Fetcher
	extractor ArchiveExtractor
	opts      Options
	logger    logging.Logger
}

// New creates an installer. Zero option fields take their defaults.
func New(env Environment, resolver EndpointResolver, fetcher Fetcher, extractor ArchiveExtractor, opts Options) *Installer {
	if len(opts.Mirrors) == 0 {
		opts.Mirrors = []string{GitHubOrigin}
	}
	if opts.Probe == nil {
		opts.Probe = mirror.MagicPrefix(mirror.PEMagic)
	}
	if opts.RaceTimeout <= 0 {
		opts.RaceTimeout = mirror.DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = fetch.BrowserUserAgent
	}
	if opts.PatchMetadata.Primary == "" {
		opts.PatchMetadata = PatchMetadata
	}
	if opts.PluginMetadata.Primary == "" {
		opts.PluginMetadata = PluginMetadata
	}

	return &Installer{
		env:       env,
		resolver:  resolver,
		fetcher:   fetcher,
		extractor: extractor,
		opts:      opts,
		logger:    logging.OrNop(opts.Logger),
	}
}

// run carries a single install run's state between stages.
type run struct {
	*Installer
	result *Result

	exePath   string
	patch     []byte
	loaderZip string
	pluginZip []byte
}

// Run executes every stage in order and stops at the first failure, which is
// returned as *Error. Files written by completed stages are left in place.
// The returned Result is never nil.
func (i *Installer) Run(ctx context.Context) (*Result, error) {
	r := &run{Installer: i, result: &Result{Stage: StageNone}}

	steps := []struct {
		stage Stage
		do    func(context.Context) error
	}{
		{StagePreflightCheck, r.preflight},
		{StageLocateInstall, r.locateInstall},
		{StageVerifyNotRunning, r.verifyNotRunning},
		{StageDetectArchitecture, r.detectArchitecture},
		{StageResolveEndpoint, r.resolveEndpoint},
		{StageFetchPatchMetadata, r.fetchPatchMetadata},
		{StageDownloadPatch, r.downloadPatch},
		{StageApplyPatch, r.applyPatch},
		{StageDownloadLoaderArchive, r.downloadLoaderArchive},
		{StageExtractLoaderArchive, r.extractLoaderArchive},
		{StageRegisterLoaderEntrypoint, r.registerLoaderEntrypoint},
		{StageFetchPluginMetadata, r.fetchPluginMetadata},
		{StageDownloadPluginArchive, r.downloadPluginArchive},
		{StageExtractPluginArchive, r.extractPluginArchive},
	}

	for _, step := range steps {
		err := ctx.Err()
		if err == nil {
			start := time.Now()
			i.logger.Debug("stage started", "stage", step.stage.String())
			err = step.do(ctx)
			if err == nil {
				r.result.Stage = step.stage
				i.logger.Debug("stage finished", "stage", step.stage.String(), "elapsed", time.Since(start).String())
				continue
			}
		}

		kind := KindStepFailed
		if step.stage.IsPrecondition() {
			kind = KindPreconditionFailed
		}
		i.logger.Error("install failed", "stage", step.stage.String(), "kind", kind.String(), "error", err)
		return r.result, &Error{Kind: kind, Stage: step.stage, Err: err}
	}

	r.result.Stage = StageDone
	i.logger.Info("install finished",
		"root", r.result.InstallRoot,
		"loader", r.result.LoaderDir,
		"plugin", r.result.PluginDir,
		"plugin_tag", r.result.PluginTag)
	return r.result, nil
}

func (r *run) preflight(ctx context.Context) error {
	if profile, ok := r.env.PriorLoaderProfile(); ok {
		return fmt.Errorf("%w (%s=%q)", ErrPriorLoader, host.LoaderProfileEnv, profile)
	}

	elevated, err := r.env.HasElevatedPrivilege()
	if err != nil {
		return fmt.Errorf("check privileges: %w", err)
	}
	if !elevated {
		return ErrNotElevated
	}
	r.logger.Info("running with administrator rights")

	workDir := r.opts.WorkDir
	if workDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve user profile: %w", err)
		}
		workDir = home
	}
	workDir, err = filepath.Abs(workDir)
	if err != nil {
		return fmt.Errorf("resolve work dir: %w", err)
	}

	r.result.WorkDir = workDir
	r.result.LoaderDir = filepath.Join(workDir, LoaderDirName)
	r.result.PluginDir = filepath.Join(r.result.LoaderDir, "plugins", PluginDirName)
	return nil
}

func (r *run) locateInstall(ctx context.Context) error {
	root, err := r.env.LocateInstallRoot(ctx)
	if err != nil {
		return err
	}
	r.result.InstallRoot = root
	r.exePath = filepath.Join(root, host.TargetExe)
	r.logger.Info("client install located", "root", root)
	return nil
}

func (r *run) verifyNotRunning(ctx context.Context) error {
	running, err := r.env.IsTargetProcessRunning(ctx, r.result.InstallRoot)
	if err != nil {
		return fmt.Errorf("check client process: %w", err)
	}
	if running {
		return ErrClientRunning
	}
	return nil
}

func (r *run) detectArchitecture(ctx context.Context) error {
	arch, err := r.env.DetectArchitecture(r.exePath)
	if err != nil {
		return err
	}
	if arch != host.Arch32 && arch != host.Arch64 {
		return fmt.Errorf("unsupported client architecture %s", arch)
	}
	r.result.Arch = arch
	r.logger.Info("client architecture detected", "arch", arch.String())
	return nil
}

func (r *run) resolveEndpoint(ctx context.Context) error {
	endpoint, err := r.resolver.Race(ctx, r.opts.Mirrors, r.opts.ProbePath, r.opts.Probe, r.opts.RaceTimeout)
	if err != nil {
		return fmt.Errorf("race %d mirrors: %w", len(r.opts.Mirrors), err)
	}
	endpoint = strings.TrimRight(endpoint, "/")
	r.result.Endpoint = endpoint
	if endpoint == GitHubOrigin {
		r.logger.Info("github is reachable directly")
	} else {
		r.logger.Info("using mirror", "endpoint", endpoint)
	}
	return nil
}

func (r *run) fetchPatchMetadata(ctx context.Context) error {
	tag, err := r.latestTag(ctx, "patch", r.opts.PatchMetadata)
	if err != nil {
		return err
	}
	r.result.PatchTag = tag
	return nil
}

func (r *run) downloadPatch(ctx context.Context) error {
	variant := "x64"
	if r.result.Arch == host.Arch32 {
		variant = "x86"
	}
	path := fmt.Sprintf("/LiteLoaderQQNT/QQNTFileVerifyPatch/releases/download/%s/dbghelp_%s.dll", r.result.PatchTag, variant)

	res, err := r.fetchAsset(ctx, "patch", path)
	if err != nil {
		return err
	}
	r.patch = res.Data
	r.result.PatchSource = res.Source
	return nil
}

func (r *run) applyPatch(ctx context.Context) error {
	target := filepath.Join(r.result.InstallRoot, PatchFileName)
	if err := writeFileAtomic(target, r.patch, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", target, err)
	}
	r.patch = nil
	r.logger.Info("patch applied", "path", target)
	return nil
}

func (r *run) downloadLoaderArchive(ctx context.Context) error {
	res, err := r.fetchAsset(ctx, "loader", "/LiteLoaderQQNT/LiteLoaderQQNT/archive/master.zip")
	if err != nil {
		return err
	}

	r.loaderZip = filepath.Join(r.result.WorkDir, LoaderArchiveName)
	if err := os.MkdirAll(r.result.WorkDir, 0o755); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}
	if err := writeFileAtomic(r.loaderZip, res.Data, 0o644); err != nil {
		return fmt.Errorf("persist loader archive: %w", err)
	}
	return nil
}

func (r *run) extractLoaderArchive(ctx context.Context) error {
	if err := r.extractor.Extract(r.loaderZip, r.result.LoaderDir, archive.StripRoot); err != nil {
		return err
	}
	r.logger.Info("loader extracted", "dir", r.result.LoaderDir)
	return nil
}

func (r *run) registerLoaderEntrypoint(ctx context.Context) error {
	launcher := filepath.Join(r.result.InstallRoot, "resources", "app", "app_launcher", "index.js")
	changed, err := registerEntrypoint(launcher, r.result.LoaderDir)
	if err != nil {
		return err
	}
	r.result.LauncherChanged = changed
	if changed {
		r.logger.Info("loader registered", "launcher", launcher)
	} else {
		r.logger.Info("loader already registered", "launcher", launcher)
	}
	return nil
}

func (r *run) fetchPluginMetadata(ctx context.Context) error {
	tag, err := r.latestTag(ctx, "plugin", r.opts.PluginMetadata)
	if err != nil {
		return err
	}
	r.result.PluginTag = tag
	return nil
}

func (r *run) downloadPluginArchive(ctx context.Context) error {
	res, err := r.fetchAsset(ctx, "plugin", "/LLOneBot/LLOneBot/releases/download/"+r.result.PluginTag+"/LLOneBot.zip")
	if err != nil {
		return err
	}
	r.pluginZip = res.Data
	return nil
}

func (r *run) extractPluginArchive(ctx context.Context) error {
	pluginsDir := filepath.Dir(r.result.PluginDir)
	for _, dir := range []string{pluginsDir, filepath.Join(r.result.LoaderDir, "data")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	zipPath := filepath.Join(pluginsDir, "LLOneBot"+r.result.PluginTag+".zip")
	if err := writeFileAtomic(zipPath, r.pluginZip, 0o644); err != nil {
		return fmt.Errorf("persist plugin archive: %w", err)
	}
	r.pluginZip = nil

	if err := r.extractor.Extract(zipPath, r.result.PluginDir, archive.KeepRoot); err != nil {
		return err
	}
	r.logger.Info("plugin installed", "dir", r.result.PluginDir, "tag", r.result.PluginTag)
	return nil
}

// latestTag fetches release metadata and returns its tag.
func (r *run) latestTag(ctx context.Context, what string, src MetadataSource) (string, error) {
	opts := fetch.Options{
		Headers:            map[string]string{"User-Agent": r.opts.UserAgent},
		InsecureSkipVerify: r.opts.InsecureTLS,
		NoProxy:            true,
	}
	res, err := r.fetchWithFallback(ctx, what+" metadata", src.Primary, src.Fallback, opts)
	if err != nil {
		return "", err
	}

	tag, err := parseTag(res.Data)
	if err != nil {
		return "", fmt.Errorf("%s metadata from %s: %w", what, res.URL, err)
	}
	r.logger.Info("latest release found", "artifact", what, "tag", tag, "source", res.Source.String())
	return tag, nil
}

// fetchAsset downloads path from the chosen endpoint, falling back to the
// origin when the endpoint is a mirror.
func (r *run) fetchAsset(ctx context.Context, what, path string) (*FetchResult, error) {
	fallback := ""
	if r.result.Endpoint != GitHubOrigin {
		fallback = GitHubOrigin + path
	}
	opts := fetch.Options{InsecureSkipVerify: r.opts.InsecureTLS, NoProxy: true}

	res, err := r.fetchWithFallback(ctx, what, r.result.Endpoint+path, fallback, opts)
	if err != nil {
		return nil, err
	}
	r.logger.Info("downloaded", "artifact", what, "bytes", len(res.Data), "source", res.Source.String())
	return res, nil
}

// fetchWithFallback fetches primary and, on failure, fallback once. An empty
// fallback disables the retry.
func (r *run) fetchWithFallback(ctx context.Context, what, primary, fallback string, opts fetch.Options) (*FetchResult, error) {
	data, err := r.fetcher.Fetch(ctx, primary, opts)
	if err == nil {
		return &FetchResult{Data: data, Source: Primary, URL: primary}, nil
	}
	if fallback == "" || fallback == primary || errors.Is(err, context.Canceled) {
		return nil, fmt.Errorf("download %s: %w", what, err)
	}

	r.logger.Warn("primary source failed, trying fallback", "artifact", what, "url", primary, "error", err)

	data, fallbackErr := r.fetcher.Fetch(ctx, fallback, opts)
	if fallbackErr != nil {
		return nil, fmt.Errorf("download %s: %w", what, multierror.Append(err, fallbackErr))
	}
	return &FetchResult{Data: data, Source: Fallback, URL: fallback}, nil
}
