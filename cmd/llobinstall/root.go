package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/super1207/llobinstall/internal/archive"
	"github.com/super1207/llobinstall/internal/config"
	"github.com/super1207/llobinstall/internal/fetch"
	"github.com/super1207/llobinstall/internal/host"
	"github.com/super1207/llobinstall/internal/installer"
	"github.com/super1207/llobinstall/internal/lock"
	"github.com/super1207/llobinstall/internal/logging"
	"github.com/super1207/llobinstall/internal/mirror"
)

type flags struct {
	configPath string
	logLevel   string
	logFile    string
	pause      bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "llobinstall",
		Short: "Install LiteLoaderQQNT and LLOneBot into QQNT",
		Long: "llobinstall patches an existing QQNT installation, installs the LiteLoaderQQNT " +
			"plugin loader into the user profile and adds the LLOneBot plugin.\n" +
			"Run it as administrator with QQ closed.",
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := run(cmd.Context(), f, cmd.ErrOrStderr())
			if f.pause {
				waitForEnter(cmd.InOrStdin(), cmd.ErrOrStderr())
			}
			return err
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "config file (default: "+config.DefaultFileName+" next to the executable)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level (trace, debug, info, warn, error); overrides the config file")
	cmd.Flags().StringVar(&f.logFile, "log-file", "", `log file, or "console"; overrides the config file`)
	cmd.Flags().BoolVar(&f.pause, "pause", runtime.GOOS == "windows", "wait for Enter before exiting")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "show full config error details")

	return cmd
}

// run loads configuration, sets up logging and runs the installer.
func run(parent context.Context, f *flags, stderr io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx, f.configPath)
	if err != nil {
		return errors.New(config.FormatError(err, f.verbose))
	}

	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFile != "" {
		cfg.Log.File = f.logFile
	}
	logrusLogger, closer, err := logging.Setup(logging.Options{Level: cfg.Log.Level, File: cfg.Log.File, Stderr: stderr})
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer closer.Close()
	logger := logging.FromLogrus(logrusLogger)

	logrusLogger.WithField("version", Version).Info("LLOneBot installer started")

	workDir := cfg.WorkDir
	if workDir == "" {
		if workDir, err = os.UserHomeDir(); err != nil {
			return fmt.Errorf("resolve user profile: %w", err)
		}
	}

	installLock, err := lock.AcquireLock(ctx, workDir)
	if err != nil {
		logrusLogger.WithError(err).Error("cannot acquire install lock")
		return err
	}
	defer installLock.Release()

	probe, err := mirror.PredicateByName(cfg.Probe.Check)
	if err != nil {
		return err
	}

	fetcher := fetch.NewFetcher(fetch.WithLogger(logger))
	defer fetcher.CloseIdleConnections()

	system := host.NewSystem(host.NewLocator(cfg.QQExePath, logger))
	inst := installer.New(
		system,
		mirror.NewRacer(mirror.WithLogger(logger)),
		fetcher,
		archive.NewExtractor(logger),
		installer.Options{
			Mirrors:     cfg.Mirrors,
			ProbePath:   cfg.Probe.Path,
			Probe:       probe,
			RaceTimeout: cfg.RaceTimeout,
			UserAgent:   cfg.UserAgent,
			InsecureTLS: cfg.InsecureTLS,
			WorkDir:     workDir,
			Logger:      logger,
		},
	)

	result, err := inst.Run(ctx)
	if err != nil {
		fields := log.Fields{"completed": result.Stage.String()}
		if stage, ok := installer.StageOf(err); ok {
			fields["stage"] = stage.String()
		}
		logrusLogger.WithFields(fields).Error("installation aborted")
		return err
	}

	logrusLogger.WithFields(log.Fields{
		"loader":     result.LoaderDir,
		"plugin":     result.PluginDir,
		"plugin_tag": result.PluginTag,
	}).Info("installation complete, start QQ to load LLOneBot")
	return nil
}

// loadConfig parses an explicit config file, or the default one next to the
// executable when present.
func loadConfig(ctx context.Context, path string) (*config.Config, error) {
	parser := config.NewParser(host.NewDetector(), nil)
	if path != "" {
		return parser.ParseFile(ctx, path)
	}

	exe, err := os.Executable()
	if err != nil {
		return config.Default(), nil
	}
	return parser.Load(ctx, filepath.Join(filepath.Dir(exe), config.DefaultFileName))
}

// waitForEnter keeps a double-clicked console window open until the user
// has read the output.
func waitForEnter(in io.Reader, out io.Writer) {
	fmt.Fprintln(out, "Press Enter to exit...")
	bufio.NewReader(in).ReadString('\n')
}
