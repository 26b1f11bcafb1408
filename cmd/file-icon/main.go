package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	fileicon "github.com/babs/file-icon"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// Build-time variables injected via ldflags.
var (
	Version        = "v0.0.0"
	CommitHash     = "dev"
	BuildTimestamp = "1970-01-01T00:00:00Z"
	Builder        = "unknown"
	GithubRepo     = "babs/file-icon"
)

func versionString() string {
	return fmt.Sprintf("file-icon %s-%s", Version, CommitHash)
}

func versionStringLong() string {
	return fmt.Sprintf("file-icon %s-%s (built %s using %s)\nhttps://github.com/%s\n",
		Version, CommitHash, BuildTimestamp, Builder, GithubRepo)
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt for clean shutdown (SIGINT on all platforms, SIGTERM and SIGHUP on Unix).
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	notifyExtraSignals(sigCh)
	go func() {
		<-sigCh
		slog.Info("signal received, shutting down")
		cancel()
	}()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// cli holds the state shared by all subcommands.
type cli struct {
	stdout io.Writer
	stderr io.Writer

	level  *slog.LevelVar
	logger *slog.Logger
	cfg    Config

	flags overrides

	// loaderOptions are prepended to the options extract builds its loader
	// with.
	loaderOptions []fileicon.Option
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{
		stdout: stdout,
		stderr: stderr,
		level:  new(slog.LevelVar),
	}
	c.logger = newLogger(stderr, c.level)
	return c.rootCmd()
}

func (c *cli) rootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "file-icon",
		Short:         "Extract the icons the OS shows for files",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if cfgFile != "" {
				configPath = cfgFile
			}
			c.cfg = loadConfig(c.logger)
			applyOverrides(&c.cfg, c.flags, c.logger)
			c.level.Set(c.cfg.level())
			slog.SetDefault(c.logger)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)
	root.SetVersionTemplate(versionStringLong())

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.config/file-icon/config.json)")
	root.PersistentFlags().StringVar(&c.flags.LogLevel, "log-level", "", "log level: debug, info, warn, error (env: FILE_ICON_LOG_LEVEL)")

	root.AddCommand(c.extractCmd(), c.versionCmd(), c.updateCmd())
	return root
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(c.stdout, versionStringLong())
		},
	}
}

func (c *cli) updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Check and update to latest release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return selfUpdate(cmd.Context(), c.stdout)
		},
	}
}

func (c *cli) extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [paths...]",
		Short: "Extract file icons as images",
		Long: "Extract the icon associated with each path and write it to <output-dir>/<file name>.<ext>.\n" +
			"Use --output-dir - to write to standard output.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.logger.Debug("extracting", "version", versionString(), "config", configPath, "paths", len(args))
			return c.extract(cmd.Context(), args)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&c.flags.Format, "format", "f", "", "output format: png, ico, bmp, dataurl (env: FILE_ICON_FORMAT)")
	f.StringVarP(&c.flags.OutputDir, "output-dir", "o", "", "output directory, - for stdout (env: FILE_ICON_OUTPUT_DIR)")
	f.IntVarP(&c.flags.Concurrency, "concurrency", "j", 0, "number of icons loaded in parallel (env: FILE_ICON_CONCURRENCY)")
	f.IntVar(&c.flags.TimeoutSeconds, "timeout", 0, "seconds to wait for each icon (env: FILE_ICON_TIMEOUT)")
	f.IntSliceVar(&c.flags.ICOSizes, "ico-size", nil, "extra sizes rendered into ico output (env: FILE_ICON_ICO_SIZES)")
	return cmd
}

// newLogger returns a tint logger. Colors are enabled only on terminals.
func newLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd())
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    noColor,
	}))
}

// overrides holds CLI flag values for config overrides.
type overrides struct {
	Format         string
	OutputDir      string
	Concurrency    int
	TimeoutSeconds int
	ICOSizes       []int
	LogLevel       string
}

// applyIntOverride applies an int override from env var and flag.
// The env value is parsed with Atoi; both env and flag values are accepted only if valid returns true.
func applyIntOverride(target *int, envKey string, flagVal int, valid func(int) bool, logger *slog.Logger) {
	if v := os.Getenv(envKey); v != "" {
		if i, err := strconv.Atoi(v); err != nil || !valid(i) {
			logger.Warn("ignoring invalid environment value", "key", envKey, "value", v)
		} else {
			*target = i
		}
	}
	if valid(flagVal) {
		*target = flagVal
	}
}

// applyStringOverride applies a string override from env var and flag.
// Non-empty values are accepted only if valid returns true.
func applyStringOverride(target *string, envKey, flagName, flagVal string, valid func(string) bool, logger *slog.Logger) {
	if v := os.Getenv(envKey); v != "" {
		if !valid(v) {
			logger.Warn("ignoring invalid environment value", "key", envKey, "value", v)
		} else {
			*target = v
		}
	}
	if flagVal != "" {
		if !valid(flagVal) {
			logger.Warn("ignoring invalid flag value", "flag", "--"+flagName, "value", flagVal)
		} else {
			*target = flagVal
		}
	}
}

// parseSizes parses a comma separated list of ico sizes.
func parseSizes(s string) ([]int, bool) {
	var sizes []int
	for _, field := range strings.Split(s, ",") {
		i, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil || !validICOSize(i) {
			return nil, false
		}
		sizes = append(sizes, i)
	}
	return sizes, true
}

// applyOverrides applies env vars and flags to config. Priority: flag > env > config file.
func applyOverrides(cfg *Config, o overrides, logger *slog.Logger) {
	applyStringOverride(&cfg.Format, "FILE_ICON_FORMAT", "format", o.Format, fileicon.ValidFormat, logger)
	cfg.Format = strings.ToLower(cfg.Format)
	applyStringOverride(&cfg.OutputDir, "FILE_ICON_OUTPUT_DIR", "output-dir", o.OutputDir,
		func(string) bool { return true }, logger)
	applyIntOverride(&cfg.Concurrency, "FILE_ICON_CONCURRENCY", o.Concurrency,
		func(i int) bool { return i > 0 }, logger)
	applyIntOverride(&cfg.TimeoutSeconds, "FILE_ICON_TIMEOUT", o.TimeoutSeconds,
		func(i int) bool { return i > 0 }, logger)
	applyStringOverride(&cfg.LogLevel, "FILE_ICON_LOG_LEVEL", "log-level", o.LogLevel, ValidLogLevel, logger)

	// ICO sizes: list-valued, parsed inline.
	if v := os.Getenv("FILE_ICON_ICO_SIZES"); v != "" {
		if sizes, ok := parseSizes(v); !ok {
			logger.Warn("ignoring invalid environment value", "key", "FILE_ICON_ICO_SIZES", "value", v)
		} else {
			cfg.ICOSizes = sizes
		}
	}
	if len(o.ICOSizes) > 0 {
		sizes := make([]int, 0, len(o.ICOSizes))
		for _, s := range o.ICOSizes {
			if !validICOSize(s) {
				logger.Warn("ignoring invalid flag value", "flag", "--ico-size", "value", s)
				continue
			}
			sizes = append(sizes, s)
		}
		if len(sizes) > 0 {
			cfg.ICOSizes = sizes
		}
	}
}
