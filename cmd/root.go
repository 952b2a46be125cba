// Package cmd implements the budgetopt CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/budgetopt/budgetopt/internal/artifact"
	"github.com/budgetopt/budgetopt/internal/cli"
	"github.com/budgetopt/budgetopt/internal/config"
	"github.com/budgetopt/budgetopt/internal/logger"
	"github.com/budgetopt/budgetopt/internal/model"
	"github.com/budgetopt/budgetopt/internal/rules"
	"github.com/budgetopt/budgetopt/internal/store"
)

var (
	flagModelDir   string
	flagConfigPath string
	flagArea       string
	flagNoCache    bool
	flagQuiet      bool
	flagNoColor    bool
	flagLogLevel   string
)

// Effective settings, resolved once per invocation in PersistentPreRunE.
var (
	cfg    config.Config
	appLog zerolog.Logger
)

// errReported marks errors whose message was already shown to the user.
var errReported = errors.New("reported")

var rootCmd = &cobra.Command{
	Use:   "budgetopt",
	Short: "Household budget allocation CLI",
	Long: "Split a monthly income across housing, transportation, food, utilities,\n" +
		"entertainment and savings, either with a trained model or fixed rules.",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadSettings,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, cli.RenderError(err.Error()))
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagModelDir, "model-dir", "d", "", "Directory holding <area>_model.json artifacts (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "Config file (default "+config.ConfigPath()+")")
	rootCmd.PersistentFlags().StringVarP(&flagArea, "area", "a", "", "Area type: rural or urban (default from config)")
	rootCmd.PersistentFlags().BoolVar(&flagNoCache, "no-cache", false, "Skip the SQLite artifact cache")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress progress output")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error (default from config)")
}

func configPath() string {
	if flagConfigPath != "" {
		return flagConfigPath
	}
	return config.ConfigPath()
}

// loadSettings resolves config from file, .env, environment and flags,
// in increasing precedence.
func loadSettings(_ *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	loaded, err := config.LoadFrom(configPath())
	if err != nil {
		return err
	}
	loaded = config.ApplyEnv(loaded)

	if flagModelDir != "" {
		loaded.Storage.Backend = config.BackendFile
		loaded.Storage.ModelDir = flagModelDir
	}
	if flagLogLevel != "" {
		loaded.Log.Level = flagLogLevel
	}
	if err := loaded.Validate(); err != nil {
		return fmt.Errorf("config %s: %w", configPath(), err)
	}
	cfg = loaded

	if flagNoColor || os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
	cli.SetTheme(cfg.Appearance.Theme)

	appLog = logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	return nil
}

// resolveArea returns the --area flag or the configured default.
func resolveArea() (model.AreaType, error) {
	if flagArea == "" {
		return cfg.DefaultAreaType(), nil
	}
	return model.ParseAreaType(flagArea)
}

// openSource builds the artifact source selected by config.
func openSource(ctx context.Context) (artifact.Source, error) {
	if cfg.Storage.Backend == config.BackendS3 {
		s3cfg := cfg.Storage.S3
		return artifact.NewS3Source(ctx, artifact.S3Config{
			Bucket:   s3cfg.Bucket,
			Prefix:   s3cfg.Prefix,
			Region:   s3cfg.Region,
			Endpoint: s3cfg.Endpoint,
		})
	}
	return artifact.NewFileSource(cfg.Storage.ModelDir), nil
}

// newLoader returns an artifact loader backed by the SQLite cache when it
// is available. The returned close func is always safe to call.
func newLoader(ctx context.Context) (*artifact.Loader, func(), error) {
	src, err := openSource(ctx)
	if err != nil {
		return nil, func() {}, err
	}

	opts := []artifact.Option{artifact.WithLogger(appLog.With().Str("component", "loader").Logger())}
	closeFn := func() {}

	if !flagNoCache {
		cache, err := store.Open(config.CachePath())
		if err != nil {
			// Cache open failed, fall back to decoding every time.
			appLog.Debug().Err(err).Msg("artifact cache unavailable")
			if !flagQuiet {
				fmt.Fprintf(os.Stderr, "  Cache unavailable, reading artifacts directly\n")
			}
		} else {
			opts = append(opts, artifact.WithCache(cache))
			closeFn = func() { _ = cache.Close() }
		}
	}

	return artifact.NewLoader(src, opts...), closeFn, nil
}

func newAllocator() (*rules.Allocator, error) {
	return rules.New(cfg.Rules.Tables())
}
