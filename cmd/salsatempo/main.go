package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"salsatempo/pkg/beat"
	"salsatempo/pkg/catalog"
	"salsatempo/pkg/config"
	"salsatempo/pkg/db"
	"salsatempo/pkg/logging"
	"salsatempo/pkg/store"
	"salsatempo/pkg/tracker"
	"salsatempo/pkg/tts"
	"salsatempo/pkg/version"
)

const defaultConfigPath = "configs/salsatempo.yaml"

var configPath string

func main() {
	// TTS credentials may live in .env; a missing file is fine
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Failed to read .env: %v\n", err)
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "salsatempo",
		Short:        "Salsa practice aid: beat counting and called figures over your music",
		Version:      version.String(),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "path to the configuration file")

	root.AddCommand(
		newPlayCmd(),
		newAnalyzeCmd(),
		newFiguresCmd(),
		newCacheCmd(),
		newInitConfigCmd(),
	)
	return root
}

func newInitConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "Generate the default config file and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.GenerateDefault(configPath); err != nil {
				return fmt.Errorf("failed to generate config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Config file generated: %s\n", configPath)
			return nil
		},
	}
}

// app holds the components every command shares.
type app struct {
	cfg      *config.Config
	store    store.Store // nil when the cache database is unavailable
	dbConn   *db.DB
	tracker  *tracker.Tracker
	catalog  *catalog.Catalog
	analyzer *beat.Analyzer
	cleanup  []func()
}

func setup() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}
	tts.SetLogger(logging.TTS())

	slog.Info("SalsaTempo Started", "version", version.Version)

	a := &app{cfg: cfg, tracker: tracker.New(), cleanup: []func(){cleanupLogs}}

	a.catalog, err = catalog.Load(cfg.Catalog.Path)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to load figures: %w", err)
	}
	if !a.catalog.Has(cfg.Engine.StartGroup) {
		a.close()
		return nil, fmt.Errorf("engine.start_group %q is not a catalog group (have %s)",
			cfg.Engine.StartGroup, strings.Join(a.catalog.Groups(), ", "))
	}

	// Analysis still works without the cache, it just repeats on every start
	a.dbConn, err = db.Init(cfg.DB.Path)
	if err != nil {
		slog.Warn("Cache database unavailable, analysis results will not be kept", "path", cfg.DB.Path, "error", err)
	} else {
		a.store = store.NewSQLiteStore(a.dbConn)
		a.cleanup = append(a.cleanup, func() { a.store.Close() })
	}

	var cache store.CacheStore
	if a.store != nil {
		cache = a.store
	}
	a.analyzer = beat.NewAnalyzer(cfg.Analyzer, cache, a.tracker)
	return a, nil
}

func (a *app) close() {
	for i := len(a.cleanup) - 1; i >= 0; i-- {
		a.cleanup[i]()
	}
}
