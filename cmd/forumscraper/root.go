package main

import (
	"database/sql"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"forumscraper/pkg/config"
	"forumscraper/pkg/logger"
	"forumscraper/pkg/session"
	"forumscraper/pkg/storage"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	dbPath     string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "forumscraper",
	Short: "A resumable forum scraper for Reddit and Hacker News",
	Long: `Forum Scraper collects posts, comments and user profiles from public
forum APIs through resumable scrape sessions.

Features:
  - Sliding-window rate limiting per platform, shared across sessions
  - Automatic retry with exponential backoff and Retry-After support
  - Sessions persisted to SQLite: pause, resume and crash recovery
  - Progress tracking with ETA and milestone reporting
  - Export to JSON, CSV or Markdown`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .forumscraper.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "database", "", "path to the SQLite database")

	rootCmd.SetVersionTemplate(`Forum Scraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// app bundles the shared dependencies every subcommand needs
type app struct {
	cfg     *config.Config
	log     logger.Logger
	db      *sql.DB
	store   *session.SQLiteStore
	sink    *storage.SQLiteSink
	manager *session.Manager
}

// newApp loads configuration, initializes logging and opens the database
func newApp(extraFlags map[string]interface{}) (*app, error) {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if dbPath != "" {
		flags["database"] = dbPath
	}
	for k, v := range extraFlags {
		flags[k] = v
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Initialize(&cfg.Logging)
	log := logger.GetLogger()

	db, err := storage.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store, err := session.NewSQLiteStore(db, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	sink, err := storage.NewSQLiteSink(db, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	manager := session.NewManager(cfg, store, sink, session.DefaultClientFactory(cfg, log), log)

	return &app{
		cfg:     cfg,
		log:     log,
		db:      db,
		store:   store,
		sink:    sink,
		manager: manager,
	}, nil
}

func (a *app) Close() {
	a.db.Close()
}
