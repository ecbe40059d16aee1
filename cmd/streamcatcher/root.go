package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cwygoda/streamcatcher/internal/adapter/postgres"
	"github.com/cwygoda/streamcatcher/internal/adapter/sqlite"
	"github.com/cwygoda/streamcatcher/internal/config"
	"github.com/cwygoda/streamcatcher/internal/domain"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:   "streamcatcher",
	Short: "Resolve movie ids into stream descriptors",
	Long: `streamcatcher - movie stream descriptor service

Serves GET /movie/{id} from a persistent store and falls back to
scraping the player page with a headless browser on a miss.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to TOML config file")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("streamcatcher {{.Version}}\n")
}

// loadConfig loads the config file and environment and builds the root logger.
// Logs go to stderr so command output on stdout stays machine readable.
func loadConfig(cmd *cobra.Command) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if f := cmd.Flags().Lookup("port"); f != nil && f.Changed {
		port, err := cmd.Flags().GetInt("port")
		if err != nil {
			return nil, nil, err
		}
		cfg.Server.Port = port
	}

	log, err := cfg.Server.NewLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	return cfg, log, nil
}

type repository interface {
	domain.VideoRepository
	io.Closer
}

// openRepository opens the store selected by the database URL.
func openRepository(ctx context.Context, cfg *config.Config, log *logrus.Logger) (repository, error) {
	switch cfg.Backend() {
	case config.BackendPostgres:
		repo, err := postgres.New(ctx, postgres.Options{
			URL:         cfg.Database.URL,
			InsecureTLS: cfg.Database.InsecureTLS,
		}, log.WithField("component", "postgres"))
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		log.Info("using postgres store")
		return repo, nil
	default:
		path := cfg.SQLitePath()
		repo, err := sqlite.New(path)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		log.WithField("path", path).Info("using sqlite store")
		return repo, nil
	}
}
