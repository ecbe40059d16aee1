package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cwygoda/streamcatcher/internal/adapter/browser"
	httpAdapter "github.com/cwygoda/streamcatcher/internal/adapter/http"
	"github.com/cwygoda/streamcatcher/internal/domain"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().Int("port", 3000, "HTTP listen port (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer repo.Close()

	scraper, err := browser.New(browser.Options{
		BaseURL:        cfg.Scraper.BaseURL,
		ExecutablePath: cfg.Scraper.BrowserPath,
		Hosted:         cfg.Scraper.Hosted,
		NavTimeout:     cfg.Scraper.NavTimeout,
		SettleDelay:    cfg.Scraper.SettleDelay,
	}, log.WithField("component", "browser"))
	if err != nil {
		return fmt.Errorf("browser: %w", err)
	}
	defer scraper.Close()

	svc := domain.NewVideoService(repo, scraper, log.WithField("component", "service"))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := httpAdapter.NewServer(svc, httpAdapter.Options{
		Addr:         addr,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, log.WithField("component", "http"))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.WithField("addr", addr).Info("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("HTTP shutdown incomplete")
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()

	// Scrapes run detached from their requests; let them finish before the
	// deferred closes release the browser driver and the store.
	drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Scraper.NavTimeout+cfg.Scraper.SettleDelay)
	defer cancel()
	if derr := svc.Drain(drainCtx); derr != nil {
		log.WithError(derr).Warn("scrapes still running at exit")
	}

	if err != nil {
		return err
	}
	log.Info("shutdown complete")
	return nil
}
