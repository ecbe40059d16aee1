package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwygoda/streamcatcher/internal/adapter/browser"
	"github.com/cwygoda/streamcatcher/internal/domain"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape <id>",
	Short: "Scrape one movie page and print the descriptor",
	Long: `Runs the scrape procedure once against the configured player page and
prints the captured descriptor. Nothing is read from or written to the store.`,
	Args: cobra.ExactArgs(1),
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	id, err := domain.ValidateID(args[0])
	if err != nil {
		return err
	}

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

	log.WithField("url", scraper.MovieURL(id)).Info("scraping")
	v, err := scraper.Scrape(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("scrape %s: %w", id, err)
	}
	return printJSON(cmd, v)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
