package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cwygoda/streamcatcher/internal/domain"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <id>",
	Short: "Print the stored descriptor for a movie id",
	Args:  cobra.ExactArgs(1),
	RunE:  runLookup,
}

func init() {
	rootCmd.AddCommand(lookupCmd)
}

func runLookup(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	repo, err := openRepository(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer repo.Close()

	// Lookup never scrapes, so no scraper is wired.
	svc := domain.NewVideoService(repo, nil, log.WithField("component", "service"))
	v, err := svc.Lookup(cmd.Context(), args[0])
	if errors.Is(err, domain.ErrVideoNotFound) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: not found\n", args[0])
		return nil
	}
	if err != nil {
		return err
	}
	return printJSON(cmd, v)
}
