package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwygoda/streamcatcher/internal/adapter/sqlite"
	"github.com/cwygoda/streamcatcher/internal/config"
	"github.com/cwygoda/streamcatcher/internal/domain"
)

// run executes the root command with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		configPath = ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommands_Registered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "scrape", "lookup", "version"} {
		assert.True(t, names[want], "missing command %q", want)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "streamcatcher dev\n", out)
}

func TestLookupCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "videos.db")
	t.Setenv("DATABASE_URL", "sqlite://"+dbPath)

	repo, err := sqlite.New(dbPath)
	require.NoError(t, err)
	_, err = repo.Save(context.Background(), &domain.Video{
		ExternalID: "550",
		Title:      "Fight Club",
		StreamURL:  "https://cdn.example.com/550.m3u8",
		Tracks:     []domain.Track{{Label: "English", File: "https://cdn.example.com/550.en.vtt"}},
	})
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	t.Run("found", func(t *testing.T) {
		out, err := run(t, "lookup", "550")
		require.NoError(t, err)
		assert.Contains(t, out, `"title": "Fight Club"`)
		assert.Contains(t, out, `"label": "English"`)
	})

	t.Run("not found", func(t *testing.T) {
		out, err := run(t, "lookup", "603")
		require.NoError(t, err)
		assert.Equal(t, "603: not found\n", out)
	})

	t.Run("invalid id", func(t *testing.T) {
		_, err := run(t, "lookup", " ")
		assert.ErrorIs(t, err, domain.ErrInvalidID)
	})
}

func TestScrapeCommand_RequiresBaseURL(t *testing.T) {
	t.Setenv("HLS_BASE_URL", "")
	_, err := run(t, "scrape", "550")
	assert.ErrorContains(t, err, "base_url")
}

func TestServeCommand_RejectsBadLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "loud")
	_, err := run(t, "serve")
	assert.ErrorContains(t, err, "log level")
}

func TestOpenRepository_SQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "videos.db")
	cfg := config.Default()
	cfg.Database.URL = dbPath

	log, err := cfg.Server.NewLogger(&bytes.Buffer{})
	require.NoError(t, err)

	repo, err := openRepository(context.Background(), cfg, log)
	require.NoError(t, err)
	defer repo.Close()

	_, err = repo.Get(context.Background(), "550")
	assert.ErrorIs(t, err, domain.ErrVideoNotFound)
}
