// Package browser scrapes video descriptors by observing a page's own network
// traffic in a headless Chromium driven through playwright.
package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"

	"github.com/cwygoda/streamcatcher/internal/domain"
)

const (
	// DefaultHostedExecutable is used in hosted mode when no executable path is configured.
	DefaultHostedExecutable = "/usr/bin/google-chrome-stable"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

var launchArgs = []string{
	"--no-sandbox",
	"--disable-setuid-sandbox",
	"--disable-dev-shm-usage",
	"--disable-accelerated-2d-canvas",
	"--no-first-run",
	"--no-zygote",
	"--disable-gpu",
	"--single-process",
	"--disable-extensions",
}

// Options configures a Scraper.
type Options struct {
	BaseURL        string
	ExecutablePath string
	Hosted         bool
	NavTimeout     time.Duration
	SettleDelay    time.Duration
}

// Scraper implements domain.Scraper with a headless Chromium per call.
type Scraper struct {
	opts Options
	pw   *playwright.Playwright
	log  *logrus.Entry
}

// New starts the playwright driver. The driver lives until Close.
func New(opts Options, log *logrus.Entry) (*Scraper, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 30 * time.Second
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = 15 * time.Second
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	return &Scraper{opts: opts, pw: pw, log: log}, nil
}

// Close stops the playwright driver.
func (s *Scraper) Close() error {
	return s.pw.Stop()
}

// MovieURL returns the page URL scraped for id.
func (s *Scraper) MovieURL(id string) string {
	return MovieURL(s.opts.BaseURL, id)
}

// MovieURL joins base and the escaped id into the movie page URL.
func MovieURL(base, id string) string {
	return strings.TrimRight(base, "/") + "/movie/" + url.PathEscape(id)
}

func (s *Scraper) launchOptions() playwright.BrowserTypeLaunchOptions {
	opts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args:     launchArgs,
	}
	path := s.opts.ExecutablePath
	if s.opts.Hosted && path == "" {
		path = DefaultHostedExecutable
	}
	if path != "" {
		opts.ExecutablePath = playwright.String(path)
	}
	return opts
}

// Scrape loads the movie page for id and returns the first qualifying
// XHR/fetch response as a Video.
func (s *Scraper) Scrape(ctx context.Context, id string) (*domain.Video, error) {
	log := s.log.WithField("tmdb_id", id)
	target := s.MovieURL(id)

	browser, err := s.pw.Chromium.Launch(s.launchOptions())
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			log.WithError(err).Warn("close browser")
		}
	}()

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport:  &playwright.Size{Width: 1280, Height: 720},
		UserAgent: playwright.String(userAgent),
	})
	if err != nil {
		return nil, fmt.Errorf("new browser context: %w", err)
	}
	defer bctx.Close()

	page, err := bctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	defer page.Close()

	capture := NewCapture()
	obs := newObserver(capture, log)
	page.OnResponse(obs.enqueue)
	defer obs.stop()

	navDone := make(chan error, 1)
	go func() {
		_, err := page.Goto(target, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateNetworkidle,
			Timeout:   playwright.Float(float64(s.opts.NavTimeout.Milliseconds())),
		})
		navDone <- err
	}()

	log.WithField("url", target).Debug("navigating")
	if err := awaitCapture(ctx, capture, navDone, s.opts.SettleDelay); err != nil {
		return nil, err
	}
	return capture.Result(id)
}

// awaitCapture waits until the capture is claimed, navigation fails, or the
// settle window after a successful navigation elapses. A claimed capture
// always wins over a navigation error.
func awaitCapture(ctx context.Context, capture *Capture, navDone <-chan error, settle time.Duration) error {
	select {
	case <-capture.Done():
		return nil
	case err := <-navDone:
		if capture.Claimed() {
			<-capture.Done()
			return nil
		}
		if err != nil {
			return fmt.Errorf("navigate: %w", err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	timer := time.NewTimer(settle)
	defer timer.Stop()
	select {
	case <-capture.Done():
		return nil
	case <-timer.C:
		return domain.ErrNoData
	case <-ctx.Done():
		return ctx.Err()
	}
}
