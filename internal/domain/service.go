package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidID      = errors.New("invalid movie id")
	ErrVideoNotFound  = errors.New("video not found")
	ErrDuplicateVideo = errors.New("video already stored")
	ErrNoData         = errors.New("scrape did not find data")
)

// VideoService serves videos from the store and falls back to scraping.
type VideoService struct {
	repo    VideoRepository
	scraper Scraper
	log     *logrus.Entry

	mu       sync.Mutex
	inflight int
	idle     chan struct{}
}

// NewVideoService creates a new VideoService.
func NewVideoService(repo VideoRepository, scraper Scraper, log *logrus.Entry) *VideoService {
	return &VideoService{repo: repo, scraper: scraper, log: log}
}

// ValidateID rejects blank ids and ids with path separators. Valid ids are
// returned verbatim.
func ValidateID(id string) (string, error) {
	if strings.TrimSpace(id) == "" || strings.ContainsAny(id, "/\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return id, nil
}

// Resolve returns the stored video for id, scraping and persisting it on a miss.
//
// Store lookup failures are treated as misses. Persist failures are logged and
// the scraped video is still returned. The scrape is detached from ctx
// cancellation: once started it runs until it finds data or times out.
func (s *VideoService) Resolve(ctx context.Context, id string) (*Video, error) {
	id, err := ValidateID(id)
	if err != nil {
		return nil, err
	}
	log := s.log.WithField("tmdb_id", id)

	v, err := s.repo.Get(ctx, id)
	switch {
	case err == nil:
		log.Info("found stored video")
		return v, nil
	case errors.Is(err, ErrVideoNotFound):
	default:
		log.WithError(err).Warn("store lookup failed, scraping instead")
	}

	ctx = context.WithoutCancel(ctx)
	s.begin()
	defer s.end()

	v, err = s.scraper.Scrape(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("scrape %s: %w", id, err)
	}

	if dbID, err := s.repo.Save(ctx, v); err != nil {
		log.WithError(err).Error("failed to save scraped video")
	} else {
		log.WithField("video_id", dbID).Info("saved scraped video")
	}
	return v, nil
}

// Drain waits until no scrape started by Resolve is running, or until ctx
// ends. Scrapes outlive their requests, so callers drain before releasing the
// scraper or the store.
func (s *VideoService) Drain(ctx context.Context) error {
	s.mu.Lock()
	if s.inflight == 0 {
		s.mu.Unlock()
		return nil
	}
	idle := s.idle
	s.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *VideoService) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight == 0 {
		s.idle = make(chan struct{})
	}
	s.inflight++
}

func (s *VideoService) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if s.inflight == 0 {
		close(s.idle)
	}
}

// Lookup returns the stored video for id without scraping.
func (s *VideoService) Lookup(ctx context.Context, id string) (*Video, error) {
	id, err := ValidateID(id)
	if err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}
