package domain

//go:generate mockgen -destination=mocks/ports.go -package=mocks github.com/cwygoda/streamcatcher/internal/domain VideoRepository,Scraper

import "context"

// VideoRepository is the driven port for video persistence.
type VideoRepository interface {
	// Get returns ErrVideoNotFound when no video is stored under externalID.
	Get(ctx context.Context, externalID string) (*Video, error)
	// Save stores the video and its tracks atomically and returns the generated id.
	Save(ctx context.Context, v *Video) (int64, error)
}

// Scraper is the driven port that fetches a video from the upstream site.
type Scraper interface {
	Scrape(ctx context.Context, externalID string) (*Video, error)
}
