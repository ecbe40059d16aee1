package domain

import "encoding/json"

// Track is a subtitle or caption track attached to a video.
type Track struct {
	Label string `json:"label"`
	File  string `json:"file"`
}

// Video is the playable descriptor returned for a movie identifier.
// It is created once, on the first successful scrape, and never updated.
type Video struct {
	ExternalID  string  `json:"tmdbId"`
	Title       string  `json:"title"`
	StreamURL   string  `json:"url"`
	BackdropURL string  `json:"backdrop"`
	Tracks      []Track `json:"tracks"`
}

// MarshalJSON encodes a missing track list as [] rather than null.
func (v Video) MarshalJSON() ([]byte, error) {
	type plain Video
	p := plain(v)
	if p.Tracks == nil {
		p.Tracks = []Track{}
	}
	return json.Marshal(p)
}
