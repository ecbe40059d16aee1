package browser

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"

	"github.com/cwygoda/streamcatcher/internal/domain"
)

// RequiredKeys is the set of keys a response body must carry to be captured.
var RequiredKeys = []string{
	"noReferrer",
	"url",
	"tmdbId",
	"title",
	"poster",
	"backdrop",
	"tracks",
	"englishTrackIndex",
	"4kAvailable",
}

// Qualifies reports whether body is a JSON object containing every required key.
func Qualifies(body []byte) (map[string]json.RawMessage, bool) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil || obj == nil {
		return nil, false
	}
	ok := lo.EveryBy(RequiredKeys, func(k string) bool {
		_, found := obj[k]
		return found
	})
	return obj, ok
}

// Capture holds the first qualifying response body seen during a page load.
// Offer may be called from many goroutines; exactly one qualifying body wins.
type Capture struct {
	claimed atomic.Bool
	done    chan struct{}
	once    sync.Once

	payload map[string]json.RawMessage
}

// NewCapture creates an empty capture cell.
func NewCapture() *Capture {
	return &Capture{done: make(chan struct{})}
}

// Claimed reports whether a body has already been captured.
func (c *Capture) Claimed() bool {
	return c.claimed.Load()
}

// Done is closed once a body has been captured.
func (c *Capture) Done() <-chan struct{} {
	return c.done
}

// Offer captures body if it qualifies and nothing was captured before.
func (c *Capture) Offer(body []byte) bool {
	if c.claimed.Load() {
		return false
	}
	obj, ok := Qualifies(body)
	if !ok {
		return false
	}
	if !c.claimed.CompareAndSwap(false, true) {
		return false
	}
	c.payload = obj
	c.once.Do(func() { close(c.done) })
	return true
}

// Result decodes the captured body into a Video. requestedID is used when the
// payload carries an empty tmdbId.
func (c *Capture) Result(requestedID string) (*domain.Video, error) {
	select {
	case <-c.done:
	default:
		return nil, domain.ErrNoData
	}
	return decodeVideo(c.payload, requestedID)
}

type payloadTrack struct {
	Label string `json:"label"`
	File  string `json:"file"`
}

func decodeVideo(obj map[string]json.RawMessage, requestedID string) (*domain.Video, error) {
	v := &domain.Video{}

	id, err := decodeID(obj["tmdbId"])
	if err != nil {
		return nil, fmt.Errorf("decode tmdbId: %w", err)
	}
	if id == "" {
		id = requestedID
	}
	v.ExternalID = id

	for key, dst := range map[string]*string{
		"title":    &v.Title,
		"url":      &v.StreamURL,
		"backdrop": &v.BackdropURL,
	} {
		if err := decodeOptionalString(obj[key], dst); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
	}

	var tracks []payloadTrack
	if raw := obj["tracks"]; len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &tracks); err != nil {
			return nil, fmt.Errorf("decode tracks: %w", err)
		}
	}
	v.Tracks = lo.Map(tracks, func(t payloadTrack, _ int) domain.Track {
		return domain.Track{Label: t.Label, File: t.File}
	})
	return v, nil
}

// decodeID accepts both string and numeric ids.
func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10), nil
	}
	return n.String(), nil
}

func decodeOptionalString(raw json.RawMessage, dst *string) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
