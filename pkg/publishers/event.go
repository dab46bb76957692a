package publishers

import (
	"crypto/sha1" //nolint:gosec // content fingerprint only
	"encoding/hex"
	"time"

	"github.com/samvad-hq/rawfetch/internal/domain"
)

// Event represents the fetch outcome published downstream.
type Event struct {
	TargetID    string    `json:"target_id"`
	URL         string    `json:"url"`
	StatusCode  int       `json:"status_code"`
	BodyBytes   int       `json:"body_bytes"`
	BodySHA1    string    `json:"body_sha1,omitempty"`
	Error       string    `json:"error,omitempty"`
	ElapsedMs   int64     `json:"elapsed_ms"`
	FetchedAt   time.Time `json:"fetched_at"`
	PublishedAt time.Time `json:"published_at"`
}

// NewEvent constructs an Event for the given fetch result.
func NewEvent(res domain.Result) Event {
	evt := Event{
		TargetID:    res.TargetID,
		URL:         res.URL,
		StatusCode:  res.StatusCode,
		BodyBytes:   len(res.Body),
		Error:       res.ErrString(),
		ElapsedMs:   res.Elapsed.Milliseconds(),
		FetchedAt:   res.FetchedAt,
		PublishedAt: time.Now().UTC(),
	}
	if res.OK() {
		sum := sha1.Sum(res.Body)
		evt.BodySHA1 = hex.EncodeToString(sum[:])
	}
	return evt
}

// Outcome is the short status attribute attached to queue messages.
func (e Event) Outcome() string {
	if e.Error != "" {
		return "failed"
	}
	return "fetched"
}
