package storage

import (
	"crypto/sha1" //nolint:gosec // content fingerprint only
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/rawfetch/internal/domain"
)

// Package storage keeps a local history of fetch outcomes.

// Record summarises one fetch. The body itself is not stored.
type Record struct {
	TargetID   string    `json:"target_id"`
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code"`
	BodyBytes  int       `json:"body_bytes"`
	BodySHA1   string    `json:"body_sha1,omitempty"`
	Error      string    `json:"error,omitempty"`
	ElapsedMs  int64     `json:"elapsed_ms"`
	FetchedAt  time.Time `json:"fetched_at"`
}

// NewRecord builds a history record from a fetch result.
func NewRecord(res domain.Result) Record {
	rec := Record{
		TargetID:   res.TargetID,
		URL:        res.URL,
		StatusCode: res.StatusCode,
		BodyBytes:  len(res.Body),
		Error:      res.ErrString(),
		ElapsedMs:  res.Elapsed.Milliseconds(),
		FetchedAt:  res.FetchedAt,
	}
	if res.OK() {
		sum := sha1.Sum(res.Body)
		rec.BodySHA1 = hex.EncodeToString(sum[:])
	}
	return rec
}

// Store persists the latest fetch record per target.
type Store interface {
	Close() error
	Record(rec Record) error
	Last(targetID string) (Record, bool, error)
}

// Options controls retention characteristics for concrete store implementations.
type Options struct {
	RecordTTL       time.Duration
	CleanupInterval time.Duration
}

const (
	defaultRecordTTL       = 7 * 24 * time.Hour
	defaultCleanupInterval = 12 * time.Hour
)

// NewStore creates the configured storage backend.
func NewStore(typ, path string, opts Options) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))
	opts = normalizeOptions(opts)

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path, opts)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func normalizeOptions(opts Options) Options {
	if opts.RecordTTL <= 0 {
		opts.RecordTTL = defaultRecordTTL
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = defaultCleanupInterval
	}
	return opts
}

type noopStore struct{}

func (noopStore) Close() error                      { return nil }
func (noopStore) Record(Record) error               { return nil }
func (noopStore) Last(string) (Record, bool, error) { return Record{}, false, nil }
