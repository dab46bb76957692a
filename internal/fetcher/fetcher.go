package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/samvad-hq/rawfetch/internal/domain"
	"github.com/samvad-hq/rawfetch/internal/logger"
	"github.com/samvad-hq/rawfetch/pkg/httpclient"
)

// ClientFactory builds a transfer client for one fetch.
type ClientFactory func(opts httpclient.Options) httpclient.Client

// DefaultClientFactory returns resty-backed clients.
func DefaultClientFactory(opts httpclient.Options) httpclient.Client {
	return httpclient.NewRestyClient(opts)
}

// Options holds the transfer settings shared by every target.
type Options struct {
	TotalTimeout    time.Duration
	FollowRedirects bool
}

// Service fetches targets one at a time and returns their raw results.
type Service struct {
	newClient ClientFactory
	opts      Options
	log       logger.Logger
	now       func() time.Time
}

// NewService wires a fetcher with the given client factory (or default).
func NewService(factory ClientFactory, opts Options, log logger.Logger) *Service {
	if factory == nil {
		factory = DefaultClientFactory
	}
	return &Service{
		newClient: factory,
		opts:      opts,
		log:       logger.Ensure(log),
		now:       time.Now,
	}
}

// Fetch performs a blocking GET against the target, buffers the full body and
// releases the client before returning. Transport failures are reported in
// Result.Err; any HTTP status is a completed transfer.
func (s *Service) Fetch(ctx context.Context, target domain.Target) domain.Result {
	res := domain.Result{
		TargetID: target.ID,
		URL:      target.URL,
	}

	client := s.newClient(httpclient.Options{
		ConnectTimeout:  target.ConnectTimeout,
		TotalTimeout:    s.opts.TotalTimeout,
		FollowRedirects: s.opts.FollowRedirects,
	})
	defer client.Close()

	s.log.DebugObj("fetch started", "fetch_request", map[string]any{
		"target_id":          target.ID,
		"url":                target.URL,
		"connect_timeout_ms": target.ConnectTimeout.Milliseconds(),
	})

	start := s.now()
	resp, err := client.Get(ctx, target.URL, nil)
	res.Elapsed = s.now().Sub(start)
	res.FetchedAt = start.UTC()

	if err != nil {
		res.Err = fmt.Errorf("fetch %s: %w", target.URL, err)
		s.log.WarnObj("fetch failed", "fetch_error", map[string]any{
			"target_id":  target.ID,
			"url":        target.URL,
			"error":      err.Error(),
			"elapsed_ms": res.Elapsed.Milliseconds(),
		})
		return res
	}

	res.StatusCode = resp.StatusCode()
	res.Status = resp.Status()
	res.Header = resp.Header()
	res.Body = resp.Body()

	s.log.InfoObj("fetch completed", "fetch_result", map[string]any{
		"target_id":   target.ID,
		"url":         target.URL,
		"status_code": res.StatusCode,
		"body_bytes":  len(res.Body),
		"elapsed_ms":  res.Elapsed.Milliseconds(),
	})
	return res
}

// FetchAll fetches targets sequentially, stopping early if ctx is cancelled.
// onResult, when set, sees each result as soon as its transfer finishes.
func (s *Service) FetchAll(ctx context.Context, targets []domain.Target, onResult func(domain.Result)) []domain.Result {
	out := make([]domain.Result, 0, len(targets))
	for _, t := range targets {
		if ctx.Err() != nil {
			break
		}
		res := s.Fetch(ctx, t)
		if onResult != nil {
			onResult(res)
		}
		out = append(out, res)
	}
	return out
}
