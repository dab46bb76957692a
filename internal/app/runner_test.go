package app

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samvad-hq/rawfetch/internal/config"
	"github.com/samvad-hq/rawfetch/pkg/httpclient"
	"github.com/samvad-hq/rawfetch/pkg/publishers"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishers.Event
}

func (p *recordingPublisher) ID() string   { return "rec" }
func (p *recordingPublisher) Type() string { return "memory" }
func (p *recordingPublisher) Publish(_ context.Context, evt publishers.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func baseConfig() *config.Config {
	return &config.Config{
		ConnectTimeout:         time.Second,
		DumpFormat:             "vardump",
		StorageType:            "none",
		StorageTTL:             time.Hour,
		StorageCleanupInterval: time.Hour,
	}
}

func closedAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func TestRunnerDumpsRawBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id":"account","name":"Someone"}`))
	}))
	defer srv.Close()

	cfg := baseConfig()
	cfg.URL = srv.URL

	var out bytes.Buffer
	pub := &recordingPublisher{}
	runner, err := NewRunner(context.Background(), cfg, nil, Deps{Out: &out, Publishers: []publishers.Publisher{pub}})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "string(33) \"{\"id\":\"account\",\"name\":\"Someone\"}\"\n"
	if out.String() != want {
		t.Fatalf("unexpected dump %q", out.String())
	}
	if len(pub.events) != 1 || pub.events[0].StatusCode != 200 || pub.events[0].BodyBytes != 33 {
		t.Fatalf("unexpected events %+v", pub.events)
	}
}

func TestRunnerUnreachableHostDumpsFalse(t *testing.T) {
	cfg := baseConfig()
	cfg.URL = "http://" + closedAddr(t)

	var out bytes.Buffer
	runner, err := NewRunner(context.Background(), cfg, nil, Deps{Out: &out})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("transfer failure should not fail the run by default: %v", err)
	}
	if out.String() != "bool(false)\n" {
		t.Fatalf("unexpected dump %q", out.String())
	}
}

func TestRunnerFailOnError(t *testing.T) {
	cfg := baseConfig()
	cfg.URL = "http://" + closedAddr(t)
	cfg.FailOnError = true

	runner, err := NewRunner(context.Background(), cfg, nil, Deps{Out: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	if err := runner.Run(context.Background()); err == nil {
		t.Fatalf("expected error with fail_on_error")
	}
}

func TestRunnerTargetsFileWithHistory(t *testing.T) {
	var hits int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><head><title>" + r.URL.Path + "</title></head></html>"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	targetsFile := filepath.Join(dir, "targets.yaml")
	content := "targets:\n  - id: a\n    url: " + srv.URL + "/a\n  - id: b\n    url: " + srv.URL + "/b\n"
	if err := os.WriteFile(targetsFile, []byte(content), 0o644); err != nil {
		t.Fatalf("write targets: %v", err)
	}

	cfg := baseConfig()
	cfg.TargetsFile = targetsFile
	cfg.DumpFormat = "raw"
	cfg.InspectHTML = true
	cfg.StorageType = "bbolt"
	cfg.BBoltPath = filepath.Join(dir, "history.db")

	var out bytes.Buffer
	runner, err := NewRunner(context.Background(), cfg, nil, Deps{Out: &out})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	if err := runner.runOnce(context.Background()); err != nil {
		t.Fatalf("runOnce: %v", err)
	}
	rec, found, err := runner.store.Last("b")
	if err != nil || !found || rec.StatusCode != 200 {
		t.Fatalf("expected history for b, rec=%+v found=%v err=%v", rec, found, err)
	}
	runner.close()

	mu.Lock()
	defer mu.Unlock()
	if hits != 2 {
		t.Fatalf("expected 2 requests, got %d", hits)
	}
	if !strings.Contains(out.String(), "<title>/a</title>") || !strings.Contains(out.String(), "<title>/b</title>") {
		t.Fatalf("raw dump missing payloads: %q", out.String())
	}
}

func TestRunnerIntervalStopsOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("tick"))
	}))
	defer srv.Close()

	cfg := baseConfig()
	cfg.URL = srv.URL
	cfg.DumpFormat = "raw"
	cfg.Interval = 20 * time.Millisecond

	var out syncBuffer
	runner, err := NewRunner(context.Background(), cfg, nil, Deps{Out: &out})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if err := runner.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := strings.Count(out.String(), "tick"); n < 2 {
		t.Fatalf("expected repeated fetches, got %d", n)
	}
}

func TestRunOnceStopsWhenCancelled(t *testing.T) {
	cfg := baseConfig()
	cfg.URL = "https://graph.facebook.com/<account>"

	calls := 0
	var out bytes.Buffer
	runner, err := NewRunner(context.Background(), cfg, nil, Deps{
		Out: &out,
		ClientFactory: func(httpclient.Options) httpclient.Client {
			calls++
			return nil
		},
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := runner.runOnce(ctx); err != nil {
		t.Fatalf("runOnce: %v", err)
	}
	if calls != 0 || out.Len() != 0 {
		t.Fatalf("cancelled pass should not fetch, calls=%d out=%q", calls, out.String())
	}
}

func TestNewRunnerRejectsBadFormat(t *testing.T) {
	cfg := baseConfig()
	cfg.URL = "https://example.com"
	cfg.DumpFormat = "yaml"
	if _, err := NewRunner(context.Background(), cfg, nil, Deps{}); err == nil {
		t.Fatalf("expected error for unknown dump format")
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}
