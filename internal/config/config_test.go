package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("RAWFETCH_URL", "https://graph.facebook.com/account")

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.URL != "https://graph.facebook.com/account" {
		t.Fatalf("unexpected url %q", cfg.URL)
	}
	if cfg.ConnectTimeout != 5*time.Second {
		t.Fatalf("expected 5s connect timeout, got %v", cfg.ConnectTimeout)
	}
	if cfg.TotalTimeout != 0 {
		t.Fatalf("expected unbounded total timeout, got %v", cfg.TotalTimeout)
	}
	if cfg.DumpFormat != "vardump" {
		t.Fatalf("unexpected format %q", cfg.DumpFormat)
	}
	if cfg.StorageType != "none" {
		t.Fatalf("unexpected storage type %q", cfg.StorageType)
	}
	if cfg.FollowRedirects {
		t.Fatalf("redirects should not be followed by default")
	}
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	t.Setenv("RAWFETCH_URL", "https://env.example")
	t.Setenv("RAWFETCH_CONNECT_TIMEOUT", "9")

	fs := Flags("rawfetch")
	if err := fs.Parse([]string{"--url", "https://flag.example", "--format", "RAW", "--interval", "30"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.URL != "https://flag.example" {
		t.Fatalf("flag should win over env, got %q", cfg.URL)
	}
	if cfg.ConnectTimeout != 9*time.Second {
		t.Fatalf("expected env connect timeout 9s, got %v", cfg.ConnectTimeout)
	}
	if cfg.DumpFormat != "raw" {
		t.Fatalf("expected normalized format raw, got %q", cfg.DumpFormat)
	}
	if cfg.Interval != 30*time.Second {
		t.Fatalf("unexpected interval %v", cfg.Interval)
	}
}

func TestLoadPositionalURL(t *testing.T) {
	fs := Flags("rawfetch")
	if err := fs.Parse([]string{"https://positional.example"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.URL != "https://positional.example" {
		t.Fatalf("unexpected url %q", cfg.URL)
	}
}

func TestLoadRequiresSomethingToFetch(t *testing.T) {
	if _, err := Load(nil); err == nil {
		t.Fatalf("expected error when neither url nor targets_file is set")
	}
}

func TestLoadRejectsNonPositiveConnectTimeout(t *testing.T) {
	t.Setenv("RAWFETCH_URL", "https://example.com")
	t.Setenv("RAWFETCH_CONNECT_TIMEOUT", "0")

	if _, err := Load(nil); err == nil {
		t.Fatalf("expected error for zero connect timeout")
	}
}
