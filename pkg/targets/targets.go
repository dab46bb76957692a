package targets

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/rawfetch/internal/domain"
	"github.com/samvad-hq/rawfetch/pkg/configfile"
)

// Package targets loads the list of URLs to fetch from YAML/JSON files.

const (
	defaultConnectTimeoutSeconds = 5
	// DefaultID names the target built from a bare URL.
	DefaultID = "default"
)

// Target is a single fetch target as declared in config files.
type Target struct {
	ID                    string `json:"id" yaml:"id"`
	Name                  string `json:"name" yaml:"name"`
	URL                   string `json:"url" yaml:"url"`
	ConnectTimeoutSeconds int    `json:"connect_timeout_seconds" yaml:"connect_timeout_seconds"`
}

type fileRegistry struct {
	Targets []Target `json:"targets" yaml:"targets"`
}

// Registry holds the loaded targets in declaration order.
type Registry struct {
	mu      sync.RWMutex
	targets []Target
}

// FromURL builds a single-target registry for the given URL.
// The URL is not validated beyond being non-empty; it is sent as-is.
func FromURL(rawURL string, connectTimeout time.Duration) (*Registry, error) {
	t := Target{
		ID:                    DefaultID,
		Name:                  hostOf(rawURL),
		URL:                   rawURL,
		ConnectTimeoutSeconds: int(connectTimeout / time.Second),
	}
	t = sanitizeTarget(t)
	if err := validateTarget(t); err != nil {
		return nil, err
	}
	return &Registry{targets: []Target{t}}, nil
}

// LoadRegistry loads targets from file. Entries without a connect timeout inherit fallback.
func LoadRegistry(path string, fallback time.Duration) (*Registry, error) {
	var fileReg fileRegistry
	if err := configfile.Decode(path, "targets", &fileReg); err != nil {
		return nil, err
	}
	if len(fileReg.Targets) == 0 {
		return nil, errors.New("targets file contains no targets entries")
	}

	reg := &Registry{targets: make([]Target, len(fileReg.Targets))}
	seen := make(map[string]struct{}, len(fileReg.Targets))
	for i := range fileReg.Targets {
		t := fileReg.Targets[i]
		if t.ConnectTimeoutSeconds <= 0 && fallback > 0 {
			t.ConnectTimeoutSeconds = int(fallback / time.Second)
		}
		t = sanitizeTarget(t)
		if err := validateTarget(t); err != nil {
			return nil, fmt.Errorf("target[%d]: %w", i, err)
		}
		if _, exists := seen[t.ID]; exists {
			return nil, fmt.Errorf("duplicate target id %q", t.ID)
		}
		seen[t.ID] = struct{}{}
		reg.targets[i] = t
	}

	return reg, nil
}

func sanitizeTarget(t Target) Target {
	t.ID = strings.TrimSpace(t.ID)
	t.Name = strings.TrimSpace(t.Name)
	t.URL = strings.TrimSpace(t.URL)
	if t.Name == "" {
		t.Name = t.ID
	}
	if t.ConnectTimeoutSeconds <= 0 {
		t.ConnectTimeoutSeconds = defaultConnectTimeoutSeconds
	}
	return t
}

func validateTarget(t Target) error {
	if t.ID == "" {
		return errors.New("id is required")
	}
	if t.URL == "" {
		return fmt.Errorf("url is required for target %q", t.ID)
	}
	return nil
}

func hostOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return DefaultID
	}
	return u.Host
}

// ConnectTimeout returns the connect-phase timeout for the target.
func (t Target) ConnectTimeout() time.Duration {
	if t.ConnectTimeoutSeconds <= 0 {
		return defaultConnectTimeoutSeconds * time.Second
	}
	return time.Duration(t.ConnectTimeoutSeconds) * time.Second
}

// Domain converts the config entry into the runtime target model.
func (t Target) Domain() domain.Target {
	return domain.Target{
		ID:             t.ID,
		Name:           t.Name,
		URL:            t.URL,
		ConnectTimeout: t.ConnectTimeout(),
	}
}

// All returns the targets in declaration order.
func (r *Registry) All() []Target {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Target, len(r.targets))
	copy(out, r.targets)
	return out
}

// DomainTargets returns all targets converted to domain.Target.
func (r *Registry) DomainTargets() []domain.Target {
	all := r.All()
	out := make([]domain.Target, 0, len(all))
	for _, t := range all {
		out = append(out, t.Domain())
	}
	return out
}
