package targets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func findTarget(t *testing.T, reg *Registry, id string) Target {
	t.Helper()
	for _, tgt := range reg.All() {
		if tgt.ID == id {
			return tgt
		}
	}
	t.Fatalf("target %q not loaded", id)
	return Target{}
}

func TestLoadRegistryYAML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "targets.yaml")
	content := `
targets:
  - id: graph
    name: Graph API
    url: https://graph.facebook.com/<account>
    connect_timeout_seconds: 3
  - id: example
    url: https://example.com
`
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write targets file: %v", err)
	}

	reg, err := LoadRegistry(file, 7*time.Second)
	if err != nil {
		t.Fatalf("LoadRegistry returned error: %v", err)
	}

	all := reg.All()
	if len(all) != 2 || all[0].ID != "graph" || all[1].ID != "example" {
		t.Fatalf("unexpected targets %#v", all)
	}

	graph := findTarget(t, reg, "graph")
	if graph.URL != "https://graph.facebook.com/<account>" {
		t.Fatalf("url must be kept verbatim, got %s", graph.URL)
	}
	if graph.ConnectTimeout() != 3*time.Second {
		t.Fatalf("unexpected connect timeout %v", graph.ConnectTimeout())
	}

	example := findTarget(t, reg, "example")
	if example.ConnectTimeout() != 7*time.Second {
		t.Fatalf("expected fallback timeout, got %v", example.ConnectTimeout())
	}
	if example.Name != "example" {
		t.Fatalf("expected name to default to id, got %q", example.Name)
	}
}

func TestLoadRegistryJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "targets.json")
	content := `{"targets":[{"id":"one","url":"https://one.example"}]}`
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write targets file: %v", err)
	}

	reg, err := LoadRegistry(file, 0)
	if err != nil {
		t.Fatalf("LoadRegistry: %v", err)
	}
	targets := reg.DomainTargets()
	if len(targets) != 1 || targets[0].ConnectTimeout != 5*time.Second {
		t.Fatalf("unexpected domain targets %#v", targets)
	}
}

func TestLoadRegistryDuplicateID(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "targets.yaml")
	content := `
targets:
  - id: dup
    url: https://a.example
  - id: dup
    url: https://b.example
`
	if err := os.WriteFile(file, []byte(content), 0o644); err != nil {
		t.Fatalf("write targets file: %v", err)
	}

	if _, err := LoadRegistry(file, 0); err == nil {
		t.Fatalf("expected duplicate target error, got nil")
	}
}

func TestLoadRegistryMissingURL(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "targets.yaml")
	if err := os.WriteFile(file, []byte("targets:\n  - id: nourl\n"), 0o644); err != nil {
		t.Fatalf("write targets file: %v", err)
	}

	if _, err := LoadRegistry(file, 0); err == nil {
		t.Fatalf("expected validation error for missing url")
	}
}

func TestFromURL(t *testing.T) {
	reg, err := FromURL("https://graph.facebook.com/<account>", 5*time.Second)
	if err != nil {
		t.Fatalf("FromURL: %v", err)
	}
	tgt := findTarget(t, reg, DefaultID)
	if tgt.Name != "graph.facebook.com" {
		t.Fatalf("unexpected name %q", tgt.Name)
	}

	if _, err := FromURL("   ", time.Second); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestLoadRegistryReportsDecodeError(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "targets.yaml")
	if err := os.WriteFile(file, []byte("targets:\n  - id: x\n    url: [\n"), 0o644); err != nil {
		t.Fatalf("write targets file: %v", err)
	}

	_, err := LoadRegistry(file, 0)
	if err == nil {
		t.Fatalf("expected decode error")
	}
	if !strings.Contains(err.Error(), "decode yaml targets") {
		t.Fatalf("expected the yaml syntax error to surface, got %v", err)
	}
}
