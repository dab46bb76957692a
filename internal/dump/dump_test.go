package dump

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/samvad-hq/rawfetch/internal/domain"
)

func TestVarDumpSuccess(t *testing.T) {
	d, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var buf bytes.Buffer
	if err := d.Dump(&buf, domain.Result{Body: []byte(`{"id":"1"}`), StatusCode: 200}); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if got := buf.String(); got != "string(10) \"{\"id\":\"1\"}\"\n" {
		t.Fatalf("unexpected dump %q", got)
	}
}

func TestVarDumpFailure(t *testing.T) {
	d, _ := New(FormatVarDump)
	var buf bytes.Buffer
	if err := d.Dump(&buf, domain.Result{Err: errors.New("no route to host")}); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if buf.String() != "bool(false)\n" {
		t.Fatalf("unexpected dump %q", buf.String())
	}
}

func TestVarDumpEmptyBody(t *testing.T) {
	d, _ := New(FormatVarDump)
	var buf bytes.Buffer
	if err := d.Dump(&buf, domain.Result{StatusCode: 204}); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if buf.String() != "string(0) \"\"\n" {
		t.Fatalf("unexpected dump %q", buf.String())
	}
}

func TestRawDumpWritesBodyVerbatim(t *testing.T) {
	d, _ := New("RAW")
	var buf bytes.Buffer
	body := []byte{0x00, 0xff, 'a'}
	if err := d.Dump(&buf, domain.Result{Body: body}); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), body) {
		t.Fatalf("raw dump altered payload: %v", buf.Bytes())
	}

	buf.Reset()
	if err := d.Dump(&buf, domain.Result{Err: errors.New("boom")}); err != nil {
		t.Fatalf("Dump failure: %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("raw dump of failure should be empty")
	}
}

func TestJSONDumpIncludesError(t *testing.T) {
	d, _ := New(FormatJSON)
	var buf bytes.Buffer
	if err := d.Dump(&buf, domain.Result{TargetID: "t", URL: "http://x", Err: errors.New("timeout")}); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("output is not json: %v", err)
	}
	if out["error"] != "timeout" || out["target_id"] != "t" {
		t.Fatalf("unexpected json %v", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New("xml"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
