package dump

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/samvad-hq/rawfetch/internal/domain"
)

// Supported output formats.
const (
	FormatVarDump = "vardump"
	FormatRaw     = "raw"
	FormatJSON    = "json"
)

// Dumper writes fetch results for inspection.
type Dumper struct {
	format string
}

// New returns a dumper for the given format; empty selects vardump.
func New(format string) (*Dumper, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "":
		format = FormatVarDump
	case FormatVarDump, FormatRaw, FormatJSON:
	default:
		return nil, fmt.Errorf("unsupported dump format %q", format)
	}
	return &Dumper{format: format}, nil
}

// Dump writes res to w. A failed transfer is still dumped.
func (d *Dumper) Dump(w io.Writer, res domain.Result) error {
	switch d.format {
	case FormatRaw:
		return writeRaw(w, res)
	case FormatJSON:
		return writeJSON(w, res)
	default:
		return writeVarDump(w, res)
	}
}

// writeVarDump prints `string(N) "<body>"`, or `bool(false)` when nothing came back.
func writeVarDump(w io.Writer, res domain.Result) error {
	if !res.OK() {
		_, err := io.WriteString(w, "bool(false)\n")
		return err
	}
	if _, err := fmt.Fprintf(w, "string(%d) \"", len(res.Body)); err != nil {
		return err
	}
	if _, err := w.Write(res.Body); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\"\n")
	return err
}

func writeRaw(w io.Writer, res domain.Result) error {
	if len(res.Body) == 0 {
		return nil
	}
	_, err := w.Write(res.Body)
	return err
}

type jsonResult struct {
	TargetID   string      `json:"target_id"`
	URL        string      `json:"url"`
	StatusCode int         `json:"status_code,omitempty"`
	Status     string      `json:"status,omitempty"`
	Header     http.Header `json:"header,omitempty"`
	Body       string      `json:"body"`
	ElapsedMs  int64       `json:"elapsed_ms"`
	FetchedAt  time.Time   `json:"fetched_at"`
	Error      string      `json:"error,omitempty"`
}

func writeJSON(w io.Writer, res domain.Result) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(jsonResult{
		TargetID:   res.TargetID,
		URL:        res.URL,
		StatusCode: res.StatusCode,
		Status:     res.Status,
		Header:     res.Header,
		Body:       string(res.Body),
		ElapsedMs:  res.Elapsed.Milliseconds(),
		FetchedAt:  res.FetchedAt,
		Error:      res.ErrString(),
	})
}
