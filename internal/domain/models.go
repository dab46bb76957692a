package domain

import (
	"net/http"
	"time"
)

// Target is a single URL to fetch.
type Target struct {
	ID             string
	Name           string
	URL            string
	ConnectTimeout time.Duration
}

// Result is the outcome of one fetch. Body holds the raw payload exactly as
// received; it is never parsed or validated. Err is set when the transfer
// itself failed (DNS, connect, TLS, timeout), in which case Body is empty.
type Result struct {
	TargetID   string
	URL        string
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
	Elapsed    time.Duration
	FetchedAt  time.Time
	Err        error
}

// OK reports whether the transfer completed, regardless of status code.
func (r Result) OK() bool { return r.Err == nil }

// ErrString returns the transfer error text or an empty string.
func (r Result) ErrString() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
