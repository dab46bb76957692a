package inspect

import (
	"bytes"
	"fmt"
	"mime"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samvad-hq/rawfetch/internal/domain"
)

const (
	maxHTMLBodyBytes = 1 << 20 // 1 MiB
)

// PageMeta summarises an HTML document.
type PageMeta struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// Empty reports whether no metadata was found.
func (m PageMeta) Empty() bool {
	return m.Title == "" && m.Description == "" && m.ImageURL == ""
}

// IsHTML reports whether the result carries an HTML payload.
func IsHTML(res domain.Result) bool {
	if !res.OK() || len(res.Body) == 0 {
		return false
	}
	if ct := res.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		return err == nil && (mt == "text/html" || mt == "application/xhtml+xml")
	}
	head := bytes.ToLower(bytes.TrimSpace(firstBytes(res.Body, 512)))
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}

// Summarize extracts title/OG metadata from an HTML result. The result itself is not modified.
func Summarize(res domain.Result) (PageMeta, error) {
	if !IsHTML(res) {
		return PageMeta{}, fmt.Errorf("result for %s is not html", res.URL)
	}
	meta, err := parseMeta(firstBytes(res.Body, maxHTMLBodyBytes))
	if err != nil {
		return PageMeta{}, err
	}
	meta.ImageURL = resolveURL(meta.ImageURL, res.URL)
	return meta, nil
}

func parseMeta(body []byte) (PageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return PageMeta{}, fmt.Errorf("parse html: %w", err)
	}

	extract := func(sel string) string {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if val, ok := node.Attr("content"); ok {
				return strings.TrimSpace(val)
			}
		}
		return ""
	}

	return PageMeta{
		Title: firstNonEmpty(
			extract(`meta[property="og:title"]`),
			strings.TrimSpace(doc.Find("title").First().Text()),
		),
		Description: firstNonEmpty(
			extract(`meta[property="og:description"]`),
			extract(`meta[name="description"]`),
		),
		ImageURL: extract(`meta[property="og:image"]`),
	}, nil
}

func resolveURL(ref, base string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstBytes(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
