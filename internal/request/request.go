// Package request turns a raw capture body into a CaptureRequest.
//
// Bodies come in two shapes: the JSON payload written by the capture tools
// ({"url": ..., "note": ..., "tags": [...]}) and free text pasted by hand into
// a tracker issue. Format detection happens once, up front.
package request

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoURL is returned when a body carries no usable http(s) URL.
var ErrNoURL = errors.New("no valid url")

// Kind tells which branch produced a ParsedRequest.
type Kind int

const (
	FreeText Kind = iota
	Structured
)

func (k Kind) String() string {
	if k == Structured {
		return "structured"
	}
	return "free_text"
}

// CaptureRequest is one normalized capture item.
type CaptureRequest struct {
	URL  string
	Note string
	Tags []string
}

// ParsedRequest is the result of format detection. Note and Tags are only
// ever set for Structured requests.
type ParsedRequest struct {
	Kind Kind
	CaptureRequest
}

type payload struct {
	URL  string   `json:"url"`
	Note string   `json:"note"`
	Tags []string `json:"tags"`
}

// Detect resolves a raw body into its tagged variant. It never fails; an
// empty URL means nothing usable was found.
func Detect(body string) ParsedRequest {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") {
		var p payload
		if err := json.Unmarshal([]byte(trimmed), &p); err == nil {
			return ParsedRequest{
				Kind: Structured,
				CaptureRequest: CaptureRequest{
					URL:  strings.TrimSpace(p.URL),
					Note: strings.TrimSpace(p.Note),
					Tags: CleanTags(p.Tags),
				},
			}
		}
	}
	return ParsedRequest{
		Kind:           FreeText,
		CaptureRequest: CaptureRequest{URL: findURL(trimmed)},
	}
}

// Parse detects the body format and validates the URL.
func Parse(body string) (CaptureRequest, error) {
	pr := Detect(body)
	if !HasScheme(pr.URL) {
		return CaptureRequest{}, ErrNoURL
	}
	return pr.CaptureRequest, nil
}

// FromCapture builds a request from the local capture payload, skipping
// format detection entirely.
func FromCapture(url, note string, tags []string) (CaptureRequest, error) {
	url = strings.TrimSpace(url)
	if !HasScheme(url) {
		return CaptureRequest{}, ErrNoURL
	}
	return CaptureRequest{
		URL:  url,
		Note: strings.TrimSpace(note),
		Tags: CleanTags(tags),
	}, nil
}

// HasScheme reports whether s starts with http:// or https://.
func HasScheme(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// urlRe stops at whitespace, quotes, square and curly brackets. Trailing
// sentence punctuation and unbalanced closing parentheses are trimmed
// separately.
var urlRe = regexp.MustCompile(`https?://[^\s<>"'\[\]{}]+`)

func findURL(text string) string {
	if m := urlRe.FindString(text); m != "" {
		return trimURL(m)
	}
	first, _, _ := strings.Cut(text, "\n")
	return strings.TrimSpace(first)
}

// trimURL drops trailing punctuation, and a trailing ")" only when it has no
// matching "(" inside the URL, as in "(see https://example.com/a)".
func trimURL(u string) string {
	for {
		u = strings.TrimRight(u, ".,;:!?")
		if !strings.HasSuffix(u, ")") || strings.Count(u, "(") >= strings.Count(u, ")") {
			return u
		}
		u = u[:len(u)-1]
	}
}

// CleanTags trims tags and drops empties and case-insensitive duplicates,
// keeping first occurrence order.
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
