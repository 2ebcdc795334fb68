// Package scrape fetches a captured link and reduces it to the plain text the
// analysis step works on.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html/charset"

	"github.com/dgallion1/veille/internal/config"
	"github.com/dgallion1/veille/internal/parser"
)

var (
	// ErrExtraction wraps every failure to turn a URL into usable content.
	ErrExtraction = errors.New("content extraction failed")
	// ErrNoContent means the page was fetched but held no text.
	ErrNoContent = fmt.Errorf("%w: no text content", ErrExtraction)
)

// TruncationMarker is appended when text is cut at the character cap.
const TruncationMarker = "..."

// Content is the cleaned result of fetching a link.
type Content struct {
	Text     string
	ImageURL string
	Title    string
}

// Extractor fetches pages over HTTP.
type Extractor struct {
	httpClient *http.Client
	userAgent  string
	maxChars   int
	maxBytes   int64
	parserOpts parser.Options
	log        *slog.Logger
}

// Options configures an Extractor. Zero values take the defaults.
type Options struct {
	UserAgent            string
	Timeout              time.Duration
	MaxContentChars      int
	MaxFetchBytes        int64
	PDFFallbackPdftotext bool
}

// OptionsFromConfig picks the extraction settings out of cfg.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		UserAgent:            cfg.UserAgent,
		Timeout:              cfg.FetchTimeout,
		MaxContentChars:      cfg.MaxContentChars,
		MaxFetchBytes:        cfg.MaxFetchBytes,
		PDFFallbackPdftotext: cfg.PDFFallbackPdftotext,
	}
}

func NewExtractor(opts Options, log *slog.Logger) *Extractor {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxContentChars <= 0 {
		opts.MaxContentChars = 15000
	}
	if opts.MaxFetchBytes <= 0 {
		opts.MaxFetchBytes = 10 << 20
	}
	return &Extractor{
		httpClient: &http.Client{Timeout: opts.Timeout},
		userAgent:  opts.UserAgent,
		maxChars:   opts.MaxContentChars,
		maxBytes:   opts.MaxFetchBytes,
		parserOpts: parser.Options{PDFFallbackPdftotext: opts.PDFFallbackPdftotext},
		log:        log,
	}
}

// Extract fetches pageURL and returns its normalized text, title and
// representative image. All errors wrap ErrExtraction.
func (e *Extractor) Extract(ctx context.Context, pageURL string) (*Content, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrExtraction, err)
	}
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/pdf;q=0.9,*/*;q=0.8")

	start := time.Now()
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrExtraction, pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: fetch %s: status %d", ErrExtraction, pageURL, resp.StatusCode)
	}

	p, err := parser.ForContentType(resp.Header.Get("Content-Type"), pageURL, e.parserOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	body, err := decodeBody(p, io.LimitReader(resp.Body, e.maxBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrExtraction, pageURL, err)
	}

	page, err := p.Parse(body, pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	text := NormalizeWhitespace(page.Text)
	if text == "" {
		return nil, ErrNoContent
	}
	text = Truncate(text, e.maxChars)

	if e.log != nil {
		e.log.Debug("page extracted",
			"url", pageURL,
			"content_type", resp.Header.Get("Content-Type"),
			"chars", utf8.RuneCountInString(text),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	return &Content{
		Text:     text,
		ImageURL: page.ImageURL,
		Title:    NormalizeWhitespace(page.Title),
	}, nil
}

// decodeBody converts textual bodies to UTF-8 using the declared charset, a
// BOM or an HTML meta tag. Binary formats are passed through untouched.
func decodeBody(p parser.Parser, r io.Reader, contentType string) (io.Reader, error) {
	switch p.(type) {
	case *parser.PDFParser, *parser.DOCXParser:
		return r, nil
	}
	dr, err := charset.NewReader(r, contentType)
	if errors.Is(err, io.EOF) {
		return strings.NewReader(""), nil
	}
	return dr, err
}

// NormalizeWhitespace collapses every whitespace run to one space and trims.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate caps s at maxChars runes, appending TruncationMarker when it cuts.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxChars]) + TruncationMarker
}
