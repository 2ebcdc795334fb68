package parser

import (
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
)

// Page is what a parser keeps from a fetched document.
type Page struct {
	Title    string
	Text     string // raw extracted text, not yet whitespace-normalized
	ImageURL string // representative image, absolute when resolvable
}

// Parser reduces raw document bytes to a Page. pageURL is used to resolve
// relative references.
type Parser interface {
	Parse(r io.Reader, pageURL string) (*Page, error)
}

// Options tunes parser construction.
type Options struct {
	PDFFallbackPdftotext bool
}

// ForContentType returns the parser for a response Content-Type header,
// falling back to the URL's extension when the header is missing or generic.
func ForContentType(contentType, pageURL string, opts Options) (Parser, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "text/html", "application/xhtml+xml":
		return &HTMLParser{}, nil
	case "application/pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return &DOCXParser{}, nil
	case "text/markdown", "text/x-markdown":
		return &MarkdownParser{}, nil
	case "text/plain":
		if isMarkdownPath(pageURL) {
			return &MarkdownParser{}, nil
		}
		return &TextParser{}, nil
	}

	switch extOf(pageURL) {
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".txt":
		return &TextParser{}, nil
	}

	// Servers that send nothing useful are almost always serving HTML.
	if mediaType == "" || mediaType == "application/octet-stream" {
		return &HTMLParser{}, nil
	}
	return nil, fmt.Errorf("unsupported content type: %s", mediaType)
}

func extOf(pageURL string) string {
	p := pageURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	return strings.ToLower(path.Ext(p))
}

func isMarkdownPath(pageURL string) bool {
	ext := extOf(pageURL)
	return ext == ".md" || ext == ".markdown"
}
