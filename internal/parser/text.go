package parser

import (
	"io"
	"strings"
)

// TextParser handles plain text links. The first non-empty line is taken
// as the title.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, pageURL string) (*Page, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	text := string(data)

	page := &Page{Text: text}
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			page.Title = line
			break
		}
	}
	return page, nil
}
