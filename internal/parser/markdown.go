package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles raw Markdown links (READMEs, gists) using goldmark,
// so the text reaching the analysis step carries no markup.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, pageURL string) (*Page, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	page := &Page{}
	var buf strings.Builder
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && page.Title == "" && h.Level == 1 {
			page.Title = ExtractText(h, src)
		}
		if t := ExtractText(n, src); t != "" {
			buf.WriteString(t)
			buf.WriteString("\n\n")
		}
	}
	page.Text = buf.String()
	return page, nil
}

// FirstHeading returns the text of the first heading in a Markdown document,
// or "" when there is none.
func FirstHeading(src []byte) string {
	doc := goldmark.New().Parser().Parse(text.NewReader(src))
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			return ExtractText(h, src)
		}
	}
	return ""
}

// ExtractText gets the text content of a goldmark AST node.
func ExtractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && n.FirstChild() == nil {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		} else {
			if buf.Len() > 0 && c.Type() == ast.TypeBlock {
				buf.WriteByte('\n')
			}
			buf.WriteString(ExtractText(c, src))
		}
	}
	return strings.TrimSpace(buf.String())
}
