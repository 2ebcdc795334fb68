package parser

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// HTMLParser handles web pages.
type HTMLParser struct{}

// skipped holds elements whose text is boilerplate, not article content.
var skipped = map[string]bool{
	"script":   true,
	"style":    true,
	"nav":      true,
	"footer":   true,
	"header":   true,
	"noscript": true,
	"template": true,
	"svg":      true,
}

// blockElements get a separator around their text so words from adjacent
// blocks do not run together.
var blockElements = map[string]bool{
	"p": true, "div": true, "li": true, "td": true, "th": true, "tr": true,
	"br": true, "blockquote": true, "pre": true, "section": true, "article": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

func (p *HTMLParser) Parse(r io.Reader, pageURL string) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	page := &Page{
		Title:    findTitle(doc),
		ImageURL: resolveRef(pageURL, findOGImage(doc)),
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if skipped[n.Data] {
				return
			}
			if blockElements[n.Data] {
				buf.WriteByte(' ')
			}
		case html.TextNode:
			buf.WriteString(n.Data)
			return
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			buf.WriteByte(' ')
		}
	}

	if body := findBody(doc); body != nil {
		walk(body)
	} else {
		walk(doc)
	}
	page.Text = buf.String()
	return page, nil
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "title" {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}

// findOGImage returns the og:image meta content, or twitter:image when the
// page has no open-graph tag.
func findOGImage(doc *html.Node) string {
	var og, twitter string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if og != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "meta" {
			key := strings.ToLower(attr(n, "property"))
			if key == "" {
				key = strings.ToLower(attr(n, "name"))
			}
			content := strings.TrimSpace(attr(n, "content"))
			switch key {
			case "og:image", "og:image:url", "og:image:secure_url":
				if content != "" {
					og = content
				}
			case "twitter:image", "twitter:image:src":
				if twitter == "" {
					twitter = content
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if og != "" {
		return og
	}
	return twitter
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

// resolveRef makes ref absolute against base. Unparseable input is returned
// as-is; an empty ref stays empty.
func resolveRef(base, ref string) string {
	if ref == "" || base == "" {
		return ref
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
