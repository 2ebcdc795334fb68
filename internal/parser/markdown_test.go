package parser

import (
	"strings"
	"testing"
)

func TestMarkdownParser_StripsMarkup(t *testing.T) {
	input := "# Guide Go\n\nSome *bold* text.\n\n## Setup\n\n- a\n- b\n\n```go\nx := 1\n```\n"
	p := &MarkdownParser{}
	page, err := p.Parse(strings.NewReader(input), "https://example.com/README.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if page.Title != "Guide Go" {
		t.Errorf("expected title %q, got %q", "Guide Go", page.Title)
	}
	for _, want := range []string{"Some bold text.", "Setup", "a\nb", "x := 1"} {
		if !strings.Contains(page.Text, want) {
			t.Errorf("expected text to contain %q, got %q", want, page.Text)
		}
	}
	for _, markup := range []string{"*", "```", "# "} {
		if strings.Contains(page.Text, markup) {
			t.Errorf("expected no %q in text, got %q", markup, page.Text)
		}
	}
}

func TestMarkdownParser_TitleOnlyFromLevelOne(t *testing.T) {
	p := &MarkdownParser{}
	page, err := p.Parse(strings.NewReader("## Not the title\n\nBody."), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Title != "" {
		t.Errorf("expected empty title, got %q", page.Title)
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	p := &MarkdownParser{}
	page, err := p.Parse(strings.NewReader(""), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Text != "" {
		t.Errorf("expected empty text, got %q", page.Text)
	}
}

func TestFirstHeading(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"level one", "# Hello *World*\n\ntext", "Hello World"},
		{"any level", "intro\n\n### Deep\n", "Deep"},
		{"none", "just a paragraph", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FirstHeading([]byte(tt.src)); got != tt.want {
				t.Errorf("FirstHeading() = %q, want %q", got, tt.want)
			}
		})
	}
}
