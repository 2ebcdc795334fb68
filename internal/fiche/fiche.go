// Package fiche renders analysis results as Markdown documents with a YAML
// header and writes them into the dated content tree.
package fiche

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/veille/internal/fsutil"
)

// ErrPersistence wraps every failure to render or store a fiche.
var ErrPersistence = errors.New("fiche persistence failed")

// Dir is the subdirectory of the content root that holds fiches.
const Dir = "fiches"

// DateLayout is the frontmatter date format.
const DateLayout = "2006-01-02"

// Fiche is one document to publish.
type Fiche struct {
	Title       string
	Summary     string
	Tags        []string
	Category    string
	SourceURL   string
	ImageURL    string
	IssueNumber int
	Date        time.Time
	// Generator names the model that wrote the summary, for the footer.
	Generator string
}

// Frontmatter is the YAML header of a fiche file. Key names are read by the
// site generator and the index builder.
type Frontmatter struct {
	Title    string   `yaml:"title"`
	Tags     []string `yaml:"tags"`
	Category string   `yaml:"category"`
	Date     string   `yaml:"date"`
	Source   string   `yaml:"source"`
	Issue    string   `yaml:"issue"`
	Image    string   `yaml:"image,omitempty"`
}

// IssueRef formats a request number the way fiches reference it.
func IssueRef(n int) string {
	return fmt.Sprintf("#%d", n)
}

// Render produces the full file content for f.
func Render(f Fiche) ([]byte, error) {
	tags := f.Tags
	if tags == nil {
		tags = []string{}
	}
	fm := Frontmatter{
		Title:    f.Title,
		Tags:     tags,
		Category: f.Category,
		Date:     f.Date.Format(DateLayout),
		Source:   f.SourceURL,
		Issue:    IssueRef(f.IssueNumber),
		Image:    f.ImageURL,
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(fm); err != nil {
		return nil, fmt.Errorf("encode frontmatter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode frontmatter: %w", err)
	}
	buf.WriteString("---\n\n")

	fmt.Fprintf(&buf, "# %s\n\n", f.Title)
	fmt.Fprintf(&buf, "*Source : [%s](%s)*\n\n", f.SourceURL, f.SourceURL)
	if f.ImageURL != "" {
		fmt.Fprintf(&buf, "![%s](%s)\n\n", escapeAlt(f.Title), f.ImageURL)
	}
	buf.WriteString("## Résumé\n\n")
	buf.WriteString(strings.TrimSpace(f.Summary))
	buf.WriteString("\n\n---\n\n")
	fmt.Fprintf(&buf, "**Thématique :** %s\n\n", f.Category)
	fmt.Fprintf(&buf, "**Tags :** %s\n", formatTags(f.Tags))
	if f.Generator != "" {
		fmt.Fprintf(&buf, "\n*Généré automatiquement via %s - Issue %s*\n", f.Generator, IssueRef(f.IssueNumber))
	}
	return buf.Bytes(), nil
}

func formatTags(tags []string) string {
	quoted := make([]string, len(tags))
	for i, t := range tags {
		quoted[i] = "`" + t + "`"
	}
	return strings.Join(quoted, ", ")
}

func escapeAlt(s string) string {
	return strings.NewReplacer("[", `\[`, "]", `\]`).Replace(s)
}

// RelPath returns the path of a fiche below the fiches directory.
func RelPath(date time.Time, title string) string {
	return filepath.Join(
		date.Format("2006"),
		date.Format("01"),
		date.Format("02")+"-"+Slugify(title)+".md",
	)
}

// Builder writes fiches under root/fiches.
type Builder struct {
	root   string
	writer fsutil.Writer
	now    func() time.Time
	log    *slog.Logger
}

func NewBuilder(contentRoot string, writer fsutil.Writer, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{
		root:   contentRoot,
		writer: writer,
		now:    time.Now,
		log:    log,
	}
}

// Write renders f, dated now, and stores it. An existing file with the same
// path is overwritten. It returns the path written.
func (b *Builder) Write(ctx context.Context, f Fiche) (string, error) {
	f.Date = b.now()

	data, err := Render(f)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	path := filepath.Join(b.root, Dir, RelPath(f.Date, f.Title))
	if err := b.writer.WriteFile(ctx, path, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	b.log.Info("fiche written", "path", path, "issue", f.IssueNumber)
	return path, nil
}
