// Package index regenerates the chronological listing of every fiche in the
// content tree.
package index

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dgallion1/veille/internal/fiche"
	"github.com/dgallion1/veille/internal/fsutil"
	"github.com/dgallion1/veille/internal/parser"
)

// UnknownDateHeading titles the bucket of entries without a usable date.
const UnknownDateHeading = "Date inconnue"

var errNoFrontmatter = errors.New("no frontmatter")

var months = [...]string{
	"Janvier", "Février", "Mars", "Avril", "Mai", "Juin",
	"Juillet", "Août", "Septembre", "Octobre", "Novembre", "Décembre",
}

// Entry is one listed fiche.
type Entry struct {
	Title   string
	Date    time.Time
	HasDate bool
	// RelPath is relative to the index file, slash separated.
	RelPath string
}

// Stats reports what a rebuild saw.
type Stats struct {
	Path       string
	Scanned    int
	Entries    int
	Corrupt    int
	Duplicates int
}

// Builder rebuilds root/fiches/<indexFile>.
type Builder struct {
	dir       string
	indexPath string
	title     string
	log       *slog.Logger
}

func NewBuilder(contentRoot, indexFile, title string, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	if indexFile == "" {
		indexFile = "index.md"
	}
	dir := filepath.Join(contentRoot, fiche.Dir)
	return &Builder{
		dir:       dir,
		indexPath: filepath.Join(dir, indexFile),
		title:     title,
		log:       log,
	}
}

// Path is where the index is written.
func (b *Builder) Path() string { return b.indexPath }

// Rebuild scans every fiche and atomically replaces the index. Unreadable or
// malformed fiches are skipped and counted, never fatal.
func (b *Builder) Rebuild() (Stats, error) {
	stats := Stats{Path: b.indexPath}

	entries, err := b.scan(&stats)
	if err != nil {
		return stats, err
	}
	Sort(entries)
	stats.Entries = len(entries)

	if err := fsutil.WriteFileAtomic(b.indexPath, Render(b.title, entries)); err != nil {
		return stats, fmt.Errorf("write index: %w", err)
	}

	b.log.Info("index rebuilt",
		"path", b.indexPath,
		"entries", stats.Entries,
		"corrupt", stats.Corrupt,
		"duplicates", stats.Duplicates,
	)
	return stats, nil
}

func (b *Builder) scan(stats *Stats) ([]Entry, error) {
	seen := make(map[string]string)
	var entries []Entry

	err := filepath.WalkDir(b.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == b.dir && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			b.log.Warn("index: skipping unreadable path", "path", path, "error", err)
			stats.Corrupt++
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".md") || path == b.indexPath {
			return nil
		}
		stats.Scanned++

		data, err := os.ReadFile(path)
		if err != nil {
			b.log.Warn("index: skipping unreadable fiche", "path", path, "error", err)
			stats.Corrupt++
			return nil
		}
		title, date, err := ParseDocument(data)
		if err != nil {
			b.log.Warn("index: skipping corrupt fiche", "path", path, "error", err)
			stats.Corrupt++
			return nil
		}

		key := normalizeTitle(title)
		if first, dup := seen[key]; dup {
			b.log.Info("index: duplicate title dropped", "path", path, "kept", first, "title", title)
			stats.Duplicates++
			return nil
		}
		seen[key] = path

		rel, err := filepath.Rel(b.dir, path)
		if err != nil {
			rel = path
		}
		e := Entry{Title: title, RelPath: filepath.ToSlash(rel)}
		e.Date, e.HasDate = ParseDate(date)
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", b.dir, err)
	}
	return entries, nil
}

type indexFrontmatter struct {
	Title string `yaml:"title"`
	Date  any    `yaml:"date"`
}

// ParseDocument reads the title and raw date value of a fiche. A document
// whose header has no title falls back to the first heading of its body.
func ParseDocument(data []byte) (title string, date any, err error) {
	header, body, err := splitFrontmatter(data)
	if err != nil {
		return "", nil, err
	}

	var fm indexFrontmatter
	if err := yaml.Unmarshal(header, &fm); err != nil {
		return "", nil, fmt.Errorf("parse frontmatter: %w", err)
	}

	title = strings.TrimSpace(fm.Title)
	if title == "" {
		title = parser.FirstHeading(body)
	}
	if title == "" {
		return "", nil, errors.New("no title")
	}
	return title, fm.Date, nil
}

func splitFrontmatter(data []byte) (header, body []byte, err error) {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	if !bytes.HasPrefix(data, []byte("---\n")) {
		return nil, nil, errNoFrontmatter
	}
	rest := data[len("---\n"):]
	if bytes.HasPrefix(rest, []byte("---\n")) {
		return nil, rest[len("---\n"):], nil
	}
	end := bytes.Index(rest, []byte("\n---\n"))
	if end < 0 {
		if bytes.HasSuffix(rest, []byte("\n---")) {
			return rest[:len(rest)-len("\n---")], nil, nil
		}
		return nil, nil, fmt.Errorf("%w: unterminated header", errNoFrontmatter)
	}
	return rest[:end], rest[end+len("\n---\n"):], nil
}

// ParseDate accepts a YAML timestamp or a string starting with YYYY-MM-DD.
func ParseDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, true
	case string:
		d = strings.TrimSpace(d)
		if len(d) < len(fiche.DateLayout) {
			return time.Time{}, false
		}
		t, err := time.Parse(fiche.DateLayout, d[:len(fiche.DateLayout)])
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

func normalizeTitle(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// Sort orders entries newest first, then by title descending. Entries
// without a date go last.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.HasDate != b.HasDate {
			return a.HasDate
		}
		if a.HasDate {
			ad, bd := day(a.Date), day(b.Date)
			if !ad.Equal(bd) {
				return ad.After(bd)
			}
		}
		return a.Title > b.Title
	})
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthHeading names a month bucket, e.g. "Mai 2024".
func MonthHeading(t time.Time) string {
	return fmt.Sprintf("%s %d", months[t.Month()-1], t.Year())
}

// Render writes the index document for already sorted entries.
func Render(title string, entries []Entry) []byte {
	if title == "" {
		title = "Index"
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n", title)

	if len(entries) == 0 {
		buf.WriteString("\nAucune fiche pour le moment.\n")
		return buf.Bytes()
	}

	current := ""
	for _, e := range entries {
		heading := UnknownDateHeading
		if e.HasDate {
			heading = MonthHeading(e.Date)
		}
		if heading != current {
			fmt.Fprintf(&buf, "\n## %s\n\n", heading)
			current = heading
		}
		link := fmt.Sprintf("[%s](%s)", escapeLinkText(e.Title), e.RelPath)
		if e.HasDate {
			fmt.Fprintf(&buf, "- %s — %s\n", e.Date.Format(fiche.DateLayout), link)
		} else {
			fmt.Fprintf(&buf, "- %s\n", link)
		}
	}
	return buf.Bytes()
}

func escapeLinkText(s string) string {
	return strings.NewReplacer("[", `\[`, "]", `\]`).Replace(s)
}
