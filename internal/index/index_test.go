package index

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiche(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, "fiches", filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func doc(title, date string) string {
	return "---\ntitle: " + title + "\ndate: " + date + "\ncategory: DevOps\n---\n\n# " + title + "\n"
}

func rebuild(t *testing.T, root string) (Stats, string) {
	t.Helper()
	b := NewBuilder(root, "index.md", "Veille technologique", nil)
	stats, err := b.Rebuild()
	require.NoError(t, err)
	data, err := os.ReadFile(b.Path())
	require.NoError(t, err)
	return stats, string(data)
}

func TestRebuild_DeduplicatesNormalizedTitles(t *testing.T) {
	root := t.TempDir()
	writeFiche(t, root, "2024/05/01-guide-go.md", doc("Guide Go", `"2024-05-01"`))
	writeFiche(t, root, "2024/05/03-guide-go.md", doc(`"guide go "`, `"2024-05-03"`))

	stats, out := rebuild(t, root)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Contains(t, out, "- 2024-05-01 — [Guide Go](2024/05/01-guide-go.md)")
	assert.NotContains(t, out, "2024-05-03")
}

func TestRebuild_OrdersByDateThenTitleUnknownLast(t *testing.T) {
	root := t.TempDir()
	writeFiche(t, root, "2024/04/10-avril.md", doc("Avril", "2024-04-10"))
	writeFiche(t, root, "2024/05/02-alpha.md", doc("Alpha", `"2024-05-02"`))
	writeFiche(t, root, "2024/05/02-zeta.md", doc("Zeta", `"2024-05-02T08:00:00"`))
	writeFiche(t, root, "2024/05/09-mystere.md", doc("Mystère", "bientôt"))
	writeFiche(t, root, "2024/05/09-sans-date.md", "---\ntitle: Sans date\n---\n")

	stats, out := rebuild(t, root)
	assert.Equal(t, 5, stats.Entries)

	want := `# Veille technologique

## Mai 2024

- 2024-05-02 — [Zeta](2024/05/02-zeta.md)
- 2024-05-02 — [Alpha](2024/05/02-alpha.md)

## Avril 2024

- 2024-04-10 — [Avril](2024/04/10-avril.md)

## Date inconnue

- [Sans date](2024/05/09-sans-date.md)
- [Mystère](2024/05/09-mystere.md)
`
	assert.Equal(t, want, out)
}

func TestRebuild_SkipsCorruptFiles(t *testing.T) {
	root := t.TempDir()
	writeFiche(t, root, "2024/05/01-ok.md", doc("Valide", "2024-05-01"))
	writeFiche(t, root, "2024/05/02-bad-yaml.md", "---\ntitle: [unclosed\n---\nbody\n")
	writeFiche(t, root, "2024/05/03-no-header.md", "just text, no header\n")
	writeFiche(t, root, "2024/05/04-unterminated.md", "---\ntitle: Oups\n")
	writeFiche(t, root, "2024/05/05-notes.txt", "ignored")

	stats, out := rebuild(t, root)
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, 3, stats.Corrupt)
	assert.Equal(t, 4, stats.Scanned)
	assert.Contains(t, out, "[Valide]")
}

func TestRebuild_TitleFromHeading(t *testing.T) {
	root := t.TempDir()
	writeFiche(t, root, "2024/05/01-x.md", "---\ndate: 2024-05-01\n---\n\n# Titre du corps\n\ntexte\n")

	_, out := rebuild(t, root)
	assert.Contains(t, out, "[Titre du corps](2024/05/01-x.md)")
}

func TestRebuild_IgnoresItselfAndIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFiche(t, root, "2024/05/01-a.md", doc("A", "2024-05-01"))

	stats1, out1 := rebuild(t, root)
	stats2, out2 := rebuild(t, root)
	assert.Equal(t, out1, out2)
	assert.Equal(t, 1, stats2.Scanned)
	assert.Equal(t, stats1.Entries, stats2.Entries)
}

func TestRebuild_NoFichesYet(t *testing.T) {
	root := t.TempDir()
	stats, out := rebuild(t, root)
	assert.Equal(t, 0, stats.Entries)
	assert.True(t, strings.HasPrefix(out, "# Veille technologique\n"))
	assert.FileExists(t, filepath.Join(root, "fiches", "index.md"))
}

func TestParseDate(t *testing.T) {
	ts := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

	got, ok := ParseDate(ts)
	assert.True(t, ok)
	assert.Equal(t, ts, got)

	got, ok = ParseDate("2024-05-02T10:00:00Z")
	assert.True(t, ok)
	assert.Equal(t, ts, got)

	for _, bad := range []any{"2024-5-2", "", "hier", 20240502, nil} {
		_, ok := ParseDate(bad)
		assert.False(t, ok, "%v", bad)
	}
}

func TestMonthHeading(t *testing.T) {
	assert.Equal(t, "Août 2023", MonthHeading(time.Date(2023, 8, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "Décembre 2024", MonthHeading(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)))
}
