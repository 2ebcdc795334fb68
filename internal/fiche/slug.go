package fiche

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// MaxSlugLen caps the slug part of a fiche file name.
const MaxSlugLen = 80

// DefaultSlug is used when a title has no transliterable characters.
const DefaultSlug = "fiche"

// Letters that do not decompose into a base letter plus combining marks.
var ligatures = strings.NewReplacer(
	"œ", "oe", "Œ", "oe",
	"æ", "ae", "Æ", "ae",
	"ß", "ss",
	"ø", "o", "Ø", "o",
	"đ", "d", "Đ", "d",
	"ł", "l", "Ł", "l",
)

// Slugify turns a title into a file-name-safe identifier made of lowercase
// ASCII letters, digits and single hyphens.
func Slugify(title string) string {
	chain := transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		width.Fold,
	)
	folded, _, err := transform.String(chain, ligatures.Replace(title))
	if err != nil {
		folded = title
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	pendingHyphen := false
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		pendingHyphen = true
	}

	slug := b.String()
	if len(slug) > MaxSlugLen {
		slug = strings.TrimRight(slug[:MaxSlugLen], "-")
	}
	if slug == "" {
		return DefaultSlug
	}
	return slug
}
