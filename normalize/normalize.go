// Package normalize provides the string canonicalisation shared by the
// matcher and the match cache.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	regionTag      = regexp.MustCompile(`\s*\(([A-Z]{2,3})\)`)
	bracketTag     = regexp.MustCompile(`\s*\[[^\]]*\]`)
	bracketedFeat  = regexp.MustCompile(`\s*\((?:feat|ft|featuring)\b[^)]*\)`)
	trailingFeat   = regexp.MustCompile(`\s+(?:feat|ft|featuring)\b.*$`)
	xSeparator     = regexp.MustCompile(`(?:\s+x)+\s+`)
	ampersand      = regexp.MustCompile(`\s*&\s*`)
	commaSeparator = regexp.MustCompile(`\s*(?:,\s*)+`)
)

// letters that don't decompose into a base letter plus a combining mark
var foldReplacer = strings.NewReplacer(
	"ø", "o",
	"æ", "ae",
	"œ", "oe",
	"ß", "ss",
	"đ", "d",
	"ł", "l",
	"þ", "th",
)

// Normalize lower-cases s, folds diacritics, removes region and label tags
// and featured artist credits, and canonicalises multi-artist separators to
// ", ". Normalize(Normalize(s)) == Normalize(s) for all s.
func Normalize(s string) string {
	s = regionTag.ReplaceAllStringFunc(s, func(m string) string {
		tag := regionTag.FindStringSubmatch(m)[1]
		if isVersionWord(strings.ToLower(tag)) {
			return m
		}
		return ""
	})
	s = bracketTag.ReplaceAllString(s, "")
	s = strings.ToLower(s)
	s = Fold(s)
	s = bracketedFeat.ReplaceAllString(s, "")
	s = xSeparator.ReplaceAllString(s, ", ")
	s = ampersand.ReplaceAllString(s, ", ")
	s = commaSeparator.ReplaceAllString(s, ", ")
	s = trailingFeat.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, " ,")
}

// Fold strips diacritics, mapping accented letters to their base Latin form.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return foldReplacer.Replace(folded)
}

// Key returns the cache identity for an artist and title. Cosmetically
// different spellings of the same track share a key.
func Key(artist, title string) string {
	return Normalize(artist) + "||" + Normalize(title)
}

// Simplify lower-cases s and collapses whitespace, without any of the other
// transformations Normalize applies.
func Simplify(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
