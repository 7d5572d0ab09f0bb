package normalize

import (
	"regexp"
	"strings"
	"unicode"
)

// versionWords is the vocabulary that marks a title segment as describing a
// particular cut of a track.
var versionWords = map[string]bool{
	"mix":          true,
	"remix":        true,
	"edit":         true,
	"version":      true,
	"dub":          true,
	"extended":     true,
	"radio":        true,
	"instrumental": true,
	"short":        true,
	"rework":       true,
	"bootleg":      true,
	"vip":          true,
	"reprise":      true,
}

var originalDescriptors = map[string]bool{
	"original":         true,
	"original mix":     true,
	"original version": true,
}

var groupSegment = regexp.MustCompile(`\s*[(\[]([^()\[\]]*)[)\]]`)

func isVersionWord(word string) bool {
	return versionWords[word]
}

func hasVersionWord(s string) bool {
	for _, word := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if versionWords[word] {
			return true
		}
	}
	return false
}

// Descriptors returns the version descriptors found in a title, such as
// "joris voorn remix" or "extended mix". Both bracketed segments and a
// trailing " - " segment are examined. The result is normalised,
// de-duplicated, and in order of appearance.
func Descriptors(title string) []string {
	var found []string
	seen := make(map[string]bool)

	add := func(segment string) {
		if !hasVersionWord(segment) {
			return
		}
		desc := Normalize(segment)
		if desc == "" || seen[desc] {
			return
		}
		seen[desc] = true
		found = append(found, desc)
	}

	for _, m := range groupSegment.FindAllStringSubmatch(title, -1) {
		add(m[1])
	}

	if _, suffix, ok := hyphenSuffix(groupSegment.ReplaceAllString(title, "")); ok {
		add(suffix)
	}

	return found
}

// IsNamedVariant reports whether a descriptor identifies a cut other than
// the original.
func IsNamedVariant(desc string) bool {
	desc = Simplify(desc)
	return desc != "" && !originalDescriptors[desc]
}

// NamedVariants returns the descriptors of a title that identify a
// non-original cut.
func NamedVariants(title string) []string {
	var named []string
	for _, desc := range Descriptors(title) {
		if IsNamedVariant(desc) {
			named = append(named, desc)
		}
	}
	return named
}

// StripVersion removes version segments and bracketed label tags from a
// title, leaving the base title. Bracketed segments that aren't version
// descriptors (for example "(Live)") are kept.
func StripVersion(title string) string {
	s := groupSegment.ReplaceAllStringFunc(title, func(m string) string {
		inner := groupSegment.FindStringSubmatch(m)[1]
		if strings.HasPrefix(strings.TrimSpace(m), "[") || hasVersionWord(inner) {
			return ""
		}
		return m
	})

	if base, suffix, ok := hyphenSuffix(s); ok && hasVersionWord(suffix) {
		s = base
	}

	return strings.TrimSpace(s)
}

// hyphenSuffix splits "Title - Suffix" on the last spaced hyphen.
func hyphenSuffix(s string) (string, string, bool) {
	i := strings.LastIndex(s, " - ")
	if i == -1 {
		return s, "", false
	}
	return s[:i], strings.TrimSpace(s[i+3:]), true
}
