package matcher

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/agnivade/levenshtein"
)

// ratio returns the Levenshtein similarity of two strings, from 0 to 100
func ratio(a, b string) float64 {
	if a == b {
		return 100
	}

	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	distance := levenshtein.ComputeDistance(a, b)
	return math.Max(0, 100*(1-float64(distance)/float64(longest)))
}

// tokenSortRatio compares two strings after sorting their words, so that
// word order doesn't affect the result
func tokenSortRatio(a, b string) float64 {
	return ratio(sortTokens(a), sortTokens(b))
}

func sortTokens(s string) string {
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// artistSimilarity compares two normalised artist strings. Credits where one
// side lists a subset of the other's artists are treated as a full match,
// as catalogs and libraries disagree on how many collaborators to credit.
func artistSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		if a == b {
			return 100
		}
		return 0
	}

	namesA, namesB := artistNames(a), artistNames(b)
	if containsAll(namesA, namesB) || containsAll(namesB, namesA) {
		return 100
	}

	dice := metrics.NewSorensenDice()
	return math.Max(tokenSortRatio(a, b), 100*strutil.Similarity(a, b, dice))
}

func artistNames(s string) []string {
	return strings.Split(s, ", ")
}

// containsAll reports whether every item in needles is present in haystack
func containsAll(haystack, needles []string) bool {
	for _, needle := range needles {
		found := false
		for _, item := range haystack {
			if item == needle {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
