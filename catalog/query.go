package catalog

import "strings"

// Query describes a single catalog track search
type Query struct {
	Artist string
	Title  string

	// Extra is appended to the query as an unqualified term.
	Extra string

	// Plain searches without field qualifiers, which is more forgiving of
	// misspelled metadata.
	Plain bool
}

// String renders the query in catalog search syntax
func (q Query) String() string {
	var parts []string
	if q.Plain {
		parts = appendNonEmpty(parts, q.Artist, q.Title, q.Extra)
		return strings.Join(parts, " ")
	}

	if q.Artist != "" {
		parts = append(parts, "artist:"+q.Artist)
	}
	if q.Title != "" {
		parts = append(parts, "track:"+q.Title)
	}
	parts = appendNonEmpty(parts, q.Extra)
	return strings.Join(parts, " ")
}

func appendNonEmpty(parts []string, values ...string) []string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return parts
}
