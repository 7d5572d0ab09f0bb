package reconcile

// SegmentResult partitions the members of a playlist
type SegmentResult struct {
	// Matched are desired members already present, in desired order.
	Matched []string
	// Missing are desired members not present, in desired order.
	Missing []string
	// Extra are present members that aren't desired, in actual order.
	Extra []string
}

// Segment compares the desired members of a playlist against its actual
// members. Duplicates are reported once.
func Segment(desired []string, actual []string) SegmentResult {
	result := SegmentResult{
		Matched: make([]string, 0),
		Missing: make([]string, 0),
		Extra:   make([]string, 0),
	}

	present := make(map[string]bool, len(actual))
	for _, uri := range actual {
		present[uri] = true
	}

	wanted := make(map[string]bool, len(desired))
	for _, uri := range desired {
		if wanted[uri] {
			continue
		}
		wanted[uri] = true

		if present[uri] {
			result.Matched = append(result.Matched, uri)
		} else {
			result.Missing = append(result.Missing, uri)
		}
	}

	reported := make(map[string]bool)
	for _, uri := range actual {
		if !wanted[uri] && !reported[uri] {
			reported[uri] = true
			result.Extra = append(result.Extra, uri)
		}
	}

	return result
}

// Dedupe returns uris with repeats removed, keeping the first occurrence
func Dedupe(uris []string) []string {
	seen := make(map[string]bool, len(uris))
	res := make([]string, 0, len(uris))
	for _, uri := range uris {
		if !seen[uri] {
			seen[uri] = true
			res = append(res, uri)
		}
	}
	return res
}
