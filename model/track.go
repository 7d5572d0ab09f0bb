package model

// LocalTrack represents a track from a local library or scraped listing
type LocalTrack struct {
	ID        string
	Artist    string
	Title     string
	Remixer   string
	Album     string
	Label     string
	Genre     string
	DateAdded string

	// Duration is the length of the track in seconds, or zero if unknown.
	Duration int
}

// Display returns the track in "Artist - Title" form
func (t LocalTrack) Display() string {
	if t.Artist == "" {
		return t.Title
	}
	return t.Artist + " - " + t.Title
}

// Candidate is a single catalog search result
type Candidate struct {
	URI        string
	Name       string
	Artist     string
	Album      string
	DurationMS int
}
