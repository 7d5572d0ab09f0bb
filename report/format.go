package report

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/csmith/cratesync/model"
)

const timeFormat = "2006-01-02 15:04"

// WriteText writes a concise summary suitable for a terminal
func (r *Run) WriteText(w io.Writer) error {
	b := &strings.Builder{}
	rule := strings.Repeat("=", 42)

	fmt.Fprintf(b, "\n%s\n", rule)
	fmt.Fprintf(b, "  Sync report  %s\n", r.Started.Format(timeFormat))
	fmt.Fprintf(b, "  Mode: %s  |  Threshold: %d\n", r.mode(), r.Threshold)
	fmt.Fprintf(b, "%s\n", rule)

	for _, p := range r.Playlists {
		fmt.Fprintf(b, "\nPlaylist: %s  (%s)\n", p.Name, p.Reconcile.Action)
		fmt.Fprintf(b, "  Matched:  %d/%d (%.1f%%)\n", len(p.Matched()), p.Total(), p.MatchRate())

		if len(p.Matched()) > 0 {
			avg, lowest, highest := p.Scores()
			fmt.Fprintf(b, "  Scores:   avg %.1f  min %.1f  max %.1f\n", avg, lowest, highest)
			if n := p.Fallbacks(); n > 0 {
				fmt.Fprintf(b, "  Version fallbacks: %d\n", n)
			}
		}

		if unresolved := p.Unresolved(); len(unresolved) > 0 {
			fmt.Fprintf(b, "  Unmatched (%d):\n", len(unresolved))
			for _, t := range unresolved {
				fmt.Fprintf(b, "    - %s\n", t.Track.Display())
			}
		}

		fmt.Fprintf(b, "  Changes:  +%d -%d =%d\n", p.Reconcile.Added, p.Reconcile.Removed, p.Reconcile.Unchanged)
		fmt.Fprintf(b, "  Cache:    %d hits | %d lookups (%d searches) | %d retries\n", p.CacheHits(), p.Lookups(), p.Searches(), p.Retries())
	}

	matched, unresolved := r.Totals()
	thin := strings.Repeat("-", 42)
	fmt.Fprintf(b, "\n%s\n", thin)
	fmt.Fprintf(b, "  TOTALS: %d playlists | %d matched | %d unmatched\n", len(r.Playlists), matched, unresolved)
	fmt.Fprintf(b, "  Overall match rate: %.1f%%\n", r.MatchRate())
	if r.Err != nil {
		fmt.Fprintf(b, "  Stopped early: %v\n", r.Err)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(b, "  Warning: %s\n", w)
	}
	fmt.Fprintf(b, "%s\n", thin)

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteMarkdown writes a detailed report including every match
func (r *Run) WriteMarkdown(w io.Writer) error {
	b := &strings.Builder{}

	fmt.Fprintf(b, "# Sync report: %s\n\n", r.Started.Format(timeFormat))
	fmt.Fprintf(b, "**Mode:** %s | **Threshold:** %d\n\n", r.mode(), r.Threshold)
	if r.Err != nil {
		fmt.Fprintf(b, "**Stopped early:** %s\n\n", escape(r.Err.Error()))
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(b, "**Warning:** %s\n\n", escape(w))
	}

	for _, p := range r.Playlists {
		fmt.Fprintf(b, "## %s (%s)\n\n", escape(p.Name), p.Reconcile.Action)
		fmt.Fprintf(b, "**Matched:** %d/%d (%.1f%%)", len(p.Matched()), p.Total(), p.MatchRate())
		if len(p.Matched()) > 0 {
			avg, lowest, highest := p.Scores()
			fmt.Fprintf(b, " | **Scores:** avg %.1f, min %.1f, max %.1f", avg, lowest, highest)
		}
		if n := p.Fallbacks(); n > 0 {
			fmt.Fprintf(b, " | **Version fallbacks:** %d", n)
		}
		fmt.Fprintf(b, "\n\n**Changes:** %d added, %d removed, %d unchanged", p.Reconcile.Added, p.Reconcile.Removed, p.Reconcile.Unchanged)
		if p.Reconcile.MembersUnknown {
			b.WriteString(" (current contents unknown)")
		}
		b.WriteString("\n\n")

		if matched := p.Matched(); len(matched) > 0 {
			fmt.Fprintf(b, "| %s | Match | Score | Type |\n", sourceLabel(p.SourceType))
			b.WriteString("|---|---|---|---|\n")
			for _, t := range matched {
				writeMatchRow(b, t)
			}
			b.WriteString("\n")
		}

		if low := p.LowConfidence(); len(low) > 0 {
			fmt.Fprintf(b, "### Low confidence (%d)\n\n", len(low))
			b.WriteString("| Track | Match | Score | Type |\n")
			b.WriteString("|---|---|---|---|\n")
			for _, t := range low {
				writeMatchRow(b, t)
			}
			b.WriteString("\n")
		}

		if unresolved := p.Unresolved(); len(unresolved) > 0 {
			fmt.Fprintf(b, "### Unmatched (%d)\n\n", len(unresolved))
			for _, t := range unresolved {
				fmt.Fprintf(b, "- %s\n", escape(t.Track.Display()))
			}
			b.WriteString("\n")
		}
	}

	matched, unresolved := r.Totals()
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(b, "- Playlists: %d\n", len(r.Playlists))
	fmt.Fprintf(b, "- Matched: %d\n", matched)
	fmt.Fprintf(b, "- Unmatched: %d\n", unresolved)
	fmt.Fprintf(b, "- Match rate: %.1f%%\n", r.MatchRate())

	_, err := io.WriteString(w, b.String())
	return err
}

// SaveMarkdown writes the Markdown report to a file
func (r *Run) SaveMarkdown(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if err := r.WriteMarkdown(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeMatchRow(b *strings.Builder, t Track) {
	fmt.Fprintf(b, "| %s | %s - %s | %.1f | %s |\n",
		escape(t.Track.Display()),
		escape(t.Outcome.Artist),
		escape(t.Outcome.Name),
		t.Outcome.Score,
		t.Outcome.MatchType,
	)
}

func sourceLabel(s model.SourceType) string {
	if s == "" {
		return "Track"
	}
	return s.Label()
}

var markdownEscaper = strings.NewReplacer("|", `\|`, "\n", " ")

func escape(s string) string {
	return markdownEscaper.Replace(s)
}
