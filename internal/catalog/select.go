package catalog

import (
	"cmp"
	"log/slog"
	"maps"
	"slices"

	"github.com/bmorris3/transitephem/internal/ephem"
)

// Selection limits which planets are searched.
type Selection struct {
	Band       string  // "V" or "K"
	MagLimit   float64 // faintest magnitude accepted
	DepthLimit float64 // shallowest depth accepted
}

// Accept reports whether r is a transiting planet with a known epoch, a
// measured magnitude and depth, and is bright and deep enough.
func (s Selection) Accept(r Record) bool {
	mag := r.Magnitude(s.Band)
	return r.Transiting &&
		r.Epoch != 0 &&
		mag != 0 && r.Depth != 0 &&
		mag <= s.MagLimit &&
		r.Depth >= s.DepthLimit
}

// Select returns the accepted records ordered by name.
func Select(records map[string]Record, s Selection) []Record {
	var out []Record
	for _, name := range slices.Sorted(maps.Keys(records)) {
		if r := records[name]; s.Accept(r) {
			out = append(out, r)
		}
	}
	return out
}

// Bodies converts records for the search. Records with unreadable
// coordinates are logged and left out.
func Bodies(records []Record, logger *slog.Logger) []ephem.Body {
	bodies := make([]ephem.Body, 0, len(records))
	for _, r := range records {
		b, err := r.Body()
		if err != nil {
			logger.Warn("skipping planet with bad coordinates", "planet", r.Name, "error", err)
			continue
		}
		bodies = append(bodies, b)
	}
	slices.SortFunc(bodies, func(a, b ephem.Body) int { return cmp.Compare(a.Name, b.Name) })
	return bodies
}
