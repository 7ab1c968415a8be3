package ephem

import (
	"cmp"
	"iter"
	"maps"
	"slices"

	"github.com/bmorris3/transitephem/internal/transform"
)

// Position is the apparent position of a body at ingress or egress.
type Position struct {
	AltitudeDeg float64 `json:"altitude_deg"`
	AzimuthDeg  float64 `json:"azimuth_deg"`
	Direction   string  `json:"direction"`
}

func positionOf(la transform.LookAngles) Position {
	return Position{
		AltitudeDeg: la.AltitudeDeg,
		AzimuthDeg:  la.AzimuthDeg,
		Direction:   transform.Direction(la.AzimuthDeg),
	}
}

// Event is one observable transit or eclipse.
type Event struct {
	Body         string   `json:"body"`
	Kind         Kind     `json:"kind"`
	Mid          float64  `json:"mid_jd"`
	HalfDuration float64  `json:"half_duration_days"`
	Ingress      Position `json:"ingress"`
	Egress       Position `json:"egress"`
}

// IngressJD is the start of the event.
func (e Event) IngressJD() float64 { return e.Mid - e.HalfDuration }

// EgressJD is the end of the event.
func (e Event) EgressJD() float64 { return e.Mid + e.HalfDuration }

// Duration is the full event length in days.
func (e Event) Duration() float64 { return 2 * e.HalfDuration }

// Night is the list of events whose mid-time falls within one day bucket.
type Night struct {
	Day    int     `json:"day"`
	Events []Event `json:"events"`
}

// Chronological returns the night's events ordered by ingress time. Ties
// fall back to mid-time, then transits before eclipses, then body name.
func (n Night) Chronological() []Event {
	out := slices.Clone(n.Events)
	slices.SortStableFunc(out, func(a, b Event) int {
		return cmp.Or(
			cmp.Compare(a.IngressJD(), b.IngressJD()),
			cmp.Compare(a.Mid, b.Mid),
			cmp.Compare(a.Kind, b.Kind),
			cmp.Compare(a.Body, b.Body),
		)
	})
	return out
}

// Nights maps integer day keys to the events of that day, in arrival order.
// It is not safe for concurrent mutation.
type Nights struct {
	days map[int][]Event
}

// NewNights returns an empty mapping.
func NewNights() *Nights {
	return &Nights{days: make(map[int][]Event)}
}

// Add appends e to day, creating the day on first use.
func (n *Nights) Add(day int, e Event) {
	n.days[day] = append(n.days[day], e)
}

// Merge appends every event of other after the events already held for the same day.
func (n *Nights) Merge(other *Nights) {
	for _, day := range other.Days() {
		n.days[day] = append(n.days[day], other.days[day]...)
	}
}

// Prune drops days without events.
func (n *Nights) Prune() {
	maps.DeleteFunc(n.days, func(_ int, events []Event) bool {
		return len(events) == 0
	})
}

// Days returns the day keys in ascending order.
func (n *Nights) Days() []int {
	return slices.Sorted(maps.Keys(n.days))
}

// Events returns the events recorded for day.
func (n *Nights) Events(day int) []Event {
	return n.days[day]
}

// Len returns the number of days held.
func (n *Nights) Len() int {
	return len(n.days)
}

// Count returns the total number of events across all days.
func (n *Nights) Count() int {
	total := 0
	for _, events := range n.days {
		total += len(events)
	}
	return total
}

// All iterates the nights in ascending day order.
func (n *Nights) All() iter.Seq[Night] {
	return func(yield func(Night) bool) {
		for _, day := range n.Days() {
			if !yield(Night{Day: day, Events: n.days[day]}) {
				return
			}
		}
	}
}

// List returns the nights in ascending day order.
func (n *Nights) List() []Night {
	return slices.Collect(n.All())
}
