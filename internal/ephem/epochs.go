// Package ephem enumerates periodic transit and eclipse events and decides
// which of them an observatory can actually watch.
package ephem

import (
	"errors"
	"fmt"
	"iter"
	"math"
)

// Kind distinguishes primary transits from secondary eclipses.
type Kind int

const (
	Transit Kind = iota
	Eclipse
)

func (k Kind) String() string {
	switch k {
	case Transit:
		return "transit"
	case Eclipse:
		return "eclipse"
	default:
		return "unknown"
	}
}

// MarshalText renders the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// phase is the orbital phase offset of the event from the transit epoch.
func (k Kind) phase() float64 {
	if k == Eclipse {
		return 0.5
	}
	return 0
}

// ErrInvalidWindow is returned for windows that are empty, reversed or non-finite.
var ErrInvalidWindow = errors.New("invalid search window")

// Window is a search interval in Julian Dates. Events strictly between Start
// and End are reported.
type Window struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Validate checks that the window is finite and Start < End.
func (w Window) Validate() error {
	for _, v := range []float64{w.Start, w.End} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite bound %v", ErrInvalidWindow, v)
		}
	}
	if w.Start >= w.End {
		return fmt.Errorf("%w: start %.5f is not before end %.5f", ErrInvalidWindow, w.Start, w.End)
	}
	return nil
}

// Contains reports whether jd lies strictly inside the window.
func (w Window) Contains(jd float64) bool {
	return jd > w.Start && jd < w.End
}

// maxEpochIndex bounds epoch indices so they convert to int safely.
const maxEpochIndex = 1 << 40

// epochRange returns the inclusive range of epoch numbers n >= 0 whose
// events can fall inside w, padded by one epoch on each side.
func epochRange(kind Kind, tc, period float64, w Window) (first, last int, ok bool) {
	if period <= 0 || tc == 0 || math.IsNaN(period) || math.IsNaN(tc) || math.IsInf(period, 0) || math.IsInf(tc, 0) {
		return 0, 0, false
	}

	lo := math.Floor((w.Start-tc)/period-kind.phase()) - 1
	hi := math.Ceil((w.End-tc)/period-kind.phase()) + 1
	lo = math.Max(lo, 0)
	if hi < lo || math.IsNaN(lo) || math.IsNaN(hi) || hi > maxEpochIndex {
		return 0, 0, false
	}
	return int(lo), int(hi), true
}

// EpochCount returns how many epochs must be generated to cover w for a body
// with transit epoch tc and the given period. It is zero when the body has no
// usable ephemeris and math.MaxInt when the range is too large to enumerate.
func EpochCount(tc, period float64, w Window) int {
	if period <= 0 || tc == 0 {
		return 0
	}
	if span := (w.End - tc) / period; span > maxEpochIndex || math.IsNaN(span) || math.IsInf(span, 0) {
		return math.MaxInt
	}
	first, last, ok := epochRange(Transit, tc, period, w)
	if !ok {
		return 0
	}
	return last - first + 1
}

// Epochs yields the mid-event Julian Dates of kind inside the open window,
// in ascending order: tc + period*n for transits and tc + period*(n+0.5)
// for eclipses, n = 0, 1, 2, ...
//
// A non-positive period or an unset (zero) epoch yields nothing. The
// sequence holds no state between iterations and may be ranged over again.
func Epochs(kind Kind, tc, period float64, w Window) iter.Seq[float64] {
	return func(yield func(float64) bool) {
		first, last, ok := epochRange(kind, tc, period, w)
		if !ok {
			return
		}
		for n := first; n <= last; n++ {
			t := tc + period*(float64(n)+kind.phase())
			if !w.Contains(t) {
				continue
			}
			if !yield(t) {
				return
			}
		}
	}
}
