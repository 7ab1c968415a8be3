package ephem

import (
	"fmt"

	"github.com/bmorris3/transitephem/internal/transform"
)

// Sky supplies apparent positions for one observer. Target reports a body
// that can never clear the horizon with a *astrometry.NeverUpError.
type Sky interface {
	Target(raRad, decRad, jd float64) (transform.LookAngles, error)
	Sun(jd float64) (transform.LookAngles, error)
}

// Body is the subset of a catalog record the search needs.
type Body struct {
	Name     string
	RA, Dec  float64 // J2000, radians
	Period   float64 // days
	Epoch    float64 // mid-transit Julian Date
	Duration float64 // full transit duration, days
}

// Visibility holds the body's position at both ends of an event.
type Visibility struct {
	Ingress transform.LookAngles
	Egress  transform.LookAngles
}

// Filter applies the above-horizon and dark-sky predicates. Both must hold
// at ingress and at egress.
type Filter struct {
	sky         Sky
	horizonDeg  float64
	twilightDeg float64
}

// NewFilter creates a Filter. horizonDeg is the minimum body altitude,
// twilightDeg the Sun altitude the sky must be darker than (e.g. -12).
func NewFilter(sky Sky, horizonDeg, twilightDeg float64) *Filter {
	return &Filter{sky: sky, horizonDeg: horizonDeg, twilightDeg: twilightDeg}
}

// AboveHorizon reports whether both positions are strictly above the minimum altitude.
func (f *Filter) AboveHorizon(ingress, egress transform.LookAngles) bool {
	return ingress.AltitudeDeg > f.horizonDeg && egress.AltitudeDeg > f.horizonDeg
}

// DarkSky reports whether the Sun is strictly below the twilight threshold at both instants.
func (f *Filter) DarkSky(sunIngress, sunEgress transform.LookAngles) bool {
	return sunIngress.AltitudeDeg < f.twilightDeg && sunEgress.AltitudeDeg < f.twilightDeg
}

// Observable evaluates the body between ingressJD and egressJD. The Sun is
// only computed once the body passes the horizon test. The body positions
// are returned whether or not the event is observable. Errors from the sky
// are returned unchanged in the chain so callers can match them.
func (f *Filter) Observable(b Body, ingressJD, egressJD float64) (Visibility, bool, error) {
	in, err := f.sky.Target(b.RA, b.Dec, ingressJD)
	if err != nil {
		return Visibility{}, false, fmt.Errorf("position of %s at %.5f: %w", b.Name, ingressJD, err)
	}
	out, err := f.sky.Target(b.RA, b.Dec, egressJD)
	if err != nil {
		return Visibility{}, false, fmt.Errorf("position of %s at %.5f: %w", b.Name, egressJD, err)
	}
	vis := Visibility{Ingress: in, Egress: out}
	if !f.AboveHorizon(in, out) {
		return vis, false, nil
	}

	sunIn, err := f.sky.Sun(ingressJD)
	if err != nil {
		return Visibility{}, false, fmt.Errorf("sun at %.5f: %w", ingressJD, err)
	}
	sunOut, err := f.sky.Sun(egressJD)
	if err != nil {
		return Visibility{}, false, fmt.Errorf("sun at %.5f: %w", egressJD, err)
	}
	if !f.DarkSky(sunIn, sunOut) {
		return vis, false, nil
	}

	return vis, true, nil
}
