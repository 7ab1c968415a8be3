// Package astrometry answers "where is it in my sky" for fixed stars and the
// Sun: apparent altitude and azimuth for one observer at a Julian Date.
package astrometry

import (
	"fmt"
	"math"

	"github.com/bmorris3/transitephem/internal/transform"
)

// NeverUpError reports a target that never rises above the observer's
// horizon, whatever the time of day.
type NeverUpError struct {
	CulminationDeg float64 // apparent altitude at upper culmination
	HorizonDeg     float64
}

func (e *NeverUpError) Error() string {
	return fmt.Sprintf("never above horizon: culminates at %.2f deg, horizon is %.2f deg", e.CulminationDeg, e.HorizonDeg)
}

// Engine computes look angles for a single observer.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	obs        transform.Observer
	horizonDeg float64
}

// New creates an Engine for obs. horizonDeg is the minimum altitude a target
// must reach at culmination; lower targets yield a *NeverUpError.
func New(obs transform.Observer, horizonDeg float64) *Engine {
	return &Engine{obs: obs, horizonDeg: horizonDeg}
}

// Observer returns the observer this engine computes for.
func (e *Engine) Observer() transform.Observer {
	return e.obs
}

// Target returns the apparent position of a fixed star given by its J2000
// right ascension and declination in radians.
func (e *Engine) Target(raRad, decRad, jd float64) (transform.LookAngles, error) {
	if err := checkJD(jd); err != nil {
		return transform.LookAngles{}, err
	}
	ra, dec := transform.Precess(raRad, decRad, jd)

	culm := transform.CulminationDeg(e.obs, dec)
	culm += transform.Refraction(culm, e.obs.PressureMbar, e.obs.TemperatureC)
	if culm <= e.horizonDeg {
		return transform.LookAngles{}, &NeverUpError{CulminationDeg: culm, HorizonDeg: e.horizonDeg}
	}

	return transform.EquatorialToLookAngles(e.obs, ra, dec, jd), nil
}

// Sun returns the apparent position of the Sun.
func (e *Engine) Sun(jd float64) (transform.LookAngles, error) {
	if err := checkJD(jd); err != nil {
		return transform.LookAngles{}, err
	}
	return transform.SunLookAngles(e.obs, jd), nil
}

func checkJD(jd float64) error {
	if math.IsNaN(jd) || math.IsInf(jd, 0) {
		return fmt.Errorf("invalid julian date %v", jd)
	}
	return nil
}
