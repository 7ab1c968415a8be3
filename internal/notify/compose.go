// Package notify composes short "transiting now" summaries and delivers
// them when their transit comes around.
package notify

import (
	"fmt"
	"math/rand/v2"

	"github.com/bmorris3/transitephem/internal/catalog"
)

// DefaultMaxLength is the longest summary composed.
const DefaultMaxLength = 140

const (
	earthRadiusM   = 6378100.0
	jupiterRadiusM = 69911000.0
	lyPerParsec    = 3.262
	solarTeffK     = 5780.0
	mercuryAxisAU  = 0.387
	earthAxisAU    = 1.0
)

// phrases are the optional clauses of a summary; empty when the catalog has
// no value for them.
type phrases struct {
	planet   string
	distance string
	teff     string
	size     string
	period   string
	axis     string
}

func describe(r catalog.Record) phrases {
	p := phrases{
		planet: r.Name + " is transiting now",
		period: fmt.Sprintf("transits again in %.1f days", r.Period),
	}
	if r.Distance > 0 {
		p.distance = fmt.Sprintf("%d ly away", int(r.Distance*lyPerParsec))
	}
	switch {
	case r.Teff <= 0:
	case r.Teff < solarTeffK:
		p.teff = fmt.Sprintf("star is %d degrees C cooler than the Sun", int(solarTeffK-r.Teff))
	case r.Teff > solarTeffK:
		p.teff = fmt.Sprintf("star is %d degrees C hotter than the Sun", int(r.Teff-solarTeffK))
	}
	switch earthInJupiter := earthRadiusM / jupiterRadiusM; {
	case r.Radius <= 0:
		p.size = "of unknown size"
	case r.Radius > 1:
		p.size = fmt.Sprintf("%.1fx larger than Jupiter", r.Radius)
	case r.Radius > earthInJupiter:
		p.size = fmt.Sprintf("%.1fx larger than Earth", r.Radius/earthInJupiter)
	default:
		p.size = fmt.Sprintf("%.1fx the size of Earth", r.Radius/earthInJupiter)
	}
	switch a := r.SemiMajorAxis; {
	case a <= 0:
	case a < mercuryAxisAU:
		p.axis = fmt.Sprintf("orbits its star %.1fx closer than Mercury orbits the Sun", mercuryAxisAU/a)
	case a > mercuryAxisAU && a < earthAxisAU:
		p.axis = fmt.Sprintf("orbits its star %.1fx closer than Earth orbits the Sun", earthAxisAU/a)
	}
	return p
}

// Compose writes a summary of r no longer than maxLen characters. Among the
// candidate sentences that fit and have all their facts, one is picked with
// rng, or the global source when rng is nil. It reports false when not even
// the shortest sentence fits.
func Compose(r catalog.Record, maxLen int, rng *rand.Rand) (string, bool) {
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	p := describe(r)

	withPeriod := fmt.Sprintf("%s %s. It's %s and %s.", p.planet, p.distance, p.size, p.period)
	short := fmt.Sprintf("%s. It's %s and %s.", p.planet, p.size, p.period)
	withTeff := fmt.Sprintf("%s %s. It's %s and its %s.", p.planet, p.distance, p.size, p.teff)
	withAxis := fmt.Sprintf("%s %s. It's %s and %s.", p.planet, p.distance, p.size, p.axis)
	shortAxis := fmt.Sprintf("%s. It's %s and %s.", p.planet, p.size, p.axis)

	fits := func(s string) bool { return len(s) <= maxLen }
	hasDistance := p.distance != "" && fits(withPeriod)
	hasTeff := p.teff != "" && fits(withTeff)

	var choices []string
	switch {
	case hasDistance && hasTeff && p.axis != "" && fits(withAxis):
		choices = []string{withPeriod, withTeff, withAxis}
	case hasDistance && hasTeff:
		choices = []string{withPeriod, short, withTeff}
	case hasDistance:
		choices = []string{withPeriod}
	case p.axis != "" && fits(shortAxis):
		choices = []string{short, shortAxis}
	default:
		choices = []string{short}
	}

	var text string
	if rng != nil {
		text = choices[rng.IntN(len(choices))]
	} else {
		text = choices[rand.IntN(len(choices))]
	}
	if !fits(text) {
		return "", false
	}
	return text, true
}
