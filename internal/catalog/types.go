// Package catalog downloads, caches and parses the exoplanet parameter table
// and selects the bodies worth searching.
package catalog

import (
	"fmt"
	"time"

	"github.com/bmorris3/transitephem/internal/ephem"
	"github.com/bmorris3/transitephem/internal/transform"
)

// Record is one planet row of the catalog. Numeric fields the table leaves
// blank are zero.
type Record struct {
	Name       string  `json:"name"`
	RA         string  `json:"ra"`  // hh:mm:ss.s
	Dec        string  `json:"dec"` // ±dd:mm:ss.s
	Period     float64 `json:"period_days"`
	Epoch      float64 `json:"epoch_jd"`
	Duration   float64 `json:"duration_days"`
	V          float64 `json:"v_mag"`
	KS         float64 `json:"ks_mag"`
	Depth      float64 `json:"depth"`
	Transiting bool    `json:"transiting"`

	Mass          float64 `json:"mass_mj,omitempty"`
	Radius        float64 `json:"radius_rj,omitempty"`
	Separation    float64 `json:"separation_au,omitempty"`
	SemiMajorAxis float64 `json:"semi_major_axis_au,omitempty"`
	Distance      float64 `json:"distance_pc,omitempty"`
	Teff          float64 `json:"teff_k,omitempty"`
	SimbadURL     string  `json:"simbad_url,omitempty"`
	TransitURL    string  `json:"transit_url,omitempty"`
	OrbitRef      string  `json:"orbit_ref,omitempty"`
}

// Magnitude returns the magnitude in band "V" or "K".
func (r Record) Magnitude(band string) float64 {
	if band == "K" || band == "KS" {
		return r.KS
	}
	return r.V
}

// Body converts the record to the search representation.
func (r Record) Body() (ephem.Body, error) {
	ra, err := transform.HoursToRadians(r.RA)
	if err != nil {
		return ephem.Body{}, fmt.Errorf("%s: right ascension: %w", r.Name, err)
	}
	dec, err := transform.DegreesToRadians(r.Dec)
	if err != nil {
		return ephem.Body{}, fmt.Errorf("%s: declination: %w", r.Name, err)
	}
	return ephem.Body{
		Name:     r.Name,
		RA:       ra,
		Dec:      dec,
		Period:   r.Period,
		Epoch:    r.Epoch,
		Duration: r.Duration,
	}, nil
}

// Dataset is a complete parsed catalog from one download.
type Dataset struct {
	Source    string
	FetchedAt time.Time
	Records   map[string]Record
}

// Len returns the number of planets in the dataset.
func (d *Dataset) Len() int {
	return len(d.Records)
}
