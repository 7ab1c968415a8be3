// Package report turns search results into the CSV and HTML event reports.
package report

import (
	"math"
	"time"

	"github.com/nathan-osman/go-sunrise"

	"github.com/bmorris3/transitephem/internal/catalog"
	"github.com/bmorris3/transitephem/internal/ephem"
	"github.com/bmorris3/transitephem/internal/transform"
)

// Options describe the site and presentation of a report.
type Options struct {
	Observatory      string
	LatDeg, LonDeg   float64
	Band             string
	LocalOffsetHours float64 // 0 renders UT only
	RunID            string
	Generated        time.Time
}

// Row is one event with the catalog data shown next to it.
type Row struct {
	Event  ephem.Event
	Record catalog.Record
	// Gap is the dark time between the previous event's egress and this
	// event's ingress, zero for the first event of the night or when the
	// two overlap.
	Gap time.Duration
}

// Ingress is the UT start of the event.
func (r Row) Ingress() time.Time { return transform.TimeFromJulian(r.Event.IngressJD()) }

// Egress is the UT end of the event.
func (r Row) Egress() time.Time { return transform.TimeFromJulian(r.Event.EgressJD()) }

// Night groups the rows of one day bucket in time order.
type Night struct {
	Day     int
	Date    time.Time // local calendar date of the evening
	Sunset  time.Time // zero when the Sun does not set
	Sunrise time.Time // next morning; zero when the Sun does not rise
	Rows    []Row
}

// Report is a complete event report.
type Report struct {
	Options
	Window   ephem.Window
	Start    time.Time
	End      time.Time
	Nights   []Night
	NeverUp  []string
	Events   int
	Transits int
	Eclipses int
}

// Build assembles a report from a search result. records supplies the catalog
// columns; events for bodies missing from records keep an empty record.
func Build(res *ephem.Result, records map[string]catalog.Record, opts Options) *Report {
	if opts.Generated.IsZero() {
		opts.Generated = time.Now().UTC()
	}
	rep := &Report{
		Options: opts,
		Window:  res.Window,
		Start:   transform.TimeFromJulian(res.Window.Start),
		End:     transform.TimeFromJulian(res.Window.End),
		NeverUp: res.NeverUp,
	}

	for night := range res.Nights.All() {
		events := night.Chronological()
		n := Night{Day: night.Day}
		n.Date, n.Sunset, n.Sunrise = darkness(events[0].Mid, opts.LatDeg, opts.LonDeg)

		var prevEgress float64
		for i, e := range events {
			row := Row{Event: e, Record: records[e.Body]}
			if i > 0 && e.IngressJD() > prevEgress {
				row.Gap = julianDuration(e.IngressJD() - prevEgress)
			}
			prevEgress = math.Max(prevEgress, e.EgressJD())
			n.Rows = append(n.Rows, row)

			rep.Events++
			if e.Kind == ephem.Transit {
				rep.Transits++
			} else {
				rep.Eclipses++
			}
		}
		rep.Nights = append(rep.Nights, n)
	}
	return rep
}

// darkness returns the local evening date of the night containing jd at the
// site, with that evening's sunset and the following sunrise.
func darkness(jd, latDeg, lonDeg float64) (date, set, rise time.Time) {
	// Local mean solar time, shifted back half a day so that a whole night
	// maps onto the date it started.
	solar := transform.TimeFromJulian(jd).Add(time.Duration((lonDeg/15 - 12) * float64(time.Hour)))
	date = time.Date(solar.Year(), solar.Month(), solar.Day(), 0, 0, 0, 0, time.UTC)

	_, set = sunrise.SunriseSunset(latDeg, lonDeg, date.Year(), date.Month(), date.Day())
	next := date.AddDate(0, 0, 1)
	rise, _ = sunrise.SunriseSunset(latDeg, lonDeg, next.Year(), next.Month(), next.Day())
	return date, set, rise
}

func julianDuration(days float64) time.Duration {
	return time.Duration(days * 24 * float64(time.Hour)).Round(time.Minute)
}
