package report

import (
	"encoding/csv"
	"fmt"
	"io"
)

// csvHeader returns the column labels; the magnitude column is named after the band.
func csvHeader(band string) []string {
	return []string{
		"Planet", "Event",
		"Ingress Date", "Ingress Time (UT)", "Altitude at Ingress", "Azimuth at Ingress",
		"Egress Date", "Egress Time (UT)", "Altitude at Egress", "Azimuth at Egress",
		band + " mag", "Depth", "Duration", "RA", "Dec", "Const.",
		"Mass", "Semimajor Axis (AU)", "Radius (R_J)", "Gap (h)",
	}
}

// WriteCSV writes one line per event, nights in ascending order and events
// in time order within a night.
func WriteCSV(w io.Writer, rep *Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader(rep.Band)); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for _, n := range rep.Nights {
		for _, row := range n.Rows {
			e, r := row.Event, row.Record
			in, out := row.Ingress(), row.Egress()
			line := []string{
				e.Body, e.Kind.String(),
				csvDate(in), csvClock(in), wholeDegrees(e.Ingress.AltitudeDeg), e.Ingress.Direction,
				csvDate(out), csvClock(out), wholeDegrees(e.Egress.AltitudeDeg), e.Egress.Direction,
				trunc(r.Magnitude(rep.Band), 2), trunc(r.Depth, 4), durationHours(e.Duration()),
				r.RA, r.Dec, none,
				truncOrNone(r.Mass, 2), truncOrNone(r.Separation, 3), truncOrNone(r.Radius, 2),
				trunc(row.Gap.Hours(), 2),
			}
			if err := cw.Write(line); err != nil {
				return fmt.Errorf("writing csv row for %s: %w", e.Body, err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}
