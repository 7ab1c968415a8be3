package report

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bmorris3/transitephem/internal/catalog"
	"github.com/bmorris3/transitephem/internal/ephem"
)

// 2026-11-01T08:00Z, local midnight at Manastash Ridge.
const midnightJD = 2461345.5 + 8.0/24

var records = map[string]catalog.Record{
	"HD 189733 b": {
		Name: "HD 189733 b", RA: "20:00:43.713", Dec: "+22:42:39.07",
		V: 7.67, KS: 5.54, Depth: 0.02391, Mass: 1.138, Radius: 1.138, Separation: 0.0312,
		OrbitRef: "Triaud 2009", TransitURL: "http://example/hd189733", SimbadURL: "http://simbad/hd189733",
	},
	"WASP-12 b": {
		Name: "WASP-12 b", RA: "06:30:32.794", Dec: "+29:40:20.29",
		V: 11.69, KS: 10.19, Depth: 0.0138, OrbitRef: "Hebb 2009",
	},
}

func event(body string, kind ephem.Kind, mid, half float64) ephem.Event {
	return ephem.Event{
		Body: body, Kind: kind, Mid: mid, HalfDuration: half,
		Ingress: ephem.Position{AltitudeDeg: 45.9, AzimuthDeg: 100, Direction: "E"},
		Egress:  ephem.Position{AltitudeDeg: 30.2, AzimuthDeg: 200, Direction: "SW"},
	}
}

func testResult() *ephem.Result {
	n := ephem.NewNights()
	day := 2461345
	// Stored transits first; WASP-12 b starts later than the eclipse.
	n.Add(day, event("WASP-12 b", ephem.Transit, midnightJD+0.15, 0.05))
	n.Add(day, event("HD 189733 b", ephem.Eclipse, midnightJD-0.05, 0.03))
	n.Add(day+3, event("HD 189733 b", ephem.Transit, midnightJD+3, 0.0375))
	return &ephem.Result{
		Window:  ephem.Window{Start: 2461345.0, End: 2461350.0},
		Nights:  n,
		NeverUp: []string{"Kepler-16 b"},
	}
}

func testOptions() Options {
	return Options{
		Observatory: "Manastash Ridge Observatory",
		LatDeg:      46.951,
		LonDeg:      -120.724,
		Band:        "V",
		RunID:       "run-1",
		Generated:   time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC),
	}
}

func TestBuild(t *testing.T) {
	rep := Build(testResult(), records, testOptions())

	if len(rep.Nights) != 2 || rep.Events != 3 || rep.Transits != 2 || rep.Eclipses != 1 {
		t.Fatalf("report = %d nights, %d events (%d/%d)", len(rep.Nights), rep.Events, rep.Transits, rep.Eclipses)
	}

	first := rep.Nights[0]
	if first.Rows[0].Event.Body != "HD 189733 b" || first.Rows[1].Event.Body != "WASP-12 b" {
		t.Errorf("rows not in time order: %s, %s", first.Rows[0].Event.Body, first.Rows[1].Event.Body)
	}
	if first.Rows[0].Gap != 0 {
		t.Errorf("first row gap = %v", first.Rows[0].Gap)
	}
	// Egress at mid-0.02, next ingress at mid+0.10: 0.12 d.
	if want := time.Duration(0.12 * 24 * float64(time.Hour)).Round(time.Minute); first.Rows[1].Gap != want {
		t.Errorf("gap = %v, want %v", first.Rows[1].Gap, want)
	}

	if want := time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC); !first.Date.Equal(want) {
		t.Errorf("evening date = %v, want %v", first.Date, want)
	}
	mid := first.Rows[0].Ingress()
	if first.Sunset.IsZero() || first.Sunrise.IsZero() {
		t.Fatal("missing sunset/sunrise")
	}
	if !first.Sunset.Before(mid) || !first.Sunrise.After(mid) {
		t.Errorf("event at %v not between sunset %v and sunrise %v", mid, first.Sunset, first.Sunrise)
	}
}

func TestBuildOverlapHasNoGap(t *testing.T) {
	n := ephem.NewNights()
	n.Add(1, event("a", ephem.Transit, midnightJD, 0.1))
	n.Add(1, event("b", ephem.Transit, midnightJD+0.05, 0.1))
	rep := Build(&ephem.Result{Window: ephem.Window{Start: 0, End: 2}, Nights: n}, nil, testOptions())
	if g := rep.Nights[0].Rows[1].Gap; g != 0 {
		t.Errorf("overlapping events gap = %v", g)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, Build(testResult(), records, testOptions())); err != nil {
		t.Fatal(err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected header + 3 rows, got %d", len(rows))
	}
	if rows[0][10] != "V mag" {
		t.Errorf("magnitude column = %q", rows[0][10])
	}

	hd := rows[1]
	want := map[int]string{
		0: "HD 189733 b", 1: "eclipse",
		2: "2026/11/1", 4: "45", 5: "E", 8: "30", 9: "SW",
		10: "7.67", 11: "0.0239", 12: "1.44",
		13: "20:00:43.713", 15: "---", 16: "1.13", 17: "0.031", 18: "1.13",
	}
	for i, w := range want {
		if hd[i] != w {
			t.Errorf("column %d (%s) = %q, want %q", i, rows[0][i], hd[i], w)
		}
	}
	if rows[2][16] != "---" {
		t.Errorf("missing mass should be ---, got %q", rows[2][16])
	}
}

func TestWriteHTML(t *testing.T) {
	opts := testOptions()
	opts.LocalOffsetHours = -7
	var buf bytes.Buffer
	if err := WriteHTML(&buf, Build(testResult(), records, opts), "/static/"); err != nil {
		t.Fatal(err)
	}
	page := buf.String()

	for _, want := range []string{
		"Ephemerides for: Manastash Ridge Observatory",
		`<a href="http://example/hd189733">HD 189733 b</a>`,
		`href="/static/ephem.css"`,
		"(LT)",
		"45&deg; E",
		"Kepler-16 b",
		"2009",
		"run run-1",
	} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Count(page, "<tr>\n\t\t\t<td>") != 3 {
		t.Errorf("expected 3 event rows")
	}
}

func TestWriteFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	paths, err := WriteFiles(dir, Build(testResult(), records, testOptions()), true, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 5 {
		t.Errorf("wrote %v", paths)
	}
	for _, name := range []string{CSVFile, HTMLFile, "ephem.css", "ephem-dark.css", "sort.js"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
}

func TestFormatting(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{trunc(7.6789, 2), "7.67"},
		{trunc(7.6, 2), "7.6"},
		{trunc(0.0239, 4), "0.0239"},
		{trunc(-1.239, 1), "-1.2"},
		{truncOrNone(0, 2), "---"},
		{wholeDegrees(45.9), "45"},
		{wholeDegrees(-0.5), "0"},
		{refYear("Triaud 2009"), "2009"},
		{refYear(""), "---"},
		{formatGap(95 * time.Minute), "1h35m"},
		{formatGap(0), ""},
		{durationHours(0.075), "1.8"},
	}
	for i, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("case %d: got %q, want %q", i, tt.got, tt.want)
		}
	}
}
