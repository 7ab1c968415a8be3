package ephem

import (
	"errors"
	"io"
	"log/slog"
	"math"
	"reflect"
	"slices"
	"testing"

	"github.com/bmorris3/transitephem/internal/astrometry"
	"github.com/bmorris3/transitephem/internal/transform"
)

// fakeSky returns altitudes from plain functions of time.
type fakeSky struct {
	target  func(dec, jd float64) (float64, error)
	sunAlt  func(jd float64) float64
	targets int
	suns    int
}

func (f *fakeSky) Target(_, dec, jd float64) (transform.LookAngles, error) {
	f.targets++
	alt, err := f.target(dec, jd)
	if err != nil {
		return transform.LookAngles{}, err
	}
	return transform.LookAngles{AltitudeDeg: alt, AzimuthDeg: 180}, nil
}

func (f *fakeSky) Sun(jd float64) (transform.LookAngles, error) {
	f.suns++
	alt := -30.0
	if f.sunAlt != nil {
		alt = f.sunAlt(jd)
	}
	return transform.LookAngles{AltitudeDeg: alt}, nil
}

func alwaysUp(float64, float64) (float64, error) { return 45, nil }

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func bothKinds() Options {
	return Options{Transits: true, Eclipses: true, HorizonDeg: 15, TwilightDeg: -12}
}

func TestFilterBothInstants(t *testing.T) {
	const mid = 2456000.5
	sky := &fakeSky{target: func(_, jd float64) (float64, error) {
		if jd < mid {
			return 30, nil
		}
		return 5, nil // set below the 15 degree horizon before egress
	}}
	f := NewFilter(sky, 15, -12)

	_, ok, err := f.Observable(Body{Name: "setting"}, mid-0.05, mid+0.05)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("event with egress below horizon accepted")
	}
	if sky.suns != 0 {
		t.Errorf("sun computed %d times for a rejected event", sky.suns)
	}
}

func TestFilterDarkSky(t *testing.T) {
	const mid = 2456000.5
	tests := []struct {
		name string
		sun  func(float64) float64
		want bool
	}{
		{"night", func(float64) float64 { return -20 }, true},
		{"dawn at egress", func(jd float64) float64 {
			if jd > mid {
				return -6
			}
			return -20
		}, false},
		{"exactly at threshold", func(float64) float64 { return -12 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFilter(&fakeSky{target: alwaysUp, sunAlt: tt.sun}, 15, -12)
			vis, ok, err := f.Observable(Body{Name: "b"}, mid-0.05, mid+0.05)
			if err != nil {
				t.Fatal(err)
			}
			if ok != tt.want {
				t.Errorf("observable = %v, want %v", ok, tt.want)
			}
			if ok && vis.Ingress.AltitudeDeg != 45 {
				t.Errorf("ingress altitude = %v", vis.Ingress.AltitudeDeg)
			}
		})
	}
}

func TestFilterHorizonStrict(t *testing.T) {
	f := NewFilter(&fakeSky{target: func(float64, float64) (float64, error) { return 15, nil }}, 15, -12)
	_, ok, _ := f.Observable(Body{}, 1, 2)
	if ok {
		t.Error("altitude equal to horizon accepted")
	}
}

func TestSearchSameDayTransits(t *testing.T) {
	s := NewSearcher(&fakeSky{target: alwaysUp}, Options{Transits: true, HorizonDeg: 15, TwilightDeg: -12}, discard())
	body := Body{Name: "fast", Period: 0.3, Epoch: 2456000.1, Duration: 0.05}

	res, err := s.Search([]Body{body}, Window{Start: 2456000.0, End: 2456000.5})
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Nights.Days(); !slices.Equal(got, []int{2456000}) {
		t.Fatalf("Days = %v, want [2456000]", got)
	}
	events := res.Nights.Events(2456000)
	if len(events) != 2 {
		t.Fatalf("bucket length = %d, want 2", len(events))
	}
	if events[0].Mid >= events[1].Mid {
		t.Errorf("events out of enumeration order: %v, %v", events[0].Mid, events[1].Mid)
	}
	if math.Abs(events[0].Mid-2456000.1) > 1e-9 || math.Abs(events[1].Mid-2456000.4) > 1e-6 {
		t.Errorf("mids = %v, %v", events[0].Mid, events[1].Mid)
	}
}

func TestSearchTransitsBeforeEclipses(t *testing.T) {
	s := NewSearcher(&fakeSky{target: alwaysUp}, bothKinds(), discard())
	body := Body{Name: "b", Period: 0.4, Epoch: 2456000.05, Duration: 0.04}

	res, err := s.Search([]Body{body}, Window{Start: 2456000.0, End: 2456000.5})
	if err != nil {
		t.Fatal(err)
	}
	events := res.Nights.Events(2456000)
	var kinds []Kind
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	if want := []Kind{Transit, Transit, Eclipse}; !slices.Equal(kinds, want) {
		t.Fatalf("kinds = %v, want %v", kinds, want)
	}

	night := Night{Day: 2456000, Events: events}
	var mids []float64
	for _, e := range night.Chronological() {
		mids = append(mids, e.Mid)
	}
	if !slices.IsSorted(mids) {
		t.Errorf("Chronological mids not sorted: %v", mids)
	}
}

func TestSearchNeverUpOnce(t *testing.T) {
	sky := &fakeSky{target: func(dec, _ float64) (float64, error) {
		if dec < 0 {
			return 0, &astrometry.NeverUpError{CulminationDeg: -3, HorizonDeg: 15}
		}
		return 45, nil
	}}
	s := NewSearcher(sky, bothKinds(), discard())

	low := Body{Name: "low", Dec: -1, Period: 0.7, Epoch: 2456000.2, Duration: 0.1}
	high := Body{Name: "high", Dec: 1, Period: 0.7, Epoch: 2456000.2, Duration: 0.1}
	res, err := s.Search([]Body{low, high, low}, Window{Start: 2456000, End: 2456030})
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(res.NeverUp, []string{"low"}) {
		t.Errorf("NeverUp = %v, want [low]", res.NeverUp)
	}
	for night := range res.Nights.All() {
		for _, e := range night.Events {
			if e.Body == "low" {
				t.Fatalf("never-up body has an event on day %d", night.Day)
			}
		}
	}
	if res.Nights.Count() == 0 {
		t.Error("no events for the visible body")
	}
}

func TestSearchInvariants(t *testing.T) {
	sky := &fakeSky{
		target: func(_, jd float64) (float64, error) {
			// A slow altitude cycle so some events straddle the horizon.
			return 40 * math.Sin(jd*2*math.Pi/1.3), nil
		},
		sunAlt: func(jd float64) float64 { return 30 * math.Sin(jd*2*math.Pi) },
	}
	s := NewSearcher(sky, bothKinds(), discard())
	bodies := []Body{
		{Name: "c", Period: 1.1, Epoch: 2455990.3, Duration: 0.12},
		{Name: "a", Period: 2.3, Epoch: 2455995.7, Duration: 0.08},
		{Name: "b", Period: 0.45, Epoch: 2455999.9, Duration: 0.03},
	}
	w := Window{Start: 2456000.0, End: 2456060.0}

	res, err := s.Search(bodies, w)
	if err != nil {
		t.Fatal(err)
	}
	if res.Nights.Count() == 0 {
		t.Fatal("expected some events")
	}
	durations := map[string]float64{"a": 0.08, "b": 0.03, "c": 0.12}
	for night := range res.Nights.All() {
		if len(night.Events) == 0 {
			t.Errorf("day %d is empty", night.Day)
		}
		for _, e := range night.Events {
			if e.IngressJD() >= e.EgressJD() {
				t.Errorf("%s: ingress %v not before egress %v", e.Body, e.IngressJD(), e.EgressJD())
			}
			if d := e.EgressJD() - e.IngressJD(); math.Abs(d-durations[e.Body]) > 1e-9 {
				t.Errorf("%s: egress-ingress = %v, want %v", e.Body, d, durations[e.Body])
			}
			if e.Ingress.AltitudeDeg <= 15 || e.Egress.AltitudeDeg <= 15 {
				t.Errorf("%s at %v below horizon", e.Body, e.Mid)
			}
			if DayKey(w, e.Mid) != night.Day {
				t.Errorf("%s at %v in day %d", e.Body, e.Mid, night.Day)
			}
		}
	}

	again, err := s.Search(bodies, w)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(res.Nights.List(), again.Nights.List()) {
		t.Error("repeated search differs")
	}
}

func TestSearchSkips(t *testing.T) {
	s := NewSearcher(&fakeSky{target: alwaysUp}, Options{Transits: true, MaxEpochs: 50, TwilightDeg: -12}, discard())
	bodies := []Body{
		{Name: "noduration", Period: 1, Epoch: 2456000.2},
		{Name: "noepoch", Period: 1, Duration: 0.1},
		{Name: "toofast", Period: 0.01, Epoch: 2456000.001, Duration: 0.001},
		{Name: "ok", Period: 1, Epoch: 2456000.2, Duration: 0.1},
	}
	res, err := s.Search(bodies, Window{Start: 2456000, End: 2456010})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"noduration", "noepoch", "toofast"}
	if !slices.Equal(res.Skipped, want) {
		t.Errorf("Skipped = %v, want %v", res.Skipped, want)
	}
	if res.Nights.Count() != 10 {
		t.Errorf("Count = %d, want 10", res.Nights.Count())
	}
	if res.Bodies != 4 {
		t.Errorf("Bodies = %d, want 4", res.Bodies)
	}
}

func TestSearchErrors(t *testing.T) {
	boom := errors.New("ephemeris unavailable")
	s := NewSearcher(&fakeSky{target: func(float64, float64) (float64, error) { return 0, boom }}, bothKinds(), discard())
	body := Body{Name: "b", Period: 1, Epoch: 2456000.2, Duration: 0.1}

	if _, err := s.Search([]Body{body}, Window{Start: 2456000, End: 2456010}); !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped %v", err, boom)
	}
	if _, err := s.Search([]Body{body}, Window{Start: 2456010, End: 2456000}); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("err = %v, want ErrInvalidWindow", err)
	}
}

func TestSearchProgress(t *testing.T) {
	s := NewSearcher(&fakeSky{target: alwaysUp}, bothKinds(), discard())
	var seen []string
	s.OnProgress(func(name string) { seen = append(seen, name) })

	bodies := []Body{{Name: "z"}, {Name: "m"}, {Name: "a"}}
	if _, err := s.Search(bodies, Window{Start: 2456000, End: 2456001}); err != nil {
		t.Fatal(err)
	}
	if want := []string{"a", "m", "z"}; !slices.Equal(seen, want) {
		t.Errorf("progress order = %v, want %v", seen, want)
	}
}

func TestDayKey(t *testing.T) {
	tests := []struct {
		start, jd float64
		want      int
	}{
		{2456000.0, 2456000.1, 2456000},
		{2456000.0, 2456000.5, 2456000}, // upper bound belongs to the day
		{2456000.0, 2456000.51, 2456001},
		{2456000.0, 2456003.2, 2456003},
		{2456000.3, 2456000.9, 2456001},
		{2456000.3, 2456000.7, 2456000},
	}
	for _, tt := range tests {
		if got := DayKey(Window{Start: tt.start, End: tt.start + 10}, tt.jd); got != tt.want {
			t.Errorf("DayKey(%v, %v) = %d, want %d", tt.start, tt.jd, got, tt.want)
		}
	}
}
