package astrometry

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/bmorris3/transitephem/internal/transform"
)

// Manastash Ridge Observatory.
var mro = transform.NewObserver(46.951, -120.724, 1198, 10)

func TestTargetNeverUp(t *testing.T) {
	eng := New(mro, 0)
	jd := transform.JulianDate(time.Date(2026, 10, 15, 6, 0, 0, 0, time.UTC))

	// Dec -60 culminates at 90 - 106.95 < 0 from latitude +46.95.
	_, err := eng.Target(0, transform.Radians(-60), jd)
	var nu *NeverUpError
	if !errors.As(err, &nu) {
		t.Fatalf("expected *NeverUpError, got %v", err)
	}
	if nu.CulminationDeg >= 0 {
		t.Errorf("culmination = %.2f, want negative", nu.CulminationDeg)
	}
}

func TestTargetHorizonRaisesThreshold(t *testing.T) {
	jd := transform.JulianDate(time.Date(2026, 10, 15, 6, 0, 0, 0, time.UTC))
	dec := transform.Radians(-30) // culminates near 13 deg

	if _, err := New(mro, 0).Target(0, dec, jd); err != nil {
		t.Fatalf("with 0 deg horizon: unexpected error %v", err)
	}
	if _, err := New(mro, 20).Target(0, dec, jd); err == nil {
		t.Fatal("with 20 deg horizon: expected never-up error")
	}
}

func TestTargetCircumpolar(t *testing.T) {
	eng := New(mro, 0)
	// Polaris stays above the horizon all night.
	ra, _ := transform.HoursToRadians("02:31:49.09")
	dec, _ := transform.DegreesToRadians("+89:15:50.8")
	for h := 0; h < 24; h += 3 {
		jd := transform.JulianDate(time.Date(2026, 1, 1, h, 0, 0, 0, time.UTC))
		la, err := eng.Target(ra, dec, jd)
		if err != nil {
			t.Fatalf("hour %d: %v", h, err)
		}
		if math.Abs(la.AltitudeDeg-46.95) > 1.5 {
			t.Errorf("hour %d: Polaris altitude = %.2f, want ~46.95", h, la.AltitudeDeg)
		}
	}
}

func TestSunInvalidJD(t *testing.T) {
	if _, err := New(mro, 0).Sun(math.NaN()); err == nil {
		t.Fatal("expected error for NaN julian date")
	}
}
