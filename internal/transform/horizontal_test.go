package transform

import (
	"math"
	"testing"
	"time"
)

func TestParseSexagesimal(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"38:58:50.16", 38 + 58.0/60 + 50.16/3600, false},
		{"-76:56:13.92", -(76 + 56.0/60 + 13.92/3600), false},
		{"+18:53:03.5", 18 + 53.0/60 + 3.5/3600, false},
		{"-0:30:00", -0.5, false},
		{"22 03 10.77", 22 + 3.0/60 + 10.77/3600, false},
		{"12.25", 12.25, false},
		{"15:00", 15, false},
		{"", 0, true},
		{"ab:cd", 0, true},
		{"10:61:00", 0, true},
		{"1:2:3:4", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSexagesimal(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSexagesimal(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ParseSexagesimal(%q) = %.9f, want %.9f", tt.in, got, tt.want)
			}
		})
	}
}

func TestHoursToRadians(t *testing.T) {
	got, err := HoursToRadians("06:00:00")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(got-math.Pi/2) > 1e-12 {
		t.Errorf("HoursToRadians(6h) = %f, want π/2", got)
	}
}

func TestFormatDegrees(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0:00:00"},
		{-0.5, "-0:30:00"},
		{38.980600, "38:58:50"},
	}
	for _, tt := range tests {
		if got := FormatDegrees(tt.in); got != tt.want {
			t.Errorf("FormatDegrees(%f) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// airless returns an observer with refraction disabled so geometric results are exact.
func airless(latDeg, lonDeg float64) Observer {
	return Observer{LatRad: latDeg * deg2rad, LonRad: lonDeg * deg2rad}
}

func TestEquatorialToLookAnglesZenith(t *testing.T) {
	obs := airless(38.98, -76.94)
	jd := JulianDate(time.Date(2026, 10, 15, 3, 0, 0, 0, time.UTC))

	// A star on the local meridian at declination == latitude passes through the zenith.
	ra := LocalSiderealTime(jd, obs.LonRad)
	la := EquatorialToLookAngles(obs, ra, obs.LatRad, jd)

	if math.Abs(la.AltitudeDeg-90) > 1e-6 {
		t.Errorf("zenith altitude = %.6f, want 90", la.AltitudeDeg)
	}
}

func TestEquatorialToLookAnglesMeridian(t *testing.T) {
	obs := airless(40, 0)
	jd := JulianDate(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	ra := LocalSiderealTime(jd, obs.LonRad)

	// Southern meridian transit: altitude = 90 - (lat - dec), azimuth = 180.
	la := EquatorialToLookAngles(obs, ra, 10*deg2rad, jd)
	if math.Abs(la.AltitudeDeg-60) > 1e-6 {
		t.Errorf("meridian altitude = %.6f, want 60", la.AltitudeDeg)
	}
	if math.Abs(la.AzimuthDeg-180) > 1e-6 {
		t.Errorf("meridian azimuth = %.6f, want 180", la.AzimuthDeg)
	}
	if got := CulminationDeg(obs, 10*deg2rad); math.Abs(got-60) > 1e-9 {
		t.Errorf("CulminationDeg = %.6f, want 60", got)
	}
}

func TestEquatorialToLookAnglesPole(t *testing.T) {
	obs := airless(47.65, -122.3)
	for _, hour := range []int{0, 6, 12, 18} {
		jd := JulianDate(time.Date(2026, 3, 1, hour, 0, 0, 0, time.UTC))
		la := EquatorialToLookAngles(obs, 0, math.Pi/2, jd)
		if math.Abs(la.AltitudeDeg-47.65) > 1e-6 {
			t.Errorf("hour %d: celestial pole altitude = %.6f, want 47.65", hour, la.AltitudeDeg)
		}
	}
}

func TestRefraction(t *testing.T) {
	// Roughly 34 arcminutes at the horizon under standard conditions.
	r := Refraction(0, 1010, 10)
	if r < 0.45 || r > 0.62 {
		t.Errorf("horizon refraction = %.3f deg, want ~0.48-0.6", r)
	}
	if r := Refraction(90, 1010, 10); math.Abs(r) > 1e-4 {
		t.Errorf("zenith refraction = %.6f deg, want ~0", r)
	}
	if r := Refraction(-5, 1010, 10); r != 0 {
		t.Errorf("refraction below horizon = %f, want 0", r)
	}
	if thin := Refraction(5, StandardPressure(3000), 10); thin >= Refraction(5, 1010, 10) {
		t.Errorf("refraction at 3000 m (%f) should be smaller than at sea level", thin)
	}
}

// TestPrecess checks against Meeus example 21.b (θ Persei to 2028 Nov 13.19),
// ignoring the star's proper motion.
func TestPrecess(t *testing.T) {
	ra0 := 41.054063 * deg2rad
	dec0 := 49.227750 * deg2rad
	ra, dec := Precess(ra0, dec0, 2462088.69)

	if math.Abs(ra*rad2deg-41.547214) > 0.01 {
		t.Errorf("precessed RA = %.6f deg, want ~41.547214", ra*rad2deg)
	}
	if math.Abs(dec*rad2deg-49.348483) > 0.01 {
		t.Errorf("precessed Dec = %.6f deg, want ~49.348483", dec*rad2deg)
	}
}

func TestSunEquatorialSolstice(t *testing.T) {
	jd := JulianDate(time.Date(2024, 6, 20, 20, 51, 0, 0, time.UTC))
	_, dec := SunEquatorial(jd)
	if math.Abs(dec*rad2deg-23.44) > 0.05 {
		t.Errorf("solstice declination = %.3f, want ~23.44", dec*rad2deg)
	}
}

func TestSunLookAnglesDayNight(t *testing.T) {
	obs := NewObserver(51.48, 0, 0, 10) // Greenwich
	noon := SunLookAngles(obs, JulianDate(time.Date(2026, 6, 21, 12, 0, 0, 0, time.UTC)))
	midnight := SunLookAngles(obs, JulianDate(time.Date(2026, 12, 21, 0, 0, 0, 0, time.UTC)))

	if noon.AltitudeDeg < 60 || noon.AltitudeDeg > 63 {
		t.Errorf("summer noon sun altitude = %.2f, want ~62", noon.AltitudeDeg)
	}
	if midnight.AltitudeDeg > -60 {
		t.Errorf("winter midnight sun altitude = %.2f, want below -60", midnight.AltitudeDeg)
	}
}

func TestDirection(t *testing.T) {
	tests := []struct {
		az   float64
		want string
	}{
		{0, "N"}, {22.4, "N"}, {22.5, "NE"}, {90, "E"}, {135, "SE"},
		{180, "S"}, {225, "SW"}, {270, "W"}, {315, "NW"}, {337.5, "N"}, {359.9, "N"}, {-10, "N"},
	}
	for _, tt := range tests {
		if got := Direction(tt.az); got != tt.want {
			t.Errorf("Direction(%.1f) = %q, want %q", tt.az, got, tt.want)
		}
	}
}
