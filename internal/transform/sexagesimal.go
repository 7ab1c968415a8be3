package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi
)

// ParseSexagesimal parses "d:m:s", "d m s" or a plain decimal number into a
// decimal value in the same unit as the leading field. The sign applies to
// the whole value, so "-0:30:00" is -0.5.
func ParseSexagesimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty angle")
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ':' || r == ' ' })
	if len(fields) == 0 || len(fields) > 3 {
		return 0, fmt.Errorf("invalid angle %q", s)
	}

	var v float64
	scale := 1.0
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid angle field %q: %w", f, err)
		}
		if n < 0 || (i > 0 && n >= 60) {
			return 0, fmt.Errorf("angle field %q out of range", f)
		}
		v += n / scale
		scale *= 60
	}

	if neg {
		v = -v
	}
	return v, nil
}

// HoursToRadians parses a sexagesimal hour angle (e.g. right ascension "22:03:10.77").
func HoursToRadians(s string) (float64, error) {
	h, err := ParseSexagesimal(s)
	if err != nil {
		return 0, err
	}
	return h * 15 * deg2rad, nil
}

// DegreesToRadians parses a sexagesimal angle in degrees (e.g. declination "+18:53:03.5").
func DegreesToRadians(s string) (float64, error) {
	d, err := ParseSexagesimal(s)
	if err != nil {
		return 0, err
	}
	return d * deg2rad, nil
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * rad2deg
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * deg2rad
}

// FormatDegrees renders an angle in degrees as "±d:mm:ss".
func FormatDegrees(deg float64) string {
	sign := ""
	if deg < 0 {
		sign = "-"
		deg = -deg
	}
	totalSec := int(math.Round(deg * 3600))
	d := totalSec / 3600
	m := (totalSec % 3600) / 60
	sec := totalSec % 60
	return fmt.Sprintf("%s%d:%02d:%02d", sign, d, m, sec)
}
