package transform

import "math"

// Observer holds a ground observer's location and the atmospheric state used
// for refraction. Angles are stored in radians.
type Observer struct {
	LatRad, LonRad float64 // geodetic latitude, east longitude
	ElevationM     float64
	TemperatureC   float64
	PressureMbar   float64
}

// LookAngles holds the apparent azimuth and altitude of a target.
type LookAngles struct {
	AzimuthDeg  float64 // 0 = North, clockwise
	AltitudeDeg float64 // 0 = horizon, 90 = zenith
}

// NewObserver creates an Observer from geodetic coordinates in degrees, the
// elevation in meters and the air temperature in Celsius. Pressure follows
// the standard atmosphere for the given elevation.
func NewObserver(latDeg, lonDeg, elevationM, temperatureC float64) Observer {
	return Observer{
		LatRad:       latDeg * deg2rad,
		LonRad:       lonDeg * deg2rad,
		ElevationM:   elevationM,
		TemperatureC: temperatureC,
		PressureMbar: StandardPressure(elevationM),
	}
}

// StandardPressure returns the ICAO standard-atmosphere pressure in millibars.
func StandardPressure(elevationM float64) float64 {
	return 1013.25 * math.Pow(1-2.25577e-5*elevationM, 5.25588)
}

// EquatorialToLookAngles computes the apparent azimuth and altitude of a target
// at right ascension raRad and declination decRad (both of date) for the
// observer at Julian Date jd.
func EquatorialToLookAngles(obs Observer, raRad, decRad, jd float64) LookAngles {
	ha := LocalSiderealTime(jd, obs.LonRad) - raRad

	sinLat, cosLat := math.Sincos(obs.LatRad)
	sinDec, cosDec := math.Sincos(decRad)
	sinHA, cosHA := math.Sincos(ha)

	alt := math.Asin(clamp(sinLat*sinDec + cosLat*cosDec*cosHA))

	// Azimuth measured clockwise from North.
	az := math.Atan2(-cosDec*sinHA, cosLat*sinDec-sinLat*cosDec*cosHA)
	az = normalizeRad(az)

	altDeg := alt * rad2deg
	altDeg += Refraction(altDeg, obs.PressureMbar, obs.TemperatureC)

	return LookAngles{
		AzimuthDeg:  az * rad2deg,
		AltitudeDeg: altDeg,
	}
}

// Refraction returns the atmospheric refraction in degrees to add to a true
// altitude, using Saemundsson's formula scaled for pressure and temperature.
// Below -1° the correction is zero.
func Refraction(trueAltDeg, pressureMbar, temperatureC float64) float64 {
	if trueAltDeg < -1 || pressureMbar <= 0 {
		return 0
	}
	h := trueAltDeg
	arcmin := 1.02 / math.Tan((h+10.3/(h+5.11))*deg2rad)
	arcmin *= (pressureMbar / 1010.0) * (283.0 / (273.0 + temperatureC))
	return arcmin / 60.0
}

// CulminationDeg returns the true altitude in degrees of a target with
// declination decRad when it crosses the observer's meridian.
func CulminationDeg(obs Observer, decRad float64) float64 {
	return 90 - math.Abs(obs.LatRad-decRad)*rad2deg
}

// Precess rotates J2000 equatorial coordinates to the mean equator and
// equinox of the Julian Date jd (Meeus, Astronomical Algorithms, 21.4).
func Precess(raRad, decRad, jd float64) (float64, float64) {
	t := (jd - j2000) / 36525.0
	arcsec := deg2rad / 3600.0

	zeta := (2306.2181*t + 0.30188*t*t + 0.017998*t*t*t) * arcsec
	z := (2306.2181*t + 1.09468*t*t + 0.018203*t*t*t) * arcsec
	theta := (2004.3109*t - 0.42665*t*t - 0.041833*t*t*t) * arcsec

	sinDec, cosDec := math.Sincos(decRad)
	sinA, cosA := math.Sincos(raRad + zeta)
	sinT, cosT := math.Sincos(theta)

	a := cosDec * sinA
	b := cosT*cosDec*cosA - sinT*sinDec
	c := sinT*cosDec*cosA + cosT*sinDec

	ra := normalizeRad(math.Atan2(a, b) + z)
	dec := math.Asin(clamp(c))
	return ra, dec
}

// compassPoints are the 8-point compass labels, each spanning 45° centered on its bearing.
var compassPoints = [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// Direction converts an azimuth in degrees to an 8-point compass label.
func Direction(azDeg float64) string {
	az := math.Mod(azDeg, 360)
	if az < 0 {
		az += 360
	}
	idx := int(math.Floor((az+22.5)/45)) % len(compassPoints)
	return compassPoints[idx]
}

// clamp keeps an asin argument inside [-1, 1] against rounding.
func clamp(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}
