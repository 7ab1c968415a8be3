package transform

import "math"

// SunEquatorial returns the Sun's apparent right ascension and declination
// of date in radians, using the low-precision formulae of the Astronomical
// Almanac (about 0.01° between 1950 and 2050).
func SunEquatorial(jd float64) (float64, float64) {
	n := jd - j2000

	l := math.Mod(280.460+0.9856474*n, 360)
	g := math.Mod(357.528+0.9856003*n, 360) * deg2rad

	lambda := (l + 1.915*math.Sin(g) + 0.020*math.Sin(2*g)) * deg2rad
	eps := (23.439 - 0.0000004*n) * deg2rad

	sinLambda, cosLambda := math.Sincos(lambda)
	ra := normalizeRad(math.Atan2(math.Cos(eps)*sinLambda, cosLambda))
	dec := math.Asin(math.Sin(eps) * sinLambda)
	return ra, dec
}

// SunLookAngles returns the apparent azimuth and altitude of the Sun for the observer at jd.
func SunLookAngles(obs Observer, jd float64) LookAngles {
	ra, dec := SunEquatorial(jd)
	return EquatorialToLookAngles(obs, ra, dec, jd)
}
