package report

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const none = "---"

// trunc formats f cut (not rounded) to n decimals, without trailing zeros.
func trunc(f float64, n int) string {
	p := math.Pow10(n)
	t := math.Trunc(f*p+math.Copysign(1e-9, f)) / p
	return strconv.FormatFloat(t, 'f', -1, 64)
}

// truncOrNone is trunc, or "---" for an unset (zero) value.
func truncOrNone(f float64, n int) string {
	if f == 0 {
		return none
	}
	return trunc(f, n)
}

// wholeDegrees renders an altitude as whole degrees, truncated toward zero.
func wholeDegrees(deg float64) string {
	return strconv.Itoa(int(deg))
}

// durationHours renders a duration in days as hours.
func durationHours(days float64) string {
	return trunc(24*days, 2)
}

func csvDate(t time.Time) string { return t.Format("2006/1/2") }

func csvClock(t time.Time) string { return t.Format("15:04:05") }

// refYear extracts the year from an "Author Year" reference.
func refYear(ref string) string {
	f := strings.Fields(ref)
	if len(f) < 2 {
		return none
	}
	return f[1]
}

// formatGap renders a gap as "1h05m".
func formatGap(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	d = d.Round(time.Minute)
	return strconv.Itoa(int(d.Hours())) + "h" + pad2(int(d.Minutes())%60) + "m"
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// localOffset converts hours east of UT to a duration.
func localOffset(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}
