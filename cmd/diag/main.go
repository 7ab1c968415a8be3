// Command diag prints where a catalog planet and the Sun are for the
// configured observatory at a given time, and the planet's next transits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bmorris3/transitephem/internal/app"
	"github.com/bmorris3/transitephem/internal/astrometry"
	"github.com/bmorris3/transitephem/internal/config"
	"github.com/bmorris3/transitephem/internal/ephem"
	"github.com/bmorris3/transitephem/internal/logging"
	"github.com/bmorris3/transitephem/internal/transform"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration")
	planet := flag.String("planet", "", "catalog name, e.g. \"HD 189733 b\"")
	at := flag.String("time", "", "UT time, RFC 3339 (default: now)")
	days := flag.Float64("days", 7, "list transits this many days ahead")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Println("ERROR loading config:", err)
		os.Exit(1)
	}
	cfg.Logging.Level = "warn"
	logger, err := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Println("ERROR:", err)
		os.Exit(1)
	}

	t := time.Now().UTC()
	if *at != "" {
		if t, err = time.Parse(time.RFC3339, *at); err != nil {
			fmt.Println("ERROR parsing -time:", err)
			os.Exit(1)
		}
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		fmt.Println("ERROR:", err)
		os.Exit(1)
	}
	defer a.Close()

	jd := transform.JulianDate(t)
	obs := a.Engine.Observer()
	fmt.Printf("Site: %s (lat %s, lon %s, %.0f m)\n", cfg.Observatory.Name,
		transform.FormatDegrees(transform.Degrees(obs.LatRad)),
		transform.FormatDegrees(transform.Degrees(obs.LonRad)), obs.ElevationM)
	fmt.Printf("Time: %s  JD %.5f  LST %.4f h\n", t.Format(time.RFC3339), jd,
		transform.Degrees(transform.LocalSiderealTime(jd, obs.LonRad))/15)

	sun, _ := a.Engine.Sun(jd)
	dark := sun.AltitudeDeg < cfg.Observatory.TwilightDeg
	fmt.Printf("Sun:  alt %6.2f°  az %6.2f° %-2s  dark=%v\n", sun.AltitudeDeg, sun.AzimuthDeg, transform.Direction(sun.AzimuthDeg), dark)

	if *planet == "" {
		return
	}

	ds, err := a.Catalog.Load(context.Background())
	if err != nil {
		fmt.Println("ERROR loading catalog:", err)
		os.Exit(1)
	}
	rec, ok := ds.Records[*planet]
	if !ok {
		fmt.Printf("ERROR: %q is not in the catalog (%d planets)\n", *planet, ds.Len())
		os.Exit(1)
	}
	body, err := rec.Body()
	if err != nil {
		fmt.Println("ERROR:", err)
		os.Exit(1)
	}

	pos, err := a.Engine.Target(body.RA, body.Dec, jd)
	var never *astrometry.NeverUpError
	switch {
	case errors.As(err, &never):
		fmt.Printf("%s: %v\n", body.Name, never)
		return
	case err != nil:
		fmt.Println("ERROR:", err)
		os.Exit(1)
	}
	fmt.Printf("%s: alt %6.2f°  az %6.2f° %-2s  (RA %s, Dec %s)\n", body.Name,
		pos.AltitudeDeg, pos.AzimuthDeg, transform.Direction(pos.AzimuthDeg), rec.RA, rec.Dec)

	horizon, _ := cfg.Observatory.HorizonDeg()
	filter := ephem.NewFilter(a.Engine, horizon, cfg.Observatory.TwilightDeg)
	half := body.Duration / 2
	fmt.Printf("\nTransits in the next %.0f days:\n", *days)
	for mid := range ephem.Epochs(ephem.Transit, body.Epoch, body.Period, ephem.Window{Start: jd, End: jd + *days}) {
		vis, ok, err := filter.Observable(body, mid-half, mid+half)
		if err != nil {
			fmt.Println("  ERROR:", err)
			break
		}
		fmt.Printf("  %s  ingress alt %5.1f° %-2s  egress alt %5.1f° %-2s  observable=%v\n",
			transform.TimeFromJulian(mid).UTC().Format("2006-01-02 15:04"),
			vis.Ingress.AltitudeDeg, transform.Direction(vis.Ingress.AzimuthDeg),
			vis.Egress.AltitudeDeg, transform.Direction(vis.Egress.AzimuthDeg), ok)
	}
}
