package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmorris3/transitephem/internal/catalog"
	"github.com/bmorris3/transitephem/web"
)

const defaultSimbad = "http://simbad.harvard.edu/simbad/"

// Output file names.
const (
	CSVFile  = "eventReport.csv"
	HTMLFile = "eventReport.html"
)

var baseTemplate = template.Must(
	template.New("report.html.tmpl").Funcs(funcs(0, "V")).ParseFS(web.Content, "report.html.tmpl"),
)

// funcs returns the template helpers. offset is the local-time shift applied
// by "shown"; band selects the magnitude shown by "mag".
func funcs(offset time.Duration, band string) template.FuncMap {
	return template.FuncMap{
		"date":   func(t time.Time) string { return t.Format("2006/01/02") },
		"clock":  clock,
		"stamp":  stamp,
		"shown":  func(t time.Time) time.Time { return t.Add(offset) },
		"alt":    wholeDegrees,
		"mag":    func(r catalog.Record) string { return trunc(r.Magnitude(band), 2) },
		"trunc":  trunc,
		"dash":   truncOrNone,
		"hours":  durationHours,
		"year":   refYear,
		"gap":    formatGap,
		"join":   strings.Join,
		"short":  func(s string) string { return strings.SplitN(s, ".", 2)[0] },
		"simbad": simbadURL,
	}
}

func clock(t time.Time) string {
	if t.IsZero() {
		return "--:--"
	}
	return t.UTC().Format("15:04")
}

// stamp renders "MM/<strong>DD</strong>, HH:MM".
func stamp(t time.Time) template.HTML {
	return template.HTML(t.Format("01") + "/<strong>" + t.Format("02") + "</strong>, " + t.Format("15:04"))
}

func simbadURL(r catalog.Record) string {
	if r.SimbadURL == "" {
		return defaultSimbad
	}
	return r.SimbadURL
}

type htmlView struct {
	*Report
	AssetPrefix string
	Local       bool
}

// WriteHTML renders the report page. assetPrefix is prepended to the
// stylesheet and script links.
func WriteHTML(w io.Writer, rep *Report, assetPrefix string) error {
	offset := localOffset(rep.LocalOffsetHours)
	tmpl, err := baseTemplate.Clone()
	if err != nil {
		return err
	}
	tmpl.Funcs(funcs(offset, rep.Band))

	var buf bytes.Buffer
	view := htmlView{Report: rep, AssetPrefix: assetPrefix, Local: offset != 0}
	if err := tmpl.Execute(&buf, view); err != nil {
		return fmt.Errorf("rendering html report: %w", err)
	}
	_, err = buf.WriteTo(w)
	return err
}

// WriteFiles writes the selected reports into dir, with the HTML assets
// next to the page, and returns the paths written.
func WriteFiles(dir string, rep *Report, writeCSV, writeHTML bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output dir: %w", err)
	}

	var written []string
	write := func(name string, render func(io.Writer) error) error {
		var buf bytes.Buffer
		if err := render(&buf); err != nil {
			return err
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	if writeCSV {
		if err := write(CSVFile, func(w io.Writer) error { return WriteCSV(w, rep) }); err != nil {
			return written, err
		}
	}
	if writeHTML {
		if err := write(HTMLFile, func(w io.Writer) error { return WriteHTML(w, rep, "") }); err != nil {
			return written, err
		}
		for _, name := range web.Assets {
			data, err := web.Content.ReadFile(name)
			if err != nil {
				return written, err
			}
			if err := write(name, func(w io.Writer) error { _, err := w.Write(data); return err }); err != nil {
				return written, err
			}
		}
	}
	return written, nil
}
