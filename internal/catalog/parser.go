package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
)

// Column labels of the exoplanets.org table.
const (
	colName       = "NAME"
	colRA         = "RA_STRING"
	colDec        = "DEC_STRING"
	colPeriod     = "PER"
	colEpoch      = "TT"
	colDuration   = "T14"
	colV          = "V"
	colKS         = "KS"
	colDepth      = "DEPTH"
	colTransit    = "TRANSIT"
	colMass       = "MASS"
	colRadius     = "R"
	colSeparation = "SEP"
	colAxis       = "A"
	colDistance   = "DIST"
	colTeff       = "TEFF"
	colSimbad     = "SIMBADURL"
	colTransitURL = "TRANSITURL"
	colOrbitRef   = "ORBREF"
)

// Parse reads the catalog CSV from r. Columns are located by the labels in the
// header row, so their order does not matter. Rows without a name are skipped;
// when a name repeats, the later row wins.
func Parse(r io.Reader, logger *slog.Logger) (map[string]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("catalog is empty")
		}
		return nil, fmt.Errorf("reading catalog header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, label := range header {
		index[strings.TrimSpace(label)] = i
	}
	if _, ok := index[colName]; !ok {
		return nil, fmt.Errorf("catalog header has no %s column", colName)
	}

	records := make(map[string]Record)
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("reading catalog line %d: %w", line, err)
		}

		rp := rowParser{row: row, index: index, logger: logger}
		name := rp.str(colName)
		if name == "" {
			logger.Warn("skipping catalog row without a name", "line", line)
			continue
		}
		rp.name = name

		records[name] = Record{
			Name:          name,
			RA:            rp.str(colRA),
			Dec:           rp.str(colDec),
			Period:        rp.num(colPeriod),
			Epoch:         rp.num(colEpoch),
			Duration:      rp.num(colDuration),
			V:             rp.num(colV),
			KS:            rp.num(colKS),
			Depth:         rp.num(colDepth),
			Transiting:    rp.str(colTransit) == "1",
			Mass:          rp.num(colMass),
			Radius:        rp.num(colRadius),
			Separation:    rp.num(colSeparation),
			SemiMajorAxis: rp.num(colAxis),
			Distance:      rp.num(colDistance),
			Teff:          rp.num(colTeff),
			SimbadURL:     rp.str(colSimbad),
			TransitURL:    rp.str(colTransitURL),
			OrbitRef:      rp.str(colOrbitRef),
		}
	}

	logger.Debug("parsed catalog", "planets", len(records), "columns", len(header))
	return records, nil
}

type rowParser struct {
	row    []string
	index  map[string]int
	name   string
	logger *slog.Logger
}

func (p rowParser) str(col string) string {
	i, ok := p.index[col]
	if !ok || i >= len(p.row) {
		return ""
	}
	return strings.TrimSpace(p.row[i])
}

// num parses a numeric cell. Blank and malformed cells are zero.
func (p rowParser) num(col string) float64 {
	s := p.str(col)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.logger.Debug("unparseable catalog value", "planet", p.name, "column", col, "value", s)
		return 0
	}
	return v
}
