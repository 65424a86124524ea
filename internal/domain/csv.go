package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// timestampLayouts are the stamp formats seen across the upstream exports:
// timezone-aware exchange stamps, naive hourly stamps, and bare dates.
// Naive stamps are taken as UTC.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// parseCell converts a CSV cell to a float. Empty cells become NaN so the
// caller decides whether a gap is a zero or a dropped row.
func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse number %q: %w", s, err)
	}
	return v, nil
}

// isIndexColumn matches the unnamed row-index column pandas-style exports
// carry ("" or "Unnamed: 0").
func isIndexColumn(name string) bool {
	name = strings.TrimSpace(name)
	return name == "" || strings.HasPrefix(name, "Unnamed:")
}

// ParseFlowCSV reads a wide flow export: timestamps in the first column,
// one column per counterparty zone. A "sum" column, when present, is
// discarded; it is an upstream convenience total, not a zone.
func ParseFlowCSV(rows [][]string) (FlowTable, error) {
	if len(rows) == 0 {
		return FlowTable{}, errors.New("flow table: empty input")
	}
	header := rows[0]
	if len(header) < 2 {
		return FlowTable{}, errors.New("flow table: no zone columns")
	}

	var zones []string
	var zoneIdx []int
	for j := 1; j < len(header); j++ {
		name := strings.TrimSpace(header[j])
		if name == "sum" {
			continue
		}
		zones = append(zones, name)
		zoneIdx = append(zoneIdx, j)
	}

	t := FlowTable{Zones: zones}
	for i, row := range rows[1:] {
		if len(row) != len(header) {
			return FlowTable{}, fmt.Errorf("flow table: row %d has %d cells, want %d", i+2, len(row), len(header))
		}
		ts, err := parseTimestamp(row[0])
		if err != nil {
			return FlowTable{}, fmt.Errorf("flow table: row %d: %w", i+2, err)
		}
		vals := make([]float64, len(zoneIdx))
		for k, j := range zoneIdx {
			v, err := parseCell(row[j])
			if err != nil {
				return FlowTable{}, fmt.Errorf("flow table: row %d, column %s: %w", i+2, zones[k], err)
			}
			vals[k] = v
		}
		t.Times = append(t.Times, ts)
		t.Values = append(t.Values, vals)
	}
	return t, nil
}

// ParseGenerationCSV reads a raw generation export in any of the known
// header shapes and returns the table together with the detected schema.
func ParseGenerationCSV(rows [][]string) (GenerationTable, GenerationSchema, error) {
	schema, err := DetectGenerationSchema(rows)
	if err != nil {
		return GenerationTable{}, schema, err
	}

	var techs, kinds []string
	var dataStart int
	switch schema {
	case SchemaFlatTuple:
		for _, label := range rows[0][1:] {
			tech, kind := splitFlatLabel(label)
			techs = append(techs, tech)
			kinds = append(kinds, kind)
		}
		dataStart = 1
	case SchemaTwoLevel, SchemaTwoLevelIndexed:
		for _, cell := range rows[0][1:] {
			techs = append(techs, strings.TrimSpace(cell))
		}
		for _, cell := range rows[1][1:] {
			kinds = append(kinds, strings.TrimSpace(cell))
		}
		if len(kinds) < len(techs) {
			return GenerationTable{}, schema, fmt.Errorf("generation table: %d technology labels but %d kinds", len(techs), len(kinds))
		}
		dataStart = 2
		if schema == SchemaTwoLevelIndexed {
			dataStart = 3
		}
	}

	t := GenerationTable{Columns: make([]GenerationColumn, len(techs))}
	for j := range techs {
		t.Columns[j] = GenerationColumn{Tech: techs[j], Kind: kinds[j]}
	}
	for i, row := range rows[dataStart:] {
		if len(row) != len(techs)+1 {
			return GenerationTable{}, schema, fmt.Errorf("generation table: row %d has %d cells, want %d", dataStart+i+1, len(row), len(techs)+1)
		}
		ts, err := parseTimestamp(row[0])
		if err != nil {
			return GenerationTable{}, schema, fmt.Errorf("generation table: row %d: %w", dataStart+i+1, err)
		}
		t.Times = append(t.Times, ts)
		for j := range techs {
			v, err := parseCell(row[j+1])
			if err != nil {
				return GenerationTable{}, schema, fmt.Errorf("generation table: row %d, column %s: %w", dataStart+i+1, techs[j], err)
			}
			t.Columns[j].Values = append(t.Columns[j].Values, v)
		}
	}
	return t, schema, nil
}

// splitFlatLabel separates "Fossil Gas, Actual Aggregated" into technology
// and kind. Labels without a recognized kind suffix are all technology.
func splitFlatLabel(label string) (tech, kind string) {
	label = strings.TrimSpace(label)
	if i := strings.LastIndex(label, ","); i >= 0 {
		if k := strings.TrimSpace(label[i+1:]); generationKinds[k] {
			return strings.TrimSpace(label[:i]), k
		}
	}
	return label, ""
}

// ParsePriceCSV reads a day-ahead price export: a timestamp column followed
// by a single price column, with an optional leading row-index column.
func ParsePriceCSV(rows [][]string) (PriceTable, error) {
	if len(rows) < 2 {
		return PriceTable{}, errors.New("price table: no data rows")
	}

	// The timestamp may sit in the first or second column depending on
	// whether the export kept a row index; probe the first data row.
	first := rows[1]
	timeCol := -1
	for j := 0; j < len(first) && j < 2; j++ {
		if _, err := parseTimestamp(first[j]); err == nil {
			timeCol = j
			break
		}
	}
	if timeCol < 0 || len(first) < timeCol+2 {
		return PriceTable{}, errors.New("price table: no timestamp column")
	}
	priceCol := timeCol + 1

	var t PriceTable
	for i, row := range rows[1:] {
		if len(row) <= priceCol {
			return PriceTable{}, fmt.Errorf("price table: row %d has %d cells, want at least %d", i+2, len(row), priceCol+1)
		}
		ts, err := parseTimestamp(row[timeCol])
		if err != nil {
			return PriceTable{}, fmt.Errorf("price table: row %d: %w", i+2, err)
		}
		v, err := parseCell(row[priceCol])
		if err != nil {
			return PriceTable{}, fmt.Errorf("price table: row %d: %w", i+2, err)
		}
		t.Times = append(t.Times, ts)
		t.Prices = append(t.Prices, v)
	}
	return t, nil
}

// ParseWeatherCSV reads a weather export for one zone by column name and
// stamps every record with the zone code. Rows with any missing value are
// dropped; the validation suite requires complete observations.
func ParseWeatherCSV(rows [][]string, countryCode string) ([]WeatherRecord, error) {
	if len(rows) == 0 {
		return nil, errors.New("weather table: empty input")
	}

	idx := make(map[string]int, len(rows[0]))
	for j, name := range rows[0] {
		idx[strings.TrimSpace(name)] = j
	}
	timeCol, ok := idx["time"]
	if !ok {
		timeCol, ok = idx["datetime"]
	}
	if !ok {
		return nil, errors.New("weather table: missing time column")
	}
	for _, col := range WeatherColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("weather table: missing column %s", col)
		}
	}

	var out []WeatherRecord
	for i, row := range rows[1:] {
		if len(row) != len(rows[0]) {
			return nil, fmt.Errorf("weather table: row %d has %d cells, want %d", i+2, len(row), len(rows[0]))
		}
		ts, err := parseTimestamp(row[timeCol])
		if err != nil {
			return nil, fmt.Errorf("weather table: row %d: %w", i+2, err)
		}
		rec := WeatherRecord{Datetime: ts, CountryCode: countryCode}
		keep := true
		for _, col := range WeatherColumns {
			v, err := parseCell(row[idx[col]])
			if err != nil {
				return nil, fmt.Errorf("weather table: row %d, column %s: %w", i+2, col, err)
			}
			if math.IsNaN(v) {
				keep = false
				break
			}
			rec.Set(col, v)
		}
		if keep {
			out = append(out, rec)
		}
	}
	return out, nil
}
