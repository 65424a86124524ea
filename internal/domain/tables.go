package domain

import (
	"errors"
	"time"
)

// FlowTable is the wide layout a flow source returns: one row per
// timestamp, one column per counterparty zone. NaN marks a gap; gaps mean
// no scheduled exchange and melt to zero.
type FlowTable struct {
	Times  []time.Time
	Zones  []string
	Values [][]float64
}

// PriceTable is an hourly day-ahead price series for a single zone.
type PriceTable struct {
	Times  []time.Time
	Prices []float64
}

// Series is a single hourly value series, the exchange format for
// single-column upstream pulls.
type Series struct {
	Times  []time.Time
	Values []float64
}

// GenerationColumn is one upstream generation column: the raw technology
// label and its aggregation kind ("Actual Aggregated", "Actual Consumption",
// or empty when the source does not distinguish).
type GenerationColumn struct {
	Tech   string
	Kind   string
	Values []float64
}

// GenerationTable is the raw per-technology generation layout for a single
// zone, before canonicalization. Rows may be sub-hourly.
type GenerationTable struct {
	Times   []time.Time
	Columns []GenerationColumn
}

// GenerationSchema identifies the header layout of a raw generation table.
// Each upstream path serializes the technology/kind column pair differently;
// the layout is detected once and parsed explicitly rather than guessed at
// per cell.
type GenerationSchema int

const (
	SchemaUnknown GenerationSchema = iota

	// SchemaTwoLevel has two header rows (technology, then kind) and an
	// unnamed timestamp column. Cached exports of live pulls look like this.
	SchemaTwoLevel

	// SchemaTwoLevelIndexed has the two header rows plus a third row naming
	// the timestamp index, data starting on the fourth row.
	SchemaTwoLevelIndexed

	// SchemaFlatTuple has a single header row whose labels join technology
	// and kind with a comma, e.g. "Fossil Gas, Actual Aggregated".
	SchemaFlatTuple
)

func (s GenerationSchema) String() string {
	switch s {
	case SchemaTwoLevel:
		return "two-level"
	case SchemaTwoLevelIndexed:
		return "two-level-indexed"
	case SchemaFlatTuple:
		return "flat-tuple"
	}
	return "unknown"
}

// ErrUnknownGenerationSchema reports a generation table whose header layout
// matches none of the known shapes.
var ErrUnknownGenerationSchema = errors.New("unknown generation table schema")

// generationKinds are the aggregation kinds ENTSO-E publishes per technology.
var generationKinds = map[string]bool{
	"Actual Aggregated":  true,
	"Actual Consumption": true,
}

// DetectGenerationSchema inspects raw CSV rows and resolves the header
// layout. The first row whose leading cell parses as a timestamp marks the
// start of data; the rows above it decide the shape.
func DetectGenerationSchema(rows [][]string) (GenerationSchema, error) {
	headerRows := 0
	for _, row := range rows {
		if len(row) > 0 {
			if _, err := parseTimestamp(row[0]); err == nil {
				break
			}
		}
		headerRows++
	}
	if headerRows == len(rows) || headerRows == 0 {
		return SchemaUnknown, ErrUnknownGenerationSchema
	}

	switch headerRows {
	case 1:
		return SchemaFlatTuple, nil
	case 2:
		if isKindRow(rows[1]) {
			return SchemaTwoLevel, nil
		}
	case 3:
		if isKindRow(rows[1]) && isIndexNameRow(rows[2]) {
			return SchemaTwoLevelIndexed, nil
		}
	}
	return SchemaUnknown, ErrUnknownGenerationSchema
}

// isKindRow reports whether every cell past the leading timestamp column is
// a known aggregation kind or empty.
func isKindRow(row []string) bool {
	if len(row) < 2 {
		return false
	}
	sawKind := false
	for _, cell := range row[1:] {
		if cell == "" {
			continue
		}
		if !generationKinds[cell] {
			return false
		}
		sawKind = true
	}
	return sawKind
}

// isIndexNameRow matches the serialized index-name row: a label in the
// first cell, everything after it empty.
func isIndexNameRow(row []string) bool {
	if len(row) == 0 || row[0] == "" {
		return false
	}
	for _, cell := range row[1:] {
		if cell != "" {
			return false
		}
	}
	return true
}
