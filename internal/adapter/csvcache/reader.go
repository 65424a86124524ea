package csvcache

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/crossflow/internal/domain"
)

// Export file names, one set per zone code.
const (
	importFlowFile = "%s_import_flow.csv"
	exportFlowFile = "%s_export_flow.csv"
	generationFile = "%s_energy_generation.csv"
	pricesFile     = "%s_day_ahead_prices.csv"
	weatherFile    = "%s_weather.csv"
)

// Reader loads the cached per-zone CSV exports a backfill runs from.
type Reader struct {
	dir    string
	logger *slog.Logger
}

// NewReader creates a cache reader rooted at dir.
func NewReader(dir string, logger *slog.Logger) *Reader {
	return &Reader{dir: dir, logger: logger}
}

// ImportFlows reads the wide import-direction flow table for the home zone:
// one column per sending neighbour.
func (r *Reader) ImportFlows(home string) (domain.FlowTable, error) {
	rows, name, err := r.readRows(importFlowFile, home)
	if err != nil {
		return domain.FlowTable{}, err
	}
	table, err := domain.ParseFlowCSV(rows)
	if err != nil {
		return domain.FlowTable{}, fmt.Errorf("parse %s: %w", name, err)
	}
	return table, nil
}

// ExportFlows reads the wide export-direction flow table for the home zone:
// one column per receiving neighbour.
func (r *Reader) ExportFlows(home string) (domain.FlowTable, error) {
	rows, name, err := r.readRows(exportFlowFile, home)
	if err != nil {
		return domain.FlowTable{}, err
	}
	table, err := domain.ParseFlowCSV(rows)
	if err != nil {
		return domain.FlowTable{}, fmt.Errorf("parse %s: %w", name, err)
	}
	return table, nil
}

// Generation reads a zone's raw per-technology generation table. The header
// layout differs per zone and is detected, not assumed.
func (r *Reader) Generation(zone string) (domain.GenerationTable, domain.GenerationSchema, error) {
	rows, name, err := r.readRows(generationFile, zone)
	if err != nil {
		return domain.GenerationTable{}, domain.SchemaUnknown, err
	}
	table, schema, err := domain.ParseGenerationCSV(rows)
	if err != nil {
		return domain.GenerationTable{}, schema, fmt.Errorf("parse %s: %w", name, err)
	}
	r.logger.Debug("parsed cached generation", "zone", zone, "schema", schema.String())
	return table, schema, nil
}

// DayAheadPrices reads a zone's hourly day-ahead price series.
func (r *Reader) DayAheadPrices(zone string) (domain.PriceTable, error) {
	rows, name, err := r.readRows(pricesFile, zone)
	if err != nil {
		return domain.PriceTable{}, err
	}
	table, err := domain.ParsePriceCSV(rows)
	if err != nil {
		return domain.PriceTable{}, fmt.Errorf("parse %s: %w", name, err)
	}
	return table, nil
}

// Weather reads a zone's hourly weather export.
func (r *Reader) Weather(zone string) ([]domain.WeatherRecord, error) {
	rows, name, err := r.readRows(weatherFile, zone)
	if err != nil {
		return nil, err
	}
	records, err := domain.ParseWeatherCSV(rows, zone)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return records, nil
}

func (r *Reader) readRows(pattern, zone string) ([][]string, string, error) {
	name := fmt.Sprintf(pattern, zone)
	f, err := os.Open(filepath.Join(r.dir, name))
	if err != nil {
		return nil, name, fmt.Errorf("open cached export: %w", err)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	// Generation exports have header rows with fewer cells than the data.
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, name, fmt.Errorf("read %s: %w", name, err)
	}
	return rows, name, nil
}
