// Package artifact reads and writes the run artifacts that live outside
// the feature store: the predictions CSV served to consumers, the
// append-only MAE history, and parquet snapshots of the feature groups.
package artifact

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/couchcryptid/crossflow/internal/domain"
)

// PredictionsFile is the serving artifact of an inference run: a CSV with
// a leading integer index column, overwritten on every run.
type PredictionsFile struct {
	path string
	home string
}

func NewPredictionsFile(path, home string) *PredictionsFile {
	return &PredictionsFile{path: path, home: home}
}

// header returns the column row. The index column has an empty name; the
// home-zone context columns carry the zone suffix like every pivoted
// feature.
func (f *PredictionsFile) header() []string {
	return []string{
		"",
		"datetime",
		"country_from",
		"country_to",
		"energy_sent",
		domain.FeatureColumn("energy_price", f.home),
		domain.FeatureColumn("total_generation", f.home),
	}
}

// Write replaces the file with the given records.
func (f *PredictionsFile) Write(records []domain.PredictionRecord) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create predictions dir: %w", err)
	}
	file, err := os.Create(f.path)
	if err != nil {
		return fmt.Errorf("create predictions file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(f.header()); err != nil {
		return fmt.Errorf("write predictions header: %w", err)
	}
	for i, rec := range records {
		row := []string{
			strconv.Itoa(i),
			rec.Datetime.UTC().Format(time.RFC3339),
			rec.CountryFrom,
			rec.CountryTo,
			formatFloat(rec.EnergySent),
			formatFloat(rec.HomeEnergyPrice),
			formatFloat(rec.HomeTotalGeneration),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write predictions row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush predictions file: %w", err)
	}
	return file.Close()
}

// ReadPredictions loads the stored records. Negative energy_sent values
// are clamped to zero here and nowhere else: the file on disk keeps what
// the model produced, consumers only ever see physical flows.
func (f *PredictionsFile) ReadPredictions() ([]domain.PredictionRecord, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open predictions file: %w", err)
	}
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse predictions file: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("predictions file %s is empty", f.path)
	}

	cols := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		cols[name] = i
	}
	for _, name := range []string{"datetime", "country_from", "country_to", "energy_sent"} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("predictions file missing column %s", name)
		}
	}
	priceCol, hasPrice := cols[domain.FeatureColumn("energy_price", f.home)]
	genCol, hasGen := cols[domain.FeatureColumn("total_generation", f.home)]

	records := make([]domain.PredictionRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		ts, err := time.Parse(time.RFC3339, row[cols["datetime"]])
		if err != nil {
			return nil, fmt.Errorf("predictions file: row %d: %w", i, err)
		}
		sent, err := strconv.ParseFloat(row[cols["energy_sent"]], 64)
		if err != nil {
			return nil, fmt.Errorf("predictions file: row %d: %w", i, err)
		}
		if sent < 0 {
			sent = 0
		}
		rec := domain.PredictionRecord{
			Datetime:    ts.UTC(),
			CountryFrom: row[cols["country_from"]],
			CountryTo:   row[cols["country_to"]],
			EnergySent:  sent,
		}
		if hasPrice {
			if rec.HomeEnergyPrice, err = strconv.ParseFloat(row[priceCol], 64); err != nil {
				return nil, fmt.Errorf("predictions file: row %d: %w", i, err)
			}
		}
		if hasGen {
			if rec.HomeTotalGeneration, err = strconv.ParseFloat(row[genCol], 64); err != nil {
				return nil, fmt.Errorf("predictions file: row %d: %w", i, err)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
