package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/crossflow/internal/domain"
)

// Memory is an in-memory feature store with the same surface as Postgres.
// It errors on writes to groups that were never ensured, so tests catch
// wiring mistakes the database would catch.
type Memory struct {
	mu sync.Mutex

	ensured      map[string]bool
	descriptions map[string]string
	views        map[string]string

	weather     map[string]map[string]domain.WeatherRecord
	pricesGen   map[string]map[string]domain.PriceGenerationRecord
	flows       map[string]map[string]domain.FlowRecord
	modelRows   map[string]map[string]domain.ModelFeatureRow
	predictions map[string]map[string]domain.PredictionRecord
}

func NewMemory() *Memory {
	return &Memory{
		ensured:      make(map[string]bool),
		descriptions: make(map[string]string),
		views:        make(map[string]string),
		weather:      make(map[string]map[string]domain.WeatherRecord),
		pricesGen:    make(map[string]map[string]domain.PriceGenerationRecord),
		flows:        make(map[string]map[string]domain.FlowRecord),
		modelRows:    make(map[string]map[string]domain.ModelFeatureRow),
		predictions:  make(map[string]map[string]domain.PredictionRecord),
	}
}

func (m *Memory) CheckReadiness(_ context.Context) error { return nil }

func (m *Memory) Close() error { return nil }

func (m *Memory) EnsureGroup(_ context.Context, group string, version int) error {
	spec, ok := groupSpecs[group]
	if !ok {
		return fmt.Errorf("unknown feature group %q", group)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	table := tableName(group, version)
	m.ensured[table] = true
	m.descriptions[table] = spec.description
	return nil
}

func (m *Memory) EnsureFeatureView(_ context.Context, name string, version int, query string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.views[fmt.Sprintf("%s_v%d", name, version)] = query
	return nil
}

// FeatureView returns the stored query for a view version, for tests.
func (m *Memory) FeatureView(name string, version int) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.views[fmt.Sprintf("%s_v%d", name, version)]
	return q, ok
}

func (m *Memory) checkEnsured(group string, version int) (string, error) {
	table := tableName(group, version)
	if !m.ensured[table] {
		return "", fmt.Errorf("feature group %s not ensured", table)
	}
	return table, nil
}

func zoneKey(t time.Time, code string) string {
	return fmt.Sprintf("%d|%s", t.UTC().UnixNano(), code)
}

func pairKey(t time.Time, from, to string) string {
	return fmt.Sprintf("%d|%s|%s", t.UTC().UnixNano(), from, to)
}

func (m *Memory) UpsertWeather(_ context.Context, version int, records []domain.WeatherRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	table, err := m.checkEnsured(domain.GroupWeather, version)
	if err != nil {
		return err
	}
	rows := m.weather[table]
	if rows == nil {
		rows = make(map[string]domain.WeatherRecord)
		m.weather[table] = rows
	}
	for _, rec := range records {
		rec.Datetime = rec.Datetime.UTC()
		rows[zoneKey(rec.Datetime, rec.CountryCode)] = rec
	}
	return nil
}

func (m *Memory) UpsertPricesGeneration(_ context.Context, version int, records []domain.PriceGenerationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	table, err := m.checkEnsured(domain.GroupPricesGeneration, version)
	if err != nil {
		return err
	}
	rows := m.pricesGen[table]
	if rows == nil {
		rows = make(map[string]domain.PriceGenerationRecord)
		m.pricesGen[table] = rows
	}
	for _, rec := range records {
		rec.Datetime = rec.Datetime.UTC()
		rows[zoneKey(rec.Datetime, rec.CountryCode)] = rec
	}
	return nil
}

func (m *Memory) UpsertFlows(_ context.Context, version int, records []domain.FlowRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	table, err := m.checkEnsured(domain.GroupPhysicalFlow, version)
	if err != nil {
		return err
	}
	rows := m.flows[table]
	if rows == nil {
		rows = make(map[string]domain.FlowRecord)
		m.flows[table] = rows
	}
	for _, rec := range records {
		rec.Datetime = rec.Datetime.UTC()
		rows[pairKey(rec.Datetime, rec.CountryFrom, rec.CountryTo)] = rec
	}
	return nil
}

func (m *Memory) UpsertModelRows(_ context.Context, version int, rowsIn []domain.ModelFeatureRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	table, err := m.checkEnsured(domain.GroupModelData, version)
	if err != nil {
		return err
	}
	rows := m.modelRows[table]
	if rows == nil {
		rows = make(map[string]domain.ModelFeatureRow)
		m.modelRows[table] = rows
	}
	for _, row := range rowsIn {
		rows[pairKey(row.Datetime, row.CountryFrom, row.CountryTo)] = copyModelRow(row)
	}
	return nil
}

func (m *Memory) UpsertPredictions(_ context.Context, version int, records []domain.PredictionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	table, err := m.checkEnsured(domain.GroupPredictions, version)
	if err != nil {
		return err
	}
	rows := m.predictions[table]
	if rows == nil {
		rows = make(map[string]domain.PredictionRecord)
		m.predictions[table] = rows
	}
	for _, rec := range records {
		rec.Datetime = rec.Datetime.UTC()
		rows[pairKey(rec.Datetime, rec.CountryFrom, rec.CountryTo)] = rec
	}
	return nil
}

func (m *Memory) ReadWeather(_ context.Context, version int, start, end time.Time) ([]domain.WeatherRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.WeatherRecord
	for _, rec := range m.weather[tableName(domain.GroupWeather, version)] {
		if inWindow(rec.Datetime, start, end) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Datetime.Equal(out[j].Datetime) {
			return out[i].Datetime.Before(out[j].Datetime)
		}
		return out[i].CountryCode < out[j].CountryCode
	})
	return out, nil
}

func (m *Memory) ReadPricesGeneration(_ context.Context, version int, start, end time.Time) ([]domain.PriceGenerationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PriceGenerationRecord
	for _, rec := range m.pricesGen[tableName(domain.GroupPricesGeneration, version)] {
		if inWindow(rec.Datetime, start, end) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Datetime.Equal(out[j].Datetime) {
			return out[i].Datetime.Before(out[j].Datetime)
		}
		return out[i].CountryCode < out[j].CountryCode
	})
	return out, nil
}

func (m *Memory) ReadFlows(_ context.Context, version int, start, end time.Time) ([]domain.FlowRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.FlowRecord
	for _, rec := range m.flows[tableName(domain.GroupPhysicalFlow, version)] {
		if inWindow(rec.Datetime, start, end) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return lessPair(out[i].Datetime, out[i].CountryFrom, out[i].CountryTo, out[j].Datetime, out[j].CountryFrom, out[j].CountryTo) })
	return out, nil
}

func (m *Memory) ReadModelRows(_ context.Context, version int, start, end time.Time, labelledOnly bool) ([]domain.ModelFeatureRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ModelFeatureRow
	for _, row := range m.modelRows[tableName(domain.GroupModelData, version)] {
		if !inWindow(row.Datetime, start, end) {
			continue
		}
		if labelledOnly && row.EnergySent == nil {
			continue
		}
		out = append(out, copyModelRow(row))
	}
	sort.Slice(out, func(i, j int) bool { return lessPair(out[i].Datetime, out[i].CountryFrom, out[i].CountryTo, out[j].Datetime, out[j].CountryFrom, out[j].CountryTo) })
	return out, nil
}

// ReadPredictions returns predicted rows in [start, end).
func (m *Memory) ReadPredictions(_ context.Context, version int, start, end time.Time) ([]domain.PredictionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.PredictionRecord
	for _, rec := range m.predictions[tableName(domain.GroupPredictions, version)] {
		if inWindow(rec.Datetime, start, end) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return lessPair(out[i].Datetime, out[i].CountryFrom, out[i].CountryTo, out[j].Datetime, out[j].CountryFrom, out[j].CountryTo) })
	return out, nil
}

func inWindow(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}

func lessPair(ti time.Time, fi, toi string, tj time.Time, fj, toj string) bool {
	if !ti.Equal(tj) {
		return ti.Before(tj)
	}
	if fi != fj {
		return fi < fj
	}
	return toi < toj
}

func copyModelRow(row domain.ModelFeatureRow) domain.ModelFeatureRow {
	out := row
	out.Datetime = row.Datetime.UTC()
	if row.EnergySent != nil {
		v := *row.EnergySent
		out.EnergySent = &v
	}
	out.Features = make(map[string]float64, len(row.Features))
	for k, v := range row.Features {
		out.Features[k] = v
	}
	return out
}
