package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func weatherAt(ts time.Time, zone string, value float64) WeatherRecord {
	rec := WeatherRecord{Datetime: ts, CountryCode: zone}
	for _, col := range WeatherColumns {
		rec.Set(col, value)
	}
	return rec
}

func priceGenAt(ts time.Time, zone string, price, gas float64) PriceGenerationRecord {
	rec := PriceGenerationRecord{Datetime: ts, CountryCode: zone, EnergyPrice: price, FossilGas: gas}
	rec.TotalGeneration = rec.SumTechs()
	return rec
}

func TestFeatureColumn(t *testing.T) {
	assert.Equal(t, "temperature_2m_nl", FeatureColumn("temperature_2m", "NL"))
	assert.Equal(t, "energy_price_de_lu", FeatureColumn("energy_price", "DE_LU"))
	assert.Equal(t, "fossil_gas_no_2", FeatureColumn("fossil_gas", "NO_2"))
}

func TestPivotWeather_RoundTrip(t *testing.T) {
	t0 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	zones := []string{"NL", "BE"}
	records := []WeatherRecord{
		weatherAt(t0, "NL", 1),
		weatherAt(t0, "BE", 2),
	}

	frame := PivotWeather(records, zones)
	require.Equal(t, []time.Time{t0}, frame.Times)
	require.Len(t, frame.Columns, len(WeatherColumns)*2)

	// Every long value is addressable at its pivoted column name.
	colIdx := make(map[string]int, len(frame.Columns))
	for j, c := range frame.Columns {
		colIdx[c] = j
	}
	for _, rec := range records {
		for _, v := range WeatherColumns {
			j, ok := colIdx[FeatureColumn(v, rec.CountryCode)]
			require.True(t, ok, v)
			want, _ := rec.Value(v)
			assert.Equal(t, want, frame.Values[0][j])
		}
	}
}

func TestPivotWeather_DropsIncompleteHours(t *testing.T) {
	t0 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	records := []WeatherRecord{
		weatherAt(t0, "NL", 1),
		weatherAt(t0, "BE", 2),
		weatherAt(t1, "NL", 3), // BE missing at t1
	}

	frame := PivotWeather(records, []string{"NL", "BE"})
	assert.Equal(t, []time.Time{t0}, frame.Times)
}

func TestPivotPricesGeneration_FillsMissingZonesWithZero(t *testing.T) {
	t0 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []PriceGenerationRecord{
		priceGenAt(t0, "NL", 45, 100),
	}

	frame := PivotPricesGeneration(records, []string{"NL", "BE"})
	require.Equal(t, []time.Time{t0}, frame.Times)

	colIdx := make(map[string]int, len(frame.Columns))
	for j, c := range frame.Columns {
		colIdx[c] = j
	}
	assert.Equal(t, 45.0, frame.Values[0][colIdx["energy_price_nl"]])
	assert.Equal(t, 100.0, frame.Values[0][colIdx["fossil_gas_nl"]])
	assert.Equal(t, 100.0, frame.Values[0][colIdx["total_generation_nl"]])
	assert.Equal(t, 0.0, frame.Values[0][colIdx["energy_price_be"]])
	assert.Equal(t, 0.0, frame.Values[0][colIdx["total_generation_be"]])
}

func TestPivotPricesGeneration_RoundTrip(t *testing.T) {
	t0 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	zones := []string{"NL", "BE"}
	records := []PriceGenerationRecord{
		priceGenAt(t0, "NL", 45, 100),
		priceGenAt(t0, "BE", 50, 80),
		priceGenAt(t1, "NL", 46, 110),
		// BE absent at t1; the pivot fills it with zero
	}

	frame := PivotPricesGeneration(records, zones)
	colIdx := make(map[string]int, len(frame.Columns))
	for j, c := range frame.Columns {
		colIdx[c] = j
	}
	hourIdx := make(map[time.Time]int, len(frame.Times))
	for i, ts := range frame.Times {
		hourIdx[ts] = i
	}

	// Every original (datetime, country_code, value) triple survives the
	// trip to wide and back.
	for _, rec := range records {
		i := hourIdx[rec.Datetime]
		assert.Equal(t, rec.EnergyPrice, frame.Values[i][colIdx[FeatureColumn("energy_price", rec.CountryCode)]])
		assert.Equal(t, rec.TotalGeneration, frame.Values[i][colIdx[FeatureColumn("total_generation", rec.CountryCode)]])
		for _, tech := range GenerationTechs {
			want, _ := rec.Tech(tech)
			assert.Equal(t, want, frame.Values[i][colIdx[FeatureColumn(tech, rec.CountryCode)]])
		}
	}

	// The genuinely absent combination reads back as fill-zero.
	i := hourIdx[t1]
	assert.Equal(t, 0.0, frame.Values[i][colIdx["energy_price_be"]])
}

func TestJoinFeatures_InnerJoinOnHour(t *testing.T) {
	t0 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	t2 := t0.Add(2 * time.Hour)

	left := FeatureFrame{
		Times:   []time.Time{t0, t1},
		Columns: []string{"a"},
		Values:  [][]float64{{1}, {2}},
	}
	right := FeatureFrame{
		Times:   []time.Time{t1, t2},
		Columns: []string{"b"},
		Values:  [][]float64{{10}, {20}},
	}

	joined := JoinFeatures(left, right)
	assert.Equal(t, []time.Time{t1}, joined.Times)
	assert.Equal(t, []string{"a", "b"}, joined.Columns)
	assert.Equal(t, [][]float64{{2, 10}}, joined.Values)
}

func TestBuildModelRows_Training(t *testing.T) {
	t0 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	t2 := t0.Add(2 * time.Hour)

	features := FeatureFrame{
		Times:   []time.Time{t0, t1},
		Columns: []string{"temperature_2m_nl"},
		Values:  [][]float64{{5}, {6}},
	}
	flows := []FlowRecord{
		{Datetime: t0, CountryFrom: "NL", CountryTo: "BE", EnergySent: 10},
		{Datetime: t0, CountryFrom: "BE", CountryTo: "NL", EnergySent: 4},
		{Datetime: t2, CountryFrom: "NL", CountryTo: "BE", EnergySent: 9}, // no features at t2
	}

	rows := BuildModelRows(features, flows)
	require.Len(t, rows, 2)
	for _, r := range rows {
		require.NotNil(t, r.EnergySent)
		assert.Equal(t, 5.0, r.Features["temperature_2m_nl"])
	}
	assert.Equal(t, 10.0, *rows[0].EnergySent)
	assert.Equal(t, 4.0, *rows[1].EnergySent)
}

func TestBuildModelRows_ForecastKeepsAllHours(t *testing.T) {
	t0 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	features := FeatureFrame{
		Times:   []time.Time{t0, t1},
		Columns: []string{"temperature_2m_nl"},
		Values:  [][]float64{{5}, {6}},
	}

	rows := BuildModelRows(features, nil)
	require.Len(t, rows, 2)
	for _, r := range rows {
		assert.Nil(t, r.EnergySent)
		assert.Empty(t, r.CountryFrom)
		assert.Empty(t, r.CountryTo)
	}
}

func TestBuildModelRows_DropsNaNFeatureHours(t *testing.T) {
	t0 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	features := FeatureFrame{
		Times:   []time.Time{t0, t1},
		Columns: []string{"temperature_2m_nl"},
		Values:  [][]float64{{math.NaN()}, {6}},
	}

	rows := BuildModelRows(features, nil)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Datetime.Equal(t1))
}

func TestAddCountryPairs(t *testing.T) {
	t0 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	neighbours := []string{"BE", "DE_LU", "GB", "NO_2", "DK_1"}
	rows := []ModelFeatureRow{
		{Datetime: t0, Features: map[string]float64{"temperature_2m_nl": 5}},
	}

	expanded := AddCountryPairs(rows, "NL", neighbours)
	require.Len(t, expanded, 10)

	type pair struct{ from, to string }
	seen := make(map[pair]bool)
	for _, r := range expanded {
		seen[pair{r.CountryFrom, r.CountryTo}] = true
		assert.Equal(t, 5.0, r.Features["temperature_2m_nl"])
	}
	for _, n := range neighbours {
		assert.True(t, seen[pair{"NL", n}], n)
		assert.True(t, seen[pair{n, "NL"}], n)
	}
}

func TestAddCountryPairs_LeavesBoundRowsAlone(t *testing.T) {
	t0 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	label := 10.0
	rows := []ModelFeatureRow{
		{Datetime: t0, CountryFrom: "NL", CountryTo: "BE", EnergySent: &label},
	}

	expanded := AddCountryPairs(rows, "NL", []string{"BE", "DE_LU"})
	require.Len(t, expanded, 1)
	assert.Equal(t, rows[0], expanded[0])
}
