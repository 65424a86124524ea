package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crossflow/internal/domain"
)

func sampleRows() []domain.ModelFeatureRow {
	label := func(v float64) *float64 { return &v }
	feats := map[string]float64{
		"temperature_2m_nl":   5.5,
		"energy_price_nl":     42.0,
		"total_generation_nl": 9000.0,
		"fossil_gas_nl":       3000.0,
		"wind_offshore_nl":    1200.0,
	}
	at := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	return []domain.ModelFeatureRow{
		{Datetime: at, CountryFrom: "NL", CountryTo: "BE", EnergySent: label(100), Features: feats},
		{Datetime: at, CountryFrom: "BE", CountryTo: "NL", EnergySent: label(40), Features: feats},
	}
}

func TestSchema_TotalProductionDropsTechnologyColumns(t *testing.T) {
	columns, err := Schema(sampleRows(), FeatureSetTotalProduction)

	require.NoError(t, err)
	assert.Equal(t, []string{
		"energy_price_nl",
		"temperature_2m_nl",
		"total_generation_nl",
		"country_from_BE",
		"country_from_NL",
		"country_to_BE",
		"country_to_NL",
	}, columns)
}

func TestSchema_AllProductionKeepsTechnologyColumns(t *testing.T) {
	columns, err := Schema(sampleRows(), FeatureSetAllProduction)

	require.NoError(t, err)
	assert.Contains(t, columns, "fossil_gas_nl")
	assert.Contains(t, columns, "wind_offshore_nl")
	assert.Contains(t, columns, "total_generation_nl")
}

func TestSchema_RejectsRowsWithoutPairs(t *testing.T) {
	rows := sampleRows()
	rows[1].CountryTo = ""

	_, err := Schema(rows, FeatureSetAllProduction)

	assert.ErrorContains(t, err, "row 1 has no country pair")
}

func TestDesign_OneHotEncodesPairs(t *testing.T) {
	rows := sampleRows()
	columns, err := Schema(rows, FeatureSetTotalProduction)
	require.NoError(t, err)

	x, err := Design(rows, columns)
	require.NoError(t, err)

	at := func(col string, row int) float64 {
		for j, c := range columns {
			if c == col {
				return x.At(row, j)
			}
		}
		t.Fatalf("column %s not in schema", col)
		return 0
	}
	// Row 0 is NL→BE, row 1 the reverse.
	assert.Equal(t, 1.0, at("country_from_NL", 0))
	assert.Equal(t, 0.0, at("country_from_BE", 0))
	assert.Equal(t, 1.0, at("country_to_BE", 0))
	assert.Equal(t, 42.0, at("energy_price_nl", 0))
	assert.Equal(t, 1.0, at("country_from_BE", 1))
	assert.Equal(t, 0.0, at("country_to_BE", 1))
}

func TestDesign_MissingFeatureErrors(t *testing.T) {
	_, err := Design(sampleRows(), []string{"humidity_nl"})

	assert.ErrorContains(t, err, "row 0 missing feature humidity_nl")
}

func TestLabels(t *testing.T) {
	rows := sampleRows()

	y, err := Labels(rows)
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 40}, y)

	rows[1].EnergySent = nil
	_, err = Labels(rows)
	assert.ErrorContains(t, err, "no label")
}

func TestSplitHoldout(t *testing.T) {
	rows := make([]domain.ModelFeatureRow, 10)

	train, test, err := SplitHoldout(rows, 0.8)

	require.NoError(t, err)
	assert.Len(t, train, 8)
	assert.Len(t, test, 2)
}

func TestSplitHoldout_RejectsEmptySides(t *testing.T) {
	// A single row rounds the training side down to nothing.
	_, _, err := SplitHoldout(make([]domain.ModelFeatureRow, 1), 0.8)
	assert.ErrorContains(t, err, "1 rows leave an empty side")

	// A full fraction leaves no holdout.
	_, _, err = SplitHoldout(make([]domain.ModelFeatureRow, 10), 1.0)
	assert.ErrorContains(t, err, "empty side")

	_, _, err = SplitHoldout(nil, 0.8)
	assert.Error(t, err)
}

func TestParseFeatureSet(t *testing.T) {
	set, err := ParseFeatureSet("all_production")
	require.NoError(t, err)
	assert.Equal(t, FeatureSetAllProduction, set)

	_, err = ParseFeatureSet("everything")
	assert.ErrorContains(t, err, "unknown feature set")
}
