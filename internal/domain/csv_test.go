package domain

import (
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlowCSV(t *testing.T) {
	rows := [][]string{
		{"", "BE", "DE_LU", "sum"},
		{"2023-01-01 00:00:00+00:00", "10", "-5", "5"},
		{"2023-01-01 01:00:00+00:00", "", "7", "7"},
	}

	table, err := ParseFlowCSV(rows)
	require.NoError(t, err)

	assert.Equal(t, []string{"BE", "DE_LU"}, table.Zones)
	require.Len(t, table.Times, 2)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), table.Times[0])
	assert.Equal(t, []float64{10, -5}, table.Values[0])
	assert.True(t, math.IsNaN(table.Values[1][0]))
	assert.Equal(t, 7.0, table.Values[1][1])
}

func TestParseFlowCSV_ConvertsZoneTime(t *testing.T) {
	rows := [][]string{
		{"", "BE"},
		{"2023-06-01 02:00:00+02:00", "42"},
	}

	table, err := ParseFlowCSV(rows)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC), table.Times[0])
}

func TestParseFlowCSV_Malformed(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		_, err := ParseFlowCSV(nil)
		require.Error(t, err)
	})
	t.Run("bad timestamp", func(t *testing.T) {
		_, err := ParseFlowCSV([][]string{{"", "BE"}, {"yesterday", "1"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "row 2")
	})
	t.Run("bad number", func(t *testing.T) {
		_, err := ParseFlowCSV([][]string{{"", "BE"}, {"2023-01-01 00:00:00+00:00", "many"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "BE")
	})
	t.Run("ragged row", func(t *testing.T) {
		_, err := ParseFlowCSV([][]string{{"", "BE", "DE_LU"}, {"2023-01-01 00:00:00+00:00", "1"}})
		require.Error(t, err)
	})
}

func TestParseGenerationCSV_TwoLevel(t *testing.T) {
	rows := [][]string{
		{"", "Fossil Gas", "Fossil Gas", "Solar"},
		{"", "Actual Aggregated", "Actual Consumption", "Actual Aggregated"},
		{"2023-01-01 00:00:00+00:00", "100", "3", "0"},
	}

	table, schema, err := ParseGenerationCSV(rows)
	require.NoError(t, err)
	assert.Equal(t, SchemaTwoLevel, schema)
	require.Len(t, table.Columns, 3)
	assert.Equal(t, "Fossil Gas", table.Columns[0].Tech)
	assert.Equal(t, "Actual Aggregated", table.Columns[0].Kind)
	assert.Equal(t, "Actual Consumption", table.Columns[1].Kind)
	assert.Equal(t, []float64{100}, table.Columns[0].Values)
}

func TestParseGenerationCSV_TwoLevelIndexed(t *testing.T) {
	rows := [][]string{
		{"", "Nuclear", "Wind Onshore"},
		{"", "Actual Aggregated", "Actual Aggregated"},
		{"datetime", "", ""},
		{"2023-01-01 00:00:00+00:00", "480", "120"},
		{"2023-01-01 01:00:00+00:00", "481", "130"},
	}

	table, schema, err := ParseGenerationCSV(rows)
	require.NoError(t, err)
	assert.Equal(t, SchemaTwoLevelIndexed, schema)
	require.Len(t, table.Times, 2)
	assert.Equal(t, []float64{480, 481}, table.Columns[0].Values)
}

func TestParseGenerationCSV_FlatTuple(t *testing.T) {
	rows := [][]string{
		{"", "Fossil Gas, Actual Aggregated", "Hydro Run-of-river and poundage, Actual Aggregated", "Other"},
		{"2023-01-01 00:00:00+00:00", "100", "20", "1"},
	}

	table, schema, err := ParseGenerationCSV(rows)
	require.NoError(t, err)
	assert.Equal(t, SchemaFlatTuple, schema)
	require.Len(t, table.Columns, 3)
	assert.Equal(t, "Fossil Gas", table.Columns[0].Tech)
	assert.Equal(t, "Actual Aggregated", table.Columns[0].Kind)
	assert.Equal(t, "Hydro Run-of-river and poundage", table.Columns[1].Tech)
	assert.Equal(t, "Other", table.Columns[2].Tech)
	assert.Empty(t, table.Columns[2].Kind)
}

func TestParseGenerationCSV_UnknownSchema(t *testing.T) {
	_, schema, err := ParseGenerationCSV([][]string{{"", "Fossil Gas"}})
	require.ErrorIs(t, err, ErrUnknownGenerationSchema)
	assert.Equal(t, SchemaUnknown, schema)
}

func TestParsePriceCSV(t *testing.T) {
	rows := [][]string{
		{"", "0"},
		{"2023-01-01 00:00:00+00:00", "45.5"},
		{"2023-01-01 01:00:00+00:00", "-12.3"},
	}

	table, err := ParsePriceCSV(rows)
	require.NoError(t, err)
	require.Len(t, table.Times, 2)
	assert.Equal(t, []float64{45.5, -12.3}, table.Prices)
}

func TestParsePriceCSV_WithIndexColumn(t *testing.T) {
	rows := [][]string{
		{"Unnamed: 0", "Timestamp", "Price"},
		{"0", "2023-01-01 00:00:00+00:00", "45.5"},
		{"1", "2023-01-01 01:00:00+00:00", "46.0"},
	}

	table, err := ParsePriceCSV(rows)
	require.NoError(t, err)
	require.Len(t, table.Prices, 2)
	assert.Equal(t, 45.5, table.Prices[0])
	assert.Equal(t, time.Date(2023, 1, 1, 1, 0, 0, 0, time.UTC), table.Times[1])
}

func TestParsePriceCSV_NoTimestamp(t *testing.T) {
	_, err := ParsePriceCSV([][]string{
		{"a", "b"},
		{"1", "2"},
	})
	require.Error(t, err)
}

func weatherHeader() []string {
	header := []string{"Unnamed: 0", "time"}
	return append(header, WeatherColumns...)
}

func weatherRow(ts string, value float64) []string {
	row := []string{"0", ts}
	for range WeatherColumns {
		row = append(row, strconv.FormatFloat(value, 'g', -1, 64))
	}
	return row
}

func TestParseWeatherCSV(t *testing.T) {
	rows := [][]string{
		weatherHeader(),
		weatherRow("2023-01-01T00:00", 1.5),
		weatherRow("2023-01-01T01:00", 2.5),
	}

	records, err := ParseWeatherCSV(rows, "NL")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "NL", records[0].CountryCode)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), records[0].Datetime)
	assert.Equal(t, 1.5, records[0].Temperature2M)
	assert.Equal(t, 1.5, records[0].SnowDepth)
}

func TestParseWeatherCSV_DropsIncompleteRows(t *testing.T) {
	incomplete := weatherRow("2023-01-01T01:00", 2.5)
	incomplete[3] = "" // blank out one variable

	rows := [][]string{
		weatherHeader(),
		weatherRow("2023-01-01T00:00", 1.5),
		incomplete,
	}

	records, err := ParseWeatherCSV(rows, "NL")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), records[0].Datetime)
}

func TestParseWeatherCSV_MissingColumn(t *testing.T) {
	rows := [][]string{
		{"time", "temperature_2m"},
		{"2023-01-01T00:00", "1.5"},
	}
	_, err := ParseWeatherCSV(rows, "NL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing column")
}
