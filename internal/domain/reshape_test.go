package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeltFlows_Export(t *testing.T) {
	ts := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	table := FlowTable{
		Times:  []time.Time{ts},
		Zones:  []string{"BE", "DE_LU"},
		Values: [][]float64{{10, -5}},
	}

	records := MeltFlows(table, "NL", true)
	require.Len(t, records, 2)

	assert.Equal(t, FlowRecord{Datetime: ts, CountryFrom: "NL", CountryTo: "BE", EnergySent: 10}, records[0])
	// Negative raw readings clamp to zero in the melt.
	assert.Equal(t, FlowRecord{Datetime: ts, CountryFrom: "NL", CountryTo: "DE_LU", EnergySent: 0}, records[1])
}

func TestMeltFlows_NeverEmitsNegative(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	table := FlowTable{
		Times:  []time.Time{ts},
		Zones:  []string{"BE", "DE_LU", "GB"},
		Values: [][]float64{{-0.01, math.NaN(), 12}},
	}

	for _, export := range []bool{true, false} {
		for _, rec := range MeltFlows(table, "NL", export) {
			assert.GreaterOrEqual(t, rec.EnergySent, 0.0)
		}
	}
}

func TestMeltFlows_Import(t *testing.T) {
	ts := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	table := FlowTable{
		Times:  []time.Time{ts},
		Zones:  []string{"NO_2"},
		Values: [][]float64{{250}},
	}

	records := MeltFlows(table, "NL", false)
	require.Len(t, records, 1)
	assert.Equal(t, "NO_2", records[0].CountryFrom)
	assert.Equal(t, "NL", records[0].CountryTo)
	assert.Equal(t, 250.0, records[0].EnergySent)
}

func TestMeltFlows_GapsBecomeZero(t *testing.T) {
	ts := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	table := FlowTable{
		Times:  []time.Time{ts},
		Zones:  []string{"BE", "GB"},
		Values: [][]float64{{math.NaN(), 80}},
	}

	records := MeltFlows(table, "NL", true)
	require.Len(t, records, 2)
	assert.Equal(t, 0.0, records[0].EnergySent)
	assert.Equal(t, 80.0, records[1].EnergySent)
}

func TestMergeFlows_OrdersByTimeThenPair(t *testing.T) {
	t0 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	exports := []FlowRecord{
		{Datetime: t1, CountryFrom: "NL", CountryTo: "BE", EnergySent: 1},
		{Datetime: t0, CountryFrom: "NL", CountryTo: "BE", EnergySent: 2},
	}
	imports := []FlowRecord{
		{Datetime: t0, CountryFrom: "BE", CountryTo: "NL", EnergySent: 3},
	}

	merged := MergeFlows(exports, imports)
	require.Len(t, merged, 3)
	assert.Equal(t, "BE", merged[0].CountryFrom)
	assert.Equal(t, "NL", merged[1].CountryFrom)
	assert.True(t, merged[2].Datetime.Equal(t1))
}

func TestDirection(t *testing.T) {
	assert.Equal(t, DirectionExport, Direction("NL", "NL"))
	assert.Equal(t, DirectionImport, Direction("NL", "BE"))
}
