package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crossflow/internal/domain"
)

func TestForecastMarket_JoinsOnPublishedHours(t *testing.T) {
	h0 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	h1 := h0.Add(time.Hour)
	h2 := h0.Add(2 * time.Hour)

	prices := domain.PriceTable{Times: []time.Time{h0, h1, h2}, Prices: []float64{35, 45, 55}}
	// No total published for h1; that hour must drop.
	totals := domain.Series{Times: []time.Time{h0, h2}, Values: []float64{900, 950}}

	records := forecastMarket(prices, totals, "NL")
	require.Len(t, records, 2)

	assert.Equal(t, h0, records[0].Datetime)
	assert.Equal(t, "NL", records[0].CountryCode)
	assert.Equal(t, 35.0, records[0].EnergyPrice)
	assert.Equal(t, 900.0, records[0].TotalGeneration)
	assert.Equal(t, h2, records[1].Datetime)

	// Only the total is known day-ahead.
	for _, tech := range domain.GenerationTechs {
		v, ok := records[0].Tech(tech)
		require.True(t, ok)
		assert.Zero(t, v)
	}
}

func TestClipWindow_HalfOpen(t *testing.T) {
	h := func(i int) time.Time {
		return time.Date(2024, 1, 1, i, 0, 0, 0, time.UTC)
	}
	records := []domain.FlowRecord{
		{Datetime: h(0)}, {Datetime: h(1)}, {Datetime: h(2)},
	}

	got := clipWindow(records, h(1), h(2), func(r domain.FlowRecord) time.Time { return r.Datetime })
	require.Len(t, got, 1)
	assert.Equal(t, h(1), got[0].Datetime)
}
