package pipeline

import (
	"time"

	"github.com/couchcryptid/crossflow/internal/domain"
)

// assembleMarkets normalizes each zone's raw generation table and joins it
// with that zone's price series, concatenating zones in configured order.
// Technologies outside the canonical set are dropped and logged once per
// zone.
func (p *Pipeline) assembleMarkets(markets map[string]zoneMarket) []domain.PriceGenerationRecord {
	var out []domain.PriceGenerationRecord
	for _, z := range p.zones.Zones {
		m, ok := markets[z.Code]
		if !ok {
			continue
		}
		records, unmapped := domain.JoinPricesGeneration(domain.NormalizeGeneration(m.gen), m.prices, z.Code)
		if len(unmapped) > 0 {
			p.logger.Warn("unmapped generation technologies dropped", "zone", z.Code, "technologies", unmapped)
		}
		out = append(out, records...)
	}
	return out
}

// forecastMarket builds price/generation records for hours where both the
// price and the total-generation forecast are published. Per-technology
// splits are not known ahead, so every technology column stays zero and
// only the total carries signal.
func forecastMarket(prices domain.PriceTable, totals domain.Series, zone string) []domain.PriceGenerationRecord {
	totalAt := make(map[time.Time]float64, len(totals.Times))
	for i, ts := range totals.Times {
		totalAt[ts.Truncate(time.Hour)] = totals.Values[i]
	}

	out := make([]domain.PriceGenerationRecord, 0, len(prices.Times))
	for i, ts := range prices.Times {
		hour := ts.Truncate(time.Hour)
		total, ok := totalAt[hour]
		if !ok {
			continue
		}
		out = append(out, domain.PriceGenerationRecord{
			Datetime:        hour,
			CountryCode:     zone,
			EnergyPrice:     prices.Prices[i],
			TotalGeneration: total,
		})
	}
	return out
}

// buildFeatures pivots both record sets into wide frames and inner-joins
// them on the hour.
func (p *Pipeline) buildFeatures(weather []domain.WeatherRecord, priceGen []domain.PriceGenerationRecord) domain.FeatureFrame {
	codes := p.zones.Codes()
	return domain.JoinFeatures(
		domain.PivotWeather(weather, codes),
		domain.PivotPricesGeneration(priceGen, codes),
	)
}

// clipWindow keeps the records whose timestamp falls inside the half-open
// window [start, end).
func clipWindow[T any](records []T, start, end time.Time, at func(T) time.Time) []T {
	out := make([]T, 0, len(records))
	for _, r := range records {
		ts := at(r)
		if !ts.Before(start) && ts.Before(end) {
			out = append(out, r)
		}
	}
	return out
}
