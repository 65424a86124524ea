package domain

import (
	"math"
	"sort"
	"strings"
	"time"
)

// GenerationSeries is a normalized generation table: hourly timestamps,
// canonical snake_case technology names, duplicate technologies summed.
type GenerationSeries struct {
	Times  []time.Time
	Techs  []string
	Values [][]float64
}

// CanonicalTech converts an upstream technology label to its canonical
// column name: lowercased, with every non-alphanumeric run collapsed to a
// single underscore. Already-canonical names map to themselves.
func CanonicalTech(label string) string {
	var b strings.Builder
	b.Grow(len(label))
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(label)) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			pendingSep = b.Len() > 0
			continue
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeGeneration reduces a raw generation table to canonical form:
// consumption columns dropped, technology labels canonicalized, duplicate
// technologies summed, sub-hourly readings summed into their hour. The
// operation is idempotent; normalized input passes through unchanged.
func NormalizeGeneration(t GenerationTable) GenerationSeries {
	type bucket struct {
		sum   map[string]float64
		seen  map[string]bool
		stamp time.Time
	}

	techSet := make(map[string]bool)
	buckets := make(map[time.Time]*bucket)
	var order []time.Time

	for i, ts := range t.Times {
		hour := ts.Truncate(time.Hour)
		bk, ok := buckets[hour]
		if !ok {
			bk = &bucket{sum: make(map[string]float64), seen: make(map[string]bool), stamp: hour}
			buckets[hour] = bk
			order = append(order, hour)
		}
		for _, col := range t.Columns {
			if col.Kind == "Actual Consumption" {
				continue
			}
			v := col.Values[i]
			if math.IsNaN(v) {
				continue
			}
			name := CanonicalTech(col.Tech)
			if name == "" {
				continue
			}
			techSet[name] = true
			bk.sum[name] += v
			bk.seen[name] = true
		}
	}

	techs := make([]string, 0, len(techSet))
	for name := range techSet {
		techs = append(techs, name)
	}
	sort.Strings(techs)
	sort.Slice(order, func(i, j int) bool { return order[i].Before(order[j]) })

	out := GenerationSeries{Times: order, Techs: techs}
	for _, hour := range order {
		bk := buckets[hour]
		row := make([]float64, len(techs))
		for j, name := range techs {
			if bk.seen[name] {
				row[j] = bk.sum[name]
			} else {
				row[j] = math.NaN()
			}
		}
		out.Values = append(out.Values, row)
	}
	return out
}

// JoinPricesGeneration inner-joins a normalized generation series with a
// price series on the hour and emits complete records for one zone. Hours
// missing either side, or holding a NaN, are dropped. TotalGeneration is
// recomputed as the row sum of the stored technology columns. Technologies
// outside the canonical set are not stored; their names come back sorted in
// unmapped so callers can log what was left behind.
func JoinPricesGeneration(gen GenerationSeries, prices PriceTable, countryCode string) (records []PriceGenerationRecord, unmapped []string) {
	priceAt := make(map[time.Time]float64, len(prices.Times))
	for i, ts := range prices.Times {
		priceAt[ts.Truncate(time.Hour)] = prices.Prices[i]
	}

	unmappedSet := make(map[string]bool)
	for i, ts := range gen.Times {
		price, ok := priceAt[ts]
		if !ok || math.IsNaN(price) {
			continue
		}

		rec := PriceGenerationRecord{Datetime: ts, CountryCode: countryCode, EnergyPrice: price}
		complete := true
		for j, name := range gen.Techs {
			v := gen.Values[i][j]
			if math.IsNaN(v) {
				complete = false
				break
			}
			if !rec.SetTech(name, v) {
				unmappedSet[name] = true
			}
		}
		if !complete {
			continue
		}
		rec.TotalGeneration = rec.SumTechs()
		records = append(records, rec)
	}

	for name := range unmappedSet {
		unmapped = append(unmapped, name)
	}
	sort.Strings(unmapped)
	return records, unmapped
}
