package domain

import (
	"math"
	"sort"
	"strings"
	"time"
)

// FeatureFrame is an hourly wide table: one row per timestamp, one column
// per pivoted variable+zone pair, rows in ascending time order.
type FeatureFrame struct {
	Times   []time.Time
	Columns []string
	Values  [][]float64
}

// FeatureColumn builds the pivoted column name for a variable in a zone:
// the variable with the lowercased zone code appended, e.g.
// temperature_2m_nl, energy_price_de_lu.
func FeatureColumn(variable, zone string) string {
	return variable + "_" + strings.ToLower(zone)
}

// PivotWeather spreads long weather records into one column per variable
// and zone. An hour is kept only when every zone reported; weather gaps
// cannot be zero-filled without inventing observations.
func PivotWeather(records []WeatherRecord, zones []string) FeatureFrame {
	byHour := make(map[time.Time]map[string]WeatherRecord)
	for _, r := range records {
		hour := r.Datetime.Truncate(time.Hour)
		m, ok := byHour[hour]
		if !ok {
			m = make(map[string]WeatherRecord, len(zones))
			byHour[hour] = m
		}
		m[r.CountryCode] = r
	}

	var hours []time.Time
	for hour, m := range byHour {
		complete := true
		for _, z := range zones {
			if _, ok := m[z]; !ok {
				complete = false
				break
			}
		}
		if complete {
			hours = append(hours, hour)
		}
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Before(hours[j]) })

	f := FeatureFrame{Times: hours}
	for _, v := range WeatherColumns {
		for _, z := range zones {
			f.Columns = append(f.Columns, FeatureColumn(v, z))
		}
	}
	for _, hour := range hours {
		m := byHour[hour]
		row := make([]float64, 0, len(f.Columns))
		for _, v := range WeatherColumns {
			for _, z := range zones {
				rec := m[z]
				val, _ := rec.Value(v)
				row = append(row, val)
			}
		}
		f.Values = append(f.Values, row)
	}
	return f
}

// priceGenVariables returns the pivoted column variables for the
// prices/generation group in stable order.
func priceGenVariables() []string {
	vars := make([]string, 0, len(GenerationTechs)+2)
	vars = append(vars, "energy_price")
	vars = append(vars, GenerationTechs...)
	vars = append(vars, "total_generation")
	return vars
}

// PivotPricesGeneration spreads long price/generation records into one
// column per variable and zone. Zones without a record for an hour fill
// with zero: a market that publishes nothing produced nothing the pipeline
// can see.
func PivotPricesGeneration(records []PriceGenerationRecord, zones []string) FeatureFrame {
	byHour := make(map[time.Time]map[string]PriceGenerationRecord)
	for _, r := range records {
		hour := r.Datetime.Truncate(time.Hour)
		m, ok := byHour[hour]
		if !ok {
			m = make(map[string]PriceGenerationRecord, len(zones))
			byHour[hour] = m
		}
		m[r.CountryCode] = r
	}

	hours := make([]time.Time, 0, len(byHour))
	for hour := range byHour {
		hours = append(hours, hour)
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Before(hours[j]) })

	vars := priceGenVariables()
	f := FeatureFrame{Times: hours}
	for _, v := range vars {
		for _, z := range zones {
			f.Columns = append(f.Columns, FeatureColumn(v, z))
		}
	}
	for _, hour := range hours {
		m := byHour[hour]
		row := make([]float64, 0, len(f.Columns))
		for _, v := range vars {
			for _, z := range zones {
				rec, ok := m[z]
				if !ok {
					row = append(row, 0)
					continue
				}
				switch v {
				case "energy_price":
					row = append(row, rec.EnergyPrice)
				case "total_generation":
					row = append(row, rec.TotalGeneration)
				default:
					val, _ := rec.Tech(v)
					row = append(row, val)
				}
			}
		}
		f.Values = append(f.Values, row)
	}
	return f
}

// JoinFeatures inner-joins two frames on the hour, keeping the left frame's
// row order and concatenating columns left-then-right.
func JoinFeatures(left, right FeatureFrame) FeatureFrame {
	rightAt := make(map[time.Time]int, len(right.Times))
	for i, ts := range right.Times {
		rightAt[ts] = i
	}

	out := FeatureFrame{Columns: make([]string, 0, len(left.Columns)+len(right.Columns))}
	out.Columns = append(out.Columns, left.Columns...)
	out.Columns = append(out.Columns, right.Columns...)
	for i, ts := range left.Times {
		j, ok := rightAt[ts]
		if !ok {
			continue
		}
		row := make([]float64, 0, len(out.Columns))
		row = append(row, left.Values[i]...)
		row = append(row, right.Values[j]...)
		out.Times = append(out.Times, ts)
		out.Values = append(out.Values, row)
	}
	return out
}

// BuildModelRows merges the feature frame with flow labels. With flows
// present, one row per flow record that has features for its hour; flows
// without features and feature hours without flows are dropped, so every
// training row carries a label. With a nil flow slice, every feature hour
// yields a single label-less row for the forecast path. Feature hours
// containing NaN are dropped either way.
func BuildModelRows(features FeatureFrame, flows []FlowRecord) []ModelFeatureRow {
	featAt := make(map[time.Time]map[string]float64, len(features.Times))
	for i, ts := range features.Times {
		row := make(map[string]float64, len(features.Columns))
		complete := true
		for j, col := range features.Columns {
			v := features.Values[i][j]
			if math.IsNaN(v) {
				complete = false
				break
			}
			row[col] = v
		}
		if complete {
			featAt[ts] = row
		}
	}

	if flows == nil {
		out := make([]ModelFeatureRow, 0, len(features.Times))
		for _, ts := range features.Times {
			row, ok := featAt[ts]
			if !ok {
				continue
			}
			out = append(out, ModelFeatureRow{Datetime: ts, Features: row})
		}
		return out
	}

	var out []ModelFeatureRow
	for _, f := range flows {
		row, ok := featAt[f.Datetime.Truncate(time.Hour)]
		if !ok {
			continue
		}
		label := f.EnergySent
		out = append(out, ModelFeatureRow{
			Datetime:    f.Datetime,
			CountryFrom: f.CountryFrom,
			CountryTo:   f.CountryTo,
			EnergySent:  &label,
			Features:    row,
		})
	}
	return out
}

// AddCountryPairs expands label-less rows into one row per directed pair
// between the home zone and each neighbour. Rows already bound to a pair
// pass through untouched. Expanded rows share the feature map; pair columns
// are added later, at matrix-build time.
func AddCountryPairs(rows []ModelFeatureRow, home string, neighbours []string) []ModelFeatureRow {
	out := make([]ModelFeatureRow, 0, len(rows)*2*len(neighbours))
	for _, r := range rows {
		if r.CountryFrom != "" || r.CountryTo != "" {
			out = append(out, r)
			continue
		}
		for _, n := range neighbours {
			exp := r
			exp.CountryFrom = home
			exp.CountryTo = n
			imp := r
			imp.CountryFrom = n
			imp.CountryTo = home
			out = append(out, exp, imp)
		}
	}
	return out
}
