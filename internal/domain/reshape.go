package domain

import (
	"math"
	"sort"
	"time"
)

// MeltFlows converts a wide flow table into long directed records. With
// export set, the home zone is the sending side of every pair; otherwise it
// receives. Gaps melt to zero: an absent reading means no scheduled
// exchange on that border, not a missing observation. Negative raw readings
// clamp to zero here; this is the only clamp point for realized flows, and
// every record leaving the melt satisfies energy_sent >= 0.
func MeltFlows(t FlowTable, home string, export bool) []FlowRecord {
	out := make([]FlowRecord, 0, len(t.Times)*len(t.Zones))
	for i, ts := range t.Times {
		for j, zone := range t.Zones {
			v := t.Values[i][j]
			if math.IsNaN(v) || v < 0 {
				v = 0
			}
			rec := FlowRecord{Datetime: ts, EnergySent: v}
			if export {
				rec.CountryFrom = home
				rec.CountryTo = zone
			} else {
				rec.CountryFrom = zone
				rec.CountryTo = home
			}
			out = append(out, rec)
		}
	}
	return out
}

// AssembleFlowTable aligns per-zone series on the union of their hours,
// leaving NaN where a zone has no reading. Zone order is preserved from
// the caller, so parallel per-zone pulls re-join deterministically.
func AssembleFlowTable(zones []string, series map[string]Series) FlowTable {
	hourSet := make(map[time.Time]bool)
	byZone := make(map[string]map[time.Time]float64, len(zones))
	for _, zone := range zones {
		s := series[zone]
		at := make(map[time.Time]float64, len(s.Times))
		for i, ts := range s.Times {
			hour := ts.Truncate(time.Hour)
			at[hour] = s.Values[i]
			hourSet[hour] = true
		}
		byZone[zone] = at
	}

	hours := make([]time.Time, 0, len(hourSet))
	for h := range hourSet {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Before(hours[j]) })

	t := FlowTable{Times: hours, Zones: zones}
	for _, hour := range hours {
		row := make([]float64, len(zones))
		for j, zone := range zones {
			v, ok := byZone[zone][hour]
			if !ok {
				v = math.NaN()
			}
			row[j] = v
		}
		t.Values = append(t.Values, row)
	}
	return t
}

// MergeFlows concatenates melted directions into one series ordered by
// datetime, then sender, then receiver.
func MergeFlows(parts ...[]FlowRecord) []FlowRecord {
	var out []FlowRecord
	for _, p := range parts {
		out = append(out, p...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Datetime.Equal(b.Datetime) {
			return a.Datetime.Before(b.Datetime)
		}
		if a.CountryFrom != b.CountryFrom {
			return a.CountryFrom < b.CountryFrom
		}
		return a.CountryTo < b.CountryTo
	})
	return out
}
