package validation

import (
	"fmt"

	"github.com/couchcryptid/crossflow/internal/domain"
)

// weatherStrictMinColumns must stay strictly above the lower bound. The
// radiation columns are deliberately absent: they are ingested but carry no
// expectation.
var weatherStrictMinColumns = []string{
	"precipitation",
	"wind_speed_10m",
	"wind_speed_100m",
	"surface_pressure",
	"snow_depth",
	"cloudcover",
	"wind_direction_10m",
	"wind_direction_100m",
}

const (
	temperatureMin = -50.0
	temperatureMax = 50.0
)

// WeatherSuite validates weather batches: known zone codes, physically
// plausible non-negative columns, temperature inside a sane range.
type WeatherSuite struct {
	zones map[string]bool
}

func NewWeatherSuite(zones []string) *WeatherSuite {
	return &WeatherSuite{zones: zoneSet(zones)}
}

func (s *WeatherSuite) Validate(records []domain.WeatherRecord) *Result {
	res := &Result{Group: domain.GroupWeather, Rows: len(records)}
	for i, rec := range records {
		if !s.zones[rec.CountryCode] {
			res.add(i, "country_code", fmt.Sprintf("value %q is not a monitored zone", rec.CountryCode))
		}
		for _, col := range weatherStrictMinColumns {
			v, _ := rec.Value(col)
			if !(v > lowerBound) {
				res.add(i, col, fmt.Sprintf("value %v is not greater than %v", v, lowerBound))
			}
		}
		if !(rec.Temperature2M >= temperatureMin && rec.Temperature2M <= temperatureMax) {
			res.add(i, "temperature_2m", fmt.Sprintf("value %v is outside [%v, %v]", rec.Temperature2M, temperatureMin, temperatureMax))
		}
	}
	return res
}

// PricesGenerationSuite validates price/generation batches: known zone
// codes, generation columns at or above the lower bound. Prices are
// unconstrained; negative day-ahead prices are real market outcomes.
type PricesGenerationSuite struct {
	zones map[string]bool
}

func NewPricesGenerationSuite(zones []string) *PricesGenerationSuite {
	return &PricesGenerationSuite{zones: zoneSet(zones)}
}

func (s *PricesGenerationSuite) Validate(records []domain.PriceGenerationRecord) *Result {
	res := &Result{Group: domain.GroupPricesGeneration, Rows: len(records)}
	for i, rec := range records {
		if !s.zones[rec.CountryCode] {
			res.add(i, "country_code", fmt.Sprintf("value %q is not a monitored zone", rec.CountryCode))
		}
		for _, col := range domain.GenerationTechs {
			v, _ := rec.Tech(col)
			if !(v >= lowerBound) {
				res.add(i, col, fmt.Sprintf("value %v is below %v", v, lowerBound))
			}
		}
		if !(rec.TotalGeneration >= lowerBound) {
			res.add(i, "total_generation", fmt.Sprintf("value %v is below %v", rec.TotalGeneration, lowerBound))
		}
	}
	return res
}

// PhysicalFlowSuite validates flow batches: both ends of every pair must be
// monitored zones and the exchanged energy at or above the lower bound.
type PhysicalFlowSuite struct {
	zones map[string]bool
}

func NewPhysicalFlowSuite(zones []string) *PhysicalFlowSuite {
	return &PhysicalFlowSuite{zones: zoneSet(zones)}
}

func (s *PhysicalFlowSuite) Validate(records []domain.FlowRecord) *Result {
	res := &Result{Group: domain.GroupPhysicalFlow, Rows: len(records)}
	for i, rec := range records {
		if !s.zones[rec.CountryFrom] {
			res.add(i, "country_from", fmt.Sprintf("value %q is not a monitored zone", rec.CountryFrom))
		}
		if !s.zones[rec.CountryTo] {
			res.add(i, "country_to", fmt.Sprintf("value %q is not a monitored zone", rec.CountryTo))
		}
		if !(rec.EnergySent >= lowerBound) {
			res.add(i, "energy_sent", fmt.Sprintf("value %v is below %v", rec.EnergySent, lowerBound))
		}
	}
	return res
}
