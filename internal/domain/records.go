package domain

import "time"

// FlowRecord is one hour of realized cross-border exchange on a directed
// interconnection. EnergySent is non-negative: the melt clamps negative raw
// readings to zero before anything downstream sees them.
type FlowRecord struct {
	Datetime    time.Time `json:"datetime"`
	CountryFrom string    `json:"country_from"`
	CountryTo   string    `json:"country_to"`
	EnergySent  float64   `json:"energy_sent"`
}

// FlowDirection classifies a directed pair relative to the home zone.
type FlowDirection string

const (
	DirectionExport FlowDirection = "Export"
	DirectionImport FlowDirection = "Import"
)

// Direction returns Export when the home zone is the sending side.
func Direction(home, countryFrom string) FlowDirection {
	if countryFrom == home {
		return DirectionExport
	}
	return DirectionImport
}

// WeatherColumns lists the hourly weather variables in canonical order,
// matching the Open-Meteo request parameters.
var WeatherColumns = []string{
	"temperature_2m",
	"cloudcover",
	"direct_radiation",
	"diffuse_radiation",
	"surface_pressure",
	"wind_speed_10m",
	"wind_direction_10m",
	"wind_speed_100m",
	"wind_direction_100m",
	"precipitation",
	"snow_depth",
}

// WeatherRecord is one hour of weather at a zone's centroid.
type WeatherRecord struct {
	Datetime          time.Time `json:"datetime"`
	CountryCode       string    `json:"country_code"`
	Temperature2M     float64   `json:"temperature_2m"`
	CloudCover        float64   `json:"cloudcover"`
	DirectRadiation   float64   `json:"direct_radiation"`
	DiffuseRadiation  float64   `json:"diffuse_radiation"`
	SurfacePressure   float64   `json:"surface_pressure"`
	WindSpeed10M      float64   `json:"wind_speed_10m"`
	WindDirection10M  float64   `json:"wind_direction_10m"`
	WindSpeed100M     float64   `json:"wind_speed_100m"`
	WindDirection100M float64   `json:"wind_direction_100m"`
	Precipitation     float64   `json:"precipitation"`
	SnowDepth         float64   `json:"snow_depth"`
}

// Value returns the named weather column, or false for an unknown column.
func (r *WeatherRecord) Value(column string) (float64, bool) {
	switch column {
	case "temperature_2m":
		return r.Temperature2M, true
	case "precipitation":
		return r.Precipitation, true
	case "cloudcover":
		return r.CloudCover, true
	case "snow_depth":
		return r.SnowDepth, true
	case "surface_pressure":
		return r.SurfacePressure, true
	case "wind_speed_10m":
		return r.WindSpeed10M, true
	case "wind_direction_10m":
		return r.WindDirection10M, true
	case "wind_speed_100m":
		return r.WindSpeed100M, true
	case "wind_direction_100m":
		return r.WindDirection100M, true
	case "direct_radiation":
		return r.DirectRadiation, true
	case "diffuse_radiation":
		return r.DiffuseRadiation, true
	}
	return 0, false
}

// Set assigns the named weather column, returning false for unknown columns.
func (r *WeatherRecord) Set(column string, v float64) bool {
	switch column {
	case "temperature_2m":
		r.Temperature2M = v
	case "precipitation":
		r.Precipitation = v
	case "cloudcover":
		r.CloudCover = v
	case "snow_depth":
		r.SnowDepth = v
	case "surface_pressure":
		r.SurfacePressure = v
	case "wind_speed_10m":
		r.WindSpeed10M = v
	case "wind_direction_10m":
		r.WindDirection10M = v
	case "wind_speed_100m":
		r.WindSpeed100M = v
	case "wind_direction_100m":
		r.WindDirection100M = v
	case "direct_radiation":
		r.DirectRadiation = v
	case "diffuse_radiation":
		r.DiffuseRadiation = v
	default:
		return false
	}
	return true
}

// GenerationTechs lists the canonical generation technology columns in
// stable (alphabetical) order. Upstream labels are canonicalized onto this
// set; labels outside it are not stored.
var GenerationTechs = []string{
	"biomass",
	"fossil_brown_coal_lignite",
	"fossil_coal_derived_gas",
	"fossil_gas",
	"fossil_hard_coal",
	"fossil_oil",
	"geothermal",
	"hydro_pumped_storage",
	"hydro_run_of_river_and_poundage",
	"hydro_water_reservoir",
	"nuclear",
	"other",
	"other_renewable",
	"solar",
	"wind_offshore",
	"wind_onshore",
}

// PriceGenerationRecord is one hour of day-ahead price and per-technology
// generation for a zone. TotalGeneration is always the row sum of the
// technology columns.
type PriceGenerationRecord struct {
	Datetime    time.Time `json:"datetime"`
	CountryCode string    `json:"country_code"`
	EnergyPrice float64   `json:"energy_price"`

	Biomass                    float64 `json:"biomass"`
	FossilBrownCoalLignite     float64 `json:"fossil_brown_coal_lignite"`
	FossilCoalDerivedGas       float64 `json:"fossil_coal_derived_gas"`
	FossilGas                  float64 `json:"fossil_gas"`
	FossilHardCoal             float64 `json:"fossil_hard_coal"`
	FossilOil                  float64 `json:"fossil_oil"`
	Geothermal                 float64 `json:"geothermal"`
	HydroPumpedStorage         float64 `json:"hydro_pumped_storage"`
	HydroRunOfRiverAndPoundage float64 `json:"hydro_run_of_river_and_poundage"`
	HydroWaterReservoir        float64 `json:"hydro_water_reservoir"`
	Nuclear                    float64 `json:"nuclear"`
	Other                      float64 `json:"other"`
	OtherRenewable             float64 `json:"other_renewable"`
	Solar                      float64 `json:"solar"`
	WindOffshore               float64 `json:"wind_offshore"`
	WindOnshore                float64 `json:"wind_onshore"`

	TotalGeneration float64 `json:"total_generation"`
}

// Tech returns the named technology column, or false for an unknown name.
func (r *PriceGenerationRecord) Tech(name string) (float64, bool) {
	switch name {
	case "biomass":
		return r.Biomass, true
	case "fossil_brown_coal_lignite":
		return r.FossilBrownCoalLignite, true
	case "fossil_coal_derived_gas":
		return r.FossilCoalDerivedGas, true
	case "fossil_gas":
		return r.FossilGas, true
	case "fossil_hard_coal":
		return r.FossilHardCoal, true
	case "fossil_oil":
		return r.FossilOil, true
	case "geothermal":
		return r.Geothermal, true
	case "hydro_pumped_storage":
		return r.HydroPumpedStorage, true
	case "hydro_run_of_river_and_poundage":
		return r.HydroRunOfRiverAndPoundage, true
	case "hydro_water_reservoir":
		return r.HydroWaterReservoir, true
	case "nuclear":
		return r.Nuclear, true
	case "other":
		return r.Other, true
	case "other_renewable":
		return r.OtherRenewable, true
	case "solar":
		return r.Solar, true
	case "wind_offshore":
		return r.WindOffshore, true
	case "wind_onshore":
		return r.WindOnshore, true
	}
	return 0, false
}

// SetTech assigns the named technology column, returning false for names
// outside the canonical set.
func (r *PriceGenerationRecord) SetTech(name string, v float64) bool {
	switch name {
	case "biomass":
		r.Biomass = v
	case "fossil_brown_coal_lignite":
		r.FossilBrownCoalLignite = v
	case "fossil_coal_derived_gas":
		r.FossilCoalDerivedGas = v
	case "fossil_gas":
		r.FossilGas = v
	case "fossil_hard_coal":
		r.FossilHardCoal = v
	case "fossil_oil":
		r.FossilOil = v
	case "geothermal":
		r.Geothermal = v
	case "hydro_pumped_storage":
		r.HydroPumpedStorage = v
	case "hydro_run_of_river_and_poundage":
		r.HydroRunOfRiverAndPoundage = v
	case "hydro_water_reservoir":
		r.HydroWaterReservoir = v
	case "nuclear":
		r.Nuclear = v
	case "other":
		r.Other = v
	case "other_renewable":
		r.OtherRenewable = v
	case "solar":
		r.Solar = v
	case "wind_offshore":
		r.WindOffshore = v
	case "wind_onshore":
		r.WindOnshore = v
	default:
		return false
	}
	return true
}

// SumTechs returns the row sum of the canonical technology columns.
func (r *PriceGenerationRecord) SumTechs() float64 {
	var sum float64
	for _, name := range GenerationTechs {
		v, _ := r.Tech(name)
		sum += v
	}
	return sum
}

// ModelFeatureRow is one training or forecast example: the pivoted feature
// columns for an hour plus the directed pair it describes. EnergySent is
// nil on forecast rows, where the label is not yet known.
type ModelFeatureRow struct {
	Datetime    time.Time
	CountryFrom string
	CountryTo   string
	EnergySent  *float64
	Features    map[string]float64
}

// PredictionRecord is one predicted hour for a directed pair, carrying the
// home-zone price and total generation used as context columns in the
// serving artifact.
type PredictionRecord struct {
	Datetime            time.Time `json:"datetime"`
	CountryFrom         string    `json:"country_from"`
	CountryTo           string    `json:"country_to"`
	EnergySent          float64   `json:"energy_sent"`
	HomeEnergyPrice     float64   `json:"home_energy_price"`
	HomeTotalGeneration float64   `json:"home_total_generation"`
}

// MetricRecord is one day of per-direction prediction error.
type MetricRecord struct {
	Date      time.Time `json:"date"`
	MAEImport float64   `json:"mae_import"`
	MAEExport float64   `json:"mae_export"`
}
