package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/crossflow/internal/domain"
)

var testZones = []string{"NL", "BE", "DE_LU", "DK_1", "GB", "NO_2"}

func validWeather(zone string) domain.WeatherRecord {
	rec := domain.WeatherRecord{
		Datetime:    time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		CountryCode: zone,
	}
	for _, col := range domain.WeatherColumns {
		rec.Set(col, 1.0)
	}
	return rec
}

func TestWeatherSuite_Passes(t *testing.T) {
	suite := NewWeatherSuite(testZones)
	res := suite.Validate([]domain.WeatherRecord{validWeather("NL"), validWeather("BE")})

	assert.True(t, res.Passed())
	assert.NoError(t, res.Err())
	assert.Equal(t, 2, res.Rows)
	assert.Nil(t, res.ColumnCounts())
}

func TestWeatherSuite_RejectsUnknownZone(t *testing.T) {
	suite := NewWeatherSuite(testZones)
	res := suite.Validate([]domain.WeatherRecord{validWeather("FR")})

	require.False(t, res.Passed())
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "country_code", res.Violations[0].Column)
	assert.ErrorContains(t, res.Err(), "FR")
	assert.ErrorContains(t, res.Err(), domain.GroupWeather)
}

func TestWeatherSuite_StrictLowerBound(t *testing.T) {
	// Exactly the bound fails the strict check; a hair above passes.
	atBound := validWeather("NL")
	atBound.Precipitation = -0.1
	aboveBound := validWeather("NL")
	aboveBound.Precipitation = -0.09

	suite := NewWeatherSuite(testZones)

	res := suite.Validate([]domain.WeatherRecord{atBound})
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "precipitation", res.Violations[0].Column)

	assert.True(t, suite.Validate([]domain.WeatherRecord{aboveBound}).Passed())
}

func TestWeatherSuite_TemperatureRange(t *testing.T) {
	tooCold := validWeather("NL")
	tooCold.Temperature2M = -50.5
	tooHot := validWeather("NL")
	tooHot.Temperature2M = 51
	extreme := validWeather("NL")
	extreme.Temperature2M = 50 // inclusive bound

	suite := NewWeatherSuite(testZones)
	assert.False(t, suite.Validate([]domain.WeatherRecord{tooCold}).Passed())
	assert.False(t, suite.Validate([]domain.WeatherRecord{tooHot}).Passed())
	assert.True(t, suite.Validate([]domain.WeatherRecord{extreme}).Passed())
}

func TestWeatherSuite_RadiationUnconstrained(t *testing.T) {
	rec := validWeather("NL")
	rec.DirectRadiation = -999
	rec.DiffuseRadiation = -999

	suite := NewWeatherSuite(testZones)
	assert.True(t, suite.Validate([]domain.WeatherRecord{rec}).Passed())
}

func TestWeatherSuite_ReportsEveryViolation(t *testing.T) {
	bad := validWeather("XX")
	bad.Precipitation = -5
	bad.SnowDepth = -1
	bad.Temperature2M = 80

	suite := NewWeatherSuite(testZones)
	res := suite.Validate([]domain.WeatherRecord{bad, validWeather("NL")})

	require.Len(t, res.Violations, 4)
	counts := res.ColumnCounts()
	assert.Equal(t, 1, counts["country_code"])
	assert.Equal(t, 1, counts["precipitation"])
	assert.Equal(t, 1, counts["snow_depth"])
	assert.Equal(t, 1, counts["temperature_2m"])

	err := res.Err()
	require.Error(t, err)
	assert.ErrorContains(t, err, "precipitation")
	assert.ErrorContains(t, err, "snow_depth")
	assert.ErrorContains(t, err, "temperature_2m")
}

func validPriceGen(zone string) domain.PriceGenerationRecord {
	rec := domain.PriceGenerationRecord{
		Datetime:    time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		CountryCode: zone,
		EnergyPrice: 45,
		FossilGas:   100,
		Solar:       40,
	}
	rec.TotalGeneration = rec.SumTechs()
	return rec
}

func TestPricesGenerationSuite_Passes(t *testing.T) {
	suite := NewPricesGenerationSuite(testZones)
	res := suite.Validate([]domain.PriceGenerationRecord{validPriceGen("NL")})
	assert.True(t, res.Passed())
}

func TestPricesGenerationSuite_NegativePriceAllowed(t *testing.T) {
	rec := validPriceGen("DE_LU")
	rec.EnergyPrice = -500

	suite := NewPricesGenerationSuite(testZones)
	assert.True(t, suite.Validate([]domain.PriceGenerationRecord{rec}).Passed())
}

func TestPricesGenerationSuite_BoundIsInclusive(t *testing.T) {
	rec := validPriceGen("NL")
	rec.Nuclear = -0.1 // measurement noise, tolerated
	rec.TotalGeneration = rec.SumTechs()

	suite := NewPricesGenerationSuite(testZones)
	assert.True(t, suite.Validate([]domain.PriceGenerationRecord{rec}).Passed())
}

func TestPricesGenerationSuite_RejectsNegativeGeneration(t *testing.T) {
	rec := validPriceGen("NL")
	rec.WindOnshore = -12
	rec.TotalGeneration = rec.SumTechs()

	suite := NewPricesGenerationSuite(testZones)
	res := suite.Validate([]domain.PriceGenerationRecord{rec})
	require.False(t, res.Passed())
	assert.Contains(t, res.ColumnCounts(), "wind_onshore")
}

func TestPricesGenerationSuite_RejectsUnknownZone(t *testing.T) {
	suite := NewPricesGenerationSuite(testZones)
	res := suite.Validate([]domain.PriceGenerationRecord{validPriceGen("SE_4")})
	require.False(t, res.Passed())
	assert.Equal(t, "country_code", res.Violations[0].Column)
}

func TestPhysicalFlowSuite(t *testing.T) {
	ts := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	suite := NewPhysicalFlowSuite(testZones)

	t.Run("passes", func(t *testing.T) {
		res := suite.Validate([]domain.FlowRecord{
			{Datetime: ts, CountryFrom: "NL", CountryTo: "BE", EnergySent: 120},
			{Datetime: ts, CountryFrom: "NO_2", CountryTo: "NL", EnergySent: 0},
		})
		assert.True(t, res.Passed())
	})

	t.Run("rejects unknown endpoints", func(t *testing.T) {
		res := suite.Validate([]domain.FlowRecord{
			{Datetime: ts, CountryFrom: "FR", CountryTo: "ES", EnergySent: 10},
		})
		require.Len(t, res.Violations, 2)
		counts := res.ColumnCounts()
		assert.Equal(t, 1, counts["country_from"])
		assert.Equal(t, 1, counts["country_to"])
	})

	t.Run("rejects negative energy", func(t *testing.T) {
		res := suite.Validate([]domain.FlowRecord{
			{Datetime: ts, CountryFrom: "NL", CountryTo: "BE", EnergySent: -3},
		})
		require.Len(t, res.Violations, 1)
		assert.Equal(t, "energy_sent", res.Violations[0].Column)
	})
}
