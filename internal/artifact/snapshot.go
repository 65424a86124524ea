package artifact

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/couchcryptid/crossflow/internal/domain"
)

// Snapshotter freezes feature-group contents as parquet files before a
// training run, so any model version can be traced back to the exact rows
// it saw.
type Snapshotter struct {
	dir    string
	logger *slog.Logger
}

func NewSnapshotter(dir string, logger *slog.Logger) *Snapshotter {
	return &Snapshotter{dir: dir, logger: logger}
}

func (s *Snapshotter) path(group string, version int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_v%d.parquet", group, version))
}

// SnapshotWeather writes the weather group rows.
func (s *Snapshotter) SnapshotWeather(version int, records []domain.WeatherRecord) error {
	rows := make([]any, len(records))
	for i, r := range records {
		rows[i] = weatherRow{
			Datetime:          r.Datetime.UTC().UnixMilli(),
			CountryCode:       r.CountryCode,
			Temperature2M:     r.Temperature2M,
			CloudCover:        r.CloudCover,
			DirectRadiation:   r.DirectRadiation,
			DiffuseRadiation:  r.DiffuseRadiation,
			SurfacePressure:   r.SurfacePressure,
			WindSpeed10M:      r.WindSpeed10M,
			WindDirection10M:  r.WindDirection10M,
			WindSpeed100M:     r.WindSpeed100M,
			WindDirection100M: r.WindDirection100M,
			Precipitation:     r.Precipitation,
			SnowDepth:         r.SnowDepth,
		}
	}
	return s.write(domain.GroupWeather, version, new(weatherRow), rows)
}

// SnapshotPricesGeneration writes the prices/generation group rows.
func (s *Snapshotter) SnapshotPricesGeneration(version int, records []domain.PriceGenerationRecord) error {
	rows := make([]any, len(records))
	for i, r := range records {
		rows[i] = priceGenerationRow{
			Datetime:                   r.Datetime.UTC().UnixMilli(),
			CountryCode:                r.CountryCode,
			EnergyPrice:                r.EnergyPrice,
			Biomass:                    r.Biomass,
			FossilBrownCoalLignite:     r.FossilBrownCoalLignite,
			FossilCoalDerivedGas:       r.FossilCoalDerivedGas,
			FossilGas:                  r.FossilGas,
			FossilHardCoal:             r.FossilHardCoal,
			FossilOil:                  r.FossilOil,
			Geothermal:                 r.Geothermal,
			HydroPumpedStorage:         r.HydroPumpedStorage,
			HydroRunOfRiverAndPoundage: r.HydroRunOfRiverAndPoundage,
			HydroWaterReservoir:        r.HydroWaterReservoir,
			Nuclear:                    r.Nuclear,
			Other:                      r.Other,
			OtherRenewable:             r.OtherRenewable,
			Solar:                      r.Solar,
			WindOffshore:               r.WindOffshore,
			WindOnshore:                r.WindOnshore,
			TotalGeneration:            r.TotalGeneration,
		}
	}
	return s.write(domain.GroupPricesGeneration, version, new(priceGenerationRow), rows)
}

// SnapshotFlows writes the physical flow group rows.
func (s *Snapshotter) SnapshotFlows(version int, records []domain.FlowRecord) error {
	rows := make([]any, len(records))
	for i, r := range records {
		rows[i] = flowRow{
			Datetime:    r.Datetime.UTC().UnixMilli(),
			CountryFrom: r.CountryFrom,
			CountryTo:   r.CountryTo,
			EnergySent:  r.EnergySent,
		}
	}
	return s.write(domain.GroupPhysicalFlow, version, new(flowRow), rows)
}

func (s *Snapshotter) write(group string, version int, prototype any, rows []any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	path := s.path(group, version)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot %s: %w", path, err)
	}
	defer file.Close()

	pw, err := writer.NewParquetWriterFromWriter(file, prototype, 1)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", group, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			return fmt.Errorf("snapshot %s: %w", group, err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("snapshot %s: %w", group, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close snapshot %s: %w", path, err)
	}
	s.logger.Info("wrote feature snapshot", "group", group, "version", version, "rows", len(rows))
	return nil
}

// Parquet row layouts. Timestamps travel as epoch milliseconds.

type weatherRow struct {
	Datetime          int64   `parquet:"name=datetime,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
	CountryCode       string  `parquet:"name=country_code,type=BYTE_ARRAY,convertedtype=UTF8"`
	Temperature2M     float64 `parquet:"name=temperature_2m,type=DOUBLE"`
	CloudCover        float64 `parquet:"name=cloudcover,type=DOUBLE"`
	DirectRadiation   float64 `parquet:"name=direct_radiation,type=DOUBLE"`
	DiffuseRadiation  float64 `parquet:"name=diffuse_radiation,type=DOUBLE"`
	SurfacePressure   float64 `parquet:"name=surface_pressure,type=DOUBLE"`
	WindSpeed10M      float64 `parquet:"name=wind_speed_10m,type=DOUBLE"`
	WindDirection10M  float64 `parquet:"name=wind_direction_10m,type=DOUBLE"`
	WindSpeed100M     float64 `parquet:"name=wind_speed_100m,type=DOUBLE"`
	WindDirection100M float64 `parquet:"name=wind_direction_100m,type=DOUBLE"`
	Precipitation     float64 `parquet:"name=precipitation,type=DOUBLE"`
	SnowDepth         float64 `parquet:"name=snow_depth,type=DOUBLE"`
}

type priceGenerationRow struct {
	Datetime                   int64   `parquet:"name=datetime,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
	CountryCode                string  `parquet:"name=country_code,type=BYTE_ARRAY,convertedtype=UTF8"`
	EnergyPrice                float64 `parquet:"name=energy_price,type=DOUBLE"`
	Biomass                    float64 `parquet:"name=biomass,type=DOUBLE"`
	FossilBrownCoalLignite     float64 `parquet:"name=fossil_brown_coal_lignite,type=DOUBLE"`
	FossilCoalDerivedGas       float64 `parquet:"name=fossil_coal_derived_gas,type=DOUBLE"`
	FossilGas                  float64 `parquet:"name=fossil_gas,type=DOUBLE"`
	FossilHardCoal             float64 `parquet:"name=fossil_hard_coal,type=DOUBLE"`
	FossilOil                  float64 `parquet:"name=fossil_oil,type=DOUBLE"`
	Geothermal                 float64 `parquet:"name=geothermal,type=DOUBLE"`
	HydroPumpedStorage         float64 `parquet:"name=hydro_pumped_storage,type=DOUBLE"`
	HydroRunOfRiverAndPoundage float64 `parquet:"name=hydro_run_of_river_and_poundage,type=DOUBLE"`
	HydroWaterReservoir        float64 `parquet:"name=hydro_water_reservoir,type=DOUBLE"`
	Nuclear                    float64 `parquet:"name=nuclear,type=DOUBLE"`
	Other                      float64 `parquet:"name=other,type=DOUBLE"`
	OtherRenewable             float64 `parquet:"name=other_renewable,type=DOUBLE"`
	Solar                      float64 `parquet:"name=solar,type=DOUBLE"`
	WindOffshore               float64 `parquet:"name=wind_offshore,type=DOUBLE"`
	WindOnshore                float64 `parquet:"name=wind_onshore,type=DOUBLE"`
	TotalGeneration            float64 `parquet:"name=total_generation,type=DOUBLE"`
}

type flowRow struct {
	Datetime    int64   `parquet:"name=datetime,type=INT64,convertedtype=TIMESTAMP_MILLIS"`
	CountryFrom string  `parquet:"name=country_from,type=BYTE_ARRAY,convertedtype=UTF8"`
	CountryTo   string  `parquet:"name=country_to,type=BYTE_ARRAY,convertedtype=UTF8"`
	EnergySent  float64 `parquet:"name=energy_sent,type=DOUBLE"`
}
