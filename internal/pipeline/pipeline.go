// Package pipeline orchestrates the extract-transform-validate-load runs
// that keep the feature store current: backfill from cached exports, the
// daily rebuild of yesterday from the live APIs, and the label-less
// forecast assembly for tomorrow.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/crossflow/internal/adapter/entsoe"
	"github.com/couchcryptid/crossflow/internal/adapter/openmeteo"
	"github.com/couchcryptid/crossflow/internal/config"
	"github.com/couchcryptid/crossflow/internal/domain"
	"github.com/couchcryptid/crossflow/internal/observability"
	"github.com/couchcryptid/crossflow/internal/validation"
)

// MarketSource pulls market documents from the ENTSO-E Transparency
// Platform for one bidding zone at a time.
type MarketSource interface {
	PhysicalFlows(ctx context.Context, out, in entsoe.Zone, start, end time.Time) (domain.Series, error)
	DayAheadPrices(ctx context.Context, zone entsoe.Zone, start, end time.Time) (domain.PriceTable, error)
	ActualGeneration(ctx context.Context, zone entsoe.Zone, start, end time.Time) (domain.GenerationTable, error)
	GenerationForecast(ctx context.Context, zone entsoe.Zone, start, end time.Time) (domain.Series, error)
}

// WeatherSource pulls hourly weather series, historical or forecast.
type WeatherSource interface {
	Archive(ctx context.Context, zone openmeteo.Zone, start, end time.Time) ([]domain.WeatherRecord, error)
	Forecast(ctx context.Context, zone openmeteo.Zone, start, end time.Time) ([]domain.WeatherRecord, error)
}

// CacheSource reads the cached CSV exports a backfill ingests.
type CacheSource interface {
	ImportFlows(home string) (domain.FlowTable, error)
	ExportFlows(home string) (domain.FlowTable, error)
	Generation(zone string) (domain.GenerationTable, domain.GenerationSchema, error)
	DayAheadPrices(zone string) (domain.PriceTable, error)
	Weather(zone string) ([]domain.WeatherRecord, error)
}

// FeatureStore persists validated batches into versioned feature groups.
type FeatureStore interface {
	EnsureGroup(ctx context.Context, group string, version int) error
	UpsertWeather(ctx context.Context, version int, records []domain.WeatherRecord) error
	UpsertPricesGeneration(ctx context.Context, version int, records []domain.PriceGenerationRecord) error
	UpsertFlows(ctx context.Context, version int, records []domain.FlowRecord) error
	UpsertModelRows(ctx context.Context, version int, rows []domain.ModelFeatureRow) error
}

// Pipeline wires sources, validation suites, and the feature store into
// the three run modes.
type Pipeline struct {
	market  MarketSource
	weather WeatherSource
	cache   CacheSource
	store   FeatureStore
	zones   *config.ZoneSet
	home    config.Zone
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool

	weatherSuite *validation.WeatherSuite
	marketSuite  *validation.PricesGenerationSuite
	flowSuite    *validation.PhysicalFlowSuite
}

// New creates a Pipeline with the given sources and observability.
func New(market MarketSource, weather WeatherSource, cache CacheSource, store FeatureStore, zones *config.ZoneSet, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	codes := zones.Codes()
	home, _ := zones.Zone(zones.Home)
	return &Pipeline{
		market:       market,
		weather:      weather,
		cache:        cache,
		store:        store,
		zones:        zones,
		home:         home,
		cfg:          cfg,
		logger:       logger,
		metrics:      metrics,
		weatherSuite: validation.NewWeatherSuite(codes),
		marketSuite:  validation.NewPricesGenerationSuite(codes),
		flowSuite:    validation.NewPhysicalFlowSuite(codes),
	}
}

// CheckReadiness returns nil once the pipeline has completed at least one
// run, or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not completed a run yet")
	}
	return nil
}

// Backfill ingests the cached CSV exports for the configured historical
// window and rebuilds every feature group from them. The end date is
// inclusive: the window closes at the midnight after BACKFILL_END.
func (p *Pipeline) Backfill(ctx context.Context, version int) error {
	start := p.cfg.BackfillStart
	end := p.cfg.BackfillEnd.AddDate(0, 0, 1)

	p.logger.Info("backfill started", "start", start, "end", end, "version", version)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	if err := p.ensureGroups(ctx, version, domain.GroupWeather, domain.GroupPricesGeneration, domain.GroupPhysicalFlow, domain.GroupModelData); err != nil {
		return err
	}

	weather, priceGen, flows, err := p.extractCached()
	if err != nil {
		p.logger.Error("extract from cache failed", "error", err)
		return err
	}

	weather = clipWindow(weather, start, end, func(r domain.WeatherRecord) time.Time { return r.Datetime })
	priceGen = clipWindow(priceGen, start, end, func(r domain.PriceGenerationRecord) time.Time { return r.Datetime })
	flows = clipWindow(flows, start, end, func(r domain.FlowRecord) time.Time { return r.Datetime })

	rows, err := p.loadAll(ctx, version, weather, priceGen, flows)
	if err != nil {
		return err
	}

	p.ready.Store(true)
	p.logger.Info("backfill complete",
		"weather_rows", len(weather),
		"market_rows", len(priceGen),
		"flow_rows", len(flows),
		"model_rows", rows,
	)
	return nil
}

// Daily pulls yesterday from the live APIs and rebuilds its slice of every
// feature group, labels included. Forecast rows already sitting in
// model_data for those hours are overwritten through the upsert key.
func (p *Pipeline) Daily(ctx context.Context, version int) error {
	start, end := domain.DailyWindow()

	p.logger.Info("daily rebuild started", "start", start, "end", end, "version", version)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	if err := p.ensureGroups(ctx, version, domain.GroupWeather, domain.GroupPricesGeneration, domain.GroupPhysicalFlow, domain.GroupModelData); err != nil {
		return err
	}

	weather, priceGen, flows, err := p.extractLive(ctx, start, end)
	if err != nil {
		p.logger.Error("extract from apis failed", "error", err)
		return err
	}

	rows, err := p.loadAll(ctx, version, weather, priceGen, flows)
	if err != nil {
		return err
	}

	p.ready.Store(true)
	p.logger.Info("daily rebuild complete",
		"weather_rows", len(weather),
		"market_rows", len(priceGen),
		"flow_rows", len(flows),
		"model_rows", rows,
	)
	return nil
}

// Forecast assembles tomorrow's label-less feature rows from the weather
// forecast, day-ahead prices, and the published total-generation forecast.
// Only the generation total is known ahead, so every per-technology column
// is zero. The rows are upserted into model_data with null labels and also
// returned for immediate inference.
func (p *Pipeline) Forecast(ctx context.Context, version int) ([]domain.ModelFeatureRow, error) {
	start, end := domain.ForecastWindow()

	p.logger.Info("forecast assembly started", "start", start, "end", end, "version", version)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	if err := p.ensureGroups(ctx, version, domain.GroupModelData); err != nil {
		return nil, err
	}

	weather, priceGen, err := p.extractForecast(ctx, start, end)
	if err != nil {
		p.logger.Error("extract from apis failed", "error", err)
		return nil, err
	}

	validateStart := time.Now()
	if err := p.gate(p.weatherSuite.Validate(weather)); err != nil {
		return nil, err
	}
	if err := p.gate(p.marketSuite.Validate(priceGen)); err != nil {
		return nil, err
	}
	p.metrics.StageDuration.WithLabelValues("validate").Observe(time.Since(validateStart).Seconds())

	joinStart := time.Now()
	features := p.buildFeatures(weather, priceGen)
	rows := domain.BuildModelRows(features, nil)
	rows = domain.AddCountryPairs(rows, p.zones.Home, p.zones.Neighbours)
	p.metrics.StageDuration.WithLabelValues("join").Observe(time.Since(joinStart).Seconds())

	loadStart := time.Now()
	if err := p.store.UpsertModelRows(ctx, version, rows); err != nil {
		return nil, fmt.Errorf("load %s: %w", domain.GroupModelData, err)
	}
	p.metrics.StageDuration.WithLabelValues("load").Observe(time.Since(loadStart).Seconds())
	p.metrics.RowsLoaded.WithLabelValues(domain.GroupModelData).Add(float64(len(rows)))

	p.ready.Store(true)
	p.logger.Info("forecast assembly complete", "model_rows", len(rows))
	return rows, nil
}

// loadAll gates the three source batches through their suites, upserts
// them, then assembles labelled model rows and upserts those too. Returns
// the number of model rows written.
func (p *Pipeline) loadAll(ctx context.Context, version int, weather []domain.WeatherRecord, priceGen []domain.PriceGenerationRecord, flows []domain.FlowRecord) (int, error) {
	validateStart := time.Now()
	if err := p.gate(p.weatherSuite.Validate(weather)); err != nil {
		return 0, err
	}
	if err := p.gate(p.marketSuite.Validate(priceGen)); err != nil {
		return 0, err
	}
	if err := p.gate(p.flowSuite.Validate(flows)); err != nil {
		return 0, err
	}
	p.metrics.StageDuration.WithLabelValues("validate").Observe(time.Since(validateStart).Seconds())

	loadStart := time.Now()
	if err := p.store.UpsertWeather(ctx, version, weather); err != nil {
		return 0, fmt.Errorf("load %s: %w", domain.GroupWeather, err)
	}
	p.metrics.RowsLoaded.WithLabelValues(domain.GroupWeather).Add(float64(len(weather)))

	if err := p.store.UpsertPricesGeneration(ctx, version, priceGen); err != nil {
		return 0, fmt.Errorf("load %s: %w", domain.GroupPricesGeneration, err)
	}
	p.metrics.RowsLoaded.WithLabelValues(domain.GroupPricesGeneration).Add(float64(len(priceGen)))

	if err := p.store.UpsertFlows(ctx, version, flows); err != nil {
		return 0, fmt.Errorf("load %s: %w", domain.GroupPhysicalFlow, err)
	}
	p.metrics.RowsLoaded.WithLabelValues(domain.GroupPhysicalFlow).Add(float64(len(flows)))
	p.metrics.StageDuration.WithLabelValues("load").Observe(time.Since(loadStart).Seconds())

	joinStart := time.Now()
	features := p.buildFeatures(weather, priceGen)
	rows := domain.BuildModelRows(features, flows)
	p.metrics.StageDuration.WithLabelValues("join").Observe(time.Since(joinStart).Seconds())

	loadStart = time.Now()
	if err := p.store.UpsertModelRows(ctx, version, rows); err != nil {
		return 0, fmt.Errorf("load %s: %w", domain.GroupModelData, err)
	}
	p.metrics.StageDuration.WithLabelValues("load").Observe(time.Since(loadStart).Seconds())
	p.metrics.RowsLoaded.WithLabelValues(domain.GroupModelData).Add(float64(len(rows)))

	return len(rows), nil
}

// gate rejects a batch whole when its suite found violations, counting
// each violated column before returning the aggregate error.
func (p *Pipeline) gate(res *validation.Result) error {
	if res.Passed() {
		p.logger.Debug("validation passed", "group", res.Group, "rows", res.Rows)
		return nil
	}
	for column, n := range res.ColumnCounts() {
		p.metrics.ValidationFailures.WithLabelValues(res.Group, column).Add(float64(n))
	}
	p.logger.Error("validation failed, batch rejected",
		"group", res.Group,
		"rows", res.Rows,
		"violations", len(res.Violations),
	)
	return res.Err()
}

func (p *Pipeline) ensureGroups(ctx context.Context, version int, groups ...string) error {
	for _, g := range groups {
		if err := p.store.EnsureGroup(ctx, g, version); err != nil {
			return fmt.Errorf("ensure group %s: %w", g, err)
		}
	}
	return nil
}
