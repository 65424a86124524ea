package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/crossflow/internal/adapter/entsoe"
	"github.com/couchcryptid/crossflow/internal/adapter/openmeteo"
	"github.com/couchcryptid/crossflow/internal/config"
	"github.com/couchcryptid/crossflow/internal/domain"
)

// Source labels on the extraction metrics.
const (
	sourceEntsoe    = "entsoe"
	sourceOpenMeteo = "open_meteo"
	sourceCache     = "csv_cache"
)

// Exponential backoff: start at 200ms, double each retry, cap at 5s.
// Keeps retry storms short while avoiding tight loops during platform
// outages.
const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// zoneMarket holds the two raw market pulls for one zone before the join.
type zoneMarket struct {
	gen    domain.GenerationTable
	prices domain.PriceTable
}

// zoneForecast holds the day-ahead pulls for one zone: prices and the
// published total-generation forecast.
type zoneForecast struct {
	prices domain.PriceTable
	totals domain.Series
}

func entsoeZone(z config.Zone) entsoe.Zone {
	return entsoe.Zone{Code: z.Code, EIC: z.EIC}
}

func openMeteoZone(z config.Zone) openmeteo.Zone {
	return openmeteo.Zone{Code: z.Code, Lat: z.Lat, Lon: z.Lon}
}

// fetchWithRetry runs one upstream pull with bounded retries and
// context-aware backoff between attempts. ErrNoData fails immediately: a
// document the platform does not have will not appear within a run. The
// terminal error names the source and zone that exhausted their attempts.
func fetchWithRetry[T any](ctx context.Context, p *Pipeline, source, zone string, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	backoff := initialBackoff
	for attempt := 0; ; attempt++ {
		fetchStart := time.Now()
		out, err := fetch(ctx)
		p.metrics.ExtractDuration.WithLabelValues(source).Observe(time.Since(fetchStart).Seconds())
		if err == nil {
			return out, nil
		}
		if errors.Is(err, entsoe.ErrNoData) || attempt >= p.cfg.ExtractRetries || ctx.Err() != nil {
			return zero, fmt.Errorf("extract %s for zone %s: %w", source, zone, err)
		}
		p.metrics.ExtractRetries.WithLabelValues(source).Inc()
		p.logger.Warn("extract failed, retrying",
			"source", source,
			"zone", zone,
			"attempt", attempt+1,
			"error", err,
		)
		if !sleepWithContext(ctx, backoff) {
			return zero, fmt.Errorf("extract %s for zone %s: %w", source, zone, ctx.Err())
		}
		backoff = nextBackoff(backoff, maxBackoff)
	}
}

// extractCached reads every cached export and melts them into validated
// record shapes. Reads are local files, so there is no fan-out and no
// retry; a missing or malformed export fails the backfill outright.
func (p *Pipeline) extractCached() ([]domain.WeatherRecord, []domain.PriceGenerationRecord, []domain.FlowRecord, error) {
	home := p.zones.Home

	extractStart := time.Now()
	var weather []domain.WeatherRecord
	markets := make(map[string]zoneMarket, len(p.zones.Zones))
	for _, z := range p.zones.Zones {
		recs, err := p.cache.Weather(z.Code)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("extract %s for zone %s: %w", sourceCache, z.Code, err)
		}
		p.metrics.RowsExtracted.WithLabelValues(sourceCache, z.Code).Add(float64(len(recs)))
		weather = append(weather, recs...)

		gen, schema, err := p.cache.Generation(z.Code)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("extract %s for zone %s: %w", sourceCache, z.Code, err)
		}
		p.logger.Debug("parsed generation export", "zone", z.Code, "schema", schema.String())

		prices, err := p.cache.DayAheadPrices(z.Code)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("extract %s for zone %s: %w", sourceCache, z.Code, err)
		}
		p.metrics.RowsExtracted.WithLabelValues(sourceCache, z.Code).Add(float64(len(gen.Times) + len(prices.Times)))
		markets[z.Code] = zoneMarket{gen: gen, prices: prices}
	}

	exports, err := p.cache.ExportFlows(home)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("extract %s for zone %s: %w", sourceCache, home, err)
	}
	imports, err := p.cache.ImportFlows(home)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("extract %s for zone %s: %w", sourceCache, home, err)
	}
	p.metrics.RowsExtracted.WithLabelValues(sourceCache, home).Add(float64(len(exports.Times) + len(imports.Times)))
	p.metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(extractStart).Seconds())

	transformStart := time.Now()
	priceGen := p.assembleMarkets(markets)
	flows := domain.MergeFlows(
		domain.MeltFlows(exports, home, true),
		domain.MeltFlows(imports, home, false),
	)
	p.metrics.StageDuration.WithLabelValues("transform").Observe(time.Since(transformStart).Seconds())

	return weather, priceGen, flows, nil
}

// extractLive fans the per-zone API pulls out with bounded concurrency and
// re-joins the results by zone code. The first zone to exhaust its retries
// cancels the rest.
func (p *Pipeline) extractLive(ctx context.Context, start, end time.Time) ([]domain.WeatherRecord, []domain.PriceGenerationRecord, []domain.FlowRecord, error) {
	home := p.zones.Home
	neighbours := p.zones.NeighbourZones()

	extractStart := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.ExtractConcurrency)

	var mu sync.Mutex
	weatherByZone := make(map[string][]domain.WeatherRecord, len(p.zones.Zones))
	markets := make(map[string]zoneMarket, len(p.zones.Zones))
	exportSeries := make(map[string]domain.Series, len(neighbours))
	importSeries := make(map[string]domain.Series, len(neighbours))

	for _, z := range p.zones.Zones {
		g.Go(func() error {
			recs, err := fetchWithRetry(gctx, p, sourceOpenMeteo, z.Code, func(ctx context.Context) ([]domain.WeatherRecord, error) {
				return p.weather.Archive(ctx, openMeteoZone(z), start, end)
			})
			if err != nil {
				return err
			}
			p.metrics.RowsExtracted.WithLabelValues(sourceOpenMeteo, z.Code).Add(float64(len(recs)))
			mu.Lock()
			weatherByZone[z.Code] = recs
			mu.Unlock()
			return nil
		})
		g.Go(func() error {
			prices, err := fetchWithRetry(gctx, p, sourceEntsoe, z.Code, func(ctx context.Context) (domain.PriceTable, error) {
				return p.market.DayAheadPrices(ctx, entsoeZone(z), start, end)
			})
			if err != nil {
				return err
			}
			gen, err := fetchWithRetry(gctx, p, sourceEntsoe, z.Code, func(ctx context.Context) (domain.GenerationTable, error) {
				return p.market.ActualGeneration(ctx, entsoeZone(z), start, end)
			})
			if err != nil {
				return err
			}
			p.metrics.RowsExtracted.WithLabelValues(sourceEntsoe, z.Code).Add(float64(len(prices.Times) + len(gen.Times)))
			mu.Lock()
			markets[z.Code] = zoneMarket{gen: gen, prices: prices}
			mu.Unlock()
			return nil
		})
	}

	for _, n := range neighbours {
		g.Go(func() error {
			exp, err := fetchWithRetry(gctx, p, sourceEntsoe, n.Code, func(ctx context.Context) (domain.Series, error) {
				return p.market.PhysicalFlows(ctx, entsoeZone(p.home), entsoeZone(n), start, end)
			})
			if err != nil {
				return err
			}
			imp, err := fetchWithRetry(gctx, p, sourceEntsoe, n.Code, func(ctx context.Context) (domain.Series, error) {
				return p.market.PhysicalFlows(ctx, entsoeZone(n), entsoeZone(p.home), start, end)
			})
			if err != nil {
				return err
			}
			p.metrics.RowsExtracted.WithLabelValues(sourceEntsoe, n.Code).Add(float64(len(exp.Times) + len(imp.Times)))
			mu.Lock()
			exportSeries[n.Code] = exp
			importSeries[n.Code] = imp
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, nil, err
	}
	p.metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(extractStart).Seconds())

	transformStart := time.Now()
	var weather []domain.WeatherRecord
	for _, z := range p.zones.Zones {
		weather = append(weather, weatherByZone[z.Code]...)
	}
	priceGen := p.assembleMarkets(markets)

	neighbourCodes := make([]string, 0, len(neighbours))
	for _, n := range neighbours {
		neighbourCodes = append(neighbourCodes, n.Code)
	}
	flows := domain.MergeFlows(
		domain.MeltFlows(domain.AssembleFlowTable(neighbourCodes, exportSeries), home, true),
		domain.MeltFlows(domain.AssembleFlowTable(neighbourCodes, importSeries), home, false),
	)
	p.metrics.StageDuration.WithLabelValues("transform").Observe(time.Since(transformStart).Seconds())

	return weather, priceGen, flows, nil
}

// extractForecast pulls the day-ahead inputs per zone: the weather
// forecast, day-ahead prices, and the A71 total-generation forecast.
func (p *Pipeline) extractForecast(ctx context.Context, start, end time.Time) ([]domain.WeatherRecord, []domain.PriceGenerationRecord, error) {
	extractStart := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.ExtractConcurrency)

	var mu sync.Mutex
	weatherByZone := make(map[string][]domain.WeatherRecord, len(p.zones.Zones))
	forecasts := make(map[string]zoneForecast, len(p.zones.Zones))

	for _, z := range p.zones.Zones {
		g.Go(func() error {
			recs, err := fetchWithRetry(gctx, p, sourceOpenMeteo, z.Code, func(ctx context.Context) ([]domain.WeatherRecord, error) {
				return p.weather.Forecast(ctx, openMeteoZone(z), start, end)
			})
			if err != nil {
				return err
			}
			p.metrics.RowsExtracted.WithLabelValues(sourceOpenMeteo, z.Code).Add(float64(len(recs)))
			mu.Lock()
			weatherByZone[z.Code] = recs
			mu.Unlock()
			return nil
		})
		g.Go(func() error {
			prices, err := fetchWithRetry(gctx, p, sourceEntsoe, z.Code, func(ctx context.Context) (domain.PriceTable, error) {
				return p.market.DayAheadPrices(ctx, entsoeZone(z), start, end)
			})
			if err != nil {
				return err
			}
			totals, err := fetchWithRetry(gctx, p, sourceEntsoe, z.Code, func(ctx context.Context) (domain.Series, error) {
				return p.market.GenerationForecast(ctx, entsoeZone(z), start, end)
			})
			if err != nil {
				return err
			}
			p.metrics.RowsExtracted.WithLabelValues(sourceEntsoe, z.Code).Add(float64(len(prices.Times) + len(totals.Times)))
			mu.Lock()
			forecasts[z.Code] = zoneForecast{prices: prices, totals: totals}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	p.metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(extractStart).Seconds())

	transformStart := time.Now()
	var weather []domain.WeatherRecord
	var priceGen []domain.PriceGenerationRecord
	for _, z := range p.zones.Zones {
		weather = append(weather, weatherByZone[z.Code]...)
		f := forecasts[z.Code]
		priceGen = append(priceGen, forecastMarket(f.prices, f.totals, z.Code)...)
	}
	p.metrics.StageDuration.WithLabelValues("transform").Observe(time.Since(transformStart).Seconds())

	return weather, priceGen, nil
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
