// Command feature runs one batch of the feature pipeline.
//
// Exactly one mode flag is required:
//
//	feature --backfill            ingest the cached CSV exports over the
//	                              BACKFILL_START..BACKFILL_END window
//	feature --daily               rebuild yesterday from the live APIs
//	feature --forecast            assemble label-less rows for tomorrow
//
// --version selects the feature group version to write (default 1). When
// METRICS_ADDR is set, a metrics listener serves /healthz, /readyz, and
// /metrics for the duration of the run.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/crossflow/internal/adapter/csvcache"
	"github.com/couchcryptid/crossflow/internal/adapter/entsoe"
	httpadapter "github.com/couchcryptid/crossflow/internal/adapter/http"
	"github.com/couchcryptid/crossflow/internal/adapter/openmeteo"
	"github.com/couchcryptid/crossflow/internal/config"
	"github.com/couchcryptid/crossflow/internal/observability"
	"github.com/couchcryptid/crossflow/internal/pipeline"
	"github.com/couchcryptid/crossflow/internal/store"
)

func main() {
	backfill := flag.Bool("backfill", false, "ingest the cached exports for the configured historical window")
	daily := flag.Bool("daily", false, "rebuild yesterday from the live APIs")
	forecast := flag.Bool("forecast", false, "assemble tomorrow's label-less feature rows")
	version := flag.Int("version", 1, "feature group version to write")
	flag.Parse()

	mode, err := pickMode(*backfill, *daily, *forecast)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	if err := run(mode, *version); err != nil {
		os.Exit(1)
	}
}

func pickMode(backfill, daily, forecast bool) (string, error) {
	var modes []string
	if backfill {
		modes = append(modes, "backfill")
	}
	if daily {
		modes = append(modes, "daily")
	}
	if forecast {
		modes = append(modes, "forecast")
	}
	if len(modes) != 1 {
		return "", errors.New("exactly one of --backfill, --daily, or --forecast is required")
	}
	return modes[0], nil
}

func run(mode string, version int) error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	zones, err := config.LoadZones()
	if err != nil {
		logger.Error("failed to load zones", "error", err)
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.StoreDSN, logger)
	if err != nil {
		logger.Error("failed to open feature store", "error", err)
		return err
	}
	defer st.Close()

	market := entsoe.NewClient(cfg.EntsoeToken, cfg.EntsoeBaseURL, cfg.ExtractTimeout, logger)
	weather := openmeteo.NewClient(cfg.OpenMeteoBaseURL, cfg.OpenMeteoArchiveURL, cfg.ExtractTimeout, logger)
	cache := csvcache.NewReader(cfg.DataDir, logger)

	p := pipeline.New(market, weather, cache, st, zones, cfg, logger, metrics)

	// Serve /healthz, /readyz, and /metrics while the batch is in flight.
	var srv *httpadapter.Server
	if cfg.MetricsAddr != "" {
		srv = httpadapter.NewServer(cfg.MetricsAddr, mode, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics listener error", "error", err)
			}
		}()
	}

	var runErr error
	switch mode {
	case "backfill":
		runErr = p.Backfill(ctx, version)
	case "daily":
		runErr = p.Daily(ctx, version)
	case "forecast":
		var rows int
		rows, runErr = forecastRows(ctx, p, version)
		if runErr == nil {
			logger.Info("forecast rows staged for inference", "rows", rows)
		}
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics listener shutdown error", "error", err)
		}
	}

	if runErr != nil {
		logger.Error("run failed", "mode", mode, "version", version, "error", runErr)
		return runErr
	}
	logger.Info("run complete", "mode", mode, "version", version)
	return nil
}

func forecastRows(ctx context.Context, p *pipeline.Pipeline, version int) (int, error) {
	rows, err := p.Forecast(ctx, version)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}
