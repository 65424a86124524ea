// Command infer scores tomorrow's cross-border flows with the latest
// registered model.
//
// One run does four things in order: score the predictions stored for
// yesterday against realized flows and append the daily MAE record,
// assemble tomorrow's label-less feature rows, predict each directed
// pair, and persist the new predictions to the CSV artifact and the
// feature store. Scoring reads yesterday's rows back from the predictions
// feature group, where they survive the nightly artifact rewrite.
//
// --version selects the feature group version (default 1). When
// KAFKA_ENABLED is set, the batch is also published to the predictions
// topic.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/couchcryptid/crossflow/internal/adapter/csvcache"
	"github.com/couchcryptid/crossflow/internal/adapter/entsoe"
	kafkaadapter "github.com/couchcryptid/crossflow/internal/adapter/kafka"
	"github.com/couchcryptid/crossflow/internal/adapter/openmeteo"
	"github.com/couchcryptid/crossflow/internal/artifact"
	"github.com/couchcryptid/crossflow/internal/config"
	"github.com/couchcryptid/crossflow/internal/domain"
	"github.com/couchcryptid/crossflow/internal/model"
	"github.com/couchcryptid/crossflow/internal/monitoring"
	"github.com/couchcryptid/crossflow/internal/observability"
	"github.com/couchcryptid/crossflow/internal/pipeline"
	"github.com/couchcryptid/crossflow/internal/store"
)

func main() {
	version := flag.Int("version", 1, "feature group version to read and write")
	flag.Parse()

	if err := run(*version); err != nil {
		os.Exit(1)
	}
}

func run(version int) error {
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

	registry := model.NewRegistry(cfg.ModelsDir, logger)
	ridge, meta, err := registry.Latest(cfg.ModelName)
	if err != nil {
		logger.Error("failed to load model", "model", cfg.ModelName, "error", err)
		return err
	}
	logger.Info("model loaded", "model", meta.Name, "model_version", meta.Version,
		"feature_set", meta.FeatureSet, "run_id", meta.RunID)

	predictionsFile := artifact.NewPredictionsFile(cfg.PredictionsPath, zones.Home)
	maeFile := artifact.NewMetricsFile(cfg.MAEPath)

	if err := st.EnsureGroup(ctx, domain.GroupPredictions, version); err != nil {
		logger.Error("failed to ensure predictions group", "error", err)
		return err
	}

	comparator := monitoring.NewComparator(st, st, maeFile, zones.Home, logger)
	if _, err := comparator.Run(ctx, version); err != nil {
		switch {
		case errors.Is(err, monitoring.ErrNoStoredPredictions):
			logger.Info("no stored predictions to score yet", "error", err)
		case errors.Is(err, monitoring.ErrInsufficientGroundTruth):
			logger.Warn("skipping daily error metric", "error", err)
		default:
			logger.Error("failed to score stored predictions", "error", err)
			return err
		}
	}

	market := entsoe.NewClient(cfg.EntsoeToken, cfg.EntsoeBaseURL, cfg.ExtractTimeout, logger)
	weather := openmeteo.NewClient(cfg.OpenMeteoBaseURL, cfg.OpenMeteoArchiveURL, cfg.ExtractTimeout, logger)
	cache := csvcache.NewReader(cfg.DataDir, logger)

	p := pipeline.New(market, weather, cache, st, zones, cfg, logger, metrics)
	rows, err := p.Forecast(ctx, version)
	if err != nil {
		logger.Error("forecast assembly failed", "error", err)
		return err
	}

	x, err := model.Design(rows, meta.Columns)
	if err != nil {
		logger.Error("failed to build design matrix", "error", err)
		return err
	}
	yhat, err := ridge.Predict(x)
	if err != nil {
		logger.Error("prediction failed", "error", err)
		return err
	}

	records := make([]domain.PredictionRecord, len(rows))
	for i, row := range rows {
		records[i] = domain.PredictionRecord{
			Datetime:            row.Datetime,
			CountryFrom:         row.CountryFrom,
			CountryTo:           row.CountryTo,
			EnergySent:          yhat[i],
			HomeEnergyPrice:     row.Features[domain.FeatureColumn("energy_price", zones.Home)],
			HomeTotalGeneration: row.Features[domain.FeatureColumn("total_generation", zones.Home)],
		}
	}

	if err := predictionsFile.Write(records); err != nil {
		logger.Error("failed to write predictions artifact", "error", err)
		return err
	}

	if err := st.UpsertPredictions(ctx, version, records); err != nil {
		logger.Error("failed to store predictions", "error", err)
		return err
	}

	if cfg.KafkaEnabled {
		publisher := kafkaadapter.NewPublisher(cfg, zones.Home, logger)
		if err := publisher.PublishBatch(ctx, uuid.NewString(), records); err != nil {
			publisher.Close() //nolint:errcheck // publish error wins
			logger.Error("failed to publish predictions", "error", err)
			return err
		}
		metrics.PredictionsPublished.Add(float64(len(records)))
		if err := publisher.Close(); err != nil {
			logger.Error("kafka producer close error", "error", err)
		}
	}

	logger.Info("inference complete",
		"model", meta.Name,
		"model_version", meta.Version,
		"predictions", len(records),
		"version", version,
	)
	return nil
}
