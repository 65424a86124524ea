// Command train fits a ridge regressor on the labelled feature rows and
// registers it as the next version of the named model.
//
// Exactly one feature set flag is required:
//
//	train --total_production      weather, prices, and generation totals
//	train --all_production        every column, including per-technology
//
// --hyperparameter_tuning selects lambda by cross-validated grid search
// instead of the default. --create_feature_view registers a SQL view over
// the labelled rows used for this run. When SNAPSHOT_DIR is set, the
// source feature groups are archived as parquet before training.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/couchcryptid/crossflow/internal/artifact"
	"github.com/couchcryptid/crossflow/internal/config"
	"github.com/couchcryptid/crossflow/internal/domain"
	"github.com/couchcryptid/crossflow/internal/model"
	"github.com/couchcryptid/crossflow/internal/observability"
	"github.com/couchcryptid/crossflow/internal/store"
)

// defaultLambda applies when grid search is not requested.
const defaultLambda = 1.0

const trainFraction = 0.8

func main() {
	totalProduction := flag.Bool("total_production", false, "train on weather, prices, and generation totals")
	allProduction := flag.Bool("all_production", false, "train on every feature column")
	tuning := flag.Bool("hyperparameter_tuning", false, "select lambda by cross-validated grid search")
	modelName := flag.String("model_name", "", "registry name for the trained model (default MODEL_NAME)")
	createView := flag.Bool("create_feature_view", false, "register a SQL view over the labelled training rows")
	version := flag.Int("version", 1, "feature group version to read")
	flag.Parse()

	set, err := pickFeatureSet(*totalProduction, *allProduction)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(2)
	}

	if err := run(set, *tuning, *modelName, *createView, *version); err != nil {
		os.Exit(1)
	}
}

func pickFeatureSet(totalProduction, allProduction bool) (model.FeatureSet, error) {
	if totalProduction == allProduction {
		return "", errors.New("exactly one of --total_production or --all_production is required")
	}
	if totalProduction {
		return model.FeatureSetTotalProduction, nil
	}
	return model.FeatureSetAllProduction, nil
}

func run(set model.FeatureSet, tuning bool, modelName string, createView bool, version int) error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}
	if modelName == "" {
		modelName = cfg.ModelName
	}

	logger := observability.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.StoreDSN, logger)
	if err != nil {
		logger.Error("failed to open feature store", "error", err)
		return err
	}
	defer st.Close()

	// Everything labelled so far: the backfilled history plus whatever the
	// daily rebuilds have added since.
	start, end := cfg.BackfillStart, domain.Now()
	rows, err := st.ReadModelRows(ctx, version, start, end, true)
	if err != nil {
		logger.Error("failed to read labelled rows", "error", err)
		return err
	}
	if len(rows) == 0 {
		err := fmt.Errorf("no labelled rows in version %d", version)
		logger.Error("nothing to train on", "error", err)
		return err
	}
	logger.Info("labelled rows loaded", "rows", len(rows), "version", version,
		"from", rows[0].Datetime, "to", rows[len(rows)-1].Datetime)

	if cfg.SnapshotDir != "" {
		if err := snapshotSources(ctx, st, cfg, logger, version, start, end); err != nil {
			logger.Error("failed to snapshot feature groups", "error", err)
			return err
		}
	}

	columns, err := model.Schema(rows, set)
	if err != nil {
		logger.Error("failed to derive schema", "error", err)
		return err
	}

	train, test, err := model.SplitHoldout(rows, trainFraction)
	if err != nil {
		logger.Error("failed to split holdout", "error", err)
		return err
	}
	trainX, trainY, err := designLabels(train, columns)
	if err != nil {
		logger.Error("failed to build training matrix", "error", err)
		return err
	}
	testX, testY, err := designLabels(test, columns)
	if err != nil {
		logger.Error("failed to build holdout matrix", "error", err)
		return err
	}

	lambda := defaultLambda
	if tuning {
		lambda, err = model.GridSearch(trainX, trainY, model.DefaultLambdaGrid, model.CVFolds)
		if err != nil {
			logger.Error("grid search failed", "error", err)
			return err
		}
		logger.Info("grid search selected lambda", "lambda", lambda)
	}

	ridge := model.NewRidge(lambda)
	if err := ridge.Fit(trainX, trainY); err != nil {
		logger.Error("fit failed", "error", err)
		return err
	}

	yhat, err := ridge.Predict(testX)
	if err != nil {
		logger.Error("holdout prediction failed", "error", err)
		return err
	}
	mse := model.MSE(testY, yhat)
	r2 := model.R2(testY, yhat)

	registry := model.NewRegistry(cfg.ModelsDir, logger)
	meta := model.Metadata{
		RunID:      uuid.NewString(),
		FeatureSet: string(set),
		Columns:    columns,
		Metrics: map[string]string{
			"MSE":       strconv.FormatFloat(mse, 'f', -1, 64),
			"R squared": strconv.FormatFloat(r2, 'f', -1, 64),
		},
	}
	saved, err := registry.Save(modelName, ridge, meta)
	if err != nil {
		logger.Error("failed to save model", "error", err)
		return err
	}

	if createView {
		query := fmt.Sprintf(
			"SELECT datetime, country_from, country_to, energy_sent, features FROM %s_v%d WHERE energy_sent IS NOT NULL",
			domain.GroupModelData, version,
		)
		if err := st.EnsureFeatureView(ctx, modelName, version, query); err != nil {
			logger.Error("failed to create feature view", "error", err)
			return err
		}
		logger.Info("feature view registered", "name", modelName, "version", version)
	}

	logger.Info("training complete",
		"model", modelName,
		"model_version", saved,
		"feature_set", set,
		"columns", len(columns),
		"train_rows", len(train),
		"holdout_rows", len(test),
		"lambda", lambda,
		"mse", mse,
		"r_squared", r2,
	)
	return nil
}

func designLabels(rows []domain.ModelFeatureRow, columns []string) (*mat.Dense, []float64, error) {
	x, err := model.Design(rows, columns)
	if err != nil {
		return nil, nil, err
	}
	y, err := model.Labels(rows)
	if err != nil {
		return nil, nil, err
	}
	return x, y, nil
}

// snapshotSources archives the three source feature groups the model rows
// were joined from, for offline analysis of a training run.
func snapshotSources(ctx context.Context, st *store.Postgres, cfg *config.Config, logger *slog.Logger, version int, start, end time.Time) error {
	snap := artifact.NewSnapshotter(cfg.SnapshotDir, logger)

	weather, err := st.ReadWeather(ctx, version, start, end)
	if err != nil {
		return fmt.Errorf("read %s: %w", domain.GroupWeather, err)
	}
	if err := snap.SnapshotWeather(version, weather); err != nil {
		return err
	}

	market, err := st.ReadPricesGeneration(ctx, version, start, end)
	if err != nil {
		return fmt.Errorf("read %s: %w", domain.GroupPricesGeneration, err)
	}
	if err := snap.SnapshotPricesGeneration(version, market); err != nil {
		return err
	}

	flows, err := st.ReadFlows(ctx, version, start, end)
	if err != nil {
		return fmt.Errorf("read %s: %w", domain.GroupPhysicalFlow, err)
	}
	return snap.SnapshotFlows(version, flows)
}
