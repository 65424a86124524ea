// Package monitoring scores the predictions persisted for yesterday
// against the realized flows that later landed in the feature store, and
// appends the per-direction mean absolute error to the metric history.
//
// Predictions are read back from the predictions feature group, not from
// the CSV artifact: the artifact is rewritten whole on every run, while
// the group keeps each hour keyed by (datetime, country_from, country_to),
// so the rows predicted two days ago are still there once their realized
// flows arrive.
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/couchcryptid/crossflow/internal/domain"
)

// ErrInsufficientGroundTruth reports that yesterday's predictions could not
// be joined against realized flows in at least one direction. Callers log
// the gap and keep the run alive; the next daily ingest usually fills it.
var ErrInsufficientGroundTruth = errors.New("insufficient ground truth for stored predictions")

// ErrNoStoredPredictions reports that the predictions group holds no rows
// for the scored window. Expected on the first runs of a fresh deployment:
// a prediction made on day D covers D+1 and becomes scoreable on D+2.
var ErrNoStoredPredictions = errors.New("no stored predictions for the window")

// PredictionSource reads persisted predictions with datetime in
// [start, end).
type PredictionSource interface {
	ReadPredictions(ctx context.Context, version int, start, end time.Time) ([]domain.PredictionRecord, error)
}

// GroundTruth reads realized feature rows from the store.
type GroundTruth interface {
	ReadModelRows(ctx context.Context, version int, start, end time.Time, labelledOnly bool) ([]domain.ModelFeatureRow, error)
}

// MetricSink appends one day of error metrics to the history.
type MetricSink interface {
	AppendMetric(rec domain.MetricRecord) error
}

// Comparator wires the three sides of the daily check together.
type Comparator struct {
	predictions PredictionSource
	truth       GroundTruth
	sink        MetricSink
	home        string
	logger      *slog.Logger
}

func NewComparator(predictions PredictionSource, truth GroundTruth, sink MetricSink, home string, logger *slog.Logger) *Comparator {
	return &Comparator{
		predictions: predictions,
		truth:       truth,
		sink:        sink,
		home:        home,
		logger:      logger,
	}
}

// Run scores yesterday: it joins the predictions stored for that window
// against realized rows from the feature store and appends the day's MAE
// record.
func (c *Comparator) Run(ctx context.Context, version int) (domain.MetricRecord, error) {
	start, end := domain.DailyWindow()

	preds, err := c.predictions.ReadPredictions(ctx, version, start, end)
	if err != nil {
		return domain.MetricRecord{}, fmt.Errorf("read stored predictions: %w", err)
	}
	if len(preds) == 0 {
		return domain.MetricRecord{}, fmt.Errorf("%w: %s", ErrNoStoredPredictions, start.Format("2006-01-02"))
	}

	realized, err := c.truth.ReadModelRows(ctx, version, start, end, true)
	if err != nil {
		return domain.MetricRecord{}, fmt.Errorf("read realized rows: %w", err)
	}

	rec, err := Compare(preds, realized, c.home)
	if err != nil {
		return domain.MetricRecord{}, err
	}
	rec.Date = start

	if err := c.sink.AppendMetric(rec); err != nil {
		return domain.MetricRecord{}, fmt.Errorf("append metric: %w", err)
	}
	c.logger.Info("scored stored predictions",
		"date", start.Format("2006-01-02"),
		"mae_import", rec.MAEImport,
		"mae_export", rec.MAEExport,
		"predictions", len(preds),
		"realized", len(realized),
	)
	return rec, nil
}

type pairKey struct {
	ts   int64
	from string
	to   string
}

// Compare inner-joins predictions and realized rows on (hour, directed
// pair) and returns each direction's mean absolute error. Both directions
// must join at least one hour, otherwise ErrInsufficientGroundTruth.
func Compare(preds []domain.PredictionRecord, realized []domain.ModelFeatureRow, home string) (domain.MetricRecord, error) {
	truth := make(map[pairKey]float64, len(realized))
	for _, r := range realized {
		if r.EnergySent == nil {
			continue
		}
		if r.CountryFrom != home && r.CountryTo != home {
			continue
		}
		truth[pairKey{r.Datetime.UTC().Unix(), r.CountryFrom, r.CountryTo}] = *r.EnergySent
	}

	var sumExport, sumImport float64
	var nExport, nImport int
	for _, p := range preds {
		actual, ok := truth[pairKey{p.Datetime.UTC().Unix(), p.CountryFrom, p.CountryTo}]
		if !ok {
			continue
		}
		diff := math.Abs(p.EnergySent - actual)
		if domain.Direction(home, p.CountryFrom) == domain.DirectionExport {
			sumExport += diff
			nExport++
		} else {
			sumImport += diff
			nImport++
		}
	}

	if nExport == 0 || nImport == 0 {
		return domain.MetricRecord{}, fmt.Errorf("%w: %d export and %d import hours joined",
			ErrInsufficientGroundTruth, nExport, nImport)
	}
	return domain.MetricRecord{
		MAEExport: sumExport / float64(nExport),
		MAEImport: sumImport / float64(nImport),
	}, nil
}
