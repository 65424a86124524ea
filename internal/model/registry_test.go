package model

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fittedRidge(t *testing.T, lambda float64) *Ridge {
	t.Helper()
	reg := NewRidge(lambda)
	require.NoError(t, reg.Fit(mat.NewDense(4, 1, []float64{1, 2, 3, 4}), []float64{2, 4, 6, 8}))
	return reg
}

func TestRegistry_SaveAssignsMonotonicVersions(t *testing.T) {
	reg := NewRegistry(t.TempDir(), testLogger())
	model := fittedRidge(t, 0.1)

	v1, err := reg.Save("model_total_production", model, Metadata{RunID: "run-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, v1)

	v2, err := reg.Save("model_total_production", model, Metadata{RunID: "run-2"})
	require.NoError(t, err)
	assert.Equal(t, 2, v2)
}

func TestRegistry_LatestLoadsNewestVersion(t *testing.T) {
	reg := NewRegistry(t.TempDir(), testLogger())

	_, err := reg.Save("model_total_production", fittedRidge(t, 0.1), Metadata{RunID: "run-1"})
	require.NoError(t, err)
	meta2 := Metadata{
		RunID:      "run-2",
		FeatureSet: "total_production",
		Columns:    []string{"energy_price_nl", "country_from_NL"},
		Metrics:    map[string]string{"MSE": "118.4", "R squared": "0.87"},
	}
	_, err = reg.Save("model_total_production", fittedRidge(t, 10), meta2)
	require.NoError(t, err)

	loaded, meta, err := reg.Latest("model_total_production")

	require.NoError(t, err)
	assert.Equal(t, 10.0, loaded.Lambda)
	assert.NotEmpty(t, loaded.Weights)
	assert.Equal(t, 2, meta.Version)
	assert.Equal(t, "run-2", meta.RunID)
	assert.Equal(t, "118.4", meta.Metrics["MSE"])
	assert.Equal(t, "0.87", meta.Metrics["R squared"])
	assert.Equal(t, []string{"energy_price_nl", "country_from_NL"}, meta.Columns)
	assert.False(t, meta.CreatedAt.IsZero())
}

func TestRegistry_ModelsAreIsolatedByName(t *testing.T) {
	reg := NewRegistry(t.TempDir(), testLogger())

	_, err := reg.Save("model_total_production", fittedRidge(t, 0.1), Metadata{})
	require.NoError(t, err)

	v, err := reg.Save("model_all_production", fittedRidge(t, 0.1), Metadata{})
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestRegistry_LatestWithoutModelErrors(t *testing.T) {
	reg := NewRegistry(t.TempDir(), testLogger())

	_, _, err := reg.Latest("model_total_production")

	assert.ErrorContains(t, err, "no versions of model")
}
