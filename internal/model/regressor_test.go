package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func denseFromRows(rows [][]float64) *mat.Dense {
	x := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, r := range rows {
		x.SetRow(i, r)
	}
	return x
}

func TestRidge_RecoversLinearRelation(t *testing.T) {
	// y = 3 + 2a - b over a small deterministic grid.
	var rows [][]float64
	var y []float64
	for a := 0.0; a < 5; a++ {
		for b := 0.0; b < 4; b++ {
			rows = append(rows, []float64{a, b})
			y = append(y, 3+2*a-b)
		}
	}
	x := denseFromRows(rows)

	reg := NewRidge(1e-9)
	require.NoError(t, reg.Fit(x, y))

	require.Len(t, reg.Weights, 3)
	assert.InDelta(t, 3.0, reg.Weights[0], 1e-6)
	assert.InDelta(t, 2.0, reg.Weights[1], 1e-6)
	assert.InDelta(t, -1.0, reg.Weights[2], 1e-6)

	preds, err := reg.Predict(x)
	require.NoError(t, err)
	for i := range y {
		assert.InDelta(t, y[i], preds[i], 1e-6)
	}
}

func TestRidge_ShrinksWeightsUnderHeavyPenalty(t *testing.T) {
	x := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := []float64{2, 4, 6, 8}

	loose := NewRidge(1e-9)
	require.NoError(t, loose.Fit(x, y))
	tight := NewRidge(1e6)
	require.NoError(t, tight.Fit(x, y))

	assert.Less(t, tight.Weights[1], loose.Weights[1])
}

func TestRidge_SingularMatrixFallsBackToSVD(t *testing.T) {
	// A duplicated column makes the Gram matrix singular at λ=0; the
	// pseudo-inverse still reproduces targets in the column space.
	rows := [][]float64{{1, 1}, {2, 2}, {3, 3}, {4, 4}}
	y := []float64{2, 4, 6, 8}
	x := denseFromRows(rows)

	reg := NewRidge(0)
	require.NoError(t, reg.Fit(x, y))

	preds, err := reg.Predict(x)
	require.NoError(t, err)
	for i := range y {
		assert.InDelta(t, y[i], preds[i], 1e-6)
	}
}

func TestRidge_FitRejectsMismatchedLabels(t *testing.T) {
	reg := NewRidge(1)

	err := reg.Fit(mat.NewDense(2, 1, []float64{1, 2}), []float64{1})

	assert.ErrorContains(t, err, "2 rows but 1 labels")
}

func TestRidge_PredictErrors(t *testing.T) {
	reg := NewRidge(1)
	_, err := reg.Predict(mat.NewDense(1, 2, []float64{1, 2}))
	assert.ErrorContains(t, err, "not fitted")

	require.NoError(t, reg.Fit(mat.NewDense(3, 1, []float64{1, 2, 3}), []float64{1, 2, 3}))
	_, err = reg.Predict(mat.NewDense(1, 2, []float64{1, 2}))
	assert.ErrorContains(t, err, "2 feature columns but the model has 2 weights")
}
