package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultLambdaGrid is the range searched under hyperparameter tuning.
var DefaultLambdaGrid = []float64{0.01, 0.1, 1, 10, 100}

// CVFolds is the cross-validation fold count used by the training command.
const CVFolds = 3

// GridSearch returns the grid λ with the lowest k-fold cross-validated MSE.
// Folds are contiguous row blocks, so time order survives inside each fold.
func GridSearch(x *mat.Dense, y []float64, grid []float64, folds int) (float64, error) {
	n, _ := x.Dims()
	if len(grid) == 0 {
		return 0, errors.New("grid search: empty grid")
	}
	if folds < 2 || n < folds {
		return 0, fmt.Errorf("grid search: %d rows cannot fill %d folds", n, folds)
	}

	best := grid[0]
	bestMSE := math.Inf(1)
	for _, lambda := range grid {
		var sumSq float64
		var points int
		for f := 0; f < folds; f++ {
			lo := f * n / folds
			hi := (f + 1) * n / folds
			if hi == lo {
				continue
			}

			trainX, trainY := dropRows(x, y, lo, hi)
			reg := NewRidge(lambda)
			if err := reg.Fit(trainX, trainY); err != nil {
				return 0, fmt.Errorf("grid search: fold %d: %w", f, err)
			}
			preds, err := reg.Predict(rowRange(x, lo, hi))
			if err != nil {
				return 0, fmt.Errorf("grid search: fold %d: %w", f, err)
			}
			for i, p := range preds {
				d := y[lo+i] - p
				sumSq += d * d
			}
			points += hi - lo
		}

		mse := sumSq / float64(points)
		if mse < bestMSE {
			bestMSE = mse
			best = lambda
		}
	}
	return best, nil
}

// rowRange views rows [lo, hi) of x.
func rowRange(x *mat.Dense, lo, hi int) *mat.Dense {
	_, d := x.Dims()
	return x.Slice(lo, hi, 0, d).(*mat.Dense)
}

// dropRows copies x and y without rows [lo, hi).
func dropRows(x *mat.Dense, y []float64, lo, hi int) (*mat.Dense, []float64) {
	n, d := x.Dims()
	out := mat.NewDense(n-(hi-lo), d, nil)
	oy := make([]float64, 0, n-(hi-lo))
	row := 0
	for i := 0; i < n; i++ {
		if i >= lo && i < hi {
			continue
		}
		out.SetRow(row, x.RawRowView(i))
		oy = append(oy, y[i])
		row++
	}
	return out, oy
}
