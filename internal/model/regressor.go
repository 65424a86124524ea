// Package model trains and serves the hourly flow regressor: design-matrix
// assembly from stored feature rows, a ridge solver on gonum, grid-searched
// regularization, and a local versioned registry for the fitted artifacts.
package model

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Regressor fits on a design matrix and predicts one value per row.
type Regressor interface {
	Fit(x *mat.Dense, y []float64) error
	Predict(x *mat.Dense) ([]float64, error)
}

// Ridge is a linear regressor with L2 regularization solved by normal
// equations. The intercept is the first weight; it shares the penalty with
// the rest, which at the λ magnitudes in use shrinks it by a rounding
// error.
type Ridge struct {
	Lambda  float64   `json:"lambda"`
	Weights []float64 `json:"weights"`
}

func NewRidge(lambda float64) *Ridge {
	return &Ridge{Lambda: lambda}
}

// Fit solves (XᵀX + λI)β = Xᵀy over the intercept-augmented matrix.
// Cholesky handles the well-conditioned case; a thin-SVD pseudo-inverse
// takes over when factorization fails, zeroing singular values below 1e-12.
func (r *Ridge) Fit(x *mat.Dense, y []float64) error {
	n, d := x.Dims()
	if n == 0 || d == 0 {
		return errors.New("fit: empty design matrix")
	}
	if n != len(y) {
		return fmt.Errorf("fit: %d rows but %d labels", n, len(y))
	}

	xa := withIntercept(x)
	yv := mat.NewVecDense(n, y)
	cols := d + 1

	var gram mat.Dense
	gram.Mul(xa.T(), xa)
	for i := 0; i < cols; i++ {
		gram.Set(i, i, gram.At(i, i)+r.Lambda)
	}
	sym := mat.NewSymDense(cols, nil)
	for i := 0; i < cols; i++ {
		for j := 0; j <= i; j++ {
			sym.SetSym(i, j, gram.At(i, j))
		}
	}

	var xty mat.VecDense
	xty.MulVec(xa.T(), yv)

	var chol mat.Cholesky
	if chol.Factorize(sym) {
		var beta mat.VecDense
		if err := chol.SolveVecTo(&beta, &xty); err == nil {
			r.Weights = vecSlice(&beta)
			return nil
		}
	}

	var svd mat.SVD
	if !svd.Factorize(xa, mat.SVDThin) {
		return errors.New("fit: SVD factorization failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	var uty mat.VecDense
	uty.MulVec(u.T(), yv)
	for i, sv := range svd.Values(nil) {
		if sv > 1e-12 {
			uty.SetVec(i, uty.AtVec(i)/sv)
		} else {
			uty.SetVec(i, 0)
		}
	}
	var beta mat.VecDense
	beta.MulVec(&v, &uty)
	r.Weights = vecSlice(&beta)
	return nil
}

// Predict applies the fitted weights row by row.
func (r *Ridge) Predict(x *mat.Dense) ([]float64, error) {
	if len(r.Weights) == 0 {
		return nil, errors.New("predict: model not fitted")
	}
	n, d := x.Dims()
	if d+1 != len(r.Weights) {
		return nil, fmt.Errorf("predict: %d feature columns but the model has %d weights", d, len(r.Weights))
	}

	xa := withIntercept(x)
	beta := mat.NewVecDense(len(r.Weights), r.Weights)
	var yhat mat.VecDense
	yhat.MulVec(xa, beta)

	out := make([]float64, n)
	for i := range out {
		out[i] = yhat.AtVec(i)
	}
	return out, nil
}

// withIntercept prepends a column of ones.
func withIntercept(x *mat.Dense) *mat.Dense {
	n, d := x.Dims()
	xa := mat.NewDense(n, d+1, nil)
	for i := 0; i < n; i++ {
		xa.Set(i, 0, 1)
		for j := 0; j < d; j++ {
			xa.Set(i, j+1, x.At(i, j))
		}
	}
	return xa
}

func vecSlice(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
