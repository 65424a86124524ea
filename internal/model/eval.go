package model

// MSE returns the mean squared error between targets and predictions.
func MSE(y, yhat []float64) float64 {
	var s float64
	for i := range y {
		d := y[i] - yhat[i]
		s += d * d
	}
	return s / float64(len(y))
}

// R2 returns the coefficient of determination. A constant target has no
// variance to explain and scores 0.
func R2(y, yhat []float64) float64 {
	var mean float64
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))

	var ssRes, ssTot float64
	for i := range y {
		d := y[i] - yhat[i]
		ssRes += d * d
		m := y[i] - mean
		ssTot += m * m
	}
	if ssTot == 0 {
		return 0
	}
	return 1 - ssRes/ssTot
}
