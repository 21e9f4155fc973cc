package engine

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"metareview/domain/core"
	"metareview/domain/meta"
	"metareview/internal/analysis/dist"
)

// MetaRegression fits a weighted least-squares line of the per-study
// effect (yi) on one numeric covariate, weighting by random-effects
// weights 1/(vi + tau2). It reports the moderator coefficient with a
// Z test, the Q_model/Q_residual decomposition of total Q under the
// same weights, and pseudo-R2 = 1 - Q_residual/Q_total.
func MetaRegression(eff []meta.StudyEffect, covariate []float64, covariateName string, tau2 float64) (*meta.MetaRegressionResult, error) {
	k := len(eff)
	if k < 3 {
		return nil, core.ErrTooFewForRegression
	}
	if len(covariate) != k {
		return nil, core.ErrMissingCovariate
	}

	x := make([]float64, k)
	y := make([]float64, k)
	w := make([]float64, k)
	for i, e := range eff {
		x[i] = covariate[i]
		y[i] = e.YI
		w[i] = 1 / (e.VI + tau2)
	}

	intercept, slope := stat.LinearRegression(x, y, w, false)

	// With known per-study variances the sampling variance of the WLS
	// slope is 1 / sum(w * (x - xbar_w)^2).
	sumW := 0.0
	xBar := 0.0
	for i := range x {
		sumW += w[i]
		xBar += w[i] * x[i]
	}
	xBar /= sumW
	sxx := 0.0
	for i := range x {
		d := x[i] - xBar
		sxx += w[i] * d * d
	}
	if sxx == 0 {
		return nil, core.ErrMissingCovariate
	}
	se := math.Sqrt(1 / sxx)
	z := slope / se

	yBar := 0.0
	for i := range y {
		yBar += w[i] * y[i]
	}
	yBar /= sumW
	qTotal := 0.0
	qResidual := 0.0
	for i := range y {
		dt := y[i] - yBar
		qTotal += w[i] * dt * dt
		dr := y[i] - (intercept + slope*x[i])
		qResidual += w[i] * dr * dr
	}

	r2 := 0.0
	if qTotal > 0 {
		r2 = math.Max(0, math.Min(1, 1-qResidual/qTotal))
	}

	return &meta.MetaRegressionResult{
		Covariate:   covariateName,
		Coefficient: slope,
		SE:          se,
		Z:           z,
		PValue:      dist.ZToP(z),
		Intercept:   intercept,
		QModel:      qTotal - qResidual,
		QResidual:   qResidual,
		RSquared:    r2,
		K:           k,
	}, nil
}
