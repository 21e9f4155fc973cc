// Package bias provides small-study and publication-bias diagnostics for a
// set of study effects: Egger's regression test, the Begg-Mazumdar rank
// correlation test, Duval-Tweedie trim-and-fill, and the data builders for
// funnel, contour funnel, Galbraith, Baujat and L'Abbe plots.
package bias

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"metareview/domain/core"
	"metareview/domain/meta"
	"metareview/internal/analysis/dist"
)

// minStudiesForEggers is the smallest k for which the regression has a
// positive residual degree of freedom.
const minStudiesForEggers = 3

// Eggers runs Egger's regression test for funnel plot asymmetry: the
// standardized effect yi/sei is regressed on precision 1/sei and the
// intercept is tested against zero with a t-test on k-2 degrees of freedom.
func Eggers(effects []meta.StudyEffect) (*meta.EggersTest, error) {
	k := len(effects)
	if k < minStudiesForEggers {
		return nil, fmt.Errorf("%w: need at least %d studies, got %d", core.ErrTooFewForEggers, minStudiesForEggers, k)
	}

	x := make([]float64, k)
	y := make([]float64, k)
	for i, e := range effects {
		if e.SEI <= 0 {
			return nil, core.NewValidationError(e.StudyName, "standard error must be positive")
		}
		x[i] = 1 / e.SEI
		y[i] = e.YI / e.SEI
	}

	intercept, slope := stat.LinearRegression(x, y, nil, false)

	var sse, sxx, meanX float64
	for _, xi := range x {
		meanX += xi
	}
	meanX /= float64(k)
	for i := range x {
		resid := y[i] - (intercept + slope*x[i])
		sse += resid * resid
		dx := x[i] - meanX
		sxx += dx * dx
	}

	df := k - 2
	mse := sse / float64(df)
	seIntercept := math.Sqrt(mse * (1/float64(k) + meanX*meanX/sxx))

	tValue := intercept / seIntercept
	return &meta.EggersTest{
		Intercept: intercept,
		Slope:     slope,
		SE:        seIntercept,
		TValue:    tValue,
		PValue:    dist.TToP(tValue, float64(df)),
		DF:        df,
	}, nil
}
