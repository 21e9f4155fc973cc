package bias

import (
	"fmt"
	"math"

	"metareview/domain/core"
	"metareview/domain/meta"
	"metareview/internal/analysis/dist"
)

// Begg runs the Begg-Mazumdar rank correlation test. Effects are centered on
// the fixed-effect summary and standardized by the variance of the deviation,
// then Kendall's tau between the standardized deviations and the study
// variances is tested with a normal approximation.
func Begg(effects []meta.StudyEffect) (*meta.BeggsTest, error) {
	k := len(effects)
	if k < minStudiesForEggers {
		return nil, fmt.Errorf("%w: need at least %d studies, got %d", core.ErrTooFewForEggers, minStudiesForEggers, k)
	}

	var sumW, sumWY float64
	for _, e := range effects {
		w := 1 / e.VI
		sumW += w
		sumWY += w * e.YI
	}
	summary := sumWY / sumW

	tStar := make([]float64, k)
	vi := make([]float64, k)
	for i, e := range effects {
		vStar := e.VI - 1/sumW
		if vStar <= 0 {
			vStar = e.VI
		}
		tStar[i] = (e.YI - summary) / math.Sqrt(vStar)
		vi[i] = e.VI
	}

	var concordant, discordant int
	for i := 0; i < k; i++ {
		for j := i + 1; j < k; j++ {
			s := (tStar[i] - tStar[j]) * (vi[i] - vi[j])
			switch {
			case s > 0:
				concordant++
			case s < 0:
				discordant++
			}
		}
	}

	pairs := float64(k * (k - 1) / 2)
	tau := float64(concordant-discordant) / pairs
	z := 3 * tau * math.Sqrt(float64(k*(k-1))) / math.Sqrt(float64(2*(2*k+5)))

	return &meta.BeggsTest{
		Tau:    tau,
		Z:      z,
		PValue: dist.ZToP(z),
	}, nil
}
