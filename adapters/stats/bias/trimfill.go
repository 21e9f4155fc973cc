package bias

import (
	"fmt"
	"math"
	"sort"

	mstats "github.com/montanaflynn/stats"

	"metareview/adapters/stats/engine"
	"metareview/domain/core"
	"metareview/domain/meta"
)

// maxTrimIterations bounds the L0 estimator loop; in practice it converges
// within a handful of iterations.
const maxTrimIterations = 50

// TrimAndFill runs the Duval-Tweedie trim-and-fill procedure with the L0
// estimator. The side with missing studies is chosen by comparing the mean
// and median of the observed effects, the k0 most extreme studies on the
// opposite side are iteratively trimmed, mirror images of them are imputed
// around the trimmed fixed-effect center, and the combined set is re-pooled
// under the requested model.
func TrimAndFill(effects []meta.StudyEffect, measure meta.Measure, model meta.Model) (*meta.TrimAndFillResult, error) {
	k := len(effects)
	if k < minStudiesForEggers {
		return nil, fmt.Errorf("%w: need at least %d studies, got %d", core.ErrTooFewForEggers, minStudiesForEggers, k)
	}

	original := engine.Pool(effects, measure, model)

	yis := make([]float64, k)
	for i, e := range effects {
		yis[i] = e.YI
	}
	mean, err := mstats.Mean(yis)
	if err != nil {
		return nil, fmt.Errorf("trim-and-fill mean: %w", err)
	}
	median, err := mstats.Median(yis)
	if err != nil {
		return nil, fmt.Errorf("trim-and-fill median: %w", err)
	}

	// Imputed studies fill the side opposite the excess tail. A mean pulled
	// above the median means extreme observed effects sit on the right, so
	// the missing studies are on the left.
	side := "right"
	if mean > median {
		side = "left"
	}
	flip := side == "right"

	ys := make([]float64, k)
	for i, y := range yis {
		if flip {
			ys[i] = -y
		} else {
			ys[i] = y
		}
	}

	order := make([]int, k)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return ys[order[a]] < ys[order[b]] })

	k0 := 0
	center := 0.0
	for iter := 0; iter < maxTrimIterations; iter++ {
		center = trimmedFixedCenter(ys, effects, order, k-k0)

		// Signed rank sum of the positive deviations from the trimmed center.
		dev := make([]float64, k)
		for i := range ys {
			dev[i] = ys[i] - center
		}
		ranks := rankByAbs(dev)
		tn := 0.0
		for i, d := range dev {
			if d > 0 {
				tn += ranks[i]
			}
		}

		l0 := (4*tn - float64(k*(k+1))) / float64(2*k-1)
		next := int(math.Floor(l0 + 0.5))
		if next < 0 {
			next = 0
		}
		if next > k-2 {
			next = k - 2
		}
		if next == k0 {
			break
		}
		k0 = next
	}

	imputed := make([]meta.StudyEffect, 0, k0)
	for _, idx := range order[k-k0:] {
		src := effects[idx]
		yi := 2*center - ys[idx]
		if flip {
			yi = -yi
		}
		imp := meta.StudyEffect{
			StudyID:   core.NewStudyID(),
			StudyName: src.StudyName + " (filled)",
			YI:        yi,
			SEI:       src.SEI,
			VI:        src.VI,
		}
		imputed = append(imputed, imp)
	}

	combined := make([]meta.StudyEffect, 0, k+k0)
	combined = append(combined, effects...)
	combined = append(combined, imputed...)
	adjusted := engine.Pool(combined, measure, model)

	return &meta.TrimAndFillResult{
		K0:       k0,
		Side:     side,
		Effect:   adjusted.Effect,
		CILower:  adjusted.CILower,
		CIUpper:  adjusted.CIUpper,
		Imputed:  imputed,
		Original: original.Effect,
	}, nil
}

// trimmedFixedCenter computes the inverse-variance fixed-effect estimate of
// the keep smallest working effects.
func trimmedFixedCenter(ys []float64, effects []meta.StudyEffect, order []int, keep int) float64 {
	var sumW, sumWY float64
	for _, idx := range order[:keep] {
		w := 1 / effects[idx].VI
		sumW += w
		sumWY += w * ys[idx]
	}
	return sumWY / sumW
}

// rankByAbs assigns 1-based ranks by absolute magnitude.
func rankByAbs(v []float64) []float64 {
	idx := make([]int, len(v))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool { return math.Abs(v[idx[a]]) < math.Abs(v[idx[b]]) })
	ranks := make([]float64, len(v))
	for r, i := range idx {
		ranks[i] = float64(r + 1)
	}
	return ranks
}
