// Package clinical converts pooled relative effects into absolute clinical
// quantities: the number needed to treat (NNT) or harm (NNH) at a given
// baseline risk.
package clinical

import (
	"fmt"
	"math"

	mstats "github.com/montanaflynn/stats"

	"metareview/domain/core"
	"metareview/domain/meta"
)

// ControlEventRate derives the baseline risk from the pooled control arms of
// a binary-outcome dataset.
func ControlEventRate(studies []meta.Study) (float64, error) {
	if len(studies) == 0 {
		return 0, core.ErrEmptyDataset
	}
	events := make([]float64, 0, len(studies))
	totals := make([]float64, 0, len(studies))
	for _, s := range studies {
		if s.Binary == nil {
			return 0, fmt.Errorf("%w: study %q has no event counts", core.ErrNotBinaryOutcome, s.Name)
		}
		events = append(events, s.Binary.Events2)
		totals = append(totals, s.Binary.Total2)
	}

	sumEvents, err := mstats.Sum(events)
	if err != nil {
		return 0, fmt.Errorf("summing control events: %w", err)
	}
	sumTotals, err := mstats.Sum(totals)
	if err != nil {
		return 0, fmt.Errorf("summing control totals: %w", err)
	}
	if sumTotals <= 0 {
		return 0, core.ErrEmptyDataset
	}
	return sumEvents / sumTotals, nil
}

// NumberNeededToTreat converts a pooled OR or RR into an NNT/NNH at the given
// control event rate. The pooled effect and both confidence bounds are pushed
// through the same risk transform; when the transformed confidence interval
// straddles zero risk difference the NNT interval is unbounded on one side
// and InfiniteBound is set.
func NumberNeededToTreat(result *meta.MetaAnalysisResult, cer float64) (*meta.NNTResult, error) {
	if result.Measure != meta.MeasureOR && result.Measure != meta.MeasureRR {
		return nil, fmt.Errorf("%w: NNT requires OR or RR, got %s", core.ErrNotBinaryOutcome, result.Measure)
	}
	if cer <= 0 || cer >= 1 {
		return nil, fmt.Errorf("%w: control event rate %g outside (0, 1)", core.ErrInvalidStudyData, cer)
	}

	rd := riskDifference(result.Measure, result.Effect, cer)
	rdLower := riskDifference(result.Measure, result.CILower, cer)
	rdUpper := riskDifference(result.Measure, result.CIUpper, cer)

	res := &meta.NNTResult{
		ControlEventRate: cer,
		RiskDifference:   rd,
		Harm:             rd > 0,
	}

	if rd == 0 {
		res.NNT = math.Inf(1)
		res.InfiniteBound = true
	} else {
		res.NNT = 1 / math.Abs(rd)
	}

	if rdLower*rdUpper > 0 {
		a, b := 1/math.Abs(rdLower), 1/math.Abs(rdUpper)
		res.CILower = math.Min(a, b)
		res.CIUpper = math.Max(a, b)
	} else {
		// The confidence interval for the risk difference crosses zero, so
		// the NNT interval runs out to infinity.
		res.InfiniteBound = true
		res.CILower = 1 / math.Max(math.Abs(rdLower), math.Abs(rdUpper))
		res.CIUpper = math.Inf(1)
	}

	return res, nil
}

// riskDifference maps a relative effect at a baseline risk to an absolute
// risk difference (experimental minus control event rate).
func riskDifference(measure meta.Measure, effect, cer float64) float64 {
	switch measure {
	case meta.MeasureOR:
		eer := effect * cer / (1 - cer + effect*cer)
		return eer - cer
	default: // RR
		return cer*effect - cer
	}
}
