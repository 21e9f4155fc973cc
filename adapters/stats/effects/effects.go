package effects

import (
	"math"

	"metareview/domain/core"
	"metareview/domain/meta"
)

// zCrit95 is the normal critical value used for 95% confidence intervals
// throughout the engine; the validation harness pins it at 1.96 exactly.
const zCrit95 = 1.96

// Compute converts one study's raw data into a standardized effect
// estimate with its standard error, back-transformed CI, and variance.
// Weight percentages are zero until the pooling engine fills them in.
func Compute(study meta.Study, measure meta.Measure) (meta.StudyEffect, error) {
	var (
		yi, sei float64
		err     error
	)

	switch measure {
	case meta.MeasureOR:
		yi, sei, err = logOddsRatio(study)
	case meta.MeasureRR:
		yi, sei, err = logRiskRatio(study)
	case meta.MeasureMD:
		yi, sei, err = meanDifference(study)
	case meta.MeasureSMD:
		yi, sei, err = hedgesG(study)
	case meta.MeasureHR:
		yi, sei, err = logHazardRatio(study)
	default:
		return meta.StudyEffect{}, core.ErrUnknownMeasure
	}
	if err != nil {
		return meta.StudyEffect{}, err
	}

	return meta.StudyEffect{
		StudyID:   study.ID,
		StudyName: study.Name,
		YI:        yi,
		SEI:       sei,
		VI:        sei * sei,
		Effect:    BackTransform(yi, measure),
		CILower:   BackTransform(yi-zCrit95*sei, measure),
		CIUpper:   BackTransform(yi+zCrit95*sei, measure),
	}, nil
}

// ComputeAll converts every study under one measure, preserving order.
func ComputeAll(studies []meta.Study, measure meta.Measure) ([]meta.StudyEffect, error) {
	out := make([]meta.StudyEffect, 0, len(studies))
	for _, s := range studies {
		eff, err := Compute(s, measure)
		if err != nil {
			return nil, err
		}
		out = append(out, eff)
	}
	return out, nil
}

// BackTransform maps a log/raw-scale value back to the original scale:
// exp() exactly when the measure is log-scale, identity otherwise.
func BackTransform(yi float64, measure meta.Measure) float64 {
	if measure.IsLogScale() {
		return math.Exp(yi)
	}
	return yi
}

// correctZeroCells applies the 0.5 continuity correction when any cell of
// the 2x2 table is zero (no events, or all events, in either arm): 0.5 is
// added to all four cells and 1 to both totals. Applied at most once per
// study; the corrected copy never re-enters this function.
func correctZeroCells(b meta.BinaryData) meta.BinaryData {
	if b.Events1 != 0 && b.Events2 != 0 && b.Events1 != b.Total1 && b.Events2 != b.Total2 {
		return b
	}
	return meta.BinaryData{
		Events1: b.Events1 + 0.5,
		Total1:  b.Total1 + 1,
		Events2: b.Events2 + 0.5,
		Total2:  b.Total2 + 1,
	}
}

// logOddsRatio computes the log odds ratio and its standard error from
// post-correction cell counts.
func logOddsRatio(study meta.Study) (float64, float64, error) {
	if study.Binary == nil {
		return 0, 0, core.NewMeasureMismatchError(string(meta.MeasureOR), study.Name)
	}
	b := correctZeroCells(*study.Binary)

	a := b.Events1
	bb := b.Total1 - b.Events1
	c := b.Events2
	d := b.Total2 - b.Events2

	yi := math.Log((a * d) / (bb * c))
	sei := math.Sqrt(1/a + 1/bb + 1/c + 1/d)
	return yi, sei, nil
}

// logRiskRatio computes the log risk ratio and its standard error from
// post-correction cell counts.
func logRiskRatio(study meta.Study) (float64, float64, error) {
	if study.Binary == nil {
		return 0, 0, core.NewMeasureMismatchError(string(meta.MeasureRR), study.Name)
	}
	b := correctZeroCells(*study.Binary)

	p1 := b.Events1 / b.Total1
	p2 := b.Events2 / b.Total2

	yi := math.Log(p1 / p2)
	sei := math.Sqrt((1-p1)/b.Events1 + (1-p2)/b.Events2)
	return yi, sei, nil
}

// meanDifference computes the raw mean difference and its standard error.
func meanDifference(study meta.Study) (float64, float64, error) {
	if study.Continuous == nil {
		return 0, 0, core.NewMeasureMismatchError(string(meta.MeasureMD), study.Name)
	}
	c := study.Continuous
	n1 := float64(c.N1)
	n2 := float64(c.N2)

	yi := c.Mean1 - c.Mean2
	sei := math.Sqrt(c.SD1*c.SD1/n1 + c.SD2*c.SD2/n2)
	return yi, sei, nil
}

// hedgesG computes the bias-corrected standardized mean difference
// (Hedges' g) and its standard error.
func hedgesG(study meta.Study) (float64, float64, error) {
	if study.Continuous == nil {
		return 0, 0, core.NewMeasureMismatchError(string(meta.MeasureSMD), study.Name)
	}
	c := study.Continuous
	n1 := float64(c.N1)
	n2 := float64(c.N2)
	df := n1 + n2 - 2

	pooledSD := math.Sqrt(((n1-1)*c.SD1*c.SD1 + (n2-1)*c.SD2*c.SD2) / df)
	d := (c.Mean1 - c.Mean2) / pooledSD
	j := 1 - 3/(4*df-1)
	g := d * j
	sei := math.Sqrt((n1+n2)/(n1*n2)+g*g/(2*(n1+n2))) * j
	return g, sei, nil
}

// logHazardRatio recovers the log hazard ratio and its standard error from
// a reported HR with 95% CI. Pre-aggregated input bypasses the zero-cell
// correction entirely.
func logHazardRatio(study meta.Study) (float64, float64, error) {
	if study.Hazard == nil {
		return 0, 0, core.NewMeasureMismatchError(string(meta.MeasureHR), study.Name)
	}
	h := study.Hazard

	yi := math.Log(h.HR)
	sei := (math.Log(h.CIUpper) - math.Log(h.CILower)) / (2 * zCrit95)
	return yi, sei, nil
}
