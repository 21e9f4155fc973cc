package engine

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"metareview/adapters/stats/effects"
	"metareview/domain/core"
	"metareview/domain/meta"
	"metareview/internal/analysis/dist"
)

const zCrit95 = 1.96

// Analyze runs the full effect-size -> pooling pipeline for one study list.
func Analyze(studies []meta.Study, measure meta.Measure, model meta.Model) (*meta.MetaAnalysisResult, error) {
	if !measure.Valid() {
		return nil, core.ErrUnknownMeasure
	}
	if !model.Valid() {
		return nil, core.ErrUnknownModel
	}
	eff, err := effects.ComputeAll(studies, measure)
	if err != nil {
		return nil, err
	}
	return Pool(eff, measure, model), nil
}

// Pool combines per-study effects under the requested model. The input
// slice is not mutated; the result carries copies with weights filled in.
//
// Fixed-effects weights are 1/vi. Random-effects weights are
// 1/(vi + tau2) with tau2 from the DerSimonian-Laird estimator; when
// tau2 = 0 the two models coincide bit-for-bit.
func Pool(eff []meta.StudyEffect, measure meta.Measure, model meta.Model) *meta.MetaAnalysisResult {
	k := len(eff)
	out := make([]meta.StudyEffect, k)
	copy(out, eff)

	wFixed := make([]float64, k)
	sumWFixed := 0.0
	for i, e := range eff {
		wFixed[i] = 1 / e.VI
		sumWFixed += wFixed[i]
	}
	summaryFixed := 0.0
	for i, e := range eff {
		summaryFixed += wFixed[i] * e.YI
	}
	summaryFixed /= sumWFixed
	seFixed := math.Sqrt(1 / sumWFixed)

	het := computeHeterogeneity(eff, wFixed, sumWFixed, summaryFixed)

	wRandom := make([]float64, k)
	sumWRandom := 0.0
	for i, e := range eff {
		wRandom[i] = 1 / (e.VI + het.Tau2)
		sumWRandom += wRandom[i]
	}
	summaryRandom := 0.0
	for i, e := range eff {
		summaryRandom += wRandom[i] * e.YI
	}
	summaryRandom /= sumWRandom
	seRandom := math.Sqrt(1 / sumWRandom)

	for i := range out {
		out[i].WeightFixed = wFixed[i] / sumWFixed * 100
		out[i].WeightRandom = wRandom[i] / sumWRandom * 100
	}

	summary, se := summaryFixed, seFixed
	if model == meta.ModelRandom {
		summary, se = summaryRandom, seRandom
	}

	z := summary / se
	result := &meta.MetaAnalysisResult{
		Measure:       measure,
		Model:         model,
		SummaryYI:     summary,
		SE:            se,
		Effect:        effects.BackTransform(summary, measure),
		CILower:       effects.BackTransform(summary-zCrit95*se, measure),
		CIUpper:       effects.BackTransform(summary+zCrit95*se, measure),
		Z:             z,
		PValue:        dist.ZToP(z),
		Studies:       out,
		Heterogeneity: het,
	}

	if model == meta.ModelRandom && k >= 3 {
		result.PredictionInterval = predictionInterval(summary, se, het.Tau2, k, measure)
	}
	return result
}

// computeHeterogeneity derives Cochran's Q and the DerSimonian-Laird
// tau2 from fixed-effects weights.
//
// Conventions: k=1 gives the degenerate block {Q:0, df:0, p:1, I2:0,
// tau2:0, H2:1}; I2 is 0 when Q=0 and clamped to [0,100]; tau2 is
// clamped at 0 (C=0 cannot occur for k>1 with positive variances).
func computeHeterogeneity(eff []meta.StudyEffect, w []float64, sumW, summary float64) meta.Heterogeneity {
	k := len(eff)
	df := k - 1
	if df <= 0 {
		return meta.Heterogeneity{Q: 0, DF: 0, PValue: 1, I2: 0, Tau2: 0, Tau: 0, H2: 1}
	}

	q := 0.0
	sumW2 := 0.0
	for i, e := range eff {
		d := e.YI - summary
		q += w[i] * d * d
		sumW2 += w[i] * w[i]
	}

	c := sumW - sumW2/sumW
	tau2 := 0.0
	if c > 0 {
		tau2 = math.Max(0, (q-float64(df))/c)
	}

	i2 := 0.0
	if q > 0 {
		i2 = math.Max(0, math.Min(100, (q-float64(df))/q*100))
	}

	return meta.Heterogeneity{
		Q:      q,
		DF:     df,
		PValue: dist.ChiSquaredPValue(q, float64(df)),
		I2:     i2,
		Tau2:   tau2,
		Tau:    math.Sqrt(tau2),
		H2:     q / float64(df),
	}
}

// predictionInterval computes the 95% interval for the true effect in a
// new study: summary +/- t_{k-2,0.975} * sqrt(se^2 + tau2), back-transformed.
func predictionInterval(summary, se, tau2 float64, k int, measure meta.Measure) *meta.PredictionInterval {
	tCrit := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(k - 2)}.Quantile(0.975)
	half := tCrit * math.Sqrt(se*se+tau2)
	return &meta.PredictionInterval{
		Lower: effects.BackTransform(summary-half, measure),
		Upper: effects.BackTransform(summary+half, measure),
	}
}

// FixedSummary pools with fixed-effect weights only, without building a
// full result. Shared by the bias diagnostics, which need the center of
// the funnel repeatedly.
func FixedSummary(eff []meta.StudyEffect) (summary, se float64) {
	sumW := 0.0
	for _, e := range eff {
		sumW += 1 / e.VI
	}
	for _, e := range eff {
		summary += (1 / e.VI) * e.YI
	}
	summary /= sumW
	return summary, math.Sqrt(1 / sumW)
}
