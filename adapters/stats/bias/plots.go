package bias

import (
	"fmt"
	"math"

	mstats "github.com/montanaflynn/stats"

	"metareview/adapters/stats/engine"
	"metareview/domain/core"
	"metareview/domain/meta"
)

const (
	funnelGuideSteps = 20
	outlierBand      = 2.0
)

// Funnel builds the standard funnel plot: each study's effect against its
// standard error, with pseudo-confidence guides around the fixed-effect
// summary.
func Funnel(effects []meta.StudyEffect) *meta.FunnelPlotData {
	summary, _ := engine.FixedSummary(effects)

	points := make([]meta.FunnelPoint, len(effects))
	maxSE := 0.0
	for i, e := range effects {
		points[i] = meta.FunnelPoint{
			StudyName: e.StudyName,
			YI:        e.YI,
			SEI:       e.SEI,
			Effect:    e.Effect,
		}
		if e.SEI > maxSE {
			maxSE = e.SEI
		}
	}

	guides := make([]meta.FunnelGuide, funnelGuideSteps+1)
	for i := range guides {
		se := maxSE * float64(i) / funnelGuideSteps
		guides[i] = meta.FunnelGuide{
			SE:    se,
			Lower: summary - 1.96*se,
			Upper: summary + 1.96*se,
		}
	}

	return &meta.FunnelPlotData{
		Points:  points,
		Summary: summary,
		MaxSE:   maxSE,
		Guides:  guides,
	}
}

// ContourFunnel builds the contour-enhanced funnel plot, bucketing each study
// by the two-sided significance of its own z statistic.
func ContourFunnel(effects []meta.StudyEffect) *meta.ContourFunnelData {
	summary, _ := engine.FixedSummary(effects)

	points := make([]meta.ContourFunnelPoint, len(effects))
	maxSE := 0.0
	for i, e := range effects {
		z := e.YI / e.SEI
		points[i] = meta.ContourFunnelPoint{
			FunnelPoint: meta.FunnelPoint{
				StudyName: e.StudyName,
				YI:        e.YI,
				SEI:       e.SEI,
				Effect:    e.Effect,
			},
			Z:      z,
			Bucket: contourBucket(z),
		}
		if e.SEI > maxSE {
			maxSE = e.SEI
		}
	}

	return &meta.ContourFunnelData{
		Points:     points,
		Summary:    summary,
		MaxSE:      maxSE,
		Thresholds: [3]float64{1.645, 1.96, 2.576},
	}
}

func contourBucket(z float64) meta.ContourBucket {
	az := math.Abs(z)
	switch {
	case az >= 2.576:
		return meta.Contour99
	case az >= 1.96:
		return meta.Contour95
	case az >= 1.645:
		return meta.Contour90
	default:
		return meta.ContourNS
	}
}

// Galbraith builds the radial plot: standardized effect against precision,
// with the fixed-effect summary as the slope of the line through the origin.
// Studies more than two standardized residuals off the line are flagged.
func Galbraith(effects []meta.StudyEffect) *meta.GalbraithData {
	summary, _ := engine.FixedSummary(effects)

	points := make([]meta.GalbraithPoint, len(effects))
	for i, e := range effects {
		resid := (e.YI - summary) / e.SEI
		points[i] = meta.GalbraithPoint{
			StudyName: e.StudyName,
			X:         1 / e.SEI,
			Y:         e.YI / e.SEI,
			Residual:  resid,
			Outlier:   math.Abs(resid) > outlierBand,
		}
	}

	return &meta.GalbraithData{Points: points, Slope: summary}
}

// Baujat builds the Baujat diagnostic plot: each study's contribution to the
// heterogeneity statistic Q against its influence on the pooled fixed-effect
// estimate. Studies above both cutoff means are flagged as influential.
func Baujat(effects []meta.StudyEffect) *meta.BaujatData {
	summary, _ := engine.FixedSummary(effects)

	qc := make([]float64, len(effects))
	infl := make([]float64, len(effects))
	for i, e := range effects {
		diff := e.YI - summary
		qc[i] = diff * diff / e.VI

		loo := make([]meta.StudyEffect, 0, len(effects)-1)
		loo = append(loo, effects[:i]...)
		loo = append(loo, effects[i+1:]...)
		looSummary, looSE := engine.FixedSummary(loo)
		shift := looSummary - summary
		infl[i] = shift * shift / (looSE * looSE)
	}

	meanQ, _ := mstats.Mean(qc)
	meanInfl, _ := mstats.Mean(infl)

	points := make([]meta.BaujatPoint, len(effects))
	for i, e := range effects {
		points[i] = meta.BaujatPoint{
			StudyName:     e.StudyName,
			QContribution: qc[i],
			Influence:     infl[i],
			Influential:   qc[i] > meanQ && infl[i] > meanInfl,
		}
	}

	return &meta.BaujatData{Points: points, MeanQ: meanQ, MeanInfluence: meanInfl}
}

// Labbe builds the L'Abbe plot of control against treatment event rates.
// Only binary-outcome studies can be plotted.
func Labbe(studies []meta.Study) (*meta.LabbeData, error) {
	points := make([]meta.LabbePoint, len(studies))
	for i, s := range studies {
		if s.Binary == nil {
			return nil, fmt.Errorf("%w: study %q has no event counts", core.ErrNotBinaryOutcome, s.Name)
		}
		b := s.Binary
		treatment := b.Events1 / b.Total1
		control := b.Events2 / b.Total2
		points[i] = meta.LabbePoint{
			StudyName:     s.Name,
			ControlRate:   control,
			TreatmentRate: treatment,
			Above:         treatment > control,
			Size:          b.Total1 + b.Total2,
		}
	}
	return &meta.LabbeData{Points: points}, nil
}
