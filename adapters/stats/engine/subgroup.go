package engine

import (
	"metareview/domain/core"
	"metareview/domain/meta"
	"metareview/internal/analysis/dist"
)

// ungroupedLabel buckets studies with no subgroup label.
const ungroupedLabel = "ungrouped"

// Subgroup partitions studies by their subgroup label, pools each
// partition independently under the same measure and model, and tests
// for a between-subgroup difference:
//
//	Q_between = Q_total - sum(Q_within), df = groups - 1
//
// A single subgroup degenerates to Q_between=0, df=0, p=1.
func Subgroup(studies []meta.Study, measure meta.Measure, model meta.Model) (*meta.SubgroupAnalysisResult, error) {
	if len(studies) == 0 {
		return nil, core.ErrTooFewStudies
	}

	// Partition preserving first-encounter order.
	labels := make([]string, 0, 4)
	byLabel := make(map[string][]meta.Study)
	for _, s := range studies {
		label := s.Subgroup
		if label == "" {
			label = ungroupedLabel
		}
		if _, seen := byLabel[label]; !seen {
			labels = append(labels, label)
		}
		byLabel[label] = append(byLabel[label], s)
	}

	total, err := Analyze(studies, measure, model)
	if err != nil {
		return nil, err
	}

	groups := make([]meta.SubgroupResult, 0, len(labels))
	qWithin := 0.0
	for _, label := range labels {
		res, err := Analyze(byLabel[label], measure, model)
		if err != nil {
			return nil, err
		}
		qWithin += res.Heterogeneity.Q
		groups = append(groups, meta.SubgroupResult{Label: label, Result: *res})
	}

	df := len(labels) - 1
	qBetween := total.Heterogeneity.Q - qWithin
	if qBetween < 0 {
		qBetween = 0
	}
	pValue := 1.0
	if df > 0 {
		pValue = dist.ChiSquaredPValue(qBetween, float64(df))
	} else {
		qBetween = 0
	}

	return &meta.SubgroupAnalysisResult{
		Groups:   groups,
		QBetween: qBetween,
		DF:       df,
		PValue:   pValue,
	}, nil
}
