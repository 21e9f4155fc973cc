package engine

import (
	"metareview/domain/core"
	"metareview/domain/meta"
)

// LeaveOneOut reruns the full effect-size -> pooling pipeline once per
// study with that study excluded, and flags reruns where the pooled
// direction reverses relative to the measure's null value or where the
// CI-null-crossing status changes relative to the full model. O(k^2).
func LeaveOneOut(studies []meta.Study, measure meta.Measure, model meta.Model) (*meta.SensitivityResult, error) {
	if len(studies) < 2 {
		return nil, core.ErrTooFewStudies
	}

	full, err := Analyze(studies, measure, model)
	if err != nil {
		return nil, err
	}
	null := measure.NullValue()
	fullAbove := full.Effect > null
	fullCrosses := full.ContainsNull()

	rows := make([]meta.SensitivityRow, 0, len(studies))
	rest := make([]meta.Study, 0, len(studies)-1)
	for i, excluded := range studies {
		rest = rest[:0]
		rest = append(rest, studies[:i]...)
		rest = append(rest, studies[i+1:]...)

		res, err := Analyze(rest, measure, model)
		if err != nil {
			return nil, err
		}

		rows = append(rows, meta.SensitivityRow{
			ExcludedID:      excluded.ID,
			ExcludedName:    excluded.Name,
			Effect:          res.Effect,
			CILower:         res.CILower,
			CIUpper:         res.CIUpper,
			DirectionFlip:   (res.Effect > null) != fullAbove,
			SignificanceChg: res.ContainsNull() != fullCrosses,
		})
	}

	return &meta.SensitivityResult{Rows: rows}, nil
}
