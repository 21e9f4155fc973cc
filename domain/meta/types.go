package meta

import (
	"metareview/domain/core"
)

// Measure identifies the effect measure pooled across studies.
type Measure string

const (
	MeasureOR  Measure = "OR"  // Odds Ratio (binary)
	MeasureRR  Measure = "RR"  // Risk Ratio (binary)
	MeasureMD  Measure = "MD"  // Mean Difference (continuous)
	MeasureSMD Measure = "SMD" // Standardized Mean Difference, Hedges' g (continuous)
	MeasureHR  Measure = "HR"  // Hazard Ratio (pre-aggregated)
)

// IsLogScale reports whether the measure is pooled on the log scale.
// Back-transformation to the original scale uses exp() exactly when this
// is true, identity otherwise.
func (m Measure) IsLogScale() bool {
	switch m {
	case MeasureOR, MeasureRR, MeasureHR:
		return true
	}
	return false
}

// NullValue returns the no-effect value on the original scale:
// 1 for ratio measures, 0 for difference measures.
func (m Measure) NullValue() float64 {
	if m.IsLogScale() {
		return 1
	}
	return 0
}

// Valid reports whether m is a supported measure.
func (m Measure) Valid() bool {
	switch m {
	case MeasureOR, MeasureRR, MeasureMD, MeasureSMD, MeasureHR:
		return true
	}
	return false
}

// Model identifies the pooling model.
type Model string

const (
	ModelFixed  Model = "fixed"  // inverse-variance fixed effects
	ModelRandom Model = "random" // DerSimonian-Laird random effects
)

// Valid reports whether mo is a supported model.
func (mo Model) Valid() bool {
	return mo == ModelFixed || mo == ModelRandom
}

// BinaryData holds 2x2 table counts: group 1 is treatment, group 2 control.
// Counts are float64 because the 0.5 continuity correction produces half
// counts before any ratio is computed.
type BinaryData struct {
	Events1 float64 `json:"events1"`
	Total1  float64 `json:"total1"`
	Events2 float64 `json:"events2"`
	Total2  float64 `json:"total2"`
}

// ContinuousData holds per-arm summary statistics.
type ContinuousData struct {
	Mean1 float64 `json:"mean1"`
	SD1   float64 `json:"sd1"`
	N1    int     `json:"n1"`
	Mean2 float64 `json:"mean2"`
	SD2   float64 `json:"sd2"`
	N2    int     `json:"n2"`
}

// HazardRatioData holds a pre-aggregated hazard ratio with its reported 95% CI.
type HazardRatioData struct {
	HR      float64 `json:"hr"`
	CILower float64 `json:"ci_lower"`
	CIUpper float64 `json:"ci_upper"`
}

// DataKind tags the study data variant.
type DataKind string

const (
	DataBinary      DataKind = "binary"
	DataContinuous  DataKind = "continuous"
	DataHazardRatio DataKind = "hazard_ratio"
	DataNone        DataKind = "none"
)

// Study is one trial's raw input. Exactly one of Binary, Continuous, or
// Hazard is set; the engine never mutates a Study.
type Study struct {
	ID         core.StudyID     `json:"id"`
	Name       string           `json:"name"`
	Year       int              `json:"year,omitempty"`
	Subgroup   string           `json:"subgroup,omitempty"`
	Dose       float64          `json:"dose,omitempty"`
	Binary     *BinaryData      `json:"binary,omitempty"`
	Continuous *ContinuousData  `json:"continuous,omitempty"`
	Hazard     *HazardRatioData `json:"hazard,omitempty"`
}

// Kind returns the tag of the data variant carried by the study.
func (s Study) Kind() DataKind {
	switch {
	case s.Binary != nil:
		return DataBinary
	case s.Continuous != nil:
		return DataContinuous
	case s.Hazard != nil:
		return DataHazardRatio
	}
	return DataNone
}

// StudyEffect is one study's standardized effect estimate.
// INVARIANTS:
// - VI = SEI^2
// - Effect/CILower/CIUpper are back-transformed to the original scale
// - WeightFixed and WeightRandom are percentages; each column sums to 100
type StudyEffect struct {
	StudyID      core.StudyID `json:"study_id"`
	StudyName    string       `json:"study_name"`
	YI           float64      `json:"yi"`  // effect on log or raw scale
	SEI          float64      `json:"sei"` // standard error of YI
	VI           float64      `json:"vi"`  // variance of YI
	Effect       float64      `json:"effect"`
	CILower      float64      `json:"ci_lower"`
	CIUpper      float64      `json:"ci_upper"`
	WeightFixed  float64      `json:"weight_fixed"`
	WeightRandom float64      `json:"weight_random"`
}

// Heterogeneity quantifies cross-study variation in the true effect.
// Conventions at k=1: Q=0, DF=0, PValue=1, I2=0, Tau2=0, H2=1.
type Heterogeneity struct {
	Q      float64 `json:"q"`
	DF     int     `json:"df"`
	PValue float64 `json:"p_value"`
	I2     float64 `json:"i2"`   // percent, clamped to [0,100]
	Tau2   float64 `json:"tau2"` // DerSimonian-Laird, clamped at 0
	Tau    float64 `json:"tau"`
	H2     float64 `json:"h2"`
}

// PredictionInterval is the 95% interval for the effect in a new study
// (random-effects model, k >= 3 only), on the original scale.
type PredictionInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// MetaAnalysisResult is the pooled outcome of one analysis run.
type MetaAnalysisResult struct {
	Measure            Measure             `json:"measure"`
	Model              Model               `json:"model"`
	SummaryYI          float64             `json:"summary_yi"` // pooled effect on log or raw scale
	SE                 float64             `json:"se"`
	Effect             float64             `json:"effect"` // back-transformed
	CILower            float64             `json:"ci_lower"`
	CIUpper            float64             `json:"ci_upper"`
	Z                  float64             `json:"z"`
	PValue             float64             `json:"p_value"`
	Studies            []StudyEffect       `json:"studies"`
	Heterogeneity      Heterogeneity       `json:"heterogeneity"`
	PredictionInterval *PredictionInterval `json:"prediction_interval,omitempty"`
}

// ContainsNull reports whether the pooled CI crosses the measure's no-effect
// value on the original scale.
func (r *MetaAnalysisResult) ContainsNull() bool {
	null := r.Measure.NullValue()
	return r.CILower <= null && null <= r.CIUpper
}

// EggersTest is the regression test for funnel-plot asymmetry.
// Undefined for k < 3.
type EggersTest struct {
	Intercept float64 `json:"intercept"`
	Slope     float64 `json:"slope"`
	SE        float64 `json:"se"`
	TValue    float64 `json:"t_value"`
	PValue    float64 `json:"p_value"`
	DF        int     `json:"df"`
}

// BeggsTest is the rank-correlation test for funnel-plot asymmetry.
type BeggsTest struct {
	Tau    float64 `json:"tau"`
	Z      float64 `json:"z"`
	PValue float64 `json:"p_value"`
}

// TrimAndFillResult reports the Duval-Tweedie adjusted estimate.
// K0 = 0 is a valid, common result meaning no studies were imputed.
type TrimAndFillResult struct {
	K0       int           `json:"k0"`
	Side     string        `json:"side"` // "left" or "right": side where studies were imputed
	Effect   float64       `json:"effect"`
	CILower  float64       `json:"ci_lower"`
	CIUpper  float64       `json:"ci_upper"`
	Imputed  []StudyEffect `json:"imputed,omitempty"`
	Original float64       `json:"original"` // unadjusted pooled effect for comparison
}

// SubgroupResult is one subgroup's independent pooled analysis.
type SubgroupResult struct {
	Label  string             `json:"label"`
	Result MetaAnalysisResult `json:"result"`
}

// SubgroupAnalysisResult partitions the studies by label and tests for a
// between-subgroup difference.
type SubgroupAnalysisResult struct {
	Groups   []SubgroupResult `json:"groups"`
	QBetween float64          `json:"q_between"`
	DF       int              `json:"df"`
	PValue   float64          `json:"p_value"`
}

// SensitivityRow is one leave-one-out rerun.
type SensitivityRow struct {
	ExcludedID      core.StudyID `json:"excluded_id"`
	ExcludedName    string       `json:"excluded_name"`
	Effect          float64      `json:"effect"`
	CILower         float64      `json:"ci_lower"`
	CIUpper         float64      `json:"ci_upper"`
	DirectionFlip   bool         `json:"direction_flip"`   // pooled direction reverses vs full model
	SignificanceChg bool         `json:"significance_chg"` // CI-null-crossing status changes vs full model
}

// SensitivityResult is the full leave-one-out analysis.
type SensitivityResult struct {
	Rows []SensitivityRow `json:"rows"`
}

// MetaRegressionResult is a weighted least-squares fit of the per-study
// effect on a numeric covariate using random-effects weights.
type MetaRegressionResult struct {
	Covariate   string  `json:"covariate"`
	Coefficient float64 `json:"coefficient"`
	SE          float64 `json:"se"`
	Z           float64 `json:"z"`
	PValue      float64 `json:"p_value"`
	Intercept   float64 `json:"intercept"`
	QModel      float64 `json:"q_model"`
	QResidual   float64 `json:"q_residual"`
	RSquared    float64 `json:"r_squared"` // pseudo-R2, clamped to [0,1]
	K           int     `json:"k"`
}

// NNTResult translates a pooled binary effect into Number Needed to
// Treat (benefit) or Harm. A CI endpoint is +Inf when the pooled CI
// straddles the null; InfiniteBound flags that case for renderers.
type NNTResult struct {
	ControlEventRate float64 `json:"control_event_rate"`
	RiskDifference   float64 `json:"risk_difference"`
	NNT              float64 `json:"nnt"`
	CILower          float64 `json:"ci_lower"`
	CIUpper          float64 `json:"ci_upper"`
	Harm             bool    `json:"harm"`
	InfiniteBound    bool    `json:"infinite_bound"`
}
