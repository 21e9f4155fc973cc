package meta

// Plot-data value objects. These are pure coordinate sets plus
// classification flags; rendering is owned by downstream consumers.

// FunnelPoint is one study positioned in the funnel plot (log/raw-scale
// effect against its standard error).
type FunnelPoint struct {
	StudyName string  `json:"study_name"`
	YI        float64 `json:"yi"`
	SEI       float64 `json:"sei"`
	Effect    float64 `json:"effect"` // original scale, for hover labels
}

// FunnelGuide is one rung of the pseudo-confidence funnel around the
// pooled effect.
type FunnelGuide struct {
	SE    float64 `json:"se"`
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// FunnelPlotData is the standard funnel plot.
type FunnelPlotData struct {
	Points  []FunnelPoint `json:"points"`
	Summary float64       `json:"summary"` // pooled YI, the funnel's center line
	MaxSE   float64       `json:"max_se"`
	Guides  []FunnelGuide `json:"guides"`
}

// ContourBucket classifies a study by the two-sided significance of its
// own z = yi/sei.
type ContourBucket string

const (
	ContourNS ContourBucket = "ns"     // |z| < 1.645
	Contour90 ContourBucket = "p<0.10" // 1.645 <= |z| < 1.96
	Contour95 ContourBucket = "p<0.05" // 1.96 <= |z| < 2.576
	Contour99 ContourBucket = "p<0.01" // |z| >= 2.576
)

// ContourFunnelPoint is a funnel point with its significance bucket.
type ContourFunnelPoint struct {
	FunnelPoint
	Z      float64       `json:"z"`
	Bucket ContourBucket `json:"bucket"`
}

// ContourFunnelData is the contour-enhanced funnel plot.
type ContourFunnelData struct {
	Points     []ContourFunnelPoint `json:"points"`
	Summary    float64              `json:"summary"`
	MaxSE      float64              `json:"max_se"`
	Thresholds [3]float64           `json:"thresholds"` // 1.645, 1.96, 2.576
}

// GalbraithPoint plots precision against the standardized effect.
// Outlier marks studies beyond the +/-2 standardized-residual band.
type GalbraithPoint struct {
	StudyName string  `json:"study_name"`
	X         float64 `json:"x"` // 1/sei
	Y         float64 `json:"y"` // yi/sei
	Residual  float64 `json:"residual"`
	Outlier   bool    `json:"outlier"`
}

// GalbraithData is the radial (Galbraith) plot.
type GalbraithData struct {
	Points []GalbraithPoint `json:"points"`
	Slope  float64          `json:"slope"` // pooled fixed-effect YI: the regression line through the origin
}

// BaujatPoint positions one study by its contribution to heterogeneity
// and its influence on the pooled effect.
type BaujatPoint struct {
	StudyName     string  `json:"study_name"`
	QContribution float64 `json:"q_contribution"`
	Influence     float64 `json:"influence"`
	Influential   bool    `json:"influential"` // above both means
}

// BaujatData is the Baujat diagnostic plot.
type BaujatData struct {
	Points        []BaujatPoint `json:"points"`
	MeanQ         float64       `json:"mean_q"`
	MeanInfluence float64       `json:"mean_influence"`
}

// LabbePoint plots control against treatment event rates (binary only).
type LabbePoint struct {
	StudyName     string  `json:"study_name"`
	ControlRate   float64 `json:"control_rate"`
	TreatmentRate float64 `json:"treatment_rate"`
	Above         bool    `json:"above"` // treatment rate above the line of no effect
	Size          float64 `json:"size"`  // total sample size, for marker scaling
}

// LabbeData is the L'Abbe plot.
type LabbeData struct {
	Points []LabbePoint `json:"points"`
}
