package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"metareview/adapters/stats/bias"
	"metareview/adapters/stats/clinical"
	"metareview/adapters/stats/effects"
	"metareview/adapters/stats/engine"
	"metareview/domain/core"
	"metareview/domain/meta"
	"metareview/internal"
)

// AnalysisRequest is one complete ask: a dataset, a measure, a model and
// optional extras (a regression covariate, a baseline risk override).
type AnalysisRequest struct {
	Studies       []meta.Study `json:"studies"`
	Measure       meta.Measure `json:"measure"`
	Model         meta.Model   `json:"model"`
	CovariateName string       `json:"covariate_name,omitempty"`
	Covariate     []float64    `json:"covariate,omitempty"`
	BaselineRisk  *float64     `json:"baseline_risk,omitempty"`
}

// PlotBundle groups the diagnostic plot datasets built for a report.
// Labbe is nil for non-binary outcomes.
type PlotBundle struct {
	Funnel        *meta.FunnelPlotData    `json:"funnel,omitempty"`
	ContourFunnel *meta.ContourFunnelData `json:"contour_funnel,omitempty"`
	Galbraith     *meta.GalbraithData     `json:"galbraith,omitempty"`
	Baujat        *meta.BaujatData        `json:"baujat,omitempty"`
	Labbe         *meta.LabbeData         `json:"labbe,omitempty"`
}

// AnalysisReport is the full output for one request: the pooled result plus
// every derived analysis that the dataset supports. Derived sections that
// need more studies than the dataset has are nil, not errors.
type AnalysisReport struct {
	ID          core.AnalysisID              `json:"id"`
	CreatedAt   core.Timestamp               `json:"created_at"`
	InputHash   core.Hash                    `json:"input_hash"`
	Result      *meta.MetaAnalysisResult     `json:"result"`
	Subgroups   *meta.SubgroupAnalysisResult `json:"subgroups,omitempty"`
	Sensitivity *meta.SensitivityResult      `json:"sensitivity,omitempty"`
	Regression  *meta.MetaRegressionResult   `json:"regression,omitempty"`
	Eggers      *meta.EggersTest             `json:"eggers,omitempty"`
	Begg        *meta.BeggsTest              `json:"begg,omitempty"`
	TrimAndFill *meta.TrimAndFillResult      `json:"trim_and_fill,omitempty"`
	NNT         *meta.NNTResult              `json:"nnt,omitempty"`
	Plots       PlotBundle                   `json:"plots"`
}

// AnalysisService orchestrates the statistical pipeline: validation, effect
// computation, pooling, then the derived diagnostics fanned out concurrently.
type AnalysisService struct {
	logger *internal.Logger
}

func NewAnalysisService(logger *internal.Logger) *AnalysisService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &AnalysisService{logger: logger}
}

// Run executes the full pipeline for one request.
func (s *AnalysisService) Run(ctx context.Context, req AnalysisRequest) (*AnalysisReport, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	eff, err := effects.ComputeAll(req.Studies, req.Measure)
	if err != nil {
		return nil, fmt.Errorf("computing study effects: %w", err)
	}

	result := engine.Pool(eff, req.Measure, req.Model)
	hash, err := core.HashOf(req)
	if err != nil {
		return nil, fmt.Errorf("fingerprinting request: %w", err)
	}

	report := &AnalysisReport{
		ID:        core.NewAnalysisID(),
		CreatedAt: core.Now(),
		InputHash: hash,
		Result:    result,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.runSubgroups(ctx, req, report) })
	g.Go(func() error { return s.runSensitivity(ctx, req, report) })
	g.Go(func() error { return s.runRegression(req, result, report) })
	g.Go(func() error { return s.runBiasDiagnostics(req, result, report) })
	g.Go(func() error { return s.runClinical(req, result, report) })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Info("[Analysis] %s pooled k=%d measure=%s model=%s effect=%.4f",
		report.ID, len(req.Studies), req.Measure, req.Model, result.Effect)
	return report, nil
}

func (s *AnalysisService) validate(req AnalysisRequest) error {
	if len(req.Studies) == 0 {
		return core.ErrEmptyDataset
	}
	if len(req.Studies) < 2 {
		return fmt.Errorf("%w: got %d", core.ErrTooFewStudies, len(req.Studies))
	}
	if !req.Measure.Valid() {
		return fmt.Errorf("%w: %q", core.ErrUnknownMeasure, req.Measure)
	}
	if !req.Model.Valid() {
		return fmt.Errorf("%w: %q", core.ErrUnknownModel, req.Model)
	}
	if len(req.Covariate) > 0 && len(req.Covariate) != len(req.Studies) {
		return fmt.Errorf("%w: %d values for %d studies", core.ErrMissingCovariate, len(req.Covariate), len(req.Studies))
	}
	for _, st := range req.Studies {
		if err := validateStudy(st); err != nil {
			return err
		}
	}
	return nil
}

func validateStudy(st meta.Study) error {
	switch {
	case st.Binary != nil:
		b := st.Binary
		if b.Total1 <= 0 || b.Total2 <= 0 {
			return core.NewValidationError(st.Name, "arm totals must be positive")
		}
		if b.Events1 < 0 || b.Events2 < 0 || b.Events1 > b.Total1 || b.Events2 > b.Total2 {
			return core.NewValidationError(st.Name, "event counts must lie within arm totals")
		}
	case st.Continuous != nil:
		c := st.Continuous
		if c.N1 < 2 || c.N2 < 2 {
			return core.NewValidationError(st.Name, "each arm needs at least two participants")
		}
		if c.SD1 <= 0 || c.SD2 <= 0 {
			return core.NewValidationError(st.Name, "standard deviations must be positive")
		}
	case st.Hazard != nil:
		h := st.Hazard
		if h.HR <= 0 || h.CILower <= 0 || h.CIUpper <= 0 {
			return core.NewValidationError(st.Name, "hazard ratio and bounds must be positive")
		}
		if h.CILower >= h.CIUpper {
			return core.NewValidationError(st.Name, "confidence bounds are inverted")
		}
	default:
		return core.NewValidationError(st.Name, "no outcome data")
	}
	return nil
}

func (s *AnalysisService) runSubgroups(_ context.Context, req AnalysisRequest, report *AnalysisReport) error {
	labels := map[string]struct{}{}
	for _, st := range req.Studies {
		if st.Subgroup != "" {
			labels[st.Subgroup] = struct{}{}
		}
	}
	if len(labels) < 2 {
		return nil
	}
	sub, err := engine.Subgroup(req.Studies, req.Measure, req.Model)
	if err != nil {
		return fmt.Errorf("subgroup analysis: %w", err)
	}
	report.Subgroups = sub
	return nil
}

func (s *AnalysisService) runSensitivity(_ context.Context, req AnalysisRequest, report *AnalysisReport) error {
	if len(req.Studies) < 3 {
		return nil
	}
	sens, err := engine.LeaveOneOut(req.Studies, req.Measure, req.Model)
	if err != nil {
		return fmt.Errorf("sensitivity analysis: %w", err)
	}
	report.Sensitivity = sens
	return nil
}

func (s *AnalysisService) runRegression(req AnalysisRequest, result *meta.MetaAnalysisResult, report *AnalysisReport) error {
	if len(req.Covariate) == 0 {
		return nil
	}
	reg, err := engine.MetaRegression(result.Studies, req.Covariate, req.CovariateName, result.Heterogeneity.Tau2)
	if errors.Is(err, core.ErrTooFewForRegression) {
		s.logger.Warn("[Analysis] meta-regression skipped: %v", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("meta-regression: %w", err)
	}
	report.Regression = reg
	return nil
}

// runBiasDiagnostics attaches the small-study tests and the plot datasets.
// With fewer than three studies the tests are skipped, not failed.
func (s *AnalysisService) runBiasDiagnostics(req AnalysisRequest, result *meta.MetaAnalysisResult, report *AnalysisReport) error {
	eff := result.Studies

	report.Plots.Funnel = bias.Funnel(eff)
	report.Plots.ContourFunnel = bias.ContourFunnel(eff)
	report.Plots.Galbraith = bias.Galbraith(eff)
	report.Plots.Baujat = bias.Baujat(eff)

	if req.Measure == meta.MeasureOR || req.Measure == meta.MeasureRR {
		labbe, err := bias.Labbe(req.Studies)
		if err != nil {
			return fmt.Errorf("labbe plot: %w", err)
		}
		report.Plots.Labbe = labbe
	}

	if len(eff) < 3 {
		s.logger.Warn("[Analysis] bias tests skipped: k=%d", len(eff))
		return nil
	}

	eggers, err := bias.Eggers(eff)
	if err != nil {
		return fmt.Errorf("eggers test: %w", err)
	}
	report.Eggers = eggers

	begg, err := bias.Begg(eff)
	if err != nil {
		return fmt.Errorf("begg test: %w", err)
	}
	report.Begg = begg

	tf, err := bias.TrimAndFill(eff, req.Measure, req.Model)
	if err != nil {
		return fmt.Errorf("trim-and-fill: %w", err)
	}
	report.TrimAndFill = tf
	return nil
}

func (s *AnalysisService) runClinical(req AnalysisRequest, result *meta.MetaAnalysisResult, report *AnalysisReport) error {
	if req.Measure != meta.MeasureOR && req.Measure != meta.MeasureRR {
		return nil
	}
	cer := 0.0
	if req.BaselineRisk != nil {
		cer = *req.BaselineRisk
	} else {
		derived, err := clinical.ControlEventRate(req.Studies)
		if err != nil {
			return fmt.Errorf("control event rate: %w", err)
		}
		cer = derived
	}
	nnt, err := clinical.NumberNeededToTreat(result, cer)
	if err != nil {
		return fmt.Errorf("number needed to treat: %w", err)
	}
	report.NNT = nnt
	return nil
}
