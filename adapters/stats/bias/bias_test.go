package bias

import (
	"errors"
	"math"
	"sort"
	"testing"

	"metareview/adapters/stats/effects"
	"metareview/domain/core"
	"metareview/domain/meta"
	"metareview/internal/testkit"
)

func approx(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > tol {
		t.Fatalf("%s: got %.12g, want %.12g", name, got, want)
	}
}

func aspirinEffects(t *testing.T) []meta.StudyEffect {
	t.Helper()
	eff, err := effects.ComputeAll(testkit.AspirinStudies(), meta.MeasureOR)
	if err != nil {
		t.Fatalf("ComputeAll: %v", err)
	}
	return eff
}

// Reference values from a scipy/statsmodels implementation of Egger's
// regression on the aspirin dataset.
func TestEggersAspirin(t *testing.T) {
	res, err := Eggers(aspirinEffects(t))
	if err != nil {
		t.Fatalf("Eggers: %v", err)
	}

	approx(t, "intercept", res.Intercept, 0.22256712160238878, 1e-9)
	approx(t, "slope", res.Slope, -0.2860803617422128, 1e-9)
	approx(t, "se", res.SE, 0.6379007182478682, 1e-9)
	approx(t, "t", res.TValue, 0.34890558238234526, 1e-9)
	approx(t, "p", res.PValue, 0.7413724711219194, 1e-9)
	if res.DF != 5 {
		t.Fatalf("df: got %d, want 5", res.DF)
	}
}

func TestEggersTooFewStudies(t *testing.T) {
	eff, err := effects.ComputeAll(testkit.TwoStudies(), meta.MeasureOR)
	if err != nil {
		t.Fatalf("ComputeAll: %v", err)
	}
	if _, err := Eggers(eff); !errors.Is(err, core.ErrTooFewForEggers) {
		t.Fatalf("expected ErrTooFewForEggers, got %v", err)
	}
}

func TestBeggAspirin(t *testing.T) {
	res, err := Begg(aspirinEffects(t))
	if err != nil {
		t.Fatalf("Begg: %v", err)
	}

	approx(t, "tau", res.Tau, 0.047619047619047616, 1e-12)
	approx(t, "z", res.Z, 0.15018785229652767, 1e-9)
	approx(t, "p", res.PValue, 0.8806164096519662, 1e-9)
}

// The aspirin funnel is symmetric: no studies should be imputed and the
// adjusted estimate must equal the original.
func TestTrimAndFillSymmetric(t *testing.T) {
	res, err := TrimAndFill(aspirinEffects(t), meta.MeasureOR, meta.ModelRandom)
	if err != nil {
		t.Fatalf("TrimAndFill: %v", err)
	}

	if res.K0 != 0 {
		t.Fatalf("k0: got %d, want 0", res.K0)
	}
	if len(res.Imputed) != 0 {
		t.Fatalf("imputed: got %d studies, want none", len(res.Imputed))
	}
	approx(t, "effect", res.Effect, 0.7650126208095385, 1e-9)
	approx(t, "original", res.Original, res.Effect, 0)
	approx(t, "ci_lower", res.CILower, 0.7153070720006681, 1e-9)
	approx(t, "ci_upper", res.CIUpper, 0.8181721290144494, 1e-9)
}

// asymmetricEffects builds a log-OR funnel missing its right tail: small
// imprecise studies report only strong benefit.
func asymmetricEffects() []meta.StudyEffect {
	yis := []float64{-0.8, -0.6, -0.5, -0.45, -0.4, -0.35, -0.3, -0.28, -0.25, -0.1}
	seis := []float64{0.40, 0.35, 0.30, 0.28, 0.25, 0.22, 0.18, 0.15, 0.12, 0.05}

	eff := make([]meta.StudyEffect, len(yis))
	for i := range yis {
		eff[i] = meta.StudyEffect{
			StudyID:   core.NewStudyID(),
			StudyName: "Trial_" + string(rune('A'+i)),
			YI:        yis[i],
			SEI:       seis[i],
			VI:        seis[i] * seis[i],
			Effect:    math.Exp(yis[i]),
		}
	}
	return eff
}

func TestTrimAndFillAsymmetric(t *testing.T) {
	res, err := TrimAndFill(asymmetricEffects(), meta.MeasureOR, meta.ModelRandom)
	if err != nil {
		t.Fatalf("TrimAndFill: %v", err)
	}

	if res.Side != "right" {
		t.Fatalf("side: got %q, want right", res.Side)
	}
	if res.K0 != 6 {
		t.Fatalf("k0: got %d, want 6", res.K0)
	}
	if len(res.Imputed) != 6 {
		t.Fatalf("imputed: got %d studies, want 6", len(res.Imputed))
	}

	// Adjustment pulls the pooled OR toward the null.
	approx(t, "original", res.Original, 0.7797663229144857, 1e-9)
	approx(t, "effect", res.Effect, 0.8399829740600119, 1e-9)
	approx(t, "ci_lower", res.CILower, 0.7468146886017033, 1e-9)
	approx(t, "ci_upper", res.CIUpper, 0.9447743964861984, 1e-9)

	wantImputed := []float64{
		0.05972237960339938, 0.10972237960339942, 0.1597223796033994,
		0.2097223796033994, 0.3097223796033994, 0.5097223796033994,
	}
	got := make([]float64, len(res.Imputed))
	for i, imp := range res.Imputed {
		got[i] = imp.YI
	}
	sort.Float64s(got)
	for i, want := range wantImputed {
		approx(t, "imputed yi", got[i], want, 1e-9)
	}
}
