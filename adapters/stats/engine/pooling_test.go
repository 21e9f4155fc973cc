package engine

import (
	"math"
	"testing"

	"metareview/adapters/stats/effects"
	"metareview/domain/meta"
	"metareview/internal/testkit"
)

func approx(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > tol {
		t.Fatalf("%s: got %.12g, want %.12g", name, got, want)
	}
}

func weightsSumTo100(t *testing.T, res *meta.MetaAnalysisResult) {
	t.Helper()
	sumFixed, sumRandom := 0.0, 0.0
	for _, e := range res.Studies {
		sumFixed += e.WeightFixed
		sumRandom += e.WeightRandom
	}
	if math.Abs(sumFixed-100) > 1e-9 {
		t.Fatalf("fixed weights sum to %.12f, want 100", sumFixed)
	}
	if math.Abs(sumRandom-100) > 1e-9 {
		t.Fatalf("random weights sum to %.12f, want 100", sumRandom)
	}
}

// Gold-standard: 7-study aspirin OR dataset, random effects. Reference
// values from the scipy harness.
func TestAspirinOddsRatioRandomEffects(t *testing.T) {
	res, err := Analyze(testkit.AspirinStudies(), meta.MeasureOR, meta.ModelRandom)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	approx(t, "pooled OR", res.Effect, 0.7650126208095385, 1e-6)
	approx(t, "ci lower", res.CILower, 0.7153070720006681, 1e-6)
	approx(t, "ci upper", res.CIUpper, 0.8181721290144494, 1e-6)
	approx(t, "z", res.Z, -7.81494753918187, 1e-6)

	het := res.Heterogeneity
	approx(t, "Q", het.Q, 2.7037934553274097, 1e-6)
	if het.DF != 6 {
		t.Fatalf("df = %d, want 6", het.DF)
	}
	approx(t, "Q p-value", het.PValue, 0.8449990265933287, 1e-6)
	approx(t, "I2", het.I2, 0, 1e-12)
	approx(t, "tau2", het.Tau2, 0, 1e-12)
	approx(t, "H2", het.H2, 0.4506322425545683, 1e-9)

	// Spot-check the heaviest and lightest study weights.
	approx(t, "ISIS-2 weight", res.Studies[0].WeightFixed, 47.06088415896168, 1e-6)
	approx(t, "PPP weight", res.Studies[6].WeightFixed, 1.430091437902277, 1e-6)
	weightsSumTo100(t, res)

	if res.PValue >= 0.05 {
		t.Fatalf("p = %g, expected significance", res.PValue)
	}
	if res.Effect < 0.70 || res.Effect > 0.90 {
		t.Fatalf("pooled OR %g outside [0.70, 0.90]", res.Effect)
	}
	if het.I2 >= 25 {
		t.Fatalf("I2 = %g, expected < 25", het.I2)
	}
}

// Gold-standard: 13-study Zheng 2019 HR dataset, random effects.
func TestZhengHazardRatioRandomEffects(t *testing.T) {
	res, err := Analyze(testkit.ZhengHRStudies(), meta.MeasureHR, meta.ModelRandom)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	approx(t, "pooled HR", res.Effect, 0.9162490952894018, 1e-6)
	approx(t, "ci lower", res.CILower, 0.8763307157176644, 1e-6)
	approx(t, "ci upper", res.CIUpper, 0.9579858260829474, 1e-6)
	approx(t, "Q", res.Heterogeneity.Q, 7.612095991772662, 1e-6)
	approx(t, "p", res.PValue, 0.00011878882650107059, 1e-9)
	weightsSumTo100(t, res)

	if res.Effect < 0.87 || res.Effect > 0.92 {
		t.Fatalf("pooled HR %g outside [0.87, 0.92]", res.Effect)
	}
}

func TestBloodPressureMeanDifference(t *testing.T) {
	res, err := Analyze(testkit.BloodPressureStudies(), meta.MeasureMD, meta.ModelRandom)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	approx(t, "pooled MD", res.Effect, -7.170930379893113, 1e-6)
	approx(t, "se", res.SE, 0.6360163215855754, 1e-6)
	het := res.Heterogeneity
	approx(t, "Q", het.Q, 10.789806025572714, 1e-6)
	approx(t, "I2", het.I2, 53.65996396830865, 1e-6)
	approx(t, "tau2", het.Tau2, 1.257360474421408, 1e-6)
	approx(t, "tau", het.Tau, 1.1213208614938937, 1e-6)
	weightsSumTo100(t, res)

	// Prediction interval: random model, k=6, t_{4,0.975}.
	if res.PredictionInterval == nil {
		t.Fatal("expected prediction interval for k=6 random model")
	}
	approx(t, "PI lower", res.PredictionInterval.Lower, -10.75015175741328, 1e-6)
	approx(t, "PI upper", res.PredictionInterval.Upper, -3.591709002372946, 1e-6)
}

func TestBloodPressureHedgesG(t *testing.T) {
	res, err := Analyze(testkit.BloodPressureStudies(), meta.MeasureSMD, meta.ModelRandom)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	approx(t, "pooled g", res.Effect, -1.385270926256601, 1e-6)
	approx(t, "I2", res.Heterogeneity.I2, 69.24331883564228, 1e-6)
	approx(t, "tau2", res.Heterogeneity.Tau2, 0.12027917937759446, 1e-9)
}

func TestZeroCellPoolingStaysFinite(t *testing.T) {
	res, err := Analyze(testkit.ZeroCellStudies(), meta.MeasureOR, meta.ModelRandom)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	for _, e := range res.Studies {
		if math.IsInf(e.YI, 0) || math.IsNaN(e.YI) || math.IsInf(e.SEI, 0) {
			t.Fatalf("study %s: non-finite effect after correction", e.StudyName)
		}
	}
	approx(t, "pooled OR", res.Effect, 0.4694648496077134, 1e-6)
	approx(t, "tau2", res.Heterogeneity.Tau2, 3.0930185712159006, 1e-6)
	weightsSumTo100(t, res)
}

// The zero-cell set under RR: the continuity correction keeps the risk
// ratios finite too, with its own heterogeneity profile.
func TestZeroCellRiskRatio(t *testing.T) {
	res, err := Analyze(testkit.ZeroCellStudies(), meta.MeasureRR, meta.ModelRandom)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	approx(t, "ZC_1 yi", res.Studies[0].YI, -2.306923494592644, 1e-9)
	approx(t, "ZC_1 sei", res.Studies[0].SEI, 1.445932527239625, 1e-9)
	approx(t, "pooled RR", res.Effect, 0.5232868555154309, 1e-6)
	approx(t, "ci_lower", res.CILower, 0.08768267119114966, 1e-6)
	approx(t, "ci_upper", res.CIUpper, 3.1229561033590714, 1e-6)
	approx(t, "Q", res.Heterogeneity.Q, 8.666718673037192, 1e-6)
	approx(t, "I2", res.Heterogeneity.I2, 65.38482310112103, 1e-6)
	approx(t, "tau2", res.Heterogeneity.Tau2, 2.0876235050127234, 1e-6)
	weightsSumTo100(t, res)
}

func TestHighHeterogeneity(t *testing.T) {
	res, err := Analyze(testkit.HighHeterogeneityStudies(), meta.MeasureOR, meta.ModelRandom)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	het := res.Heterogeneity
	approx(t, "Q", het.Q, 19.990591238489586, 1e-6)
	approx(t, "I2", het.I2, 79.99058681016668, 1e-6)
	approx(t, "tau2", het.Tau2, 0.6693832722745643, 1e-6)
	if het.Tau2 <= 0 {
		t.Fatal("expected tau2 > 0 for divergent effects")
	}
}

// k=1: the degenerate heterogeneity block, and the pooled effect equals
// the sole study's effect exactly.
func TestSingleStudyConventions(t *testing.T) {
	res, err := Analyze(testkit.SingleStudy(), meta.MeasureOR, meta.ModelRandom)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	het := res.Heterogeneity
	if het.Q != 0 || het.DF != 0 || het.PValue != 1 || het.I2 != 0 || het.Tau2 != 0 || het.H2 != 1 {
		t.Fatalf("degenerate heterogeneity block wrong: %+v", het)
	}
	if res.SummaryYI != res.Studies[0].YI {
		t.Fatalf("pooled %.17g != single study %.17g", res.SummaryYI, res.Studies[0].YI)
	}
	approx(t, "yi", res.SummaryYI, -0.4795730802618862, 1e-9)
	if res.PredictionInterval != nil {
		t.Fatal("no prediction interval below k=3")
	}
}

// k=2: df=1, weights sum to 100, tau2 via the DL clamp stays >= 0.
func TestTwoStudies(t *testing.T) {
	res, err := Analyze(testkit.TwoStudies(), meta.MeasureOR, meta.ModelRandom)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Heterogeneity.DF != 1 {
		t.Fatalf("df = %d, want 1", res.Heterogeneity.DF)
	}
	if res.Heterogeneity.Tau2 < 0 {
		t.Fatalf("tau2 = %g < 0", res.Heterogeneity.Tau2)
	}
	approx(t, "pooled OR", res.Effect, 0.5175344568152261, 1e-6)
	approx(t, "Duo_A weight", res.Studies[0].WeightFixed, 61.43671341593885, 1e-6)
	weightsSumTo100(t, res)
	if res.PredictionInterval != nil {
		t.Fatal("no prediction interval below k=3")
	}
}

// tau2=0 forces random effects to coincide with fixed effects bit-for-bit.
func TestRandomEqualsFixedWhenTauZero(t *testing.T) {
	studies := testkit.AspirinStudies()
	fixed, err := Analyze(studies, meta.MeasureOR, meta.ModelFixed)
	if err != nil {
		t.Fatalf("Analyze fixed: %v", err)
	}
	random, err := Analyze(studies, meta.MeasureOR, meta.ModelRandom)
	if err != nil {
		t.Fatalf("Analyze random: %v", err)
	}
	if random.Heterogeneity.Tau2 != 0 {
		t.Fatalf("fixture drifted: tau2 = %g", random.Heterogeneity.Tau2)
	}
	if random.SummaryYI != fixed.SummaryYI || random.SE != fixed.SE {
		t.Fatalf("random (%.17g, %.17g) != fixed (%.17g, %.17g)",
			random.SummaryYI, random.SE, fixed.SummaryYI, fixed.SE)
	}
	for i := range random.Studies {
		if random.Studies[i].WeightRandom != fixed.Studies[i].WeightFixed {
			t.Fatalf("study %d: random weight %.17g != fixed weight %.17g",
				i, random.Studies[i].WeightRandom, fixed.Studies[i].WeightFixed)
		}
	}
}

func TestPoolDoesNotMutateInput(t *testing.T) {
	eff, err := effects.ComputeAll(testkit.TwoStudies(), meta.MeasureOR)
	if err != nil {
		t.Fatalf("ComputeAll: %v", err)
	}
	before := eff[0]
	Pool(eff, meta.MeasureOR, meta.ModelRandom)
	if eff[0] != before {
		t.Fatal("Pool mutated its input slice")
	}
}
