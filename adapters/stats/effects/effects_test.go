package effects

import (
	"math"
	"testing"

	"metareview/domain/meta"
)

func binaryStudy(name string, e1, t1, e2, t2 float64) meta.Study {
	return meta.Study{
		Name:   name,
		Binary: &meta.BinaryData{Events1: e1, Total1: t1, Events2: e2, Total2: t2},
	}
}

func approx(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.IsNaN(got) || math.Abs(got-want) > tol {
		t.Fatalf("%s: got %.12g, want %.12g", name, got, want)
	}
}

// Reference values pinned against the scipy validation harness
// (tolerance: 1e-6 absolute).
func TestLogOddsRatioISIS2(t *testing.T) {
	eff, err := Compute(binaryStudy("ISIS-2", 791, 8587, 1029, 8600), meta.MeasureOR)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	approx(t, "yi", eff.YI, -0.29233039059054056, 1e-9)
	approx(t, "sei", eff.SEI, 0.049963923562485545, 1e-9)
	approx(t, "vi", eff.VI, eff.SEI*eff.SEI, 1e-15)
	approx(t, "effect", eff.Effect, math.Exp(eff.YI), 1e-12)
}

func TestLogRiskRatioFormula(t *testing.T) {
	eff, err := Compute(binaryStudy("SALT", 150, 676, 196, 684), meta.MeasureRR)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	p1 := 150.0 / 676.0
	p2 := 196.0 / 684.0
	approx(t, "yi", eff.YI, math.Log(p1/p2), 1e-12)
	approx(t, "sei", eff.SEI, math.Sqrt((1-p1)/150+(1-p2)/196), 1e-12)
}

func TestZeroCellCorrection(t *testing.T) {
	// events1=0 must yield finite, non-zero yi/sei after the 0.5 correction.
	eff, err := Compute(binaryStudy("ZC", 0, 50, 5, 50), meta.MeasureOR)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if math.IsInf(eff.YI, 0) || math.IsNaN(eff.YI) {
		t.Fatalf("yi not finite after correction: %g", eff.YI)
	}
	if math.IsInf(eff.SEI, 0) || math.IsNaN(eff.SEI) || eff.SEI == 0 {
		t.Fatalf("sei not finite and non-zero after correction: %g", eff.SEI)
	}
	approx(t, "yi", eff.YI, -2.50215628312278, 1e-9)
	approx(t, "sei", eff.SEI, 1.4911734251904516, 1e-9)
}

func TestZeroCellCorrectionAllEvents(t *testing.T) {
	// events2 == total2 also triggers the correction.
	eff, err := Compute(binaryStudy("full", 40, 50, 50, 50), meta.MeasureOR)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if math.IsInf(eff.YI, 0) || math.IsNaN(eff.YI) {
		t.Fatalf("yi not finite: %g", eff.YI)
	}
}

func TestNoCorrectionForCleanCells(t *testing.T) {
	b := meta.BinaryData{Events1: 10, Total1: 50, Events2: 20, Total2: 50}
	if got := correctZeroCells(b); got != b {
		t.Fatalf("clean table was corrected: %+v", got)
	}
}

func TestMeanDifference(t *testing.T) {
	s := meta.Study{
		Name:       "Trial_A",
		Continuous: &meta.ContinuousData{Mean1: -10.2, SD1: 5.1, N1: 50, Mean2: -3.1, SD2: 4.2, N2: 48},
	}
	eff, err := Compute(s, meta.MeasureMD)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	approx(t, "yi", eff.YI, -7.1, 1e-12)
	approx(t, "sei", eff.SEI, 0.942178327069775, 1e-9)
	// MD is raw scale: no exp() in the back-transform.
	approx(t, "effect", eff.Effect, eff.YI, 1e-15)
	approx(t, "ciLower", eff.CILower, eff.YI-1.96*eff.SEI, 1e-12)
}

func TestHedgesG(t *testing.T) {
	s := meta.Study{
		Name:       "Trial_A",
		Continuous: &meta.ContinuousData{Mean1: -10.2, SD1: 5.1, N1: 50, Mean2: -3.1, SD2: 4.2, N2: 48},
	}
	eff, err := Compute(s, meta.MeasureSMD)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	approx(t, "g", eff.YI, -1.5048745709216316, 1e-9)
	approx(t, "sei", eff.SEI, 0.22709068017129014, 1e-9)
}

func TestLogHazardRatio(t *testing.T) {
	s := meta.Study{
		Name:   "HOT",
		Hazard: &meta.HazardRatioData{HR: 0.85, CILower: 0.73, CIUpper: 0.99},
	}
	eff, err := Compute(s, meta.MeasureHR)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	approx(t, "yi", eff.YI, math.Log(0.85), 1e-12)
	approx(t, "sei", eff.SEI, (math.Log(0.99)-math.Log(0.73))/(2*1.96), 1e-12)
	approx(t, "effect", eff.Effect, 0.85, 1e-12)
}

func TestBackTransformRoundTrip(t *testing.T) {
	// exp(yi) reproduces the original-scale effect for log-scale measures,
	// identity for the rest.
	for _, m := range []meta.Measure{meta.MeasureOR, meta.MeasureRR, meta.MeasureHR} {
		if !m.IsLogScale() {
			t.Fatalf("%s should be log scale", m)
		}
		approx(t, string(m), BackTransform(0.5, m), math.Exp(0.5), 1e-15)
	}
	for _, m := range []meta.Measure{meta.MeasureMD, meta.MeasureSMD} {
		if m.IsLogScale() {
			t.Fatalf("%s should not be log scale", m)
		}
		approx(t, string(m), BackTransform(0.5, m), 0.5, 1e-15)
	}
}

func TestMeasureMismatch(t *testing.T) {
	s := meta.Study{Name: "wrong", Hazard: &meta.HazardRatioData{HR: 0.9, CILower: 0.8, CIUpper: 1.0}}
	if _, err := Compute(s, meta.MeasureOR); err == nil {
		t.Fatal("expected measure mismatch error")
	}
}
