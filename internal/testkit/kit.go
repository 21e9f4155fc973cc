package testkit

import (
	"metareview/domain/core"
	"metareview/domain/meta"
)

// Fixture datasets shared by tests, the demo CLI, and the API examples.
// These are the same datasets the independent scipy harness validates
// against, so expected values in tests trace back to published trials.

func binary(name string, year int, subgroup string, e1, t1, e2, t2 float64) meta.Study {
	return meta.Study{
		ID:       core.NewStudyID(),
		Name:     name,
		Year:     year,
		Subgroup: subgroup,
		Binary:   &meta.BinaryData{Events1: e1, Total1: t1, Events2: e2, Total2: t2},
	}
}

func hazard(name string, hr, lo, hi float64) meta.Study {
	return meta.Study{
		ID:     core.NewStudyID(),
		Name:   name,
		Hazard: &meta.HazardRatioData{HR: hr, CILower: lo, CIUpper: hi},
	}
}

func continuous(name string, m1, s1 float64, n1 int, m2, s2 float64, n2 int) meta.Study {
	return meta.Study{
		ID:         core.NewStudyID(),
		Name:       name,
		Continuous: &meta.ContinuousData{Mean1: m1, SD1: s1, N1: n1, Mean2: m2, SD2: s2, N2: n2},
	}
}

// AspirinStudies is the 7-trial aspirin vs placebo vascular-events
// dataset (binary outcomes).
func AspirinStudies() []meta.Study {
	return []meta.Study{
		binary("ISIS-2", 1988, "secondary", 791, 8587, 1029, 8600),
		binary("SALT", 1991, "secondary", 150, 676, 196, 684),
		binary("UK-TIA", 1991, "secondary", 286, 1632, 168, 814),
		binary("ESPS-2", 1996, "secondary", 356, 1649, 441, 1649),
		binary("TPT", 1998, "primary", 142, 2545, 166, 2540),
		binary("HOT", 1998, "primary", 127, 9399, 151, 9391),
		binary("PPP", 2001, "primary", 20, 2226, 32, 2269),
	}
}

// AspirinYears returns the publication years aligned with AspirinStudies,
// for meta-regression.
func AspirinYears() []float64 {
	return []float64{1988, 1991, 1991, 1996, 1998, 1998, 2001}
}

// ZhengHRStudies is the 13-trial primary-prevention aspirin dataset with
// pre-aggregated hazard ratios (Zheng 2019).
func ZhengHRStudies() []meta.Study {
	return []meta.Study{
		hazard("BDT", 0.97, 0.79, 1.19),
		hazard("PHS", 0.96, 0.85, 1.08),
		hazard("TPT", 0.80, 0.56, 1.13),
		hazard("HOT", 0.85, 0.73, 0.99),
		hazard("PPP", 0.71, 0.48, 1.04),
		hazard("WHS", 0.90, 0.81, 1.00),
		hazard("POPADAD", 0.98, 0.76, 1.26),
		hazard("JPAD", 0.80, 0.58, 1.10),
		hazard("AAA", 1.03, 0.84, 1.27),
		hazard("JPPP", 0.94, 0.77, 1.15),
		hazard("ARRIVE", 0.96, 0.81, 1.13),
		hazard("ASCEND", 0.88, 0.79, 0.97),
		hazard("ASPREE", 0.95, 0.83, 1.08),
	}
}

// BloodPressureStudies is a 6-trial continuous-outcome dataset
// (systolic blood pressure reduction).
func BloodPressureStudies() []meta.Study {
	return []meta.Study{
		continuous("Trial_A", -10.2, 5.1, 50, -3.1, 4.2, 48),
		continuous("Trial_B", -8.5, 6.0, 35, -2.3, 5.0, 40),
		continuous("Trial_C", -12.0, 4.3, 60, -4.0, 5.2, 55),
		continuous("Trial_D", -6.8, 7.2, 25, -1.5, 6.0, 30),
		continuous("Trial_E", -15.0, 5.0, 45, -5.5, 4.0, 42),
		continuous("Trial_F", -9.0, 5.5, 70, -3.2, 4.5, 65),
	}
}

// ZeroCellStudies is a 4-trial binary dataset where two trials have a
// zero cell, exercising the continuity correction.
func ZeroCellStudies() []meta.Study {
	return []meta.Study{
		binary("ZC_1", 0, "", 0, 20, 5, 22),
		binary("ZC_2", 0, "", 3, 30, 8, 28),
		binary("ZC_3", 0, "", 1, 15, 6, 18),
		binary("ZC_4", 0, "", 10, 50, 0, 45),
	}
}

// HighHeterogeneityStudies is a 5-trial binary dataset with deliberately
// divergent effects (tau2 well above zero).
func HighHeterogeneityStudies() []meta.Study {
	return []meta.Study{
		binary("HH_1", 0, "", 5, 100, 10, 100),
		binary("HH_2", 0, "", 30, 100, 15, 100),
		binary("HH_3", 0, "", 20, 200, 25, 200),
		binary("HH_4", 0, "", 40, 80, 20, 80),
		binary("HH_5", 0, "", 3, 150, 10, 150),
	}
}

// TwoStudies is the minimal k=2 binary dataset.
func TwoStudies() []meta.Study {
	return []meta.Study{
		binary("Duo_A", 0, "", 30, 100, 45, 100),
		binary("Duo_B", 0, "", 15, 80, 25, 80),
	}
}

// SingleStudy is the k=1 degenerate dataset.
func SingleStudy() []meta.Study {
	return []meta.Study{
		binary("Solo", 0, "", 50, 200, 70, 200),
	}
}
