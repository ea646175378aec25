// Package analytics answers clinical questions over the loaded store:
// classification, trends, abnormal detection, search and timeline views.
package analytics

// BPCategory is a blood-pressure category per the standard adult cutoffs.
type BPCategory string

const (
	BPNormal   BPCategory = "Normal"
	BPElevated BPCategory = "Elevated"
	BPStage1   BPCategory = "Stage1Hypertension"
	BPStage2   BPCategory = "Stage2Hypertension"
	BPCrisis   BPCategory = "HypertensiveCrisis"
	BPUnknown  BPCategory = "Unknown"
)

// ClassifyBP categorizes a blood-pressure reading. When systolic and
// diastolic land in different categories the more severe one wins; a
// missing component makes the reading unclassifiable.
func ClassifyBP(systolic, diastolic *float64) BPCategory {
	if systolic == nil || diastolic == nil {
		return BPUnknown
	}
	s, d := *systolic, *diastolic
	switch {
	case s >= 180 || d >= 120:
		return BPCrisis
	case s >= 140 || d >= 90:
		return BPStage2
	case s >= 130 || d >= 80:
		return BPStage1
	case s >= 120:
		return BPElevated
	default:
		return BPNormal
	}
}

// BMICategory is a body-mass-index category per the standard adult cutoffs.
type BMICategory string

const (
	BMIUnderweight BMICategory = "Underweight"
	BMINormal      BMICategory = "Normal"
	BMIOverweight  BMICategory = "Overweight"
	BMIObese       BMICategory = "Obese"
	BMIUnknown     BMICategory = "Unknown"
)

// ClassifyBMI categorizes a BMI value. Boundaries are inclusive on the
// upper category: 25.0 is Overweight, 30.0 is Obese.
func ClassifyBMI(bmi *float64) BMICategory {
	if bmi == nil || *bmi <= 0 {
		return BMIUnknown
	}
	switch {
	case *bmi < 18.5:
		return BMIUnderweight
	case *bmi < 25:
		return BMINormal
	case *bmi < 30:
		return BMIOverweight
	default:
		return BMIObese
	}
}
