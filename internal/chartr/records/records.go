package records

import "time"

// Domain identifies one of the clinical domains extracted from a document.
// The set is closed: extraction strategies and table schemas are dispatched
// by domain through lookup tables, not open-ended registration.
type Domain string

const (
	DomainMedications   Domain = "medications"
	DomainAllergies     Domain = "allergies"
	DomainProblems      Domain = "problems"
	DomainProcedures    Domain = "procedures"
	DomainResults       Domain = "results"
	DomainVitals        Domain = "vitals"
	DomainImmunizations Domain = "immunizations"
)

// AllDomains lists every domain in load order.
var AllDomains = []Domain{
	DomainMedications,
	DomainAllergies,
	DomainProblems,
	DomainProcedures,
	DomainResults,
	DomainVitals,
	DomainImmunizations,
}

// Status is the canonical status vocabulary shared by all domains.
type Status string

const (
	StatusActive       Status = "Active"
	StatusDiscontinued Status = "Discontinued"
	StatusCompleted    Status = "Completed"
	StatusUnknown      Status = "Unknown"
)

// AbnormalFlag is the canonical lab result interpretation vocabulary.
type AbnormalFlag string

const (
	FlagNormal   AbnormalFlag = "Normal"
	FlagHigh     AbnormalFlag = "High"
	FlagLow      AbnormalFlag = "Low"
	FlagCritical AbnormalFlag = "Critical"
	FlagUnknown  AbnormalFlag = "Unknown"
)

// Medication is one row of the medications table. Name is the only
// required field; everything else is best-effort.
type Medication struct {
	Name               string     `json:"name"`
	Dosage             *string    `json:"dosage,omitempty"`
	Frequency          *string    `json:"frequency,omitempty"`
	Route              *string    `json:"route,omitempty"`
	StartDate          *time.Time `json:"start_date,omitempty"`
	EndDate            *time.Time `json:"end_date,omitempty"`
	Status             Status     `json:"status"`
	Prescriber         *string    `json:"prescriber,omitempty"`
	DrugCode           *string    `json:"drug_code,omitempty"`
	NormalizedDrugCode *string    `json:"normalized_drug_code,omitempty"`
	Instructions       *string    `json:"instructions,omitempty"`
}

type Allergy struct {
	Substance string  `json:"substance"`
	Reaction  *string `json:"reaction,omitempty"`
	Severity  *string `json:"severity,omitempty"`
	Status    Status  `json:"status"`
}

type Problem struct {
	Description    string     `json:"description"`
	DiagnosisCode  *string    `json:"diagnosis_code,omitempty"`
	NormalizedCode *string    `json:"normalized_code,omitempty"`
	OnsetDate      *time.Time `json:"onset_date,omitempty"`
	ResolutionDate *time.Time `json:"resolution_date,omitempty"`
	Status         Status     `json:"status"`
}

type Procedure struct {
	Name           string     `json:"name"`
	ProcedureCode  *string    `json:"procedure_code,omitempty"`
	NormalizedCode *string    `json:"normalized_code,omitempty"`
	Date           *time.Time `json:"date,omitempty"`
	Provider       *string    `json:"provider,omitempty"`
}

// LabResult keeps Value as text: results may be numeric, qualitative
// ("Positive") or ranges; numeric interpretation happens in analytics.
type LabResult struct {
	TestName       string       `json:"test_name"`
	TestDate       *time.Time   `json:"test_date,omitempty"`
	Value          *string      `json:"value,omitempty"`
	Unit           *string      `json:"unit,omitempty"`
	ReferenceRange *string      `json:"reference_range,omitempty"`
	AbnormalFlag   AbnormalFlag `json:"abnormal_flag"`
	Status         Status       `json:"status"`
	TestCode       *string      `json:"test_code,omitempty"`
	NormalizedCode *string      `json:"normalized_code,omitempty"`
	Provider       *string      `json:"provider,omitempty"`
	Notes          *string      `json:"notes,omitempty"`
}

// Vital is one row per measurement date; individual observations from the
// source document are folded together by the vitals extractor.
type Vital struct {
	MeasurementDate  time.Time `json:"measurement_date"`
	MeasurementTime  *string   `json:"measurement_time,omitempty"`
	HeightCm         *float64  `json:"height_cm,omitempty"`
	WeightKg         *float64  `json:"weight_kg,omitempty"`
	BMI              *float64  `json:"bmi,omitempty"`
	SystolicBP       *float64  `json:"systolic_bp,omitempty"`
	DiastolicBP      *float64  `json:"diastolic_bp,omitempty"`
	HeartRate        *float64  `json:"heart_rate,omitempty"`
	TemperatureC     *float64  `json:"temperature_c,omitempty"`
	RespiratoryRate  *float64  `json:"respiratory_rate,omitempty"`
	OxygenSaturation *float64  `json:"oxygen_saturation,omitempty"`
}

type Immunization struct {
	VaccineName        string     `json:"vaccine_name"`
	AdministrationDate *time.Time `json:"administration_date,omitempty"`
	Manufacturer       *string    `json:"manufacturer,omitempty"`
	LotNumber          *string    `json:"lot_number,omitempty"`
	VaccineCode        *string    `json:"vaccine_code,omitempty"`
	NormalizedCode     *string    `json:"normalized_code,omitempty"`
}

// Batch carries the normalized records of one document, grouped by domain.
type Batch struct {
	Medications   []Medication
	Allergies     []Allergy
	Problems      []Problem
	Procedures    []Procedure
	Results       []LabResult
	Vitals        []Vital
	Immunizations []Immunization
}

// Count returns the number of records held for a domain.
func (b *Batch) Count(d Domain) int {
	switch d {
	case DomainMedications:
		return len(b.Medications)
	case DomainAllergies:
		return len(b.Allergies)
	case DomainProblems:
		return len(b.Problems)
	case DomainProcedures:
		return len(b.Procedures)
	case DomainResults:
		return len(b.Results)
	case DomainVitals:
		return len(b.Vitals)
	case DomainImmunizations:
		return len(b.Immunizations)
	default:
		return 0
	}
}
