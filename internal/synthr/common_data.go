package synthr

import (
	"github.com/brianvoe/gofakeit/v7"
)

// Shared vocabularies for synthetic document generation. Codes are real so
// the generated documents exercise code normalization end to end.

type drug struct {
	Name   string
	RxNorm string
}

var Drugs = []drug{
	{"Lisinopril", "314076"},
	{"Metformin", "861007"},
	{"Atorvastatin", "617312"},
	{"Levothyroxine", "966224"},
	{"Amlodipine", "197361"},
	{"Metoprolol", "866414"},
	{"Omeprazole", "198051"},
	{"Losartan", "979480"},
	{"Albuterol", "745679"},
	{"Gabapentin", "310431"},
	{"Sertraline", "312940"},
	{"Hydrochlorothiazide", "310798"},
}

func RandomDrug() drug {
	return Drugs[gofakeit.Number(0, len(Drugs)-1)]
}

var Dosages = []string{"5 mg", "10 mg", "20 mg", "25 mg", "40 mg", "50 mg", "500 mg", "850 mg"}

func RandomDosage() string {
	return Dosages[gofakeit.Number(0, len(Dosages)-1)]
}

var Routes = []string{"Oral", "Subcutaneous", "Intramuscular", "Inhalation"}

func RandomRoute() string {
	return Routes[gofakeit.Number(0, len(Routes)-1)]
}

type labTest struct {
	Name  string
	LOINC string
	Unit  string
	Low   float64
	High  float64
}

var LabTests = []labTest{
	{"Hemoglobin A1c", "4548-4", "%", 4.0, 5.6},
	{"Glucose", "2345-7", "mg/dL", 70, 99},
	{"Creatinine", "2160-0", "mg/dL", 0.6, 1.3},
	{"Total Cholesterol", "2093-3", "mg/dL", 0, 200},
	{"LDL Cholesterol", "13457-7", "mg/dL", 0, 130},
	{"HDL Cholesterol", "2085-9", "mg/dL", 40, 90},
	{"Triglycerides", "2571-8", "mg/dL", 0, 150},
	{"TSH", "3016-3", "mIU/L", 0.4, 4.0},
	{"Potassium", "2823-3", "mmol/L", 3.5, 5.1},
	{"Sodium", "2951-2", "mmol/L", 136, 145},
	{"Hemoglobin", "718-7", "g/dL", 12.0, 17.5},
	{"White Blood Cell Count", "6690-2", "10*3/uL", 4.5, 11.0},
}

func RandomLabTest() labTest {
	return LabTests[gofakeit.Number(0, len(LabTests)-1)]
}

type problem struct {
	Name  string
	ICD10 string
}

var Problems = []problem{
	{"Essential hypertension", "I10"},
	{"Type 2 diabetes mellitus", "E11.9"},
	{"Hyperlipidemia", "E78.5"},
	{"Asthma", "J45.909"},
	{"Hypothyroidism", "E03.9"},
	{"Gastroesophageal reflux disease", "K21.9"},
	{"Osteoarthritis", "M19.90"},
	{"Major depressive disorder", "F33.9"},
	{"Chronic kidney disease, stage 2", "N18.2"},
	{"Atrial fibrillation", "I48.91"},
}

func RandomProblem() problem {
	return Problems[gofakeit.Number(0, len(Problems)-1)]
}

type procedure struct {
	Name string
	CPT  string
}

var Procedures = []procedure{
	{"Colonoscopy", "45378"},
	{"Screening mammography", "77067"},
	{"Echocardiogram", "93306"},
	{"Chest X-ray", "71046"},
	{"Electrocardiogram", "93000"},
	{"Knee arthroscopy", "29881"},
	{"Cataract extraction", "66984"},
}

func RandomProcedure() procedure {
	return Procedures[gofakeit.Number(0, len(Procedures)-1)]
}

type allergy struct {
	Substance string
	Reaction  string
	Severity  string
}

var Allergies = []allergy{
	{"Penicillin", "Hives", "Moderate"},
	{"Sulfa drugs", "Rash", "Mild"},
	{"Peanuts", "Anaphylaxis", "Severe"},
	{"Latex", "Contact dermatitis", "Mild"},
	{"Shellfish", "Swelling", "Moderate"},
	{"Aspirin", "Bronchospasm", "Moderate"},
}

func RandomAllergy() allergy {
	return Allergies[gofakeit.Number(0, len(Allergies)-1)]
}

type vaccine struct {
	Name         string
	CVX          string
	Manufacturer string
}

var Vaccines = []vaccine{
	{"Influenza, seasonal", "141", "Sanofi Pasteur"},
	{"Tdap", "115", "GlaxoSmithKline"},
	{"COVID-19 mRNA", "208", "Pfizer"},
	{"Pneumococcal conjugate PCV13", "133", "Pfizer"},
	{"Zoster recombinant", "187", "GlaxoSmithKline"},
	{"Hepatitis B", "43", "Merck"},
}

func RandomVaccine() vaccine {
	return Vaccines[gofakeit.Number(0, len(Vaccines)-1)]
}
