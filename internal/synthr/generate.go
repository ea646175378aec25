// Package synthr generates synthetic C-CDA documents for exercising the
// ingestion pipeline without real patient data. Output is deterministic
// for a given seed.
package synthr

import (
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/brianvoe/gofakeit/v7"
)

type Config struct {
	Seed          int64
	Medications   int
	Allergies     int
	Problems      int
	Procedures    int
	Results       int
	VitalDays     int
	Immunizations int
}

// DefaultConfig sizes a document like a typical outpatient CCD export.
func DefaultConfig() Config {
	return Config{
		Medications:   8,
		Allergies:     3,
		Problems:      5,
		Procedures:    4,
		Results:       12,
		VitalDays:     6,
		Immunizations: 4,
	}
}

const (
	loincOID  = "2.16.840.1.113883.6.1"
	rxnormOID = "2.16.840.1.113883.6.88"
	icd10OID  = "2.16.840.1.113883.6.90"
	cptOID    = "2.16.840.1.113883.6.12"
	cvxOID    = "2.16.840.1.113883.12.292"
	snomedOID = "2.16.840.1.113883.6.96"
)

// Generate builds one synthetic CCD as serialized XML.
func Generate(cfg Config) ([]byte, error) {
	gofakeit.Seed(cfg.Seed)

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("ClinicalDocument")
	root.CreateAttr("xmlns", "urn:hl7-org:v3")

	id := root.CreateElement("id")
	id.CreateAttr("root", "2.16.840.1.113883.19.5")
	id.CreateAttr("extension", gofakeit.UUID())
	root.CreateElement("title").SetText("Continuity of Care Document")
	eff := root.CreateElement("effectiveTime")
	eff.CreateAttr("value", time.Now().Format("20060102"))

	body := root.CreateElement("component").CreateElement("structuredBody")

	writeMedications(body, cfg.Medications)
	writeAllergies(body, cfg.Allergies)
	writeProblems(body, cfg.Problems)
	writeProcedures(body, cfg.Procedures)
	writeResults(body, cfg.Results)
	writeVitals(body, cfg.VitalDays)
	writeImmunizations(body, cfg.Immunizations)

	doc.Indent(2)
	return doc.WriteToBytes()
}

func section(body *etree.Element, loinc, title string) *etree.Element {
	sec := body.CreateElement("component").CreateElement("section")
	code := sec.CreateElement("code")
	code.CreateAttr("code", loinc)
	code.CreateAttr("codeSystem", loincOID)
	sec.CreateElement("title").SetText(title)
	return sec
}

func codedEl(parent *etree.Element, tag, code, system, display string) *etree.Element {
	e := parent.CreateElement(tag)
	e.CreateAttr("code", code)
	e.CreateAttr("codeSystem", system)
	if display != "" {
		e.CreateAttr("displayName", display)
	}
	return e
}

func randDate(yearsBack int) time.Time {
	end := time.Now()
	start := end.AddDate(-yearsBack, 0, 0)
	return gofakeit.DateRange(start, end)
}

func ts(t time.Time) string { return t.Format("20060102") }

func writeMedications(body *etree.Element, n int) {
	sec := section(body, "10160-0", "Medications")
	for i := 0; i < n; i++ {
		d := RandomDrug()
		sa := sec.CreateElement("entry").CreateElement("substanceAdministration")
		sa.CreateElement("statusCode").CreateAttr("code", pick("active", "active", "completed"))
		ivl := sa.CreateElement("effectiveTime")
		ivl.CreateElement("low").CreateAttr("value", ts(randDate(3)))
		pivl := sa.CreateElement("effectiveTime")
		period := pivl.CreateElement("period")
		period.CreateAttr("value", pick("12", "24", "8"))
		period.CreateAttr("unit", "h")
		route := sa.CreateElement("routeCode")
		route.CreateAttr("code", "C38288")
		route.CreateAttr("displayName", RandomRoute())
		dose := sa.CreateElement("doseQuantity")
		dose.CreateAttr("value", fmt.Sprintf("%d", gofakeit.Number(1, 2)))
		material := sa.CreateElement("consumable").
			CreateElement("manufacturedProduct").
			CreateElement("manufacturedMaterial")
		codedEl(material, "code", d.RxNorm, rxnormOID, d.Name)
		material.CreateElement("name").SetText(d.Name + " " + RandomDosage())
	}
}

func writeAllergies(body *etree.Element, n int) {
	sec := section(body, "48765-2", "Allergies and Adverse Reactions")
	for i := 0; i < n; i++ {
		a := RandomAllergy()
		obs := sec.CreateElement("entry").
			CreateElement("act").
			CreateElement("entryRelationship").
			CreateElement("observation")
		obs.CreateElement("statusCode").CreateAttr("code", "active")
		entity := obs.CreateElement("participant").
			CreateElement("participantRole").
			CreateElement("playingEntity")
		entity.CreateElement("name").SetText(a.Substance)
		reaction := obs.CreateElement("entryRelationship").CreateElement("observation")
		codedEl(reaction, "code", "ASSERTION", "2.16.840.1.113883.5.4", "")
		codedEl(reaction, "value", "", snomedOID, a.Reaction)
		severity := obs.CreateElement("entryRelationship").CreateElement("observation")
		codedEl(severity, "code", "SEV", "2.16.840.1.113883.5.4", "Severity")
		codedEl(severity, "value", "", snomedOID, a.Severity)
	}
}

func writeProblems(body *etree.Element, n int) {
	sec := section(body, "11450-4", "Problem List")
	for i := 0; i < n; i++ {
		p := RandomProblem()
		obs := sec.CreateElement("entry").
			CreateElement("act").
			CreateElement("entryRelationship").
			CreateElement("observation")
		obs.CreateElement("statusCode").CreateAttr("code", pick("active", "active", "completed"))
		ivl := obs.CreateElement("effectiveTime")
		ivl.CreateElement("low").CreateAttr("value", ts(randDate(5)))
		codedEl(obs, "value", p.ICD10, icd10OID, p.Name)
	}
}

func writeProcedures(body *etree.Element, n int) {
	sec := section(body, "47519-4", "Procedures")
	for i := 0; i < n; i++ {
		p := RandomProcedure()
		proc := sec.CreateElement("entry").CreateElement("procedure")
		codedEl(proc, "code", p.CPT, cptOID, p.Name)
		proc.CreateElement("effectiveTime").CreateAttr("value", ts(randDate(4)))
		provider := proc.CreateElement("performer").
			CreateElement("assignedEntity").
			CreateElement("assignedPerson")
		provider.CreateElement("name").SetText("Dr. " + gofakeit.LastName())
	}
}

func writeResults(body *etree.Element, n int) {
	sec := section(body, "30954-2", "Results")
	organizer := sec.CreateElement("entry").CreateElement("organizer")
	for i := 0; i < n; i++ {
		t := RandomLabTest()
		obs := organizer.CreateElement("component").CreateElement("observation")
		codedEl(obs, "code", t.LOINC, loincOID, t.Name)
		obs.CreateElement("statusCode").CreateAttr("code", "completed")
		obs.CreateElement("effectiveTime").CreateAttr("value", ts(randDate(2)))

		// Roughly one in four results lands above range; half of those
		// carry no interpretation code so the loader must derive it.
		span := t.High - t.Low
		value := t.Low + span*gofakeit.Float64Range(0.1, 0.9)
		abnormal := gofakeit.Number(0, 3) == 0
		if abnormal {
			value = t.High + span*gofakeit.Float64Range(0.1, 0.5)
		}
		val := obs.CreateElement("value")
		val.CreateAttr("value", fmt.Sprintf("%.1f", value))
		val.CreateAttr("unit", t.Unit)
		if abnormal && gofakeit.Bool() {
			obs.CreateElement("interpretationCode").CreateAttr("code", "H")
		}
		rangeText := fmt.Sprintf("%.1f-%.1f", t.Low, t.High)
		obs.CreateElement("referenceRange").
			CreateElement("observationRange").
			CreateElement("text").SetText(rangeText)
	}
}

func writeVitals(body *etree.Element, days int) {
	sec := section(body, "8716-3", "Vital Signs")
	height := gofakeit.Float64Range(150, 195)
	weight := gofakeit.Float64Range(50, 110)
	for i := 0; i < days; i++ {
		date := ts(time.Now().AddDate(0, 0, -30*i))
		organizer := sec.CreateElement("entry").CreateElement("organizer")
		vital := func(loinc, name, unit string, value float64) {
			obs := organizer.CreateElement("component").CreateElement("observation")
			codedEl(obs, "code", loinc, loincOID, name)
			obs.CreateElement("effectiveTime").CreateAttr("value", date)
			val := obs.CreateElement("value")
			val.CreateAttr("value", fmt.Sprintf("%.1f", value))
			val.CreateAttr("unit", unit)
		}
		vital("8302-2", "Body Height", "cm", height)
		vital("29463-7", "Body Weight", "kg", weight+gofakeit.Float64Range(-2, 2))
		vital("8480-6", "Systolic Blood Pressure", "mm[Hg]", gofakeit.Float64Range(105, 165))
		vital("8462-4", "Diastolic Blood Pressure", "mm[Hg]", gofakeit.Float64Range(65, 100))
		vital("8867-4", "Heart Rate", "/min", gofakeit.Float64Range(55, 95))
		vital("8310-5", "Body Temperature", "Cel", gofakeit.Float64Range(36.2, 37.4))
	}
}

func writeImmunizations(body *etree.Element, n int) {
	sec := section(body, "11369-6", "Immunizations")
	for i := 0; i < n; i++ {
		v := RandomVaccine()
		sa := sec.CreateElement("entry").CreateElement("substanceAdministration")
		sa.CreateElement("statusCode").CreateAttr("code", "completed")
		sa.CreateElement("effectiveTime").CreateAttr("value", ts(randDate(6)))
		product := sa.CreateElement("consumable").CreateElement("manufacturedProduct")
		material := product.CreateElement("manufacturedMaterial")
		codedEl(material, "code", v.CVX, cvxOID, v.Name)
		material.CreateElement("lotNumberText").SetText(gofakeit.LetterN(2) + gofakeit.DigitN(4))
		product.CreateElement("manufacturerOrganization").
			CreateElement("name").SetText(v.Manufacturer)
	}
}

func pick(options ...string) string {
	return options[gofakeit.Number(0, len(options)-1)]
}
