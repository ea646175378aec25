package ccda

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/chartr-dev/chartr/internal/chartr/logger"
	"github.com/chartr-dev/chartr/internal/chartr/normalize"
	"github.com/chartr-dev/chartr/internal/chartr/records"
)

// DomainStats counts the entries enumerated and skipped for one domain.
// An entry is skipped only when its single required field cannot be found
// anywhere; every other missing field just becomes null.
type DomainStats struct {
	Seen    int
	Skipped int
}

// Extraction is the output of running all domain extractors over a located
// document: normalized records plus per-domain accounting.
type Extraction struct {
	Batch    records.Batch
	Stats    map[records.Domain]DomainStats
	Warnings []string
}

// Extract locates sections and runs every domain extractor. Entries are
// processed independently: one malformed entry never aborts the rest of
// its section.
func Extract(doc *Document, table map[records.Domain]SectionIdentifiers) *Extraction {
	located := doc.LocateSections(table)
	ex := &Extraction{Stats: make(map[records.Domain]DomainStats)}

	ex.Batch.Medications = extractMedications(located[records.DomainMedications], ex)
	ex.Batch.Allergies = extractAllergies(located[records.DomainAllergies], ex)
	ex.Batch.Problems = extractProblems(located[records.DomainProblems], ex)
	ex.Batch.Procedures = extractProcedures(located[records.DomainProcedures], ex)
	ex.Batch.Results = extractResults(located[records.DomainResults], ex)
	ex.Batch.Vitals = extractVitals(located[records.DomainVitals], ex)
	ex.Batch.Immunizations = extractImmunizations(located[records.DomainImmunizations], ex)

	for _, domain := range records.AllDomains {
		s := ex.Stats[domain]
		logger.L().Infow("extracted domain",
			"domain", domain,
			"seen", s.Seen,
			"loaded", ex.Batch.Count(domain),
			"skipped", s.Skipped)
	}
	return ex
}

func (ex *Extraction) record(domain records.Domain, seen, skipped int, requiredField string) {
	ex.Stats[domain] = DomainStats{Seen: seen, Skipped: skipped}
	if skipped > 0 {
		ex.Warnings = append(ex.Warnings,
			fmt.Sprintf("%s: skipped %d entries missing %s", domain, skipped, requiredField))
	}
}

// entryElements enumerates the clinical-statement elements of a section.
// Sections normally wrap each statement in an <entry>; when a nonconforming
// exporter omits them, the primary elements are taken from the section
// directly. With all=true every match under an entry is returned (results
// and vitals organizers hold one observation per analyte).
func entryElements(section *etree.Element, primaryTag string, all bool) []*etree.Element {
	var out []*etree.Element
	entries := findDescendants(section, "entry")
	if len(entries) == 0 {
		return findDescendants(section, primaryTag)
	}
	for _, entry := range entries {
		if all {
			out = append(out, findDescendants(entry, primaryTag)...)
			continue
		}
		if primary := findFirstDescendant(entry, primaryTag); primary != nil {
			out = append(out, primary)
		}
	}
	return out
}

// codePair reads code/codeSystem off the element at the end of a chain and
// returns the verbatim code plus the normalized form for recognized systems.
func codePair(e *etree.Element, tags ...string) (raw, normalized *string) {
	target := descend(e, tags...)
	if target == nil {
		return nil, nil
	}
	return normalize.Code(attr(target, "code"), attr(target, "codeSystem"))
}

func extractMedications(sections []*etree.Element, ex *Extraction) []records.Medication {
	var out []records.Medication
	seen, skipped := 0, 0
	for _, section := range sections {
		for _, entry := range entryElements(section, "substanceAdministration", false) {
			seen++
			name := normalize.Text(firstOf(entry,
				pathText("manufacturedMaterial", "name"),
				pathAttr("displayName", "manufacturedMaterial", "code"),
				pathText("name"),
				pathAttr("displayName", "code"),
			))
			if name == nil {
				skipped++
				continue
			}
			drugCode, normCode := codePair(entry, "manufacturedMaterial", "code")
			if drugCode == nil {
				drugCode, normCode = codePair(entry, "code")
			}
			out = append(out, records.Medication{
				Name:      *name,
				Dosage:    normalize.Text(firstOf(entry, quantity("doseQuantity"))),
				Frequency: normalize.Text(firstOf(entry, periodText())),
				Route: normalize.Text(firstOf(entry,
					pathAttr("displayName", "routeCode"),
					pathAttr("code", "routeCode"),
				)),
				StartDate: normalize.Date(firstOf(entry,
					pathAttr("value", "effectiveTime", "low"),
				)),
				EndDate: normalize.Date(firstOf(entry,
					pathAttr("value", "effectiveTime", "high"),
				)),
				Status: normalize.Status(firstOf(entry,
					pathAttr("code", "statusCode"),
					pathText("statusCode"),
				)),
				Prescriber: normalize.Text(firstOf(entry,
					pathText("assignedPerson", "name"),
				)),
				DrugCode:           drugCode,
				NormalizedDrugCode: normCode,
				Instructions:       normalize.Text(firstOf(entry, pathText("text"))),
			})
		}
	}
	ex.record(records.DomainMedications, seen, skipped, "name")
	return out
}

func extractAllergies(sections []*etree.Element, ex *Extraction) []records.Allergy {
	var out []records.Allergy
	seen, skipped := 0, 0
	for _, section := range sections {
		for _, entry := range entryElements(section, "observation", false) {
			seen++
			substance := normalize.Text(firstOf(entry,
				pathText("participant", "playingEntity", "name"),
				pathAttr("displayName", "participant", "playingEntity", "code"),
				pathAttr("displayName", "value"),
			))
			if substance == nil {
				skipped++
				continue
			}
			out = append(out, records.Allergy{
				Substance: *substance,
				Reaction: normalize.Text(firstOf(entry,
					pathAttr("displayName", "entryRelationship", "value"),
				)),
				Severity: normalize.Text(severityOf(entry)),
				Status: normalize.Status(firstOf(entry,
					pathAttr("code", "statusCode"),
					pathText("statusCode"),
				)),
			})
		}
	}
	ex.record(records.DomainAllergies, seen, skipped, "substance")
	return out
}

// severityOf finds the severity observation nested under an allergy entry:
// the observation whose code is SEV (or titled "severity") carries the
// severity as its value displayName.
func severityOf(entry *etree.Element) string {
	for _, obs := range findDescendants(entry, "observation") {
		code := childByTag(obs, "code")
		if code == nil {
			continue
		}
		if attr(code, "code") == "SEV" ||
			strings.Contains(strings.ToLower(attr(code, "displayName")), "severity") {
			return attr(findFirstDescendant(obs, "value"), "displayName")
		}
	}
	return ""
}

func extractProblems(sections []*etree.Element, ex *Extraction) []records.Problem {
	var out []records.Problem
	seen, skipped := 0, 0
	for _, section := range sections {
		for _, entry := range entryElements(section, "observation", false) {
			seen++
			desc := normalize.Text(firstOf(entry,
				pathAttr("displayName", "value"),
				pathText("value", "originalText"),
				pathText("text"),
			))
			if desc == nil {
				skipped++
				continue
			}
			diagCode, normCode := codePair(entry, "value")
			out = append(out, records.Problem{
				Description:    *desc,
				DiagnosisCode:  diagCode,
				NormalizedCode: normCode,
				OnsetDate: normalize.Date(firstOf(entry,
					pathAttr("value", "effectiveTime", "low"),
					pathAttr("value", "effectiveTime"),
				)),
				ResolutionDate: normalize.Date(firstOf(entry,
					pathAttr("value", "effectiveTime", "high"),
				)),
				Status: normalize.Status(firstOf(entry,
					pathAttr("displayName", "entryRelationship", "observation", "value"),
					pathAttr("code", "statusCode"),
				)),
			})
		}
	}
	ex.record(records.DomainProblems, seen, skipped, "description")
	return out
}

func extractProcedures(sections []*etree.Element, ex *Extraction) []records.Procedure {
	var out []records.Procedure
	seen, skipped := 0, 0
	for _, section := range sections {
		for _, entry := range entryElements(section, "procedure", false) {
			seen++
			name := normalize.Text(firstOf(entry,
				pathAttr("displayName", "code"),
				pathText("code", "originalText"),
				pathText("text"),
			))
			if name == nil {
				skipped++
				continue
			}
			procCode, normCode := codePair(entry, "code")
			out = append(out, records.Procedure{
				Name:           *name,
				ProcedureCode:  procCode,
				NormalizedCode: normCode,
				Date: normalize.Date(firstOf(entry,
					pathAttr("value", "effectiveTime"),
					pathAttr("value", "effectiveTime", "low"),
				)),
				Provider: normalize.Text(firstOf(entry,
					pathText("performer", "assignedPerson", "name"),
					pathText("performer", "representedOrganization", "name"),
				)),
			})
		}
	}
	ex.record(records.DomainProcedures, seen, skipped, "name")
	return out
}

func extractResults(sections []*etree.Element, ex *Extraction) []records.LabResult {
	var out []records.LabResult
	seen, skipped := 0, 0
	for _, section := range sections {
		for _, obs := range entryElements(section, "observation", true) {
			seen++
			testName := normalize.Text(firstOf(obs,
				pathAttr("displayName", "code"),
				pathText("code", "originalText"),
			))
			if testName == nil {
				skipped++
				continue
			}

			valueEl := findFirstDescendant(obs, "value")
			value := attr(valueEl, "value")
			if value == "" {
				value = textContent(valueEl)
			}
			refRange := firstOf(obs,
				pathText("referenceRange", "observationRange", "text"),
				ivlText("referenceRange", "observationRange", "value"),
			)
			rawFlag := firstOf(obs,
				pathAttr("code", "interpretationCode"),
				pathAttr("displayName", "interpretationCode"),
			)
			flag := normalize.Flag(rawFlag)
			if rawFlag == "" {
				// No explicit flag: derive from value + range when both
				// parse as comparable numerics.
				flag = normalize.DeriveFlag(value, refRange)
			}

			testCode, normCode := codePair(obs, "code")
			out = append(out, records.LabResult{
				TestName:       *testName,
				TestDate:       normalize.Date(firstOf(obs, pathAttr("value", "effectiveTime"), pathAttr("value", "effectiveTime", "low"))),
				Value:          normalize.Text(value),
				Unit:           normalize.Text(attr(valueEl, "unit")),
				ReferenceRange: normalize.Text(refRange),
				AbnormalFlag:   flag,
				Status: normalize.Status(firstOf(obs,
					pathAttr("code", "statusCode"),
				)),
				TestCode:       testCode,
				NormalizedCode: normCode,
				Provider: normalize.Text(firstOf(obs,
					pathText("performer", "assignedPerson", "name"),
				)),
			})
		}
	}
	ex.record(records.DomainResults, seen, skipped, "test_name")
	return out
}

// vitalKind routes a vital-sign observation to its column, by LOINC code
// first and display name keyword second.
type vitalKind struct {
	codes   []string
	keyword string
	assign  func(v *records.Vital, value float64)
}

var vitalKinds = []vitalKind{
	{[]string{"8302-2"}, "height", func(v *records.Vital, f float64) { v.HeightCm = &f }},
	{[]string{"29463-7", "3141-9"}, "weight", func(v *records.Vital, f float64) { v.WeightKg = &f }},
	{[]string{"39156-5"}, "body mass", func(v *records.Vital, f float64) { v.BMI = &f }},
	{[]string{"8480-6"}, "systolic", func(v *records.Vital, f float64) { v.SystolicBP = &f }},
	{[]string{"8462-4"}, "diastolic", func(v *records.Vital, f float64) { v.DiastolicBP = &f }},
	{[]string{"8867-4"}, "heart rate", func(v *records.Vital, f float64) { v.HeartRate = &f }},
	{[]string{"8310-5"}, "temperature", func(v *records.Vital, f float64) { v.TemperatureC = &f }},
	{[]string{"9279-1"}, "respiratory", func(v *records.Vital, f float64) { v.RespiratoryRate = &f }},
	{[]string{"2710-2", "59408-5"}, "oxygen", func(v *records.Vital, f float64) { v.OxygenSaturation = &f }},
}

// extractVitals folds individual vital-sign observations into one row per
// measurement date, the granularity the vitals table stores. Seen counts
// at that same granularity (one per distinct date, plus one per skipped
// observation) so loaded + skipped = seen holds here like everywhere else.
// Observations without a parsable date are skipped and counted; BMI is
// derived after grouping when the document did not state it.
func extractVitals(sections []*etree.Element, ex *Extraction) []records.Vital {
	byDate := make(map[string]*records.Vital)
	var order []string
	skipped := 0

	for _, section := range sections {
		for _, obs := range entryElements(section, "observation", true) {
			rawTime := firstOf(obs,
				pathAttr("value", "effectiveTime"),
				pathAttr("value", "effectiveTime", "low"),
			)
			date := normalize.Date(rawTime)
			if date == nil {
				skipped++
				continue
			}
			key := date.Format("2006-01-02")
			row, ok := byDate[key]
			if !ok {
				row = &records.Vital{
					MeasurementDate: *date,
					MeasurementTime: normalize.Time(rawTime),
				}
				byDate[key] = row
				order = append(order, key)
			}

			kind := matchVitalKind(
				attr(findFirstDescendant(obs, "code"), "code"),
				attr(findFirstDescendant(obs, "code"), "displayName"),
			)
			if kind == nil {
				continue
			}
			if value, ok := normalize.Numeric(attr(findFirstDescendant(obs, "value"), "value")); ok {
				kind.assign(row, value)
			}
		}
	}

	out := make([]records.Vital, 0, len(order))
	for _, key := range order {
		row := byDate[key]
		if row.BMI == nil {
			row.BMI = normalize.BMI(row.HeightCm, row.WeightKg)
		}
		out = append(out, *row)
	}
	ex.record(records.DomainVitals, len(order)+skipped, skipped, "measurement_date")
	return out
}

func matchVitalKind(code, displayName string) *vitalKind {
	lower := strings.ToLower(displayName)
	for i := range vitalKinds {
		for _, c := range vitalKinds[i].codes {
			if code == c {
				return &vitalKinds[i]
			}
		}
		if lower != "" && strings.Contains(lower, vitalKinds[i].keyword) {
			return &vitalKinds[i]
		}
	}
	return nil
}

func extractImmunizations(sections []*etree.Element, ex *Extraction) []records.Immunization {
	var out []records.Immunization
	seen, skipped := 0, 0
	for _, section := range sections {
		for _, entry := range entryElements(section, "substanceAdministration", false) {
			seen++
			name := normalize.Text(firstOf(entry,
				pathAttr("displayName", "manufacturedMaterial", "code"),
				pathText("manufacturedMaterial", "name"),
				pathAttr("displayName", "code"),
			))
			if name == nil {
				skipped++
				continue
			}
			vaxCode, normCode := codePair(entry, "manufacturedMaterial", "code")
			out = append(out, records.Immunization{
				VaccineName: *name,
				AdministrationDate: normalize.Date(firstOf(entry,
					pathAttr("value", "effectiveTime"),
					pathAttr("value", "effectiveTime", "low"),
				)),
				Manufacturer: normalize.Text(firstOf(entry,
					pathText("manufacturerOrganization", "name"),
				)),
				LotNumber:      normalize.Text(firstOf(entry, pathText("lotNumberText"))),
				VaccineCode:    vaxCode,
				NormalizedCode: normCode,
			})
		}
	}
	ex.record(records.DomainImmunizations, seen, skipped, "vaccine_name")
	return out
}
