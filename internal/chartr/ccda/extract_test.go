package ccda

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartr-dev/chartr/internal/chartr/records"
)

func extractFixture(t *testing.T, body string) *Extraction {
	t.Helper()
	doc, err := Parse([]byte(`<?xml version="1.0"?>
		<ClinicalDocument xmlns="urn:hl7-org:v3">
			<component><structuredBody>` + body + `</structuredBody></component>
		</ClinicalDocument>`))
	require.NoError(t, err)
	return Extract(doc, DefaultSectionTable())
}

func TestExtractMedications(t *testing.T) {
	ex := extractFixture(t, `
		<component><section>
			<code code="10160-0" codeSystem="2.16.840.1.113883.6.1"/>
			<title>Medications</title>
			<entry><substanceAdministration>
				<statusCode code="active"/>
				<effectiveTime>
					<low value="20230601"/>
					<high value="20240901"/>
				</effectiveTime>
				<effectiveTime>
					<period value="24" unit="h"/>
				</effectiveTime>
				<routeCode code="C38288" displayName="Oral"/>
				<doseQuantity value="1"/>
				<consumable><manufacturedProduct><manufacturedMaterial>
					<code code="314076" codeSystem="2.16.840.1.113883.6.88" displayName="Lisinopril 10 MG Oral Tablet"/>
					<name>Lisinopril 10mg</name>
				</manufacturedMaterial></manufacturedProduct></consumable>
			</substanceAdministration></entry>
			<entry><substanceAdministration>
				<statusCode code="active"/>
			</substanceAdministration></entry>
		</section></component>`)

	require.Len(t, ex.Batch.Medications, 1)
	m := ex.Batch.Medications[0]
	assert.Equal(t, "Lisinopril 10mg", m.Name)
	assert.Equal(t, records.StatusActive, m.Status)
	require.NotNil(t, m.StartDate)
	assert.Equal(t, "2023-06-01", m.StartDate.Format("2006-01-02"))
	require.NotNil(t, m.EndDate)
	assert.Equal(t, "2024-09-01", m.EndDate.Format("2006-01-02"))
	require.NotNil(t, m.Frequency)
	assert.Equal(t, "every 24 h", *m.Frequency)
	require.NotNil(t, m.Route)
	assert.Equal(t, "Oral", *m.Route)
	require.NotNil(t, m.DrugCode)
	assert.Equal(t, "314076", *m.DrugCode)
	require.NotNil(t, m.NormalizedDrugCode)
	assert.Equal(t, "RXNORM:314076", *m.NormalizedDrugCode)

	// The nameless second entry is skipped, not fatal.
	stats := ex.Stats[records.DomainMedications]
	assert.Equal(t, 2, stats.Seen)
	assert.Equal(t, 1, stats.Skipped)
	assert.NotEmpty(t, ex.Warnings)
}

func TestExtractAllergies(t *testing.T) {
	ex := extractFixture(t, `
		<component><section>
			<code code="48765-2" codeSystem="2.16.840.1.113883.6.1"/>
			<title>Allergies</title>
			<entry><act><entryRelationship><observation>
				<statusCode code="active"/>
				<participant><participantRole><playingEntity>
					<name>Penicillin</name>
				</playingEntity></participantRole></participant>
				<entryRelationship><observation>
					<code code="ASSERTION" codeSystem="2.16.840.1.113883.5.4"/>
					<value displayName="Hives" codeSystem="2.16.840.1.113883.6.96"/>
				</observation></entryRelationship>
				<entryRelationship><observation>
					<code code="SEV" codeSystem="2.16.840.1.113883.5.4" displayName="Severity"/>
					<value displayName="Moderate" codeSystem="2.16.840.1.113883.6.96"/>
				</observation></entryRelationship>
			</observation></entryRelationship></act></entry>
		</section></component>`)

	require.Len(t, ex.Batch.Allergies, 1)
	a := ex.Batch.Allergies[0]
	assert.Equal(t, "Penicillin", a.Substance)
	require.NotNil(t, a.Reaction)
	assert.Equal(t, "Hives", *a.Reaction)
	require.NotNil(t, a.Severity)
	assert.Equal(t, "Moderate", *a.Severity)
	assert.Equal(t, records.StatusActive, a.Status)
}

func TestExtractProblems(t *testing.T) {
	ex := extractFixture(t, `
		<component><section>
			<code code="11450-4" codeSystem="2.16.840.1.113883.6.1"/>
			<title>Problem List</title>
			<entry><act><entryRelationship><observation>
				<statusCode code="active"/>
				<effectiveTime><low value="2021"/></effectiveTime>
				<value code="I10" codeSystem="2.16.840.1.113883.6.90" displayName="Essential hypertension"/>
			</observation></entryRelationship></act></entry>
		</section></component>`)

	require.Len(t, ex.Batch.Problems, 1)
	p := ex.Batch.Problems[0]
	assert.Equal(t, "Essential hypertension", p.Description)
	require.NotNil(t, p.DiagnosisCode)
	assert.Equal(t, "I10", *p.DiagnosisCode)
	require.NotNil(t, p.NormalizedCode)
	assert.Equal(t, "ICD10:I10", *p.NormalizedCode)
	// Partial onset year snaps to January 1.
	require.NotNil(t, p.OnsetDate)
	assert.Equal(t, "2021-01-01", p.OnsetDate.Format("2006-01-02"))
	assert.Nil(t, p.ResolutionDate)
}

func TestExtractResultsFlagHandling(t *testing.T) {
	ex := extractFixture(t, `
		<component><section>
			<code code="30954-2" codeSystem="2.16.840.1.113883.6.1"/>
			<title>Results</title>
			<entry><organizer>
				<component><observation>
					<code code="4548-4" codeSystem="2.16.840.1.113883.6.1" displayName="Hemoglobin A1c"/>
					<statusCode code="completed"/>
					<effectiveTime value="20240110"/>
					<value value="7.2" unit="%"/>
					<referenceRange><observationRange><text>4.0-5.6</text></observationRange></referenceRange>
				</observation></component>
				<component><observation>
					<code code="2823-3" codeSystem="2.16.840.1.113883.6.1" displayName="Potassium"/>
					<statusCode code="completed"/>
					<effectiveTime value="20240110"/>
					<value value="5.9" unit="mmol/L"/>
					<interpretationCode code="H"/>
					<referenceRange><observationRange><text>3.5-5.1</text></observationRange></referenceRange>
				</observation></component>
				<component><observation>
					<code code="2951-2" codeSystem="2.16.840.1.113883.6.1" displayName="Sodium"/>
					<statusCode code="completed"/>
					<effectiveTime value="20240110"/>
					<value value="128" unit="mmol/L"/>
					<interpretationCode code="N"/>
					<referenceRange><observationRange><text>136-145</text></observationRange></referenceRange>
				</observation></component>
			</organizer></entry>
		</section></component>`)

	require.Len(t, ex.Batch.Results, 3)
	byName := map[string]records.LabResult{}
	for _, r := range ex.Batch.Results {
		byName[r.TestName] = r
	}

	// No explicit flag: derived High from value vs range.
	a1c := byName["Hemoglobin A1c"]
	assert.Equal(t, records.FlagHigh, a1c.AbnormalFlag)
	require.NotNil(t, a1c.Value)
	assert.Equal(t, "7.2", *a1c.Value)
	require.NotNil(t, a1c.NormalizedCode)
	assert.Equal(t, "LOINC:4548-4", *a1c.NormalizedCode)

	// Explicit flag is authoritative.
	assert.Equal(t, records.FlagHigh, byName["Potassium"].AbnormalFlag)

	// Explicit Normal is never overridden, even though 128 < 136.
	assert.Equal(t, records.FlagNormal, byName["Sodium"].AbnormalFlag)
}

func TestExtractVitalsGroupsByDate(t *testing.T) {
	ex := extractFixture(t, `
		<component><section>
			<code code="8716-3" codeSystem="2.16.840.1.113883.6.1"/>
			<title>Vital Signs</title>
			<entry><organizer>
				<component><observation>
					<code code="8302-2" codeSystem="2.16.840.1.113883.6.1" displayName="Body Height"/>
					<effectiveTime value="20240110093000"/>
					<value value="175" unit="cm"/>
				</observation></component>
				<component><observation>
					<code code="29463-7" codeSystem="2.16.840.1.113883.6.1" displayName="Body Weight"/>
					<effectiveTime value="20240110093000"/>
					<value value="70" unit="kg"/>
				</observation></component>
				<component><observation>
					<code code="8480-6" codeSystem="2.16.840.1.113883.6.1" displayName="Systolic Blood Pressure"/>
					<effectiveTime value="20240110093000"/>
					<value value="135" unit="mm[Hg]"/>
				</observation></component>
				<component><observation>
					<code code="8462-4" codeSystem="2.16.840.1.113883.6.1" displayName="Diastolic Blood Pressure"/>
					<effectiveTime value="20240110093000"/>
					<value value="85" unit="mm[Hg]"/>
				</observation></component>
				<component><observation>
					<code code="8867-4" codeSystem="2.16.840.1.113883.6.1" displayName="Heart Rate"/>
					<value value="72" unit="/min"/>
				</observation></component>
			</organizer></entry>
		</section></component>`)

	// Four dated observations collapse into one row; the undated heart
	// rate is skipped.
	require.Len(t, ex.Batch.Vitals, 1)
	v := ex.Batch.Vitals[0]
	assert.Equal(t, "2024-01-10", v.MeasurementDate.Format("2006-01-02"))
	require.NotNil(t, v.MeasurementTime)
	assert.Equal(t, "09:30:00", *v.MeasurementTime)
	require.NotNil(t, v.HeightCm)
	assert.InDelta(t, 175, *v.HeightCm, 0.01)
	require.NotNil(t, v.WeightKg)
	assert.InDelta(t, 70, *v.WeightKg, 0.01)
	require.NotNil(t, v.SystolicBP)
	assert.InDelta(t, 135, *v.SystolicBP, 0.01)

	// BMI was not stated, so it is derived from height and weight.
	require.NotNil(t, v.BMI)
	assert.InDelta(t, 22.9, *v.BMI, 0.05)

	// Seen counts at row granularity: one grouped date plus the skipped
	// observation, so loaded + skipped = seen.
	stats := ex.Stats[records.DomainVitals]
	assert.Equal(t, 2, stats.Seen)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, stats.Seen, len(ex.Batch.Vitals)+stats.Skipped)
}

func TestExtractVitalsAccountingIdentity(t *testing.T) {
	ex := extractFixture(t, `
		<component><section>
			<code code="8716-3" codeSystem="2.16.840.1.113883.6.1"/>
			<title>Vital Signs</title>
			<entry><organizer>
				<component><observation>
					<code code="8480-6" codeSystem="2.16.840.1.113883.6.1" displayName="Systolic Blood Pressure"/>
					<effectiveTime value="20240110"/>
					<value value="135" unit="mm[Hg]"/>
				</observation></component>
				<component><observation>
					<code code="8462-4" codeSystem="2.16.840.1.113883.6.1" displayName="Diastolic Blood Pressure"/>
					<effectiveTime value="20240110"/>
					<value value="85" unit="mm[Hg]"/>
				</observation></component>
				<component><observation>
					<code code="8867-4" codeSystem="2.16.840.1.113883.6.1" displayName="Heart Rate"/>
					<effectiveTime value="20240110"/>
					<value value="72" unit="/min"/>
				</observation></component>
			</organizer></entry>
		</section></component>`)

	// Three same-date observations fold into one row and the accounting
	// follows the rows, not the raw observations.
	stats := ex.Stats[records.DomainVitals]
	require.Len(t, ex.Batch.Vitals, 1)
	assert.Equal(t, 1, stats.Seen)
	assert.Equal(t, 0, stats.Skipped)
	assert.Equal(t, stats.Seen, len(ex.Batch.Vitals)+stats.Skipped)
}

func TestExtractImmunizations(t *testing.T) {
	ex := extractFixture(t, `
		<component><section>
			<code code="11369-6" codeSystem="2.16.840.1.113883.6.1"/>
			<title>Immunizations</title>
			<entry><substanceAdministration>
				<statusCode code="completed"/>
				<effectiveTime value="20231015"/>
				<consumable><manufacturedProduct>
					<manufacturedMaterial>
						<code code="141" codeSystem="2.16.840.1.113883.12.292" displayName="Influenza, seasonal"/>
						<lotNumberText>AB1234</lotNumberText>
					</manufacturedMaterial>
					<manufacturerOrganization><name>Sanofi Pasteur</name></manufacturerOrganization>
				</manufacturedProduct></consumable>
			</substanceAdministration></entry>
		</section></component>`)

	require.Len(t, ex.Batch.Immunizations, 1)
	im := ex.Batch.Immunizations[0]
	assert.Equal(t, "Influenza, seasonal", im.VaccineName)
	require.NotNil(t, im.AdministrationDate)
	assert.Equal(t, "2023-10-15", im.AdministrationDate.Format("2006-01-02"))
	require.NotNil(t, im.Manufacturer)
	assert.Equal(t, "Sanofi Pasteur", *im.Manufacturer)
	require.NotNil(t, im.LotNumber)
	assert.Equal(t, "AB1234", *im.LotNumber)
	require.NotNil(t, im.NormalizedCode)
	assert.Equal(t, "CVX:141", *im.NormalizedCode)
}

func TestExtractEmptyBodyYieldsZeroCounts(t *testing.T) {
	ex := extractFixture(t, ``)
	for _, domain := range records.AllDomains {
		assert.Zero(t, ex.Batch.Count(domain))
		assert.Zero(t, ex.Stats[domain].Seen)
	}
	assert.Empty(t, ex.Warnings)
}
