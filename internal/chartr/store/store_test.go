package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartr-dev/chartr/internal/chartr/config"
	"github.com/chartr-dev/chartr/internal/chartr/records"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), config.DatabaseCfg{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func strp(s string) *string { return &s }

func datep(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseCfg{Driver: "oracle"})
	assert.Error(t, err)
}

func TestOpenRequiresDSNForServerDrivers(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseCfg{Driver: "postgres"})
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	s := &Store{driver: "postgres"}
	assert.Equal(t, "INSERT INTO t (a, b) VALUES ($1, $2)",
		s.rebind("INSERT INTO t (a, b) VALUES (?, ?)"))
	s.driver = "sqlite"
	assert.Equal(t, "SELECT ?", s.rebind("SELECT ?"))
}

func TestReplaceDomainIsFullRefresh(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first := &records.Batch{Medications: []records.Medication{
		{Name: "Lisinopril", Status: records.StatusActive, StartDate: datep("2023-06-01")},
		{Name: "Metformin", Status: records.StatusActive, StartDate: datep("2022-01-15")},
	}}
	n, err := s.ReplaceDomain(ctx, records.DomainMedications, first)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// A second load replaces, never appends.
	second := &records.Batch{Medications: []records.Medication{
		{Name: "Atorvastatin", Status: records.StatusDiscontinued},
	}}
	n, err = s.ReplaceDomain(ctx, records.DomainMedications, second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	meds, err := s.Medications(ctx, "", nil, nil)
	require.NoError(t, err)
	require.Len(t, meds, 1)
	assert.Equal(t, "Atorvastatin", meds[0].Name)
	assert.Equal(t, records.StatusDiscontinued, meds[0].Status)
	assert.Nil(t, meds[0].StartDate)
}

func TestMedicationsOrderingAndFilters(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	batch := &records.Batch{Medications: []records.Medication{
		{Name: "Undated", Status: records.StatusActive},
		{Name: "Older", Status: records.StatusDiscontinued, StartDate: datep("2020-03-01")},
		{Name: "Newer", Status: records.StatusActive, StartDate: datep("2024-02-01")},
	}}
	_, err := s.ReplaceDomain(ctx, records.DomainMedications, batch)
	require.NoError(t, err)

	meds, err := s.Medications(ctx, "", nil, nil)
	require.NoError(t, err)
	require.Len(t, meds, 3)
	// Newest first, undated rows last.
	assert.Equal(t, "Newer", meds[0].Name)
	assert.Equal(t, "Older", meds[1].Name)
	assert.Equal(t, "Undated", meds[2].Name)

	active, err := s.Medications(ctx, records.StatusActive, nil, nil)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	discontinued, err := s.Medications(ctx, records.StatusDiscontinued, nil, nil)
	require.NoError(t, err)
	require.Len(t, discontinued, 1)
	assert.Equal(t, "Older", discontinued[0].Name)

	// A date bound excludes undated rows.
	windowed, err := s.Medications(ctx, "", datep("2021-01-01"), datep("2024-12-31"))
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, "Newer", windowed[0].Name)
}

func TestProblemsStatusAndWindowFilters(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	batch := &records.Batch{Problems: []records.Problem{
		{Description: "Hypertension", Status: records.StatusActive, OnsetDate: datep("2019-05-01")},
		{Description: "Pneumonia", Status: records.StatusCompleted, OnsetDate: datep("2023-02-10")},
		{Description: "Undated rash", Status: records.StatusActive},
	}}
	_, err := s.ReplaceDomain(ctx, records.DomainProblems, batch)
	require.NoError(t, err)

	resolved, err := s.Problems(ctx, records.StatusCompleted, nil, nil)
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "Pneumonia", resolved[0].Description)

	recent, err := s.Problems(ctx, "", datep("2022-01-01"), nil)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "Pneumonia", recent[0].Description)
}

func TestLabResultsFilters(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	batch := &records.Batch{Results: []records.LabResult{
		{TestName: "Hemoglobin A1c", TestDate: datep("2024-01-10"), Value: strp("7.2"),
			AbnormalFlag: records.FlagHigh, Status: records.StatusCompleted},
		{TestName: "Hemoglobin A1c", TestDate: datep("2023-06-10"), Value: strp("6.8"),
			AbnormalFlag: records.FlagHigh, Status: records.StatusCompleted},
		{TestName: "Glucose", TestDate: datep("2024-01-10"), Value: strp("95"),
			AbnormalFlag: records.FlagNormal, Status: records.StatusCompleted},
	}}
	_, err := s.ReplaceDomain(ctx, records.DomainResults, batch)
	require.NoError(t, err)

	a1c, err := s.LabResults(ctx, "a1c", nil, nil)
	require.NoError(t, err)
	assert.Len(t, a1c, 2)

	recent, err := s.LabResults(ctx, "a1c", datep("2023-12-31"), nil)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "2024-01-10", recent[0].TestDate.Format("2006-01-02"))

	older, err := s.LabResults(ctx, "a1c", nil, datep("2023-12-31"))
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, "2023-06-10", older[0].TestDate.Format("2006-01-02"))

	candidates, err := s.AbnormalCandidates(ctx, nil, nil)
	require.NoError(t, err)
	assert.Len(t, candidates, 2) // explicit Normal excluded

	windowed, err := s.AbnormalCandidates(ctx, datep("2024-01-01"), datep("2024-12-31"))
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, "2024-01-10", windowed[0].TestDate.Format("2006-01-02"))
}

func TestVitalsRoundTripAndLimit(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	bmi := 22.9
	sys, dia := 135.0, 85.0
	batch := &records.Batch{Vitals: []records.Vital{
		{MeasurementDate: *datep("2024-01-10"), SystolicBP: &sys, DiastolicBP: &dia, BMI: &bmi},
		{MeasurementDate: *datep("2023-12-01")},
		{MeasurementDate: *datep("2023-11-01")},
	}}
	_, err := s.ReplaceDomain(ctx, records.DomainVitals, batch)
	require.NoError(t, err)

	latest, err := s.Vitals(ctx, 1, nil, nil)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "2024-01-10", latest[0].MeasurementDate.Format("2006-01-02"))
	require.NotNil(t, latest[0].BMI)
	assert.InDelta(t, 22.9, *latest[0].BMI, 1e-9)
	assert.Nil(t, latest[0].HeartRate)

	all, err := s.Vitals(ctx, 0, nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	windowed, err := s.Vitals(ctx, 0, datep("2023-11-15"), datep("2023-12-31"))
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, "2023-12-01", windowed[0].MeasurementDate.Format("2006-01-02"))
}

func TestCountsAndLoadMeta(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	batch := &records.Batch{
		Allergies: []records.Allergy{{Substance: "Penicillin", Status: records.StatusActive}},
		Problems: []records.Problem{
			{Description: "Hypertension", Status: records.StatusActive},
			{Description: "Asthma", Status: records.StatusActive},
		},
	}
	_, err := s.ReplaceDomain(ctx, records.DomainAllergies, batch)
	require.NoError(t, err)
	_, err = s.ReplaceDomain(ctx, records.DomainProblems, batch)
	require.NoError(t, err)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[records.DomainAllergies])
	assert.Equal(t, 2, counts[records.DomainProblems])
	assert.Equal(t, 0, counts[records.DomainMedications])

	err = s.RecordLoad(ctx, LoadMeta{
		BatchID:  "batch-1",
		Domain:   records.DomainAllergies,
		Loaded:   1,
		LoadedAt: time.Now(),
	})
	assert.NoError(t, err)
}
