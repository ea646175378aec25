package analytics

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chartr-dev/chartr/internal/chartr/config"
	"github.com/chartr-dev/chartr/internal/chartr/records"
	"github.com/chartr-dev/chartr/internal/chartr/store"
)

func testEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(context.Background(), config.DatabaseCfg{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, nil), s
}

func strp(s string) *string { return &s }

func datep(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func loadResults(t *testing.T, s *store.Store, results []records.LabResult) {
	t.Helper()
	_, err := s.ReplaceDomain(context.Background(), records.DomainResults,
		&records.Batch{Results: results})
	require.NoError(t, err)
}

func TestAbnormalResultsPrecedence(t *testing.T) {
	eng, s := testEngine(t)
	loadResults(t, s, []records.LabResult{
		// Explicit flag, no range needed.
		{TestName: "Potassium", AbnormalFlag: records.FlagHigh,
			Status: records.StatusCompleted, TestDate: datep("2024-01-10")},
		// Explicit Normal even though the value is out of range.
		{TestName: "Sodium", Value: strp("128"), ReferenceRange: strp("136-145"),
			AbnormalFlag: records.FlagNormal, Status: records.StatusCompleted,
			TestDate: datep("2024-01-10")},
		// Unknown flag, value computes High.
		{TestName: "Glucose", Value: strp("140"), ReferenceRange: strp("70-99"),
			AbnormalFlag: records.FlagUnknown, Status: records.StatusCompleted,
			TestDate: datep("2024-01-10")},
		// Unknown flag, value inside range.
		{TestName: "TSH", Value: strp("2.1"), ReferenceRange: strp("0.4-4.0"),
			AbnormalFlag: records.FlagUnknown, Status: records.StatusCompleted,
			TestDate: datep("2024-01-10")},
		// Unknown flag, nothing to compute from.
		{TestName: "Urine Culture", Value: strp("negative"),
			AbnormalFlag: records.FlagUnknown, Status: records.StatusCompleted,
			TestDate: datep("2024-01-10")},
	})

	abnormal, err := eng.AbnormalResults(context.Background(), nil, nil)
	require.NoError(t, err)
	names := map[string]records.AbnormalFlag{}
	for _, r := range abnormal {
		names[r.TestName] = r.AbnormalFlag
	}
	assert.Len(t, abnormal, 2)
	assert.Equal(t, records.FlagHigh, names["Potassium"])
	assert.Equal(t, records.FlagHigh, names["Glucose"])
	assert.NotContains(t, names, "Sodium")
	assert.NotContains(t, names, "TSH")
	assert.NotContains(t, names, "Urine Culture")
}

func TestLabTrendOverStore(t *testing.T) {
	eng, s := testEngine(t)
	loadResults(t, s, []records.LabResult{
		{TestName: "Hemoglobin A1c", TestDate: datep("2023-01-10"), Value: strp("6.1"),
			Unit: strp("%"), AbnormalFlag: records.FlagUnknown, Status: records.StatusCompleted},
		{TestName: "Hemoglobin A1c", TestDate: datep("2023-07-10"), Value: strp("6.8"),
			Unit: strp("%"), AbnormalFlag: records.FlagUnknown, Status: records.StatusCompleted},
		{TestName: "Hemoglobin A1c", TestDate: datep("2024-01-10"), Value: strp("7.4"),
			Unit: strp("%"), AbnormalFlag: records.FlagHigh, Status: records.StatusCompleted},
	})

	report, err := eng.LabTrend(context.Background(), "a1c", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, TrendIncreasing, report.Direction)
	assert.Len(t, report.Points, 3)
	assert.Equal(t, "%", report.Unit)
	assert.InDelta(t, 6.1, report.First, 1e-9)
	assert.InDelta(t, 7.4, report.Last, 1e-9)
}

func TestLabTrendInsufficientData(t *testing.T) {
	eng, s := testEngine(t)
	loadResults(t, s, []records.LabResult{
		{TestName: "Hemoglobin A1c", TestDate: datep("2024-01-10"), Value: strp("6.1"),
			AbnormalFlag: records.FlagUnknown, Status: records.StatusCompleted},
	})

	report, err := eng.LabTrend(context.Background(), "a1c", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, TrendInsufficientData, report.Direction)
}

func TestLabTrendRejectsInvertedRange(t *testing.T) {
	eng, _ := testEngine(t)
	_, err := eng.LabTrend(context.Background(), "a1c", datep("2024-01-01"), datep("2023-01-01"))
	assert.ErrorIs(t, err, ErrInvertedRange)
}

func TestLabTrendHonorsUntilBound(t *testing.T) {
	eng, s := testEngine(t)
	loadResults(t, s, []records.LabResult{
		{TestName: "Hemoglobin A1c", TestDate: datep("2023-01-10"), Value: strp("6.1"),
			AbnormalFlag: records.FlagUnknown, Status: records.StatusCompleted},
		{TestName: "Hemoglobin A1c", TestDate: datep("2023-07-10"), Value: strp("6.8"),
			AbnormalFlag: records.FlagUnknown, Status: records.StatusCompleted},
		{TestName: "Hemoglobin A1c", TestDate: datep("2024-01-10"), Value: strp("7.4"),
			AbnormalFlag: records.FlagHigh, Status: records.StatusCompleted},
	})

	report, err := eng.LabTrend(context.Background(), "a1c", nil, datep("2023-12-31"))
	require.NoError(t, err)
	require.Len(t, report.Points, 2)
	assert.InDelta(t, 6.8, report.Last, 1e-9)
}

func TestListingsFilterByStatusAndWindow(t *testing.T) {
	eng, s := testEngine(t)
	ctx := context.Background()

	sys, dia := 135.0, 85.0
	batch := &records.Batch{
		Medications: []records.Medication{
			{Name: "Lisinopril", Status: records.StatusActive, StartDate: datep("2023-06-01")},
			{Name: "Warfarin", Status: records.StatusDiscontinued, StartDate: datep("2020-01-01")},
		},
		Problems: []records.Problem{
			{Description: "Hypertension", Status: records.StatusActive, OnsetDate: datep("2021-03-15")},
			{Description: "Pneumonia", Status: records.StatusCompleted, OnsetDate: datep("2023-02-10")},
		},
		Vitals: []records.Vital{
			{MeasurementDate: *datep("2024-01-10"), SystolicBP: &sys, DiastolicBP: &dia},
			{MeasurementDate: *datep("2023-06-01")},
		},
		Results: []records.LabResult{
			{TestName: "Potassium", AbnormalFlag: records.FlagHigh,
				Status: records.StatusCompleted, TestDate: datep("2024-01-10")},
			{TestName: "Potassium", AbnormalFlag: records.FlagHigh,
				Status: records.StatusCompleted, TestDate: datep("2023-01-10")},
		},
	}
	for _, d := range []records.Domain{
		records.DomainMedications, records.DomainProblems,
		records.DomainVitals, records.DomainResults,
	} {
		_, err := s.ReplaceDomain(ctx, d, batch)
		require.NoError(t, err)
	}

	discontinued, err := eng.Medications(ctx, records.StatusDiscontinued, nil, nil)
	require.NoError(t, err)
	require.Len(t, discontinued, 1)
	assert.Equal(t, "Warfarin", discontinued[0].Name)

	recentMeds, err := eng.Medications(ctx, "", datep("2023-01-01"), nil)
	require.NoError(t, err)
	require.Len(t, recentMeds, 1)
	assert.Equal(t, "Lisinopril", recentMeds[0].Name)

	resolved, err := eng.Conditions(ctx, records.StatusCompleted, datep("2023-01-01"), datep("2023-12-31"))
	require.NoError(t, err)
	require.Len(t, resolved, 1)
	assert.Equal(t, "Pneumonia", resolved[0].Description)

	vitals, err := eng.Vitals(ctx, 0, datep("2024-01-01"), nil)
	require.NoError(t, err)
	require.Len(t, vitals, 1)
	assert.Equal(t, BPStage1, vitals[0].BPCategory)

	abnormal, err := eng.AbnormalResults(ctx, datep("2023-06-01"), datep("2024-12-31"))
	require.NoError(t, err)
	require.Len(t, abnormal, 1)
	assert.Equal(t, "2024-01-10", abnormal[0].TestDate.Format("2006-01-02"))
}

func TestListingsRejectInvertedRange(t *testing.T) {
	eng, _ := testEngine(t)
	ctx := context.Background()
	from, to := datep("2024-01-01"), datep("2023-01-01")

	_, err := eng.Medications(ctx, "", from, to)
	assert.ErrorIs(t, err, ErrInvertedRange)
	_, err = eng.Conditions(ctx, "", from, to)
	assert.ErrorIs(t, err, ErrInvertedRange)
	_, err = eng.LabResults(ctx, "", from, to)
	assert.ErrorIs(t, err, ErrInvertedRange)
	_, err = eng.Vitals(ctx, 0, from, to)
	assert.ErrorIs(t, err, ErrInvertedRange)
	_, err = eng.AbnormalResults(ctx, from, to)
	assert.ErrorIs(t, err, ErrInvertedRange)
}

func TestSearchAcrossDomains(t *testing.T) {
	eng, s := testEngine(t)
	ctx := context.Background()

	batch := &records.Batch{
		Medications: []records.Medication{
			{Name: "Lisinopril", Status: records.StatusActive, StartDate: datep("2023-06-01")},
			{Name: "Metformin", Status: records.StatusActive},
		},
		Problems: []records.Problem{
			{Description: "Essential hypertension", Status: records.StatusActive},
		},
	}
	_, err := s.ReplaceDomain(ctx, records.DomainMedications, batch)
	require.NoError(t, err)
	_, err = s.ReplaceDomain(ctx, records.DomainProblems, batch)
	require.NoError(t, err)

	hits, err := eng.Search(ctx, "LISINO")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, records.DomainMedications, hits[0].Domain)
	assert.Equal(t, "Lisinopril", hits[0].Label)

	hits, err = eng.Search(ctx, "hypertension")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, records.DomainProblems, hits[0].Domain)

	hits, err = eng.Search(ctx, "warfarin")
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = eng.Search(ctx, "   ")
	assert.ErrorIs(t, err, ErrEmptyTerm)
}

func TestSearchHonorsDomainConfig(t *testing.T) {
	_, s := testEngine(t)
	ctx := context.Background()

	batch := &records.Batch{
		Medications: []records.Medication{{Name: "Lisinopril", Status: records.StatusActive}},
		Problems:    []records.Problem{{Description: "Lisinopril intolerance", Status: records.StatusActive}},
	}
	_, err := s.ReplaceDomain(ctx, records.DomainMedications, batch)
	require.NoError(t, err)
	_, err = s.ReplaceDomain(ctx, records.DomainProblems, batch)
	require.NoError(t, err)

	limited := New(s, []records.Domain{records.DomainProblems})
	hits, err := limited.Search(ctx, "lisinopril")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, records.DomainProblems, hits[0].Domain)
}

func TestTimeline(t *testing.T) {
	eng, s := testEngine(t)
	ctx := context.Background()

	batch := &records.Batch{
		Medications: []records.Medication{
			{Name: "Lisinopril", Status: records.StatusActive, StartDate: datep("2023-06-01")},
			{Name: "Undated med", Status: records.StatusActive},
		},
		Problems: []records.Problem{
			{Description: "Hypertension", Status: records.StatusActive,
				OnsetDate: datep("2021-03-15")},
		},
		Procedures: []records.Procedure{
			{Name: "Echocardiogram", Date: datep("2024-02-20")},
		},
	}
	for _, d := range []records.Domain{records.DomainMedications, records.DomainProblems, records.DomainProcedures} {
		_, err := s.ReplaceDomain(ctx, d, batch)
		require.NoError(t, err)
	}

	events, err := eng.Timeline(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, events, 3) // undated medication cannot be placed
	assert.Equal(t, "Onset of Hypertension", events[0].Label)
	assert.Equal(t, "Started Lisinopril", events[1].Label)
	assert.Equal(t, "Echocardiogram", events[2].Label)

	windowed, err := eng.Timeline(ctx, datep("2023-01-01"), datep("2023-12-31"))
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, "Started Lisinopril", windowed[0].Label)

	_, err = eng.Timeline(ctx, datep("2024-01-01"), datep("2023-01-01"))
	assert.ErrorIs(t, err, ErrInvertedRange)
}

func TestSummary(t *testing.T) {
	eng, s := testEngine(t)
	ctx := context.Background()

	sys, dia, bmi := 135.0, 85.0, 26.2
	batch := &records.Batch{
		Medications: []records.Medication{
			{Name: "Lisinopril", Status: records.StatusActive},
			{Name: "Old drug", Status: records.StatusDiscontinued},
		},
		Problems: []records.Problem{
			{Description: "Hypertension", Status: records.StatusActive},
		},
		Results: []records.LabResult{
			{TestName: "Potassium", AbnormalFlag: records.FlagHigh, Status: records.StatusCompleted},
		},
		Vitals: []records.Vital{
			{MeasurementDate: *datep("2024-01-10"), SystolicBP: &sys, DiastolicBP: &dia, BMI: &bmi},
		},
	}
	for _, d := range []records.Domain{
		records.DomainMedications, records.DomainProblems,
		records.DomainResults, records.DomainVitals,
	} {
		_, err := s.ReplaceDomain(ctx, d, batch)
		require.NoError(t, err)
	}

	summary, err := eng.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Counts[records.DomainMedications])
	assert.Equal(t, 1, summary.ActiveMedications)
	assert.Equal(t, 1, summary.ActiveProblems)
	assert.Equal(t, 1, summary.AbnormalResults)
	require.NotNil(t, summary.LatestVitals)
	assert.Equal(t, BPStage1, summary.LatestVitals.BPCategory)
	assert.Equal(t, BMIOverweight, summary.LatestVitals.BMICategory)
}
