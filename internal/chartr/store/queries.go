package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/chartr-dev/chartr/internal/chartr/records"
)

// Ordering note: "ORDER BY (col IS NULL), col DESC" sorts null dates last
// on all three backends, which do not agree on NULLS LAST syntax.

// filterClause builds an optional status filter plus a date window on
// dateCol. Rows with a NULL date cannot fall inside a window, so a bound
// excludes them.
func filterClause(dateCol string, status records.Status, from, to *time.Time) (string, []any) {
	var conds []string
	var args []any
	if status != "" {
		conds = append(conds, `status = ?`)
		args = append(args, string(status))
	}
	if from != nil {
		conds = append(conds, dateCol+` >= ?`)
		args = append(args, from.Format(dateLayout))
	}
	if to != nil {
		conds = append(conds, dateCol+` <= ?`)
		args = append(args, to.Format(dateLayout))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return ` WHERE ` + strings.Join(conds, ` AND `), args
}

// Medications filters by exact status when status is non-empty and by a
// start-date window when either bound is set.
func (s *Store) Medications(ctx context.Context, status records.Status, from, to *time.Time) ([]records.Medication, error) {
	q := `SELECT name, dosage, frequency, route, start_date, end_date, status,
		prescriber, drug_code, normalized_drug_code, instructions
		FROM medications`
	where, args := filterClause("start_date", status, from, to)
	q += where
	q += ` ORDER BY (start_date IS NULL), start_date DESC, name ASC`
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("query medications: %w", err)
	}
	defer rows.Close()

	var out []records.Medication
	for rows.Next() {
		var m records.Medication
		var dosage, frequency, route, start, end, prescriber, code, norm, instr sql.NullString
		var status string
		if err := rows.Scan(&m.Name, &dosage, &frequency, &route, &start, &end,
			&status, &prescriber, &code, &norm, &instr); err != nil {
			return nil, fmt.Errorf("scan medication: %w", err)
		}
		m.Dosage = fromNull(dosage)
		m.Frequency = fromNull(frequency)
		m.Route = fromNull(route)
		m.StartDate = fromNullDate(start)
		m.EndDate = fromNullDate(end)
		m.Status = records.Status(status)
		m.Prescriber = fromNull(prescriber)
		m.DrugCode = fromNull(code)
		m.NormalizedDrugCode = fromNull(norm)
		m.Instructions = fromNull(instr)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) Allergies(ctx context.Context) ([]records.Allergy, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT substance, reaction, severity, status FROM allergies ORDER BY substance ASC`)
	if err != nil {
		return nil, fmt.Errorf("query allergies: %w", err)
	}
	defer rows.Close()

	var out []records.Allergy
	for rows.Next() {
		var a records.Allergy
		var reaction, severity sql.NullString
		var status string
		if err := rows.Scan(&a.Substance, &reaction, &severity, &status); err != nil {
			return nil, fmt.Errorf("scan allergy: %w", err)
		}
		a.Reaction = fromNull(reaction)
		a.Severity = fromNull(severity)
		a.Status = records.Status(status)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Problems filters by exact status when status is non-empty and by an
// onset-date window when either bound is set.
func (s *Store) Problems(ctx context.Context, status records.Status, from, to *time.Time) ([]records.Problem, error) {
	q := `SELECT description, diagnosis_code, normalized_code, onset_date,
		resolution_date, status FROM problems`
	where, args := filterClause("onset_date", status, from, to)
	q += where
	q += ` ORDER BY (onset_date IS NULL), onset_date DESC, description ASC`
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("query problems: %w", err)
	}
	defer rows.Close()

	var out []records.Problem
	for rows.Next() {
		var p records.Problem
		var code, norm, onset, resolution sql.NullString
		var status string
		if err := rows.Scan(&p.Description, &code, &norm, &onset, &resolution, &status); err != nil {
			return nil, fmt.Errorf("scan problem: %w", err)
		}
		p.DiagnosisCode = fromNull(code)
		p.NormalizedCode = fromNull(norm)
		p.OnsetDate = fromNullDate(onset)
		p.ResolutionDate = fromNullDate(resolution)
		p.Status = records.Status(status)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) Procedures(ctx context.Context) ([]records.Procedure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, procedure_code, normalized_code, procedure_date, provider
		FROM procedures
		ORDER BY (procedure_date IS NULL), procedure_date DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query procedures: %w", err)
	}
	defer rows.Close()

	var out []records.Procedure
	for rows.Next() {
		var p records.Procedure
		var code, norm, date, provider sql.NullString
		if err := rows.Scan(&p.Name, &code, &norm, &date, &provider); err != nil {
			return nil, fmt.Errorf("scan procedure: %w", err)
		}
		p.ProcedureCode = fromNull(code)
		p.NormalizedCode = fromNull(norm)
		p.Date = fromNullDate(date)
		p.Provider = fromNull(provider)
		out = append(out, p)
	}
	return out, rows.Err()
}

// LabResults filters by case-insensitive test-name substring when testName
// is non-empty and by a test-date window when either bound is set. Newest
// first, undated rows last.
func (s *Store) LabResults(ctx context.Context, testName string, since, until *time.Time) ([]records.LabResult, error) {
	q := `SELECT test_name, test_date, value, unit, reference_range,
		abnormal_flag, status, test_code, normalized_code, provider, notes
		FROM lab_results`
	var conds []string
	var args []any
	if testName != "" {
		conds = append(conds, `LOWER(test_name) LIKE ?`)
		args = append(args, "%"+strings.ToLower(testName)+"%")
	}
	if since != nil {
		conds = append(conds, `test_date >= ?`)
		args = append(args, since.Format(dateLayout))
	}
	if until != nil {
		conds = append(conds, `test_date <= ?`)
		args = append(args, until.Format(dateLayout))
	}
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	q += ` ORDER BY (test_date IS NULL), test_date DESC, test_name ASC`
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("query lab results: %w", err)
	}
	defer rows.Close()
	return scanLabResults(rows)
}

// AbnormalCandidates returns lab rows that are explicitly abnormal plus
// rows with an Unknown flag, which the caller may resolve by computing
// against the reference range. Explicit Normal rows never qualify. An
// optional test-date window narrows the result.
func (s *Store) AbnormalCandidates(ctx context.Context, from, to *time.Time) ([]records.LabResult, error) {
	q := `SELECT test_name, test_date, value, unit, reference_range,
			abnormal_flag, status, test_code, normalized_code, provider, notes
		FROM lab_results
		WHERE abnormal_flag <> 'Normal'`
	var args []any
	if from != nil {
		q += ` AND test_date >= ?`
		args = append(args, from.Format(dateLayout))
	}
	if to != nil {
		q += ` AND test_date <= ?`
		args = append(args, to.Format(dateLayout))
	}
	q += ` ORDER BY (test_date IS NULL), test_date DESC, test_name ASC`
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("query abnormal candidates: %w", err)
	}
	defer rows.Close()
	return scanLabResults(rows)
}

func scanLabResults(rows *sql.Rows) ([]records.LabResult, error) {
	var out []records.LabResult
	for rows.Next() {
		var r records.LabResult
		var date, value, unit, refRange, code, norm, provider, notes sql.NullString
		var flag, status string
		if err := rows.Scan(&r.TestName, &date, &value, &unit, &refRange,
			&flag, &status, &code, &norm, &provider, &notes); err != nil {
			return nil, fmt.Errorf("scan lab result: %w", err)
		}
		r.TestDate = fromNullDate(date)
		r.Value = fromNull(value)
		r.Unit = fromNull(unit)
		r.ReferenceRange = fromNull(refRange)
		r.AbnormalFlag = records.AbnormalFlag(flag)
		r.Status = records.Status(status)
		r.TestCode = fromNull(code)
		r.NormalizedCode = fromNull(norm)
		r.Provider = fromNull(provider)
		r.Notes = fromNull(notes)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Vitals returns measurement rows newest first, filtered to a
// measurement-date window when either bound is set and capped at limit
// when limit is positive.
func (s *Store) Vitals(ctx context.Context, limit int, from, to *time.Time) ([]records.Vital, error) {
	q := `SELECT measurement_date, measurement_time, height_cm, weight_kg, bmi,
		systolic_bp, diastolic_bp, heart_rate, temperature_c,
		respiratory_rate, oxygen_saturation
		FROM vitals`
	where, args := filterClause("measurement_date", "", from, to)
	q += where
	q += ` ORDER BY measurement_date DESC`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("query vitals: %w", err)
	}
	defer rows.Close()

	var out []records.Vital
	for rows.Next() {
		var v records.Vital
		var date string
		var tm sql.NullString
		var height, weight, bmi, sys, dia, hr, temp, rr, spo2 sql.NullFloat64
		if err := rows.Scan(&date, &tm, &height, &weight, &bmi,
			&sys, &dia, &hr, &temp, &rr, &spo2); err != nil {
			return nil, fmt.Errorf("scan vital: %w", err)
		}
		parsed, err := time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("parse vital date %q: %w", date, err)
		}
		v.MeasurementDate = parsed
		v.MeasurementTime = fromNull(tm)
		v.HeightCm = fromNullFloat(height)
		v.WeightKg = fromNullFloat(weight)
		v.BMI = fromNullFloat(bmi)
		v.SystolicBP = fromNullFloat(sys)
		v.DiastolicBP = fromNullFloat(dia)
		v.HeartRate = fromNullFloat(hr)
		v.TemperatureC = fromNullFloat(temp)
		v.RespiratoryRate = fromNullFloat(rr)
		v.OxygenSaturation = fromNullFloat(spo2)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) Immunizations(ctx context.Context) ([]records.Immunization, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT vaccine_name, administration_date, manufacturer, lot_number,
			vaccine_code, normalized_code
		FROM immunizations
		ORDER BY (administration_date IS NULL), administration_date DESC, vaccine_name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query immunizations: %w", err)
	}
	defer rows.Close()

	var out []records.Immunization
	for rows.Next() {
		var im records.Immunization
		var date, manufacturer, lot, code, norm sql.NullString
		if err := rows.Scan(&im.VaccineName, &date, &manufacturer, &lot, &code, &norm); err != nil {
			return nil, fmt.Errorf("scan immunization: %w", err)
		}
		im.AdministrationDate = fromNullDate(date)
		im.Manufacturer = fromNull(manufacturer)
		im.LotNumber = fromNull(lot)
		im.VaccineCode = fromNull(code)
		im.NormalizedCode = fromNull(norm)
		out = append(out, im)
	}
	return out, rows.Err()
}

// Counts returns the current row count of every domain table.
func (s *Store) Counts(ctx context.Context) (map[records.Domain]int, error) {
	counts := make(map[records.Domain]int, len(domainTables))
	for domain, table := range domainTables {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		counts[domain] = n
	}
	return counts, nil
}

func fromNull(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func fromNullFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}

func fromNullDate(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return nil
	}
	return &t
}
