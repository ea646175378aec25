package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chartr-dev/chartr/internal/chartr/logger"
	"github.com/chartr-dev/chartr/internal/chartr/records"
)

const dateLayout = "2006-01-02"

var domainTables = map[records.Domain]string{
	records.DomainMedications:   "medications",
	records.DomainAllergies:     "allergies",
	records.DomainProblems:      "problems",
	records.DomainProcedures:    "procedures",
	records.DomainResults:       "lab_results",
	records.DomainVitals:        "vitals",
	records.DomainImmunizations: "immunizations",
}

// ReplaceDomain swaps one domain's table contents for the batch rows in a
// single transaction: full refresh, so a rollback leaves the previous load
// intact. Returns the number of rows inserted.
func (s *Store) ReplaceDomain(ctx context.Context, domain records.Domain, batch *records.Batch) (int, error) {
	table, ok := domainTables[domain]
	if !ok {
		return 0, fmt.Errorf("unknown domain %q", domain)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin %s refresh: %w", domain, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return 0, fmt.Errorf("clear %s: %w", table, err)
	}
	count, err := s.insertDomain(ctx, tx, domain, batch)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit %s refresh: %w", domain, err)
	}
	logger.L().Debugw("domain refreshed", "domain", domain, "rows", count)
	return count, nil
}

func (s *Store) insertDomain(ctx context.Context, tx *sql.Tx, domain records.Domain, batch *records.Batch) (int, error) {
	switch domain {
	case records.DomainMedications:
		q := s.rebind(`INSERT INTO medications
			(name, dosage, frequency, route, start_date, end_date, status,
			 prescriber, drug_code, normalized_drug_code, instructions)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		for _, m := range batch.Medications {
			if _, err := tx.ExecContext(ctx, q,
				m.Name, strArg(m.Dosage), strArg(m.Frequency), strArg(m.Route),
				dateArg(m.StartDate), dateArg(m.EndDate), string(m.Status),
				strArg(m.Prescriber), strArg(m.DrugCode), strArg(m.NormalizedDrugCode),
				strArg(m.Instructions)); err != nil {
				return 0, err
			}
		}
		return len(batch.Medications), nil

	case records.DomainAllergies:
		q := s.rebind(`INSERT INTO allergies (substance, reaction, severity, status)
			VALUES (?, ?, ?, ?)`)
		for _, a := range batch.Allergies {
			if _, err := tx.ExecContext(ctx, q,
				a.Substance, strArg(a.Reaction), strArg(a.Severity), string(a.Status)); err != nil {
				return 0, err
			}
		}
		return len(batch.Allergies), nil

	case records.DomainProblems:
		q := s.rebind(`INSERT INTO problems
			(description, diagnosis_code, normalized_code, onset_date, resolution_date, status)
			VALUES (?, ?, ?, ?, ?, ?)`)
		for _, p := range batch.Problems {
			if _, err := tx.ExecContext(ctx, q,
				p.Description, strArg(p.DiagnosisCode), strArg(p.NormalizedCode),
				dateArg(p.OnsetDate), dateArg(p.ResolutionDate), string(p.Status)); err != nil {
				return 0, err
			}
		}
		return len(batch.Problems), nil

	case records.DomainProcedures:
		q := s.rebind(`INSERT INTO procedures
			(name, procedure_code, normalized_code, procedure_date, provider)
			VALUES (?, ?, ?, ?, ?)`)
		for _, p := range batch.Procedures {
			if _, err := tx.ExecContext(ctx, q,
				p.Name, strArg(p.ProcedureCode), strArg(p.NormalizedCode),
				dateArg(p.Date), strArg(p.Provider)); err != nil {
				return 0, err
			}
		}
		return len(batch.Procedures), nil

	case records.DomainResults:
		q := s.rebind(`INSERT INTO lab_results
			(test_name, test_date, value, unit, reference_range, abnormal_flag,
			 status, test_code, normalized_code, provider, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		for _, r := range batch.Results {
			if _, err := tx.ExecContext(ctx, q,
				r.TestName, dateArg(r.TestDate), strArg(r.Value), strArg(r.Unit),
				strArg(r.ReferenceRange), string(r.AbnormalFlag), string(r.Status),
				strArg(r.TestCode), strArg(r.NormalizedCode), strArg(r.Provider),
				strArg(r.Notes)); err != nil {
				return 0, err
			}
		}
		return len(batch.Results), nil

	case records.DomainVitals:
		q := s.rebind(`INSERT INTO vitals
			(measurement_date, measurement_time, height_cm, weight_kg, bmi,
			 systolic_bp, diastolic_bp, heart_rate, temperature_c,
			 respiratory_rate, oxygen_saturation)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		for _, v := range batch.Vitals {
			if _, err := tx.ExecContext(ctx, q,
				v.MeasurementDate.Format(dateLayout), strArg(v.MeasurementTime),
				floatArg(v.HeightCm), floatArg(v.WeightKg), floatArg(v.BMI),
				floatArg(v.SystolicBP), floatArg(v.DiastolicBP), floatArg(v.HeartRate),
				floatArg(v.TemperatureC), floatArg(v.RespiratoryRate),
				floatArg(v.OxygenSaturation)); err != nil {
				return 0, err
			}
		}
		return len(batch.Vitals), nil

	case records.DomainImmunizations:
		q := s.rebind(`INSERT INTO immunizations
			(vaccine_name, administration_date, manufacturer, lot_number,
			 vaccine_code, normalized_code)
			VALUES (?, ?, ?, ?, ?, ?)`)
		for _, im := range batch.Immunizations {
			if _, err := tx.ExecContext(ctx, q,
				im.VaccineName, dateArg(im.AdministrationDate), strArg(im.Manufacturer),
				strArg(im.LotNumber), strArg(im.VaccineCode), strArg(im.NormalizedCode)); err != nil {
				return 0, err
			}
		}
		return len(batch.Immunizations), nil
	}
	return 0, fmt.Errorf("unknown domain %q", domain)
}

// LoadMeta is one provenance row per domain per load run.
type LoadMeta struct {
	BatchID    string
	DocumentID string
	Domain     records.Domain
	Loaded     int
	Skipped    int
	LoadedAt   time.Time
}

func (s *Store) RecordLoad(ctx context.Context, meta LoadMeta) error {
	q := s.rebind(`INSERT INTO load_meta
		(batch_id, document_id, domain, loaded, skipped, loaded_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, q,
		meta.BatchID, meta.DocumentID, string(meta.Domain),
		meta.Loaded, meta.Skipped, meta.LoadedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record load meta: %w", err)
	}
	return nil
}

func strArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func dateArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func floatArg(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
