package analytics

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/chartr-dev/chartr/internal/chartr/logger"
	"github.com/chartr-dev/chartr/internal/chartr/normalize"
	"github.com/chartr-dev/chartr/internal/chartr/records"
	"github.com/chartr-dev/chartr/internal/chartr/store"
)

// ErrInvertedRange rejects a query whose until date precedes its since date.
var ErrInvertedRange = errors.New("date range: until precedes since")

// ErrEmptyTerm rejects a search with no term.
var ErrEmptyTerm = errors.New("search: empty term")

// Engine runs read-side operations against a store. Zero rows is a normal
// answer everywhere: callers get empty slices, never errors, for no data.
type Engine struct {
	st      *store.Store
	domains []records.Domain
}

// New builds an engine. searchDomains limits Search and Timeline to a
// subset of domains; nil means all.
func New(st *store.Store, searchDomains []records.Domain) *Engine {
	domains := searchDomains
	if len(domains) == 0 {
		domains = records.AllDomains
	}
	return &Engine{st: st, domains: domains}
}

func (e *Engine) searches(domain records.Domain) bool {
	for _, d := range e.domains {
		if d == domain {
			return true
		}
	}
	return false
}

// validWindow rejects an inverted date window before it reaches SQL.
func validWindow(from, to *time.Time) error {
	if from != nil && to != nil && to.Before(*from) {
		return ErrInvertedRange
	}
	return nil
}

// Medications lists stored medications, optionally filtered to an exact
// status and a start-date window.
func (e *Engine) Medications(ctx context.Context, status records.Status, from, to *time.Time) ([]records.Medication, error) {
	if err := validWindow(from, to); err != nil {
		return nil, err
	}
	return e.st.Medications(ctx, status, from, to)
}

// Conditions lists stored problems, optionally filtered to an exact
// status and an onset-date window.
func (e *Engine) Conditions(ctx context.Context, status records.Status, from, to *time.Time) ([]records.Problem, error) {
	if err := validWindow(from, to); err != nil {
		return nil, err
	}
	return e.st.Problems(ctx, status, from, to)
}

func (e *Engine) Allergies(ctx context.Context) ([]records.Allergy, error) {
	return e.st.Allergies(ctx)
}

func (e *Engine) Procedures(ctx context.Context) ([]records.Procedure, error) {
	return e.st.Procedures(ctx)
}

func (e *Engine) Immunizations(ctx context.Context) ([]records.Immunization, error) {
	return e.st.Immunizations(ctx)
}

func (e *Engine) LabResults(ctx context.Context, testName string, since, until *time.Time) ([]records.LabResult, error) {
	if err := validWindow(since, until); err != nil {
		return nil, err
	}
	return e.st.LabResults(ctx, testName, since, until)
}

// LabTrend computes the trend for one test over an optional date window.
func (e *Engine) LabTrend(ctx context.Context, testName string, since, until *time.Time) (*TrendReport, error) {
	if err := validWindow(since, until); err != nil {
		return nil, err
	}
	results, err := e.st.LabResults(ctx, testName, since, until)
	if err != nil {
		return nil, err
	}

	report := &TrendReport{TestName: testName, Points: trendPoints(results)}
	for _, r := range results {
		if r.Unit != nil {
			report.Unit = *r.Unit
			break
		}
	}
	computeTrend(report)
	logger.L().Debugw("lab trend computed",
		"test", testName,
		"points", len(report.Points),
		"direction", report.Direction)
	return report, nil
}

// VitalReading is a stored measurement with its derived classifications.
type VitalReading struct {
	records.Vital
	BPCategory  BPCategory  `json:"bp_category"`
	BMICategory BMICategory `json:"bmi_category"`
}

// Vitals returns the newest measurement rows, classified. limit <= 0 means
// all rows; from/to bound the measurement date when set.
func (e *Engine) Vitals(ctx context.Context, limit int, from, to *time.Time) ([]VitalReading, error) {
	if err := validWindow(from, to); err != nil {
		return nil, err
	}
	rows, err := e.st.Vitals(ctx, limit, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]VitalReading, 0, len(rows))
	for _, v := range rows {
		out = append(out, VitalReading{
			Vital:       v,
			BPCategory:  ClassifyBP(v.SystolicBP, v.DiastolicBP),
			BMICategory: ClassifyBMI(v.BMI),
		})
	}
	return out, nil
}

// AbnormalResults returns lab rows that are abnormal. An explicit source
// flag is authoritative both ways: flagged rows qualify as-is and explicit
// Normal rows never appear. Rows with an Unknown flag qualify only when
// the value computes abnormal against the reference range; the returned
// row carries the computed flag. An optional test-date window narrows
// the result.
func (e *Engine) AbnormalResults(ctx context.Context, from, to *time.Time) ([]records.LabResult, error) {
	if err := validWindow(from, to); err != nil {
		return nil, err
	}
	candidates, err := e.st.AbnormalCandidates(ctx, from, to)
	if err != nil {
		return nil, err
	}
	var out []records.LabResult
	for _, r := range candidates {
		switch r.AbnormalFlag {
		case records.FlagHigh, records.FlagLow, records.FlagCritical:
			out = append(out, r)
		case records.FlagUnknown:
			value, refRange := "", ""
			if r.Value != nil {
				value = *r.Value
			}
			if r.ReferenceRange != nil {
				refRange = *r.ReferenceRange
			}
			derived := normalize.DeriveFlag(value, refRange)
			if derived == records.FlagHigh || derived == records.FlagLow {
				r.AbnormalFlag = derived
				out = append(out, r)
			}
		}
	}
	return out, nil
}

// SearchHit is one row matched by a cross-domain search.
type SearchHit struct {
	Domain records.Domain `json:"domain"`
	Label  string         `json:"label"`
	Detail string         `json:"detail,omitempty"`
	Date   *time.Time     `json:"date,omitempty"`
}

// Search matches term case-insensitively as a substring against the
// descriptive text of every configured domain.
func (e *Engine) Search(ctx context.Context, term string) ([]SearchHit, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, ErrEmptyTerm
	}
	lower := strings.ToLower(term)
	match := func(fields ...*string) bool {
		for _, f := range fields {
			if f != nil && strings.Contains(strings.ToLower(*f), lower) {
				return true
			}
		}
		return false
	}
	matchStr := func(s string) bool { return strings.Contains(strings.ToLower(s), lower) }

	var hits []SearchHit
	if e.searches(records.DomainMedications) {
		meds, err := e.st.Medications(ctx, "", nil, nil)
		if err != nil {
			return nil, err
		}
		for _, m := range meds {
			if matchStr(m.Name) || match(m.Instructions, m.Prescriber) {
				hits = append(hits, SearchHit{
					Domain: records.DomainMedications,
					Label:  m.Name,
					Detail: deref(m.Dosage),
					Date:   m.StartDate,
				})
			}
		}
	}
	if e.searches(records.DomainAllergies) {
		allergies, err := e.st.Allergies(ctx)
		if err != nil {
			return nil, err
		}
		for _, a := range allergies {
			if matchStr(a.Substance) || match(a.Reaction) {
				hits = append(hits, SearchHit{
					Domain: records.DomainAllergies,
					Label:  a.Substance,
					Detail: deref(a.Reaction),
				})
			}
		}
	}
	if e.searches(records.DomainProblems) {
		problems, err := e.st.Problems(ctx, "", nil, nil)
		if err != nil {
			return nil, err
		}
		for _, p := range problems {
			if matchStr(p.Description) {
				hits = append(hits, SearchHit{
					Domain: records.DomainProblems,
					Label:  p.Description,
					Detail: string(p.Status),
					Date:   p.OnsetDate,
				})
			}
		}
	}
	if e.searches(records.DomainProcedures) {
		procedures, err := e.st.Procedures(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range procedures {
			if matchStr(p.Name) || match(p.Provider) {
				hits = append(hits, SearchHit{
					Domain: records.DomainProcedures,
					Label:  p.Name,
					Detail: deref(p.Provider),
					Date:   p.Date,
				})
			}
		}
	}
	if e.searches(records.DomainResults) {
		results, err := e.st.LabResults(ctx, "", nil, nil)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			if matchStr(r.TestName) || match(r.Notes) {
				hits = append(hits, SearchHit{
					Domain: records.DomainResults,
					Label:  r.TestName,
					Detail: deref(r.Value),
					Date:   r.TestDate,
				})
			}
		}
	}
	if e.searches(records.DomainImmunizations) {
		immunizations, err := e.st.Immunizations(ctx)
		if err != nil {
			return nil, err
		}
		for _, im := range immunizations {
			if matchStr(im.VaccineName) || match(im.Manufacturer) {
				hits = append(hits, SearchHit{
					Domain: records.DomainImmunizations,
					Label:  im.VaccineName,
					Detail: deref(im.Manufacturer),
					Date:   im.AdministrationDate,
				})
			}
		}
	}
	logger.L().Debugw("search done", "term", term, "hits", len(hits))
	return hits, nil
}

// Event is one dated clinical happening on the patient timeline.
type Event struct {
	Date   time.Time      `json:"date"`
	Domain records.Domain `json:"domain"`
	Label  string         `json:"label"`
}

// Timeline merges dated rows from every configured domain into one
// chronological view, oldest first. Undated rows cannot be placed and are
// left out.
func (e *Engine) Timeline(ctx context.Context, since, until *time.Time) ([]Event, error) {
	if since != nil && until != nil && until.Before(*since) {
		return nil, ErrInvertedRange
	}
	var events []Event
	add := func(date *time.Time, domain records.Domain, label string) {
		if date == nil {
			return
		}
		if since != nil && date.Before(*since) {
			return
		}
		if until != nil && date.After(*until) {
			return
		}
		events = append(events, Event{Date: *date, Domain: domain, Label: label})
	}

	if e.searches(records.DomainMedications) {
		meds, err := e.st.Medications(ctx, "", nil, nil)
		if err != nil {
			return nil, err
		}
		for _, m := range meds {
			add(m.StartDate, records.DomainMedications, "Started "+m.Name)
		}
	}
	if e.searches(records.DomainProblems) {
		problems, err := e.st.Problems(ctx, "", nil, nil)
		if err != nil {
			return nil, err
		}
		for _, p := range problems {
			add(p.OnsetDate, records.DomainProblems, "Onset of "+p.Description)
			add(p.ResolutionDate, records.DomainProblems, "Resolved "+p.Description)
		}
	}
	if e.searches(records.DomainProcedures) {
		procedures, err := e.st.Procedures(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range procedures {
			add(p.Date, records.DomainProcedures, p.Name)
		}
	}
	if e.searches(records.DomainResults) {
		results, err := e.st.LabResults(ctx, "", nil, nil)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			add(r.TestDate, records.DomainResults, r.TestName)
		}
	}
	if e.searches(records.DomainVitals) {
		vitals, err := e.st.Vitals(ctx, 0, nil, nil)
		if err != nil {
			return nil, err
		}
		for _, v := range vitals {
			d := v.MeasurementDate
			add(&d, records.DomainVitals, "Vital signs recorded")
		}
	}
	if e.searches(records.DomainImmunizations) {
		immunizations, err := e.st.Immunizations(ctx)
		if err != nil {
			return nil, err
		}
		for _, im := range immunizations {
			add(im.AdministrationDate, records.DomainImmunizations, im.VaccineName+" vaccine")
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Date.Equal(events[j].Date) {
			return events[i].Date.Before(events[j].Date)
		}
		return events[i].Label < events[j].Label
	})
	return events, nil
}

// Summary is a one-screen overview of the loaded record.
type Summary struct {
	Counts            map[records.Domain]int `json:"counts"`
	ActiveMedications int                    `json:"active_medications"`
	ActiveProblems    int                    `json:"active_problems"`
	AbnormalResults   int                    `json:"abnormal_results"`
	LatestVitals      *VitalReading          `json:"latest_vitals,omitempty"`
}

func (e *Engine) Summary(ctx context.Context) (*Summary, error) {
	counts, err := e.st.Counts(ctx)
	if err != nil {
		return nil, err
	}
	activeMeds, err := e.st.Medications(ctx, records.StatusActive, nil, nil)
	if err != nil {
		return nil, err
	}
	activeProblems, err := e.st.Problems(ctx, records.StatusActive, nil, nil)
	if err != nil {
		return nil, err
	}
	abnormal, err := e.AbnormalResults(ctx, nil, nil)
	if err != nil {
		return nil, err
	}
	latest, err := e.Vitals(ctx, 1, nil, nil)
	if err != nil {
		return nil, err
	}
	summary := &Summary{
		Counts:            counts,
		ActiveMedications: len(activeMeds),
		ActiveProblems:    len(activeProblems),
		AbnormalResults:   len(abnormal),
	}
	if len(latest) > 0 {
		summary.LatestVitals = &latest[0]
	}
	return summary, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
