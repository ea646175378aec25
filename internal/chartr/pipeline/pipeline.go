// Package pipeline orchestrates a document load: parse, locate sections,
// extract and normalize per domain, then full-refresh the store.
package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/chartr-dev/chartr/internal/chartr/ccda"
	"github.com/chartr-dev/chartr/internal/chartr/logger"
	"github.com/chartr-dev/chartr/internal/chartr/records"
	"github.com/chartr-dev/chartr/internal/chartr/store"
)

// DomainReport is the per-domain outcome of one load.
type DomainReport struct {
	Loaded  int    `json:"loaded"`
	Skipped int    `json:"skipped"`
	Error   string `json:"error,omitempty"`
}

// LoadReport summarizes one load run. A domain-level storage failure is
// reported here without aborting the remaining domains; only a document
// that cannot be parsed at all fails the run.
type LoadReport struct {
	BatchID    string                          `json:"batch_id"`
	DocumentID string                          `json:"document_id,omitempty"`
	Title      string                          `json:"title,omitempty"`
	Domains    map[records.Domain]DomainReport `json:"domains"`
	Warnings   []string                        `json:"warnings,omitempty"`
}

// TotalLoaded sums the loaded counts across domains.
func (r *LoadReport) TotalLoaded() int {
	total := 0
	for _, d := range r.Domains {
		total += d.Loaded
	}
	return total
}

// Failed reports whether any domain hit a storage error.
func (r *LoadReport) Failed() bool {
	for _, d := range r.Domains {
		if d.Error != "" {
			return true
		}
	}
	return false
}

// Load runs the full ingestion pipeline over raw document bytes. A document
// with no recognizable sections is not an error: it produces a zero-count
// report.
func Load(ctx context.Context, st *store.Store, data []byte, table map[records.Domain]ccda.SectionIdentifiers) (*LoadReport, error) {
	doc, err := ccda.Parse(data)
	if err != nil {
		return nil, err
	}
	ex := ccda.Extract(doc, table)

	report := &LoadReport{
		BatchID:    uuid.NewString(),
		DocumentID: doc.DocumentID(),
		Title:      doc.Title(),
		Domains:    make(map[records.Domain]DomainReport, len(records.AllDomains)),
		Warnings:   ex.Warnings,
	}
	now := time.Now()

	for _, domain := range records.AllDomains {
		stats := ex.Stats[domain]
		loaded, err := st.ReplaceDomain(ctx, domain, &ex.Batch)
		if err != nil {
			logger.L().Errorw("domain refresh failed",
				"domain", domain, "error", err)
			report.Domains[domain] = DomainReport{
				Skipped: stats.Skipped,
				Error:   err.Error(),
			}
			continue
		}
		report.Domains[domain] = DomainReport{Loaded: loaded, Skipped: stats.Skipped}
		meta := store.LoadMeta{
			BatchID:    report.BatchID,
			DocumentID: report.DocumentID,
			Domain:     domain,
			Loaded:     loaded,
			Skipped:    stats.Skipped,
			LoadedAt:   now,
		}
		if err := st.RecordLoad(ctx, meta); err != nil {
			logger.L().Warnw("load provenance not recorded",
				"domain", domain, "error", err)
		}
	}

	logger.L().Infow("document loaded",
		"batch_id", report.BatchID,
		"document_id", report.DocumentID,
		"rows", report.TotalLoaded())
	return report, nil
}

// LoadFile reads a document from disk and loads it.
func LoadFile(ctx context.Context, st *store.Store, path string, table map[records.Domain]ccda.SectionIdentifiers) (*LoadReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(ctx, st, data, table)
}
