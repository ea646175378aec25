package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chartr-dev/chartr/internal/chartr/ccda"
	"github.com/chartr-dev/chartr/internal/chartr/config"
	"github.com/chartr-dev/chartr/internal/chartr/pipeline"
	"github.com/chartr-dev/chartr/internal/chartr/records"
	"github.com/chartr-dev/chartr/internal/chartr/store"
)

var loadCmd = &cobra.Command{
	Use:   "load <document.xml>",
	Short: "Load a C-CDA document into the store (full refresh)",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoad,
}

var flagLoadJSON bool

func init() {
	loadCmd.Flags().BoolVar(&flagLoadJSON, "json", false, "print the load report as JSON")
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	ctx := context.Background()

	table, err := ccda.LoadSectionTable(cfg.Sections.File)
	if err != nil {
		return err
	}
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	report, err := pipeline.LoadFile(ctx, st, args[0], table)
	if err != nil {
		return err
	}

	if flagLoadJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		printLoadReport(report)
	}
	if report.Failed() {
		return fmt.Errorf("load finished with domain errors")
	}
	return nil
}

func printLoadReport(report *pipeline.LoadReport) {
	if report.Title != "" {
		fmt.Printf("Document: %s\n", report.Title)
	}
	fmt.Printf("Batch:    %s\n", report.BatchID)
	for _, domain := range records.AllDomains {
		d := report.Domains[domain]
		line := fmt.Sprintf("  %-14s loaded=%d skipped=%d", domain, d.Loaded, d.Skipped)
		if d.Error != "" {
			line += " error=" + d.Error
		}
		fmt.Println(line)
	}
	for _, w := range report.Warnings {
		fmt.Printf("Warning: %s\n", w)
	}
	fmt.Printf("Total rows loaded: %d\n", report.TotalLoaded())
}
