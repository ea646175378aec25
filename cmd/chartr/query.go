package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chartr-dev/chartr/internal/chartr/analytics"
	"github.com/chartr-dev/chartr/internal/chartr/config"
	"github.com/chartr-dev/chartr/internal/chartr/records"
	"github.com/chartr-dev/chartr/internal/chartr/store"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the loaded record",
}

var (
	flagStatus     string
	flagTest       string
	flagSince      string
	flagUntil      string
	flagLimit      int
	flagTrendTest  string
	flagTrendSince string
	flagTrendUntil string
)

func init() {
	for _, cmd := range []*cobra.Command{medsCmd, conditionsCmd} {
		cmd.Flags().StringVar(&flagStatus, "status", "", "filter by status (active, discontinued, completed, unknown)")
		cmd.Flags().StringVar(&flagSince, "since", "", "earliest date (YYYY-MM-DD)")
		cmd.Flags().StringVar(&flagUntil, "until", "", "latest date (YYYY-MM-DD)")
	}
	labsCmd.Flags().StringVar(&flagTest, "test", "", "filter by test name substring")
	labsCmd.Flags().StringVar(&flagSince, "since", "", "earliest test date (YYYY-MM-DD)")
	labsCmd.Flags().StringVar(&flagUntil, "until", "", "latest test date (YYYY-MM-DD)")
	trendCmd.Flags().StringVar(&flagTrendTest, "test", "", "test name substring (required)")
	trendCmd.Flags().StringVar(&flagTrendSince, "since", "", "earliest test date (YYYY-MM-DD)")
	trendCmd.Flags().StringVar(&flagTrendUntil, "until", "", "latest test date (YYYY-MM-DD)")
	trendCmd.MarkFlagRequired("test")
	vitalsCmd.Flags().IntVar(&flagLimit, "limit", 5, "number of most recent readings (0 = all)")
	vitalsCmd.Flags().StringVar(&flagSince, "since", "", "earliest measurement date (YYYY-MM-DD)")
	vitalsCmd.Flags().StringVar(&flagUntil, "until", "", "latest measurement date (YYYY-MM-DD)")
	abnormalCmd.Flags().StringVar(&flagSince, "since", "", "earliest test date (YYYY-MM-DD)")
	abnormalCmd.Flags().StringVar(&flagUntil, "until", "", "latest test date (YYYY-MM-DD)")
	timelineCmd.Flags().StringVar(&flagSince, "since", "", "earliest event date (YYYY-MM-DD)")
	timelineCmd.Flags().StringVar(&flagUntil, "until", "", "latest event date (YYYY-MM-DD)")

	queryCmd.AddCommand(medsCmd, conditionsCmd, allergiesCmd, proceduresCmd,
		labsCmd, trendCmd, vitalsCmd, abnormalCmd, immunizationsCmd,
		searchCmd, timelineCmd, summaryCmd)
}

// withEngine opens the store, builds the analytics engine and hands it to
// the command body.
func withEngine(fn func(ctx context.Context, eng *analytics.Engine) error) error {
	cfg := config.Get()
	ctx := context.Background()
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	var domains []records.Domain
	for _, name := range cfg.Search.Domains {
		domains = append(domains, records.Domain(name))
	}
	return fn(ctx, analytics.New(st, domains))
}

func parseStatusFlag(value string) (records.Status, error) {
	switch value {
	case "":
		return "", nil
	case "active":
		return records.StatusActive, nil
	case "discontinued":
		return records.StatusDiscontinued, nil
	case "completed":
		return records.StatusCompleted, nil
	case "unknown":
		return records.StatusUnknown, nil
	default:
		return "", fmt.Errorf("--status: want active, discontinued, completed or unknown, got %q", value)
	}
}

func parseDateFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("--%s: want YYYY-MM-DD, got %q", name, value)
	}
	return &t, nil
}

func fmtDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

func fmtStr(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func fmtFloat(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *f)
}

var medsCmd = &cobra.Command{
	Use:   "meds",
	Short: "List medications",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *analytics.Engine) error {
			status, err := parseStatusFlag(flagStatus)
			if err != nil {
				return err
			}
			since, err := parseDateFlag("since", flagSince)
			if err != nil {
				return err
			}
			until, err := parseDateFlag("until", flagUntil)
			if err != nil {
				return err
			}
			meds, err := eng.Medications(ctx, status, since, until)
			if err != nil {
				return err
			}
			if len(meds) == 0 {
				fmt.Println("No medications on record.")
				return nil
			}
			for _, m := range meds {
				fmt.Printf("%-10s %-30s %-12s %-15s %s\n",
					fmtDate(m.StartDate), m.Name, m.Status, fmtStr(m.Dosage), fmtStr(m.Frequency))
			}
			return nil
		})
	},
}

var conditionsCmd = &cobra.Command{
	Use:   "conditions",
	Short: "List problems / conditions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *analytics.Engine) error {
			status, err := parseStatusFlag(flagStatus)
			if err != nil {
				return err
			}
			since, err := parseDateFlag("since", flagSince)
			if err != nil {
				return err
			}
			until, err := parseDateFlag("until", flagUntil)
			if err != nil {
				return err
			}
			problems, err := eng.Conditions(ctx, status, since, until)
			if err != nil {
				return err
			}
			if len(problems) == 0 {
				fmt.Println("No conditions on record.")
				return nil
			}
			for _, p := range problems {
				fmt.Printf("%-10s %-40s %-12s %s\n",
					fmtDate(p.OnsetDate), p.Description, p.Status, fmtStr(p.DiagnosisCode))
			}
			return nil
		})
	},
}

var allergiesCmd = &cobra.Command{
	Use:   "allergies",
	Short: "List allergies",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *analytics.Engine) error {
			allergies, err := eng.Allergies(ctx)
			if err != nil {
				return err
			}
			if len(allergies) == 0 {
				fmt.Println("No allergies on record.")
				return nil
			}
			for _, a := range allergies {
				fmt.Printf("%-30s %-20s %-12s %s\n",
					a.Substance, fmtStr(a.Reaction), fmtStr(a.Severity), a.Status)
			}
			return nil
		})
	},
}

var proceduresCmd = &cobra.Command{
	Use:   "procedures",
	Short: "List procedures",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *analytics.Engine) error {
			procedures, err := eng.Procedures(ctx)
			if err != nil {
				return err
			}
			if len(procedures) == 0 {
				fmt.Println("No procedures on record.")
				return nil
			}
			for _, p := range procedures {
				fmt.Printf("%-10s %-40s %s\n",
					fmtDate(p.Date), p.Name, fmtStr(p.Provider))
			}
			return nil
		})
	},
}

var labsCmd = &cobra.Command{
	Use:   "labs",
	Short: "List lab results",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *analytics.Engine) error {
			since, err := parseDateFlag("since", flagSince)
			if err != nil {
				return err
			}
			until, err := parseDateFlag("until", flagUntil)
			if err != nil {
				return err
			}
			results, err := eng.LabResults(ctx, flagTest, since, until)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("No lab results on record.")
				return nil
			}
			for _, r := range results {
				fmt.Printf("%-10s %-30s %10s %-8s %-12s %s\n",
					fmtDate(r.TestDate), r.TestName, fmtStr(r.Value), fmtStr(r.Unit),
					r.AbnormalFlag, fmtStr(r.ReferenceRange))
			}
			return nil
		})
	},
}

var trendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Trend a numeric lab series over time",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *analytics.Engine) error {
			since, err := parseDateFlag("since", flagTrendSince)
			if err != nil {
				return err
			}
			until, err := parseDateFlag("until", flagTrendUntil)
			if err != nil {
				return err
			}
			report, err := eng.LabTrend(ctx, flagTrendTest, since, until)
			if err != nil {
				return err
			}
			if report.Direction == analytics.TrendInsufficientData {
				fmt.Printf("%s: not enough numeric results to trend (%d points).\n",
					report.TestName, len(report.Points))
				return nil
			}
			fmt.Printf("%s (%d points): %s\n", report.TestName, len(report.Points), report.Direction)
			fmt.Printf("  first=%.2f last=%.2f min=%.2f max=%.2f mean=%.2f",
				report.First, report.Last, report.Min, report.Max, report.Mean)
			if report.Unit != "" {
				fmt.Printf(" %s", report.Unit)
			}
			fmt.Println()
			for _, p := range report.Points {
				fmt.Printf("  %s  %.2f\n", p.Date.Format("2006-01-02"), p.Value)
			}
			return nil
		})
	},
}

var vitalsCmd = &cobra.Command{
	Use:   "vitals",
	Short: "Show recent vital signs with classifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *analytics.Engine) error {
			since, err := parseDateFlag("since", flagSince)
			if err != nil {
				return err
			}
			until, err := parseDateFlag("until", flagUntil)
			if err != nil {
				return err
			}
			readings, err := eng.Vitals(ctx, flagLimit, since, until)
			if err != nil {
				return err
			}
			if len(readings) == 0 {
				fmt.Println("No vital signs on record.")
				return nil
			}
			for _, v := range readings {
				fmt.Printf("%s  BP %s/%s (%s)  BMI %s (%s)  HR %s  Temp %s\n",
					v.MeasurementDate.Format("2006-01-02"),
					fmtFloat(v.SystolicBP), fmtFloat(v.DiastolicBP), v.BPCategory,
					fmtFloat(v.BMI), v.BMICategory,
					fmtFloat(v.HeartRate), fmtFloat(v.TemperatureC))
			}
			return nil
		})
	},
}

var abnormalCmd = &cobra.Command{
	Use:   "abnormal",
	Short: "List abnormal lab results",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *analytics.Engine) error {
			since, err := parseDateFlag("since", flagSince)
			if err != nil {
				return err
			}
			until, err := parseDateFlag("until", flagUntil)
			if err != nil {
				return err
			}
			results, err := eng.AbnormalResults(ctx, since, until)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Println("No abnormal results on record.")
				return nil
			}
			for _, r := range results {
				fmt.Printf("%-10s %-30s %10s %-8s %-10s ref %s\n",
					fmtDate(r.TestDate), r.TestName, fmtStr(r.Value), fmtStr(r.Unit),
					r.AbnormalFlag, fmtStr(r.ReferenceRange))
			}
			return nil
		})
	},
}

var immunizationsCmd = &cobra.Command{
	Use:   "immunizations",
	Short: "List immunizations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *analytics.Engine) error {
			immunizations, err := eng.Immunizations(ctx)
			if err != nil {
				return err
			}
			if len(immunizations) == 0 {
				fmt.Println("No immunizations on record.")
				return nil
			}
			for _, im := range immunizations {
				fmt.Printf("%-10s %-40s %s\n",
					fmtDate(im.AdministrationDate), im.VaccineName, fmtStr(im.Manufacturer))
			}
			return nil
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Search across all clinical domains",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *analytics.Engine) error {
			hits, err := eng.Search(ctx, args[0])
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				fmt.Printf("No matches for %q.\n", args[0])
				return nil
			}
			for _, h := range hits {
				fmt.Printf("%-14s %-10s %-40s %s\n",
					h.Domain, fmtDate(h.Date), h.Label, h.Detail)
			}
			return nil
		})
	},
}

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Chronological view of the record",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *analytics.Engine) error {
			since, err := parseDateFlag("since", flagSince)
			if err != nil {
				return err
			}
			until, err := parseDateFlag("until", flagUntil)
			if err != nil {
				return err
			}
			events, err := eng.Timeline(ctx, since, until)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Println("No dated events on record.")
				return nil
			}
			for _, ev := range events {
				fmt.Printf("%s  %-14s %s\n", ev.Date.Format("2006-01-02"), ev.Domain, ev.Label)
			}
			return nil
		})
	},
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "One-screen overview of the loaded record",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEngine(func(ctx context.Context, eng *analytics.Engine) error {
			summary, err := eng.Summary(ctx)
			if err != nil {
				return err
			}
			for _, domain := range records.AllDomains {
				fmt.Printf("  %-14s %d\n", domain, summary.Counts[domain])
			}
			fmt.Printf("Active medications: %d\n", summary.ActiveMedications)
			fmt.Printf("Active problems:    %d\n", summary.ActiveProblems)
			fmt.Printf("Abnormal results:   %d\n", summary.AbnormalResults)
			if v := summary.LatestVitals; v != nil {
				fmt.Printf("Latest vitals (%s): BP %s/%s (%s), BMI %s (%s)\n",
					v.MeasurementDate.Format("2006-01-02"),
					fmtFloat(v.SystolicBP), fmtFloat(v.DiastolicBP), v.BPCategory,
					fmtFloat(v.BMI), v.BMICategory)
			}
			return nil
		})
	},
}
