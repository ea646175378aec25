// synthr emits synthetic C-CDA documents for pipeline testing and demos.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/chartr-dev/chartr/internal/synthr"
)

func main() {
	cfg := synthr.DefaultConfig()
	output := flag.String("output", "", "output file (default stdout)")
	flag.Int64Var(&cfg.Seed, "seed", 0, "random seed for reproducible output")
	flag.IntVar(&cfg.Medications, "medications", cfg.Medications, "number of medication entries")
	flag.IntVar(&cfg.Allergies, "allergies", cfg.Allergies, "number of allergy entries")
	flag.IntVar(&cfg.Problems, "problems", cfg.Problems, "number of problem entries")
	flag.IntVar(&cfg.Procedures, "procedures", cfg.Procedures, "number of procedure entries")
	flag.IntVar(&cfg.Results, "results", cfg.Results, "number of lab result entries")
	flag.IntVar(&cfg.VitalDays, "vital-days", cfg.VitalDays, "number of dated vital sign panels")
	flag.IntVar(&cfg.Immunizations, "immunizations", cfg.Immunizations, "number of immunization entries")
	flag.Parse()

	data, err := synthr.Generate(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *output == "" {
		os.Stdout.Write(data)
		return
	}
	if err := os.WriteFile(*output, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote synthetic document to %s\n", *output)
}
