package normalize

import "strings"

// codingSystems maps HL7 OID roots to the short system labels used in
// normalized codes. Only systems listed here produce a normalized value;
// unrecognized systems keep the raw code verbatim and nothing else.
var codingSystems = map[string]string{
	"2.16.840.1.113883.6.88":   "RXNORM", // RxNorm
	"2.16.840.1.113883.6.69":   "NDC",    // National Drug Code
	"2.16.840.1.113883.6.1":    "LOINC",  // lab observations
	"2.16.840.1.113883.6.96":   "SNOMED", // SNOMED CT
	"2.16.840.1.113883.6.90":   "ICD10",  // ICD-10-CM
	"2.16.840.1.113883.6.3":    "ICD10",  // ICD-10 (WHO)
	"2.16.840.1.113883.6.12":   "CPT",    // CPT-4 procedures
	"2.16.840.1.113883.12.292": "CVX",    // vaccines administered
}

// Code keeps a raw code verbatim and derives a "SYSTEM:code" normalized
// value when the coding system OID is recognized. Either return may be nil.
func Code(code, systemOID string) (raw, normalized *string) {
	raw = Text(code)
	if raw == nil {
		return nil, nil
	}
	system, ok := codingSystems[strings.TrimSpace(systemOID)]
	if !ok {
		return raw, nil
	}
	n := system + ":" + *raw
	return raw, &n
}
