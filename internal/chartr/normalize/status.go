package normalize

import (
	"strings"

	"github.com/chartr-dev/chartr/internal/chartr/records"
)

// statusSynonyms is checked in order: earlier entries win when a source
// string contains more than one marker. "inactive" contains "active", so
// the Discontinued entries come first.
var statusSynonyms = []struct {
	marker string
	status records.Status
}{
	{"discontinu", records.StatusDiscontinued},
	{"inactive", records.StatusDiscontinued},
	{"abort", records.StatusDiscontinued},
	{"cancel", records.StatusDiscontinued},
	{"stopped", records.StatusDiscontinued},
	{"suspend", records.StatusDiscontinued},
	{"held", records.StatusDiscontinued},
	{"complet", records.StatusCompleted},
	{"resolved", records.StatusCompleted},
	{"finish", records.StatusCompleted},
	{"active", records.StatusActive},
	{"current", records.StatusActive},
	{"ongoing", records.StatusActive},
	{"in progress", records.StatusActive},
}

// Status maps the wide variety of source status strings onto the canonical
// vocabulary. Matching is case-insensitive and substring-tolerant; anything
// unmatched becomes Unknown rather than failing.
func Status(s string) records.Status {
	lower := strings.ToLower(strings.TrimSpace(s))
	if lower == "" {
		return records.StatusUnknown
	}
	for _, syn := range statusSynonyms {
		if strings.Contains(lower, syn.marker) {
			return syn.status
		}
	}
	return records.StatusUnknown
}
