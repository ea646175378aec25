package ccda

import (
	"fmt"
	"os"
	"strings"

	"github.com/beevik/etree"
	"gopkg.in/yaml.v3"

	"github.com/chartr-dev/chartr/internal/chartr/logger"
	"github.com/chartr-dev/chartr/internal/chartr/records"
)

// SectionIdentifiers is the table of acceptable section identifiers for one
// domain. A section matches when its LOINC code is listed or its title
// contains one of the title keywords (case-insensitive). Exporters disagree
// on both, so every domain carries several identifiers.
type SectionIdentifiers struct {
	Codes  []string `yaml:"codes"`
	Titles []string `yaml:"titles"`
}

// DefaultSectionTable covers the section codes and titles seen across
// common C-CDA exporters.
func DefaultSectionTable() map[records.Domain]SectionIdentifiers {
	return map[records.Domain]SectionIdentifiers{
		records.DomainMedications: {
			Codes:  []string{"10160-0", "29549-3"},
			Titles: []string{"medication"},
		},
		records.DomainAllergies: {
			Codes:  []string{"48765-2", "10155-0"},
			Titles: []string{"allerg", "adverse reaction"},
		},
		records.DomainProblems: {
			Codes:  []string{"11450-4", "11348-0"},
			Titles: []string{"problem", "diagnos", "condition"},
		},
		records.DomainProcedures: {
			Codes:  []string{"47519-4"},
			Titles: []string{"procedure"},
		},
		records.DomainResults: {
			Codes:  []string{"30954-2"},
			Titles: []string{"result", "laboratory", "lab "},
		},
		records.DomainVitals: {
			Codes:  []string{"8716-3"},
			Titles: []string{"vital"},
		},
		records.DomainImmunizations: {
			Codes:  []string{"11369-6"},
			Titles: []string{"immunization", "vaccin"},
		},
	}
}

// sectionOverrideFile is the YAML shape of a section table override:
// domain name -> extra codes/titles, merged on top of the defaults.
type sectionOverrideFile struct {
	Sections map[string]SectionIdentifiers `yaml:"sections"`
}

// LoadSectionTable returns the default table, extended by the optional
// YAML override file. Unknown domain names in the file are rejected.
func LoadSectionTable(path string) (map[records.Domain]SectionIdentifiers, error) {
	table := DefaultSectionTable()
	if path == "" {
		return table, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read section table: %w", err)
	}
	var file sectionOverrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse section table: %w", err)
	}
	for name, extra := range file.Sections {
		domain := records.Domain(name)
		ids, ok := table[domain]
		if !ok {
			return nil, fmt.Errorf("section table: unknown domain %q", name)
		}
		ids.Codes = append(ids.Codes, extra.Codes...)
		ids.Titles = append(ids.Titles, extra.Titles...)
		table[domain] = ids
	}
	logger.L().Debugw("loaded section table overrides", "path", path)
	return table, nil
}

// LocateSections scans the structured body for the known clinical domains.
// Duplicate sections for the same domain are all returned (callers merge
// their entries); missing sections yield an empty slice, not an error.
func (d *Document) LocateSections(table map[records.Domain]SectionIdentifiers) map[records.Domain][]*etree.Element {
	located := make(map[records.Domain][]*etree.Element, len(table))
	sections := findDescendants(d.body, "section")
	for _, section := range sections {
		code := attr(childByTag(section, "code"), "code")
		title := ""
		if t := childByTag(section, "title"); t != nil {
			title = strings.ToLower(textContent(t))
		}
		for domain, ids := range table {
			if matchesSection(code, title, ids) {
				located[domain] = append(located[domain], section)
			}
		}
	}
	for domain := range table {
		logger.L().Debugw("located sections",
			"domain", domain,
			"count", len(located[domain]))
	}
	return located
}

func matchesSection(code, lowerTitle string, ids SectionIdentifiers) bool {
	for _, c := range ids.Codes {
		if code == c {
			return true
		}
	}
	if lowerTitle == "" {
		return false
	}
	for _, t := range ids.Titles {
		if strings.Contains(lowerTitle, strings.ToLower(t)) {
			return true
		}
	}
	return false
}
