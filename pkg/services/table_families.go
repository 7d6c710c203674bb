package services

import (
	"sort"
	"strings"

	"github.com/ekaya-inc/ekaya-taxonomy/pkg/models"
)

// familyBase returns the base name of a table named "<base>_<suffix>" when
// suffix is one of the variant suffixes, or "" otherwise.
func familyBase(table string, suffixes []string) string {
	idx := strings.LastIndex(table, "_")
	if idx <= 0 || idx == len(table)-1 {
		return ""
	}
	suffix := strings.ToLower(table[idx+1:])
	for _, s := range suffixes {
		if suffix == s {
			return table[:idx]
		}
	}
	return ""
}

// familySuffix returns the variant suffix of a table, or "".
func familySuffix(table string, suffixes []string) string {
	base := familyBase(table, suffixes)
	if base == "" {
		return ""
	}
	return strings.ToLower(table[len(base)+1:])
}

// DetectTableFamilies groups tables sharing a base name across variant
// suffixes, e.g. session_app and session_web. A family needs at least two
// variants. Families and their variants are sorted.
func DetectTableFamilies(tableNames []string, suffixes []string) []models.TableFamily {
	byBase := make(map[string][]string)
	for _, name := range tableNames {
		if base := familyBase(name, suffixes); base != "" {
			byBase[base] = append(byBase[base], name)
		}
	}

	var families []models.TableFamily
	for base, variants := range byBase {
		if len(variants) < 2 {
			continue
		}
		sort.Strings(variants)
		families = append(families, models.TableFamily{Base: base, Variants: variants})
	}
	sort.Slice(families, func(i, j int) bool {
		return families[i].Base < families[j].Base
	})
	return families
}
