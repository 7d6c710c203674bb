package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ekaya-inc/ekaya-taxonomy/pkg/models"
)

var mermaidUnsafe = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// Mermaid renders relationships as a Mermaid erDiagram. The parent (target)
// table is written on the left. Speculative links use a dotted line.
func Mermaid(report *models.Report) string {
	var sb strings.Builder

	sb.WriteString("erDiagram\n")
	for _, c := range report.Relationships {
		line := "--"
		if c.IsSpeculative() {
			line = ".."
		}
		left, right := mermaidEnds(c.Cardinality)

		sb.WriteString(fmt.Sprintf("    %s %s%s%s %s : \"%s (%.2f)\"\n",
			mermaidName(c.TargetTable), left, line, right, mermaidName(c.SourceTable),
			strings.ReplaceAll(c.SourceColumn, `"`, `'`), c.Confidence))
	}
	return sb.String()
}

// mermaidEnds returns the crow's-foot markers for the target (left) and
// source (right) ends of a link.
func mermaidEnds(cardinality string) (string, string) {
	switch cardinality {
	case models.Cardinality1To1:
		return "||", "||"
	case models.CardinalityNToM:
		return "}o", "o{"
	case models.Cardinality1ToN:
		return "}o", "||"
	default:
		return "||", "o{"
	}
}

func mermaidName(table string) string {
	return mermaidUnsafe.ReplaceAllString(table, "_")
}
