package render

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-taxonomy/pkg/models"
)

// Markdown renders a human-readable taxonomy summary.
func Markdown(report *models.Report) string {
	var sb strings.Builder

	sb.WriteString("# Taxonomy Report\n\n")
	if report.ExportTimestamp != "" {
		sb.WriteString(fmt.Sprintf("Export: %s  \n", report.ExportTimestamp))
	}
	sb.WriteString(fmt.Sprintf("Document: `%s`\n\n", report.DocumentID))

	writeSummary(&sb, report.Summary)
	writeHierarchy(&sb, report)
	writeFamilies(&sb, report.Families)

	sb.WriteString("## Relationships\n\n")
	sections := []struct {
		title   string
		support models.Support
	}{
		{"Corroborated", models.SupportCorroborated},
		{"Naming only", models.SupportNaming},
		{"Speculative (value overlap only)", models.SupportSpeculative},
	}
	for _, s := range sections {
		writeRelationships(&sb, s.title, report.RelationshipsBySupport(s.support))
	}

	writeComponents(&sb, report)
	writeDiagnostics(&sb, report.Diagnostics)

	return sb.String()
}

func writeSummary(sb *strings.Builder, s models.ReportSummary) {
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	rows := []struct {
		name  string
		value any
	}{
		{"Groups", s.Groups},
		{"Tables", s.Tables},
		{"Columns", s.Columns},
		{"Relationships", s.Relationships},
		{"Corroborated", s.Corroborated},
		{"Naming only", s.NamingOnly},
		{"Speculative", s.Speculative},
		{"Connected components", s.Components},
		{"Warnings", s.Warnings},
		{"Hierarchy valid", s.HierarchyOK},
	}
	for _, r := range rows {
		sb.WriteString(fmt.Sprintf("| %s | %v |\n", r.name, r.value))
	}
	sb.WriteString("\n")
}

func writeHierarchy(sb *strings.Builder, report *models.Report) {
	sb.WriteString("## Group Hierarchy\n\n")

	h := report.Hierarchy
	if h == nil {
		if report.HierarchyErr != nil {
			sb.WriteString(fmt.Sprintf("Hierarchy unavailable: %s\n\n", report.HierarchyErr))
		} else {
			sb.WriteString("No groups.\n\n")
		}
		return
	}
	if len(h.Roots) == 0 {
		sb.WriteString("No groups.\n\n")
		return
	}

	// A group with several parents is listed under each of them, but only
	// its first listing expands its tables and children.
	expanded := make(map[string]bool, len(h.Nodes))
	var walk func(name string, depth int)
	walk = func(name string, depth int) {
		node, ok := h.Node(name)
		if !ok {
			return
		}
		line := fmt.Sprintf("%s- **%s**", strings.Repeat("  ", depth), node.Name)
		if expanded[name] {
			sb.WriteString(line + " (see above)\n")
			return
		}
		expanded[name] = true
		if node.Description != "" {
			line += ": " + node.Description
		}
		if len(node.Tables) > 0 {
			line += fmt.Sprintf(" (%s)", codeList(node.Tables))
		}
		if len(node.OrphanParents) > 0 {
			line += fmt.Sprintf(" [undeclared parents: %s]", strings.Join(node.OrphanParents, ", "))
		}
		sb.WriteString(line + "\n")
		for _, child := range node.Children {
			walk(child, depth+1)
		}
	}
	for _, root := range h.Roots {
		walk(root, 0)
	}
	sb.WriteString("\n")
}

func writeFamilies(sb *strings.Builder, families []models.TableFamily) {
	if len(families) == 0 {
		return
	}
	sb.WriteString("## Table Families\n\n")
	for _, f := range families {
		sb.WriteString(fmt.Sprintf("- **%s**: %s\n", f.Base, codeList(f.Variants)))
	}
	sb.WriteString("\n")
}

func writeRelationships(sb *strings.Builder, title string, cs []*models.RelationshipCandidate) {
	sb.WriteString(fmt.Sprintf("### %s\n\n", title))
	if len(cs) == 0 {
		sb.WriteString("None.\n\n")
		return
	}

	sb.WriteString("| Source | Target | Cardinality | Confidence | Method |\n")
	sb.WriteString("|--------|--------|-------------|------------|--------|\n")
	for _, c := range cs {
		sb.WriteString(fmt.Sprintf("| `%s.%s` | `%s.%s` | %s | %.2f | %s |\n",
			escapeCell(c.SourceTable), escapeCell(c.SourceColumn),
			escapeCell(c.TargetTable), escapeCell(c.TargetColumn),
			c.Cardinality, c.Confidence, c.DetectionMethod))
	}
	sb.WriteString("\n")
}

func writeComponents(sb *strings.Builder, report *models.Report) {
	if len(report.Components) == 0 && len(report.IslandTables) == 0 {
		return
	}
	sb.WriteString("## Connectivity\n\n")
	for i, comp := range report.Components {
		sb.WriteString(fmt.Sprintf("%d. %d tables: %s\n", i+1, comp.Size, codeList(comp.Tables)))
	}
	if len(report.IslandTables) > 0 {
		if len(report.Components) > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("Unconnected tables: %s\n", codeList(report.IslandTables)))
	}
	sb.WriteString("\n")
}

func writeDiagnostics(sb *strings.Builder, diags []models.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	sb.WriteString("## Diagnostics\n\n")
	for _, d := range diags {
		sb.WriteString(fmt.Sprintf("- **%s** `%s` %s: %s\n", d.Severity, d.Kind, d.Subject, d.Message))
	}
	sb.WriteString("\n")
}

func codeList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "`" + n + "`"
	}
	return strings.Join(quoted, ", ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
