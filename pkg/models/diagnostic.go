package models

import "sort"

// DiagnosticKind classifies a diagnostic attached to a report.
type DiagnosticKind string

const (
	DiagnosticCyclicHierarchy               DiagnosticKind = "cyclic_hierarchy"
	DiagnosticOrphanParentReference         DiagnosticKind = "orphan_parent_reference"
	DiagnosticInconsistentColumnDescription DiagnosticKind = "inconsistent_column_description"
	DiagnosticUnknownGroupMember            DiagnosticKind = "unknown_group_member"
	DiagnosticGroupMembershipMismatch       DiagnosticKind = "group_membership_mismatch"
	DiagnosticSampleRowsTruncated           DiagnosticKind = "sample_rows_truncated"
	DiagnosticUnknownSampleColumn           DiagnosticKind = "unknown_sample_column"
)

// Severity of a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Diagnostic is a non-fatal finding, or the record of a failed pass.
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind" yaml:"kind"`
	Severity Severity       `json:"severity" yaml:"severity"`
	Subject  string         `json:"subject" yaml:"subject"` // group, table or column the finding is about
	Message  string         `json:"message" yaml:"message"`
	Related  []string       `json:"related,omitempty" yaml:"related,omitempty"`
}

// SortDiagnostics orders diagnostics by kind, subject then message.
func SortDiagnostics(diags []Diagnostic) {
	sort.SliceStable(diags, func(i, j int) bool {
		if diags[i].Kind != diags[j].Kind {
			return diags[i].Kind < diags[j].Kind
		}
		if diags[i].Subject != diags[j].Subject {
			return diags[i].Subject < diags[j].Subject
		}
		return diags[i].Message < diags[j].Message
	})
}

// CountBySeverity returns how many diagnostics carry the given severity.
func CountBySeverity(diags []Diagnostic, s Severity) int {
	n := 0
	for _, d := range diags {
		if d.Severity == s {
			n++
		}
	}
	return n
}
