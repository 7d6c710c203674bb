package models

import "github.com/google/uuid"

// Report is the final output of one analysis run.
type Report struct {
	// DocumentID is derived from the input bytes, so identical documents
	// produce identical reports.
	DocumentID      uuid.UUID                `json:"document_id" yaml:"document_id"`
	ExportTimestamp string                   `json:"export_timestamp,omitempty" yaml:"export_timestamp,omitempty"`
	Summary         ReportSummary            `json:"summary" yaml:"summary"`
	Hierarchy       *GroupHierarchy          `json:"hierarchy,omitempty" yaml:"hierarchy,omitempty"`
	Families        []TableFamily            `json:"families,omitempty" yaml:"families,omitempty"`
	Relationships   []*RelationshipCandidate `json:"relationships" yaml:"relationships"`
	Components      []ConnectedComponent     `json:"components,omitempty" yaml:"components,omitempty"`
	IslandTables    []string                 `json:"island_tables,omitempty" yaml:"island_tables,omitempty"`
	Diagnostics     []Diagnostic             `json:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`

	// HierarchyErr is set when the hierarchy pass failed. It is surfaced to
	// callers and recorded as a cyclic_hierarchy diagnostic.
	HierarchyErr error `json:"-" yaml:"-"`
}

// ReportSummary holds headline counts.
type ReportSummary struct {
	Groups        int  `json:"groups" yaml:"groups"`
	Tables        int  `json:"tables" yaml:"tables"`
	Columns       int  `json:"columns" yaml:"columns"`
	Relationships int  `json:"relationships" yaml:"relationships"`
	Corroborated  int  `json:"corroborated" yaml:"corroborated"`
	NamingOnly    int  `json:"naming_only" yaml:"naming_only"`
	Speculative   int  `json:"speculative" yaml:"speculative"`
	Components    int  `json:"components" yaml:"components"`
	Warnings      int  `json:"warnings" yaml:"warnings"`
	HierarchyOK   bool `json:"hierarchy_ok" yaml:"hierarchy_ok"`
}

// RelationshipsBySupport returns the candidates carrying the given support.
func (r *Report) RelationshipsBySupport(s Support) []*RelationshipCandidate {
	var out []*RelationshipCandidate
	for _, c := range r.Relationships {
		if c.Support == s {
			out = append(out, c)
		}
	}
	return out
}

// ConnectedComponent is a set of tables linked, directly or transitively,
// by relationship candidates.
type ConnectedComponent struct {
	Tables []string `json:"tables" yaml:"tables"`
	Size   int      `json:"size" yaml:"size"`
}
