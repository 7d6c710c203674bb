package models

import "encoding/json"

// ContextExport is the raw shape of a context.json document produced by the
// data dictionary export. Fields are kept as raw JSON where presence must be
// distinguished from an empty value.
type ContextExport struct {
	Metadata *ExportMetadata            `json:"metadata,omitempty"`
	Groups   map[string]json.RawMessage `json:"groups,omitempty"` // accepted when metadata.groups is absent
	Tables   []ExportTable              `json:"tables"`
}

// ExportMetadata holds the group dictionary and export bookkeeping.
type ExportMetadata struct {
	Groups          map[string]json.RawMessage `json:"groups"`
	ExportTimestamp string                     `json:"export_timestamp,omitempty"`
}

// ExportGroup is one entry of the group dictionary.
type ExportGroup struct {
	Description  string   `json:"description"`
	ParentGroups []string `json:"parent_groups"`
	Tables       []string `json:"tables"`
}

// ExportTable is one entry of the table list.
type ExportTable struct {
	Table       string                       `json:"table"`
	Description string                       `json:"description"`
	Groups      []string                     `json:"groups"`
	Columns     []string                     `json:"columns"`     // "name (TYPE): description"
	SampleRows  []map[string]json.RawMessage `json:"sample_rows"` // cells kept raw, stringified by the loader
}
