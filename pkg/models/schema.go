package models

import (
	"sort"
)

// MaxSampleRows is the number of sample rows kept per table.
const MaxSampleRows = 2

// SchemaModel is the read-only, in-memory representation of one export.
// It is built once per analysis run and never mutated afterwards.
type SchemaModel struct {
	Groups          map[string]*Group
	Tables          []*Table // export order
	Columns         *ColumnDictionary
	Families        []TableFamily
	ExportTimestamp string
	Diagnostics     []Diagnostic // soft problems found while loading

	tablesByName map[string]*Table
}

// NewSchemaModel creates an empty model ready to be populated by the loader.
func NewSchemaModel() *SchemaModel {
	return &SchemaModel{
		Groups:       make(map[string]*Group),
		Columns:      NewColumnDictionary(),
		tablesByName: make(map[string]*Table),
	}
}

// AddTable registers a table. It returns false if a table with the same
// name is already present.
func (m *SchemaModel) AddTable(t *Table) bool {
	if _, exists := m.tablesByName[t.Name]; exists {
		return false
	}
	m.tablesByName[t.Name] = t
	m.Tables = append(m.Tables, t)
	return true
}

// Table returns the named table or nil.
func (m *SchemaModel) Table(name string) *Table {
	return m.tablesByName[name]
}

// GroupNames returns all group names in sorted order.
func (m *SchemaModel) GroupNames() []string {
	names := make([]string, 0, len(m.Groups))
	for name := range m.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TableNames returns all table names in export order.
func (m *SchemaModel) TableNames() []string {
	names := make([]string, 0, len(m.Tables))
	for _, t := range m.Tables {
		names = append(names, t.Name)
	}
	return names
}

// FamilyOf returns the family a table belongs to, or nil.
func (m *SchemaModel) FamilyOf(table string) *TableFamily {
	for i := range m.Families {
		for _, v := range m.Families[i].Variants {
			if v == table {
				return &m.Families[i]
			}
		}
	}
	return nil
}

// Group is a named organizational node. Parents may reference groups that
// are not declared in the dictionary (soft references).
type Group struct {
	Name        string
	Description string
	Parents     []string // sorted, deduplicated
	Tables      []string // sorted, deduplicated
}

// Table is one exported table.
type Table struct {
	Name        string
	Description string
	Groups      []string // sorted, deduplicated
	Columns     []Column // declaration order
	SampleRows  []SampleRow

	columnIndex map[string]int
}

// NewTable creates a table with an empty column index.
func NewTable(name, description string) *Table {
	return &Table{
		Name:        name,
		Description: description,
		columnIndex: make(map[string]int),
	}
}

// AddColumn appends a column. It returns false on a duplicate name.
func (t *Table) AddColumn(c Column) bool {
	if t.columnIndex == nil {
		t.columnIndex = make(map[string]int)
	}
	if _, exists := t.columnIndex[c.Name]; exists {
		return false
	}
	t.columnIndex[c.Name] = len(t.Columns)
	t.Columns = append(t.Columns, c)
	return true
}

// Column returns the named column and whether it exists.
func (t *Table) Column(name string) (Column, bool) {
	idx, ok := t.columnIndex[name]
	if !ok {
		return Column{}, false
	}
	return t.Columns[idx], true
}

// HasColumn reports whether the table declares the named column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columnIndex[name]
	return ok
}

// SampleValues returns the non-absent sampled values of a column in row order.
func (t *Table) SampleValues(column string) []string {
	var values []string
	for _, row := range t.SampleRows {
		if v, ok := row[column]; ok {
			values = append(values, v)
		}
	}
	return values
}

// Column is a column definition parsed from "name (TYPE): description".
type Column struct {
	Name        string `json:"name"`
	DataType    string `json:"data_type"`
	Description string `json:"description,omitempty"`
}

// SampleRow maps column name to its string-serialized value. Absent (null)
// values are not stored.
type SampleRow map[string]string

// ColumnDictionary is the global, name-keyed lookup of column descriptions.
// Column descriptions refer to one concept per name across all tables.
type ColumnDictionary struct {
	canonical map[string]string
	sources   map[string]map[string][]string // column -> description -> tables
}

// NewColumnDictionary creates an empty dictionary.
func NewColumnDictionary() *ColumnDictionary {
	return &ColumnDictionary{
		canonical: make(map[string]string),
		sources:   make(map[string]map[string][]string),
	}
}

// Record notes that table declares column with the given description.
// The first non-empty description becomes canonical.
func (d *ColumnDictionary) Record(column, description, table string) {
	if _, ok := d.sources[column]; !ok {
		d.sources[column] = make(map[string][]string)
		d.canonical[column] = ""
	}
	if description == "" {
		return
	}
	d.sources[column][description] = append(d.sources[column][description], table)
	if d.canonical[column] == "" {
		d.canonical[column] = description
	}
}

// Describe returns the canonical description of a column name.
func (d *ColumnDictionary) Describe(column string) string {
	return d.canonical[column]
}

// DeclaredBy reports whether table declares column with exactly this
// description.
func (d *ColumnDictionary) DeclaredBy(column, description, table string) bool {
	for _, t := range d.sources[column][description] {
		if t == table {
			return true
		}
	}
	return false
}

// Conflicts returns, for column names carrying more than one distinct
// non-empty description, each description with the tables declaring it.
func (d *ColumnDictionary) Conflicts() map[string]map[string][]string {
	out := make(map[string]map[string][]string)
	for column, byDesc := range d.sources {
		if len(byDesc) > 1 {
			out[column] = byDesc
		}
	}
	return out
}

// TableFamily groups table variants sharing a base name, such as
// session_app and session_web.
type TableFamily struct {
	Base     string   `json:"family" yaml:"family"`
	Variants []string `json:"variants" yaml:"variants"`
}
