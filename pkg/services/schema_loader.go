package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-taxonomy/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-taxonomy/pkg/config"
	"github.com/ekaya-inc/ekaya-taxonomy/pkg/jsonutil"
	"github.com/ekaya-inc/ekaya-taxonomy/pkg/logging"
	"github.com/ekaya-inc/ekaya-taxonomy/pkg/models"
)

// Placeholders written by the exporter when no description was entered.
var descriptionPlaceholders = map[string]bool{
	"no description": true,
	"n/a":            true,
}

// SchemaLoader parses a context.json export into a SchemaModel.
type SchemaLoader interface {
	// Load reads the whole document from r and parses it.
	Load(ctx context.Context, r io.Reader) (*models.SchemaModel, error)

	// LoadBytes parses an export already held in memory.
	LoadBytes(ctx context.Context, data []byte) (*models.SchemaModel, error)
}

type schemaLoader struct {
	cfg    config.InferenceConfig
	logger *zap.Logger
}

// NewSchemaLoader creates a new SchemaLoader.
func NewSchemaLoader(cfg config.InferenceConfig, logger *zap.Logger) SchemaLoader {
	return &schemaLoader{
		cfg:    cfg,
		logger: logger.Named("schema-loader"),
	}
}

func (l *schemaLoader) Load(ctx context.Context, r io.Reader) (*models.SchemaModel, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	return l.LoadBytes(ctx, data)
}

func (l *schemaLoader) LoadBytes(ctx context.Context, data []byte) (*models.SchemaModel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	export, err := decodeExport(data)
	if err != nil {
		return nil, err
	}

	model := models.NewSchemaModel()
	if export.Metadata != nil {
		model.ExportTimestamp = export.Metadata.ExportTimestamp
	}

	rawGroups := export.Groups
	if export.Metadata != nil && export.Metadata.Groups != nil {
		rawGroups = export.Metadata.Groups
	}
	if err := l.loadGroups(model, rawGroups); err != nil {
		return nil, err
	}

	for i := range export.Tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := l.loadTable(model, &export.Tables[i], i); err != nil {
			return nil, err
		}
	}

	l.reconcileMembership(model)
	l.checkColumnDescriptions(model)
	model.Families = DetectTableFamilies(model.TableNames(), l.cfg.FamilySuffixes)
	models.SortDiagnostics(model.Diagnostics)

	l.logger.Info("Loaded schema export",
		zap.Int("groups", len(model.Groups)),
		zap.Int("tables", len(model.Tables)),
		zap.Int("families", len(model.Families)),
		zap.Int("diagnostics", len(model.Diagnostics)))

	return model, nil
}

// decodeExport checks the required top-level keys and decodes the document.
func decodeExport(data []byte) (*models.ContextExport, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return nil, apperrors.NewMalformedInput("document", "export is not a JSON object", err)
	}

	if isJSONNull(top["tables"]) {
		return nil, apperrors.NewMalformedInput("document", `required key "tables" is missing`, nil)
	}

	hasGroups := !isJSONNull(top["groups"])
	if meta, ok := top["metadata"]; ok && !isJSONNull(meta) {
		var m map[string]json.RawMessage
		if err := json.Unmarshal(meta, &m); err != nil {
			return nil, apperrors.NewMalformedInput("document", `"metadata" is not an object`, err)
		}
		hasGroups = hasGroups || !isJSONNull(m["groups"])
	}
	if !hasGroups {
		return nil, apperrors.NewMalformedInput("document", `required key "metadata.groups" is missing`, nil)
	}

	var export models.ContextExport
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, apperrors.NewMalformedInput("document", "export does not match the context.json shape", err)
	}
	return &export, nil
}

func isJSONNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func (l *schemaLoader) loadGroups(model *models.SchemaModel, raw map[string]json.RawMessage) error {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			return apperrors.NewMalformedInput("groups", "group with an empty name", nil)
		}
		var g models.ExportGroup
		if !isJSONNull(raw[name]) {
			if err := json.Unmarshal(raw[name], &g); err != nil {
				return apperrors.NewMalformedInput("groups", fmt.Sprintf("group %q is not an object", name), err)
			}
		}
		model.Groups[name] = &models.Group{
			Name:        name,
			Description: cleanDescription(g.Description),
			Parents:     uniqueSorted(g.ParentGroups),
			Tables:      uniqueSorted(g.Tables),
		}
	}
	return nil
}

func (l *schemaLoader) loadTable(model *models.SchemaModel, et *models.ExportTable, position int) error {
	name := strings.TrimSpace(et.Table)
	if name == "" {
		return apperrors.NewMalformedInput("tables", fmt.Sprintf("table entry %d has no name", position), nil)
	}

	table := models.NewTable(name, cleanDescription(et.Description))

	table.Groups = uniqueSorted(et.Groups)
	for _, g := range table.Groups {
		if _, ok := model.Groups[g]; !ok {
			return apperrors.NewMalformedTable(name, fmt.Sprintf("references undeclared group %q", g))
		}
	}

	for _, spec := range et.Columns {
		col, err := ParseColumnSpec(spec)
		if err != nil {
			return apperrors.NewMalformedColumn(name, spec, err.Error())
		}
		if !table.AddColumn(col) {
			return apperrors.NewMalformedColumn(name, spec, fmt.Sprintf("duplicate column %q", col.Name))
		}
		model.Columns.Record(col.Name, col.Description, name)
	}

	rows := et.SampleRows
	if len(rows) > models.MaxSampleRows {
		model.Diagnostics = append(model.Diagnostics, models.Diagnostic{
			Kind:     models.DiagnosticSampleRowsTruncated,
			Severity: models.SeverityWarning,
			Subject:  name,
			Message:  fmt.Sprintf("%d sample rows given, only the first %d are used", len(rows), models.MaxSampleRows),
		})
		rows = rows[:models.MaxSampleRows]
	}

	unknown := make(map[string]bool)
	for _, raw := range rows {
		row := make(models.SampleRow, len(raw))
		for column, value := range raw {
			if !table.HasColumn(column) {
				unknown[column] = true
				continue
			}
			if s, ok := jsonutil.FlexibleStringValue(value); ok {
				row[column] = s
			}
		}
		table.SampleRows = append(table.SampleRows, row)
	}
	for _, column := range sortedKeys(unknown) {
		model.Diagnostics = append(model.Diagnostics, models.Diagnostic{
			Kind:     models.DiagnosticUnknownSampleColumn,
			Severity: models.SeverityWarning,
			Subject:  name + "." + column,
			Message:  fmt.Sprintf("sample rows of %s carry undeclared column %q; ignored", name, column),
		})
	}

	if !model.AddTable(table) {
		return apperrors.NewMalformedTable(name, "duplicate table name")
	}

	if l.logger.Core().Enabled(zap.DebugLevel) {
		for _, col := range table.Columns {
			if values := table.SampleValues(col.Name); len(values) > 0 {
				l.logger.Debug("Sampled column",
					zap.String("table", name),
					zap.String("column", col.Name),
					zap.Strings("values", logging.SanitizeSampleValues(values)))
			}
		}
	}

	return nil
}

// reconcileMembership unions group.tables with table.groups and records
// one-sided or dangling listings.
func (l *schemaLoader) reconcileMembership(model *models.SchemaModel) {
	listedByGroup := make(map[string]map[string]bool) // table -> groups listing it

	for _, groupName := range model.GroupNames() {
		group := model.Groups[groupName]
		var kept []string
		for _, tableName := range group.Tables {
			if model.Table(tableName) == nil {
				model.Diagnostics = append(model.Diagnostics, models.Diagnostic{
					Kind:     models.DiagnosticUnknownGroupMember,
					Severity: models.SeverityWarning,
					Subject:  groupName,
					Message:  fmt.Sprintf("group %s lists undeclared table %q", groupName, tableName),
					Related:  []string{tableName},
				})
				continue
			}
			kept = append(kept, tableName)
			if listedByGroup[tableName] == nil {
				listedByGroup[tableName] = make(map[string]bool)
			}
			listedByGroup[tableName][groupName] = true
		}
		group.Tables = kept
	}

	for _, table := range model.Tables {
		declared := make(map[string]bool, len(table.Groups))
		for _, g := range table.Groups {
			declared[g] = true
			group := model.Groups[g]
			if !listedByGroup[table.Name][g] {
				model.Diagnostics = append(model.Diagnostics, models.Diagnostic{
					Kind:     models.DiagnosticGroupMembershipMismatch,
					Severity: models.SeverityInfo,
					Subject:  table.Name,
					Message:  fmt.Sprintf("table %s names group %s, which does not list it", table.Name, g),
					Related:  []string{g},
				})
				group.Tables = uniqueSorted(append(group.Tables, table.Name))
			}
		}
		for _, g := range sortedKeys(listedByGroup[table.Name]) {
			if declared[g] {
				continue
			}
			model.Diagnostics = append(model.Diagnostics, models.Diagnostic{
				Kind:     models.DiagnosticGroupMembershipMismatch,
				Severity: models.SeverityInfo,
				Subject:  table.Name,
				Message:  fmt.Sprintf("group %s lists table %s, which does not name it", g, table.Name),
				Related:  []string{g},
			})
			table.Groups = uniqueSorted(append(table.Groups, g))
		}
	}
}

// checkColumnDescriptions flags column names described differently across tables.
func (l *schemaLoader) checkColumnDescriptions(model *models.SchemaModel) {
	conflicts := model.Columns.Conflicts()
	for _, column := range sortedKeys(conflicts) {
		byDesc := conflicts[column]
		var tables []string
		for _, ts := range byDesc {
			tables = append(tables, ts...)
		}
		model.Diagnostics = append(model.Diagnostics, models.Diagnostic{
			Kind:     models.DiagnosticInconsistentColumnDescription,
			Severity: models.SeverityWarning,
			Subject:  column,
			Message: fmt.Sprintf("column %s carries %d different descriptions; using %q",
				column, len(byDesc), model.Columns.Describe(column)),
			Related: uniqueSorted(tables),
		})
	}
}

// ParseColumnSpec splits "name (TYPE): description". The description part
// is optional ("name (TYPE)"); name and type are required.
func ParseColumnSpec(spec string) (models.Column, error) {
	idx := strings.Index(spec, " (")
	if idx < 0 {
		return models.Column{}, fmt.Errorf("expected \"name (TYPE): description\"")
	}
	name := strings.TrimSpace(spec[:idx])
	if name == "" {
		return models.Column{}, fmt.Errorf("column name is empty")
	}

	rest := spec[idx+2:]
	var dataType, description string
	if end := strings.Index(rest, "):"); end >= 0 {
		dataType = rest[:end]
		description = rest[end+2:]
	} else if trimmed := strings.TrimSpace(rest); strings.HasSuffix(trimmed, ")") {
		dataType = strings.TrimSuffix(trimmed, ")")
	} else {
		return models.Column{}, fmt.Errorf("type of column %q is not closed", name)
	}

	dataType = strings.TrimSpace(dataType)
	if dataType == "" {
		return models.Column{}, fmt.Errorf("type of column %q is empty", name)
	}

	return models.Column{
		Name:        name,
		DataType:    dataType,
		Description: cleanDescription(description),
	}, nil
}

func cleanDescription(s string) string {
	s = strings.TrimSpace(s)
	if descriptionPlaceholders[strings.ToLower(s)] {
		return ""
	}
	return s
}

func uniqueSorted(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
