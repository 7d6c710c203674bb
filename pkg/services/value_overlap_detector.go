package services

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-taxonomy/pkg/config"
	"github.com/ekaya-inc/ekaya-taxonomy/pkg/logging"
	"github.com/ekaya-inc/ekaya-taxonomy/pkg/models"
	"github.com/ekaya-inc/ekaya-taxonomy/pkg/workerpool"
)

// ValueOverlapDetector proposes relationships between columns whose sampled
// values are contained in one another. Its candidates are advisory only.
type ValueOverlapDetector interface {
	// Detect compares every type-compatible column pair across distinct tables.
	Detect(ctx context.Context, model *models.SchemaModel) ([]*models.RelationshipCandidate, error)
}

type valueOverlapDetector struct {
	cfg    config.InferenceConfig
	pool   *workerpool.WorkerPool
	logger *zap.Logger
}

// NewValueOverlapDetector creates a new ValueOverlapDetector.
func NewValueOverlapDetector(cfg config.InferenceConfig, pool *workerpool.WorkerPool, logger *zap.Logger) ValueOverlapDetector {
	return &valueOverlapDetector{
		cfg:    cfg,
		pool:   pool,
		logger: logger.Named("value-overlap-detector"),
	}
}

// sampledColumn is a column with its canonical distinct sample values.
type sampledColumn struct {
	table   *models.Table
	column  models.Column
	class   typeClass
	values  map[string]bool
	unique  bool // no repeated value across the sampled rows
	idLike  bool
	ordered []string
}

func (d *valueOverlapDetector) Detect(ctx context.Context, model *models.SchemaModel) ([]*models.RelationshipCandidate, error) {
	index := newTableIndex(model, d.cfg.IdentifierSuffixes, d.cfg.FamilySuffixes)

	// Columns per table, tables sorted by name.
	var perTable [][]*sampledColumn
	for _, table := range index.sorted {
		var cols []*sampledColumn
		for _, col := range table.Columns {
			if sc := newSampledColumn(index, table, col); sc != nil && len(sc.values) >= d.cfg.OverlapMinSharedValues {
				cols = append(cols, sc)
			}
		}
		perTable = append(perTable, cols)
	}

	items := make([]workerpool.WorkItem[[]*models.RelationshipCandidate], 0, len(perTable))
	for i := range perTable {
		i := i
		items = append(items, workerpool.WorkItem[[]*models.RelationshipCandidate]{
			ID: index.sorted[i].Name,
			Execute: func(ctx context.Context) ([]*models.RelationshipCandidate, error) {
				var out []*models.RelationshipCandidate
				for _, a := range perTable[i] {
					for j := i + 1; j < len(perTable); j++ {
						for _, b := range perTable[j] {
							if c := d.compare(a, b); c != nil {
								out = append(out, c)
							}
						}
					}
				}
				return out, nil
			},
		})
	}

	results, err := workerpool.ProcessOrdered(ctx, d.pool, items)
	if err != nil {
		return nil, fmt.Errorf("value overlap detection: %w", err)
	}

	var candidates []*models.RelationshipCandidate
	for _, cs := range results {
		candidates = append(candidates, cs...)
	}

	d.logger.Info("Value overlap detection complete",
		zap.Int("tables", len(model.Tables)),
		zap.Int("candidates", len(candidates)))

	return candidates, nil
}

func newSampledColumn(index *tableIndex, table *models.Table, col models.Column) *sampledColumn {
	class := classifyColumnType(col.DataType)
	if class == typeClassExcluded {
		return nil
	}
	raw := nonNullValues(table.SampleValues(col.Name))
	if len(raw) == 0 {
		return nil
	}

	sc := &sampledColumn{
		table:  table,
		column: col,
		class:  class,
		values: make(map[string]bool, len(raw)),
		unique: true,
	}
	for _, v := range raw {
		canon := canonicalValue(v, class)
		if sc.values[canon] {
			sc.unique = false
			continue
		}
		sc.values[canon] = true
		sc.ordered = append(sc.ordered, canon)
	}
	sc.idLike = isIdentifierLike(index, table, col.Name)
	return sc
}

// compare returns a candidate when the value set of one column is contained
// in the other's.
func (d *valueOverlapDetector) compare(a, b *sampledColumn) *models.RelationshipCandidate {
	if !typesCompatible(a.column.DataType, b.column.DataType) {
		return nil
	}

	shared := 0
	for v := range a.values {
		if b.values[v] {
			shared++
		}
	}
	if shared < d.cfg.OverlapMinSharedValues {
		return nil
	}

	aInB := shared == len(a.values)
	bInA := shared == len(b.values)

	var source, target *sampledColumn
	switch {
	case aInB && bInA:
		source, target = orientEqualSets(a, b)
	case aInB:
		source, target = a, b
	case bInA:
		source, target = b, a
	default:
		return nil
	}

	union := len(a.values) + len(b.values) - shared
	jaccard := float64(shared) / float64(union)
	confidence := d.cfg.OverlapMaxConfidence * jaccard

	cardinality := models.CardinalityNToM
	if target.unique {
		cardinality = models.CardinalityNTo1
	}

	c := &models.RelationshipCandidate{
		SourceTable:     source.table.Name,
		SourceColumn:    source.column.Name,
		TargetTable:     target.table.Name,
		TargetColumn:    target.column.Name,
		Cardinality:     cardinality,
		Confidence:      confidence,
		DetectionMethod: models.DetectionMethodValueMatch,
		Evidence: []models.Evidence{{
			Type:  models.EvidenceValueOverlap,
			Score: jaccard,
			Details: fmt.Sprintf("all %d sampled %s values of %s.%s appear in %s.%s",
				len(source.values), source.class, source.table.Name, source.column.Name,
				target.table.Name, target.column.Name),
		}},
	}

	d.logger.Debug("Value overlap candidate",
		zap.String("relationship", c.Key().String()),
		zap.Strings("shared_values", logging.SanitizeSampleValues(source.ordered)),
		zap.Float64("confidence", confidence))

	return c
}

// orientEqualSets points the candidate at the identifier-like side, else at
// the lexicographically smaller (table, column).
func orientEqualSets(a, b *sampledColumn) (source, target *sampledColumn) {
	switch {
	case a.idLike && !b.idLike:
		return b, a
	case b.idLike && !a.idLike:
		return a, b
	}
	if a.table.Name != b.table.Name {
		if a.table.Name < b.table.Name {
			return b, a
		}
		return a, b
	}
	if a.column.Name < b.column.Name {
		return b, a
	}
	return a, b
}

// isIdentifierLike reports whether a column looks like its own table's key:
// the table's identifier column, or a column named after the table's entity.
func isIdentifierLike(index *tableIndex, table *models.Table, column string) bool {
	if index.identifiers[table.Name].name == column {
		return true
	}
	entity := index.entityName(table)
	name := toSnakeCase(column)
	return name == entity || index.stem(column) == entity
}

// nonNullValues drops empty and null-like sample values.
func nonNullValues(values []string) []string {
	var out []string
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		switch strings.ToLower(trimmed) {
		case "", "none", "null", "nil", "nan":
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

// canonicalValue normalizes numerics so "7", "7.0" and "07" compare equal.
func canonicalValue(v string, class typeClass) string {
	if class != typeClassNumeric {
		return v
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return v
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// sortCandidates orders candidates by descending confidence, then by key.
func sortCandidates(cs []*models.RelationshipCandidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.SourceTable != b.SourceTable {
			return a.SourceTable < b.SourceTable
		}
		if a.SourceColumn != b.SourceColumn {
			return a.SourceColumn < b.SourceColumn
		}
		if a.TargetTable != b.TargetTable {
			return a.TargetTable < b.TargetTable
		}
		return a.TargetColumn < b.TargetColumn
	})
}
