package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
	"github.com/texttheater/golang-levenshtein/levenshtein"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-taxonomy/pkg/config"
	"github.com/ekaya-inc/ekaya-taxonomy/pkg/models"
	"github.com/ekaya-inc/ekaya-taxonomy/pkg/workerpool"
)

// minFuzzyStemLength keeps short stems such as "id" or "num" out of fuzzy matching.
const minFuzzyStemLength = 4

// genericIdentifierNames are too common to link tables on their own.
var genericIdentifierNames = map[string]bool{
	"id": true, "code": true, "key": true, "uuid": true,
}

// Levenshtein with unit substitution cost, so similarity is 1 - edits/len.
var unitCostOptions = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 1,
	Matches: levenshtein.IdenticalRunes,
}

// NamingDetector proposes relationships from column naming conventions.
type NamingDetector interface {
	// Detect returns naming candidates for every column of every table.
	// A column with no plausible target yields nothing.
	Detect(ctx context.Context, model *models.SchemaModel) ([]*models.RelationshipCandidate, error)
}

type namingDetector struct {
	cfg    config.InferenceConfig
	pool   *workerpool.WorkerPool
	logger *zap.Logger
}

// NewNamingDetector creates a new NamingDetector.
func NewNamingDetector(cfg config.InferenceConfig, pool *workerpool.WorkerPool, logger *zap.Logger) NamingDetector {
	return &namingDetector{
		cfg:    cfg,
		pool:   pool,
		logger: logger.Named("naming-detector"),
	}
}

func (d *namingDetector) Detect(ctx context.Context, model *models.SchemaModel) ([]*models.RelationshipCandidate, error) {
	index := newTableIndex(model, d.cfg.IdentifierSuffixes, d.cfg.FamilySuffixes)

	items := make([]workerpool.WorkItem[[]*models.RelationshipCandidate], 0, len(model.Tables))
	for _, table := range model.Tables {
		table := table
		items = append(items, workerpool.WorkItem[[]*models.RelationshipCandidate]{
			ID: table.Name,
			Execute: func(ctx context.Context) ([]*models.RelationshipCandidate, error) {
				return d.detectTable(index, table), nil
			},
		})
	}

	perTable, err := workerpool.ProcessOrdered(ctx, d.pool, items)
	if err != nil {
		return nil, fmt.Errorf("naming detection: %w", err)
	}

	var candidates []*models.RelationshipCandidate
	for _, cs := range perTable {
		candidates = append(candidates, cs...)
	}

	d.logger.Info("Naming detection complete",
		zap.Int("tables", len(model.Tables)),
		zap.Int("candidates", len(candidates)))

	return candidates, nil
}

func (d *namingDetector) detectTable(index *tableIndex, table *models.Table) []*models.RelationshipCandidate {
	var out []*models.RelationshipCandidate
	for _, col := range table.Columns {
		for _, c := range d.detectColumn(index, table, col) {
			d.logger.Debug("Naming candidate",
				zap.String("relationship", c.Key().String()),
				zap.Float64("confidence", c.Confidence))
			out = append(out, c)
		}
	}
	return out
}

func (d *namingDetector) detectColumn(index *tableIndex, table *models.Table, col models.Column) []*models.RelationshipCandidate {
	own := index.identifiers[table.Name]
	isOwnIdentifier := own.name == col.Name

	stem := index.stem(col.Name)
	if stem != "" {
		if target, viaFamily := index.resolveStem(stem, table.Name); target != nil {
			if target != table || !isOwnIdentifier {
				if c := d.stemCandidate(index, table, col, target, stem, viaFamily); c != nil {
					return []*models.RelationshipCandidate{c}
				}
			}
			// A stem that names a table but finds no target column does
			// not fall through to weaker rules.
			return nil
		}
	}

	if !isOwnIdentifier {
		if shared := d.sharedIdentifierCandidates(index, table, col); len(shared) > 0 {
			return shared
		}
	}

	if stem != "" && d.cfg.FuzzyStemSimilarity > 0 {
		if c := d.fuzzyCandidate(index, table, col, stem, isOwnIdentifier); c != nil {
			return []*models.RelationshipCandidate{c}
		}
	}

	return nil
}

// stemCandidate links a column whose stem names the target table.
func (d *namingDetector) stemCandidate(index *tableIndex, table *models.Table, col models.Column, target *models.Table, stem string, viaFamily bool) *models.RelationshipCandidate {
	targetCol, exact := index.targetColumn(target, col.Name)
	if targetCol == "" || (target == table && targetCol == col.Name) {
		return nil
	}

	confidence := d.cfg.NamingStemConfidence
	evidence := []models.Evidence{{
		Type:    models.EvidenceNamingStem,
		Score:   d.cfg.NamingStemConfidence,
		Details: fmt.Sprintf("stem %q of %s names table %s", stem, col.Name, target.Name),
	}}
	if exact {
		confidence = d.cfg.NamingIdentifierConfidence
		evidence = append(evidence, models.Evidence{
			Type:    models.EvidenceIdentifierColumn,
			Score:   d.cfg.NamingIdentifierConfidence,
			Details: fmt.Sprintf("%s has exact-named identifier column %s", target.Name, targetCol),
		})
	}
	if viaFamily {
		evidence = append(evidence, models.Evidence{
			Type:    models.EvidenceFamilyVariant,
			Score:   confidence,
			Details: fmt.Sprintf("%s and %s are variants of the same family", table.Name, target.Name),
		})
	}

	return d.newCandidate(index, table, col, target, targetCol, confidence, evidence)
}

// sharedIdentifierCandidates links a column to other tables whose own
// identifier column carries exactly the same name.
func (d *namingDetector) sharedIdentifierCandidates(index *tableIndex, table *models.Table, col models.Column) []*models.RelationshipCandidate {
	if genericIdentifierNames[strings.ToLower(col.Name)] {
		return nil
	}

	var targets []*models.Table
	for _, other := range index.sorted {
		if other == table || index.identifiers[other.Name].name != col.Name {
			continue
		}
		targets = append(targets, other)
	}
	if len(targets) > 1 {
		// Prefer the variant of the same family when one exists.
		if suffix := familySuffix(table.Name, index.familySuffixes); suffix != "" {
			for _, t := range targets {
				if familySuffix(t.Name, index.familySuffixes) == suffix {
					targets = []*models.Table{t}
					break
				}
			}
		}
	}

	var out []*models.RelationshipCandidate
	for _, target := range targets {
		evidence := []models.Evidence{{
			Type:    models.EvidenceSharedIdentifier,
			Score:   d.cfg.NamingStemConfidence,
			Details: fmt.Sprintf("%s is the identifier column of %s", col.Name, target.Name),
		}}
		out = append(out, d.newCandidate(index, table, col, target, col.Name, d.cfg.NamingStemConfidence, evidence))
	}
	return out
}

// fuzzyCandidate links a near-miss stem (typos, abbreviations) to the most
// similar table name.
func (d *namingDetector) fuzzyCandidate(index *tableIndex, table *models.Table, col models.Column, stem string, isOwnIdentifier bool) *models.RelationshipCandidate {
	entity := inflection.Singular(stem)
	if len(entity) < minFuzzyStemLength {
		return nil
	}

	var best *models.Table
	bestScore := 0.0
	for _, candidate := range index.sorted {
		if candidate == table && isOwnIdentifier {
			continue
		}
		score := stemSimilarity(entity, index.entityName(candidate))
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}
	if best == nil || bestScore < d.cfg.FuzzyStemSimilarity {
		return nil
	}

	targetCol, _ := index.targetColumn(best, col.Name)
	if targetCol == "" || (best == table && targetCol == col.Name) {
		return nil
	}

	evidence := []models.Evidence{{
		Type:    models.EvidenceFuzzyStem,
		Score:   bestScore,
		Details: fmt.Sprintf("stem %q is %.0f%% similar to table %s", entity, bestScore*100, best.Name),
	}}
	return d.newCandidate(index, table, col, best, targetCol, d.cfg.NamingFuzzyConfidence, evidence)
}

// newCandidate builds an N:1 candidate, promoting it to 1:1 when the source
// column is its table's identifier and unique across at least two samples.
func (d *namingDetector) newCandidate(index *tableIndex, table *models.Table, col models.Column, target *models.Table, targetCol string, confidence float64, evidence []models.Evidence) *models.RelationshipCandidate {
	c := &models.RelationshipCandidate{
		SourceTable:     table.Name,
		SourceColumn:    col.Name,
		TargetTable:     target.Name,
		TargetColumn:    targetCol,
		Cardinality:     models.CardinalityNTo1,
		Confidence:      confidence,
		DetectionMethod: models.DetectionMethodNameInference,
		Evidence:        evidence,
	}

	if index.identifiers[table.Name].name == col.Name {
		values := nonNullValues(table.SampleValues(col.Name))
		if len(values) >= 2 && allDistinct(values) {
			c.Cardinality = models.Cardinality1To1
			c.Confidence = confidence - d.cfg.OneToOnePenalty
			c.Evidence = append(c.Evidence, models.Evidence{
				Type:    models.EvidenceUniqueSample,
				Score:   c.Confidence,
				Details: fmt.Sprintf("%s is the identifier of %s and unique in %d sampled rows", col.Name, table.Name, len(values)),
			})
		}
	}
	return c
}

// tableIndex is a read-only lookup shared by detector workers.
type tableIndex struct {
	byLower            map[string]*models.Table
	sorted             []*models.Table
	identifiers        map[string]identifierColumn
	identifierSuffixes []string // longest first
	familySuffixes     []string
	columns            *models.ColumnDictionary
}

type identifierColumn struct {
	name  string
	exact bool
}

func newTableIndex(model *models.SchemaModel, identifierSuffixes, familySuffixes []string) *tableIndex {
	idx := &tableIndex{
		byLower:            make(map[string]*models.Table, len(model.Tables)),
		identifiers:        make(map[string]identifierColumn, len(model.Tables)),
		identifierSuffixes: append([]string(nil), identifierSuffixes...),
		familySuffixes:     familySuffixes,
		columns:            model.Columns,
	}
	sort.SliceStable(idx.identifierSuffixes, func(i, j int) bool {
		return len(idx.identifierSuffixes[i]) > len(idx.identifierSuffixes[j])
	})

	for _, t := range model.Tables {
		idx.byLower[strings.ToLower(t.Name)] = t
		idx.sorted = append(idx.sorted, t)
	}
	sort.Slice(idx.sorted, func(i, j int) bool {
		return idx.sorted[i].Name < idx.sorted[j].Name
	})

	for _, t := range model.Tables {
		idx.identifiers[t.Name] = idx.ownIdentifier(t)
	}
	return idx
}

// stem returns the lowercase entity stem of a foreign-key-like column name,
// or "" when the name carries no identifier suffix.
func (idx *tableIndex) stem(column string) string {
	name := toSnakeCase(column)
	if suffix := idx.suffix(column); suffix != "" {
		return strings.Trim(name[:len(name)-len(suffix)], "_")
	}
	return ""
}

// suffix returns the identifier suffix a column name ends in, or "" when the
// suffix is the whole name.
func (idx *tableIndex) suffix(column string) string {
	name := toSnakeCase(column)
	for _, suffix := range idx.identifierSuffixes {
		if strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
			return suffix
		}
	}
	return ""
}

// resolveStem finds the table a stem names. The same-suffix variant of the
// source table's family wins over an exact table name.
func (idx *tableIndex) resolveStem(stem, sourceTable string) (*models.Table, bool) {
	forms := []string{stem, inflection.Singular(stem), inflection.Plural(stem)}

	if suffix := familySuffix(sourceTable, idx.familySuffixes); suffix != "" {
		for _, form := range forms {
			if t, ok := idx.byLower[form+"_"+suffix]; ok {
				return t, true
			}
		}
	}
	for _, form := range forms {
		if t, ok := idx.byLower[form]; ok {
			return t, false
		}
	}
	return nil, false
}

// entityName is the singular lowercase name a table stands for, without
// its family suffix.
func (idx *tableIndex) entityName(t *models.Table) string {
	name := strings.ToLower(t.Name)
	if base := familyBase(name, idx.familySuffixes); base != "" {
		name = base
	}
	return inflection.Singular(name)
}

// exactIdentifierNames are the column names treated as a table's own key.
func (idx *tableIndex) exactIdentifierNames(t *models.Table) []string {
	lower := strings.ToLower(t.Name)
	names := []string{"id", inflection.Singular(lower) + "_id", lower + "_id"}
	if base := familyBase(lower, idx.familySuffixes); base != "" {
		names = append(names, inflection.Singular(base)+"_id", base+"_id")
	}
	return names
}

// ownIdentifier picks a table's identifier column: an exact-named key
// first, then a column described as the primary key, then one described as
// a unique identifier. Descriptions are global by column name, so on a
// column whose stem references another table they usually describe the
// parent: "primary key" counts only when the referenced table does not
// declare the same column with the same description, "unique identifier"
// never does.
func (idx *tableIndex) ownIdentifier(t *models.Table) identifierColumn {
	for _, want := range idx.exactIdentifierNames(t) {
		for _, col := range t.Columns {
			if strings.ToLower(col.Name) == want {
				return identifierColumn{name: col.Name, exact: true}
			}
		}
	}

	for _, col := range t.Columns {
		if !strings.Contains(strings.ToLower(col.Description), "primary key") {
			continue
		}
		if ref := idx.referencedTable(t, col.Name); ref != nil && idx.columns != nil &&
			idx.columns.DeclaredBy(col.Name, col.Description, ref.Name) {
			continue
		}
		return identifierColumn{name: col.Name}
	}

	for _, col := range t.Columns {
		if !strings.Contains(strings.ToLower(col.Description), "unique identifier") {
			continue
		}
		if idx.referencedTable(t, col.Name) != nil {
			continue
		}
		return identifierColumn{name: col.Name}
	}
	return identifierColumn{}
}

// referencedTable is the other table a column's stem names, or nil.
func (idx *tableIndex) referencedTable(t *models.Table, column string) *models.Table {
	stem := idx.stem(column)
	if stem == "" {
		return nil
	}
	if target, _ := idx.resolveStem(stem, t.Name); target != nil && target != t {
		return target
	}
	return nil
}

// targetColumn picks the referenced column of a target table. A column
// carrying a non-key suffix such as _code or _uuid first looks for a column
// of the same name, the bare suffix ("code") or <entity><suffix>. Otherwise
// the target's own identifier wins, else a column with the source name.
func (idx *tableIndex) targetColumn(target *models.Table, sourceColumn string) (string, bool) {
	id := idx.identifiers[target.Name]

	if suffix := idx.suffix(sourceColumn); suffix != "" && suffix != "_id" {
		for _, want := range []string{toSnakeCase(sourceColumn), strings.TrimPrefix(suffix, "_"), idx.entityName(target) + suffix} {
			if name := columnNamed(target, want); name != "" {
				return name, id.exact && name == id.name
			}
		}
	}

	if id.name != "" {
		return id.name, id.exact
	}
	if target.HasColumn(sourceColumn) {
		return sourceColumn, false
	}
	return "", false
}

// columnNamed finds a column by case-insensitive snake_case name.
func columnNamed(t *models.Table, want string) string {
	for _, col := range t.Columns {
		if toSnakeCase(col.Name) == want {
			return col.Name
		}
	}
	return ""
}

// stemSimilarity is 1 - edit distance / longer length.
func stemSimilarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	if longest == 0 {
		return 0
	}
	distance := levenshtein.DistanceForStrings(ra, rb, unitCostOptions)
	return 1.0 - float64(distance)/float64(longest)
}

// toSnakeCase lowercases a column name, splitting camelCase words with "_".
func toSnakeCase(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]) ||
				(i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func allDistinct(values []string) bool {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		if seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}
