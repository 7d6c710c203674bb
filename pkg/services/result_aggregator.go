package services

import (
	"errors"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-taxonomy/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-taxonomy/pkg/config"
	"github.com/ekaya-inc/ekaya-taxonomy/pkg/models"
)

// ResultAggregator merges detector output and hierarchy facts into a report.
type ResultAggregator interface {
	// Aggregate deduplicates candidates by (source, target) column pair,
	// marks pairs found by both detectors as corroborated and ranks them.
	// Inputs are not modified.
	Aggregate(
		model *models.SchemaModel,
		hierarchy *models.GroupHierarchy,
		hierarchyErr error,
		naming []*models.RelationshipCandidate,
		overlap []*models.RelationshipCandidate,
	) *models.Report
}

type resultAggregator struct {
	cfg    config.InferenceConfig
	logger *zap.Logger
}

// NewResultAggregator creates a new ResultAggregator.
func NewResultAggregator(cfg config.InferenceConfig, logger *zap.Logger) ResultAggregator {
	return &resultAggregator{
		cfg:    cfg,
		logger: logger.Named("result-aggregator"),
	}
}

func (a *resultAggregator) Aggregate(
	model *models.SchemaModel,
	hierarchy *models.GroupHierarchy,
	hierarchyErr error,
	naming []*models.RelationshipCandidate,
	overlap []*models.RelationshipCandidate,
) *models.Report {
	merged := a.merge(naming, overlap)
	relationships := a.dropInvalid(model, merged)
	sortCandidates(relationships)

	graph := NewTableGraph()
	for _, t := range model.Tables {
		graph.AddTable(t.Name)
	}
	for _, c := range relationships {
		graph.AddRelationship(c)
	}
	components, islands := graph.FindConnectedComponents()
	LogConnectivity(len(relationships), components, islands, a.logger)

	var diags []models.Diagnostic
	diags = append(diags, model.Diagnostics...)
	if hierarchy != nil {
		diags = append(diags, hierarchy.Diagnostics...)
	}
	if hierarchyErr != nil {
		diags = append(diags, hierarchyDiagnostic(hierarchyErr))
		hierarchy = nil
	}
	models.SortDiagnostics(diags)

	report := &models.Report{
		ExportTimestamp: model.ExportTimestamp,
		Hierarchy:       hierarchy,
		Families:        model.Families,
		Relationships:   relationships,
		Components:      components,
		IslandTables:    islands,
		Diagnostics:     diags,
		HierarchyErr:    hierarchyErr,
	}
	if report.Relationships == nil {
		report.Relationships = []*models.RelationshipCandidate{}
	}

	columns := 0
	for _, t := range model.Tables {
		columns += len(t.Columns)
	}
	report.Summary = models.ReportSummary{
		Groups:        len(model.Groups),
		Tables:        len(model.Tables),
		Columns:       columns,
		Relationships: len(relationships),
		Corroborated:  len(report.RelationshipsBySupport(models.SupportCorroborated)),
		NamingOnly:    len(report.RelationshipsBySupport(models.SupportNaming)),
		Speculative:   len(report.RelationshipsBySupport(models.SupportSpeculative)),
		Components:    len(components),
		Warnings:      models.CountBySeverity(diags, models.SeverityWarning),
		HierarchyOK:   hierarchyErr == nil,
	}

	a.logger.Info("Aggregated relationship candidates",
		zap.Int("naming", len(naming)),
		zap.Int("overlap", len(overlap)),
		zap.Int("relationships", report.Summary.Relationships),
		zap.Int("corroborated", report.Summary.Corroborated),
		zap.Int("speculative", report.Summary.Speculative),
		zap.Bool("hierarchy_ok", report.Summary.HierarchyOK))

	return report
}

// merge deduplicates by key. Overlap that agrees with a naming candidate
// corroborates it; overlap pointing the other way along a strong naming
// link is dropped.
func (a *resultAggregator) merge(naming, overlap []*models.RelationshipCandidate) []*models.RelationshipCandidate {
	byKey := make(map[models.CandidateKey]*models.RelationshipCandidate)
	var order []models.CandidateKey

	for _, c := range naming {
		k := c.Key()
		if existing, ok := byKey[k]; ok {
			if c.Confidence > existing.Confidence {
				byKey[k] = c.Clone()
			}
			continue
		}
		byKey[k] = c.Clone()
		order = append(order, k)
	}

	for _, c := range overlap {
		k := c.Key()
		existing, ok := byKey[k]
		switch {
		case ok && existing.DetectionMethod == models.DetectionMethodNameInference:
			corroborate(existing, c)
			a.logger.Debug("Corroborated candidate", zap.String("relationship", k.String()))
		case ok && existing.DetectionMethod == models.DetectionMethodValueMatch:
			if c.Confidence > existing.Confidence {
				byKey[k] = c.Clone()
			}
		case ok:
			// already corroborated
		default:
			if reverse, found := byKey[k.Reverse()]; found &&
				reverse.DetectionMethod != models.DetectionMethodValueMatch &&
				reverse.Confidence >= a.cfg.HighConfidenceThreshold {
				a.logger.Debug("Suppressed reverse value overlap",
					zap.String("relationship", k.String()),
					zap.Float64("naming_confidence", reverse.Confidence))
				continue
			}
			byKey[k] = c.Clone()
			order = append(order, k)
		}
	}

	out := make([]*models.RelationshipCandidate, 0, len(order))
	for _, k := range order {
		c := byKey[k]
		c.Support = supportOf(c)
		out = append(out, c)
	}
	return out
}

// corroborate folds an overlap candidate into a naming candidate. The
// naming side's cardinality is kept.
func corroborate(existing, other *models.RelationshipCandidate) {
	existing.Corroborated = true
	existing.DetectionMethod = models.DetectionMethodHybrid
	if other.Confidence > existing.Confidence {
		existing.Confidence = other.Confidence
	}
	existing.Evidence = append(existing.Evidence, other.Evidence...)
}

func supportOf(c *models.RelationshipCandidate) models.Support {
	switch {
	case c.Corroborated:
		return models.SupportCorroborated
	case c.DetectionMethod == models.DetectionMethodValueMatch:
		return models.SupportSpeculative
	default:
		return models.SupportNaming
	}
}

// dropInvalid removes candidates whose columns do not exist in the model or
// whose cardinality or detection method is not one the report defines.
func (a *resultAggregator) dropInvalid(model *models.SchemaModel, cs []*models.RelationshipCandidate) []*models.RelationshipCandidate {
	out := cs[:0]
	for _, c := range cs {
		if !models.IsValidCardinality(c.Cardinality) || !models.IsValidDetectionMethod(c.DetectionMethod) {
			a.logger.Warn("Dropping candidate with invalid classification",
				zap.String("relationship", c.Key().String()),
				zap.String("cardinality", c.Cardinality),
				zap.String("detection_method", string(c.DetectionMethod)))
			continue
		}
		source, target := model.Table(c.SourceTable), model.Table(c.TargetTable)
		if source == nil || target == nil || !source.HasColumn(c.SourceColumn) || !target.HasColumn(c.TargetColumn) {
			a.logger.Warn("Dropping candidate with unknown column", zap.String("relationship", c.Key().String()))
			continue
		}
		out = append(out, c)
	}
	return out
}

// hierarchyDiagnostic records a failed hierarchy pass.
func hierarchyDiagnostic(err error) models.Diagnostic {
	d := models.Diagnostic{
		Kind:     models.DiagnosticCyclicHierarchy,
		Severity: models.SeverityError,
		Message:  err.Error(),
	}
	var cyclic *apperrors.CyclicHierarchyError
	if errors.As(err, &cyclic) && len(cyclic.Cycle) > 0 {
		d.Subject = cyclic.Cycle[0]
		d.Related = append([]string(nil), cyclic.Cycle...)
	}
	return d
}
