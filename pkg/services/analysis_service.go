package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-taxonomy/pkg/config"
	"github.com/ekaya-inc/ekaya-taxonomy/pkg/models"
	"github.com/ekaya-inc/ekaya-taxonomy/pkg/workerpool"
)

// AnalysisService runs the full inference pipeline over one export:
// load, validate the hierarchy, detect relationships, aggregate.
type AnalysisService interface {
	// Analyze reads an export and returns its report. Only malformed input,
	// read failures and cancellation are returned as errors; a cyclic
	// hierarchy is reported inside the report while relationships are
	// still inferred.
	Analyze(ctx context.Context, r io.Reader) (*models.Report, error)

	// AnalyzeBytes is Analyze over an export already held in memory.
	AnalyzeBytes(ctx context.Context, data []byte) (*models.Report, error)
}

type analysisService struct {
	loader     SchemaLoader
	validator  HierarchyValidator
	naming     NamingDetector
	overlap    ValueOverlapDetector
	aggregator ResultAggregator
	logger     *zap.Logger
}

// NewAnalysisService wires the pipeline components from configuration.
func NewAnalysisService(cfg config.InferenceConfig, logger *zap.Logger) AnalysisService {
	pool := workerpool.New(workerpool.Config{MaxConcurrent: cfg.MaxConcurrency}, logger)
	return &analysisService{
		loader:     NewSchemaLoader(cfg, logger),
		validator:  NewHierarchyValidator(logger),
		naming:     NewNamingDetector(cfg, pool, logger),
		overlap:    NewValueOverlapDetector(cfg, pool, logger),
		aggregator: NewResultAggregator(cfg, logger),
		logger:     logger.Named("analysis"),
	}
}

func (s *analysisService) Analyze(ctx context.Context, r io.Reader) (*models.Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	return s.AnalyzeBytes(ctx, data)
}

func (s *analysisService) AnalyzeBytes(ctx context.Context, data []byte) (*models.Report, error) {
	startTime := time.Now()

	model, err := s.loader.LoadBytes(ctx, data)
	if err != nil {
		return nil, err
	}

	hierarchy, hierarchyErr := s.validator.Validate(model)
	if hierarchyErr != nil {
		s.logger.Warn("Hierarchy pass failed; continuing with relationship inference", zap.Error(hierarchyErr))
	}

	var naming, overlap []*models.RelationshipCandidate
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		naming, err = s.naming.Detect(gctx, model)
		return err
	})
	g.Go(func() error {
		var err error
		overlap, err = s.overlap.Detect(gctx, model)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := s.aggregator.Aggregate(model, hierarchy, hierarchyErr, naming, overlap)
	report.DocumentID = uuid.NewSHA1(uuid.NameSpaceOID, data)

	s.logger.Info("Analysis complete",
		zap.String("document_id", report.DocumentID.String()),
		zap.Int("relationships", report.Summary.Relationships),
		zap.Int("diagnostics", len(report.Diagnostics)),
		zap.Duration("elapsed", time.Since(startTime)))

	return report, nil
}
