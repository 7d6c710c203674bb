package services

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-taxonomy/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-taxonomy/pkg/models"
)

func newTestAnalysisService() AnalysisService {
	return NewAnalysisService(testInferenceConfig(), zap.NewNop())
}

func TestAnalysisService_ClinicalExport(t *testing.T) {
	defer goleak.VerifyNone(t)

	report, err := newTestAnalysisService().Analyze(context.Background(), bytes.NewReader([]byte(clinicalExport)))
	require.NoError(t, err)

	assert.NoError(t, report.HierarchyErr)
	require.NotNil(t, report.Hierarchy)
	assert.Equal(t, []string{"AISN", "Clinical", "Gaming", "Sessions"}, report.Hierarchy.Order)
	assert.Equal(t, "2025-01-15T10:30:00", report.ExportTimestamp)

	patient := findCandidate(report.Relationships, "patient_diagnosis_data", "patient_id", "patient", "patient_id")
	require.NotNil(t, patient)
	assert.Equal(t, models.CardinalityNTo1, patient.Cardinality)
	assert.True(t, patient.Corroborated)
	assert.InDelta(t, 0.9, patient.Confidence, 1e-9)

	voucher := findCandidate(report.Relationships, "code_redemption", "v_code", "code", "code")
	require.NotNil(t, voucher)
	assert.Equal(t, models.SupportSpeculative, voucher.Support)
	assert.Less(t, voucher.Confidence, patient.Confidence)

	orphans := diagnosticsOfKind(report.Diagnostics, models.DiagnosticOrphanParentReference)
	require.Len(t, orphans, 1)
	assert.Equal(t, "ClinicalTrialRoot", orphans[0].Subject)

	assert.Equal(t, models.ReportSummary{
		Groups:        4,
		Tables:        9,
		Columns:       19,
		Relationships: 4,
		Corroborated:  3,
		Speculative:   1,
		Components:    4,
		Warnings:      1,
		HierarchyOK:   true,
	}, report.Summary)
}

func TestAnalysisService_CyclicHierarchyStillInfersRelationships(t *testing.T) {
	defer goleak.VerifyNone(t)

	report, err := newTestAnalysisService().AnalyzeBytes(context.Background(), []byte(cyclicExport))
	require.NoError(t, err)

	assert.True(t, errors.Is(report.HierarchyErr, apperrors.ErrCyclicHierarchy))
	assert.Nil(t, report.Hierarchy)
	assert.False(t, report.Summary.HierarchyOK)

	cyclic := diagnosticsOfKind(report.Diagnostics, models.DiagnosticCyclicHierarchy)
	require.Len(t, cyclic, 1)
	assert.Equal(t, []string{"A", "B", "A"}, cyclic[0].Related)

	require.Len(t, report.Relationships, 1)
	c := report.Relationships[0]
	assert.Equal(t, "orders.customer_id -> customer.customer_id", c.Key().String())
	assert.InDelta(t, 0.9, c.Confidence, 1e-9)
	assert.Equal(t, models.CardinalityNTo1, c.Cardinality)
}

func TestAnalysisService_NoDanglingReferences(t *testing.T) {
	report, err := newTestAnalysisService().AnalyzeBytes(context.Background(), []byte(clinicalExport))
	require.NoError(t, err)

	model := loadFixture(t, clinicalExport)
	for _, c := range report.Relationships {
		source, target := model.Table(c.SourceTable), model.Table(c.TargetTable)
		require.NotNil(t, source, c.Key().String())
		require.NotNil(t, target, c.Key().String())
		assert.True(t, source.HasColumn(c.SourceColumn), c.Key().String())
		assert.True(t, target.HasColumn(c.TargetColumn), c.Key().String())
	}
}

func TestAnalysisService_Deterministic(t *testing.T) {
	svc := newTestAnalysisService()

	first, err := svc.AnalyzeBytes(context.Background(), []byte(clinicalExport))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := svc.AnalyzeBytes(context.Background(), []byte(clinicalExport))
		require.NoError(t, err)
		if diff := cmp.Diff(first, again, cmpopts.IgnoreUnexported(models.GroupHierarchy{})); diff != "" {
			t.Fatalf("reports differ between runs (-first +again):\n%s", diff)
		}
	}
	assert.NotEqual(t, [16]byte{}, [16]byte(first.DocumentID))
}

func TestAnalysisService_DocumentIDFollowsContent(t *testing.T) {
	svc := newTestAnalysisService()

	a, err := svc.AnalyzeBytes(context.Background(), []byte(clinicalExport))
	require.NoError(t, err)
	b, err := svc.AnalyzeBytes(context.Background(), []byte(cyclicExport))
	require.NoError(t, err)

	assert.NotEqual(t, a.DocumentID, b.DocumentID)
}

func TestAnalysisService_MalformedInput(t *testing.T) {
	defer goleak.VerifyNone(t)

	tests := []struct {
		name string
		doc  string
	}{
		{name: "not json", doc: "{"},
		{name: "missing tables", doc: `{"metadata": {"groups": {}}}`},
		{name: "bad column spec", doc: `{"metadata": {"groups": {}}, "tables": [{"table": "t", "columns": ["no type here"]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := newTestAnalysisService().AnalyzeBytes(context.Background(), []byte(tt.doc))
			require.Error(t, err)
			assert.Nil(t, report)
			assert.True(t, errors.Is(err, apperrors.ErrMalformedInput))
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestAnalysisService_ReadFailure(t *testing.T) {
	_, err := newTestAnalysisService().Analyze(context.Background(), failingReader{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read export")
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestAnalysisService_Cancelled(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestAnalysisService().AnalyzeBytes(ctx, []byte(clinicalExport))
	assert.ErrorIs(t, err, context.Canceled)
}
