package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-taxonomy/pkg/config"
	"github.com/ekaya-inc/ekaya-taxonomy/pkg/models"
)

func detectOverlap(t *testing.T, cfg config.InferenceConfig, doc string) []*models.RelationshipCandidate {
	t.Helper()
	model := loadFixture(t, doc)
	candidates, err := NewValueOverlapDetector(cfg, testPool(), zap.NewNop()).Detect(context.Background(), model)
	require.NoError(t, err)
	return candidates
}

func TestValueOverlapDetector_ClinicalExport(t *testing.T) {
	candidates := detectOverlap(t, testInferenceConfig(), clinicalExport)

	var keys []string
	for _, c := range candidates {
		keys = append(keys, c.Key().String())
	}
	assert.Equal(t, []string{
		"code_redemption.v_code -> code.code",
		"patient_diagnosis_data.patient_id -> patient.patient_id",
		"session_app.prescription_id -> prescription_app.prescription_id",
		"session_web.prescription_id -> prescription_web.prescription_id",
	}, keys)

	voucher := candidates[0]
	assert.Equal(t, models.DetectionMethodValueMatch, voucher.DetectionMethod)
	assert.Equal(t, models.CardinalityNTo1, voucher.Cardinality)
	assert.InDelta(t, 0.4, voucher.Confidence, 1e-9)
	require.Len(t, voucher.Evidence, 1)
	assert.Equal(t, models.EvidenceValueOverlap, voucher.Evidence[0].Type)
	assert.InDelta(t, 1.0, voucher.Evidence[0].Score, 1e-9)
}

func TestValueOverlapDetector_ConfidenceBelowNaming(t *testing.T) {
	cfg := testInferenceConfig()
	candidates := detectOverlap(t, cfg, clinicalExport)

	require.NotEmpty(t, candidates)
	for _, c := range candidates {
		assert.LessOrEqual(t, c.Confidence, cfg.OverlapMaxConfidence)
		assert.Less(t, c.Confidence, cfg.MinNamingConfidence())
		assert.NotEqual(t, models.Cardinality1To1, c.Cardinality)
	}
}

func TestValueOverlapDetector_Direction(t *testing.T) {
	cfg := testInferenceConfig()
	cfg.OverlapMinSharedValues = 1

	tests := []struct {
		name        string
		alphaRows   []map[string]any
		betaRows    []map[string]any
		key         string
		cardinality string
		confidence  float64
	}{
		{
			name:        "subset points at the superset",
			alphaRows:   []map[string]any{{"tag": "A"}, {"tag": "A"}},
			betaRows:    []map[string]any{{"label": "A"}, {"label": "B"}},
			key:         "alpha.tag -> beta.label",
			cardinality: models.CardinalityNTo1,
			confidence:  0.2,
		},
		{
			name:        "equal repeated values are many-to-many",
			alphaRows:   []map[string]any{{"tag": "A"}, {"tag": "A"}},
			betaRows:    []map[string]any{{"label": "A"}, {"label": "A"}},
			key:         "beta.label -> alpha.tag",
			cardinality: models.CardinalityNToM,
			confidence:  0.4,
		},
		{
			name:        "equal unique values point at the smaller table",
			alphaRows:   []map[string]any{{"tag": "A"}, {"tag": "B"}},
			betaRows:    []map[string]any{{"label": "B"}, {"label": "A"}},
			key:         "beta.label -> alpha.tag",
			cardinality: models.CardinalityNTo1,
			confidence:  0.4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := exportJSON(t,
				map[string]any{"G": groupJSON(nil)},
				tableJSON("alpha", nil, []string{"tag (VARCHAR(5))"}, tt.alphaRows...),
				tableJSON("beta", nil, []string{"label (VARCHAR(5))"}, tt.betaRows...),
			)

			candidates := detectOverlap(t, cfg, string(doc))

			require.Len(t, candidates, 1)
			c := candidates[0]
			assert.Equal(t, tt.key, c.Key().String())
			assert.Equal(t, tt.cardinality, c.Cardinality)
			assert.InDelta(t, tt.confidence, c.Confidence, 1e-9)
		})
	}
}

func TestValueOverlapDetector_RepeatedSingleValue(t *testing.T) {
	doc := exportJSON(t,
		map[string]any{"G": groupJSON(nil)},
		tableJSON("patient", nil, []string{"patient_ref (INT)"},
			map[string]any{"patient_ref": 101}, map[string]any{"patient_ref": 102}),
		tableJSON("visit", nil, []string{"seen_by (INT)"},
			map[string]any{"seen_by": 101}, map[string]any{"seen_by": 101}),
	)

	assert.Empty(t, detectOverlap(t, testInferenceConfig(), string(doc)),
		"one distinct value is below the default shared-value minimum")

	cfg := testInferenceConfig()
	cfg.OverlapMinSharedValues = 1
	candidates := detectOverlap(t, cfg, string(doc))

	require.Len(t, candidates, 1)
	assert.Equal(t, "visit.seen_by -> patient.patient_ref", candidates[0].Key().String())
	assert.Equal(t, models.CardinalityNTo1, candidates[0].Cardinality)
	assert.InDelta(t, 0.2, candidates[0].Confidence, 1e-9)
}

func TestValueOverlapDetector_IdentifierSideIsTarget(t *testing.T) {
	doc := exportJSON(t,
		map[string]any{"G": groupJSON(nil)},
		tableJSON("ward", nil, []string{"ward (VARCHAR(5)): Ward name"},
			map[string]any{"ward": "N1"}, map[string]any{"ward": "S2"}),
		tableJSON("admission", nil, []string{"admission_id (INT)", "bed_ward (VARCHAR(5))"},
			map[string]any{"admission_id": 1, "bed_ward": "S2"}, map[string]any{"admission_id": 2, "bed_ward": "N1"}),
	)

	candidates := detectOverlap(t, testInferenceConfig(), string(doc))

	require.Len(t, candidates, 1)
	assert.Equal(t, "admission.bed_ward -> ward.ward", candidates[0].Key().String())
}

func TestValueOverlapDetector_NoCandidate(t *testing.T) {
	tests := []struct {
		name  string
		alpha map[string]any
		beta  map[string]any
	}{
		{
			name:  "incompatible types",
			alpha: tableJSON("alpha", nil, []string{"num (INT)"}, map[string]any{"num": 1}, map[string]any{"num": 2}),
			beta:  tableJSON("beta", nil, []string{"txt (VARCHAR(5))"}, map[string]any{"txt": "1"}, map[string]any{"txt": "2"}),
		},
		{
			name: "temporal columns",
			alpha: tableJSON("alpha", nil, []string{"seen (DATETIME)"},
				map[string]any{"seen": "2024-01-01 10:00:00"}, map[string]any{"seen": "2024-01-02 10:00:00"}),
			beta: tableJSON("beta", nil, []string{"seen (DATETIME)"},
				map[string]any{"seen": "2024-01-01 10:00:00"}, map[string]any{"seen": "2024-01-02 10:00:00"}),
		},
		{
			name:  "boolean tinyint",
			alpha: tableJSON("alpha", nil, []string{"flag (TINYINT(1))"}, map[string]any{"flag": 0}, map[string]any{"flag": 1}),
			beta:  tableJSON("beta", nil, []string{"flag (TINYINT(1))"}, map[string]any{"flag": 1}, map[string]any{"flag": 0}),
		},
		{
			name:  "partial overlap",
			alpha: tableJSON("alpha", nil, []string{"tag (VARCHAR(5))"}, map[string]any{"tag": "A"}, map[string]any{"tag": "B"}),
			beta:  tableJSON("beta", nil, []string{"tag (VARCHAR(5))"}, map[string]any{"tag": "A"}, map[string]any{"tag": "C"}),
		},
		{
			name:  "too few shared values",
			alpha: tableJSON("alpha", nil, []string{"tag (VARCHAR(5))"}, map[string]any{"tag": "A"}, map[string]any{"tag": nil}),
			beta:  tableJSON("beta", nil, []string{"tag (VARCHAR(5))"}, map[string]any{"tag": "A"}, map[string]any{"tag": "None"}),
		},
		{
			name:  "no samples",
			alpha: tableJSON("alpha", nil, []string{"tag (VARCHAR(5))"}),
			beta:  tableJSON("beta", nil, []string{"tag (VARCHAR(5))"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := exportJSON(t, map[string]any{"G": groupJSON(nil)}, tt.alpha, tt.beta)
			assert.Empty(t, detectOverlap(t, testInferenceConfig(), string(doc)))
		})
	}
}

func TestValueOverlapDetector_SameTableNotCompared(t *testing.T) {
	doc := exportJSON(t,
		map[string]any{"G": groupJSON(nil)},
		tableJSON("alpha", nil, []string{"a (VARCHAR(5))", "b (VARCHAR(5))"},
			map[string]any{"a": "X", "b": "X"}, map[string]any{"a": "Y", "b": "Y"}),
	)

	assert.Empty(t, detectOverlap(t, testInferenceConfig(), string(doc)))
}

func TestValueOverlapDetector_NumericCanonicalization(t *testing.T) {
	doc := exportJSON(t,
		map[string]any{"G": groupJSON(nil)},
		tableJSON("alpha", nil, []string{"amount (DECIMAL(10,2))"},
			map[string]any{"amount": 7.5}, map[string]any{"amount": "8.00"}),
		tableJSON("beta", nil, []string{"total (DOUBLE)"},
			map[string]any{"total": "7.50"}, map[string]any{"total": 8}),
	)

	candidates := detectOverlap(t, testInferenceConfig(), string(doc))

	require.Len(t, candidates, 1)
	assert.Equal(t, "beta.total -> alpha.amount", candidates[0].Key().String())
}

func TestValueOverlapDetector_Cancelled(t *testing.T) {
	model := loadFixture(t, clinicalExport)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewValueOverlapDetector(testInferenceConfig(), testPool(), zap.NewNop()).Detect(ctx, model)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCanonicalValue(t *testing.T) {
	assert.Equal(t, "7", canonicalValue("7.0", typeClassNumeric))
	assert.Equal(t, "7", canonicalValue("07", typeClassNumeric))
	assert.Equal(t, "0.5", canonicalValue(".50", typeClassNumeric))
	assert.Equal(t, "abc", canonicalValue("abc", typeClassNumeric))
	assert.Equal(t, "07", canonicalValue("07", typeClassString))
}

func TestNonNullValues(t *testing.T) {
	assert.Equal(t, []string{"a", "0"}, nonNullValues([]string{" a ", "", "None", "NULL", "nil", "NaN", "0"}))
	assert.Nil(t, nonNullValues(nil))
}

func TestSortCandidates(t *testing.T) {
	cs := []*models.RelationshipCandidate{
		{SourceTable: "b", SourceColumn: "x", TargetTable: "a", TargetColumn: "id", Confidence: 0.4},
		{SourceTable: "c", SourceColumn: "x", TargetTable: "a", TargetColumn: "id", Confidence: 0.9},
		{SourceTable: "a", SourceColumn: "y", TargetTable: "b", TargetColumn: "id", Confidence: 0.4},
		{SourceTable: "a", SourceColumn: "x", TargetTable: "c", TargetColumn: "id", Confidence: 0.4},
		{SourceTable: "a", SourceColumn: "x", TargetTable: "b", TargetColumn: "id", Confidence: 0.4},
	}

	sortCandidates(cs)

	var keys []string
	for _, c := range cs {
		keys = append(keys, c.Key().String())
	}
	assert.Equal(t, []string{
		"c.x -> a.id",
		"a.x -> b.id",
		"a.x -> c.id",
		"a.y -> b.id",
		"b.x -> a.id",
	}, keys)
}
