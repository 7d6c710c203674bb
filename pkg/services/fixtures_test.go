package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-taxonomy/pkg/config"
	"github.com/ekaya-inc/ekaya-taxonomy/pkg/models"
	"github.com/ekaya-inc/ekaya-taxonomy/pkg/workerpool"
)

// clinicalExport mirrors a small context.json export: a patient naming
// match, family-scoped session/prescription links, a name-less value
// overlap (code/v_code) and an orphan parent group (AISN).
const clinicalExport = `{
  "metadata": {
    "groups": {
      "Clinical": {
        "description": "Clinical records",
        "parent_groups": [],
        "tables": ["patient", "patient_diagnosis_data"]
      },
      "AISN": {
        "description": "Trial network",
        "parent_groups": ["ClinicalTrialRoot"],
        "tables": []
      },
      "Gaming": {
        "description": "No description",
        "parent_groups": [],
        "tables": ["code", "code_redemption"]
      },
      "Sessions": {
        "description": "Therapy sessions",
        "parent_groups": ["Gaming", "Clinical"],
        "tables": ["session_app", "session_web", "prescription", "prescription_app", "prescription_web"]
      }
    },
    "export_timestamp": "2025-01-15T10:30:00"
  },
  "tables": [
    {
      "table": "patient",
      "description": "Patients enrolled in therapy",
      "groups": ["Clinical"],
      "columns": [
        "patient_id (INT): Unique identifier for a patient",
        "name (VARCHAR(100)): Patient name"
      ],
      "sample_rows": [
        {"patient_id": 101, "name": "Ann"},
        {"patient_id": 102, "name": "Bob"}
      ]
    },
    {
      "table": "patient_diagnosis_data",
      "description": "N/A",
      "groups": ["Clinical"],
      "columns": [
        "diagnosis_record_id (INT): Primary key of the diagnosis record",
        "patient_id (INT): Unique identifier for a patient",
        "diagnosis (VARCHAR(255)): Diagnosis text"
      ],
      "sample_rows": [
        {"diagnosis_record_id": 9001, "patient_id": "101", "diagnosis": "stroke"},
        {"diagnosis_record_id": 9002, "patient_id": "102", "diagnosis": "tbi"}
      ]
    },
    {
      "table": "code",
      "description": "Redeemable codes",
      "groups": ["Gaming"],
      "columns": [
        "code (VARCHAR(10)): Redemption code",
        "label (VARCHAR(50)): Code label"
      ],
      "sample_rows": [
        {"code": "A1", "label": "Bronze"},
        {"code": "B2", "label": "Silver"}
      ]
    },
    {
      "table": "code_redemption",
      "description": "Code redemptions",
      "groups": ["Gaming"],
      "columns": [
        "redemption_id (INT): Primary key",
        "v_code (VARCHAR(10)): Voucher code entered",
        "redeemed_at (DATETIME): Redemption time"
      ],
      "sample_rows": [
        {"redemption_id": 501, "v_code": "A1", "redeemed_at": "2024-01-01 10:00:00"},
        {"redemption_id": 502, "v_code": "B2", "redeemed_at": "2024-01-02 11:00:00"}
      ]
    },
    {
      "table": "session_app",
      "description": "App sessions",
      "groups": ["Sessions"],
      "columns": [
        "session_id (INT): Session identifier",
        "prescription_id (INT): Prescription identifier"
      ],
      "sample_rows": [
        {"session_id": 1, "prescription_id": 10},
        {"session_id": 2, "prescription_id": 11}
      ]
    },
    {
      "table": "session_web",
      "description": "Web sessions",
      "groups": ["Sessions"],
      "columns": [
        "session_id (INT): Session identifier",
        "prescription_id (INT): Prescription identifier"
      ],
      "sample_rows": [
        {"session_id": 3, "prescription_id": 12},
        {"session_id": 4, "prescription_id": 13}
      ]
    },
    {
      "table": "prescription",
      "description": "Prescription catalogue",
      "groups": ["Sessions"],
      "columns": [
        "prescription_id (INT): Prescription identifier"
      ],
      "sample_rows": []
    },
    {
      "table": "prescription_app",
      "description": "App prescriptions",
      "groups": ["Sessions"],
      "columns": [
        "prescription_id (INT): Prescription identifier",
        "dose (INT): Exercises per session"
      ],
      "sample_rows": [
        {"prescription_id": 10, "dose": 5},
        {"prescription_id": 11, "dose": 6}
      ]
    },
    {
      "table": "prescription_web",
      "description": "Web prescriptions",
      "groups": ["Sessions"],
      "columns": [
        "prescription_id (INT): Prescription identifier",
        "dose (INT): Exercises per session"
      ],
      "sample_rows": [
        {"prescription_id": 12, "dose": 7},
        {"prescription_id": 13, "dose": 8}
      ]
    }
  ]
}`

// cyclicExport has groups A and B parenting each other, with one naming link.
const cyclicExport = `{
  "metadata": {
    "groups": {
      "A": {"description": "", "parent_groups": ["B"], "tables": ["customer"]},
      "B": {"description": "", "parent_groups": ["A"], "tables": ["orders"]}
    }
  },
  "tables": [
    {
      "table": "customer",
      "groups": ["A"],
      "columns": ["customer_id (INT): Customer key"],
      "sample_rows": [{"customer_id": 1}, {"customer_id": 2}]
    },
    {
      "table": "orders",
      "groups": ["B"],
      "columns": ["order_id (INT)", "customer_id (INT): Customer key"],
      "sample_rows": [{"order_id": 70, "customer_id": 1}, {"order_id": 71, "customer_id": 1}]
    }
  ]
}`

func testInferenceConfig() config.InferenceConfig {
	return config.DefaultInferenceConfig()
}

func testPool() *workerpool.WorkerPool {
	return workerpool.New(workerpool.Config{MaxConcurrent: 3}, zap.NewNop())
}

func loadFixture(t *testing.T, doc string) *models.SchemaModel {
	t.Helper()
	model, err := NewSchemaLoader(testInferenceConfig(), zap.NewNop()).LoadBytes(context.Background(), []byte(doc))
	require.NoError(t, err)
	return model
}

// exportJSON builds an export document from Go values.
func exportJSON(t *testing.T, groups map[string]any, tables ...map[string]any) []byte {
	t.Helper()
	if tables == nil {
		tables = []map[string]any{}
	}
	doc := map[string]any{
		"metadata": map[string]any{"groups": groups},
		"tables":   tables,
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}

func groupJSON(parents []string, tables ...string) map[string]any {
	if parents == nil {
		parents = []string{}
	}
	if tables == nil {
		tables = []string{}
	}
	return map[string]any{"description": "", "parent_groups": parents, "tables": tables}
}

func tableJSON(name string, groups []string, columns []string, rows ...map[string]any) map[string]any {
	if groups == nil {
		groups = []string{}
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	return map[string]any{
		"table":       name,
		"description": "",
		"groups":      groups,
		"columns":     columns,
		"sample_rows": rows,
	}
}

func findCandidate(cs []*models.RelationshipCandidate, sourceTable, sourceColumn, targetTable, targetColumn string) *models.RelationshipCandidate {
	want := models.CandidateKey{
		SourceTable:  sourceTable,
		SourceColumn: sourceColumn,
		TargetTable:  targetTable,
		TargetColumn: targetColumn,
	}
	for _, c := range cs {
		if c.Key() == want {
			return c
		}
	}
	return nil
}

func diagnosticsOfKind(diags []models.Diagnostic, kind models.DiagnosticKind) []models.Diagnostic {
	var out []models.Diagnostic
	for _, d := range diags {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}
