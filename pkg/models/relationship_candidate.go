package models

import "fmt"

// ============================================================================
// Detection Methods
// ============================================================================

// DetectionMethod represents how a relationship candidate was detected.
type DetectionMethod string

const (
	DetectionMethodNameInference DetectionMethod = "name_inference"
	DetectionMethodValueMatch    DetectionMethod = "value_match"
	DetectionMethodHybrid        DetectionMethod = "hybrid"
)

// ValidDetectionMethods contains all valid detection method values.
var ValidDetectionMethods = []DetectionMethod{
	DetectionMethodNameInference,
	DetectionMethodValueMatch,
	DetectionMethodHybrid,
}

// IsValidDetectionMethod checks if the given method is valid.
func IsValidDetectionMethod(m DetectionMethod) bool {
	for _, v := range ValidDetectionMethods {
		if v == m {
			return true
		}
	}
	return false
}

// ============================================================================
// Cardinality
// ============================================================================

// Cardinality types, read from the source column towards the target column.
// A child-to-parent link is N:1.
const (
	Cardinality1To1 = "1:1"
	Cardinality1ToN = "1:N"
	CardinalityNTo1 = "N:1"
	CardinalityNToM = "N:M"
)

// ValidCardinalities contains all valid cardinality values.
var ValidCardinalities = []string{
	Cardinality1To1,
	Cardinality1ToN,
	CardinalityNTo1,
	CardinalityNToM,
}

// IsValidCardinality checks if the given cardinality is valid.
func IsValidCardinality(c string) bool {
	for _, v := range ValidCardinalities {
		if v == c {
			return true
		}
	}
	return false
}

// ============================================================================
// Support
// ============================================================================

// Support classifies how well-founded a candidate is.
type Support string

const (
	// SupportCorroborated means both detectors proposed the candidate.
	SupportCorroborated Support = "corroborated"
	// SupportNaming means only the naming detector proposed it.
	SupportNaming Support = "naming"
	// SupportSpeculative means only sampled value overlap proposed it.
	SupportSpeculative Support = "speculative"
)

// ============================================================================
// Evidence
// ============================================================================

// EvidenceType names a single detection signal.
type EvidenceType string

const (
	EvidenceNamingStem       EvidenceType = "naming_stem"
	EvidenceIdentifierColumn EvidenceType = "identifier_column"
	EvidenceFamilyVariant    EvidenceType = "family_variant"
	EvidenceFuzzyStem        EvidenceType = "fuzzy_stem"
	EvidenceSharedIdentifier EvidenceType = "shared_identifier"
	EvidenceUniqueSample     EvidenceType = "unique_sample"
	EvidenceValueOverlap     EvidenceType = "value_overlap"
)

// Evidence records one signal behind a candidate.
type Evidence struct {
	Type    EvidenceType `json:"type" yaml:"type"`
	Score   float64      `json:"score" yaml:"score"`
	Details string       `json:"details" yaml:"details"`
}

// ============================================================================
// Relationship Candidate Model
// ============================================================================

// RelationshipCandidate is an inferred foreign-key-like link from a source
// column to a target column in another (or the same) table.
type RelationshipCandidate struct {
	SourceTable  string `json:"source_table" yaml:"source_table"`
	SourceColumn string `json:"source_column" yaml:"source_column"`
	TargetTable  string `json:"target_table" yaml:"target_table"`
	TargetColumn string `json:"target_column" yaml:"target_column"`

	Cardinality     string          `json:"cardinality" yaml:"cardinality"`
	Confidence      float64         `json:"confidence" yaml:"confidence"` // 0.0-1.0
	DetectionMethod DetectionMethod `json:"detection_method" yaml:"detection_method"`
	Support         Support         `json:"support" yaml:"support"`
	Corroborated    bool            `json:"corroborated" yaml:"corroborated"`
	Evidence        []Evidence      `json:"evidence,omitempty" yaml:"evidence,omitempty"`
}

// CandidateKey identifies a directed column pair.
type CandidateKey struct {
	SourceTable  string
	SourceColumn string
	TargetTable  string
	TargetColumn string
}

// Key returns the deduplication key of the candidate.
func (c *RelationshipCandidate) Key() CandidateKey {
	return CandidateKey{
		SourceTable:  c.SourceTable,
		SourceColumn: c.SourceColumn,
		TargetTable:  c.TargetTable,
		TargetColumn: c.TargetColumn,
	}
}

// Reverse returns the key with source and target swapped.
func (k CandidateKey) Reverse() CandidateKey {
	return CandidateKey{
		SourceTable:  k.TargetTable,
		SourceColumn: k.TargetColumn,
		TargetTable:  k.SourceTable,
		TargetColumn: k.SourceColumn,
	}
}

// String renders the key as "table.column -> table.column".
func (k CandidateKey) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", k.SourceTable, k.SourceColumn, k.TargetTable, k.TargetColumn)
}

// IsSpeculative returns true if only sampled value overlap backs the candidate.
func (c *RelationshipCandidate) IsSpeculative() bool {
	return c.Support == SupportSpeculative
}

// Clone returns a deep copy of the candidate.
func (c *RelationshipCandidate) Clone() *RelationshipCandidate {
	out := *c
	out.Evidence = append([]Evidence(nil), c.Evidence...)
	return &out
}
