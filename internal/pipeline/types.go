package pipeline

import (
	"time"

	"github.com/local/exampipeline/internal/analyze"
	"github.com/local/exampipeline/internal/segment"
)

// Status is the enrichment lifecycle state of one exercise record. Records
// are created pending by the catalogue layer; one enrichment attempt moves
// them to a terminal state. Re-enrichment is always an explicit request and
// overwrites the prior terminal state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// StatementRange asks for the statement text of one exercise.
type StatementRange struct {
	ExerciseNumber int `json:"exerciseNumber"`
	PageStart      int `json:"pageStart"`
	PageEnd        int `json:"pageEnd"`
}

// Statement is the extracted statement text of one exercise.
type Statement struct {
	ExerciseNumber int    `json:"exerciseNumber"`
	Text           string `json:"statement"`
}

// SegmentationPreview is the advisory result of one segmentation pass.
// Nothing is persisted: acceptance happens in the catalogue layer after
// human review of the flags.
type SegmentationPreview struct {
	ExamPaperID   string              `json:"examPaperId"`
	Candidates    []segment.Candidate `json:"candidates"`
	DocumentFlags []string            `json:"documentFlags"`
}

// Outcome is the terminal result of one enrichment attempt.
type Outcome struct {
	ExerciseID string                    `json:"exerciseId"`
	Status     Status                    `json:"status"`
	Result     *analyze.EnrichmentResult `json:"result,omitempty"`
	EnrichedAt *time.Time                `json:"enrichedAt,omitempty"`
	Reason     string                    `json:"errorReason,omitempty"`
}

// BatchOptions control batch enrichment.
type BatchOptions struct {
	IncludeAlreadyCompleted bool `json:"includeAlreadyCompleted"`
}

// BatchFailure pairs a failed exercise with its error.
type BatchFailure struct {
	ExerciseID string `json:"exerciseId"`
	Error      string `json:"error"`
}

// BatchResult aggregates per-exercise outcomes of one batch invocation.
// Partial results are valid: a document-level timeout never discards
// exercises that already reached a terminal state.
type BatchResult struct {
	BatchID   string         `json:"batchId"`
	Processed int            `json:"processed"`
	Failed    int            `json:"failed"`
	Skipped   int            `json:"skipped"`
	Failures  []BatchFailure `json:"failures"`
	Outcomes  []Outcome      `json:"outcomes"`
}
