package pipeline

import (
	"context"

	"github.com/local/exampipeline/internal/analyze"
	"github.com/local/exampipeline/internal/extract"
)

// ExerciseRecord is the catalogue's view of one segmented exercise. The
// pipeline reads it to locate the exercise's pages and current status; it
// never writes exercise records itself.
type ExerciseRecord struct {
	ID          string
	ExamPaperID string
	Number      int
	Range       extract.PageRange
	Status      Status
}

// Catalog is the read-only surface the surrounding system provides to the
// pipeline. Persistence of candidates and enrichment results stays with the
// catalogue layer; the pipeline only returns structured results.
type Catalog interface {
	// DocumentLocator returns the PDF reference for an exam paper, or
	// ok=false when none is registered.
	DocumentLocator(ctx context.Context, examPaperID string) (locator string, ok bool, err error)

	// ThemeCatalog returns a fresh snapshot of the closed theme vocabulary.
	// The pipeline never caches it across invocations.
	ThemeCatalog(ctx context.Context) ([]analyze.ThemeCatalogEntry, error)

	// Exercise returns the record for one exercise id.
	Exercise(ctx context.Context, exerciseID string) (ExerciseRecord, error)
}
