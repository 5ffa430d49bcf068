package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/local/exampipeline/internal/analyze"
	"github.com/local/exampipeline/internal/document"
	"github.com/local/exampipeline/internal/extract"
	"github.com/local/exampipeline/internal/metrics"
	"github.com/local/exampipeline/internal/segment"
)

// Resolver fetches a document behind a locator.
type Resolver interface {
	Resolve(ctx context.Context, locator string) (*document.Document, error)
}

// PageTextService produces per-page and per-range text for a document.
type PageTextService interface {
	AllPages(ctx context.Context, doc *document.Document, opts extract.Options) ([]extract.PageText, []string, error)
	Ranges(ctx context.Context, doc *document.Document, ranges []extract.PageRange, opts extract.Options) ([]string, []string, error)
}

// Dependencies is the explicit context object injected at construction:
// no package-level client handles, everything replaceable with fakes.
type Dependencies struct {
	Loader    Resolver
	Pages     PageTextService
	Suggester *segment.Suggester
	Analyzer  analyze.Analyzer
	Catalog   Catalog
}

// Options tune one orchestrator instance.
type Options struct {
	Extraction      extract.Options
	Concurrency     int
	DocumentTimeout time.Duration
}

// Orchestrator sequences loading, extraction, segmentation and analysis.
// It owns the enrichment state machine and isolates per-exercise failures;
// it performs no persistence.
type Orchestrator struct {
	deps Dependencies
	opts Options
}

func New(deps Dependencies, opts Options) *Orchestrator {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	return &Orchestrator{deps: deps, opts: opts}
}

// PreviewSegmentation loads the exam paper, extracts every page and proposes
// exercise boundaries. Pure preview: nothing is persisted. Extraction
// degradations (missing OCR toolchain) surface as document flags, so a
// preview always returns something reviewable.
func (o *Orchestrator) PreviewSegmentation(ctx context.Context, examPaperID string, expectedCount int) (*SegmentationPreview, error) {
	doc, err := o.resolve(ctx, examPaperID)
	if err != nil {
		return nil, err
	}

	pages, flags, err := o.deps.Pages.AllPages(ctx, doc, o.opts.Extraction)
	if err != nil {
		return nil, err
	}

	sug := o.deps.Suggester.Suggest(pages, expectedCount)
	metrics.IncSegmentation()

	log.Info().
		Str("exam_paper", examPaperID).
		Int("pages", len(pages)).
		Int("candidates", len(sug.Candidates)).
		Msg("segmentation preview")

	return &SegmentationPreview{
		ExamPaperID:   examPaperID,
		Candidates:    sug.Candidates,
		DocumentFlags: append(flags, sug.DocumentFlags...),
	}, nil
}

// PreviewStatementText extracts the statement text for the given exercise
// ranges, in input order, with no analysis. Invalid ranges are rejected
// before any extraction work.
func (o *Orchestrator) PreviewStatementText(ctx context.Context, examPaperID string, reqs []StatementRange) ([]Statement, error) {
	doc, err := o.resolve(ctx, examPaperID)
	if err != nil {
		return nil, err
	}

	ranges := make([]extract.PageRange, 0, len(reqs))
	for _, r := range reqs {
		ranges = append(ranges, extract.PageRange{Start: r.PageStart, End: r.PageEnd})
	}

	texts, _, err := o.deps.Pages.Ranges(ctx, doc, ranges, o.opts.Extraction)
	if err != nil {
		return nil, err
	}

	out := make([]Statement, 0, len(reqs))
	for i, r := range reqs {
		out = append(out, Statement{ExerciseNumber: r.ExerciseNumber, Text: texts[i]})
	}
	return out, nil
}

// EnrichExercise runs one enrichment attempt and returns its terminal
// outcome. A provider failure yields a failed outcome with a reason and no
// metadata; it is never raised as an error, so batch siblings stay isolated.
func (o *Orchestrator) EnrichExercise(ctx context.Context, exerciseID, statementText string, themes []analyze.ThemeCatalogEntry) Outcome {
	res, err := o.deps.Analyzer.Analyze(ctx, statementText, themes)
	if err != nil {
		metrics.IncEnrichment(string(StatusFailed))
		log.Warn().Err(err).Str("exercise", exerciseID).Msg("enrichment failed")
		return Outcome{ExerciseID: exerciseID, Status: StatusFailed, Reason: err.Error()}
	}

	now := time.Now().UTC()
	metrics.IncEnrichment(string(StatusCompleted))
	return Outcome{ExerciseID: exerciseID, Status: StatusCompleted, Result: &res, EnrichedAt: &now}
}

// EnrichBatch enriches the given exercises of one exam paper. One page-text
// pass serves the whole batch; analyzer calls fan out bounded by the
// configured concurrency. A document-level timeout cancels in-flight work
// but already-terminal outcomes are kept and returned.
func (o *Orchestrator) EnrichBatch(ctx context.Context, examPaperID string, exerciseIDs []string, batchOpts BatchOptions) (*BatchResult, error) {
	result := &BatchResult{BatchID: uuid.NewString()}

	doc, err := o.resolve(ctx, examPaperID)
	if err != nil {
		return nil, err
	}

	// Fresh vocabulary snapshot per invocation, never cached.
	themes, err := o.deps.Catalog.ThemeCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("theme catalog: %w", err)
	}

	var records []ExerciseRecord
	for _, id := range exerciseIDs {
		rec, err := o.deps.Catalog.Exercise(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("exercise %s: %w", id, err)
		}
		if rec.Status == StatusCompleted && !batchOpts.IncludeAlreadyCompleted {
			result.Skipped++
			continue
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return result, nil
	}

	ranges := make([]extract.PageRange, 0, len(records))
	for _, rec := range records {
		ranges = append(ranges, rec.Range)
	}
	texts, _, err := o.deps.Pages.Ranges(ctx, doc, ranges, o.opts.Extraction)
	if err != nil {
		return nil, err
	}

	batchCtx := ctx
	cancel := context.CancelFunc(func() {})
	if o.opts.DocumentTimeout > 0 {
		batchCtx, cancel = context.WithTimeout(ctx, o.opts.DocumentTimeout)
	}
	defer cancel()

	outcomes := make([]Outcome, len(records))
	g, gctx := errgroup.WithContext(batchCtx)
	sem := make(chan struct{}, o.opts.Concurrency)

	for i := range records {
		i := i
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				outcomes[i] = Outcome{ExerciseID: records[i].ID, Status: StatusFailed, Reason: gctx.Err().Error()}
				return nil
			}
			outcomes[i] = o.EnrichExercise(gctx, records[i].ID, texts[i], themes)
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range outcomes {
		result.Outcomes = append(result.Outcomes, out)
		if out.Status == StatusCompleted {
			result.Processed++
		} else {
			result.Failed++
			result.Failures = append(result.Failures, BatchFailure{ExerciseID: out.ExerciseID, Error: out.Reason})
		}
	}

	log.Info().
		Str("batch", result.BatchID).
		Str("exam_paper", examPaperID).
		Int("processed", result.Processed).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Msg("enrichment batch done")

	return result, nil
}

// resolve maps an exam-paper id to its document via the catalogue.
func (o *Orchestrator) resolve(ctx context.Context, examPaperID string) (*document.Document, error) {
	locator, ok, err := o.deps.Catalog.DocumentLocator(ctx, examPaperID)
	if err != nil {
		return nil, fmt.Errorf("document locator: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: no document registered for exam paper %s", document.ErrDocumentUnavailable, examPaperID)
	}
	return o.deps.Loader.Resolve(ctx, locator)
}
