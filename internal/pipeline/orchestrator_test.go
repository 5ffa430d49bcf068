package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/exampipeline/internal/ai"
	"github.com/local/exampipeline/internal/analyze"
	"github.com/local/exampipeline/internal/document"
	"github.com/local/exampipeline/internal/extract"
	"github.com/local/exampipeline/internal/segment"
)

type fakeResolver struct {
	doc  *document.Document
	err  error
	last string
}

func (f *fakeResolver) Resolve(ctx context.Context, locator string) (*document.Document, error) {
	f.last = locator
	if f.err != nil {
		return nil, f.err
	}
	return f.doc, nil
}

type fakePages struct {
	pages      []extract.PageText
	flags      []string
	rangeCalls int
}

func (f *fakePages) AllPages(ctx context.Context, doc *document.Document, opts extract.Options) ([]extract.PageText, []string, error) {
	return f.pages, f.flags, nil
}

func (f *fakePages) Ranges(ctx context.Context, doc *document.Document, ranges []extract.PageRange, opts extract.Options) ([]string, []string, error) {
	f.rangeCalls++
	var invalid []extract.PageRange
	for _, r := range ranges {
		if !r.Valid(doc.Ref.PageCount) {
			invalid = append(invalid, r)
		}
	}
	if len(invalid) > 0 {
		return nil, nil, &extract.RangeValidationError{Invalid: invalid, PageCount: doc.Ref.PageCount}
	}
	out := make([]string, 0, len(ranges))
	for _, r := range ranges {
		parts := make([]string, 0, r.End-r.Start+1)
		for p := r.Start; p <= r.End; p++ {
			parts = append(parts, f.pages[p-1].Text)
		}
		out = append(out, strings.Join(parts, "\n\n"))
	}
	return out, f.flags, nil
}

// fakeAnalyzer fails for statements containing any failOn substring and
// tracks concurrent in-flight calls.
type fakeAnalyzer struct {
	failOn   string
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
	mu       sync.Mutex
	seen     []string
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, statementText string, themes []analyze.ThemeCatalogEntry) (analyze.EnrichmentResult, error) {
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			break
		}
	}
	f.mu.Lock()
	f.seen = append(f.seen, statementText)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return analyze.EnrichmentResult{}, ctx.Err()
		}
	}
	if f.failOn != "" && strings.Contains(statementText, f.failOn) {
		return analyze.EnrichmentResult{}, fmt.Errorf("analysis request: %w", ai.ErrProviderUnavailable)
	}
	title := "ok"
	return analyze.EnrichmentResult{Title: &title}, nil
}

func fourPageDoc() *document.Document {
	return &document.Document{Ref: document.DocumentRef{Locator: "file:///tmp/exam.pdf", PageCount: 4}}
}

func newTestCatalog(t *testing.T, statuses map[string]Status) *StaticCatalog {
	t.Helper()
	cat := NewStaticCatalog()
	cat.SetDocument("paper-1", "file:///tmp/exam.pdf")
	cat.SetThemes([]analyze.ThemeCatalogEntry{{ID: "th-1", Label: "Analyse"}})
	for i := 1; i <= 4; i++ {
		id := fmt.Sprintf("ex-%d", i)
		st := StatusPending
		if s, ok := statuses[id]; ok {
			st = s
		}
		cat.SetExercise(ExerciseRecord{
			ID:          id,
			ExamPaperID: "paper-1",
			Number:      i,
			Range:       extract.PageRange{Start: i, End: i},
			Status:      st,
		})
	}
	return cat
}

func newTestOrchestrator(cat Catalog, an analyze.Analyzer, opts Options) (*Orchestrator, *fakePages) {
	pages := &fakePages{pages: []extract.PageText{
		{Page: 1, Text: "Exercice 1 texte"},
		{Page: 2, Text: "Exercice 2 texte"},
		{Page: 3, Text: "Exercice 3 texte"},
		{Page: 4, Text: "Exercice 4 texte"},
	}}
	deps := Dependencies{
		Loader:    &fakeResolver{doc: fourPageDoc()},
		Pages:     pages,
		Suggester: segment.NewSuggester(),
		Analyzer:  an,
		Catalog:   cat,
	}
	return New(deps, opts), pages
}

func TestPreviewSegmentation(t *testing.T) {
	cat := newTestCatalog(t, nil)
	o, pages := newTestOrchestrator(cat, &fakeAnalyzer{}, Options{})
	pages.flags = []string{extract.FlagOCRUnavailable}

	preview, err := o.PreviewSegmentation(context.Background(), "paper-1", 4)
	require.NoError(t, err)
	assert.Equal(t, "paper-1", preview.ExamPaperID)
	assert.Len(t, preview.Candidates, 4)
	assert.Contains(t, preview.DocumentFlags, extract.FlagOCRUnavailable)

	// Preview persists nothing: exercise records are untouched.
	rec, err := cat.Exercise(context.Background(), "ex-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, rec.Status)
}

func TestPreviewSegmentationUnknownPaper(t *testing.T) {
	o, _ := newTestOrchestrator(newTestCatalog(t, nil), &fakeAnalyzer{}, Options{})
	_, err := o.PreviewSegmentation(context.Background(), "paper-missing", 0)
	assert.ErrorIs(t, err, document.ErrDocumentUnavailable)
}

func TestPreviewStatementText(t *testing.T) {
	o, _ := newTestOrchestrator(newTestCatalog(t, nil), &fakeAnalyzer{}, Options{})

	stmts, err := o.PreviewStatementText(context.Background(), "paper-1", []StatementRange{
		{ExerciseNumber: 1, PageStart: 1, PageEnd: 2},
		{ExerciseNumber: 2, PageStart: 3, PageEnd: 4},
	})
	require.NoError(t, err)
	require.Len(t, stmts, 2)
	assert.Equal(t, 1, stmts[0].ExerciseNumber)
	assert.Equal(t, "Exercice 1 texte\n\nExercice 2 texte", stmts[0].Text)
	assert.Equal(t, 2, stmts[1].ExerciseNumber)
	assert.Equal(t, "Exercice 3 texte\n\nExercice 4 texte", stmts[1].Text)
}

func TestPreviewStatementTextInvalidRange(t *testing.T) {
	o, _ := newTestOrchestrator(newTestCatalog(t, nil), &fakeAnalyzer{}, Options{})

	_, err := o.PreviewStatementText(context.Background(), "paper-1", []StatementRange{
		{ExerciseNumber: 1, PageStart: 2, PageEnd: 9},
	})
	var rangeErr *extract.RangeValidationError
	require.ErrorAs(t, err, &rangeErr)
}

func TestEnrichExerciseCompleted(t *testing.T) {
	o, _ := newTestOrchestrator(newTestCatalog(t, nil), &fakeAnalyzer{}, Options{})

	out := o.EnrichExercise(context.Background(), "ex-1", "Résoudre.", nil)
	assert.Equal(t, StatusCompleted, out.Status)
	require.NotNil(t, out.Result)
	require.NotNil(t, out.EnrichedAt)
	assert.Equal(t, time.UTC, out.EnrichedAt.Location())
	assert.Empty(t, out.Reason)
}

func TestEnrichExerciseFailed(t *testing.T) {
	o, _ := newTestOrchestrator(newTestCatalog(t, nil), &fakeAnalyzer{failOn: "Résoudre"}, Options{})

	out := o.EnrichExercise(context.Background(), "ex-1", "Résoudre.", nil)
	assert.Equal(t, StatusFailed, out.Status)
	assert.Nil(t, out.Result)
	assert.Nil(t, out.EnrichedAt)
	assert.NotEmpty(t, out.Reason)
}

func TestEnrichBatchIsolatesFailures(t *testing.T) {
	an := &fakeAnalyzer{failOn: "Exercice 2"}
	o, pages := newTestOrchestrator(newTestCatalog(t, nil), an, Options{Concurrency: 2})

	res, err := o.EnrichBatch(context.Background(), "paper-1", []string{"ex-1", "ex-2", "ex-3"}, BatchOptions{})
	require.NoError(t, err)

	assert.NotEmpty(t, res.BatchID)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 0, res.Skipped)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "ex-2", res.Failures[0].ExerciseID)
	assert.Contains(t, res.Failures[0].Error, "unavailable")
	require.Len(t, res.Outcomes, 3)
	assert.Equal(t, StatusCompleted, res.Outcomes[0].Status)
	assert.Equal(t, StatusFailed, res.Outcomes[1].Status)
	assert.Equal(t, StatusCompleted, res.Outcomes[2].Status)

	assert.Equal(t, 1, pages.rangeCalls, "one page-text pass serves the whole batch")
}

func TestEnrichBatchSkipsCompleted(t *testing.T) {
	cat := newTestCatalog(t, map[string]Status{"ex-2": StatusCompleted})
	o, _ := newTestOrchestrator(cat, &fakeAnalyzer{}, Options{})

	res, err := o.EnrichBatch(context.Background(), "paper-1", []string{"ex-1", "ex-2"}, BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, "ex-1", res.Outcomes[0].ExerciseID)
}

func TestEnrichBatchReenrichesWhenAsked(t *testing.T) {
	cat := newTestCatalog(t, map[string]Status{"ex-2": StatusCompleted})
	o, _ := newTestOrchestrator(cat, &fakeAnalyzer{}, Options{})

	res, err := o.EnrichBatch(context.Background(), "paper-1", []string{"ex-1", "ex-2"},
		BatchOptions{IncludeAlreadyCompleted: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 0, res.Skipped)
}

func TestEnrichBatchAllSkipped(t *testing.T) {
	cat := newTestCatalog(t, map[string]Status{"ex-1": StatusCompleted, "ex-2": StatusCompleted})
	o, _ := newTestOrchestrator(cat, &fakeAnalyzer{}, Options{})

	res, err := o.EnrichBatch(context.Background(), "paper-1", []string{"ex-1", "ex-2"}, BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	assert.Empty(t, res.Outcomes)
}

func TestEnrichBatchUnknownExercise(t *testing.T) {
	o, _ := newTestOrchestrator(newTestCatalog(t, nil), &fakeAnalyzer{}, Options{})

	_, err := o.EnrichBatch(context.Background(), "paper-1", []string{"ex-1", "ex-99"}, BatchOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ex-99")
}

func TestEnrichBatchBoundedConcurrency(t *testing.T) {
	an := &fakeAnalyzer{delay: 30 * time.Millisecond}
	o, _ := newTestOrchestrator(newTestCatalog(t, nil), an, Options{Concurrency: 2})

	res, err := o.EnrichBatch(context.Background(), "paper-1",
		[]string{"ex-1", "ex-2", "ex-3", "ex-4"}, BatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Processed)
	assert.LessOrEqual(t, an.peak.Load(), int32(2))
}

func TestEnrichBatchDocumentTimeoutKeepsPartialResults(t *testing.T) {
	an := &fakeAnalyzer{delay: 200 * time.Millisecond}
	o, _ := newTestOrchestrator(newTestCatalog(t, nil), an,
		Options{Concurrency: 1, DocumentTimeout: 80 * time.Millisecond})

	res, err := o.EnrichBatch(context.Background(), "paper-1",
		[]string{"ex-1", "ex-2", "ex-3"}, BatchOptions{})
	require.NoError(t, err, "a timeout degrades the batch, it does not abort it")

	assert.Equal(t, 3, len(res.Outcomes))
	assert.GreaterOrEqual(t, res.Failed, 1, "work still in flight at the deadline fails")
	for _, out := range res.Outcomes {
		assert.Contains(t, []Status{StatusCompleted, StatusFailed}, out.Status)
	}
}

func TestEnrichBatchThemeCatalogError(t *testing.T) {
	cat := &erroringCatalog{inner: newTestCatalog(t, nil)}
	o, _ := newTestOrchestrator(cat, &fakeAnalyzer{}, Options{})

	_, err := o.EnrichBatch(context.Background(), "paper-1", []string{"ex-1"}, BatchOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "theme catalog")
}

type erroringCatalog struct {
	inner *StaticCatalog
}

func (e *erroringCatalog) DocumentLocator(ctx context.Context, examPaperID string) (string, bool, error) {
	return e.inner.DocumentLocator(ctx, examPaperID)
}

func (e *erroringCatalog) ThemeCatalog(ctx context.Context) ([]analyze.ThemeCatalogEntry, error) {
	return nil, errors.New("catalogue backend down")
}

func (e *erroringCatalog) Exercise(ctx context.Context, exerciseID string) (ExerciseRecord, error) {
	return e.inner.Exercise(ctx, exerciseID)
}
