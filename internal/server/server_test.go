package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/exampipeline/internal/analyze"
	"github.com/local/exampipeline/internal/document"
	"github.com/local/exampipeline/internal/extract"
	"github.com/local/exampipeline/internal/pipeline"
	"github.com/local/exampipeline/internal/segment"
)

type stubResolver struct{}

func (stubResolver) Resolve(ctx context.Context, locator string) (*document.Document, error) {
	return &document.Document{Ref: document.DocumentRef{Locator: locator, PageCount: 2}}, nil
}

type stubPages struct{}

func (stubPages) AllPages(ctx context.Context, doc *document.Document, opts extract.Options) ([]extract.PageText, []string, error) {
	return []extract.PageText{
		{Page: 1, Text: "Exercice 1\nCalculer la dérivée."},
		{Page: 2, Text: "Exercice 2\nÉtudier les variations."},
	}, nil, nil
}

func (stubPages) Ranges(ctx context.Context, doc *document.Document, ranges []extract.PageRange, opts extract.Options) ([]string, []string, error) {
	var invalid []extract.PageRange
	for _, r := range ranges {
		if !r.Valid(doc.Ref.PageCount) {
			invalid = append(invalid, r)
		}
	}
	if len(invalid) > 0 {
		return nil, nil, &extract.RangeValidationError{Invalid: invalid, PageCount: doc.Ref.PageCount}
	}
	out := make([]string, len(ranges))
	for i := range ranges {
		out[i] = "texte"
	}
	return out, nil, nil
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	cat := pipeline.NewStaticCatalog()
	cat.SetDocument("paper-1", "file:///tmp/exam.pdf")
	cat.SetThemes([]analyze.ThemeCatalogEntry{{ID: "th-1", Label: "Analyse"}})
	cat.SetExercise(pipeline.ExerciseRecord{
		ID:          "ex-1",
		ExamPaperID: "paper-1",
		Number:      1,
		Range:       extract.PageRange{Start: 1, End: 1},
		Status:      pipeline.StatusPending,
	})

	orch := pipeline.New(pipeline.Dependencies{
		Loader:    stubResolver{},
		Pages:     stubPages{},
		Suggester: segment.NewSuggester(),
		Analyzer:  analyze.NewStubAnalyzer(),
		Catalog:   cat,
	}, pipeline.Options{})

	mux := http.NewServeMux()
	New(orch).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPreviewSegmentationEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := postJSON(t, srv.URL+"/preview_segmentation", `{"exam_paper_id": "paper-1", "expected_count": 2}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var preview pipeline.SegmentationPreview
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&preview))
	assert.Equal(t, "paper-1", preview.ExamPaperID)
	assert.Len(t, preview.Candidates, 2)
}

func TestPreviewSegmentationRejectsGet(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/preview_segmentation")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestPreviewSegmentationMissingID(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/preview_segmentation", `{}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPreviewSegmentationUnknownPaper(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/preview_segmentation", `{"exam_paper_id": "paper-9"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPreviewStatementTextEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/preview_statement_text",
		`{"exam_paper_id": "paper-1", "ranges": [{"exerciseNumber": 1, "pageStart": 1, "pageEnd": 2}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Statements []pipeline.Statement `json:"statements"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Statements, 1)
	assert.Equal(t, 1, body.Statements[0].ExerciseNumber)
}

func TestPreviewStatementTextInvalidRange(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/preview_statement_text",
		`{"exam_paper_id": "paper-1", "ranges": [{"exerciseNumber": 1, "pageStart": 1, "pageEnd": 9}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEnrichExerciseEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/enrich_exercise",
		`{"exercise_id": "ex-1", "statement_text": "Résoudre l'équation.", "available_themes": [{"id": "th-1", "label": "Analyse"}]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var outcome pipeline.Outcome
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&outcome))
	assert.Equal(t, "ex-1", outcome.ExerciseID)
	assert.Equal(t, pipeline.StatusCompleted, outcome.Status)
	assert.NotNil(t, outcome.Result)
}

func TestEnrichBatchEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp := postJSON(t, srv.URL+"/enrich_batch",
		`{"exam_paper_id": "paper-1", "exercise_ids": ["ex-1"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result pipeline.BatchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, 1, result.Processed)
	assert.NotEmpty(t, result.BatchID)
}
