package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/local/exampipeline/internal/analyze"
	"github.com/local/exampipeline/internal/document"
	"github.com/local/exampipeline/internal/extract"
	"github.com/local/exampipeline/internal/metrics"
	"github.com/local/exampipeline/internal/pipeline"
)

// Server exposes the pipeline operations over HTTP for the catalogue layer.
type Server struct {
	orch *pipeline.Orchestrator
}

func New(orch *pipeline.Orchestrator) *Server {
	return &Server{orch: orch}
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/preview_segmentation", s.handlePreviewSegmentation)
	mux.HandleFunc("/preview_statement_text", s.handlePreviewStatementText)
	mux.HandleFunc("/enrich_exercise", s.handleEnrichExercise)
	mux.HandleFunc("/enrich_batch", s.handleEnrichBatch)
}

type previewSegmentationReq struct {
	ExamPaperID   string `json:"exam_paper_id"`
	ExpectedCount int    `json:"expected_count,omitempty"`
}

func (s *Server) handlePreviewSegmentation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req previewSegmentationReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.ExamPaperID == "" {
		http.Error(w, "missing exam_paper_id", http.StatusBadRequest)
		return
	}

	preview, err := s.orch.PreviewSegmentation(r.Context(), req.ExamPaperID, req.ExpectedCount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

type previewStatementReq struct {
	ExamPaperID string                    `json:"exam_paper_id"`
	Ranges      []pipeline.StatementRange `json:"ranges"`
}

func (s *Server) handlePreviewStatementText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req previewStatementReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.ExamPaperID == "" || len(req.Ranges) == 0 {
		http.Error(w, "missing exam_paper_id or ranges", http.StatusBadRequest)
		return
	}

	statements, err := s.orch.PreviewStatementText(r.Context(), req.ExamPaperID, req.Ranges)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"statements": statements})
}

type enrichExerciseReq struct {
	ExerciseID    string                      `json:"exercise_id"`
	StatementText string                      `json:"statement_text"`
	Themes        []analyze.ThemeCatalogEntry `json:"available_themes"`
}

func (s *Server) handleEnrichExercise(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req enrichExerciseReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.ExerciseID == "" || req.StatementText == "" {
		http.Error(w, "missing exercise_id or statement_text", http.StatusBadRequest)
		return
	}

	outcome := s.orch.EnrichExercise(r.Context(), req.ExerciseID, req.StatementText, req.Themes)
	writeJSON(w, http.StatusOK, outcome)
}

type enrichBatchReq struct {
	ExamPaperID             string   `json:"exam_paper_id"`
	ExerciseIDs             []string `json:"exercise_ids"`
	IncludeAlreadyCompleted bool     `json:"include_already_completed"`
}

func (s *Server) handleEnrichBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()
	var req enrichBatchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.ExamPaperID == "" || len(req.ExerciseIDs) == 0 {
		http.Error(w, "missing exam_paper_id or exercise_ids", http.StatusBadRequest)
		return
	}

	result, err := s.orch.EnrichBatch(r.Context(), req.ExamPaperID, req.ExerciseIDs,
		pipeline.BatchOptions{IncludeAlreadyCompleted: req.IncludeAlreadyCompleted})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var rangeErr *extract.RangeValidationError
	switch {
	case errors.As(err, &rangeErr):
		http.Error(w, rangeErr.Error(), http.StatusBadRequest)
	case errors.Is(err, document.ErrDocumentUnavailable):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		log.Error().Err(err).Msg("pipeline request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
