package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/local/exampipeline/internal/analyze"
	"github.com/local/exampipeline/internal/extract"
)

// StaticCatalog is a file-backed Catalog for standalone runs and tests.
// Production deployments implement Catalog against the real catalogue
// service instead.
type StaticCatalog struct {
	mu        sync.RWMutex
	documents map[string]string
	themes    []analyze.ThemeCatalogEntry
	exercises map[string]ExerciseRecord
}

type staticCatalogFile struct {
	Documents map[string]string            `json:"documents"`
	Themes    []analyze.ThemeCatalogEntry  `json:"themes"`
	Exercises []staticCatalogExerciseEntry `json:"exercises"`
}

type staticCatalogExerciseEntry struct {
	ID          string `json:"id"`
	ExamPaperID string `json:"examPaperId"`
	Number      int    `json:"number"`
	PageStart   int    `json:"pageStart"`
	PageEnd     int    `json:"pageEnd"`
	Status      string `json:"status"`
}

func NewStaticCatalog() *StaticCatalog {
	return &StaticCatalog{
		documents: map[string]string{},
		exercises: map[string]ExerciseRecord{},
	}
}

// NewStaticCatalogFromFile loads a JSON catalog snapshot from disk.
func NewStaticCatalogFromFile(path string) (*StaticCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var f staticCatalogFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}

	c := NewStaticCatalog()
	for id, locator := range f.Documents {
		c.documents[id] = locator
	}
	c.themes = f.Themes
	for _, e := range f.Exercises {
		status := Status(e.Status)
		if status == "" {
			status = StatusPending
		}
		c.exercises[e.ID] = ExerciseRecord{
			ID:          e.ID,
			ExamPaperID: e.ExamPaperID,
			Number:      e.Number,
			Range:       extract.PageRange{Start: e.PageStart, End: e.PageEnd},
			Status:      status,
		}
	}
	return c, nil
}

func (c *StaticCatalog) DocumentLocator(ctx context.Context, examPaperID string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	locator, ok := c.documents[examPaperID]
	return locator, ok, nil
}

func (c *StaticCatalog) ThemeCatalog(ctx context.Context) ([]analyze.ThemeCatalogEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]analyze.ThemeCatalogEntry, len(c.themes))
	copy(out, c.themes)
	return out, nil
}

func (c *StaticCatalog) Exercise(ctx context.Context, exerciseID string) (ExerciseRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.exercises[exerciseID]
	if !ok {
		return ExerciseRecord{}, fmt.Errorf("unknown exercise %s", exerciseID)
	}
	return rec, nil
}

// SetDocument and SetExercise mutate the snapshot; used by tests.
func (c *StaticCatalog) SetDocument(examPaperID, locator string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.documents[examPaperID] = locator
}

func (c *StaticCatalog) SetThemes(themes []analyze.ThemeCatalogEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.themes = themes
}

func (c *StaticCatalog) SetExercise(rec ExerciseRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exercises[rec.ID] = rec
}
