package analyze

import "context"

// ThemeCatalogEntry is one entry of the closed theme vocabulary supplied by
// the catalogue layer. The analyzer only ever emits ids from this set.
type ThemeCatalogEntry struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ExerciseKind classifies the shape of an exercise statement.
type ExerciseKind string

const (
	KindNormal    ExerciseKind = "NORMAL"
	KindQCM       ExerciseKind = "QCM"
	KindTrueFalse ExerciseKind = "TRUE_FALSE"
	KindOther     ExerciseKind = "OTHER"
)

func validKind(k ExerciseKind) bool {
	switch k {
	case KindNormal, KindQCM, KindTrueFalse, KindOther:
		return true
	}
	return false
}

// EnrichmentResult is the structured enrichment for one exercise. Every
// field is individually nullable: unknown beats fabricated.
type EnrichmentResult struct {
	Title               *string       `json:"title"`
	Summary             *string       `json:"summary"`
	Keywords            []string      `json:"keywords"`
	EstimatedDuration   *int          `json:"estimatedDuration"`
	EstimatedDifficulty *int          `json:"estimatedDifficulty"`
	ThemeIDs            []string      `json:"themeIds"`
	Kind                *ExerciseKind `json:"exerciseKind"`
}

// Analyzer turns one exercise statement into structured enrichment.
// Two variants exist behind this interface: the deterministic stub used by
// tests and offline development, and the provider-backed live analyzer.
// Selection happens at construction time via dependency injection.
type Analyzer interface {
	Analyze(ctx context.Context, statementText string, availableThemes []ThemeCatalogEntry) (EnrichmentResult, error)
}
