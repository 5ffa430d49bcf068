package analyze

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/exampipeline/internal/ai"
	"github.com/local/exampipeline/internal/metrics"
)

// ProviderAnalyzer is the live analyzer variant: it sends the statement and
// the closed theme vocabulary to a generative provider and defensively
// parses whatever comes back. Only provider availability failures escape as
// errors; malformed output degrades to null fields.
type ProviderAnalyzer struct {
	client      aiClient
	model       string
	maxTokens   int
	temperature float64
}

// aiClient mirrors ai.Client so tests can substitute a fake.
type aiClient interface {
	Name() string
	Do(ctx context.Context, req ai.Request) (ai.Response, error)
}

func NewProviderAnalyzer(client ai.Client, model string, maxTokens int) *ProviderAnalyzer {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &ProviderAnalyzer{client: client, model: model, maxTokens: maxTokens, temperature: 0}
}

func (p *ProviderAnalyzer) Analyze(ctx context.Context, statementText string, availableThemes []ThemeCatalogEntry) (EnrichmentResult, error) {
	req := ai.Request{
		Model:        p.model,
		SystemPrompt: systemPrompt,
		UserPrompt:   buildUserPrompt(statementText, availableThemes),
		MaxTokens:    p.maxTokens,
		Temperature:  p.temperature,
	}

	start := time.Now()
	resp, err := p.client.Do(ctx, req)
	if err != nil {
		metrics.ObserveProvider(p.client.Name(), p.model, "error", time.Since(start))
		return EnrichmentResult{}, fmt.Errorf("analysis request: %w", err)
	}
	metrics.ObserveProvider(p.client.Name(), p.model, "ok", time.Since(start))

	res, fallbacks := parseResult(resp.Text, availableThemes)
	for _, fb := range fallbacks {
		metrics.IncFieldFallback(fb.Field)
		log.Warn().
			Str("provider", p.client.Name()).
			Str("model", p.model).
			Str("field", fb.Field).
			Str("reason", fb.Reason).
			Msg("analyzer output anomaly, default substituted")
	}
	return res, nil
}
