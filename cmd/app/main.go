package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/local/exampipeline/internal/ai"
	"github.com/local/exampipeline/internal/analyze"
	cfgpkg "github.com/local/exampipeline/internal/config"
	"github.com/local/exampipeline/internal/document"
	"github.com/local/exampipeline/internal/extract"
	logpkg "github.com/local/exampipeline/internal/logger"
	"github.com/local/exampipeline/internal/metrics"
	"github.com/local/exampipeline/internal/pipeline"
	"github.com/local/exampipeline/internal/segment"
	"github.com/local/exampipeline/internal/server"
)

func main() {
	_ = godotenv.Load()
	cfg := cfgpkg.FromEnv()

	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()

	metrics.Init()

	analyzer := buildAnalyzer(cfg.Providers)

	catalog := pipeline.NewStaticCatalog()
	if cfg.CatalogFile != "" {
		loaded, err := pipeline.NewStaticCatalogFromFile(cfg.CatalogFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.CatalogFile).Msg("failed to load catalog file")
		}
		catalog = loaded
	}

	pageService := extract.NewService(
		extract.NewDigitalExtractor(),
		extract.NewOCRExtractor(cfg.Extraction.OCRLanguage, cfg.Extraction.OCRDataPath, cfg.Extraction.RenderDPI),
	)

	orch := pipeline.New(pipeline.Dependencies{
		Loader:    document.NewLoader(),
		Pages:     pageService,
		Suggester: segment.NewSuggester(),
		Analyzer:  analyzer,
		Catalog:   catalog,
	}, pipeline.Options{
		Extraction: extract.Options{
			MinTextLengthForDigital: cfg.Extraction.MinTextLengthForDigital,
			EnableOCRFallback:       cfg.Extraction.EnableOCRFallback,
		},
		Concurrency:     cfg.Enrich.Concurrency,
		DocumentTimeout: cfg.Enrich.DocumentTimeout,
	})

	mux := http.NewServeMux()
	server.New(orch).RegisterRoutes(mux)

	srv := &http.Server{Addr: ":" + cfg.Server.Port, Handler: mux}

	go func() {
		log.Info().Msgf("HTTP server listening on :%s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("shutdown complete")
}

func buildAnalyzer(cfg cfgpkg.ProvidersConfig) analyze.Analyzer {
	switch cfg.Engine {
	case "stub":
		log.Info().Msg("using deterministic stub analyzer")
		return analyze.NewStubAnalyzer()
	case "anthropic":
		return analyze.NewProviderAnalyzer(ai.NewAnthropicClient(cfg.Timeout), cfg.AnthropicModel, cfg.MaxTokens)
	default:
		return analyze.NewProviderAnalyzer(ai.NewOpenAIClient(cfg.Timeout), cfg.OpenAIModel, cfg.MaxTokens)
	}
}
