package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// AxiomConfig holds Axiom log forwarding configuration.
type AxiomConfig struct {
	Send          bool
	APIKey        string
	OrgID         string
	Dataset       string
	FlushInterval time.Duration
}

// ProvidersConfig selects the generative-analysis engine and models.
type ProvidersConfig struct {
	Engine         string // "openai"|"anthropic"|"stub"
	OpenAIModel    string
	AnthropicModel string
	MaxTokens      int
	Timeout        time.Duration
}

// ExtractionConfig controls page-text extraction and the OCR fallback.
type ExtractionConfig struct {
	MinTextLengthForDigital int
	EnableOCRFallback       bool
	OCRLanguage             string
	OCRDataPath             string
	RenderDPI               int
}

// EnrichConfig bounds the per-document enrichment fan-out.
type EnrichConfig struct {
	Concurrency     int
	DocumentTimeout time.Duration
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

// Config is the top-level configuration.
type Config struct {
	Logging     LoggingConfig
	Axiom       AxiomConfig
	Providers   ProvidersConfig
	Extraction  ExtractionConfig
	Enrich      EnrichConfig
	Server      ServerConfig
	CatalogFile string
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
	cfg := Config{}

	cfg.Logging = LoggingConfig{
		Level:      getEnv("LOG_LEVEL", "info"),
		Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
		File:       getEnv("LOG_FILE", "logs/exampipeline.log"),
		MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
		MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
		MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
		Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
	}

	baseDataset := getEnv("AXIOM_DATASET", "dev")
	cfg.Axiom = AxiomConfig{
		Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
		APIKey:        getEnv("AXIOM_API_KEY", ""),
		OrgID:         getEnv("AXIOM_ORG_ID", ""),
		Dataset:       baseDataset + "_exampipeline",
		FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
	}

	cfg.Providers = ProvidersConfig{
		Engine:         getEnv("ANALYSIS_ENGINE", "openai"),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		AnthropicModel: getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku"),
		MaxTokens:      parseInt(getEnv("ANALYSIS_MAX_TOKENS", "1024"), 1024),
		Timeout:        parseDuration(getEnv("ANALYSIS_TIMEOUT", "45s"), 45*time.Second),
	}

	cfg.Extraction = ExtractionConfig{
		MinTextLengthForDigital: parseInt(getEnv("MIN_TEXT_LENGTH_FOR_DIGITAL", "200"), 200),
		EnableOCRFallback:       parseBool(getEnv("ENABLE_OCR_FALLBACK", "1")),
		OCRLanguage:             getEnv("OCR_LANGUAGE", "fra"),
		OCRDataPath:             getEnv("OCR_DATA_PATH", ""),
		RenderDPI:               parseInt(getEnv("OCR_RENDER_DPI", "300"), 300),
	}

	cfg.Enrich = EnrichConfig{
		Concurrency:     parseInt(getEnv("ENRICH_CONCURRENCY", "3"), 3),
		DocumentTimeout: parseDuration(getEnv("ENRICH_DOCUMENT_TIMEOUT", "5m"), 5*time.Minute),
	}

	cfg.Server = ServerConfig{
		Port:            getEnv("PORT", "8080"),
		ShutdownTimeout: parseDuration(getEnv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),
	}

	cfg.CatalogFile = getEnv("CATALOG_FILE", "")

	return cfg
}

// Helpers
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

func parseBool(s string) bool {
	v := strings.ToLower(strings.TrimSpace(s))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return def
}

func devDefaultPretty() string {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))
	if env == "dev" || env == "development" || env == "local" {
		return "true"
	}
	return "false"
}
