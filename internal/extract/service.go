package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/exampipeline/internal/document"
	"github.com/local/exampipeline/internal/metrics"
)

// Document-level extraction flags.
const (
	FlagOCRFallback    = "ocr_fallback"
	FlagOCRUnavailable = "ocr_unavailable"
	FlagOCRFailed      = "ocr_failed"
)

// FallbackExtractor is an Extractor that may be absent at runtime.
type FallbackExtractor interface {
	Extractor
	Available() error
}

// Options control the digital-vs-OCR decision for one document.
type Options struct {
	MinTextLengthForDigital int
	EnableOCRFallback       bool
}

// Service produces per-page text for whole documents and page ranges,
// deciding document-wide between the digital text layer and the OCR
// fallback. The decision is never mixed within one document.
type Service struct {
	digital Extractor
	ocr     FallbackExtractor
}

func NewService(digital Extractor, ocr FallbackExtractor) *Service {
	return &Service{digital: digital, ocr: ocr}
}

// AllPages extracts one PageText per page, ascending, with no gaps. When the
// concatenated digital text is shorter than the configured threshold and the
// fallback is enabled, the digital result is discarded wholesale and replaced
// by the OCR result. Degradations surface as document flags, not errors.
func (s *Service) AllPages(ctx context.Context, doc *document.Document, opts Options) ([]PageText, []string, error) {
	pages, err := s.digital.ExtractPages(ctx, doc.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("digital extraction: %w", err)
	}
	pages = padToPageCount(pages, doc.Ref.PageCount)

	var flags []string
	total := 0
	for _, p := range pages {
		total += len(strings.TrimSpace(p.Text))
	}

	if total >= opts.MinTextLengthForDigital || !opts.EnableOCRFallback {
		metrics.AddPagesExtracted("digital", len(pages))
		return pages, flags, nil
	}

	log.Info().
		Int("digital_chars", total).
		Int("threshold", opts.MinTextLengthForDigital).
		Str("locator", doc.Ref.Locator).
		Msg("digital text below threshold, attempting ocr fallback")

	if err := s.ocr.Available(); err != nil {
		log.Warn().Err(err).Msg("ocr fallback wanted but toolchain unavailable; extraction degraded")
		metrics.IncOCRFallback("unavailable")
		return pages, append(flags, FlagOCRUnavailable), nil
	}

	ocrPages, err := s.ocr.ExtractPages(ctx, doc.Data)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		log.Warn().Err(err).Msg("ocr fallback failed; keeping digital result")
		metrics.IncOCRFallback("failed")
		return pages, append(flags, FlagOCRFailed), nil
	}

	metrics.IncOCRFallback("applied")
	metrics.AddPagesExtracted("ocr", len(ocrPages))
	return padToPageCount(ocrPages, doc.Ref.PageCount), append(flags, FlagOCRFallback), nil
}

// Ranges validates every requested range before any extraction work, then
// runs one AllPages pass and slices per range. Pages within a range are
// joined with a blank line to preserve paragraph boundaries.
func (s *Service) Ranges(ctx context.Context, doc *document.Document, ranges []PageRange, opts Options) ([]string, []string, error) {
	var invalid []PageRange
	for _, r := range ranges {
		if !r.Valid(doc.Ref.PageCount) {
			invalid = append(invalid, r)
		}
	}
	if len(invalid) > 0 {
		return nil, nil, &RangeValidationError{Invalid: invalid, PageCount: doc.Ref.PageCount}
	}

	pages, flags, err := s.AllPages(ctx, doc, opts)
	if err != nil {
		return nil, nil, err
	}

	out := make([]string, 0, len(ranges))
	for _, r := range ranges {
		parts := make([]string, 0, r.End-r.Start+1)
		for p := r.Start; p <= r.End; p++ {
			parts = append(parts, pages[p-1].Text)
		}
		out = append(out, strings.Join(parts, "\n\n"))
	}
	return out, flags, nil
}

// padToPageCount guarantees one entry per page, ascending, filling gaps with
// empty text.
func padToPageCount(pages []PageText, pageCount int) []PageText {
	byPage := make(map[int]string, len(pages))
	for _, p := range pages {
		byPage[p.Page] = p.Text
	}
	out := make([]PageText, 0, pageCount)
	for i := 1; i <= pageCount; i++ {
		out = append(out, PageText{Page: i, Text: byPage[i]})
	}
	return out
}
