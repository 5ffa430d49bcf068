package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// PageText is the extracted text of a single page, 1-based.
type PageText struct {
	Page int    `json:"page"`
	Text string `json:"text"`
}

// PageRange is an inclusive 1-based page interval.
type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

func (r PageRange) String() string { return fmt.Sprintf("[%d-%d]", r.Start, r.End) }

// Valid reports whether the range is well-formed for a document of pageCount pages.
func (r PageRange) Valid(pageCount int) bool {
	return r.Start > 0 && r.End > 0 && r.Start <= r.End && r.End <= pageCount
}

// Extractor produces per-page text from raw PDF bytes. Implementations must
// preserve page order and yield empty strings, not errors, for blank or
// image-only pages.
type Extractor interface {
	ExtractPages(ctx context.Context, data []byte) ([]PageText, error)
}

var (
	// ErrOCRUnavailable marks a missing optical-recognition toolchain.
	ErrOCRUnavailable = errors.New("ocr unavailable")
	// ErrOCRFailed marks a rasterization that yielded zero pages.
	ErrOCRFailed = errors.New("ocr extraction failed")
)

// RangeValidationError reports page ranges rejected before any extraction work.
type RangeValidationError struct {
	Invalid   []PageRange
	PageCount int
}

func (e *RangeValidationError) Error() string {
	parts := make([]string, 0, len(e.Invalid))
	for _, r := range e.Invalid {
		parts = append(parts, r.String())
	}
	return fmt.Sprintf("invalid page ranges %s for document of %d pages", strings.Join(parts, ", "), e.PageCount)
}
