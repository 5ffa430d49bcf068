package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog/log"
)

// OCRExtractor recognizes text from rasterized page images via tesseract.
// Each extraction works inside its own temp directory, removed on every
// exit path. Single configured language only.
type OCRExtractor struct {
	Language  string
	DataPath  string
	RenderDPI int
}

func NewOCRExtractor(language, dataPath string, renderDPI int) *OCRExtractor {
	if language == "" {
		language = "eng"
	}
	if renderDPI <= 0 {
		renderDPI = 300
	}
	return &OCRExtractor{Language: language, DataPath: dataPath, RenderDPI: renderDPI}
}

// Available reports whether the tesseract toolchain and the configured
// language data are installed. Returns ErrOCRUnavailable with detail.
func (o *OCRExtractor) Available() error {
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOCRUnavailable, err)
	}
	for _, l := range langs {
		if l == o.Language {
			return nil
		}
	}
	return fmt.Errorf("%w: language %q not installed", ErrOCRUnavailable, o.Language)
}

// ExtractPages rasterizes every page to a grayscale PNG in a scoped temp
// area and runs recognition per image. Pages where recognition fails yield
// empty text; ErrOCRFailed is returned only when rasterization yields zero
// pages.
func (o *OCRExtractor) ExtractPages(ctx context.Context, data []byte) ([]PageText, error) {
	tmpDir, err := os.MkdirTemp("", "examocr-*")
	if err != nil {
		return nil, fmt.Errorf("create ocr temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "document.pdf")
	if err := os.WriteFile(pdfPath, data, 0o600); err != nil {
		return nil, fmt.Errorf("write ocr temp pdf: %w", err)
	}

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("open pdf for rasterization: %w", err)
	}
	defer doc.Close()

	numPages := doc.NumPage()
	if numPages == 0 {
		return nil, ErrOCRFailed
	}

	imagePaths := make([]string, 0, numPages)
	for i := 0; i < numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := doc.ImageDPI(i, float64(o.RenderDPI))
		if err != nil {
			log.Warn().Err(err).Int("page", i+1).Msg("page rasterization failed")
			imagePaths = append(imagePaths, "")
			continue
		}
		// Grayscale with a light contrast boost recognizes better on scans.
		processed := imaging.AdjustContrast(imaging.Grayscale(img), 15)
		path := filepath.Join(tmpDir, fmt.Sprintf("page-%04d.png", i+1))
		if err := imaging.Save(processed, path); err != nil {
			log.Warn().Err(err).Int("page", i+1).Msg("page image save failed")
			imagePaths = append(imagePaths, "")
			continue
		}
		imagePaths = append(imagePaths, path)
	}

	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(o.Language); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOCRUnavailable, err)
	}
	if o.DataPath != "" {
		if err := client.SetTessdataPrefix(o.DataPath); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOCRUnavailable, err)
		}
	}

	pages := make([]PageText, 0, numPages)
	for i, path := range imagePaths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := ""
		if path != "" {
			if err := client.SetImage(path); err == nil {
				if recognized, err := client.Text(); err == nil {
					text = recognized
				} else {
					log.Warn().Err(err).Int("page", i+1).Msg("ocr recognition failed")
				}
			}
		}
		pages = append(pages, PageText{Page: i + 1, Text: text})
	}

	log.Debug().Int("pages", len(pages)).Str("language", o.Language).Msg("ocr extraction done")
	return pages, nil
}
