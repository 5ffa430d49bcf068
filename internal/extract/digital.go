package extract

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"
)

// DigitalExtractor reads the embedded text layer of a PDF. Fragments sharing
// a vertical position are joined into one line; a row change starts a new
// line. Intentionally coarse: downstream consumers work on unstructured text.
type DigitalExtractor struct{}

func NewDigitalExtractor() *DigitalExtractor {
	return &DigitalExtractor{}
}

// ExtractPages returns one PageText per page in ascending order. Pages whose
// text layer is absent or unreadable yield an empty string rather than
// failing the whole document.
func (d *DigitalExtractor) ExtractPages(ctx context.Context, data []byte) ([]PageText, error) {
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	numPages := pdfReader.NumPage()
	pages := make([]PageText, 0, numPages)

	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages = append(pages, PageText{Page: i, Text: d.pageText(pdfReader, i)})
	}

	return pages, nil
}

func (d *DigitalExtractor) pageText(r *pdf.Reader, pageNum int) string {
	page := r.Page(pageNum)
	if page.V.IsNull() {
		return ""
	}

	rows, err := page.GetTextByRow()
	if err != nil {
		log.Debug().Err(err).Int("page", pageNum).Msg("row extraction failed, treating page as empty")
		return ""
	}

	var sb strings.Builder
	for _, row := range rows {
		var line strings.Builder
		for _, word := range row.Content {
			line.WriteString(word.S)
		}
		text := strings.TrimSpace(line.String())
		if text != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
	}
	return strings.TrimSpace(sb.String())
}
