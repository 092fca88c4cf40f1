package extract

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF concatenates the text of every page, in reading order, joined
// by blank lines so the chunker still sees page boundaries as paragraph
// breaks.
func extractPDF(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening PDF: %w", err)
	}

	totalPages := reader.NumPage()
	var pages []string
	for i := 1; i <= totalPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := extractPageTextOrdered(page)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text != "" {
			pages = append(pages, text)
		}
	}

	return strings.Join(pages, "\n\n"), nil
}

// pdfRun is one run of text pulled straight from the content stream,
// tagged with the baseline Y coordinate it was drawn at.
type pdfRun struct {
	baseline float64
	text     string
}

// bucketByBaseline collapses adjacent runs whose baselines fall within
// rowSpan of each other into a single row, concatenated in the order the
// content stream produced them. ledongthuc/pdf's GetPlainText walks the
// stream in object order, which scrambles multi-column or captioned
// layouts where a heading's runs aren't adjacent to its body text; going
// row-by-row first fixes that without needing to reorder within a row,
// since X-sorting a row can itself scramble runs under a flipped text
// matrix.
func bucketByBaseline(runs []pdfRun, rowSpan float64) []pdfRun {
	var rows []pdfRun
	for _, run := range runs {
		if n := len(rows); n > 0 && math.Abs(run.baseline-rows[n-1].baseline) <= rowSpan {
			rows[n-1].text += run.text
			continue
		}
		rows = append(rows, pdfRun{baseline: run.baseline, text: run.text})
	}
	return rows
}

// extractPageTextOrdered reconstructs reading order (top row to bottom
// row) for a single page. PDF Y coordinates grow upward from the page's
// bottom-left origin, so rows sort by descending baseline.
func extractPageTextOrdered(page pdf.Page) (string, error) {
	const rowSpan = 3.0

	content := page.Content()
	runs := make([]pdfRun, 0, len(content.Text))
	for _, t := range content.Text {
		runs = append(runs, pdfRun{baseline: t.Y, text: t.S})
	}
	if len(runs) == 0 {
		return page.GetPlainText(nil)
	}

	rows := bucketByBaseline(runs, rowSpan)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].baseline > rows[j].baseline })

	var out strings.Builder
	for _, row := range rows {
		trimmed := strings.TrimSpace(row.text)
		if trimmed == "" {
			continue
		}
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(trimmed)
	}

	if out.Len() == 0 {
		return page.GetPlainText(nil)
	}
	return out.String(), nil
}
