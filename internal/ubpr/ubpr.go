// Package ubpr parses the FFIEC UBPR technical manual PDF into structured
// concept records. The manual carries no machine-readable markup, so records
// are recovered from typography: page names, ratio titles and MDRM lines are
// set in known font sizes, and the NARRATIVE/DESCRIPTION/FORMULA sections
// are plain body text between those markers.
package ubpr

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// DefaultSource is the published Summary Ratios section of the manual.
const DefaultSource = "https://cdr.ffiec.gov/CDRDownload/CDR/UserGuide/v129/FFIEC%20UBPR%20User%20Guide%20Summary%20Ratios--Page%201_2022-07-05.PDF"

// Manual typography. Body text and section markers share bodySize; the
// bold face distinguishes titles and MDRM lines from page names.
const (
	pageNameSize = 16.0
	titleSize    = 14.0
	mdrmSize     = 12.0
	bodySize     = 10.0
	boldFont     = "Helvetica-Bold"
)

// Span is one run of same-styled text from the PDF.
type Span struct {
	Text string
	Font string
	Size float64
}

// Record is one UBPR concept: where it appears in the manual, its MDRM
// identifier and its narrative/description/formula text.
type Record struct {
	PageName             string `json:"page_name"`
	Title                string `json:"title,omitempty"`
	ItemNumber           string `json:"item_number,omitempty"`
	MDRM                 string `json:"mdrm,omitempty"`
	Narrative            string `json:"narrative,omitempty"`
	Description          string `json:"description,omitempty"`
	Formula              string `json:"formula,omitempty"`
	IsReferencedConcepts bool   `json:"is_referenced_concepts"`
}

// Load fetches the manual from a local path or an HTTP(S) URL and extracts
// its styled text spans. Remote documents go through a temp file because the
// PDF reader needs random access.
func Load(ctx context.Context, client *http.Client, source string) ([]Span, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		return ExtractSpans(source)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch manual: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch manual: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch manual: %s returned %s", source, resp.Status)
	}

	tmp, err := os.CreateTemp("", "cdrkit-ubpr-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("fetch manual: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("fetch manual: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("fetch manual: %w", err)
	}
	return ExtractSpans(tmpPath)
}

// ExtractSpans reads every page of the PDF at path and returns its text runs
// with their typography, in reading order.
func ExtractSpans(path string) ([]Span, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manual: %w", err)
	}
	defer f.Close()

	var spans []Span
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		spans = append(spans, groupText(page.Content().Text)...)
	}
	return spans, nil
}

// groupText merges the reader's per-fragment output into spans: consecutive
// fragments sharing font, size and baseline belong to one run of text.
func groupText(texts []pdflib.Text) []Span {
	var spans []Span
	for _, t := range texts {
		if len(spans) > 0 {
			last := &spans[len(spans)-1]
			if last.Font == t.Font && last.Size == t.FontSize {
				last.Text += t.S
				continue
			}
		}
		spans = append(spans, Span{Text: t.S, Font: t.Font, Size: t.FontSize})
	}
	return spans
}

// Parse walks the spans and assembles concept records. A record accumulates
// page name, title and MDRM line as they appear and is completed by its
// FORMULA section; the page name and the referenced-concepts flag carry
// forward to the next record.
func Parse(spans []Span) []Record {
	var (
		records    []Record
		cur        Record
		lastPage   string
		referenced bool
	)

	for i, span := range spans {
		text := strings.TrimSpace(span.Text)

		if text == "Referenced Concepts" {
			referenced = true
			cur.IsReferencedConcepts = true
		}

		switch {
		case span.Size == pageNameSize:
			lastPage = text
			cur.PageName = lastPage
		case span.Size == titleSize && span.Font == boldFont:
			cur.Title = text
		case span.Size == mdrmSize && span.Font == boldFont:
			// "3 UBPRE003" carries an item number; bare lines are the
			// MDRM alone.
			if parts := strings.SplitN(text, " ", 2); len(parts) == 2 {
				cur.ItemNumber = parts[0]
				cur.MDRM = parts[1]
			} else {
				cur.MDRM = text
			}
		}

		switch text {
		case "NARRATIVE":
			cur.Narrative = sectionBody(spans, i+1)
		case "DESCRIPTION":
			cur.Description = sectionBody(spans, i+1)
		case "FORMULA":
			cur.Formula = sectionBody(spans, i+1)
			records = append(records, cur)
			cur = Record{PageName: lastPage, IsReferencedConcepts: referenced}
		}
	}
	return records
}

// sectionBody joins the body-sized spans following a section marker, up to
// the next marker or any non-body typography.
func sectionBody(spans []Span, start int) string {
	var parts []string
	for i := start; i < len(spans); i++ {
		text := strings.TrimSpace(spans[i].Text)
		if text == "NARRATIVE" || text == "DESCRIPTION" || text == "FORMULA" {
			break
		}
		if spans[i].Size != bodySize {
			break
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
