// Package mdrm converts the Federal Reserve's MDRM data-dictionary export
// (a ZIP containing one CSV) into JSON records. The dictionary text embeds
// HTML fragments and Windows typography, which get normalized on the way.
package mdrm

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"cdrkit/internal/archive"
)

// DefaultSource is the Federal Reserve's public MDRM export.
const DefaultSource = "https://www.federalreserve.gov/apps/mdrm/pdf/MDRM.zip"

// Record is one dictionary row, keyed by lower-snake-case header names.
type Record map[string]string

// Fetch loads the dictionary ZIP from a local path or an HTTP(S) URL.
func Fetch(ctx context.Context, client *http.Client, source string) ([]byte, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("read dictionary: %w", err)
		}
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch dictionary: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch dictionary: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch dictionary: %s returned %s", source, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetch dictionary: %w", err)
	}
	return data, nil
}

// Convert extracts the CSV from the dictionary ZIP and turns each data row
// into a cleaned Record.
func Convert(name string, zipData []byte) ([]Record, error) {
	bundle, err := archive.OpenBytes(name, zipData, ".csv")
	if err != nil {
		return nil, err
	}
	entry := bundle.Names()[0]
	data, err := bundle.Read(entry)
	if err != nil {
		return nil, err
	}
	return parseCSV(entry, data)
}

func parseCSV(name string, data []byte) ([]Record, error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	// The export leads with a one-cell title line before the header row.
	if len(rows) > 0 && len(rows[0]) == 1 {
		rows = rows[1:]
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("parse %s: no header row", name)
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = headerKey(h)
	}

	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := Record{}
		for i, cell := range row {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			rec[headers[i]] = Clean(cell)
		}
		if len(rec) > 0 {
			records = append(records, rec)
		}
	}
	return records, nil
}

// headerKey turns "Start Date" into "start_date".
func headerKey(h string) string {
	h = strings.TrimSpace(strings.ToLower(h))
	var b strings.Builder
	lastUnderscore := false
	for _, r := range h {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}
