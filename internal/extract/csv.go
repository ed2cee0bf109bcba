package extract

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
)

// DefaultCSVRowsPerChunk is the default rows_per_chunk_hint exposed to the
// ingestion pipeline.
const DefaultCSVRowsPerChunk = 20

// CSVExtractor handles .csv files. Each body row is normalised to a
// "header=value / header=value" line so table structure survives chunking.
type CSVExtractor struct {
	rowsPerChunkHint int
}

// NewCSVExtractor creates a CSV extractor. rowsPerChunkHint <= 0 uses the
// default.
func NewCSVExtractor(rowsPerChunkHint int) *CSVExtractor {
	if rowsPerChunkHint <= 0 {
		rowsPerChunkHint = DefaultCSVRowsPerChunk
	}
	return &CSVExtractor{rowsPerChunkHint: rowsPerChunkHint}
}

// CanHandle reports whether path has a .csv extension.
func (e *CSVExtractor) CanHandle(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".csv"
}

// Extract decodes, sniffs the delimiter on the first 4 KiB, and normalises
// rows. The header row and rows-per-chunk hint are exposed in metadata for
// the ingestion pipeline.
func (e *CSVExtractor) Extract(path string) (*ExtractedContent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	text, usedEnc, warnings := decodeWithFallback(data)

	delimiter, ok := sniffDelimiter(text)
	if !ok {
		delimiter = ','
		warnings = append(warnings, WarnCSVSniffFailed)
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil || len(rows) == 0 {
		meta := map[string]any{
			"type":                TypeCSV,
			"engine":              "csv",
			"encoding":            usedEnc,
			"delimiter":           string(delimiter),
			"warnings":            sortedUnique(append(warnings, WarnCSVEmpty)),
			"csv_header":          []string{},
			"rows_per_chunk_hint": e.rowsPerChunkHint,
		}
		return &ExtractedContent{FullText: "", Metadata: meta}, nil
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	body := rows[1:]

	lines := make([]string, 0, len(body))
	for _, row := range body {
		if len(row) != len(header) {
			warnings = append(warnings, WarnCSVInconsistentColumns)
		}
		kv := make([]string, len(header))
		for i, h := range header {
			v := ""
			if i < len(row) {
				v = row[i]
			}
			kv[i] = strings.TrimSpace(h + "=" + v)
		}
		lines = append(lines, strings.Join(kv, " / "))
	}

	return &ExtractedContent{
		FullText: strings.TrimSpace(strings.Join(lines, "\n")),
		Metadata: map[string]any{
			"type":                TypeCSV,
			"engine":              "csv",
			"encoding":            usedEnc,
			"delimiter":           string(delimiter),
			"warnings":            sortedUnique(warnings),
			"csv_header":          header,
			"rows_per_chunk_hint": e.rowsPerChunkHint,
		},
	}, nil
}

// sniffDelimiter inspects the first 4 KiB and picks the candidate delimiter
// that appears with a consistent per-line count across the sampled lines.
func sniffDelimiter(text string) (rune, bool) {
	sample := text
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	lines := strings.Split(sample, "\n")
	if len(lines) > 10 {
		lines = lines[:10]
	}
	// Drop a trailing partial or empty line.
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return 0, false
	}

	for _, cand := range []rune{',', '\t', ';', '|'} {
		count := strings.Count(lines[0], string(cand))
		if count == 0 {
			continue
		}
		consistent := true
		for _, ln := range lines[1:] {
			if strings.TrimSpace(ln) == "" {
				continue
			}
			if strings.Count(ln, string(cand)) != count {
				consistent = false
				break
			}
		}
		if consistent {
			return cand, true
		}
	}
	return 0, false
}
