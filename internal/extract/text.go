package extract

import (
	"os"
	"path/filepath"
	"strings"
)

// TextExtractor handles .txt, .md, and .markdown files. Raw bytes are
// decoded through the Japanese-aware encoding fallback chain; the engine is
// always "text".
type TextExtractor struct {
	maxReplacementRatio float64
}

// NewTextExtractor creates a text/markdown extractor with the default
// replacement-character threshold.
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{maxReplacementRatio: 0.01}
}

var textExtensions = map[string]struct{}{
	".txt":      {},
	".md":       {},
	".markdown": {},
}

// CanHandle reports whether path has a text/markdown extension.
func (e *TextExtractor) CanHandle(path string) bool {
	_, ok := textExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Extract decodes the file and applies the replacement-ratio check.
func (e *TextExtractor) Extract(path string) (*ExtractedContent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	text, usedEnc, warnings := decodeWithFallback(data)
	if replacementRatio(text) > e.maxReplacementRatio {
		warnings = append(warnings, WarnReplacementChars)
	}

	return &ExtractedContent{
		FullText: strings.TrimSpace(text),
		Metadata: map[string]any{
			"type":     TypeText,
			"engine":   "text",
			"encoding": usedEnc,
			"warnings": sortedUnique(warnings),
		},
	}, nil
}
