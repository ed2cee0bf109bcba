// Package extract converts source files (PDF, text, markdown, CSV) into
// normalised text with quality metadata. Dispatch is by file extension; PDF
// extraction runs a dual-engine comparison when the primary engine's output
// looks degraded.
package extract

import (
	"path/filepath"
	"strings"

	deskerrors "github.com/kishika1sei/askdesk/internal/errors"
)

// Content type identifiers recorded in metadata under "type".
const (
	TypePDF  = "pdf"
	TypeText = "text"
	TypeCSV  = "csv"
)

// Named quality warnings.
const (
	WarnLowTextVolume          = "low_text_volume"
	WarnNoTextExtracted        = "no_text_extracted"
	WarnReplacementChars       = "replacement_characters_many"
	WarnImagePDFSuspected      = "image_pdf_suspected"
	WarnMojibakeSuspected      = "mojibake_suspected"
	WarnAdvancedEncoding       = "pypdf2_advanced_encoding_unimplemented"
	WarnSecondaryFailed        = "pymupdf_extract_failed"
	WarnDecodeErrorsReplaced   = "decode_errors_replaced"
	WarnCSVSniffFailed         = "csv_dialect_sniff_failed"
	WarnCSVEmpty               = "csv_empty"
	WarnCSVInconsistentColumns = "csv_inconsistent_columns"
)

// ExtractedContent is the normalised output of an extractor. Pages is set
// only for formats with a page concept (PDF). Metadata always carries
// "type", "engine", and "warnings".
type ExtractedContent struct {
	FullText string
	Pages    []string
	NumPages *int
	Metadata map[string]any
}

// Warnings returns the warning list recorded in metadata.
func (c *ExtractedContent) Warnings() []string {
	if c.Metadata == nil {
		return nil
	}
	if w, ok := c.Metadata["warnings"].([]string); ok {
		return w
	}
	return nil
}

// Engine returns the engine recorded in metadata, or "unknown".
func (c *ExtractedContent) Engine() string {
	if c.Metadata != nil {
		if e, ok := c.Metadata["engine"].(string); ok && e != "" {
			return e
		}
	}
	return "unknown"
}

// Type returns the content type recorded in metadata, or "unknown".
func (c *ExtractedContent) Type() string {
	if c.Metadata != nil {
		if t, ok := c.Metadata["type"].(string); ok && t != "" {
			return t
		}
	}
	return "unknown"
}

// Extractor converts one file format to ExtractedContent.
type Extractor interface {
	// CanHandle reports whether this extractor handles the file at path
	// (by extension).
	CanHandle(path string) bool

	// Extract reads the file and returns its normalised content.
	Extract(path string) (*ExtractedContent, error)
}

// Registry dispatches to the first extractor that can handle a path.
type Registry struct {
	extractors []Extractor
}

// NewRegistry creates a registry with the given extractors, consulted in
// order.
func NewRegistry(extractors ...Extractor) *Registry {
	return &Registry{extractors: extractors}
}

// DefaultRegistry returns the production registry: PDF, CSV, then
// text/markdown.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewPDFExtractor(DefaultPDFOptions()),
		NewCSVExtractor(DefaultCSVRowsPerChunk),
		NewTextExtractor(),
	)
}

// ForPath returns the extractor responsible for path, or an
// UnsupportedFileType error when none matches.
func (r *Registry) ForPath(path string) (Extractor, error) {
	for _, ex := range r.extractors {
		if ex.CanHandle(path) {
			return ex, nil
		}
	}
	ext := strings.ToLower(filepath.Ext(path))
	return nil, deskerrors.New(deskerrors.ErrCodeUnsupportedFileType,
		"unsupported file type: "+ext, nil).WithDetail("extension", ext)
}

// Extract dispatches and extracts in one call.
func (r *Registry) Extract(path string) (*ExtractedContent, error) {
	ex, err := r.ForPath(path)
	if err != nil {
		return nil, err
	}
	return ex.Extract(path)
}

// normalizeNewlines rewrites CRLF and bare CR to LF.
func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
