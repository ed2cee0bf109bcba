package extract

import (
	"path/filepath"
	"strings"
)

// Engine names recorded in metadata. The labels are kept stable because
// audit rows and index maintenance reports aggregate on them.
const (
	EnginePrimary   = "pypdf2"
	EngineSecondary = "pymupdf"
)

// PageResult is the raw output of one PDF engine run.
type PageResult struct {
	// Pages holds per-page text, newline-normalised, index 0 = page 1.
	Pages []string
	// DocMeta carries document metadata (author, title, ...) when the
	// engine exposes it.
	DocMeta map[string]string
	// EngineWarnings are messages the engine itself emitted while
	// extracting (e.g. unimplemented font encodings).
	EngineWarnings []string
}

// PageEngine extracts per-page text from a PDF file.
type PageEngine interface {
	Name() string
	ExtractPages(path string) (*PageResult, error)
}

// PDFOptions configures the dual-engine PDF extractor.
type PDFOptions struct {
	Primary    PageEngine
	Secondary  PageEngine // nil disables the fallback comparison
	Thresholds QualityThresholds
}

// DefaultPDFOptions wires the production engines.
func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		Primary:    newPrimaryEngine(),
		Secondary:  newSecondaryEngine(),
		Thresholds: DefaultQualityThresholds(),
	}
}

// PDFExtractor extracts PDFs with a primary engine and, when the output
// looks degraded, compares against a secondary engine and keeps the better
// result.
type PDFExtractor struct {
	opts PDFOptions
}

// NewPDFExtractor creates a PDF extractor.
func NewPDFExtractor(opts PDFOptions) *PDFExtractor {
	if opts.Thresholds == (QualityThresholds{}) {
		opts.Thresholds = DefaultQualityThresholds()
	}
	return &PDFExtractor{opts: opts}
}

// CanHandle reports whether path has a .pdf extension.
func (e *PDFExtractor) CanHandle(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".pdf"
}

// Extract runs the primary engine, assesses quality, and falls back to the
// secondary engine when a critical warning fires. The chosen engine, the
// warning set, and the per-engine comparison metrics are recorded under
// metadata.
func (e *PDFExtractor) Extract(path string) (*ExtractedContent, error) {
	primary, err := e.runEngine(e.opts.Primary, path)
	if err != nil {
		return nil, err
	}
	primaryWarnings := assessPDFQuality(primary, e.opts.Thresholds)

	if e.opts.Secondary == nil || !shouldFallback(primaryWarnings) {
		primary.Metadata["engine"] = EnginePrimary
		primary.Metadata["warnings"] = primaryWarnings
		return primary, nil
	}

	secondary, err := e.runEngine(e.opts.Secondary, path)
	if err != nil {
		primary.Metadata["engine"] = EnginePrimary
		primary.Metadata["warnings"] = sortedUnique(append(primaryWarnings, WarnSecondaryFailed))
		primary.Metadata["fallback"] = map[string]any{
			"from":             EnginePrimary,
			"to":               EnginePrimary,
			"error":            err.Error(),
			"trigger_warnings": primaryWarnings,
		}
		return primary, nil
	}
	secondaryWarnings := assessPDFQuality(secondary, e.opts.Thresholds)

	chosen, engine, warnings := chooseBetter(primary, primaryWarnings, secondary, secondaryWarnings)
	chosen.Metadata["engine"] = engine
	chosen.Metadata["warnings"] = warnings
	chosen.Metadata["fallback"] = map[string]any{
		"from":             EnginePrimary,
		"to":               engine,
		"trigger_warnings": primaryWarnings,
		"metrics": map[string]any{
			EnginePrimary:   qualityMetrics(primary, primaryWarnings),
			EngineSecondary: qualityMetrics(secondary, secondaryWarnings),
		},
	}
	return chosen, nil
}

// runEngine executes one engine and wraps its output as ExtractedContent.
func (e *PDFExtractor) runEngine(engine PageEngine, path string) (*ExtractedContent, error) {
	res, err := engine.ExtractPages(path)
	if err != nil {
		return nil, err
	}

	pages := make([]string, len(res.Pages))
	for i, p := range res.Pages {
		pages[i] = normalizeNewlines(p)
	}
	numPages := len(pages)

	meta := map[string]any{
		"type": TypePDF,
	}
	if len(res.DocMeta) > 0 {
		meta["pdf_meta"] = res.DocMeta
	}
	if len(res.EngineWarnings) > 0 {
		meta["engine_warnings"] = res.EngineWarnings
	}

	return &ExtractedContent{
		FullText: strings.TrimSpace(strings.Join(pages, "\n")),
		Pages:    pages,
		NumPages: &numPages,
		Metadata: meta,
	}, nil
}

// criticalWarnings trigger the secondary engine comparison.
var criticalWarnings = map[string]struct{}{
	WarnLowTextVolume:     {},
	WarnReplacementChars:  {},
	WarnImagePDFSuspected: {},
	WarnMojibakeSuspected: {},
	WarnAdvancedEncoding:  {},
}

func shouldFallback(warnings []string) bool {
	for _, w := range warnings {
		if _, ok := criticalWarnings[w]; ok {
			return true
		}
	}
	return false
}

// chooseBetter selects between the primary and secondary results. Priority:
// primary-side unimplemented font encoding, one-sided mojibake, a >10% text
// length difference, lower replacement ratio, fewer warnings, then primary.
func chooseBetter(
	p *ExtractedContent, pWarn []string,
	s *ExtractedContent, sWarn []string,
) (*ExtractedContent, string, []string) {
	if contains(pWarn, WarnAdvancedEncoding) {
		return s, EngineSecondary, sWarn
	}

	pMoji := contains(pWarn, WarnMojibakeSuspected)
	sMoji := contains(sWarn, WarnMojibakeSuspected)
	if pMoji && !sMoji {
		return s, EngineSecondary, sWarn
	}
	if sMoji && !pMoji {
		return p, EnginePrimary, pWarn
	}

	pLen := float64(runeCount(p.FullText))
	sLen := float64(runeCount(s.FullText))
	if sLen > pLen*1.10 {
		return s, EngineSecondary, sWarn
	}
	if pLen > sLen*1.10 {
		return p, EnginePrimary, pWarn
	}

	pRR := replacementRatio(p.FullText)
	sRR := replacementRatio(s.FullText)
	if sRR < pRR {
		return s, EngineSecondary, sWarn
	}
	if pRR < sRR {
		return p, EnginePrimary, pWarn
	}

	if len(sWarn) < len(pWarn) {
		return s, EngineSecondary, sWarn
	}
	return p, EnginePrimary, pWarn
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
