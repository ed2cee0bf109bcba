package extract

import (
	"sort"
	"strings"
)

const replacementChar = '�'

// QualityThresholds hold the empirically tuned constants of the PDF quality
// heuristics. They are exposed as options so operators can retune them
// without a rebuild; the defaults match production behaviour.
type QualityThresholds struct {
	// MinTextLen fires low_text_volume when the full text is shorter.
	MinTextLen int
	// MaxReplacementRatio fires replacement_characters_many above this
	// proportion of U+FFFD.
	MaxReplacementRatio float64
	// EmptyPageRatio fires image_pdf_suspected when at least this share of
	// pages has empty trimmed text.
	EmptyPageRatio float64
	// C1ControlRatio is the mojibake trigger on C1 control characters.
	C1ControlRatio float64
	// Latin1Ratio and MaxJapaneseRatio form the second mojibake trigger:
	// many Latin-1 high characters while Japanese text is scarce.
	Latin1Ratio      float64
	MaxJapaneseRatio float64
}

// DefaultQualityThresholds returns the production constants.
func DefaultQualityThresholds() QualityThresholds {
	return QualityThresholds{
		MinTextLen:          100,
		MaxReplacementRatio: 0.01,
		EmptyPageRatio:      0.60,
		C1ControlRatio:      0.003,
		Latin1Ratio:         0.02,
		MaxJapaneseRatio:    0.10,
	}
}

// replacementRatio is the proportion of U+FFFD runes in text.
func replacementRatio(text string) float64 {
	return runeRatio(text, func(r rune) bool { return r == replacementChar })
}

// c1ControlRatio is the proportion of C1 control characters
// (U+0080..U+009F).
func c1ControlRatio(text string) float64 {
	return runeRatio(text, func(r rune) bool { return r >= 0x80 && r <= 0x9F })
}

// latin1Ratio is the proportion of Latin-1 high characters
// (U+00A0..U+00FF).
func latin1Ratio(text string) float64 {
	return runeRatio(text, func(r rune) bool { return r >= 0xA0 && r <= 0xFF })
}

// japaneseRatio is the proportion of Hiragana, Katakana (including
// halfwidth), and CJK Unified Ideograph runes.
func japaneseRatio(text string) float64 {
	return runeRatio(text, isJapanese)
}

func isJapanese(r rune) bool {
	switch {
	case r >= 0x3040 && r <= 0x309F: // Hiragana
		return true
	case r >= 0x30A0 && r <= 0x30FF: // Katakana
		return true
	case r >= 0x4E00 && r <= 0x9FFF: // CJK Unified Ideographs
		return true
	case r >= 0xFF66 && r <= 0xFF9D: // Halfwidth Katakana
		return true
	}
	return false
}

func runeRatio(text string, pred func(rune) bool) float64 {
	if text == "" {
		return 0
	}
	total := 0
	matched := 0
	for _, r := range text {
		total++
		if pred(r) {
			matched++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total)
}

// assessPDFQuality inspects extracted PDF content and returns the sorted,
// de-duplicated set of quality warnings that apply.
func assessPDFQuality(content *ExtractedContent, th QualityThresholds) []string {
	var warnings []string
	text := content.FullText

	if runeCount(text) < th.MinTextLen {
		warnings = append(warnings, WarnLowTextVolume)
	}
	if replacementRatio(text) > th.MaxReplacementRatio {
		warnings = append(warnings, WarnReplacementChars)
	}
	if strings.TrimSpace(text) == "" {
		warnings = append(warnings, WarnNoTextExtracted)
	}

	if len(content.Pages) > 0 {
		empty := 0
		for _, p := range content.Pages {
			if strings.TrimSpace(p) == "" {
				empty++
			}
		}
		if float64(empty)/float64(len(content.Pages)) >= th.EmptyPageRatio {
			warnings = append(warnings, WarnImagePDFSuspected)
		}
	}

	// C1 control characters alone are a strong mojibake signal; Latin-1
	// high bytes only count when Japanese text is scarce.
	c1 := c1ControlRatio(text)
	l1 := latin1Ratio(text)
	jp := japaneseRatio(text)
	if c1 > th.C1ControlRatio {
		warnings = append(warnings, WarnMojibakeSuspected)
	} else if l1 > th.Latin1Ratio && jp < th.MaxJapaneseRatio {
		warnings = append(warnings, WarnMojibakeSuspected)
	}

	if msgs, ok := content.Metadata["engine_warnings"].([]string); ok {
		for _, m := range msgs {
			if strings.Contains(m, "Advanced encoding") && strings.Contains(m, "not implemented") {
				warnings = append(warnings, WarnAdvancedEncoding)
				break
			}
		}
	}

	return sortedUnique(warnings)
}

// qualityMetrics records the comparison metrics for one engine's output,
// stored under metadata.fallback for auditing.
func qualityMetrics(content *ExtractedContent, warnings []string) map[string]any {
	text := content.FullText

	var emptyRatio any
	if len(content.Pages) > 0 {
		empty := 0
		for _, p := range content.Pages {
			if strings.TrimSpace(p) == "" {
				empty++
			}
		}
		emptyRatio = float64(empty) / float64(len(content.Pages))
	}

	return map[string]any{
		"len":               runeCount(text),
		"replacement_ratio": replacementRatio(text),
		"c1_ratio":          c1ControlRatio(text),
		"latin1_ratio":      latin1Ratio(text),
		"jp_ratio":          japaneseRatio(text),
		"empty_page_ratio":  emptyRatio,
		"warnings":          warnings,
	}
}

func sortedUnique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func runeCount(s string) int {
	n := 0
	for range s {
		n++
	}
	return n
}
