// Package split provides recursive character text splitting for chunking.
// Lengths are measured in runes so Japanese text is budgeted correctly.
package split

import (
	"strings"
)

// Default separator sets. PDF and generic content split on paragraph, line,
// and Japanese sentence/clause boundaries; text/markdown additionally splits
// early on heading markers.
var (
	PDFSeparators     = []string{"\n\n", "\n", "。", "、", " ", ""}
	TextSeparators    = []string{"\n\n", "\n", "# ", "## ", "### ", "。", "、", " ", ""}
	GenericSeparators = []string{"\n\n", "\n", "。", "、", " ", ""}
)

// Splitter splits text recursively on an ordered separator list, producing
// chunks of at most ChunkSize runes with ChunkOverlap runes of trailing
// overlap carried into the next chunk.
type Splitter struct {
	Separators   []string
	ChunkSize    int
	ChunkOverlap int
}

// New creates a splitter. A nil or empty separator list falls back to the
// generic separators.
func New(separators []string, chunkSize, chunkOverlap int) *Splitter {
	if len(separators) == 0 {
		separators = GenericSeparators
	}
	if chunkSize <= 0 {
		chunkSize = 300
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &Splitter{
		Separators:   separators,
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
	}
}

// NewPDF returns a splitter with the PDF separator set.
func NewPDF(chunkSize, chunkOverlap int) *Splitter {
	return New(PDFSeparators, chunkSize, chunkOverlap)
}

// NewText returns a splitter with the text/markdown separator set.
func NewText(chunkSize, chunkOverlap int) *Splitter {
	return New(TextSeparators, chunkSize, chunkOverlap)
}

// NewGeneric returns a splitter with the generic separator set.
func NewGeneric(chunkSize, chunkOverlap int) *Splitter {
	return New(GenericSeparators, chunkSize, chunkOverlap)
}

// Split splits text into chunks. Empty and whitespace-only chunks are
// dropped; returned chunks are trimmed.
func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	raw := s.split(text, s.Separators)

	out := make([]string, 0, len(raw))
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

// split recursively splits text using the first applicable separator, then
// merges the pieces back into budget-sized chunks.
func (s *Splitter) split(text string, separators []string) []string {
	if runeLen(text) <= s.ChunkSize {
		return []string{text}
	}

	sep := ""
	var rest []string
	for i, sp := range separators {
		if sp == "" {
			sep = ""
			rest = nil
			break
		}
		if strings.Contains(text, sp) {
			sep = sp
			rest = separators[i+1:]
			break
		}
	}

	if sep == "" {
		return s.splitRunes(text)
	}

	pieces := splitKeepSeparator(text, sep)

	var chunks []string
	var pending []string
	for _, piece := range pieces {
		if runeLen(piece) <= s.ChunkSize {
			pending = append(pending, piece)
			continue
		}
		// Oversized piece: flush what we have, then recurse with the
		// remaining separators.
		chunks = append(chunks, s.merge(pending)...)
		pending = nil
		chunks = append(chunks, s.split(piece, rest)...)
	}
	chunks = append(chunks, s.merge(pending)...)
	return chunks
}

// merge greedily joins pieces into chunks of at most ChunkSize runes,
// carrying a ChunkOverlap-rune tail of pieces into the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	if len(pieces) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	total := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, strings.Join(current, ""))
		// Drop leading pieces until the tail fits in the overlap budget.
		for total > s.ChunkOverlap && len(current) > 0 {
			total -= runeLen(current[0])
			current = current[1:]
		}
	}

	for _, p := range pieces {
		n := runeLen(p)
		if total+n > s.ChunkSize && len(current) > 0 {
			flush()
		}
		current = append(current, p)
		total += n
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, ""))
	}
	return chunks
}

// splitRunes slices text into ChunkSize-rune windows stepping by
// ChunkSize-ChunkOverlap runes. Last resort when no separator applies.
func (s *Splitter) splitRunes(text string) []string {
	runes := []rune(text)
	step := s.ChunkSize - s.ChunkOverlap
	if step <= 0 {
		step = s.ChunkSize
	}

	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + s.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// splitKeepSeparator splits text on sep, attaching the separator to the end
// of the preceding piece so sentence punctuation survives chunking.
func splitKeepSeparator(text, sep string) []string {
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i < len(parts)-1 {
			p += sep
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}
