package split

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitter_ShortTextIsSingleChunk(t *testing.T) {
	// Given: a splitter with a 300-rune budget
	s := NewGeneric(300, 80)

	// When: I split text shorter than the budget
	chunks := s.Split("短いテキストです。")

	// Then: one trimmed chunk comes back
	require.Len(t, chunks, 1)
	assert.Equal(t, "短いテキストです。", chunks[0])
}

func TestSplitter_EmptyTextYieldsNoChunks(t *testing.T) {
	s := NewGeneric(300, 80)

	assert.Nil(t, s.Split(""))
	assert.Nil(t, s.Split("   \n\t  "))
}

func TestSplitter_ChunksRespectRuneBudget(t *testing.T) {
	// Given: Japanese sentences well over the budget
	sentence := "この文書は社内の経費精算手続きについて説明するものです。"
	text := strings.Repeat(sentence, 40)
	s := NewGeneric(100, 20)

	// When: I split
	chunks := s.Split(text)

	// Then: every chunk fits the rune budget
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 100, "chunk %d over budget", i)
	}
}

func TestSplitter_RuneBudgetNotByteBudget(t *testing.T) {
	// Given: text of 3-byte runes with no separators
	text := strings.Repeat("あ", 250)
	s := NewGeneric(100, 0)

	chunks := s.Split(text)

	// Then: chunks are cut at 100 runes, not 100 bytes
	require.Len(t, chunks, 3)
	assert.Equal(t, 100, len([]rune(chunks[0])))
	assert.Equal(t, 100, len([]rune(chunks[1])))
	assert.Equal(t, 50, len([]rune(chunks[2])))
}

func TestSplitter_ParagraphBoundaryPreferred(t *testing.T) {
	// Given: two paragraphs that together exceed the budget
	p1 := strings.Repeat("a", 80)
	p2 := strings.Repeat("b", 80)
	s := NewGeneric(100, 0)

	chunks := s.Split(p1 + "\n\n" + p2)

	// Then: the split lands on the paragraph boundary
	require.Len(t, chunks, 2)
	assert.Equal(t, p1, chunks[0])
	assert.Equal(t, p2, chunks[1])
}

func TestSplitter_SentencePunctuationSurvives(t *testing.T) {
	// Given: sentences joined by 。 with no newlines
	text := strings.Repeat("経費は月末までに申請します。", 20)
	s := NewGeneric(60, 0)

	chunks := s.Split(text)

	// Then: each chunk still ends with the sentence terminator
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.True(t, strings.HasSuffix(c, "。"), "chunk %q lost its terminator", c)
	}
}

func TestSplitter_OverlapCarriesTail(t *testing.T) {
	// Given: newline-separated short lines and a 10-rune overlap
	var b strings.Builder
	for i := 0; i < 20; i++ {
		b.WriteString("line")
		b.WriteByte(byte('a' + i))
		b.WriteString("\n")
	}
	s := New([]string{"\n", ""}, 30, 10)

	chunks := s.Split(b.String())
	require.Greater(t, len(chunks), 1)

	// Then: consecutive chunks share overlapping content
	for i := 1; i < len(chunks); i++ {
		prevTail := chunks[i-1][len(chunks[i-1])-5:]
		assert.Contains(t, chunks[i], strings.TrimSpace(prevTail),
			"chunk %d does not carry the previous tail", i)
	}
}

func TestSplitter_NoEmptyChunks(t *testing.T) {
	text := "a\n\n\n\n\n\nb\n\n\n\nc"
	s := NewGeneric(5, 0)

	for _, c := range s.Split(text) {
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
}

func TestNew_InvalidOverlapDisablesIt(t *testing.T) {
	// Given: overlap >= chunk size
	s := New(nil, 100, 100)

	// Then: overlap is reset so splitting still makes progress
	assert.Equal(t, 0, s.ChunkOverlap)
}

func TestSplitter_TextSeparatorsSplitOnHeadings(t *testing.T) {
	// Given: a markdown document with headings
	doc := "# 概要\n" + strings.Repeat("x", 90) + "\n# 手続き\n" + strings.Repeat("y", 90)
	s := NewText(100, 0)

	chunks := s.Split(doc)

	// Then: heading sections end up in separate chunks
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Contains(t, chunks[0], "概要")
}
