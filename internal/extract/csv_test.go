package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCSVExtractor_RowsBecomeKeyValueLines(t *testing.T) {
	// Given: a comma-separated file with a header
	path := writeCSV(t, "members.csv", "氏名,部署,内線\n山田,経理,101\n佐藤,人事,102\n")
	ex := NewCSVExtractor(0)

	content, err := ex.Extract(path)
	require.NoError(t, err)

	// Then: each body row is one header=value line
	lines := strings.Split(content.FullText, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "氏名=山田 / 部署=経理 / 内線=101", lines[0])
	assert.Equal(t, "氏名=佐藤 / 部署=人事 / 内線=102", lines[1])

	// And: the header and chunking hint ride along in metadata
	assert.Equal(t, []string{"氏名", "部署", "内線"}, content.Metadata["csv_header"])
	assert.Equal(t, DefaultCSVRowsPerChunk, content.Metadata["rows_per_chunk_hint"])
	assert.Equal(t, ",", content.Metadata["delimiter"])
}

func TestCSVExtractor_SniffsTabDelimiter(t *testing.T) {
	path := writeCSV(t, "list.csv", "a\tb\tc\n1\t2\t3\n4\t5\t6\n")
	ex := NewCSVExtractor(0)

	content, err := ex.Extract(path)
	require.NoError(t, err)

	assert.Equal(t, "\t", content.Metadata["delimiter"])
	assert.Equal(t, "a=1 / b=2 / c=3", strings.Split(content.FullText, "\n")[0])
}

func TestCSVExtractor_SniffFailureFallsBackToComma(t *testing.T) {
	// Given: a single column with no delimiter to find
	path := writeCSV(t, "one.csv", "value\nalpha\nbeta\n")
	ex := NewCSVExtractor(0)

	content, err := ex.Extract(path)
	require.NoError(t, err)

	assert.Equal(t, ",", content.Metadata["delimiter"])
	assert.Contains(t, content.Warnings(), WarnCSVSniffFailed)
	assert.Equal(t, "value=alpha", strings.Split(content.FullText, "\n")[0])
}

func TestCSVExtractor_InconsistentColumnsWarned(t *testing.T) {
	// Given: a short row and a long row
	path := writeCSV(t, "ragged.csv", "a,b,c\n1,2\n4,5,6,7\n")
	ex := NewCSVExtractor(0)

	content, err := ex.Extract(path)
	require.NoError(t, err)

	assert.Contains(t, content.Warnings(), WarnCSVInconsistentColumns)

	// And: short rows pad with empty values, long rows truncate to the header
	lines := strings.Split(content.FullText, "\n")
	assert.Equal(t, "a=1 / b=2 / c=", lines[0])
	assert.Equal(t, "a=4 / b=5 / c=6", lines[1])
}

func TestCSVExtractor_EmptyFile(t *testing.T) {
	path := writeCSV(t, "empty.csv", "")
	ex := NewCSVExtractor(0)

	content, err := ex.Extract(path)
	require.NoError(t, err)

	assert.Empty(t, content.FullText)
	assert.Contains(t, content.Warnings(), WarnCSVEmpty)
}

func TestCSVExtractor_HeaderOnlyYieldsNoLines(t *testing.T) {
	path := writeCSV(t, "header.csv", "a,b,c\n")
	ex := NewCSVExtractor(0)

	content, err := ex.Extract(path)
	require.NoError(t, err)

	assert.Empty(t, content.FullText)
	assert.Equal(t, []string{"a", "b", "c"}, content.Metadata["csv_header"])
}

func TestCSVExtractor_RowsPerChunkHintOverride(t *testing.T) {
	path := writeCSV(t, "m.csv", "a,b\n1,2\n")

	content, err := NewCSVExtractor(5).Extract(path)
	require.NoError(t, err)

	assert.Equal(t, 5, content.Metadata["rows_per_chunk_hint"])
}
