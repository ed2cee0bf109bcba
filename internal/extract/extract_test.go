package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	deskerrors "github.com/kishika1sei/askdesk/internal/errors"
)

func TestRegistry_DispatchByExtension(t *testing.T) {
	r := DefaultRegistry()

	pdf, err := r.ForPath("規程.pdf")
	require.NoError(t, err)
	assert.IsType(t, &PDFExtractor{}, pdf)

	csvEx, err := r.ForPath("名簿.CSV")
	require.NoError(t, err)
	assert.IsType(t, &CSVExtractor{}, csvEx)

	txt, err := r.ForPath("readme.md")
	require.NoError(t, err)
	assert.IsType(t, &TextExtractor{}, txt)
}

func TestRegistry_UnsupportedExtension(t *testing.T) {
	r := DefaultRegistry()

	_, err := r.ForPath("slide.pptx")

	require.Error(t, err)
	assert.Equal(t, deskerrors.ErrCodeUnsupportedFileType, deskerrors.GetCode(err))
	assert.Equal(t, ".pptx", deskerrors.GetDetails(err)["extension"])
}

func TestTextExtractor_PlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memo.txt")
	require.NoError(t, os.WriteFile(path, []byte("  経費精算のメモ\n二行目  \n"), 0o644))

	content, err := NewTextExtractor().Extract(path)
	require.NoError(t, err)

	assert.Equal(t, "経費精算のメモ\n二行目", content.FullText)
	assert.Equal(t, TypeText, content.Type())
	assert.Equal(t, "text", content.Engine())
	assert.Empty(t, content.Warnings())
	assert.Nil(t, content.Pages)
}

func TestExtractedContent_AccessorDefaults(t *testing.T) {
	c := &ExtractedContent{}

	assert.Equal(t, "unknown", c.Engine())
	assert.Equal(t, "unknown", c.Type())
	assert.Nil(t, c.Warnings())
}
