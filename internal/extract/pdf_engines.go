package extract

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
)

// primaryEngine extracts text with the pure-Go ledongthuc/pdf reader. It is
// fast and dependency-free but handles fewer font encodings than MuPDF, so
// its failures are reported as engine warnings and trigger the secondary
// engine.
type primaryEngine struct{}

func newPrimaryEngine() *primaryEngine { return &primaryEngine{} }

func (e *primaryEngine) Name() string { return EnginePrimary }

func (e *primaryEngine) ExtractPages(path string) (res *PageResult, err error) {
	// The reader panics on some malformed PDFs; convert to an engine
	// warning so the secondary engine gets a chance.
	defer func() {
		if r := recover(); r != nil {
			res = &PageResult{
				EngineWarnings: []string{fmt.Sprintf("Advanced encoding or structure not implemented: %v", r)},
			}
			err = nil
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	total := reader.NumPage()
	pages := make([]string, 0, total)
	var engineWarnings []string

	for i := 1; i <= total; i++ {
		text, pageErr := extractPageText(reader, i)
		if pageErr != nil {
			if strings.Contains(strings.ToLower(pageErr.Error()), "encoding") {
				engineWarnings = append(engineWarnings,
					fmt.Sprintf("Advanced encoding not implemented on page %d: %v", i, pageErr))
			}
			text = ""
		}
		pages = append(pages, text)
	}

	docMeta := readDocMeta(reader)

	return &PageResult{
		Pages:          pages,
		DocMeta:        docMeta,
		EngineWarnings: engineWarnings,
	}, nil
}

func extractPageText(reader *pdf.Reader, pageNum int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("page extraction panic: %v", r)
		}
	}()

	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

func readDocMeta(reader *pdf.Reader) map[string]string {
	defer func() { _ = recover() }()

	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return nil
	}
	meta := make(map[string]string)
	for key, field := range map[string]string{
		"author":   "Author",
		"creator":  "Creator",
		"producer": "Producer",
		"subject":  "Subject",
		"title":    "Title",
	} {
		if v := info.Key(field); !v.IsNull() {
			meta[key] = v.Text()
		}
	}
	return meta
}

// secondaryEngine extracts text through MuPDF (go-fitz). It handles the
// font encodings the primary engine cannot, at the cost of a cgo
// dependency.
type secondaryEngine struct{}

func newSecondaryEngine() *secondaryEngine { return &secondaryEngine{} }

func (e *secondaryEngine) Name() string { return EngineSecondary }

func (e *secondaryEngine) ExtractPages(path string) (*PageResult, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf with mupdf: %w", err)
	}
	defer doc.Close()

	total := doc.NumPage()
	pages := make([]string, 0, total)
	for i := 0; i < total; i++ {
		text, pageErr := doc.Text(i)
		if pageErr != nil {
			text = ""
		}
		pages = append(pages, text)
	}

	return &PageResult{Pages: pages}, nil
}
