// Package ingest turns an uploaded file into persisted, embedded chunks:
// extraction, chunking, one batch embedding call, then an atomic write of
// the chunk rows.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kishika1sei/askdesk/internal/embed"
	deskerrors "github.com/kishika1sei/askdesk/internal/errors"
	"github.com/kishika1sei/askdesk/internal/extract"
	"github.com/kishika1sei/askdesk/internal/model"
	"github.com/kishika1sei/askdesk/internal/split"
)

// Options configures chunking.
type Options struct {
	ChunkSize       int
	ChunkOverlap    int
	CSVRowsPerChunk int
}

// DefaultOptions returns the production chunking parameters.
func DefaultOptions() Options {
	return Options{
		ChunkSize:       300,
		ChunkOverlap:    80,
		CSVRowsPerChunk: 20,
	}
}

// Result summarises one ingestion run for audit rows and CLI output.
type Result struct {
	ChunkCount    int
	Engine        string
	Warnings      []string
	ExtractorMeta map[string]any
	NumPages      *int

	// Chunks are the persisted rows, embeddings included, so the caller
	// can index them without a re-read.
	Chunks []*model.Chunk
}

// Service runs the ingestion pipeline for one document.
type Service struct {
	registry  *extract.Registry
	embedder  embed.Embedder
	documents model.DocumentStore
	chunks    model.ChunkStore
	tx        model.Transactor
	logger    *slog.Logger

	pdfSplitter     *split.Splitter
	textSplitter    *split.Splitter
	genericSplitter *split.Splitter
	csvRowsPerChunk int
}

// NewService creates the ingestion service.
func NewService(
	registry *extract.Registry,
	embedder embed.Embedder,
	documents model.DocumentStore,
	chunks model.ChunkStore,
	tx model.Transactor,
	opts Options,
	logger *slog.Logger,
) *Service {
	if opts.ChunkSize <= 0 {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry:        registry,
		embedder:        embedder,
		documents:       documents,
		chunks:          chunks,
		tx:              tx,
		logger:          logger,
		pdfSplitter:     split.NewPDF(opts.ChunkSize, opts.ChunkOverlap),
		textSplitter:    split.NewText(opts.ChunkSize, opts.ChunkOverlap),
		genericSplitter: split.NewGeneric(opts.ChunkSize, opts.ChunkOverlap),
		csvRowsPerChunk: opts.CSVRowsPerChunk,
	}
}

// pageChunk pairs a chunk text with its source page (nil outside PDFs).
type pageChunk struct {
	page *int
	text string
}

// Ingest extracts fsPath, chunks it, embeds every chunk in one batch call,
// and persists the chunk rows transactionally. The document row must
// already exist; its page count is updated when extraction discovers one.
func (s *Service) Ingest(ctx context.Context, doc *model.Document, fsPath string) (*Result, error) {
	content, err := s.registry.Extract(fsPath)
	if err != nil {
		return nil, err
	}

	meta := content.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	engine := content.Engine()
	warnings := content.Warnings()
	docType := content.Type()

	// Scanned PDFs cannot be ingested until OCR support lands.
	if docType == extract.TypePDF {
		if containsWarning(warnings, extract.WarnNoTextExtracted) ||
			containsWarning(warnings, extract.WarnImagePDFSuspected) {
			return nil, deskerrors.New(deskerrors.ErrCodeScanPdf,
				"スキャンPDF（OCR未対応）の可能性が高いため取り込み不可です。", nil).
				WithDetail("extract_meta", meta)
		}
	}

	if content.NumPages != nil {
		if err := s.documents.UpdateNumPages(ctx, doc.ID, *content.NumPages); err != nil {
			return nil, err
		}
		doc.NumPages = content.NumPages
	}

	pairs, err := s.chunkContent(content, docType, meta)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		return nil, deskerrors.New(deskerrors.ErrCodeIngestionEmpty,
			"チャンクが生成されませんでした（抽出結果が空/分割不能）。", nil).
			WithDetail("extract_meta", meta)
	}

	texts := make([]string, len(pairs))
	for i, p := range pairs {
		texts[i] = p.text
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	chunks := make([]*model.Chunk, len(pairs))
	for i, p := range pairs {
		chunks[i] = &model.Chunk{
			ID:         uuid.NewString(),
			DocumentID: doc.ID,
			ChunkIndex: i,
			Page:       p.page,
			Content:    p.text,
			Embedding:  vectors[i],
			CreatedAt:  now,
		}
	}

	if err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		return s.chunks.CreateBatch(ctx, chunks)
	}); err != nil {
		return nil, err
	}

	s.logger.Info("document_ingested",
		slog.String("document_id", doc.ID),
		slog.Int("chunks", len(chunks)),
		slog.String("engine", engine))

	return &Result{
		ChunkCount:    len(chunks),
		Engine:        engine,
		Warnings:      warnings,
		ExtractorMeta: meta,
		NumPages:      content.NumPages,
		Chunks:        chunks,
	}, nil
}

// chunkContent converts extracted content to (page, text) pairs. PDF pages
// are split per page; CSV rows are grouped with their header; text and
// generic content is split over the full text.
func (s *Service) chunkContent(content *extract.ExtractedContent, docType string, meta map[string]any) ([]pageChunk, error) {
	var pairs []pageChunk

	if len(content.Pages) > 0 {
		for i, pageText := range content.Pages {
			pageText = strings.TrimSpace(pageText)
			if pageText == "" {
				continue
			}
			pageNum := i + 1
			for _, chunkText := range s.pdfSplitter.Split(pageText) {
				if ct := strings.TrimSpace(chunkText); ct != "" {
					p := pageNum
					pairs = append(pairs, pageChunk{page: &p, text: ct})
				}
			}
		}
		return pairs, nil
	}

	fullText := strings.TrimSpace(content.FullText)
	if fullText == "" {
		return nil, deskerrors.New(deskerrors.ErrCodeIngestionEmpty,
			"抽出テキストが空のため、チャンクを生成できません。", nil).
			WithDetail("extract_meta", meta)
	}

	switch docType {
	case extract.TypeCSV:
		pairs = s.chunkCSV(fullText, meta)
	case extract.TypeText:
		for _, chunkText := range s.textSplitter.Split(fullText) {
			if ct := strings.TrimSpace(chunkText); ct != "" {
				pairs = append(pairs, pageChunk{text: ct})
			}
		}
	default:
		for _, chunkText := range s.genericSplitter.Split(fullText) {
			if ct := strings.TrimSpace(chunkText); ct != "" {
				pairs = append(pairs, pageChunk{text: ct})
			}
		}
	}
	return pairs, nil
}

// chunkCSV groups normalised rows N at a time, prefixing every chunk with
// the header line so table structure survives retrieval.
func (s *Service) chunkCSV(fullText string, meta map[string]any) []pageChunk {
	headerLine := ""
	if header := csvHeader(meta); len(header) > 0 {
		headerLine = fmt.Sprintf("CSVヘッダ: %s", strings.Join(header, ", "))
	}

	var lines []string
	for _, ln := range strings.Split(fullText, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			lines = append(lines, ln)
		}
	}
	if len(lines) == 0 {
		return nil
	}

	n := s.csvRowsPerChunk
	if hint, ok := meta["rows_per_chunk_hint"].(int); ok && hint > 0 {
		n = hint
	}
	if n <= 0 {
		n = extract.DefaultCSVRowsPerChunk
	}

	var pairs []pageChunk
	for i := 0; i < len(lines); i += n {
		end := i + n
		if end > len(lines) {
			end = len(lines)
		}
		block := strings.Join(lines[i:end], "\n")
		text := block
		if headerLine != "" {
			text = headerLine + "\n" + block
		}
		pairs = append(pairs, pageChunk{text: strings.TrimSpace(text)})
	}
	return pairs
}

func csvHeader(meta map[string]any) []string {
	switch h := meta["csv_header"].(type) {
	case []string:
		return h
	case []any:
		header := make([]string, 0, len(h))
		for _, v := range h {
			if s, ok := v.(string); ok {
				header = append(header, s)
			}
		}
		return header
	}
	return nil
}

func containsWarning(warnings []string, w string) bool {
	for _, v := range warnings {
		if v == w {
			return true
		}
	}
	return false
}
