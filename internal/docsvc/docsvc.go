// Package docsvc implements the document lifecycle: upload with synchronous
// ingestion and indexing, deletion, and the full reindex sweep. Every
// mutation leaves an audit row, success or failure.
package docsvc

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	deskerrors "github.com/kishika1sei/askdesk/internal/errors"
	"github.com/kishika1sei/askdesk/internal/ingest"
	"github.com/kishika1sei/askdesk/internal/model"
	"github.com/kishika1sei/askdesk/internal/vecindex"
)

// maxRecordedFailures caps the failure list in reindex audit meta so one
// bad sweep cannot bloat the audit table.
const maxRecordedFailures = 50

// auditMetaKeys are the extractor metadata keys copied into upload audit
// rows. Everything else is dropped to keep rows small.
var auditMetaKeys = []string{"type", "engine", "warnings", "encoding", "delimiter", "fallback", "csv_header"}

// Service coordinates blob storage, ingestion, the vector index, and the
// audit trail.
type Service struct {
	blobs       model.BlobStore
	documents   model.DocumentStore
	chunks      model.ChunkStore
	audits      model.AuditStore
	departments model.DepartmentCatalog
	ingester    *ingest.Service
	index       *vecindex.Service
	tx          model.Transactor
	logger      *slog.Logger
}

// NewService creates the document service.
func NewService(
	blobs model.BlobStore,
	documents model.DocumentStore,
	chunks model.ChunkStore,
	audits model.AuditStore,
	departments model.DepartmentCatalog,
	ingester *ingest.Service,
	index *vecindex.Service,
	tx model.Transactor,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		blobs:       blobs,
		documents:   documents,
		chunks:      chunks,
		audits:      audits,
		departments: departments,
		ingester:    ingester,
		index:       index,
		tx:          tx,
		logger:      logger,
	}
}

// Upload stores data, creates the document, ingests it, and registers the
// new chunks in the vector index. On any failure the document row and blob
// are removed best-effort and a FAILED audit row is written; the original
// error is returned.
func (s *Service) Upload(ctx context.Context, actorID, departmentCode, filename string, data []byte) (*model.Document, error) {
	department, err := s.departments.GetByCode(ctx, departmentCode)
	if err != nil {
		return nil, fmt.Errorf("resolve department %q: %w", departmentCode, err)
	}

	relativePath := path.Join("documents", department.Code, filename)

	var storedPath string
	var doc *model.Document
	fail := func(cause error) (*model.Document, error) {
		s.compensateUpload(ctx, doc, storedPath)
		_ = s.appendAudit(ctx, &model.AuditLog{
			Action:       model.AuditActionUpload,
			Status:       model.AuditStatusFailed,
			ActorID:      actorID,
			DepartmentID: department.ID,
			Message:      "アップロード処理失敗",
			Meta: map[string]any{
				"filename":         filename,
				"file_ext":         strings.ToLower(path.Ext(filename)),
				"error":            cause.Error(),
				"extract_meta":     extractMetaFromError(cause),
				"extract_engine":   metaValue(extractMetaFromError(cause), "engine"),
				"extract_warnings": metaValue(extractMetaFromError(cause), "warnings"),
			},
		})
		return nil, cause
	}

	storedPath, err = s.blobs.Save(relativePath, data)
	if err != nil {
		return fail(err)
	}

	doc = &model.Document{
		ID:           uuid.NewString(),
		Title:        filename,
		FilePath:     storedPath,
		DepartmentID: department.ID,
		UploadedByID: actorID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.documents.Create(ctx, doc); err != nil {
		return fail(err)
	}

	fsPath, err := s.blobs.ResolveFsPath(storedPath)
	if err != nil {
		return fail(err)
	}
	result, err := s.ingester.Ingest(ctx, doc, fsPath)
	if err != nil {
		return fail(err)
	}

	if err := s.index.IndexChunks(ctx, result.Chunks); err != nil {
		return fail(err)
	}

	if err := s.appendAudit(ctx, &model.AuditLog{
		Action:       model.AuditActionUpload,
		Status:       model.AuditStatusSuccess,
		ActorID:      actorID,
		DocumentID:   doc.ID,
		DepartmentID: department.ID,
		Message:      "アップロード時に即インジェスト・即インデックス",
		Meta: map[string]any{
			"file_path":        storedPath,
			"file_ext":         strings.ToLower(path.Ext(storedPath)),
			"chunk_count":      result.ChunkCount,
			"extract_engine":   result.Engine,
			"extract_warnings": result.Warnings,
			"extract_meta":     filterMeta(result.ExtractorMeta),
		},
	}); err != nil {
		return nil, err
	}
	return doc, nil
}

// Delete removes the document's index entries, blob, and rows, then writes
// an audit row carrying a snapshot of what was removed.
func (s *Service) Delete(ctx context.Context, actorID, documentID string) error {
	doc, err := s.documents.Get(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}

	snapshot := map[string]any{
		"document_id":   doc.ID,
		"title":         doc.Title,
		"file_path":     doc.FilePath,
		"department_id": doc.DepartmentID,
	}

	run := func() error {
		chunkIDs, err := s.chunks.ListIDsByDocument(ctx, doc.ID)
		if err != nil {
			return err
		}
		if len(chunkIDs) > 0 {
			if err := s.index.DeleteChunks(ctx, chunkIDs); err != nil {
				return err
			}
		}
		if doc.FilePath != "" {
			if err := s.blobs.Delete(doc.FilePath); err != nil {
				return err
			}
		}
		return s.tx.WithTx(ctx, func(ctx context.Context) error {
			return s.documents.Delete(ctx, doc.ID)
		})
	}

	if err := run(); err != nil {
		meta := map[string]any{"error": err.Error()}
		for k, v := range snapshot {
			meta[k] = v
		}
		_ = s.appendAudit(ctx, &model.AuditLog{
			Action:       model.AuditActionDelete,
			Status:       model.AuditStatusFailed,
			ActorID:      actorID,
			DocumentID:   doc.ID,
			DepartmentID: doc.DepartmentID,
			Message:      "ドキュメント削除失敗",
			Meta:         meta,
		})
		return err
	}

	return s.appendAudit(ctx, &model.AuditLog{
		Action:       model.AuditActionDelete,
		Status:       model.AuditStatusSuccess,
		ActorID:      actorID,
		DocumentID:   doc.ID,
		DepartmentID: doc.DepartmentID,
		Message:      "ドキュメント削除",
		Meta:         snapshot,
	})
}

// ReindexReport summarises one full reindex sweep.
type ReindexReport struct {
	TotalDocuments   int              `json:"total_documents"`
	SuccessDocuments int              `json:"success_documents"`
	FailedDocuments  int              `json:"failed_documents"`
	Failures         []map[string]any `json:"failures"`
	EngineCounts     map[string]int   `json:"engine_counts"`
	WarningCounts    map[string]int   `json:"warning_counts"`
}

// ReindexAll re-ingests every document from its stored blob, then rebuilds
// the vector index from the surviving chunks. Per-document failures are
// recorded and skipped; the sweep continues. The audit row is FAILED when
// any document failed.
func (s *Service) ReindexAll(ctx context.Context, actorID string) (*ReindexReport, error) {
	docs, err := s.documents.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	report := &ReindexReport{
		TotalDocuments: len(docs),
		Failures:       []map[string]any{},
		EngineCounts:   map[string]int{},
		WarningCounts:  map[string]int{},
	}

	for _, doc := range docs {
		result, err := s.reindexOne(ctx, doc)
		if err != nil {
			report.FailedDocuments++
			if len(report.Failures) < maxRecordedFailures {
				report.Failures = append(report.Failures, map[string]any{
					"document_id": doc.ID,
					"title":       doc.Title,
					"error":       err.Error(),
				})
			}
			s.logger.Warn("reindex_document_failed",
				slog.String("document_id", doc.ID),
				slog.String("error", err.Error()))
			continue
		}
		report.SuccessDocuments++
		report.EngineCounts[result.Engine]++
		for _, w := range result.Warnings {
			report.WarningCounts[w]++
		}
	}

	if err := s.index.Rebuild(ctx); err != nil {
		return nil, err
	}

	status := model.AuditStatusSuccess
	if report.FailedDocuments > 0 {
		status = model.AuditStatusFailed
	}
	auditErr := s.appendAudit(ctx, &model.AuditLog{
		Action:  model.AuditActionReindexAll,
		Status:  status,
		ActorID: actorID,
		Message: "全件洗い替え（全件再インデックス）を実行",
		Meta: map[string]any{
			"scope":             "all",
			"total_documents":   report.TotalDocuments,
			"success_documents": report.SuccessDocuments,
			"failed_documents":  report.FailedDocuments,
			"failures":          report.Failures,
			"engine_counts":     report.EngineCounts,
			"warning_counts":    report.WarningCounts,
		},
	})
	if auditErr != nil {
		return report, auditErr
	}
	return report, nil
}

// reindexOne drops a document's chunks and re-ingests it inside one
// transaction.
func (s *Service) reindexOne(ctx context.Context, doc *model.Document) (*ingest.Result, error) {
	fsPath, err := s.blobs.ResolveFsPath(doc.FilePath)
	if err != nil {
		return nil, err
	}

	var result *ingest.Result
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.chunks.DeleteByDocument(ctx, doc.ID); err != nil {
			return err
		}
		result, err = s.ingester.Ingest(ctx, doc, fsPath)
		return err
	})
	return result, err
}

// compensateUpload removes the partial document row and blob of a failed
// upload. Best effort: compensation errors are logged, not returned.
func (s *Service) compensateUpload(ctx context.Context, doc *model.Document, storedPath string) {
	if doc != nil {
		if err := s.documents.Delete(ctx, doc.ID); err != nil {
			s.logger.Warn("upload_compensation_delete_document_failed",
				slog.String("document_id", doc.ID),
				slog.String("error", err.Error()))
		}
	}
	if storedPath != "" {
		if err := s.blobs.Delete(storedPath); err != nil {
			s.logger.Warn("upload_compensation_delete_blob_failed",
				slog.String("path", storedPath),
				slog.String("error", err.Error()))
		}
	}
}

// appendAudit writes one audit row. On a failed operation the call sites
// discard the returned error so the original failure is what propagates; on
// a successful operation an unwritable audit row fails the operation.
func (s *Service) appendAudit(ctx context.Context, entry *model.AuditLog) error {
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now().UTC()
	if err := s.audits.Append(ctx, entry); err != nil {
		s.logger.Error("audit_write_failed",
			slog.String("action", string(entry.Action)),
			slog.String("error", err.Error()))
		return deskerrors.New(deskerrors.ErrCodeAuditWrite, "write audit row", err).
			WithDetail("action", string(entry.Action))
	}
	return nil
}

// filterMeta keeps only the allow-listed extractor metadata keys.
func filterMeta(meta map[string]any) map[string]any {
	out := map[string]any{}
	for _, k := range auditMetaKeys {
		if v, ok := meta[k]; ok {
			out[k] = v
		}
	}
	return out
}

// extractMetaFromError pulls the extractor metadata a failed ingestion
// attached to its error, when present.
func extractMetaFromError(err error) map[string]any {
	details := deskerrors.GetDetails(err)
	if details == nil {
		return nil
	}
	if meta, ok := details["extract_meta"].(map[string]any); ok {
		return meta
	}
	return nil
}

func metaValue(meta map[string]any, key string) any {
	if meta == nil {
		return nil
	}
	return meta[key]
}
