package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/kishika1sei/askdesk/internal/model"
)

// SQLChunkStore persists chunks and their embeddings in SQLite. Embeddings
// are stored as little-endian float32 blobs.
type SQLChunkStore struct {
	db *DB
}

var _ model.ChunkStore = (*SQLChunkStore)(nil)

// NewChunkStore creates a chunk store on the shared handle.
func NewChunkStore(db *DB) *SQLChunkStore {
	return &SQLChunkStore{db: db}
}

// CreateBatch inserts chunks in order. Callers wrap this in a transaction
// together with the owning document so partial ingests never persist.
func (s *SQLChunkStore) CreateBatch(ctx context.Context, chunks []*model.Chunk) error {
	conn := s.db.conn(ctx)
	for _, c := range chunks {
		_, err := conn.ExecContext(ctx,
			`INSERT INTO chunks (id, document_id, chunk_index, page, content, embedding, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.DocumentID, c.ChunkIndex, nullableInt(c.Page), c.Content,
			encodeEmbedding(c.Embedding), c.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

// Get returns one chunk by id, embedding included.
func (s *SQLChunkStore) Get(ctx context.Context, id string) (*model.Chunk, error) {
	row := s.db.conn(ctx).QueryRowContext(ctx,
		`SELECT id, document_id, chunk_index, page, content, embedding, created_at
		 FROM chunks WHERE id = ?`, id)
	return scanChunk(row)
}

// GetRefs resolves chunks together with their owning documents. Missing ids
// are skipped; the result order follows ids.
func (s *SQLChunkStore) GetRefs(ctx context.Context, ids []string) ([]*model.ChunkRef, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.conn(ctx).QueryContext(ctx, fmt.Sprintf(
		`SELECT c.id, c.document_id, c.chunk_index, c.page, c.content,
		        d.id, d.title, d.file_path, d.num_pages, d.department_id, d.uploaded_by, d.created_at
		 FROM chunks c JOIN documents d ON d.id = c.document_id
		 WHERE c.id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("get chunk refs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[string]*model.ChunkRef, len(ids))
	for rows.Next() {
		var ref model.ChunkRef
		var doc model.Document
		var page, numPages sql.NullInt64
		if err := rows.Scan(&ref.ID, &ref.DocumentID, &ref.ChunkIndex, &page, &ref.Content,
			&doc.ID, &doc.Title, &doc.FilePath, &numPages, &doc.DepartmentID,
			&doc.UploadedByID, &doc.CreatedAt); err != nil {
			return nil, err
		}
		if page.Valid {
			p := int(page.Int64)
			ref.Page = &p
		}
		if numPages.Valid {
			n := int(numPages.Int64)
			doc.NumPages = &n
		}
		ref.Document = &doc
		byID[ref.ID] = &ref
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs := make([]*model.ChunkRef, 0, len(ids))
	for _, id := range ids {
		if ref, ok := byID[id]; ok {
			refs = append(refs, ref)
		}
	}
	return refs, nil
}

// ListIDsByDocument returns the chunk ids of one document in chunk order.
func (s *SQLChunkStore) ListIDsByDocument(ctx context.Context, documentID string) ([]string, error) {
	rows, err := s.db.conn(ctx).QueryContext(ctx,
		`SELECT id FROM chunks WHERE document_id = ? ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list chunk ids for %s: %w", documentID, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteByDocument removes all chunks of one document.
func (s *SQLChunkStore) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := s.db.conn(ctx).ExecContext(ctx,
		`DELETE FROM chunks WHERE document_id = ?`, documentID)
	if err != nil {
		return fmt.Errorf("delete chunks for %s: %w", documentID, err)
	}
	return nil
}

// ListAllOrdered streams every chunk ordered by id in batches, invoking fn
// per batch. Index rebuild uses this to bound memory on large corpora.
func (s *SQLChunkStore) ListAllOrdered(ctx context.Context, batchSize int, fn func(batch []*model.Chunk) error) error {
	if batchSize <= 0 {
		batchSize = 256
	}

	lastID := ""
	for {
		rows, err := s.db.conn(ctx).QueryContext(ctx,
			`SELECT id, document_id, chunk_index, page, content, embedding, created_at
			 FROM chunks WHERE id > ? ORDER BY id LIMIT ?`, lastID, batchSize)
		if err != nil {
			return fmt.Errorf("list chunks after %q: %w", lastID, err)
		}

		batch := make([]*model.Chunk, 0, batchSize)
		for rows.Next() {
			c, err := scanChunkRows(rows)
			if err != nil {
				_ = rows.Close()
				return err
			}
			batch = append(batch, c)
		}
		if err := rows.Err(); err != nil {
			_ = rows.Close()
			return err
		}
		_ = rows.Close()

		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		lastID = batch[len(batch)-1].ID
	}
}

// Count returns the total number of chunks.
func (s *SQLChunkStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.conn(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

func scanChunk(row *sql.Row) (*model.Chunk, error) {
	return scanChunkRows(row)
}

func scanChunkRows(row rowScanner) (*model.Chunk, error) {
	var c model.Chunk
	var page sql.NullInt64
	var blob []byte
	if err := row.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &page,
		&c.Content, &blob, &c.CreatedAt); err != nil {
		return nil, err
	}
	if page.Valid {
		p := int(page.Int64)
		c.Page = &p
	}
	c.Embedding = decodeEmbedding(blob)
	return &c, nil
}
