package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kishika1sei/askdesk/internal/model"
)

// SQLDocumentStore persists documents in SQLite.
type SQLDocumentStore struct {
	db *DB
}

var _ model.DocumentStore = (*SQLDocumentStore)(nil)

// NewDocumentStore creates a document store on the shared handle.
func NewDocumentStore(db *DB) *SQLDocumentStore {
	return &SQLDocumentStore{db: db}
}

// Create inserts a document row.
func (s *SQLDocumentStore) Create(ctx context.Context, d *model.Document) error {
	_, err := s.db.conn(ctx).ExecContext(ctx,
		`INSERT INTO documents (id, title, file_path, num_pages, department_id, uploaded_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Title, d.FilePath, nullableInt(d.NumPages), d.DepartmentID, d.UploadedByID, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("create document %s: %w", d.ID, err)
	}
	return nil
}

// Get returns one document by id.
func (s *SQLDocumentStore) Get(ctx context.Context, id string) (*model.Document, error) {
	return scanDocument(s.db.conn(ctx).QueryRowContext(ctx,
		`SELECT id, title, file_path, num_pages, department_id, uploaded_by, created_at
		 FROM documents WHERE id = ?`, id))
}

// ListAll returns every document ordered by creation time.
func (s *SQLDocumentStore) ListAll(ctx context.Context) ([]*model.Document, error) {
	rows, err := s.db.conn(ctx).QueryContext(ctx,
		`SELECT id, title, file_path, num_pages, department_id, uploaded_by, created_at
		 FROM documents ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []*model.Document
	for rows.Next() {
		d, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// UpdateNumPages records the page count discovered during extraction.
func (s *SQLDocumentStore) UpdateNumPages(ctx context.Context, id string, numPages int) error {
	_, err := s.db.conn(ctx).ExecContext(ctx,
		`UPDATE documents SET num_pages = ? WHERE id = ?`, numPages, id)
	if err != nil {
		return fmt.Errorf("update num_pages for %s: %w", id, err)
	}
	return nil
}

// Delete removes the document row; chunks cascade via the foreign key.
func (s *SQLDocumentStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.conn(ctx).ExecContext(ctx,
		`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row *sql.Row) (*model.Document, error) {
	return scanDocumentRows(row)
}

func scanDocumentRows(row rowScanner) (*model.Document, error) {
	var d model.Document
	var numPages sql.NullInt64
	if err := row.Scan(&d.ID, &d.Title, &d.FilePath, &numPages,
		&d.DepartmentID, &d.UploadedByID, &d.CreatedAt); err != nil {
		return nil, err
	}
	if numPages.Valid {
		n := int(numPages.Int64)
		d.NumPages = &n
	}
	return &d, nil
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
