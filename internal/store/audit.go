package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kishika1sei/askdesk/internal/model"
)

// SQLAuditStore appends audit rows. The table is append-only; there is no
// update or delete path.
type SQLAuditStore struct {
	db *DB
}

var _ model.AuditStore = (*SQLAuditStore)(nil)

// NewAuditStore creates an audit store on the shared handle.
func NewAuditStore(db *DB) *SQLAuditStore {
	return &SQLAuditStore{db: db}
}

// Append inserts one audit row. Meta is serialised as JSON.
func (s *SQLAuditStore) Append(ctx context.Context, entry *model.AuditLog) error {
	meta := entry.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal audit meta: %w", err)
	}

	_, err = s.db.conn(ctx).ExecContext(ctx,
		`INSERT INTO audit_logs (id, action, status, actor_id, document_id, department_id, message, meta, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, string(entry.Action), string(entry.Status), entry.ActorID,
		entry.DocumentID, entry.DepartmentID, entry.Message, string(metaJSON), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append audit row: %w", err)
	}
	return nil
}

// ListRecent returns the newest audit rows, newest first.
func (s *SQLAuditStore) ListRecent(ctx context.Context, limit int) ([]*model.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.conn(ctx).QueryContext(ctx,
		`SELECT id, action, status, actor_id, document_id, department_id, message, meta, created_at
		 FROM audit_logs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []*model.AuditLog
	for rows.Next() {
		var e model.AuditLog
		var action, status, metaJSON string
		if err := rows.Scan(&e.ID, &action, &status, &e.ActorID,
			&e.DocumentID, &e.DepartmentID, &e.Message, &metaJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Action = model.AuditAction(action)
		e.Status = model.AuditStatus(status)
		if metaJSON != "" {
			if err := json.Unmarshal([]byte(metaJSON), &e.Meta); err != nil {
				return nil, fmt.Errorf("unmarshal audit meta: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
