package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	deskerrors "github.com/kishika1sei/askdesk/internal/errors"
	"github.com/kishika1sei/askdesk/internal/model"
)

// departmentCodeRe is the business-key format: lowercase alphanumerics and
// underscore, non-empty. Codes are used as search scopes and path segments.
var departmentCodeRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// DepartmentStore persists departments in SQLite.
type DepartmentStore struct {
	db *DB
}

var _ model.DepartmentCatalog = (*DepartmentStore)(nil)

// NewDepartmentStore creates a department store on the shared handle.
func NewDepartmentStore(db *DB) *DepartmentStore {
	return &DepartmentStore{db: db}
}

// ListCodes returns all department codes sorted alphabetically.
func (s *DepartmentStore) ListCodes(ctx context.Context) ([]string, error) {
	rows, err := s.db.conn(ctx).QueryContext(ctx,
		`SELECT code FROM departments ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("list department codes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// GetByCode resolves a department by its business key. Returns sql.ErrNoRows
// wrapped when absent.
func (s *DepartmentStore) GetByCode(ctx context.Context, code string) (*model.Department, error) {
	return s.scanOne(s.db.conn(ctx).QueryRowContext(ctx,
		`SELECT id, code, name FROM departments WHERE code = ?`, code))
}

// GetByID resolves a department by id.
func (s *DepartmentStore) GetByID(ctx context.Context, id string) (*model.Department, error) {
	return s.scanOne(s.db.conn(ctx).QueryRowContext(ctx,
		`SELECT id, code, name FROM departments WHERE id = ?`, id))
}

// Create inserts a department. The code must be unique and match the
// business-key format.
func (s *DepartmentStore) Create(ctx context.Context, d *model.Department) error {
	if !departmentCodeRe.MatchString(d.Code) {
		return deskerrors.New(deskerrors.ErrCodeInvalidDepartment,
			fmt.Sprintf("department code %q must be lowercase alphanumerics or underscore", d.Code), nil)
	}
	_, err := s.db.conn(ctx).ExecContext(ctx,
		`INSERT INTO departments (id, code, name) VALUES (?, ?, ?)`,
		d.ID, d.Code, d.Name)
	if err != nil {
		return fmt.Errorf("create department %s: %w", d.Code, err)
	}
	return nil
}

func (s *DepartmentStore) scanOne(row *sql.Row) (*model.Department, error) {
	var d model.Department
	if err := row.Scan(&d.ID, &d.Code, &d.Name); err != nil {
		return nil, err
	}
	return &d, nil
}
