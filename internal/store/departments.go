package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Department is one entry in the hospital's department directory.
type Department struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateDepartment inserts a new department. Names are unique,
// case-insensitively.
func (s *Store) CreateDepartment(ctx context.Context, name, description string) (*Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("department name is required")
	}
	now := time.Now().UTC()
	d := &Department{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO departments (id, name, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.Description, fmtTime(d.CreatedAt), fmtTime(d.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("create department: %w", err)
	}
	return d, nil
}

// GetDepartment returns a department by id.
func (s *Store) GetDepartment(ctx context.Context, id string) (*Department, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM departments WHERE id = ?`, id)
	return scanDepartment(row)
}

// GetDepartmentByName returns a department by its (case-insensitive) name.
func (s *Store) GetDepartmentByName(ctx context.Context, name string) (*Department, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM departments WHERE name = ? COLLATE NOCASE`, name)
	return scanDepartment(row)
}

// ListDepartments returns all departments ordered by name.
func (s *Store) ListDepartments(ctx context.Context) ([]*Department, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_at, updated_at FROM departments ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	defer rows.Close()

	var out []*Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// UpdateDepartment changes name and/or description. Empty strings leave the
// field untouched.
func (s *Store) UpdateDepartment(ctx context.Context, id, name, description string) (*Department, error) {
	d, err := s.GetDepartment(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) != "" {
		d.Name = strings.TrimSpace(name)
	}
	if strings.TrimSpace(description) != "" {
		d.Description = strings.TrimSpace(description)
	}
	d.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx,
		`UPDATE departments SET name = ?, description = ?, updated_at = ? WHERE id = ?`,
		d.Name, d.Description, fmtTime(d.UpdatedAt), d.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateName
		}
		return nil, fmt.Errorf("update department: %w", err)
	}
	return d, nil
}

// DeleteDepartment removes a department. A department that still has
// documents is protected: callers must delete or move them first.
func (s *Store) DeleteDepartment(ctx context.Context, id string) error {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE department_id = ?`, id).Scan(&n); err != nil {
		return fmt.Errorf("delete department: %w", err)
	}
	if n > 0 {
		return ErrDepartmentInUse
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM departments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete department: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SeedDepartments ensures every named department exists, creating missing
// ones. Returns the names actually created.
func (s *Store) SeedDepartments(ctx context.Context, names []string) ([]string, error) {
	var created []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		_, err := s.GetDepartmentByName(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return created, err
		}
		if _, err := s.CreateDepartment(ctx, name, ""); err != nil {
			return created, err
		}
		created = append(created, name)
	}
	return created, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDepartment(row rowScanner) (*Department, error) {
	var d Department
	var createdAt, updatedAt string
	err := row.Scan(&d.ID, &d.Name, &d.Description, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan department: %w", err)
	}
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	return &d, nil
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// isUniqueViolation matches SQLite's unique-constraint error text; the pure
// Go driver does not expose a typed error for it.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
