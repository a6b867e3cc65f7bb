package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Document statuses. A document moves uploaded → extracting → extracted,
// or → failed when the initial model call errors out. Re-extraction is
// allowed from any terminal state.
const (
	StatusUploaded   = "uploaded"
	StatusExtracting = "extracting"
	StatusExtracted  = "extracted"
	StatusFailed     = "failed"
)

// Document is one uploaded file belonging to a department. ExtractedText is
// the persisted raw-text blob: ideally canonical JSON, but legacy free-text
// blobs from earlier versions parse too.
type Document struct {
	ID            string    `json:"id"`
	DepartmentID  string    `json:"department_id"`
	Filename      string    `json:"filename"`
	MIMEType      string    `json:"mime_type"`
	SizeBytes     int64     `json:"size_bytes"`
	Status        string    `json:"status"`
	ExtractedText string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateDocument inserts a new document row in the uploaded state.
func (s *Store) CreateDocument(ctx context.Context, departmentID, filename, mimeType string, sizeBytes int64) (*Document, error) {
	if _, err := s.GetDepartment(ctx, departmentID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	doc := &Document{
		ID:           uuid.NewString(),
		DepartmentID: departmentID,
		Filename:     filename,
		MIMEType:     mimeType,
		SizeBytes:    sizeBytes,
		Status:       StatusUploaded,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, department_id, filename, mime_type, size_bytes, status, extracted_text, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, '', ?, ?)`,
		doc.ID, doc.DepartmentID, doc.Filename, doc.MIMEType, doc.SizeBytes, doc.Status,
		fmtTime(doc.CreatedAt), fmtTime(doc.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return doc, nil
}

// GetDocument returns a document by id, extracted text included.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, department_id, filename, mime_type, size_bytes, status, extracted_text, created_at, updated_at
		 FROM documents WHERE id = ?`, id)
	return scanDocument(row)
}

// ListDocuments returns a department's documents, newest first.
func (s *Store) ListDocuments(ctx context.Context, departmentID string) ([]*Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, department_id, filename, mime_type, size_bytes, status, extracted_text, created_at, updated_at
		 FROM documents WHERE department_id = ? ORDER BY created_at DESC`, departmentID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// SetDocumentStatus transitions a document's status.
func (s *Store) SetDocumentStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`,
		status, fmtTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("set document status: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetExtractedText persists the raw-text blob and marks the document
// extracted. This is the canonical write: everything downstream re-derives
// structure from this column.
func (s *Store) SetExtractedText(ctx context.Context, id, text string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET extracted_text = ?, status = ?, updated_at = ? WHERE id = ?`,
		text, StatusExtracted, fmtTime(time.Now().UTC()), id)
	if err != nil {
		return fmt.Errorf("set extracted text: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteDocument removes a document row. Callers remove the file on disk.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var createdAt, updatedAt string
	err := row.Scan(&doc.ID, &doc.DepartmentID, &doc.Filename, &doc.MIMEType, &doc.SizeBytes,
		&doc.Status, &doc.ExtractedText, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	doc.CreatedAt = parseTime(createdAt)
	doc.UpdatedAt = parseTime(updatedAt)
	return &doc, nil
}
