package store

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), slog.Default())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestDepartmentCRUD(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	d, err := s.CreateDepartment(ctx, "  ICU  ", "intensive care")
	if err != nil {
		t.Fatalf("CreateDepartment failed: %v", err)
	}
	if d.Name != "ICU" {
		t.Errorf("name = %q, want trimmed", d.Name)
	}
	if d.ID == "" {
		t.Error("id not assigned")
	}

	t.Run("get", func(t *testing.T) {
		got, err := s.GetDepartment(ctx, d.ID)
		if err != nil {
			t.Fatalf("GetDepartment failed: %v", err)
		}
		if got.Name != "ICU" || got.Description != "intensive care" {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("get by name is case-insensitive", func(t *testing.T) {
		got, err := s.GetDepartmentByName(ctx, "icu")
		if err != nil {
			t.Fatalf("GetDepartmentByName failed: %v", err)
		}
		if got.ID != d.ID {
			t.Errorf("id = %q, want %q", got.ID, d.ID)
		}
	})

	t.Run("duplicate name rejected case-insensitively", func(t *testing.T) {
		if _, err := s.CreateDepartment(ctx, "Icu", ""); !errors.Is(err, ErrDuplicateName) {
			t.Errorf("err = %v, want ErrDuplicateName", err)
		}
	})

	t.Run("update keeps unset fields", func(t *testing.T) {
		got, err := s.UpdateDepartment(ctx, d.ID, "Intensive Care Unit", "")
		if err != nil {
			t.Fatalf("UpdateDepartment failed: %v", err)
		}
		if got.Name != "Intensive Care Unit" {
			t.Errorf("name = %q", got.Name)
		}
		if got.Description != "intensive care" {
			t.Errorf("description = %q, want untouched", got.Description)
		}
	})

	t.Run("list ordered by name", func(t *testing.T) {
		if _, err := s.CreateDepartment(ctx, "Casualty", ""); err != nil {
			t.Fatal(err)
		}
		list, err := s.ListDepartments(ctx)
		if err != nil {
			t.Fatalf("ListDepartments failed: %v", err)
		}
		if len(list) != 2 || list[0].Name != "Casualty" {
			t.Errorf("list = %v", names(list))
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := s.DeleteDepartment(ctx, d.ID); err != nil {
			t.Fatalf("DeleteDepartment failed: %v", err)
		}
		if _, err := s.GetDepartment(ctx, d.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("err after delete = %v, want ErrNotFound", err)
		}
	})

	t.Run("missing ids", func(t *testing.T) {
		if _, err := s.GetDepartment(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetDepartment err = %v", err)
		}
		if err := s.DeleteDepartment(ctx, "nope"); !errors.Is(err, ErrNotFound) {
			t.Errorf("DeleteDepartment err = %v", err)
		}
	})
}

func TestSeedDepartments(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	created, err := s.SeedDepartments(ctx, []string{"ICU", "Pharmacy", "", "Blood Bank"})
	if err != nil {
		t.Fatalf("SeedDepartments failed: %v", err)
	}
	if len(created) != 3 {
		t.Errorf("created = %v, want 3", created)
	}

	// Reseeding is idempotent, including case differences.
	created, err = s.SeedDepartments(ctx, []string{"icu", "Pharmacy", "Laundry"})
	if err != nil {
		t.Fatalf("SeedDepartments failed: %v", err)
	}
	if len(created) != 1 || created[0] != "Laundry" {
		t.Errorf("created = %v, want [Laundry]", created)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	dept, err := s.CreateDepartment(ctx, "Pharmacy", "")
	if err != nil {
		t.Fatal(err)
	}

	doc, err := s.CreateDocument(ctx, dept.ID, "stock-register.jpg", "image/jpeg", 2048)
	if err != nil {
		t.Fatalf("CreateDocument failed: %v", err)
	}
	if doc.Status != StatusUploaded {
		t.Errorf("status = %q, want %q", doc.Status, StatusUploaded)
	}

	t.Run("unknown department rejected", func(t *testing.T) {
		if _, err := s.CreateDocument(ctx, "nope", "f.jpg", "image/jpeg", 1); !errors.Is(err, ErrNotFound) {
			t.Errorf("err = %v, want ErrNotFound", err)
		}
	})

	t.Run("status transitions", func(t *testing.T) {
		if err := s.SetDocumentStatus(ctx, doc.ID, StatusExtracting); err != nil {
			t.Fatalf("SetDocumentStatus failed: %v", err)
		}
		got, err := s.GetDocument(ctx, doc.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != StatusExtracting {
			t.Errorf("status = %q", got.Status)
		}
	})

	t.Run("extracted text persists and flips status", func(t *testing.T) {
		blob := `{"title":"Stock Register","tables":[]}`
		if err := s.SetExtractedText(ctx, doc.ID, blob); err != nil {
			t.Fatalf("SetExtractedText failed: %v", err)
		}
		got, err := s.GetDocument(ctx, doc.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.ExtractedText != blob {
			t.Errorf("extracted text = %q", got.ExtractedText)
		}
		if got.Status != StatusExtracted {
			t.Errorf("status = %q, want %q", got.Status, StatusExtracted)
		}
	})

	t.Run("department with documents is protected", func(t *testing.T) {
		if err := s.DeleteDepartment(ctx, dept.ID); !errors.Is(err, ErrDepartmentInUse) {
			t.Errorf("err = %v, want ErrDepartmentInUse", err)
		}
	})

	t.Run("list newest first", func(t *testing.T) {
		if _, err := s.CreateDocument(ctx, dept.ID, "second.pdf", "application/pdf", 10); err != nil {
			t.Fatal(err)
		}
		docs, err := s.ListDocuments(ctx, dept.ID)
		if err != nil {
			t.Fatalf("ListDocuments failed: %v", err)
		}
		if len(docs) != 2 {
			t.Fatalf("docs = %d, want 2", len(docs))
		}
		if docs[0].Filename != "second.pdf" {
			t.Errorf("order = [%s, %s]", docs[0].Filename, docs[1].Filename)
		}
	})

	t.Run("delete document frees department", func(t *testing.T) {
		docs, _ := s.ListDocuments(ctx, dept.ID)
		for _, d := range docs {
			if err := s.DeleteDocument(ctx, d.ID); err != nil {
				t.Fatalf("DeleteDocument failed: %v", err)
			}
		}
		if err := s.DeleteDepartment(ctx, dept.ID); err != nil {
			t.Errorf("DeleteDepartment after cleanup failed: %v", err)
		}
	})
}

func names(list []*Department) []string {
	out := make([]string, len(list))
	for i, d := range list {
		out[i] = d.Name
	}
	return out
}
