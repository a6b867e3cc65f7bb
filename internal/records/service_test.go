package records

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/carefile/carefile/internal/providers"
	"github.com/carefile/carefile/internal/store"
)

func testService(t *testing.T, mock *providers.MockProvider) (*Service, *store.Store, string) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"), slog.Default())
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	reg := providers.NewRegistry()
	reg.Register("mock", mock)
	reg.SetDefault("mock")

	svc := New(Config{
		Store:      st,
		Providers:  reg,
		UploadsDir: filepath.Join(dir, "uploads"),
		Logger:     slog.Default(),
	})

	dept, err := st.CreateDepartment(context.Background(), "Pharmacy", "")
	if err != nil {
		t.Fatal(err)
	}
	return svc, st, dept.ID
}

func TestService_SaveUpload(t *testing.T) {
	svc, st, deptID := testService(t, providers.NewMockProvider(""))
	ctx := context.Background()

	doc, err := svc.SaveUpload(ctx, deptID, "register.jpg", "image/jpeg", []byte("image bytes"))
	if err != nil {
		t.Fatalf("SaveUpload failed: %v", err)
	}

	data, err := os.ReadFile(svc.filePath(doc.ID))
	if err != nil {
		t.Fatalf("upload file missing: %v", err)
	}
	if string(data) != "image bytes" {
		t.Errorf("file contents = %q", data)
	}

	got, err := st.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != store.StatusUploaded || got.SizeBytes != 11 {
		t.Errorf("document = %+v", got)
	}
}

func TestService_Extract(t *testing.T) {
	mock := providers.NewMockProvider(`{
		"title": "Stock Register",
		"documentType": "register",
		"keyValuePairs": [{"key": "Department", "value": "Pharmacy"}],
		"sections": [],
		"tables": [{"caption": "Stock", "data": "Item|Qty\nAtropine|5\nAdrenaline|12"}]
	}`)
	svc, st, deptID := testService(t, mock)
	ctx := context.Background()

	doc, err := svc.SaveUpload(ctx, deptID, "register.jpg", "image/jpeg", []byte("img"))
	if err != nil {
		t.Fatal(err)
	}

	out, err := svc.Extract(ctx, doc.ID, "")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if out.Document.Status != store.StatusExtracted {
		t.Errorf("status = %q", out.Document.Status)
	}
	if out.Structured.Title != "Stock Register" {
		t.Errorf("title = %q", out.Structured.Title)
	}
	if len(out.Structured.Tables) != 1 || len(out.Structured.Tables[0].Rows) != 2 {
		t.Fatalf("tables = %+v", out.Structured.Tables)
	}
	if out.Diagnostics.RepairAttempted || out.Diagnostics.FallbackUsed {
		t.Errorf("clean JSON should not need repair or fallback: %+v", out.Diagnostics)
	}
	if mock.RequestCount() != 1 {
		t.Errorf("model calls = %d, want 1 (no re-extraction for full tables)", mock.RequestCount())
	}

	// The persisted blob round-trips through Structured.
	parsed, _, err := svc.Structured(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Structured failed: %v", err)
	}
	if parsed.Title != "Stock Register" || len(parsed.Tables) != 1 {
		t.Errorf("round trip = %+v", parsed)
	}

	stored, _ := st.GetDocument(ctx, doc.ID)
	if !strings.Contains(stored.ExtractedText, `"Stock Register"`) {
		t.Errorf("blob = %q", stored.ExtractedText)
	}
}

func TestService_ExtractTruncatedResponse(t *testing.T) {
	mock := providers.NewMockProvider(`{"title":"Admission Register","keyValuePairs":[{"key":"Ward","value":"3B"}],"sections":[`)
	mock.Truncated = true
	svc, _, deptID := testService(t, mock)
	ctx := context.Background()

	doc, err := svc.SaveUpload(ctx, deptID, "admissions.jpg", "image/jpeg", []byte("img"))
	if err != nil {
		t.Fatal(err)
	}
	out, err := svc.Extract(ctx, doc.ID, "")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if !out.Truncated {
		t.Error("truncation flag lost")
	}
	if !out.Diagnostics.RepairAttempted || !out.Diagnostics.RepairSucceeded {
		t.Errorf("diagnostics = %+v, want successful repair", out.Diagnostics)
	}
	if out.Structured.Title != "Admission Register" {
		t.Errorf("title = %q", out.Structured.Title)
	}
	if len(out.Structured.KeyValuePairs) != 1 {
		t.Errorf("pairs = %+v", out.Structured.KeyValuePairs)
	}
}

func TestService_ExtractQualityGateRefines(t *testing.T) {
	// First response has a mostly-blank table; the re-extraction fills it.
	mock := &providers.MockProvider{Responses: []string{
		`{"title":"Stock","tables":[{"caption":"Drugs","data":"Item|Qty\nAtropine|\n|\n|"}]}`,
		`{"tables":[{"caption":"Drugs","data":"Item|Qty\nAtropine|5\nAdrenaline|12\nDopamine|3"}]}`,
	}}
	svc, _, deptID := testService(t, mock)
	ctx := context.Background()

	doc, err := svc.SaveUpload(ctx, deptID, "stock.jpg", "image/jpeg", []byte("img"))
	if err != nil {
		t.Fatal(err)
	}
	out, err := svc.Extract(ctx, doc.ID, "")
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if mock.RequestCount() != 2 {
		t.Fatalf("model calls = %d, want 2 (extract + one re-extraction)", mock.RequestCount())
	}
	// The gate call must run without transport retries.
	if reqs := mock.Requests(); !reqs[1].SingleAttempt {
		t.Error("re-extraction request should be single-attempt")
	}
	rows := out.Structured.Tables[0].Rows
	if len(rows) != 3 || rows[1][0] != "Adrenaline" {
		t.Errorf("refined rows = %v", rows)
	}
}

func TestService_ExtractForwardsGenerationSettings(t *testing.T) {
	// Both the extraction call and the gate's re-extraction carry the
	// configured token cap and temperature.
	mock := &providers.MockProvider{Responses: []string{
		`{"title":"Stock","tables":[{"caption":"Drugs","data":"Item|Qty\nAtropine|\n|\n|"}]}`,
		`{"tables":[{"caption":"Drugs","data":"Item|Qty\nAtropine|5\nAdrenaline|12\nDopamine|3"}]}`,
	}}
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"), slog.Default())
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	reg := providers.NewRegistry()
	reg.Register("mock", mock)
	reg.SetDefault("mock")

	svc := New(Config{
		Store:           st,
		Providers:       reg,
		UploadsDir:      filepath.Join(dir, "uploads"),
		MaxOutputTokens: 4096,
		Temperature:     0.3,
		Logger:          slog.Default(),
	})

	ctx := context.Background()
	dept, err := st.CreateDepartment(ctx, "Pharmacy", "")
	if err != nil {
		t.Fatal(err)
	}
	doc, err := svc.SaveUpload(ctx, dept.ID, "stock.jpg", "image/jpeg", []byte("img"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Extract(ctx, doc.ID, ""); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	reqs := mock.Requests()
	if len(reqs) != 2 {
		t.Fatalf("model calls = %d, want 2", len(reqs))
	}
	for i, req := range reqs {
		if req.MaxOutputTokens != 4096 {
			t.Errorf("request %d max tokens = %d, want 4096", i, req.MaxOutputTokens)
		}
		if req.Temperature != 0.3 {
			t.Errorf("request %d temperature = %v, want 0.3", i, req.Temperature)
		}
	}
}

func TestService_ExtractProviderFailure(t *testing.T) {
	mock := providers.NewMockProvider("")
	mock.Err = errors.New("model unavailable")
	svc, st, deptID := testService(t, mock)
	ctx := context.Background()

	doc, err := svc.SaveUpload(ctx, deptID, "x.jpg", "image/jpeg", []byte("img"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Extract(ctx, doc.ID, ""); err == nil {
		t.Fatal("expected error")
	}
	got, _ := st.GetDocument(ctx, doc.ID)
	if got.Status != store.StatusFailed {
		t.Errorf("status = %q, want %q", got.Status, store.StatusFailed)
	}
}

func TestService_StructuredLegacyBlob(t *testing.T) {
	svc, st, deptID := testService(t, providers.NewMockProvider(""))
	ctx := context.Background()

	doc, err := svc.SaveUpload(ctx, deptID, "old.jpg", "image/jpeg", []byte("img"))
	if err != nil {
		t.Fatal(err)
	}
	// Blobs written before canonical JSON are plain markdown-ish text.
	legacy := "**Patient Notes**\nWard: 3B\nDoctor: Dr. Rao"
	if err := st.SetExtractedText(ctx, doc.ID, legacy); err != nil {
		t.Fatal(err)
	}

	parsed, diag, err := svc.Structured(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Structured failed: %v", err)
	}
	if !diag.FallbackUsed {
		t.Error("legacy blob should go through the fallback parser")
	}
	if len(parsed.KeyValuePairs) != 2 {
		t.Errorf("pairs = %+v", parsed.KeyValuePairs)
	}
}

func TestService_DeleteDocumentRemovesFile(t *testing.T) {
	svc, _, deptID := testService(t, providers.NewMockProvider(""))
	ctx := context.Background()

	doc, err := svc.SaveUpload(ctx, deptID, "x.jpg", "image/jpeg", []byte("img"))
	if err != nil {
		t.Fatal(err)
	}
	path := svc.filePath(doc.ID)
	if err := svc.DeleteDocument(ctx, doc.ID); err != nil {
		t.Fatalf("DeleteDocument failed: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("upload file still present: %v", err)
	}
}
