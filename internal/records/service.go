// Package records orchestrates the document lifecycle: saving uploads,
// running model extraction, and turning persisted raw-text blobs back into
// structured documents.
package records

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/carefile/carefile/internal/extraction"
	"github.com/carefile/carefile/internal/providers"
	"github.com/carefile/carefile/internal/store"
)

// Config wires the service's dependencies.
type Config struct {
	Store      *store.Store
	Providers  *providers.Registry
	UploadsDir string

	// EmptyCellThreshold is passed to the table quality gate. Zero means
	// the gate default.
	EmptyCellThreshold float64

	// MaxOutputTokens and Temperature are forwarded on every model call,
	// including the quality gate's re-extraction. Zero values use the
	// backend defaults.
	MaxOutputTokens int
	Temperature     float64

	Logger *slog.Logger
}

// Service runs extractions and serves structured views of documents.
type Service struct {
	store       *store.Store
	registry    *providers.Registry
	uploadsDir  string
	threshold   float64
	maxTokens   int
	temperature float64
	logger      *slog.Logger
}

// Outcome is the result of one extraction run.
type Outcome struct {
	Document    *store.Document                  `json:"document"`
	Structured  *extraction.StructuredExtraction `json:"structured"`
	Diagnostics extraction.Diagnostics           `json:"diagnostics"`
	Provider    string                           `json:"provider"`
	Model       string                           `json:"model"`
	Truncated   bool                             `json:"truncated"`
}

// New creates the records service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.EmptyCellThreshold
	if threshold == 0 {
		threshold = extraction.DefaultEmptyCellThreshold
	}
	return &Service{
		store:       cfg.Store,
		registry:    cfg.Providers,
		uploadsDir:  cfg.UploadsDir,
		threshold:   threshold,
		maxTokens:   cfg.MaxOutputTokens,
		temperature: cfg.Temperature,
		logger:      logger,
	}
}

// SaveUpload persists the file bytes under the uploads directory and creates
// the document record.
func (s *Service) SaveUpload(ctx context.Context, departmentID, filename, mimeType string, data []byte) (*store.Document, error) {
	doc, err := s.store.CreateDocument(ctx, departmentID, filename, mimeType, int64(len(data)))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(s.uploadsDir, 0o755); err != nil {
		return nil, fmt.Errorf("uploads dir: %w", err)
	}
	if err := os.WriteFile(s.filePath(doc.ID), data, 0o644); err != nil {
		// Roll back the metadata row so the two stay in sync.
		_ = s.store.DeleteDocument(ctx, doc.ID)
		return nil, fmt.Errorf("write upload: %w", err)
	}
	s.logger.Info("document uploaded",
		"document_id", doc.ID,
		"department_id", departmentID,
		"filename", filename,
		"size_bytes", len(data))
	return doc, nil
}

// DeleteDocument removes the record and its file on disk.
func (s *Service) DeleteDocument(ctx context.Context, id string) error {
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	if err := os.Remove(s.filePath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove upload file", "document_id", id, "error", err)
	}
	return nil
}

// Extract runs the full pipeline on a document: one model call, parse with
// repair and fallback, quality-gate refinement, then persist the canonical
// JSON blob. providerName empty selects the configured default.
func (s *Service) Extract(ctx context.Context, documentID, providerName string) (*Outcome, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	provider, err := s.registry.Get(providerName)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.filePath(doc.ID))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}

	if err := s.store.SetDocumentStatus(ctx, doc.ID, store.StatusExtracting); err != nil {
		return nil, err
	}

	res, err := provider.Extract(ctx, &providers.ExtractRequest{
		Prompt:          extractionPrompt,
		FileBytes:       data,
		MIMEType:        doc.MIMEType,
		MaxOutputTokens: s.maxTokens,
		Temperature:     s.temperature,
	})
	if err != nil {
		if stErr := s.store.SetDocumentStatus(ctx, doc.ID, store.StatusFailed); stErr != nil {
			s.logger.Error("failed to mark document failed", "document_id", doc.ID, "error", stErr)
		}
		return nil, fmt.Errorf("provider %s: %w", provider.Name(), err)
	}

	parsed, diag := extraction.Parse(res.Text)

	gate := &extraction.Gate{
		Model:     s.gateModel(provider),
		Threshold: s.threshold,
		Logger:    s.logger,
	}
	parsed.Tables = gate.Refine(ctx, parsed.Tables, extraction.FileData{
		Bytes:    data,
		MIMEType: doc.MIMEType,
	})

	blob := extraction.Serialize(parsed)
	if err := s.store.SetExtractedText(ctx, doc.ID, blob); err != nil {
		return nil, err
	}
	doc, err = s.store.GetDocument(ctx, doc.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("extraction complete",
		"document_id", doc.ID,
		"provider", res.Provider,
		"model", res.ModelUsed,
		"truncated", res.Truncated,
		"repair_attempted", diag.RepairAttempted,
		"repair_succeeded", diag.RepairSucceeded,
		"fallback_used", diag.FallbackUsed,
		"tables_dropped", diag.TablesDropped,
		"duration", res.ExecutionTime)

	return &Outcome{
		Document:    doc,
		Structured:  parsed,
		Diagnostics: diag,
		Provider:    res.Provider,
		Model:       res.ModelUsed,
		Truncated:   res.Truncated,
	}, nil
}

// Structured re-derives the structured view from the persisted blob. Legacy
// free-text blobs go through the markdown fallback the same as fresh model
// output.
func (s *Service) Structured(ctx context.Context, documentID string) (*extraction.StructuredExtraction, extraction.Diagnostics, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, extraction.Diagnostics{}, err
	}
	if doc.Status != store.StatusExtracted || doc.ExtractedText == "" {
		return nil, extraction.Diagnostics{}, fmt.Errorf("document %s has no extraction (status %s)", doc.ID, doc.Status)
	}
	parsed, diag := extraction.Parse(doc.ExtractedText)
	return parsed, diag, nil
}

// gateModel adapts the provider to the quality gate's function type. The
// gate gets exactly one attempt, so transport retries are disabled.
func (s *Service) gateModel(p providers.Provider) extraction.ModelFunc {
	return func(ctx context.Context, prompt string, file extraction.FileData) (string, error) {
		res, err := p.Extract(ctx, &providers.ExtractRequest{
			Prompt:          prompt,
			FileBytes:       file.Bytes,
			MIMEType:        file.MIMEType,
			MaxOutputTokens: s.maxTokens,
			Temperature:     s.temperature,
			SingleAttempt:   true,
		})
		if err != nil {
			return "", err
		}
		return res.Text, nil
	}
}

func (s *Service) filePath(documentID string) string {
	return filepath.Join(s.uploadsDir, documentID)
}
