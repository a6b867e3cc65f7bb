package endpoints

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/spf13/cobra"

	apiclient "github.com/carefile/carefile/internal/api"
	"github.com/carefile/carefile/internal/store"
	"github.com/carefile/carefile/internal/svcctx"
)

// acceptedMIMETypes are the upload formats the extraction providers accept.
var acceptedMIMETypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// ListDocumentsResponse is the response for listing a department's documents.
type ListDocumentsResponse struct {
	Documents []*store.Document `json:"documents"`
}

// UploadDocumentEndpoint handles POST /api/departments/{id}/documents with a
// multipart file upload.
type UploadDocumentEndpoint struct{}

func (e *UploadDocumentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/departments/{id}/documents", e.handler
}

func (e *UploadDocumentEndpoint) RequiresInit() bool { return true }

func (e *UploadDocumentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	cfg := svcctx.ConfigFrom(r.Context()).Get()
	maxBytes := int64(cfg.Uploads.MaxSizeMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "a 'file' form field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read upload: %v", err))
		return
	}
	if int64(len(data)) > maxBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds the %dMB limit", cfg.Uploads.MaxSizeMB))
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mime.TypeByExtension(strings.ToLower(filepath.Ext(header.Filename)))
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if !acceptedMIMETypes[mimeType] {
		writeError(w, http.StatusUnsupportedMediaType,
			fmt.Sprintf("unsupported file type %q (accepted: jpeg, png, webp, pdf)", mimeType))
		return
	}

	if mimeType == "application/pdf" {
		pages, err := api.PageCount(bytes.NewReader(data), nil)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid PDF: %v", err))
			return
		}
		if cfg.Uploads.MaxPDFPages > 0 && pages > cfg.Uploads.MaxPDFPages {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("PDF has %d pages, limit is %d", pages, cfg.Uploads.MaxPDFPages))
			return
		}
	}

	svc := svcctx.RecordsFrom(r.Context())
	doc, err := svc.SaveUpload(r.Context(), r.PathValue("id"), header.Filename, mimeType, data)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "department not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (e *UploadDocumentEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <department-id> <file>",
		Short: "Upload a document to a department",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := apiclient.NewClient(getServerURL())
			var doc store.Document
			path := "/api/departments/" + args[0] + "/documents"
			if err := client.UploadFile(cmd.Context(), path, "file", args[1], nil, &doc); err != nil {
				return err
			}
			return apiclient.Output(doc)
		},
	}
}

// ListDocumentsEndpoint handles GET /api/departments/{id}/documents.
type ListDocumentsEndpoint struct{}

func (e *ListDocumentsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/departments/{id}/documents", e.handler
}

func (e *ListDocumentsEndpoint) RequiresInit() bool { return true }

func (e *ListDocumentsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	if _, err := st.GetDepartment(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "department not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	docs, err := st.ListDocuments(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ListDocumentsResponse{Documents: docs})
}

func (e *ListDocumentsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list <department-id>",
		Short: "List a department's documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := apiclient.NewClient(getServerURL())
			var resp ListDocumentsResponse
			if err := client.Get(cmd.Context(), "/api/departments/"+args[0]+"/documents", &resp); err != nil {
				return err
			}
			return apiclient.Output(resp)
		},
	}
}

// GetDocumentEndpoint handles GET /api/documents/{id}.
type GetDocumentEndpoint struct{}

func (e *GetDocumentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/documents/{id}", e.handler
}

func (e *GetDocumentEndpoint) RequiresInit() bool { return true }

func (e *GetDocumentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	doc, err := st.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (e *GetDocumentEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a document by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := apiclient.NewClient(getServerURL())
			var doc store.Document
			if err := client.Get(cmd.Context(), "/api/documents/"+args[0], &doc); err != nil {
				return err
			}
			return apiclient.Output(doc)
		},
	}
}

// DeleteDocumentEndpoint handles DELETE /api/documents/{id}.
type DeleteDocumentEndpoint struct{}

func (e *DeleteDocumentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/documents/{id}", e.handler
}

func (e *DeleteDocumentEndpoint) RequiresInit() bool { return true }

func (e *DeleteDocumentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.RecordsFrom(r.Context())
	if err := svc.DeleteDocument(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *DeleteDocumentEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := apiclient.NewClient(getServerURL())
			return client.Delete(cmd.Context(), "/api/documents/"+args[0])
		},
	}
}
