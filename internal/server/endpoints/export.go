package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/carefile/carefile/internal/api"
	"github.com/carefile/carefile/internal/export"
	"github.com/carefile/carefile/internal/extraction"
	"github.com/carefile/carefile/internal/home"
	"github.com/carefile/carefile/internal/store"
	"github.com/carefile/carefile/internal/svcctx"
)

// ExportDocumentXLSXEndpoint handles GET /api/documents/{id}/export/xlsx.
type ExportDocumentXLSXEndpoint struct{}

func (e *ExportDocumentXLSXEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/documents/{id}/export/xlsx", e.handler
}

func (e *ExportDocumentXLSXEndpoint) RequiresInit() bool { return true }

func (e *ExportDocumentXLSXEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	doc, meta, ok := loadExportDocument(w, r)
	if !ok {
		return
	}
	data, err := export.DocumentXLSX(doc, meta)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	serveFile(w, data,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		exportFilename(meta.Filename, "xlsx"))
}

func (e *ExportDocumentXLSXEndpoint) Command(getServerURL func() string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export-xlsx <id>",
		Short: "Download a document's extraction as an XLSX workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := exportDestination(out, "", args[0]+".xlsx")
			if err != nil {
				return err
			}
			client := api.NewClient(getServerURL())
			if err := client.Download(cmd.Context(), "/api/documents/"+args[0]+"/export/xlsx", dest); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", dest)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "file", "f", "", "Output file path (default: the home exports directory)")
	return cmd
}

// ExportDocumentPDFEndpoint handles GET /api/documents/{id}/export/pdf.
type ExportDocumentPDFEndpoint struct{}

func (e *ExportDocumentPDFEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/documents/{id}/export/pdf", e.handler
}

func (e *ExportDocumentPDFEndpoint) RequiresInit() bool { return true }

func (e *ExportDocumentPDFEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	doc, meta, ok := loadExportDocument(w, r)
	if !ok {
		return
	}
	data, err := export.DocumentPDF(doc, meta)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	serveFile(w, data, "application/pdf", exportFilename(meta.Filename, "pdf"))
}

func (e *ExportDocumentPDFEndpoint) Command(getServerURL func() string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export-pdf <id>",
		Short: "Download a document's extraction as a PDF summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := exportDestination(out, "", args[0]+".pdf")
			if err != nil {
				return err
			}
			client := api.NewClient(getServerURL())
			if err := client.Download(cmd.Context(), "/api/documents/"+args[0]+"/export/pdf", dest); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", dest)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "file", "f", "", "Output file path (default: the home exports directory)")
	return cmd
}

// ExportDepartmentXLSXEndpoint handles GET /api/departments/{id}/export/xlsx.
// It parses every extracted document of the department concurrently and
// renders one workbook.
type ExportDepartmentXLSXEndpoint struct{}

func (e *ExportDepartmentXLSXEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/departments/{id}/export/xlsx", e.handler
}

func (e *ExportDepartmentXLSXEndpoint) RequiresInit() bool { return true }

func (e *ExportDepartmentXLSXEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	svc := svcctx.RecordsFrom(r.Context())

	dept, err := st.GetDepartment(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "department not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	docs, err := st.ListDocuments(r.Context(), dept.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var extracted []*store.Document
	for _, d := range docs {
		if d.Status == store.StatusExtracted {
			extracted = append(extracted, d)
		}
	}
	if len(extracted) == 0 {
		writeError(w, http.StatusConflict, "department has no extracted documents")
		return
	}

	results := make([]export.DepartmentDocument, len(extracted))
	g, gctx := errgroup.WithContext(r.Context())
	g.SetLimit(4)
	for i, d := range extracted {
		g.Go(func() error {
			parsed, _, err := svc.Structured(gctx, d.ID)
			if err != nil {
				return fmt.Errorf("%s: %w", d.Filename, err)
			}
			results[i] = export.DepartmentDocument{
				Meta: export.DocumentMeta{DepartmentName: dept.Name, Filename: d.Filename},
				Doc:  parsed,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	data, err := export.DepartmentXLSX(dept.Name, results)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	serveFile(w, data,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		exportFilename(dept.Name, "xlsx"))
}

func (e *ExportDepartmentXLSXEndpoint) Command(getServerURL func() string) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export <department-id>",
		Short: "Download a department's extracted documents as one workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest, err := exportDestination(out, "", args[0]+".xlsx")
			if err != nil {
				return err
			}
			client := api.NewClient(getServerURL())
			if err := client.Download(cmd.Context(), "/api/departments/"+args[0]+"/export/xlsx", dest); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", dest)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "file", "f", "", "Output file path (default: the home exports directory)")
	return cmd
}

// loadExportDocument resolves the document, its department name, and its
// parsed structure, writing the error response itself on failure.
func loadExportDocument(w http.ResponseWriter, r *http.Request) (*extraction.StructuredExtraction, export.DocumentMeta, bool) {
	st := svcctx.StoreFrom(r.Context())
	svc := svcctx.RecordsFrom(r.Context())

	doc, err := st.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, export.DocumentMeta{}, false
	}

	parsed, _, err := svc.Structured(r.Context(), doc.ID)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return nil, export.DocumentMeta{}, false
	}

	meta := export.DocumentMeta{Filename: doc.Filename}
	if dept, err := st.GetDepartment(r.Context(), doc.DepartmentID); err == nil {
		meta.DepartmentName = dept.Name
	}
	return parsed, meta, true
}

// exportDestination resolves where a CLI download lands: the explicit path
// when given, otherwise the named file under the home exports directory.
func exportDestination(out, homePath, filename string) (string, error) {
	if out != "" {
		return out, nil
	}
	h, err := home.New(homePath)
	if err != nil {
		return "", err
	}
	if err := h.EnsureExists(); err != nil {
		return "", err
	}
	return h.ExportPath(filename), nil
}

func exportFilename(base, ext string) string {
	base = strings.TrimSuffix(base, "."+ext)
	base = strings.ReplaceAll(base, " ", "_")
	if base == "" {
		base = "export"
	}
	return base + "." + ext
}

func serveFile(w http.ResponseWriter, data []byte, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
