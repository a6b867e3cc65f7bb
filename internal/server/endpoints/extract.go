package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/carefile/carefile/internal/api"
	"github.com/carefile/carefile/internal/extraction"
	"github.com/carefile/carefile/internal/records"
	"github.com/carefile/carefile/internal/store"
	"github.com/carefile/carefile/internal/svcctx"
)

// ExtractRequest is the optional body for the extract endpoint.
type ExtractRequest struct {
	Provider string `json:"provider,omitempty"`
}

// ExtractEndpoint handles POST /api/documents/{id}/extract. It runs the full
// pipeline synchronously: model call, parse, quality gate, persist.
type ExtractEndpoint struct{}

func (e *ExtractEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/documents/{id}/extract", e.handler
}

func (e *ExtractEndpoint) RequiresInit() bool { return true }

func (e *ExtractEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	svc := svcctx.RecordsFrom(r.Context())
	out, err := svc.Extract(r.Context(), r.PathValue("id"), req.Provider)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (e *ExtractEndpoint) Command(getServerURL func() string) *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "extract <id>",
		Short: "Run extraction on a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var out records.Outcome
			req := ExtractRequest{Provider: provider}
			if err := client.Post(cmd.Context(), "/api/documents/"+args[0]+"/extract", req, &out); err != nil {
				return err
			}
			return api.Output(out)
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Provider name (default from config)")
	return cmd
}

// StructuredResponse is the structured view of an extracted document.
type StructuredResponse struct {
	Document    *extraction.StructuredExtraction `json:"document"`
	Diagnostics extraction.Diagnostics           `json:"diagnostics"`
}

// StructuredEndpoint handles GET /api/documents/{id}/structured. The view is
// re-derived from the persisted blob on every call.
type StructuredEndpoint struct{}

func (e *StructuredEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/documents/{id}/structured", e.handler
}

func (e *StructuredEndpoint) RequiresInit() bool { return true }

func (e *StructuredEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	svc := svcctx.RecordsFrom(r.Context())
	doc, diag, err := svc.Structured(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "document not found")
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, StructuredResponse{Document: doc, Diagnostics: diag})
}

func (e *StructuredEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "structured <id>",
		Short: "Get the structured view of an extracted document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StructuredResponse
			if err := client.Get(cmd.Context(), "/api/documents/"+args[0]+"/structured", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
