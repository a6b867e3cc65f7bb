package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/carefile/carefile/internal/api"
	"github.com/carefile/carefile/internal/store"
	"github.com/carefile/carefile/internal/svcctx"
)

// ListDepartmentsResponse is the response for listing departments.
type ListDepartmentsResponse struct {
	Departments []*store.Department `json:"departments"`
}

// DepartmentRequest is the create/update request body.
type DepartmentRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ListDepartmentsEndpoint handles GET /api/departments.
type ListDepartmentsEndpoint struct{}

func (e *ListDepartmentsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/departments", e.handler
}

func (e *ListDepartmentsEndpoint) RequiresInit() bool { return true }

func (e *ListDepartmentsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	departments, err := st.ListDepartments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ListDepartmentsResponse{Departments: departments})
}

func (e *ListDepartmentsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all departments",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ListDepartmentsResponse
			if err := client.Get(cmd.Context(), "/api/departments", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// CreateDepartmentEndpoint handles POST /api/departments.
type CreateDepartmentEndpoint struct{}

func (e *CreateDepartmentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/departments", e.handler
}

func (e *CreateDepartmentEndpoint) RequiresInit() bool { return true }

func (e *CreateDepartmentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req DepartmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "department name is required")
		return
	}

	st := svcctx.StoreFrom(r.Context())
	d, err := st.CreateDepartment(r.Context(), req.Name, req.Description)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (e *CreateDepartmentEndpoint) Command(getServerURL func() string) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a department",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var d store.Department
			req := DepartmentRequest{Name: args[0], Description: description}
			if err := client.Post(cmd.Context(), "/api/departments", req, &d); err != nil {
				return err
			}
			return api.Output(d)
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "Department description")
	return cmd
}

// GetDepartmentEndpoint handles GET /api/departments/{id}.
type GetDepartmentEndpoint struct{}

func (e *GetDepartmentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/departments/{id}", e.handler
}

func (e *GetDepartmentEndpoint) RequiresInit() bool { return true }

func (e *GetDepartmentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	d, err := st.GetDepartment(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "department not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (e *GetDepartmentEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a department by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var d store.Department
			if err := client.Get(cmd.Context(), "/api/departments/"+args[0], &d); err != nil {
				return err
			}
			return api.Output(d)
		},
	}
}

// UpdateDepartmentEndpoint handles PATCH /api/departments/{id}.
type UpdateDepartmentEndpoint struct{}

func (e *UpdateDepartmentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PATCH", "/api/departments/{id}", e.handler
}

func (e *UpdateDepartmentEndpoint) RequiresInit() bool { return true }

func (e *UpdateDepartmentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req DepartmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	st := svcctx.StoreFrom(r.Context())
	d, err := st.UpdateDepartment(r.Context(), r.PathValue("id"), req.Name, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "department not found")
		case errors.Is(err, store.ErrDuplicateName):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (e *UpdateDepartmentEndpoint) Command(getServerURL func() string) *cobra.Command {
	var name, description string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a department's name or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var d store.Department
			req := DepartmentRequest{Name: name, Description: description}
			if err := client.Patch(cmd.Context(), "/api/departments/"+args[0], req, &d); err != nil {
				return err
			}
			return api.Output(d)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	return cmd
}

// DeleteDepartmentEndpoint handles DELETE /api/departments/{id}.
type DeleteDepartmentEndpoint struct{}

func (e *DeleteDepartmentEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/departments/{id}", e.handler
}

func (e *DeleteDepartmentEndpoint) RequiresInit() bool { return true }

func (e *DeleteDepartmentEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	st := svcctx.StoreFrom(r.Context())
	err := st.DeleteDepartment(r.Context(), r.PathValue("id"))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "department not found")
		case errors.Is(err, store.ErrDepartmentInUse):
			writeError(w, http.StatusConflict, "department still has documents")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *DeleteDepartmentEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a department (must have no documents)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			return client.Delete(cmd.Context(), "/api/departments/"+args[0])
		},
	}
}
