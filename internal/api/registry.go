package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Registry holds all registered endpoints.
type Registry struct {
	endpoints []Endpoint
}

// NewRegistry creates a new endpoint registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an endpoint to the registry.
func (r *Registry) Register(ep Endpoint) {
	r.endpoints = append(r.endpoints, ep)
}

// RegisterRoutes registers all endpoint HTTP routes with the given mux.
// initMiddleware wraps handlers that require full server initialization.
func (r *Registry) RegisterRoutes(mux *http.ServeMux, initMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	for _, ep := range r.endpoints {
		method, path, handler := ep.Route()
		if ep.RequiresInit() {
			handler = initMiddleware(handler)
		}
		mux.HandleFunc(method+" "+path, handler)
	}
}

// BuildCommands returns a command grouping the registered endpoints' CLI
// twins under the given name. Endpoints without a CLI twin (Command returns
// nil) are HTTP-only and skipped. getServerURL is called at runtime, after
// flag parsing, to get the server URL.
func (r *Registry) BuildCommands(use, short string, getServerURL func() string) *cobra.Command {
	group := &cobra.Command{
		Use:   use,
		Short: short,
	}
	for _, ep := range r.endpoints {
		if cmd := ep.Command(getServerURL); cmd != nil {
			group.AddCommand(cmd)
		}
	}
	return group
}

// Endpoints returns all registered endpoints.
func (r *Registry) Endpoints() []Endpoint {
	return r.endpoints
}
