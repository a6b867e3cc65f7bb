package endpoints

import (
	"github.com/carefile/carefile/internal/api"
)

// All returns all endpoint instances in registration order.
func All() []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},

		// Department endpoints
		&ListDepartmentsEndpoint{},
		&CreateDepartmentEndpoint{},
		&GetDepartmentEndpoint{},
		&UpdateDepartmentEndpoint{},
		&DeleteDepartmentEndpoint{},

		// Document endpoints
		&UploadDocumentEndpoint{},
		&ListDocumentsEndpoint{},
		&GetDocumentEndpoint{},
		&DeleteDocumentEndpoint{},

		// Extraction endpoints
		&ExtractEndpoint{},
		&StructuredEndpoint{},

		// Export endpoints
		&ExportDocumentXLSXEndpoint{},
		&ExportDocumentPDFEndpoint{},
		&ExportDepartmentXLSXEndpoint{},
	}
}

// HealthCommands groups the server probes for the CLI.
func HealthCommands() []api.Endpoint {
	return []api.Endpoint{
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{},
	}
}

// DepartmentCommands groups department operations for the CLI.
func DepartmentCommands() []api.Endpoint {
	return []api.Endpoint{
		&ListDepartmentsEndpoint{},
		&CreateDepartmentEndpoint{},
		&GetDepartmentEndpoint{},
		&UpdateDepartmentEndpoint{},
		&DeleteDepartmentEndpoint{},
		&ExportDepartmentXLSXEndpoint{},
	}
}

// DocumentCommands groups document operations for the CLI.
func DocumentCommands() []api.Endpoint {
	return []api.Endpoint{
		&UploadDocumentEndpoint{},
		&ListDocumentsEndpoint{},
		&GetDocumentEndpoint{},
		&DeleteDocumentEndpoint{},
		&ExtractEndpoint{},
		&StructuredEndpoint{},
		&ExportDocumentXLSXEndpoint{},
		&ExportDocumentPDFEndpoint{},
	}
}
