package endpoints

import (
	"github.com/galleykit/galley/internal/api"
	"github.com/galleykit/galley/internal/defra"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	DefraManager *defra.DockerManager
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&ReadyEndpoint{},
		&StatusEndpoint{DefraManager: cfg.DefraManager},

		// Scan workflow endpoints
		&StartScanEndpoint{},
		&ListScansEndpoint{},
		&GetScanEndpoint{},
		&CloseScanEndpoint{},
		&CaptureCoverEndpoint{},
		&SkipCoverEndpoint{},
		&CapturePageEndpoint{},
		&ReviewEndpoint{},
		&ScanMoreEndpoint{},
		&EditRecipeEndpoint{},

		// Session endpoints
		&ListSessionsEndpoint{},
		&GetSessionEndpoint{},

		// Recipe endpoints
		&ListRecipesEndpoint{},
		&GetRecipeEndpoint{},
	}
}
