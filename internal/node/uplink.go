package node

import (
	"context"

	"plantlab/internal/models"
)

// Uplink carries readings from the node to the service.
type Uplink interface {
	// Connected reports whether the last connect or send succeeded.
	Connected() bool
	// Connect establishes connectivity. It must return once ctx is done.
	Connect(ctx context.Context) error
	// Send transmits one reading.
	Send(ctx context.Context, req models.IngestRequest) error
	Close()
}
