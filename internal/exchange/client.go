package exchange

import (
	"context"

	"arbiscope/internal/model"
)

// FeedClient is the standard interface for a venue's live feed adapter.
// Run blocks until the context is cancelled, reconnecting forever on failure.
type FeedClient interface {
	Name() model.Venue
	Run(ctx context.Context) error
	Status() model.ConnectionStatus
}
