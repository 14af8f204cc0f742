package exchange

import (
	"fmt"
	"log/slog"

	"arbiscope/internal/config"
	"arbiscope/internal/market"
	"arbiscope/internal/metrics"
	"arbiscope/internal/model"
)

// Deps bundles what every feed adapter needs.
type Deps struct {
	Logger    *slog.Logger
	Config    config.Config
	Quotes    *market.QuoteStore
	Snapshots *market.SnapshotStore
	Metrics   *metrics.Metrics
}

// NewClient creates a feed adapter for the given venue.
func NewClient(venue model.Venue, d Deps) (FeedClient, error) {
	switch venue {
	case model.VenueHyperliquid:
		return NewHyperliquidClient(d.Logger, d.Config.Feeds.Hyperliquid, d.Config.Tokens,
			d.Quotes, d.Snapshots, d.Metrics), nil
	case model.VenueParadex:
		return NewParadexClient(d.Logger, d.Config.Feeds.Paradex, d.Config.ParadexMarkets,
			d.Quotes, d.Snapshots, d.Metrics), nil
	default:
		return nil, fmt.Errorf("unknown venue: %s", venue)
	}
}
