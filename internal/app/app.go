package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"arbiscope/internal/arbitrage"
	"arbiscope/internal/config"
	"arbiscope/internal/market"
	"arbiscope/internal/model"
	"arbiscope/internal/paper"
)

// Coordinator drives the single logical timeline: quote-change events trigger
// repricing of open trades, and a throttle ticker (or every event, in
// real-time mode) triggers opportunity recomputation plus one auto-pilot
// cycle. All decisions run on one goroutine; the stores' own locking covers
// reads from the HTTP surface.
type Coordinator struct {
	logger *slog.Logger
	cfg    config.Config
	quotes *market.QuoteStore
	engine *paper.Engine

	// events is lossy: a dropped event only delays recomputation until the
	// next event or ticker fire, which recomputes from current store state.
	events chan string

	oppMu sync.RWMutex
	opps  []model.Opportunity
}

// NewCoordinator wires the coordinator into the quote store's change feed.
func NewCoordinator(logger *slog.Logger, cfg config.Config, quotes *market.QuoteStore, engine *paper.Engine) *Coordinator {
	c := &Coordinator{
		logger: logger,
		cfg:    cfg,
		quotes: quotes,
		engine: engine,
		events: make(chan string, 256),
	}
	quotes.Subscribe(c.onQuote)
	return c
}

func (c *Coordinator) onQuote(token string) {
	select {
	case c.events <- token:
	default:
	}
}

// Opportunities returns the most recently computed opportunity list.
func (c *Coordinator) Opportunities() []model.Opportunity {
	c.oppMu.RLock()
	defer c.oppMu.RUnlock()
	return append([]model.Opportunity(nil), c.opps...)
}

// Run blocks until the context is cancelled. A non-positive refresh interval
// selects real-time mode: recompute on every quote event instead of a timer.
func (c *Coordinator) Run(ctx context.Context) {
	realtime := c.cfg.Trading.RefreshInterval <= 0
	var tick <-chan time.Time
	if !realtime {
		ticker := time.NewTicker(c.cfg.Trading.RefreshInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	c.logger.Info("coordinator started", "realtime", realtime,
		"refreshInterval", c.cfg.Trading.RefreshInterval)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("coordinator stopped")
			return
		case token := <-c.events:
			c.engine.Reprice(token)
			if realtime {
				c.step()
			}
		case <-tick:
			c.step()
		}
	}
}

// step recomputes opportunities from a consistent store snapshot and runs one
// auto-pilot cycle against them.
func (c *Coordinator) step() {
	opps := arbitrage.Compute(c.quotes.Snapshot(), c.cfg.Tokens)

	c.oppMu.Lock()
	c.opps = opps
	c.oppMu.Unlock()

	c.engine.AutoStep(opps)
}
