package paper

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"arbiscope/internal/config"
	"arbiscope/internal/market"
	"arbiscope/internal/metrics"
	"arbiscope/internal/model"
	"arbiscope/internal/state"
)

var (
	// ErrTokenAlreadyOpen rejects a second open position for the same token.
	// Enforced for manual and auto-pilot entries alike, in this one place.
	ErrTokenAlreadyOpen = errors.New("paper: token already has an open trade")

	// ErrInvalidTrade rejects non-finite or non-positive prices and sizes
	// before they can poison PnL arithmetic with NaN.
	ErrInvalidTrade = errors.New("paper: invalid trade parameters")
)

// Engine owns the simulated positions: the open set, the closed history, and
// the auto-pilot policy. All mutation paths are serialized behind one mutex.
//
// The entry/exit thresholds carry no hysteresis or cooldown; a token whose
// spread oscillates around the thresholds can open and close repeatedly
// across ticks. Known instability, kept as-is.
type Engine struct {
	mu      sync.Mutex
	logger  *slog.Logger
	quotes  *market.QuoteStore
	persist state.Store
	metrics *metrics.Metrics
	cfg     config.TradingConfig

	active    []model.Trade // most recent first
	history   []model.Trade // most recent first
	autoPilot bool
	seq       int64
	now       func() time.Time
}

// NewEngine creates a trading engine and restores the persisted auto-pilot
// flag. A failed restore logs and starts disabled.
func NewEngine(logger *slog.Logger, quotes *market.QuoteStore, persist state.Store, m *metrics.Metrics, cfg config.TradingConfig) *Engine {
	e := &Engine{
		logger:  logger,
		quotes:  quotes,
		persist: persist,
		metrics: m,
		cfg:     cfg,
		now:     time.Now,
	}
	enabled, err := persist.LoadAutoPilot()
	if err != nil {
		logger.Warn("failed to restore auto-pilot flag, starting disabled", "error", err)
	}
	e.autoPilot = enabled
	return e
}

func validNumber(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f > 0
}

// Open creates a new OPEN trade and prepends it to the active set.
func (e *Engine) Open(token string, direction model.Direction, longPrice, shortPrice, size float64) (model.Trade, error) {
	if token == "" || (direction != model.LongHLShortPX && direction != model.LongPXShortHL) {
		return model.Trade{}, ErrInvalidTrade
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	trade, err := e.openLocked(token, direction, longPrice, shortPrice, size)
	if err != nil {
		return model.Trade{}, err
	}
	e.logger.Info("opened paper trade", "id", trade.ID, "token", token,
		"direction", direction, "long", longPrice, "short", shortPrice, "size", size)
	return trade, nil
}

// Close closes the trade with the given id and moves it to the front of the
// history. Exit PnL is recomputed against the freshest quotes for the token,
// falling back to the last repriced value when a venue's quote is missing.
// An unknown id is a no-op; closing twice produces exactly one history entry.
func (e *Engine) Close(id string) (model.Trade, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closeLocked(id)
}

func (e *Engine) closeLocked(id string) (model.Trade, bool) {
	idx := -1
	for i, t := range e.active {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return model.Trade{}, false
	}

	trade := e.active[idx]
	finalPnL := trade.CurrentPnL
	if hl, px, ok := e.quotes.Pair(trade.Token); ok {
		finalPnL = exitPnL(trade, hl, px)
	}

	now := e.now()
	trade.Status = model.TradeClosed
	trade.ExitTime = &now
	trade.ExitPnL = &finalPnL
	trade.CurrentPnL = finalPnL

	e.active = append(e.active[:idx], e.active[idx+1:]...)
	e.history = append([]model.Trade{trade}, e.history...)

	e.metrics.TradesClosed.Inc()
	e.metrics.OpenTrades.Set(float64(len(e.active)))
	e.metrics.RealizedPnL.Set(e.realizedLocked())
	e.logger.Info("closed paper trade", "id", id, "token", trade.Token, "exitPnL", finalPnL)
	return trade, true
}

// exitPnL prices the close of both legs at current quotes: sell the long leg
// at its venue's bid, buy back the short leg at its venue's ask.
func exitPnL(t model.Trade, hl, px model.Quote) float64 {
	var exitLong, exitShort float64
	if t.Direction == model.LongHLShortPX {
		exitLong, exitShort = hl.Bid, px.Ask
	} else {
		exitLong, exitShort = px.Bid, hl.Ask
	}
	return (exitLong-t.EntryLongPrice)*t.Size + (t.EntryShortPrice-exitShort)*t.Size
}

// Reprice recomputes current PnL for every open trade on the token (all open
// trades when token is empty) and ratchets MaxPnL upward when exceeded.
// Trades missing either venue's quote are left untouched.
func (e *Engine) Reprice(token string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := range e.active {
		t := &e.active[i]
		if token != "" && t.Token != token {
			continue
		}
		hl, px, ok := e.quotes.Pair(t.Token)
		if !ok {
			continue
		}
		pnl := exitPnL(*t, hl, px)
		t.CurrentPnL = pnl
		if pnl > t.MaxPnL {
			t.MaxPnL = pnl
			t.MaxPnLTime = e.now()
		}
	}
	e.metrics.UnrealizedPnL.Set(e.unrealizedLocked())
}

// AutoStep runs one cycle of the autonomous policy against the latest
// computed opportunities. It is a no-op while auto-pilot is disabled.
//
// Exit rule: close any open trade whose venue mid prices have converged to
// within the exit threshold. Entry rule: open a trade for any opportunity
// whose absolute spread exceeds the entry threshold and whose token has no
// open trade, sized to the configured USD notional.
func (e *Engine) AutoStep(opportunities []model.Opportunity) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.autoPilot {
		return
	}

	for _, t := range append([]model.Trade(nil), e.active...) {
		hl, px, ok := e.quotes.Pair(t.Token)
		if !ok || hl.Mid() == 0 {
			continue
		}
		convergence := math.Abs((px.Mid()-hl.Mid())/hl.Mid()) * 100
		if convergence < e.cfg.ExitThresholdPct {
			e.logger.Info("auto-pilot exit: spread converged", "token", t.Token,
				"convergencePct", convergence)
			e.closeLocked(t.ID)
		}
	}

	for _, opp := range opportunities {
		if e.hasOpenLocked(opp.Token) {
			continue
		}
		if math.Abs(opp.SpreadPct) <= e.cfg.EntryThresholdPct {
			continue
		}

		direction := model.LongHLShortPX
		if opp.SpreadPct < 0 {
			direction = model.LongPXShortHL
		}
		hl, px, ok := e.quotes.Pair(opp.Token)
		if !ok {
			continue
		}
		var longPrice, shortPrice float64
		if direction == model.LongHLShortPX {
			longPrice, shortPrice = hl.Ask, px.Bid
		} else {
			longPrice, shortPrice = px.Ask, hl.Bid
		}
		if !validNumber(longPrice) || !validNumber(shortPrice) {
			continue
		}
		if _, err := e.openLocked(opp.Token, direction, longPrice, shortPrice, e.cfg.NotionalUSD/longPrice); err != nil {
			e.logger.Warn("auto-pilot entry rejected", "token", opp.Token, "error", err)
		} else {
			e.logger.Info("auto-pilot entry: spread above threshold", "token", opp.Token,
				"spreadPct", opp.SpreadPct, "direction", direction)
		}
	}
}

func (e *Engine) hasOpenLocked(token string) bool {
	for _, t := range e.active {
		if t.Token == token {
			return true
		}
	}
	return false
}

// openLocked mirrors Open for callers already holding the mutex.
func (e *Engine) openLocked(token string, direction model.Direction, longPrice, shortPrice, size float64) (model.Trade, error) {
	if !validNumber(longPrice) || !validNumber(shortPrice) || !validNumber(size) {
		return model.Trade{}, ErrInvalidTrade
	}
	if e.hasOpenLocked(token) {
		return model.Trade{}, ErrTokenAlreadyOpen
	}

	now := e.now()
	e.seq++
	trade := model.Trade{
		ID:              fmt.Sprintf("%d-%d", now.UnixMilli(), e.seq),
		Token:           token,
		EntryTime:       now,
		Direction:       direction,
		EntryLongPrice:  longPrice,
		EntryShortPrice: shortPrice,
		EntrySpread:     math.Abs(shortPrice - longPrice),
		Size:            size,
		Status:          model.TradeOpen,
		MaxPnLTime:      now,
	}
	e.active = append([]model.Trade{trade}, e.active...)
	e.metrics.TradesOpened.Inc()
	e.metrics.OpenTrades.Set(float64(len(e.active)))
	return trade, nil
}

// SetAutoPilot flips the policy flag and persists it. The flag takes effect
// immediately; in-flight decisions from the same tick may still complete.
func (e *Engine) SetAutoPilot(enabled bool) error {
	e.mu.Lock()
	e.autoPilot = enabled
	e.mu.Unlock()

	if err := e.persist.SaveAutoPilot(enabled); err != nil {
		e.logger.Error("failed to persist auto-pilot flag", "error", err)
		return err
	}
	e.logger.Info("auto-pilot flag changed", "enabled", enabled)
	return nil
}

// AutoPilot reports whether the autonomous policy is enabled.
func (e *Engine) AutoPilot() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.autoPilot
}

// ActiveTrades returns a copy of the open set, most recent first.
func (e *Engine) ActiveTrades() []model.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.Trade(nil), e.active...)
}

// History returns a copy of the closed set, most recent first.
func (e *Engine) History() []model.Trade {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]model.Trade(nil), e.history...)
}

// RealizedPnL is the sum of exit PnL over the trade history.
func (e *Engine) RealizedPnL() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.realizedLocked()
}

func (e *Engine) realizedLocked() float64 {
	var total float64
	for _, t := range e.history {
		if t.ExitPnL != nil {
			total += *t.ExitPnL
		}
	}
	return total
}

// UnrealizedPnL is the sum of current PnL over open trades.
func (e *Engine) UnrealizedPnL() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unrealizedLocked()
}

func (e *Engine) unrealizedLocked() float64 {
	var total float64
	for _, t := range e.active {
		total += t.CurrentPnL
	}
	return total
}
