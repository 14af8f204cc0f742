package history

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Window is the fixed lookback for the aligned series.
const Window = time.Hour

// CandleSource fetches native one-minute candles for a token.
type CandleSource interface {
	Candles(ctx context.Context, token string, startMs, endMs int64) ([]Candle, error)
}

// TradeSource fetches raw trade prints for a token; the service builds
// synthetic candles from them.
type TradeSource interface {
	Trades(ctx context.Context, token string, startMs, endMs int64) ([]TradePrint, error)
}

// Service produces the merged two-venue price series for charting and the
// /api/history endpoint.
type Service struct {
	logger      *slog.Logger
	hyperliquid CandleSource
	paradex     TradeSource
	now         func() time.Time
}

// NewService creates a history Service over the two venue sources.
func NewService(logger *slog.Logger, hl CandleSource, px TradeSource) *Service {
	return &Service{logger: logger, hyperliquid: hl, paradex: px, now: time.Now}
}

// ErrAllSourcesFailed reports that neither venue produced data because both
// fetches failed. A venue that succeeds with zero rows is not a failure.
var ErrAllSourcesFailed = errors.New("history: all venue fetches failed")

// Fetch returns the aligned series for the last Window, at most MaxPoints
// entries. Either venue may fail independently; its points are simply absent.
// Only when both fetches error does Fetch return ErrAllSourcesFailed.
func (s *Service) Fetch(ctx context.Context, token string) ([]Point, error) {
	end := s.now().UnixMilli()
	start := end - Window.Milliseconds()

	var (
		wg      sync.WaitGroup
		candles []Candle
		prints  []TradePrint
		hlErr   error
		pxErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		candles, hlErr = s.hyperliquid.Candles(ctx, token, start, end)
	}()
	go func() {
		defer wg.Done()
		prints, pxErr = s.paradex.Trades(ctx, token, start, end)
	}()
	wg.Wait()

	if hlErr != nil && pxErr != nil {
		s.logger.Error("history fetch failed for both venues", "token", token,
			"hyperliquidError", hlErr, "paradexError", pxErr)
		return nil, ErrAllSourcesFailed
	}
	if hlErr != nil {
		s.logger.Warn("hyperliquid history fetch failed", "token", token, "error", hlErr)
	}
	if pxErr != nil {
		s.logger.Warn("paradex history fetch failed", "token", token, "error", pxErr)
	}

	// The start-bounded trades query returns ascending data.
	return Align(candles, BucketCloses(prints, true)), nil
}
