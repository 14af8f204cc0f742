package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbiscope/internal/config"
	"arbiscope/internal/exchange"
	"arbiscope/internal/history"
	"arbiscope/internal/market"
	"arbiscope/internal/metrics"
	"arbiscope/internal/model"
	"arbiscope/internal/paper"
)

type stubState struct{ enabled bool }

func (s *stubState) LoadAutoPilot() (bool, error) { return s.enabled, nil }
func (s *stubState) SaveAutoPilot(v bool) error   { s.enabled = v; return nil }

type stubCandleSource struct {
	candles []history.Candle
	err     error
}

func (s stubCandleSource) Candles(ctx context.Context, token string, startMs, endMs int64) ([]history.Candle, error) {
	return s.candles, s.err
}

type stubTradeSource struct {
	trades []history.TradePrint
	err    error
}

func (s stubTradeSource) Trades(ctx context.Context, token string, startMs, endMs int64) ([]history.TradePrint, error) {
	return s.trades, s.err
}

type stubFeed struct {
	name   model.Venue
	status model.ConnectionStatus
}

func (f stubFeed) Name() model.Venue              { return f.name }
func (f stubFeed) Run(ctx context.Context) error  { return nil }
func (f stubFeed) Status() model.ConnectionStatus { return f.status }

type fixture struct {
	server *Server
	quotes *market.QuoteStore
	engine *paper.Engine
}

func newFixture(t *testing.T, hl stubCandleSource, px stubTradeSource) *fixture {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	quotes := market.NewQuoteStore()
	snapshots := market.NewSnapshotStore()
	m := metrics.New()

	engine := paper.NewEngine(logger, quotes, &stubState{}, m, config.TradingConfig{
		EntryThresholdPct: 0.08,
		ExitThresholdPct:  0.01,
		NotionalUSD:       100,
	})

	srv := New(config.HTTPConfig{Host: "127.0.0.1", Port: 0}, Deps{
		Logger:    logger,
		Quotes:    quotes,
		Snapshots: snapshots,
		Engine:    engine,
		History:   history.NewService(logger, hl, px),
		Opportunities: func() []model.Opportunity {
			return []model.Opportunity{{Token: "BTC", Direction: model.LongHLShortPX, ProfitPerUnit: 9}}
		},
		Feeds: []exchange.FeedClient{
			stubFeed{name: model.VenueHyperliquid, status: model.StatusConnected},
			stubFeed{name: model.VenueParadex, status: model.StatusConnecting},
		},
		Metrics: m,
	})
	return &fixture{server: srv, quotes: quotes, engine: engine}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHistoryEndpoint(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		f := newFixture(t, stubCandleSource{}, stubTradeSource{})
		rec := f.do(t, http.MethodGet, "/api/history", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("total failure", func(t *testing.T) {
		f := newFixture(t,
			stubCandleSource{err: errors.New("down")},
			stubTradeSource{err: errors.New("down")})
		rec := f.do(t, http.MethodGet, "/api/history?token=BTC", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("partial failure still serves points", func(t *testing.T) {
		f := newFixture(t,
			stubCandleSource{candles: []history.Candle{{Time: 1_700_000_040_000, Close: 50000}}},
			stubTradeSource{err: errors.New("down")})
		rec := f.do(t, http.MethodGet, "/api/history?token=BTC", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var points []history.Point
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
		require.Len(t, points, 1)
		require.NotNil(t, points[0].Hyperliquid)
		assert.Nil(t, points[0].Paradex)
	})

	t.Run("empty is an array, not null", func(t *testing.T) {
		f := newFixture(t, stubCandleSource{}, stubTradeSource{})
		rec := f.do(t, http.MethodGet, "/api/history?token=BTC", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})
}

func TestPricesEndpoint(t *testing.T) {
	f := newFixture(t, stubCandleSource{}, stubTradeSource{})
	f.quotes.Set("BTC", model.VenueHyperliquid, model.Quote{Bid: 50000, Ask: 50001, Last: 50000.5})

	rec := f.do(t, http.MethodGet, "/api/prices", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Prices map[string]map[string]model.Quote `json:"prices"`
		Status map[string]model.ConnectionStatus `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 50000.0, resp.Prices["BTC"]["Hyperliquid"].Bid, 1e-9)
	assert.Equal(t, model.StatusConnected, resp.Status["Hyperliquid"])
	assert.Equal(t, model.StatusConnecting, resp.Status["Paradex"])
}

func TestOpportunitiesEndpoint(t *testing.T) {
	f := newFixture(t, stubCandleSource{}, stubTradeSource{})
	rec := f.do(t, http.MethodGet, "/api/opportunities", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var opps []model.Opportunity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &opps))
	require.Len(t, opps, 1)
	assert.Equal(t, "BTC", opps[0].Token)
}

func TestTradeLifecycleOverHTTP(t *testing.T) {
	f := newFixture(t, stubCandleSource{}, stubTradeSource{})
	f.quotes.Set("BTC", model.VenueHyperliquid, model.Quote{Bid: 50000, Ask: 50001})
	f.quotes.Set("BTC", model.VenueParadex, model.Quote{Bid: 50010, Ask: 50011})

	rec := f.do(t, http.MethodPost, "/api/trades", openTradeRequest{
		Token: "BTC", Direction: model.LongHLShortPX,
		LongPrice: 50001, ShortPrice: 50010, Size: 0.1,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var trade model.Trade
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trade))
	assert.Equal(t, model.TradeOpen, trade.Status)

	// Duplicate token conflicts.
	rec = f.do(t, http.MethodPost, "/api/trades", openTradeRequest{
		Token: "BTC", Direction: model.LongHLShortPX,
		LongPrice: 50001, ShortPrice: 50010, Size: 0.1,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/trades/"+trade.ID+"/close", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var closed model.Trade
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &closed))
	assert.Equal(t, model.TradeClosed, closed.Status)

	// Closing again 404s.
	rec = f.do(t, http.MethodPost, "/api/trades/"+trade.ID+"/close", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/trades", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var summary struct {
		Active  []model.Trade `json:"active"`
		History []model.Trade `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Empty(t, summary.Active)
	assert.Len(t, summary.History, 1)
}

func TestOpenTradeValidation(t *testing.T) {
	f := newFixture(t, stubCandleSource{}, stubTradeSource{})

	rec := f.do(t, http.MethodPost, "/api/trades", openTradeRequest{
		Token: "BTC", Direction: model.LongHLShortPX,
		LongPrice: -1, ShortPrice: 50010, Size: 0.1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAutoPilotEndpoint(t *testing.T) {
	f := newFixture(t, stubCandleSource{}, stubTradeSource{})

	rec := f.do(t, http.MethodGet, "/api/autopilot", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"enabled": false}`, rec.Body.String())

	rec = f.do(t, http.MethodPut, "/api/autopilot", map[string]bool{"enabled": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.engine.AutoPilot())

	rec = f.do(t, http.MethodGet, "/api/autopilot", nil)
	assert.JSONEq(t, `{"enabled": true}`, rec.Body.String())
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t, stubCandleSource{}, stubTradeSource{})

	rec := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "arbiscope_open_trades")
}
