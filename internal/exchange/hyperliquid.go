package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"arbiscope/internal/config"
	"arbiscope/internal/history"
	"arbiscope/internal/market"
	"arbiscope/internal/metrics"
	"arbiscope/internal/model"
)

// HyperliquidClient maintains the Hyperliquid l2Book WebSocket feed, polls
// the info endpoint for funding/open-interest data, and serves the candle
// history fetcher.
type HyperliquidClient struct {
	logger    *slog.Logger
	cfg       config.FeedConfig
	tokens    []string
	quotes    *market.QuoteStore
	snapshots *market.SnapshotStore
	metrics   *metrics.Metrics
	http      *http.Client

	statusMu sync.RWMutex
	status   model.ConnectionStatus
}

// NewHyperliquidClient creates a new HyperliquidClient for the tracked tokens.
func NewHyperliquidClient(logger *slog.Logger, cfg config.FeedConfig, tokens []string,
	quotes *market.QuoteStore, snapshots *market.SnapshotStore, m *metrics.Metrics) *HyperliquidClient {
	return &HyperliquidClient{
		logger:    logger,
		cfg:       cfg,
		tokens:    tokens,
		quotes:    quotes,
		snapshots: snapshots,
		metrics:   m,
		http:      &http.Client{Timeout: 10 * time.Second},
		status:    model.StatusDisconnected,
	}
}

func (h *HyperliquidClient) Name() model.Venue { return model.VenueHyperliquid }

// Status reports the current connection state.
func (h *HyperliquidClient) Status() model.ConnectionStatus {
	h.statusMu.RLock()
	defer h.statusMu.RUnlock()
	return h.status
}

func (h *HyperliquidClient) setStatus(s model.ConnectionStatus) {
	h.statusMu.Lock()
	h.status = s
	h.statusMu.Unlock()
}

type l2Level struct {
	Px string `json:"px"`
}

type l2BookMessage struct {
	Channel string `json:"channel"`
	Data    struct {
		Coin   string      `json:"coin"`
		Levels [][]l2Level `json:"levels"`
	} `json:"data"`
}

// Run connects to the Hyperliquid WebSocket, subscribes to the l2Book channel
// for every tracked token, and streams best bid/ask into the quote store.
// Retries forever on a fixed delay; only context cancellation stops it.
func (h *HyperliquidClient) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.setStatus(model.StatusDisconnected)
			h.logger.Info("HyperliquidClient: context cancelled, shutting down")
			return nil
		default:
		}

		h.setStatus(model.StatusConnecting)
		h.logger.Info("HyperliquidClient: connecting to WebSocket", "url", h.cfg.WSURL)
		c, _, err := websocket.DefaultDialer.DialContext(ctx, h.cfg.WSURL, nil)
		if err != nil {
			h.setStatus(model.StatusError)
			h.metrics.ReconnectsTotal.WithLabelValues(string(model.VenueHyperliquid)).Inc()
			h.logger.Error("HyperliquidClient: WebSocket connection failed", "error", err)
			if !h.sleep(ctx) {
				return nil
			}
			continue
		}

		h.setStatus(model.StatusConnected)
		h.logger.Info("HyperliquidClient: connected successfully")
		h.subscribeAll(c)

		h.readLoop(ctx, c)
		c.Close()
		h.setStatus(model.StatusDisconnected)
		if ctx.Err() != nil {
			return nil
		}
		h.metrics.ReconnectsTotal.WithLabelValues(string(model.VenueHyperliquid)).Inc()
		if !h.sleep(ctx) {
			return nil
		}
	}
}

// sleep waits out the fixed reconnect delay; false means the context ended.
func (h *HyperliquidClient) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		h.setStatus(model.StatusDisconnected)
		return false
	case <-time.After(h.cfg.ReconnectDelay):
		return true
	}
}

// subscribeAll issues one l2Book subscription per tracked token. A failed
// send is dropped; the next successful connect resubscribes everything.
func (h *HyperliquidClient) subscribeAll(c *websocket.Conn) {
	for _, coin := range h.tokens {
		msg := map[string]any{
			"method": "subscribe",
			"subscription": map[string]any{
				"type": "l2Book",
				"coin": coin,
			},
		}
		if err := c.WriteJSON(msg); err != nil {
			h.logger.Warn("HyperliquidClient: failed to send subscription", "coin", coin, "error", err)
		}
	}
}

func (h *HyperliquidClient) readLoop(ctx context.Context, c *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("HyperliquidClient: context cancelled, closing connection")
			return
		default:
		}

		_, message, err := c.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				h.logger.Error("HyperliquidClient: failed to read message", "error", err)
			}
			return
		}
		h.handleMessage(message)
	}
}

// handleMessage parses one push message. Non-l2Book messages (subscription
// acks and the like) are skipped; parse failures are logged and skipped, the
// connection stays up.
func (h *HyperliquidClient) handleMessage(message []byte) {
	var msg l2BookMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		h.metrics.ParseErrorsTotal.WithLabelValues(string(model.VenueHyperliquid)).Inc()
		h.logger.Warn("HyperliquidClient: failed to parse message", "error", err)
		return
	}
	if msg.Channel != "l2Book" || msg.Data.Coin == "" {
		return
	}
	if len(msg.Data.Levels) < 2 || len(msg.Data.Levels[0]) == 0 || len(msg.Data.Levels[1]) == 0 {
		return
	}

	bid, errB := strconv.ParseFloat(msg.Data.Levels[0][0].Px, 64)
	ask, errA := strconv.ParseFloat(msg.Data.Levels[1][0].Px, 64)
	if errB != nil || errA != nil {
		h.metrics.ParseErrorsTotal.WithLabelValues(string(model.VenueHyperliquid)).Inc()
		h.logger.Warn("HyperliquidClient: failed to parse book levels",
			"coin", msg.Data.Coin, "bidError", errB, "askError", errA)
		return
	}

	h.quotes.Set(msg.Data.Coin, model.VenueHyperliquid, model.Quote{
		Bid:  bid,
		Ask:  ask,
		Last: (bid + ask) / 2,
	})
	h.metrics.TicksTotal.WithLabelValues(string(model.VenueHyperliquid)).Inc()
}

// PollMarketData polls metaAndAssetCtxs on the configured interval and writes
// funding/open-interest snapshots for tracked tokens. Poll failures are
// logged and retried on the next tick.
func (h *HyperliquidClient) PollMarketData(ctx context.Context) {
	ticker := time.NewTicker(h.cfg.PollInterval)
	defer ticker.Stop()

	h.pollOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("HyperliquidClient: market data poller stopped")
			return
		case <-ticker.C:
			h.pollOnce(ctx)
		}
	}
}

type assetContext struct {
	OraclePx     string `json:"oraclePx"`
	OpenInterest string `json:"openInterest"`
	Funding      string `json:"funding"`
}

func (h *HyperliquidClient) pollOnce(ctx context.Context) {
	tracked := make(map[string]bool, len(h.tokens))
	for _, t := range h.tokens {
		tracked[t] = true
	}

	body, err := h.postInfo(ctx, map[string]any{"type": "metaAndAssetCtxs"})
	if err != nil {
		h.logger.Warn("HyperliquidClient: metaAndAssetCtxs poll failed", "error", err)
		return
	}

	// Response is a positionally aligned pair: [ {universe:[{name}...]}, [ctx...] ].
	var pair []json.RawMessage
	if err := json.Unmarshal(body, &pair); err != nil || len(pair) < 2 {
		h.logger.Warn("HyperliquidClient: unexpected metaAndAssetCtxs shape", "error", err)
		return
	}
	var meta struct {
		Universe []struct {
			Name string `json:"name"`
		} `json:"universe"`
	}
	var ctxs []assetContext
	if err := json.Unmarshal(pair[0], &meta); err != nil {
		h.logger.Warn("HyperliquidClient: failed to parse universe", "error", err)
		return
	}
	if err := json.Unmarshal(pair[1], &ctxs); err != nil {
		h.logger.Warn("HyperliquidClient: failed to parse asset contexts", "error", err)
		return
	}

	for i, u := range meta.Universe {
		if i >= len(ctxs) || !tracked[u.Name] {
			continue
		}
		oraclePx, _ := strconv.ParseFloat(ctxs[i].OraclePx, 64)
		oiCoins, _ := strconv.ParseFloat(ctxs[i].OpenInterest, 64)
		funding, _ := strconv.ParseFloat(ctxs[i].Funding, 64)

		h.snapshots.Set(u.Name, model.VenueHyperliquid, model.MarketSnapshot{
			// Hourly funding fraction annualized to percent.
			FundingRate:  funding * 24 * 365 * 100,
			OpenInterest: oiCoins * oraclePx,
			OraclePrice:  oraclePx,
		})
	}
}

type hlCandle struct {
	T int64  `json:"t"`
	C string `json:"c"`
}

// Candles fetches native one-minute candles from the candleSnapshot endpoint.
func (h *HyperliquidClient) Candles(ctx context.Context, token string, startMs, endMs int64) ([]history.Candle, error) {
	body, err := h.postInfo(ctx, map[string]any{
		"type": "candleSnapshot",
		"req": map[string]any{
			"coin":      token,
			"interval":  "1m",
			"startTime": startMs,
			"endTime":   endMs,
		},
	})
	if err != nil {
		return nil, err
	}

	var raw []hlCandle
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse candle snapshot: %w", err)
	}

	candles := make([]history.Candle, 0, len(raw))
	for _, c := range raw {
		px, err := strconv.ParseFloat(c.C, 64)
		if err != nil {
			continue
		}
		candles = append(candles, history.Candle{Time: c.T, Close: px})
	}
	return candles, nil
}

func (h *HyperliquidClient) postInfo(ctx context.Context, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode info request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.cfg.APIURL+"/info", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build info request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("info request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("info request: unexpected status %d", resp.StatusCode)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("read info response: %w", err)
	}
	return buf.Bytes(), nil
}
