package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
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

// tradeChunks is how many sequential windows the one-hour trade history fetch
// is split into (15 minutes each).
const tradeChunks = 4

// tradeLimit caps the records requested per chunk.
const tradeLimit = 1000

// ParadexClient maintains the Paradex markets_summary WebSocket feed, which
// carries price, funding and open-interest data in one channel, and serves
// the raw-trades history fetcher (Paradex has no native candle endpoint).
type ParadexClient struct {
	logger    *slog.Logger
	cfg       config.FeedConfig
	markets   map[string]string // token -> market ticker
	tokens    map[string]string // market ticker -> token
	quotes    *market.QuoteStore
	snapshots *market.SnapshotStore
	metrics   *metrics.Metrics
	http      *http.Client

	statusMu sync.RWMutex
	status   model.ConnectionStatus
}

// NewParadexClient creates a new ParadexClient for the given token->market map.
func NewParadexClient(logger *slog.Logger, cfg config.FeedConfig, markets map[string]string,
	quotes *market.QuoteStore, snapshots *market.SnapshotStore, m *metrics.Metrics) *ParadexClient {
	reverse := make(map[string]string, len(markets))
	for token, mkt := range markets {
		reverse[mkt] = token
	}
	return &ParadexClient{
		logger:    logger,
		cfg:       cfg,
		markets:   markets,
		tokens:    reverse,
		quotes:    quotes,
		snapshots: snapshots,
		metrics:   m,
		http:      &http.Client{Timeout: 10 * time.Second},
		status:    model.StatusDisconnected,
	}
}

func (p *ParadexClient) Name() model.Venue { return model.VenueParadex }

// Status reports the current connection state.
func (p *ParadexClient) Status() model.ConnectionStatus {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()
	return p.status
}

func (p *ParadexClient) setStatus(s model.ConnectionStatus) {
	p.statusMu.Lock()
	p.status = s
	p.statusMu.Unlock()
}

// Run connects to the Paradex WebSocket, subscribes to the global
// markets_summary channel, and streams quotes and funding snapshots into the
// stores. Retries forever on a fixed delay.
func (p *ParadexClient) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.setStatus(model.StatusDisconnected)
			p.logger.Info("ParadexClient: context cancelled, shutting down")
			return nil
		default:
		}

		p.setStatus(model.StatusConnecting)
		p.logger.Info("ParadexClient: connecting to WebSocket", "url", p.cfg.WSURL)
		c, _, err := websocket.DefaultDialer.DialContext(ctx, p.cfg.WSURL, nil)
		if err != nil {
			p.setStatus(model.StatusError)
			p.metrics.ReconnectsTotal.WithLabelValues(string(model.VenueParadex)).Inc()
			p.logger.Error("ParadexClient: WebSocket connection failed", "error", err)
			if !p.sleep(ctx) {
				return nil
			}
			continue
		}

		p.setStatus(model.StatusConnected)
		subscribe := map[string]any{
			"jsonrpc": "2.0",
			"method":  "subscribe",
			"params":  map[string]any{"channel": "markets_summary"},
			"id":      1,
		}
		if err := c.WriteJSON(subscribe); err != nil {
			p.logger.Warn("ParadexClient: failed to send subscription", "error", err)
		} else {
			p.logger.Info("ParadexClient: subscription sent successfully")
		}

		p.readLoop(ctx, c)
		c.Close()
		p.setStatus(model.StatusDisconnected)
		if ctx.Err() != nil {
			return nil
		}
		p.metrics.ReconnectsTotal.WithLabelValues(string(model.VenueParadex)).Inc()
		if !p.sleep(ctx) {
			return nil
		}
	}
}

func (p *ParadexClient) sleep(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		p.setStatus(model.StatusDisconnected)
		return false
	case <-time.After(p.cfg.ReconnectDelay):
		return true
	}
}

func (p *ParadexClient) readLoop(ctx context.Context, c *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("ParadexClient: context cancelled, closing connection")
			return
		default:
		}

		_, message, err := c.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Error("ParadexClient: failed to read message", "error", err)
			}
			return
		}
		p.handleMessage(message)
	}
}

type summaryMessage struct {
	Params struct {
		Channel string          `json:"channel"`
		Data    json.RawMessage `json:"data"`
	} `json:"params"`
}

// summaryItem carries every key name observed for each field across Paradex
// message variants; pickPrice resolves them in preference order.
type summaryItem struct {
	Symbol          string `json:"symbol"`
	Bid             string `json:"bid"`
	BestBid         string `json:"best_bid"`
	Ask             string `json:"ask"`
	BestAsk         string `json:"best_ask"`
	LastTradedPrice string `json:"last_traded_price"`
	LastPrice       string `json:"last_price"`
	FundingRate     string `json:"funding_rate"`
	OpenInterest    string `json:"open_interest"`
}

// pickPrice returns the first candidate that parses to a number, else zero.
// Ordered fallback: different message variants populate different keys.
func pickPrice(candidates ...string) float64 {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if f, err := strconv.ParseFloat(c, 64); err == nil {
			return f
		}
	}
	return 0
}

func (p *ParadexClient) handleMessage(message []byte) {
	var msg summaryMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		p.metrics.ParseErrorsTotal.WithLabelValues(string(model.VenueParadex)).Inc()
		p.logger.Warn("ParadexClient: failed to parse message", "error", err)
		return
	}
	if msg.Params.Channel != "markets_summary" || len(msg.Params.Data) == 0 {
		return
	}

	// Data arrives as a single item or a batch.
	var items []summaryItem
	if err := json.Unmarshal(msg.Params.Data, &items); err != nil {
		var single summaryItem
		if err := json.Unmarshal(msg.Params.Data, &single); err != nil {
			p.metrics.ParseErrorsTotal.WithLabelValues(string(model.VenueParadex)).Inc()
			p.logger.Warn("ParadexClient: unexpected markets_summary payload", "error", err)
			return
		}
		items = []summaryItem{single}
	}

	for _, item := range items {
		token, tracked := p.tokens[item.Symbol]
		if !tracked {
			continue
		}

		last := pickPrice(item.LastTradedPrice, item.LastPrice)
		bid := pickPrice(item.Bid, item.BestBid, item.LastTradedPrice)
		ask := pickPrice(item.Ask, item.BestAsk, item.LastTradedPrice)

		if last > 0 {
			p.quotes.Set(token, model.VenueParadex, model.Quote{Bid: bid, Ask: ask, Last: last})
			p.metrics.TicksTotal.WithLabelValues(string(model.VenueParadex)).Inc()
		}

		funding := pickPrice(item.FundingRate)
		oi := pickPrice(item.OpenInterest)
		if funding != 0 || oi != 0 {
			p.snapshots.Set(token, model.VenueParadex, model.MarketSnapshot{
				FundingRate:  funding * 24 * 365 * 100,
				OpenInterest: oi * last,
				OraclePrice:  last,
			})
		}
	}
}

type tradesResponse struct {
	Results []struct {
		CreatedAt int64  `json:"created_at"`
		Price     string `json:"price"`
	} `json:"results"`
}

// Trades fetches raw trade prints covering [startMs, endMs) in four
// sequential start-bounded chunks. Individual chunk failures contribute no
// prints; an error is returned only when every chunk failed.
func (p *ParadexClient) Trades(ctx context.Context, token string, startMs, endMs int64) ([]history.TradePrint, error) {
	mkt, ok := p.markets[token]
	if !ok {
		mkt = token + "-USD-PERP"
	}

	chunk := (endMs - startMs) / tradeChunks
	var (
		prints  []history.TradePrint
		lastErr error
		failed  int
	)
	for i := 0; i < tradeChunks; i++ {
		chunkStart := startMs + int64(i)*chunk
		res, err := p.fetchTradeChunk(ctx, mkt, chunkStart)
		if err != nil {
			failed++
			lastErr = err
			p.logger.Warn("ParadexClient: trade chunk fetch failed", "market", mkt, "start", chunkStart, "error", err)
			continue
		}
		for _, t := range res.Results {
			px, err := strconv.ParseFloat(t.Price, 64)
			if err != nil {
				continue
			}
			prints = append(prints, history.TradePrint{CreatedAt: t.CreatedAt, Price: px})
		}
	}

	if failed == tradeChunks {
		return nil, fmt.Errorf("all trade chunks failed for %s: %w", mkt, lastErr)
	}
	return prints, nil
}

func (p *ParadexClient) fetchTradeChunk(ctx context.Context, mkt string, startAt int64) (*tradesResponse, error) {
	q := url.Values{}
	q.Set("market", mkt)
	q.Set("limit", strconv.Itoa(tradeLimit))
	q.Set("start_at", strconv.FormatInt(startAt, 10))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.APIURL+"/v1/trades?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build trades request: %w", err)
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("trades request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trades request: unexpected status %d", resp.StatusCode)
	}

	var out tradesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("parse trades response: %w", err)
	}
	return &out, nil
}
