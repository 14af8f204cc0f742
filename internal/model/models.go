package model

import "time"

// Venue identifies one of the two tracked trading platforms.
type Venue string

const (
	VenueHyperliquid Venue = "Hyperliquid"
	VenueParadex     Venue = "Paradex"
)

// ConnectionStatus describes the state of one venue's push connection.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusError        ConnectionStatus = "error"
)

// Quote is the latest best bid/ask/last price for one (token, venue) pair.
// Bid <= Last <= Ask is expected but not enforced; feeds may be momentarily
// inconsistent.
type Quote struct {
	Bid  float64 `json:"bid"`
	Ask  float64 `json:"ask"`
	Last float64 `json:"last"`
}

// Mid returns the bid/ask midpoint.
func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

// MarketSnapshot is the latest funding and open-interest data for one
// (token, venue) pair. FundingRate is annualized percent, OpenInterest is USD.
type MarketSnapshot struct {
	FundingRate  float64 `json:"fundingRate"`
	OpenInterest float64 `json:"openInterest"`
	OraclePrice  float64 `json:"oraclePrice"`
}

// Direction names the two legs of a cross-venue position: which venue is held
// long and which is held short.
type Direction string

const (
	LongHLShortPX Direction = "LongHL_ShortPx"
	LongPXShortHL Direction = "LongPx_ShortHL"
)

// VenueLeg is one side of an opportunity: the venue's name, its current book,
// and the price a trade entering this leg would fill at.
type VenueLeg struct {
	Name       Venue   `json:"name"`
	Bid        float64 `json:"bid"`
	Ask        float64 `json:"ask"`
	EntryPrice float64 `json:"entryPrice"`
}

// Opportunity is a derived snapshot of the better of the two directional
// arbitrage trades for one token. Recomputed from quotes, never mutated.
type Opportunity struct {
	Token         string    `json:"token"`
	Direction     Direction `json:"direction"`
	ProfitPerUnit float64   `json:"profitPerUnit"`
	// IsDirect is true when the short venue's bid strictly exceeds the long
	// venue's ask: a crossed book, riskless at current quotes.
	IsDirect   bool     `json:"isDirect"`
	LongVenue  VenueLeg `json:"longVenue"`
	ShortVenue VenueLeg `json:"shortVenue"`
	// SpreadPct is |shortBid-longAsk|/longAsk*100, signed positive for
	// LongHL_ShortPx and negative for LongPx_ShortHL.
	SpreadPct float64 `json:"spreadPct"`
}

// TradeStatus is the lifecycle state of a simulated position.
type TradeStatus string

const (
	TradeOpen   TradeStatus = "OPEN"
	TradeClosed TradeStatus = "CLOSED"
)

// Trade is a simulated position. Status transitions OPEN -> CLOSED exactly
// once; a closed trade is immutable. MaxPnL only ever ratchets upward while
// the trade is open.
type Trade struct {
	ID              string      `json:"id"`
	Token           string      `json:"token"`
	EntryTime       time.Time   `json:"entryTime"`
	Direction       Direction   `json:"direction"`
	EntryLongPrice  float64     `json:"entryLongPrice"`
	EntryShortPrice float64     `json:"entryShortPrice"`
	EntrySpread     float64     `json:"entrySpread"`
	Size            float64     `json:"size"`
	Status          TradeStatus `json:"status"`
	CurrentPnL      float64     `json:"currentPnL"`
	MaxPnL          float64     `json:"maxPnL"`
	MaxPnLTime      time.Time   `json:"maxPnLTime"`
	ExitTime        *time.Time  `json:"exitTime,omitempty"`
	ExitPnL         *float64    `json:"exitPnL,omitempty"`
}
