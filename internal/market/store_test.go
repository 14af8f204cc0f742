package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbiscope/internal/model"
)

func TestQuoteStore_SetAndGet(t *testing.T) {
	s := NewQuoteStore()

	_, ok := s.Get("BTC", model.VenueHyperliquid)
	assert.False(t, ok, "absence means no data yet")

	q := model.Quote{Bid: 50000, Ask: 50001, Last: 50000.5}
	s.Set("BTC", model.VenueHyperliquid, q)

	got, ok := s.Get("BTC", model.VenueHyperliquid)
	require.True(t, ok)
	assert.Equal(t, q, got)

	// Overwritten wholesale on every update.
	q2 := model.Quote{Bid: 50010, Ask: 50011, Last: 50010.5}
	s.Set("BTC", model.VenueHyperliquid, q2)
	got, _ = s.Get("BTC", model.VenueHyperliquid)
	assert.Equal(t, q2, got)
}

func TestQuoteStore_CellsAreIndependent(t *testing.T) {
	s := NewQuoteStore()
	hl := model.Quote{Bid: 1, Ask: 2}
	px := model.Quote{Bid: 3, Ask: 4}

	s.Set("BTC", model.VenueHyperliquid, hl)
	s.Set("BTC", model.VenueParadex, px)
	s.Set("ETH", model.VenueHyperliquid, model.Quote{Bid: 5, Ask: 6})

	got, ok := s.Get("BTC", model.VenueHyperliquid)
	require.True(t, ok)
	assert.Equal(t, hl, got)
	got, ok = s.Get("BTC", model.VenueParadex)
	require.True(t, ok)
	assert.Equal(t, px, got)
}

func TestQuoteStore_PairRequiresBothVenues(t *testing.T) {
	s := NewQuoteStore()
	s.Set("BTC", model.VenueHyperliquid, model.Quote{Bid: 1, Ask: 2})

	_, _, ok := s.Pair("BTC")
	assert.False(t, ok)

	s.Set("BTC", model.VenueParadex, model.Quote{Bid: 3, Ask: 4})
	hl, px, ok := s.Pair("BTC")
	require.True(t, ok)
	assert.Equal(t, 1.0, hl.Bid)
	assert.Equal(t, 3.0, px.Bid)
}

func TestQuoteStore_SnapshotIsDeepCopy(t *testing.T) {
	s := NewQuoteStore()
	s.Set("BTC", model.VenueHyperliquid, model.Quote{Bid: 1, Ask: 2})

	snap := s.Snapshot()
	snap["BTC"][model.VenueHyperliquid] = model.Quote{Bid: 99, Ask: 100}

	got, _ := s.Get("BTC", model.VenueHyperliquid)
	assert.Equal(t, 1.0, got.Bid, "mutating a snapshot must not affect the store")
}

func TestQuoteStore_NotifiesListeners(t *testing.T) {
	s := NewQuoteStore()

	var seen []string
	s.Subscribe(func(token string) { seen = append(seen, token) })
	s.Subscribe(func(token string) { seen = append(seen, "second:"+token) })

	s.Set("BTC", model.VenueHyperliquid, model.Quote{Bid: 1, Ask: 2})
	s.Set("ETH", model.VenueParadex, model.Quote{Bid: 3, Ask: 4})

	assert.Equal(t, []string{"BTC", "second:BTC", "ETH", "second:ETH"}, seen)
}

func TestSnapshotStore_SetAndGet(t *testing.T) {
	s := NewSnapshotStore()

	_, ok := s.Get("BTC", model.VenueHyperliquid)
	assert.False(t, ok)

	snap := model.MarketSnapshot{FundingRate: 8.76, OpenInterest: 1_000_000, OraclePrice: 50000}
	s.Set("BTC", model.VenueHyperliquid, snap)

	got, ok := s.Get("BTC", model.VenueHyperliquid)
	require.True(t, ok)
	assert.Equal(t, snap, got)

	all := s.Snapshot()
	require.Contains(t, all, "BTC")
	assert.Equal(t, snap, all["BTC"][model.VenueHyperliquid])
}
