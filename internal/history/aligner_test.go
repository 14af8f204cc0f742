package history

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseMs = int64(1_700_000_040_000) // minute-aligned

func minute(n int) int64 { return baseMs + int64(n)*minuteMs }

func TestBucketCloses_AscendingKeepsLastTrade(t *testing.T) {
	trades := []TradePrint{
		// Out of order on purpose; ascending mode sorts first.
		{CreatedAt: minute(0) + 45_000, Price: 103},
		{CreatedAt: minute(0) + 10_000, Price: 101},
		{CreatedAt: minute(0) + 30_000, Price: 102},
		{CreatedAt: minute(1) + 5_000, Price: 110},
	}

	candles := BucketCloses(trades, true)
	require.Len(t, candles, 2)
	assert.Equal(t, minute(0), candles[0].Time)
	assert.InDelta(t, 103.0, candles[0].Close, 1e-9, "chronologically last trade is the close")
	assert.Equal(t, minute(1), candles[1].Time)
	assert.InDelta(t, 110.0, candles[1].Close, 1e-9)
}

func TestBucketCloses_DescendingKeepsFirstSeen(t *testing.T) {
	// Newest-first input, as from a recent-trades query without a start bound:
	// the first record seen per bucket is the most recent, hence the close.
	trades := []TradePrint{
		{CreatedAt: minute(1) + 50_000, Price: 115},
		{CreatedAt: minute(1) + 20_000, Price: 112},
		{CreatedAt: minute(0) + 55_000, Price: 104},
		{CreatedAt: minute(0) + 10_000, Price: 101},
	}

	candles := BucketCloses(trades, false)
	require.Len(t, candles, 2)
	assert.InDelta(t, 104.0, candles[0].Close, 1e-9)
	assert.InDelta(t, 115.0, candles[1].Close, 1e-9)
}

func TestBucketCloses_DoesNotMutateInput(t *testing.T) {
	trades := []TradePrint{
		{CreatedAt: minute(1), Price: 2},
		{CreatedAt: minute(0), Price: 1},
	}
	BucketCloses(trades, true)
	assert.Equal(t, minute(1), trades[0].CreatedAt, "ascending sort works on a copy")
}

func TestAlign_MergesBothVenuesPerMinute(t *testing.T) {
	hl := []Candle{
		{Time: minute(0), Close: 100},
		{Time: minute(1), Close: 101},
	}
	px := []Candle{
		{Time: minute(0) + 30_000, Close: 100.5}, // mid-minute, floors to minute(0)
		{Time: minute(2), Close: 102.5},
	}

	points := Align(hl, px)
	require.Len(t, points, 3)

	require.NotNil(t, points[0].Hyperliquid)
	require.NotNil(t, points[0].Paradex)
	assert.InDelta(t, 100.0, *points[0].Hyperliquid, 1e-9)
	assert.InDelta(t, 100.5, *points[0].Paradex, 1e-9)

	assert.NotNil(t, points[1].Hyperliquid)
	assert.Nil(t, points[1].Paradex, "venue absent for the minute stays absent")

	assert.Nil(t, points[2].Hyperliquid)
	assert.NotNil(t, points[2].Paradex)

	for i := 1; i < len(points); i++ {
		assert.Greater(t, points[i].Timestamp, points[i-1].Timestamp, "ascending order")
	}
	assert.NotEmpty(t, points[0].Time)
}

func TestAlign_Idempotent(t *testing.T) {
	hl := []Candle{{Time: minute(0), Close: 100}, {Time: minute(3), Close: 103}}
	px := []Candle{{Time: minute(1), Close: 101}, {Time: minute(3), Close: 103.2}}

	first := Align(hl, px)
	second := Align(hl, px)
	assert.Equal(t, first, second, "same inputs, same merged series")
}

func TestAlign_TruncatesToMostRecent60(t *testing.T) {
	var hl, px []Candle
	for i := 0; i < 90; i++ {
		hl = append(hl, Candle{Time: minute(i), Close: float64(i)})
		px = append(px, Candle{Time: minute(i), Close: float64(i) + 0.5})
	}

	points := Align(hl, px)
	require.Len(t, points, MaxPoints)
	assert.Equal(t, minute(30), points[0].Timestamp, "oldest 30 minutes dropped")
	assert.Equal(t, minute(89), points[len(points)-1].Timestamp)
}

func TestAlign_EmptyInputs(t *testing.T) {
	assert.Empty(t, Align(nil, nil))
}
