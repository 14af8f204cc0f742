package history

import (
	"sort"
	"time"
)

// MaxPoints caps the merged series at one hour of one-minute buckets.
const MaxPoints = 60

const minuteMs = 60_000

// Candle is a one-minute close for one venue, keyed by a millisecond
// timestamp (not necessarily minute-aligned; Align floors it).
type Candle struct {
	Time  int64
	Close float64
}

// TradePrint is a single raw trade from a venue without a candle endpoint.
type TradePrint struct {
	CreatedAt int64
	Price     float64
}

// Point is one minute of the merged series. A venue that contributed no data
// for the minute is absent, not zero.
type Point struct {
	Time        string   `json:"time"`
	Timestamp   int64    `json:"timestamp"`
	Hyperliquid *float64 `json:"hyperliquid,omitempty"`
	Paradex     *float64 `json:"paradex,omitempty"`
}

// BucketCloses folds raw trade prints into one-minute buckets, keeping each
// bucket's close. With ascending=true the input is sorted by timestamp and
// the last trade seen per bucket is the close. With ascending=false the input
// is taken to be newest-first (a plain recent-trades query without a start
// bound) and the rule inverts: the first trade seen per bucket wins, since it
// is the most recent.
func BucketCloses(trades []TradePrint, ascending bool) []Candle {
	if ascending {
		trades = append([]TradePrint(nil), trades...)
		sort.Slice(trades, func(i, j int) bool { return trades[i].CreatedAt < trades[j].CreatedAt })
	}

	closes := make(map[int64]float64, len(trades))
	for _, t := range trades {
		minute := t.CreatedAt / minuteMs * minuteMs
		if !ascending {
			if _, seen := closes[minute]; seen {
				continue
			}
		}
		closes[minute] = t.Price
	}

	out := make([]Candle, 0, len(closes))
	for ts, price := range closes {
		out = append(out, Candle{Time: ts, Close: price})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out
}

// Align merges the two venues' close series onto a shared one-minute grid,
// ordered ascending by timestamp and truncated to the most recent MaxPoints
// entries. Later insertions for the same minute merge fields rather than
// overwriting; the merge is deterministic for identical inputs.
func Align(hyperliquid, paradex []Candle) []Point {
	merged := make(map[int64]*Point, len(hyperliquid)+len(paradex))

	at := func(ts int64) *Point {
		minute := ts / minuteMs * minuteMs
		p, ok := merged[minute]
		if !ok {
			p = &Point{Timestamp: minute}
			merged[minute] = p
		}
		return p
	}

	for _, c := range hyperliquid {
		v := c.Close
		at(c.Time).Hyperliquid = &v
	}
	for _, c := range paradex {
		v := c.Close
		at(c.Time).Paradex = &v
	}

	out := make([]Point, 0, len(merged))
	for _, p := range merged {
		p.Time = time.UnixMilli(p.Timestamp).Format("15:04")
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })

	if len(out) > MaxPoints {
		out = out[len(out)-MaxPoints:]
	}
	return out
}
