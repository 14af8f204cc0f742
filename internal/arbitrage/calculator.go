package arbitrage

import (
	"math"
	"sort"

	"arbiscope/internal/model"
)

// Compute derives, for every token with quotes from both venues, the better
// of the two directional arbitrage trades and returns the list sorted by
// descending profit per unit (stable: ties keep token order).
//
// Tokens missing either venue's quote are excluded, not emitted with zeros.
func Compute(quotes map[string]map[model.Venue]model.Quote, tokens []string) []model.Opportunity {
	opps := make([]model.Opportunity, 0, len(tokens))
	for _, token := range tokens {
		cell, ok := quotes[token]
		if !ok {
			continue
		}
		hl, hlOK := cell[model.VenueHyperliquid]
		px, pxOK := cell[model.VenueParadex]
		if !hlOK || !pxOK {
			continue
		}
		opps = append(opps, compare(token, hl, px))
	}

	sort.SliceStable(opps, func(i, j int) bool {
		return opps[i].ProfitPerUnit > opps[j].ProfitPerUnit
	})
	return opps
}

// compare evaluates both strategies for one token. Profit per unit is what
// closing the position at current quotes would yield:
//
//	long HL / short Px: pxBid - hlAsk
//	long Px / short HL: hlBid - pxAsk
//
// Equal profits choose LongHL_ShortPx (first-checked wins; deterministic but
// arbitrary).
func compare(token string, hl, px model.Quote) model.Opportunity {
	profitHL := px.Bid - hl.Ask
	profitPX := hl.Bid - px.Ask

	if profitHL >= profitPX {
		return model.Opportunity{
			Token:         token,
			Direction:     model.LongHLShortPX,
			ProfitPerUnit: profitHL,
			IsDirect:      profitHL > 0,
			LongVenue:     model.VenueLeg{Name: model.VenueHyperliquid, Bid: hl.Bid, Ask: hl.Ask, EntryPrice: hl.Ask},
			ShortVenue:    model.VenueLeg{Name: model.VenueParadex, Bid: px.Bid, Ask: px.Ask, EntryPrice: px.Bid},
			SpreadPct:     spreadPct(px.Bid, hl.Ask),
		}
	}
	return model.Opportunity{
		Token:         token,
		Direction:     model.LongPXShortHL,
		ProfitPerUnit: profitPX,
		IsDirect:      profitPX > 0,
		LongVenue:     model.VenueLeg{Name: model.VenueParadex, Bid: px.Bid, Ask: px.Ask, EntryPrice: px.Ask},
		ShortVenue:    model.VenueLeg{Name: model.VenueHyperliquid, Bid: hl.Bid, Ask: hl.Ask, EntryPrice: hl.Bid},
		SpreadPct:     -spreadPct(hl.Bid, px.Ask),
	}
}

// spreadPct is the unsigned spread between the short side's bid and the long
// side's ask, as a percentage of the long ask. Callers sign it by direction.
func spreadPct(shortBid, longAsk float64) float64 {
	if longAsk == 0 {
		return 0
	}
	return math.Abs(shortBid-longAsk) / longAsk * 100
}
