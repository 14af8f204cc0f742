package market

import (
	"sync"

	"arbiscope/internal/model"
)

// Listener receives the token symbol whose quote cell changed.
type Listener func(token string)

// QuoteStore holds the latest quote per (token, venue) cell. A cell exists
// only after the first update from its feed; absence means "no data yet".
// Cells are never deleted for the process lifetime.
//
// Updates are atomic at single-cell granularity: readers observe either the
// pre-update or the fully-updated cell, never a partial write.
type QuoteStore struct {
	mu        sync.RWMutex
	quotes    map[string]map[model.Venue]model.Quote
	listeners []Listener
}

// NewQuoteStore creates an empty QuoteStore.
func NewQuoteStore() *QuoteStore {
	return &QuoteStore{quotes: make(map[string]map[model.Venue]model.Quote)}
}

// Subscribe registers a change listener, invoked after every Set with the
// affected token. Registration is not safe once feeds are running; wire all
// listeners before the adapters start.
func (s *QuoteStore) Subscribe(l Listener) {
	s.listeners = append(s.listeners, l)
}

// Set overwrites the quote for one (token, venue) cell and notifies listeners.
func (s *QuoteStore) Set(token string, venue model.Venue, q model.Quote) {
	s.mu.Lock()
	cell, ok := s.quotes[token]
	if !ok {
		cell = make(map[model.Venue]model.Quote, 2)
		s.quotes[token] = cell
	}
	cell[venue] = q
	s.mu.Unlock()

	for _, l := range s.listeners {
		l(token)
	}
}

// Get returns the quote for one (token, venue) cell; ok is false when no
// update has been received yet.
func (s *QuoteStore) Get(token string, venue model.Venue) (model.Quote, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[token][venue]
	return q, ok
}

// Pair returns both venues' quotes for a token. ok is false unless both
// venues have reported at least once; consumers must treat a missing venue as
// "not computable", never substitute defaults.
func (s *QuoteStore) Pair(token string) (hl, px model.Quote, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cell, found := s.quotes[token]
	if !found {
		return model.Quote{}, model.Quote{}, false
	}
	hl, hlOK := cell[model.VenueHyperliquid]
	px, pxOK := cell[model.VenueParadex]
	return hl, px, hlOK && pxOK
}

// Snapshot returns a deep copy of the whole store.
func (s *QuoteStore) Snapshot() map[string]map[model.Venue]model.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]map[model.Venue]model.Quote, len(s.quotes))
	for token, cell := range s.quotes {
		c := make(map[model.Venue]model.Quote, len(cell))
		for venue, q := range cell {
			c[venue] = q
		}
		out[token] = c
	}
	return out
}

// SnapshotStore holds the latest funding/open-interest snapshot per
// (token, venue) cell, with the same shape and mutation rules as QuoteStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string]map[model.Venue]model.MarketSnapshot
}

// NewSnapshotStore creates an empty SnapshotStore.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{data: make(map[string]map[model.Venue]model.MarketSnapshot)}
}

// Set overwrites the snapshot for one (token, venue) cell.
func (s *SnapshotStore) Set(token string, venue model.Venue, m model.MarketSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cell, ok := s.data[token]
	if !ok {
		cell = make(map[model.Venue]model.MarketSnapshot, 2)
		s.data[token] = cell
	}
	cell[venue] = m
}

// Get returns the snapshot for one (token, venue) cell.
func (s *SnapshotStore) Get(token string, venue model.Venue) (model.MarketSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.data[token][venue]
	return m, ok
}

// Snapshot returns a deep copy of the whole store.
func (s *SnapshotStore) Snapshot() map[string]map[model.Venue]model.MarketSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]map[model.Venue]model.MarketSnapshot, len(s.data))
	for token, cell := range s.data {
		c := make(map[model.Venue]model.MarketSnapshot, len(cell))
		for venue, m := range cell {
			c[venue] = m
		}
		out[token] = c
	}
	return out
}
