// Package market keeps a live board of quotes fed by the backend's
// websocket channel.
package market

import (
	"slices"
	"sync"

	"github.com/abhisek/investory/internal/api"
)

// Kind distinguishes individual stocks from index values.
type Kind string

const (
	KindQuote Kind = "quote"
	KindIndex Kind = "index"
)

// Entry is the board's current value for one symbol.
type Entry struct {
	Kind  Kind
	Quote api.Quote
}

// Board is a last-write-wins table of quotes keyed by symbol. Every update
// replaces the symbol's previous entry; updates are not ordered or
// validated against each other.
type Board struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewBoard creates an empty board.
func NewBoard() *Board {
	return &Board{entries: make(map[string]Entry)}
}

// Apply stores q under its symbol, replacing whatever was there.
func (b *Board) Apply(kind Kind, q api.Quote) {
	if q.Symbol == "" {
		return
	}
	b.mu.Lock()
	b.entries[q.Symbol] = Entry{Kind: kind, Quote: q}
	b.mu.Unlock()
}

// Get returns the entry for symbol.
func (b *Board) Get(symbol string) (Entry, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[symbol]
	return e, ok
}

// Len returns the number of symbols on the board.
func (b *Board) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}

// List returns the entries of the given kind sorted by symbol. An empty
// kind returns every entry.
func (b *Board) List(kind Kind) []Entry {
	b.mu.RLock()
	out := make([]Entry, 0, len(b.entries))
	for _, e := range b.entries {
		if kind == "" || e.Kind == kind {
			out = append(out, e)
		}
	}
	b.mu.RUnlock()

	slices.SortFunc(out, func(a, b Entry) int {
		switch {
		case a.Quote.Symbol < b.Quote.Symbol:
			return -1
		case a.Quote.Symbol > b.Quote.Symbol:
			return 1
		}
		return 0
	})
	return out
}

// Filter returns the entries whose symbols are in symbols, in that order.
// Symbols not on the board are skipped.
func (b *Board) Filter(symbols []string) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Entry, 0, len(symbols))
	for _, s := range symbols {
		if e, ok := b.entries[s]; ok {
			out = append(out, e)
		}
	}
	return out
}
