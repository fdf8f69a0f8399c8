// Package cart holds the shopper's pending purchase list. The in-memory
// list is authoritative; the key-value bridge keeps a mirror that survives
// restarts.
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/gamestore/internal/kv"
	"github.com/vyrodovalexey/gamestore/internal/model"
)

// Prometheus metrics.
var (
	cartPersistFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cart_persist_failures_total",
			Help: "Total number of cart mutations whose mirror could not be written",
		},
	)

	cartMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cart_mutations_total",
			Help: "Total number of cart mutations by operation",
		},
		[]string{"operation"},
	)
)

// Snapshot is the full item list published after a mutation. Revision
// increases by one per mutation, so a subscriber receiving snapshots from
// several goroutines can drop stale ones.
type Snapshot struct {
	Items    []model.CartItem
	Revision uint64
}

// Listener receives the full item list after every mutation.
type Listener func(Snapshot)

// VisibilityListener receives the visibility flag after it changes.
type VisibilityListener func(visible bool)

// Store is the cart. It is safe for concurrent use.
type Store struct {
	bridge kv.Bridge
	logger *zap.Logger

	mu       sync.Mutex
	items    []model.CartItem
	visible  bool
	revision uint64

	subMu          sync.RWMutex
	nextID         uint64
	listeners      []listenerEntry[Listener]
	visibilityList []listenerEntry[VisibilityListener]
}

type listenerEntry[T any] struct {
	id uint64
	fn T
}

// New creates a Store and restores any persisted items. A malformed mirror
// is discarded and the cart starts empty.
func New(ctx context.Context, bridge kv.Bridge, logger *zap.Logger) *Store {
	s := &Store{
		bridge: bridge,
		logger: logger,
		items:  []model.CartItem{},
	}

	s.restore(ctx)

	return s
}

// restore loads the persisted mirror into memory.
func (s *Store) restore(ctx context.Context) {
	raw, ok, err := s.bridge.Get(ctx, kv.KeyCart)
	if err != nil {
		s.logger.Warn("failed to read persisted cart, starting empty", zap.Error(err))
		return
	}
	if !ok || raw == "" {
		return
	}

	items, err := decodeItems(raw)
	if err != nil {
		s.logger.Warn("discarding malformed persisted cart", zap.Error(err))
		if err := s.bridge.Remove(ctx, kv.KeyCart); err != nil {
			s.logger.Warn("failed to remove malformed persisted cart", zap.Error(err))
		}
		return
	}

	s.items = items
}

// decodeItems parses a persisted item list and enforces the cart
// invariants: valid entries and one entry per ID.
func decodeItems(raw string) ([]model.CartItem, error) {
	var items []model.CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decoding cart: %w", err)
	}

	seen := make(map[string]bool, len(items))
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return nil, fmt.Errorf("cart entry %d: %w", i, err)
		}
		if seen[items[i].ID] {
			return nil, fmt.Errorf("cart entry %d: duplicate id %q", i, items[i].ID)
		}
		seen[items[i].ID] = true
	}

	if items == nil {
		items = []model.CartItem{}
	}

	return items, nil
}

// Add increments the quantity of an existing entry with the same ID, or
// appends a new entry with quantity 1. Candidates that fail validation are
// ignored.
func (s *Store) Add(ctx context.Context, candidate model.CartCandidate) {
	if err := candidate.Validate(); err != nil {
		s.logger.Warn("ignoring invalid cart candidate",
			zap.String("id", candidate.ID),
			zap.Error(err),
		)
		return
	}

	s.mutate(ctx, "add", func(items []model.CartItem) []model.CartItem {
		for i := range items {
			if items[i].ID == candidate.ID {
				items[i].Quantity++
				return items
			}
		}
		return append(items, model.NewCartItem(candidate))
	})
}

// Remove deletes the entry with the given ID. Missing IDs are ignored.
func (s *Store) Remove(ctx context.Context, id string) {
	s.mutate(ctx, "remove", func(items []model.CartItem) []model.CartItem {
		return removeID(items, id)
	})
}

// SetQuantity replaces the quantity of an entry. A quantity of zero or less
// removes it. Missing IDs are ignored.
func (s *Store) SetQuantity(ctx context.Context, id string, quantity int) {
	if quantity <= 0 {
		s.Remove(ctx, id)
		return
	}

	s.mutate(ctx, "set_quantity", func(items []model.CartItem) []model.CartItem {
		for i := range items {
			if items[i].ID == id {
				items[i].Quantity = quantity
				break
			}
		}
		return items
	})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) {
	s.mutate(ctx, "clear", func(_ []model.CartItem) []model.CartItem {
		return []model.CartItem{}
	})
}

func removeID(items []model.CartItem, id string) []model.CartItem {
	out := items[:0]
	for _, item := range items {
		if item.ID != id {
			out = append(out, item)
		}
	}
	return out
}

// mutate applies fn to a private copy of the items, installs the result,
// writes the mirror and publishes the new list, in that order.
func (s *Store) mutate(ctx context.Context, operation string, fn func([]model.CartItem) []model.CartItem) {
	s.mu.Lock()
	next := fn(cloneItems(s.items))
	s.items = next
	s.revision++
	snapshot := Snapshot{Items: cloneItems(next), Revision: s.revision}
	s.persistLocked(ctx, snapshot.Items)
	s.mu.Unlock()

	cartMutationsTotal.WithLabelValues(operation).Inc()

	s.publish(snapshot)
}

// persistLocked writes the mirror. Failures are logged and counted but do
// not undo the mutation. Caller must hold s.mu.
func (s *Store) persistLocked(ctx context.Context, items []model.CartItem) {
	data, err := json.Marshal(items)
	if err != nil {
		cartPersistFailuresTotal.Inc()
		s.logger.Error("failed to encode cart", zap.Error(err))
		return
	}

	if err := s.bridge.Set(ctx, kv.KeyCart, string(data)); err != nil {
		cartPersistFailuresTotal.Inc()
		s.logger.Error("failed to persist cart", zap.Error(err))
	}
}

// Items returns a copy of the current items in insertion order.
func (s *Store) Items() []model.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	return cloneItems(s.items)
}

// Snapshot returns the current items with their revision.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{Items: cloneItems(s.items), Revision: s.revision}
}

// Total returns the sum of price times quantity over all entries.
func (s *Store) Total() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return model.Total(s.items)
}

// ItemCount returns the sum of quantities over all entries.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return model.ItemCount(s.items)
}

// State returns the cart as presented to views.
func (s *Store) State() model.CartState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return model.NewCartState(cloneItems(s.items), s.visible)
}

// Visible reports whether the cart panel is shown.
func (s *Store) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.visible
}

// Show shows the cart panel.
func (s *Store) Show() {
	s.setVisible(func(bool) bool { return true })
}

// Hide hides the cart panel.
func (s *Store) Hide() {
	s.setVisible(func(bool) bool { return false })
}

// Toggle flips the cart panel visibility.
func (s *Store) Toggle() {
	s.setVisible(func(v bool) bool { return !v })
}

func (s *Store) setVisible(fn func(bool) bool) {
	s.mu.Lock()
	s.visible = fn(s.visible)
	visible := s.visible
	s.mu.Unlock()

	s.subMu.RLock()
	listeners := make([]VisibilityListener, 0, len(s.visibilityList))
	for _, e := range s.visibilityList {
		listeners = append(listeners, e.fn)
	}
	s.subMu.RUnlock()

	for _, fn := range listeners {
		fn(visible)
	}
}

// Subscribe registers fn to receive every published snapshot, in
// registration order. The returned function removes the registration.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry[Listener]{id: id, fn: fn})

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		s.listeners = removeEntry(s.listeners, id)
	}
}

// SubscribeVisibility registers fn to receive visibility changes.
func (s *Store) SubscribeVisibility(fn VisibilityListener) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	s.nextID++
	id := s.nextID
	s.visibilityList = append(s.visibilityList, listenerEntry[VisibilityListener]{id: id, fn: fn})

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		s.visibilityList = removeEntry(s.visibilityList, id)
	}
}

func removeEntry[T any](entries []listenerEntry[T], id uint64) []listenerEntry[T] {
	out := make([]listenerEntry[T], 0, len(entries))
	for _, e := range entries {
		if e.id != id {
			out = append(out, e)
		}
	}
	return out
}

// publish invokes every listener synchronously with its own copy of the
// items. Listeners run outside the state lock and may call back into the
// store.
func (s *Store) publish(snapshot Snapshot) {
	s.subMu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, e := range s.listeners {
		listeners = append(listeners, e.fn)
	}
	s.subMu.RUnlock()

	for _, fn := range listeners {
		fn(Snapshot{Items: cloneItems(snapshot.Items), Revision: snapshot.Revision})
	}
}

func cloneItems(items []model.CartItem) []model.CartItem {
	out := make([]model.CartItem, len(items))
	copy(out, items)
	return out
}
