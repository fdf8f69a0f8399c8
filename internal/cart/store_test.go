package cart

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/gamestore/internal/kv"
	"github.com/vyrodovalexey/gamestore/internal/model"
)

func newTestStore(t *testing.T, bridge kv.Bridge) *Store {
	t.Helper()

	if bridge == nil {
		bridge = kv.NewMemoryBridge()
	}

	return New(context.Background(), bridge, zap.NewNop())
}

func candidate(id string, price float64) model.CartCandidate {
	return model.CartCandidate{
		ID:    id,
		Name:  "Item " + id,
		Price: price,
		Type:  model.ItemTypeGame,
	}
}

// failingBridge rejects every write.
type failingBridge struct {
	*kv.MemoryBridge
}

func (f failingBridge) Set(_ context.Context, _, _ string) error {
	return errors.New("disk full")
}

func TestStore_Add(t *testing.T) {
	// Arrange
	s := newTestStore(t, nil)
	ctx := context.Background()

	// Act
	s.Add(ctx, candidate("a", 100))
	s.Add(ctx, candidate("a", 100))
	s.Add(ctx, candidate("b", 50))

	// Assert
	want := []model.CartItem{
		{ID: "a", Name: "Item a", Price: 100, Quantity: 2, Type: model.ItemTypeGame},
		{ID: "b", Name: "Item b", Price: 50, Quantity: 1, Type: model.ItemTypeGame},
	}
	if diff := cmp.Diff(want, s.Items()); diff != "" {
		t.Errorf("Items() mismatch (-want +got):\n%s", diff)
	}
	if got := s.Total(); got != 250 {
		t.Errorf("Total() = %v, want 250", got)
	}
	if got := s.ItemCount(); got != 3 {
		t.Errorf("ItemCount() = %d, want 3", got)
	}
}

func TestStore_Add_CountsMatchDistinctIDs(t *testing.T) {
	// Arrange
	ids := []string{"a", "b", "c", "d"}
	rng := rand.New(rand.NewSource(7))

	for round := 0; round < 20; round++ {
		s := newTestStore(t, nil)
		ctx := context.Background()
		added := make(map[string]int)

		// Act
		for i := 0; i < 1+rng.Intn(40); i++ {
			id := ids[rng.Intn(len(ids))]
			s.Add(ctx, candidate(id, 10))
			added[id]++
		}

		// Assert
		items := s.Items()
		if len(items) != len(added) {
			t.Fatalf("round %d: %d entries, want %d distinct ids", round, len(items), len(added))
		}
		for _, item := range items {
			if item.Quantity != added[item.ID] {
				t.Errorf("round %d: quantity of %s = %d, want %d", round, item.ID, item.Quantity, added[item.ID])
			}
		}
	}
}

func TestStore_SetQuantity(t *testing.T) {
	tests := []struct {
		name      string
		id        string
		quantity  int
		wantItems int
		wantQty   int
	}{
		{"update quantity", "a", 5, 1, 5},
		{"zero removes", "a", 0, 0, 0},
		{"negative removes", "a", -1, 0, 0},
		{"unknown id is a no-op", "zzz", 3, 1, 1},
		{"unknown id with zero is a no-op", "zzz", 0, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			s := newTestStore(t, nil)
			ctx := context.Background()
			s.Add(ctx, candidate("a", 10))

			// Act
			s.SetQuantity(ctx, tt.id, tt.quantity)

			// Assert
			items := s.Items()
			if len(items) != tt.wantItems {
				t.Fatalf("len(Items()) = %d, want %d", len(items), tt.wantItems)
			}
			if tt.wantItems > 0 && items[0].Quantity != tt.wantQty {
				t.Errorf("Quantity = %d, want %d", items[0].Quantity, tt.wantQty)
			}
		})
	}
}

func TestStore_Remove(t *testing.T) {
	// Arrange
	s := newTestStore(t, nil)
	ctx := context.Background()
	s.Add(ctx, candidate("a", 10))
	s.Add(ctx, candidate("b", 20))

	// Act
	s.Remove(ctx, "a")
	s.Remove(ctx, "missing")

	// Assert
	items := s.Items()
	if len(items) != 1 || items[0].ID != "b" {
		t.Errorf("Items() = %+v, want only b", items)
	}
}

func TestStore_EmptyCart(t *testing.T) {
	s := newTestStore(t, nil)

	if s.Total() != 0 {
		t.Errorf("Total() = %v, want 0", s.Total())
	}
	if s.ItemCount() != 0 {
		t.Errorf("ItemCount() = %d, want 0", s.ItemCount())
	}
	if items := s.Items(); items == nil || len(items) != 0 {
		t.Errorf("Items() = %#v, want empty non-nil slice", items)
	}
}

func TestStore_PersistsEveryMutation(t *testing.T) {
	// Arrange
	bridge := kv.NewMemoryBridge()
	s := newTestStore(t, bridge)
	ctx := context.Background()

	// Act
	s.Add(ctx, candidate("a", 10))
	s.SetQuantity(ctx, "a", 4)

	// Assert
	raw, ok, err := bridge.Get(ctx, kv.KeyCart)
	if err != nil || !ok {
		t.Fatalf("persisted cart missing: ok=%v err=%v", ok, err)
	}
	var persisted []model.CartItem
	if err := json.Unmarshal([]byte(raw), &persisted); err != nil {
		t.Fatalf("persisted cart is not JSON: %v", err)
	}
	if diff := cmp.Diff(s.Items(), persisted); diff != "" {
		t.Errorf("persisted mirror mismatch (-memory +persisted):\n%s", diff)
	}
}

func TestStore_ClearRoundTrip(t *testing.T) {
	// Arrange
	bridge := kv.NewMemoryBridge()
	ctx := context.Background()
	s := newTestStore(t, bridge)
	s.Add(ctx, candidate("a", 10))
	s.Add(ctx, candidate("b", 10))

	// Act
	s.Clear(ctx)
	reloaded := newTestStore(t, bridge)

	// Assert
	if n := len(reloaded.Items()); n != 0 {
		t.Errorf("reloaded cart has %d items, want 0", n)
	}
}

func TestStore_RestoresPersistedItems(t *testing.T) {
	// Arrange
	bridge := kv.NewMemoryBridge()
	ctx := context.Background()
	first := newTestStore(t, bridge)
	first.Add(ctx, candidate("a", 100))
	first.Add(ctx, candidate("a", 100))

	// Act
	second := newTestStore(t, bridge)

	// Assert
	if diff := cmp.Diff(first.Items(), second.Items()); diff != "" {
		t.Errorf("restored items mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_Add_IgnoresInvalidCandidates(t *testing.T) {
	tests := []struct {
		name    string
		invalid model.CartCandidate
	}{
		{"empty id", candidate("", 5)},
		{"negative price", candidate("b", -1)},
		{"unknown type", model.CartCandidate{ID: "c", Name: "Item c", Price: 5, Type: "ropa"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			bridge := kv.NewMemoryBridge()
			ctx := context.Background()
			s := newTestStore(t, bridge)
			s.Add(ctx, candidate("a", 100))

			// Act
			s.Add(ctx, tt.invalid)
			reloaded := newTestStore(t, bridge)

			// Assert
			want := []model.CartItem{
				{ID: "a", Name: "Item a", Price: 100, Quantity: 1, Type: model.ItemTypeGame},
			}
			if diff := cmp.Diff(want, s.Items()); diff != "" {
				t.Errorf("Items() mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(want, reloaded.Items()); diff != "" {
				t.Errorf("reloaded Items() mismatch (-want +got):\n%s", diff)
			}
			if got := s.Total(); got != 100 {
				t.Errorf("Total() = %v, want 100", got)
			}
		})
	}
}

func TestStore_MalformedMirrorStartsEmpty(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", "{{{"},
		{"wrong shape", `{"id":"a"}`},
		{"zero quantity", `[{"id":"a","price":1,"quantity":0}]`},
		{"duplicate ids", `[{"id":"a","price":1,"quantity":1},{"id":"a","price":1,"quantity":2}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			bridge := kv.NewMemoryBridge()
			ctx := context.Background()
			_ = bridge.Set(ctx, kv.KeyCart, tt.raw)

			// Act
			s := newTestStore(t, bridge)

			// Assert
			if n := len(s.Items()); n != 0 {
				t.Errorf("Items() has %d entries, want 0", n)
			}
			if _, ok, _ := bridge.Get(ctx, kv.KeyCart); ok {
				t.Error("malformed mirror should be discarded")
			}
		})
	}
}

func TestStore_PersistFailureKeepsMutation(t *testing.T) {
	// Arrange
	s := newTestStore(t, failingBridge{kv.NewMemoryBridge()})

	// Act
	s.Add(context.Background(), candidate("a", 10))

	// Assert
	if s.ItemCount() != 1 {
		t.Errorf("ItemCount() = %d, want 1 despite persistence failure", s.ItemCount())
	}
}

func TestStore_PersistsBeforePublishing(t *testing.T) {
	// Arrange
	bridge := kv.NewMemoryBridge()
	s := newTestStore(t, bridge)
	ctx := context.Background()

	var persistedAtPublish string
	s.Subscribe(func(Snapshot) {
		persistedAtPublish, _, _ = bridge.Get(ctx, kv.KeyCart)
	})

	// Act
	s.Add(ctx, candidate("a", 10))

	// Assert
	if persistedAtPublish == "" || persistedAtPublish == "[]" {
		t.Errorf("mirror at publish time = %q, want the new list", persistedAtPublish)
	}
}

func TestStore_Subscribe(t *testing.T) {
	// Arrange
	s := newTestStore(t, nil)
	ctx := context.Background()

	var got []Snapshot
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		got = append(got, snap)
	})

	// Act
	s.Add(ctx, candidate("a", 10))
	s.Add(ctx, candidate("a", 10))
	s.Remove(ctx, "absent")
	unsubscribe()
	s.Clear(ctx)

	// Assert
	if len(got) != 3 {
		t.Fatalf("received %d snapshots, want 3", len(got))
	}
	for i, snap := range got {
		if snap.Revision != uint64(i+1) {
			t.Errorf("snapshot %d revision = %d, want %d", i, snap.Revision, i+1)
		}
	}
	if got[1].Items[0].Quantity != 2 {
		t.Errorf("second snapshot quantity = %d, want 2", got[1].Items[0].Quantity)
	}
}

func TestStore_SubscriberCopiesAreIsolated(t *testing.T) {
	// Arrange
	s := newTestStore(t, nil)
	ctx := context.Background()
	s.Subscribe(func(snap Snapshot) {
		for i := range snap.Items {
			snap.Items[i].Quantity = 99
		}
	})

	// Act
	s.Add(ctx, candidate("a", 10))

	// Assert
	if q := s.Items()[0].Quantity; q != 1 {
		t.Errorf("listener mutation leaked into the store: quantity = %d", q)
	}
}

func TestStore_ListenerMayCallBack(t *testing.T) {
	// Arrange
	s := newTestStore(t, nil)
	ctx := context.Background()

	var count int
	s.Subscribe(func(Snapshot) {
		count = s.ItemCount()
	})

	// Act
	s.Add(ctx, candidate("a", 10))

	// Assert
	if count != 1 {
		t.Errorf("ItemCount() from listener = %d, want 1", count)
	}
}

func TestStore_Visibility(t *testing.T) {
	// Arrange
	s := newTestStore(t, nil)

	var seen []bool
	unsubscribe := s.SubscribeVisibility(func(v bool) {
		seen = append(seen, v)
	})

	// Act
	s.Show()
	s.Toggle()
	s.Toggle()
	s.Hide()
	unsubscribe()
	s.Show()

	// Assert
	want := []bool{true, false, true, false}
	if diff := cmp.Diff(want, seen); diff != "" {
		t.Errorf("visibility events mismatch (-want +got):\n%s", diff)
	}
	if !s.Visible() {
		t.Error("Visible() = false after final Show()")
	}
}

func TestStore_State(t *testing.T) {
	// Arrange
	s := newTestStore(t, nil)
	ctx := context.Background()
	s.Add(ctx, candidate("a", 100))
	s.Add(ctx, candidate("b", 50))
	s.Show()

	// Act
	state := s.State()

	// Assert
	if state.Total != 150 || state.ItemCount != 2 || !state.Visible || len(state.Items) != 2 {
		t.Errorf("State() = %+v", state)
	}
}

func TestStore_ConcurrentAdds(t *testing.T) {
	// Arrange
	s := newTestStore(t, nil)
	ctx := context.Background()
	numGoroutines := 50

	var mu sync.Mutex
	var maxRevision uint64
	s.Subscribe(func(snap Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if snap.Revision > maxRevision {
			maxRevision = snap.Revision
		}
	})

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	// Act
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			s.Add(ctx, candidate("a", 1))
		}()
	}
	wg.Wait()

	// Assert
	if q := s.Items()[0].Quantity; q != numGoroutines {
		t.Errorf("Quantity = %d, want %d", q, numGoroutines)
	}
	if maxRevision != uint64(numGoroutines) {
		t.Errorf("max revision = %d, want %d", maxRevision, numGoroutines)
	}
}
