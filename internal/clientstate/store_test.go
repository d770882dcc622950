package clientstate

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/NovaByteCorp/deliverypro/internal/cache"
	"github.com/NovaByteCorp/deliverypro/internal/config"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(Params{
		Cache:  cache.NewMemoryStore(0),
		Events: NewBroadcaster(),
		Config: config.Config{Cache: config.Cache{Driver: "memory", SessionTTL: time.Hour}},
		Logger: zap.NewNop(),
	})
}

func nextEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestStore_CartBroadcastsUpdates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	events, cancel := s.Events().Subscribe(8)
	defer cancel()

	if _, err := s.AddToCart(ctx, "u1", burger(2)); err != nil {
		t.Fatalf("AddToCart() error = %v", err)
	}
	if e := nextEvent(t, events); e.Type != EventCartUpdate || e.SessionID != "u1" || e.Key != KeyCart {
		t.Errorf("event = %+v", e)
	}

	cart, err := s.AddToCart(ctx, "u1", burger(3))
	if err != nil {
		t.Fatalf("AddToCart() error = %v", err)
	}
	nextEvent(t, events)
	if len(cart) != 1 || cart[0].Quantity != 5 {
		t.Fatalf("cart = %+v, want one line with 5", cart)
	}

	if _, err := s.UpdateQuantity(ctx, "u1", "p1771", 0); err != nil {
		t.Fatalf("UpdateQuantity() error = %v", err)
	}
	nextEvent(t, events)

	stored, err := s.Cart(ctx, "u1")
	if err != nil || stored[0].Quantity != 1 {
		t.Fatalf("Cart() = %+v, %v", stored, err)
	}

	if err := s.ClearCart(ctx, "u1"); err != nil {
		t.Fatalf("ClearCart() error = %v", err)
	}
	nextEvent(t, events)
	if stored, _ := s.Cart(ctx, "u1"); len(stored) != 0 {
		t.Errorf("cart after clear = %+v", stored)
	}

	if other, _ := s.Cart(ctx, "u2"); len(other) != 0 {
		t.Errorf("other session sees cart %+v", other)
	}
}

func TestStore_StorageEventsAndStrings(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	events, cancel := s.Events().Subscribe(4)
	defer cancel()

	if err := s.SetString(ctx, "u1", KeyDeliveryAddress, "Rua A, 10"); err != nil {
		t.Fatalf("SetString() error = %v", err)
	}
	if e := nextEvent(t, events); e.Type != EventStorage || e.Key != KeyDeliveryAddress {
		t.Errorf("event = %+v", e)
	}
	if got, _ := s.GetString(ctx, "u1", KeyDeliveryAddress); got != "Rua A, 10" {
		t.Errorf("GetString() = %q", got)
	}

	if err := s.SetString(ctx, "u1", KeyDeliveryAddress, ""); err != nil {
		t.Fatalf("SetString(empty) error = %v", err)
	}
	if got, _ := s.GetString(ctx, "u1", KeyDeliveryAddress); got != "" {
		t.Errorf("GetString() after clear = %q", got)
	}
}

func TestStore_ToggleFavorite(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	on, err := s.ToggleFavorite(ctx, "u1", FavoriteProducts, "p1")
	if err != nil || !on {
		t.Fatalf("first toggle = %v, %v", on, err)
	}
	if _, err := s.ToggleFavorite(ctx, "u1", FavoriteRestaurants, "r1"); err != nil {
		t.Fatalf("restaurant toggle error = %v", err)
	}
	on, err = s.ToggleFavorite(ctx, "u1", FavoriteProducts, "p1")
	if err != nil || on {
		t.Fatalf("second toggle = %v, %v; want removed", on, err)
	}

	products, _ := s.Favorites(ctx, "u1", FavoriteProducts)
	restaurants, _ := s.Favorites(ctx, "u1", FavoriteRestaurants)
	if len(products) != 0 || len(restaurants) != 1 || restaurants[0] != "r1" {
		t.Errorf("favorites = %v / %v", products, restaurants)
	}

	if _, err := s.ToggleFavorite(ctx, "u1", FavoriteKind("menu"), "x"); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestBroadcaster_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroadcaster()
	_, cancel := b.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Publish(Event{Type: EventStorage})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	cancel()
	cancel()
}

func TestStore_ConcurrentCartWritesAcrossManySessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	const sessions, adds = 200, 5
	var wg sync.WaitGroup
	for i := 0; i < sessions; i++ {
		for j := 0; j < adds; j++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				if _, err := s.AddToCart(ctx, id, burger(1)); err != nil {
					t.Errorf("AddToCart(%s) error = %v", id, err)
				}
			}(fmt.Sprintf("session-%d", i))
		}
	}
	wg.Wait()

	for i := 0; i < sessions; i++ {
		id := fmt.Sprintf("session-%d", i)
		cart, err := s.Cart(ctx, id)
		if err != nil {
			t.Fatalf("Cart(%s) error = %v", id, err)
		}
		if len(cart) != 1 || cart[0].Quantity != adds {
			t.Fatalf("Cart(%s) = %+v, want one line with %d", id, cart, adds)
		}
	}

	for i := 0; i < sessions; i++ {
		id := fmt.Sprintf("session-%d", i)
		if got := stripe(id); got < 0 || got >= lockStripes || got != stripe(id) {
			t.Fatalf("stripe(%s) = %d, want a stable index below %d", id, got, lockStripes)
		}
	}
}
