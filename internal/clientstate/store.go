// Package clientstate keeps per-session client values (cart, favorites,
// checkout preferences) in the cache store and notifies in-process
// subscribers on every change.
package clientstate

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/NovaByteCorp/deliverypro/internal/cache"
	"github.com/NovaByteCorp/deliverypro/internal/config"
)

const keyspace = "clientstate"

// Module provides the client state store and its broadcaster.
var Module = fx.Provide(NewBroadcaster, New)

// FavoriteKind selects which favorites list to operate on.
type FavoriteKind string

const (
	FavoriteProducts    FavoriteKind = "product"
	FavoriteRestaurants FavoriteKind = "restaurant"
)

func (k FavoriteKind) key() (Key, error) {
	switch k {
	case FavoriteProducts:
		return KeyFavorites, nil
	case FavoriteRestaurants:
		return KeyRestaurantFavorites, nil
	default:
		return "", fmt.Errorf("unknown favorite kind %q", k)
	}
}

// Params defines dependencies for constructing Store.
type Params struct {
	fx.In

	Cache  cache.Store
	Events *Broadcaster
	Config config.Config
	Logger *zap.Logger
}

// Store reads and writes session values.
type Store struct {
	cache  cache.Store
	ttl    time.Duration
	events *Broadcaster
	logger *zap.Logger
	now    func() time.Time

	locks [lockStripes]sync.Mutex
}

// lockStripes bounds the mutexes guarding read-modify-write cycles. Sessions
// sharing a stripe only wait on each other.
const lockStripes = 64

// New wires a Store. With the cache disabled values are kept in process so a
// single instance still remembers carts between requests.
func New(p Params) *Store {
	store := p.Cache
	if p.Config.Cache.Driver == "noop" || store == nil {
		store = cache.NewMemoryStore(p.Config.Cache.SessionTTL)
		if p.Logger != nil {
			p.Logger.Warn("cache disabled; client state kept in process memory")
		}
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	events := p.Events
	if events == nil {
		events = NewBroadcaster()
	}
	return &Store{
		cache:  store,
		ttl:    p.Config.Cache.SessionTTL,
		events: events,
		logger: logger,
		now:    time.Now,
	}
}

// Events exposes the broadcaster so transports can stream changes.
func (s *Store) Events() *Broadcaster { return s.events }

// Get decodes the value of key into dst. found is false when the key was
// never written or has expired.
func (s *Store) Get(ctx context.Context, sessionID string, key Key, dst any) (bool, error) {
	err := cache.GetJSON(ctx, s.cache, s.cacheKey(sessionID, key), dst)
	if errors.Is(err, cache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Put stores value under key and broadcasts the change.
func (s *Store) Put(ctx context.Context, sessionID string, key Key, value any) error {
	if err := cache.SetJSON(ctx, s.cache, s.cacheKey(sessionID, key), value, s.ttl); err != nil {
		return err
	}
	s.notify(sessionID, key)
	return nil
}

// Remove deletes key and broadcasts the change.
func (s *Store) Remove(ctx context.Context, sessionID string, key Key) error {
	if err := s.cache.Delete(ctx, s.cacheKey(sessionID, key)); err != nil {
		return err
	}
	s.notify(sessionID, key)
	return nil
}

// GetString reads a plain string value; missing keys yield "".
func (s *Store) GetString(ctx context.Context, sessionID string, key Key) (string, error) {
	var v string
	if _, err := s.Get(ctx, sessionID, key, &v); err != nil {
		return "", err
	}
	return v, nil
}

// SetString writes a plain string value. Empty removes the key.
func (s *Store) SetString(ctx context.Context, sessionID string, key Key, value string) error {
	if value == "" {
		return s.Remove(ctx, sessionID, key)
	}
	return s.Put(ctx, sessionID, key, value)
}

// Cart returns the session cart, empty when none was stored.
func (s *Store) Cart(ctx context.Context, sessionID string) ([]CartItem, error) {
	var cart []CartItem
	if _, err := s.Get(ctx, sessionID, KeyCart, &cart); err != nil {
		return nil, err
	}
	if cart == nil {
		cart = []CartItem{}
	}
	return cart, nil
}

// AddToCart merges item into the cart.
func (s *Store) AddToCart(ctx context.Context, sessionID string, item CartItem) ([]CartItem, error) {
	return s.mutateCart(ctx, sessionID, func(cart []CartItem) ([]CartItem, error) {
		return AddItem(cart, item), nil
	})
}

// UpdateQuantity sets the quantity of one line, floored at 1.
func (s *Store) UpdateQuantity(ctx context.Context, sessionID, itemKey string, quantity int) ([]CartItem, error) {
	return s.mutateCart(ctx, sessionID, func(cart []CartItem) ([]CartItem, error) {
		return SetQuantity(cart, itemKey, quantity)
	})
}

// RemoveFromCart drops one line.
func (s *Store) RemoveFromCart(ctx context.Context, sessionID, itemKey string) ([]CartItem, error) {
	return s.mutateCart(ctx, sessionID, func(cart []CartItem) ([]CartItem, error) {
		return RemoveItem(cart, itemKey)
	})
}

// ClearCart empties the cart.
func (s *Store) ClearCart(ctx context.Context, sessionID string) error {
	_, err := s.mutateCart(ctx, sessionID, func([]CartItem) ([]CartItem, error) {
		return []CartItem{}, nil
	})
	return err
}

func (s *Store) mutateCart(ctx context.Context, sessionID string, fn func([]CartItem) ([]CartItem, error)) ([]CartItem, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	cart, err := s.Cart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	next, err := fn(cart)
	if err != nil {
		return nil, err
	}
	if err := s.Put(ctx, sessionID, KeyCart, next); err != nil {
		return nil, err
	}
	return next, nil
}

// Favorites lists the favorited ids of kind in insertion order.
func (s *Store) Favorites(ctx context.Context, sessionID string, kind FavoriteKind) ([]string, error) {
	key, err := kind.key()
	if err != nil {
		return nil, err
	}
	var ids []string
	if _, err := s.Get(ctx, sessionID, key, &ids); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// ToggleFavorite adds id to the favorites of kind, or removes it when already
// present. It reports whether id is a favorite afterwards.
func (s *Store) ToggleFavorite(ctx context.Context, sessionID string, kind FavoriteKind, id string) (bool, error) {
	key, err := kind.key()
	if err != nil {
		return false, err
	}
	if id == "" {
		return false, errors.New("favorite id is required")
	}

	unlock := s.lock(sessionID)
	defer unlock()

	ids, err := s.Favorites(ctx, sessionID, kind)
	if err != nil {
		return false, err
	}
	next := make([]string, 0, len(ids)+1)
	removed := false
	for _, existing := range ids {
		if existing == id {
			removed = true
			continue
		}
		next = append(next, existing)
	}
	if !removed {
		next = append(next, id)
	}
	if err := s.Put(ctx, sessionID, key, next); err != nil {
		return false, err
	}
	return !removed, nil
}

func (s *Store) cacheKey(sessionID string, key Key) string {
	return cache.Key(keyspace, sessionID, string(key))
}

func (s *Store) notify(sessionID string, key Key) {
	typ := EventStorage
	if key == KeyCart {
		typ = EventCartUpdate
	}
	s.events.Publish(Event{Type: typ, SessionID: sessionID, Key: key, At: s.now().UTC()})
}

func (s *Store) lock(sessionID string) func() {
	mu := &s.locks[stripe(sessionID)]
	mu.Lock()
	return mu.Unlock
}

func stripe(sessionID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return int(h.Sum32() % lockStripes)
}
