// Package favorites keeps the user's favorited products in sync with the
// server, applying adds and removes optimistically.
package favorites

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/basket/internal/shopapi"
	"github.com/five82/basket/internal/state"
)

// ErrPending is returned when a favorite cannot be removed because the server
// has not yet confirmed its id.
var ErrPending = errors.New("favorite is awaiting confirmation")

const storeName = "favorites"

// AddResult reports the outcome of Add.
type AddResult struct {
	// Already is set when the product was favorited before the call.
	Already     bool
	FavoriteID  int64
	CreditsLeft *int
}

// ToggleResult reports which way Toggle went.
type ToggleResult struct {
	Added bool
	AddResult
}

// Options configure a Store.
type Options struct {
	Logger   zerolog.Logger
	Notifier *state.Notifier
}

// Store mirrors the favorites collection.
type Store struct {
	api      shopapi.FavoritesAPI
	log      zerolog.Logger
	notifier *state.Notifier
	seq      state.Sequencer
	count    *state.Counter
	fetching atomic.Bool

	mutate sync.Mutex

	mu     sync.Mutex
	items  state.List[shopapi.Favorite]
	loaded bool
}

// New returns an empty store.
func New(api shopapi.FavoritesAPI, opts Options) *Store {
	s := &Store{
		api:      api,
		log:      opts.Logger.With().Str("store", storeName).Logger(),
		notifier: opts.Notifier,
	}
	s.count = state.NewCounter(storeName, s.fetch, opts.Logger, opts.Notifier.Notify)
	return s
}

// Counter exposes the favorites badge counter.
func (s *Store) Counter() *state.Counter { return s.count }

// Count returns the badge value. It moves only on confirmed mutations and
// syncs, so it can briefly differ from len(Items()).
func (s *Store) Count() int { return s.count.Value() }

// Items returns a copy of the favorites, newest first.
func (s *Store) Items() []shopapi.Favorite {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Items()
}

// Loaded reports whether a fetch has succeeded since the last reset.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Loading reports whether a Fetch is in flight.
func (s *Store) Loading() bool { return s.fetching.Load() }

// IsFavorited reports local membership, including unconfirmed adds.
func (s *Store) IsFavorited(productID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.findProductLocked(productID)
	return ok
}

// FavoriteID returns the confirmed favorite id for a product.
func (s *Store) FavoriteID(productID int64) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.findProductLocked(productID)
	if !ok {
		return 0, false
	}
	fav := s.items.At(idx)
	if fav.Pending || fav.FavoriteID == 0 {
		return 0, false
	}
	return fav.FavoriteID, true
}

// DiscountedCount returns how many favorites currently have a discount.
func (s *Store) DiscountedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Count(shopapi.Favorite.Discounted)
}

// Fetch replaces the collection with the server's. A fetch requested while
// another is in flight is dropped. On failure the previous collection stays.
func (s *Store) Fetch(ctx context.Context) error {
	if !s.fetching.CompareAndSwap(false, true) {
		s.log.Debug().Msg("fetch already in flight, dropped")
		return nil
	}
	defer s.fetching.Store(false)
	s.notify()
	defer s.notify()

	_, err := s.fetch(ctx)
	return err
}

func (s *Store) fetch(ctx context.Context) (int, error) {
	ticket := s.seq.Issue()
	favs, err := s.api.ListFavorites(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str("op", "fetch").Msg("favorites fetch failed")
		return 0, err
	}

	s.mu.Lock()
	if !s.seq.Accept(ticket) {
		n := s.items.Len()
		s.mu.Unlock()
		state.ObserveStale(storeName)
		s.log.Debug().Str("op", "fetch").Msg("discarding stale response")
		return n, nil
	}
	s.items.Replace(favs)
	s.loaded = true
	s.mu.Unlock()

	s.count.Set(len(favs))
	s.notify()
	return len(favs), nil
}

// Add favorites a product. A product already held locally is reported as
// Already without a network call. Otherwise a pending entry is shown at once
// and the collection is refetched once the server confirms.
func (s *Store) Add(ctx context.Context, productID int64) (AddResult, error) {
	s.mutate.Lock()
	defer s.mutate.Unlock()
	return s.add(ctx, productID)
}

// Remove deletes a favorite, restoring it at its old position if the server
// call fails.
func (s *Store) Remove(ctx context.Context, favoriteID int64) error {
	if favoriteID == 0 {
		return ErrPending
	}
	s.mutate.Lock()
	defer s.mutate.Unlock()
	return s.remove(ctx, favoriteID)
}

// Toggle adds the product when it is not favorited and removes it otherwise.
func (s *Store) Toggle(ctx context.Context, productID int64) (ToggleResult, error) {
	s.mutate.Lock()
	defer s.mutate.Unlock()

	s.mu.Lock()
	idx, ok := s.findProductLocked(productID)
	var fav shopapi.Favorite
	if ok {
		fav = s.items.At(idx)
	}
	s.mu.Unlock()

	if !ok {
		res, err := s.add(ctx, productID)
		return ToggleResult{Added: err == nil, AddResult: res}, err
	}
	if fav.Pending || fav.FavoriteID == 0 {
		return ToggleResult{}, ErrPending
	}
	return ToggleResult{}, s.remove(ctx, fav.FavoriteID)
}

// Reset clears the collection and counter; responses in flight are discarded.
func (s *Store) Reset() {
	s.mu.Lock()
	s.seq.Invalidate()
	s.items.Clear()
	s.loaded = false
	s.mu.Unlock()
	s.count.Reset()
	s.notify()
}

func (s *Store) add(ctx context.Context, productID int64) (AddResult, error) {
	s.mu.Lock()
	if idx, ok := s.findProductLocked(productID); ok {
		fav := s.items.At(idx)
		s.mu.Unlock()
		return AddResult{Already: true, FavoriteID: fav.FavoriteID}, nil
	}
	s.items.Insert(0, shopapi.Favorite{
		ProductID: productID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Pending:   true,
	})
	ticket := s.seq.Issue()
	s.mu.Unlock()
	s.notify()

	resp, err := s.api.AddFavorite(ctx, productID)
	if err != nil {
		s.mu.Lock()
		if s.seq.Current(ticket) && s.dropPendingLocked(productID) {
			state.ObserveRollback(storeName, "add")
			s.log.Warn().Err(err).Str("op", "add").Int64("product_id", productID).Msg("add favorite failed, rolled back")
		}
		s.mu.Unlock()
		s.notify()
		return AddResult{}, err
	}

	result := AddResult{Already: resp.Already, FavoriteID: resp.FavoriteID, CreditsLeft: resp.CreditsLeft}
	if !s.seq.Current(ticket) {
		state.ObserveStale(storeName)
		return result, nil
	}
	if !resp.Already {
		s.count.Increment()
	}

	if _, err := s.fetch(ctx); err != nil {
		s.promotePending(productID, resp.FavoriteID)
	}
	return result, nil
}

func (s *Store) remove(ctx context.Context, favoriteID int64) error {
	s.mu.Lock()
	idx, found := s.items.Find(func(f shopapi.Favorite) bool { return f.FavoriteID == favoriteID })
	var removed shopapi.Favorite
	version := s.items.Version()
	if found {
		removed = s.items.RemoveAt(idx)
	}
	ticket := s.seq.Issue()
	s.mu.Unlock()
	if found {
		s.notify()
	}

	if err := s.api.RemoveFavorite(ctx, favoriteID); err != nil {
		if found {
			s.mu.Lock()
			if s.seq.Current(ticket) && s.items.Version() == version {
				s.items.Insert(idx, removed)
				state.ObserveRollback(storeName, "remove")
			}
			s.mu.Unlock()
			s.notify()
		}
		s.log.Warn().Err(err).Str("op", "remove").Int64("favorite_id", favoriteID).Msg("remove favorite failed")
		return err
	}

	if found && s.seq.Current(ticket) {
		s.count.Decrement()
	}
	return nil
}

// promotePending confirms the pending entry in place when the refetch after an
// add failed.
func (s *Store) promotePending(productID, favoriteID int64) {
	s.mu.Lock()
	idx, ok := s.items.Find(func(f shopapi.Favorite) bool { return f.Pending && f.ProductID == productID })
	if ok {
		fav := s.items.At(idx)
		fav.FavoriteID = favoriteID
		fav.Pending = favoriteID == 0
		s.items.Set(idx, fav)
	}
	s.mu.Unlock()
	if ok {
		s.notify()
	}
}

func (s *Store) dropPendingLocked(productID int64) bool {
	idx, ok := s.items.Find(func(f shopapi.Favorite) bool { return f.Pending && f.ProductID == productID })
	if ok {
		s.items.RemoveAt(idx)
	}
	return ok
}

func (s *Store) findProductLocked(productID int64) (int, bool) {
	return s.items.Find(func(f shopapi.Favorite) bool { return f.ProductID == productID })
}

func (s *Store) notify() {
	s.notifier.Notify()
}
