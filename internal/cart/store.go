package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/five82/basket/internal/shopapi"
	"github.com/five82/basket/internal/state"
)

var (
	// ErrNoActiveList is returned by Checkout when no list id is held.
	ErrNoActiveList = errors.New("no active shopping list")
	// ErrInvalidQty rejects quantities the server would refuse.
	ErrInvalidQty = errors.New("invalid quantity")
)

const storeName = "cart"

// Options configure a Store.
type Options struct {
	Logger   zerolog.Logger
	Notifier *state.Notifier
	// TickInterval is the countdown step; one second unless set.
	TickInterval time.Duration
	// SidebarOpen makes mutations reconcile with the full sidebar even before
	// one has been fetched.
	SidebarOpen bool
}

// Store holds the shopping list aggregate and its countdown.
type Store struct {
	api       shopapi.CartAPI
	log       zerolog.Logger
	notifier  *state.Notifier
	countdown *state.Countdown
	seq       state.Sequencer

	// mutations run one at a time
	mutate sync.Mutex

	mu          sync.Mutex
	listID      int64
	ttl         *int
	itemCount   int
	sidebar     *shopapi.Sidebar
	sidebarOpen bool
	loading     int
	expired     bool
}

// New returns an empty store in the Absent phase.
func New(api shopapi.CartAPI, opts Options) *Store {
	s := &Store{
		api:         api,
		log:         opts.Logger.With().Str("store", storeName).Logger(),
		notifier:    opts.Notifier,
		sidebarOpen: opts.SidebarOpen,
	}
	s.countdown = state.NewCountdown(opts.TickInterval, s.tick)
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ListID:    s.listID,
		ItemCount: s.itemCount,
		Loading:   s.loading > 0,
		Expired:   s.expired,
		Ticking:   s.countdown.Running(),
	}
	if s.ttl != nil {
		ttl := *s.ttl
		snap.TTLSeconds = &ttl
	}
	if s.sidebar != nil {
		sidebar := s.sidebar.Clone()
		snap.Sidebar = &sidebar
	}
	return snap
}

// SetSidebarOpen records whether the sidebar view is showing.
func (s *Store) SetSidebarOpen(open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sidebarOpen = open
}

// FetchHeader syncs the countdown and item count. On failure the previous
// state is kept and the error is returned for the caller's information.
func (s *Store) FetchHeader(ctx context.Context) error {
	ticket := s.seq.Issue()
	s.beginLoading()
	defer s.endLoading()

	header, err := s.api.CartHeader(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str("op", "fetch_header").Msg("cart header fetch failed")
		return err
	}

	s.mu.Lock()
	if !s.seq.Accept(ticket) {
		s.mu.Unlock()
		s.discardStale("fetch_header")
		return nil
	}
	if s.applyTTLLocked(header.TTLSeconds) {
		s.itemCount = header.ItemCount
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// FetchSidebar syncs the full grouped list, replacing the aggregate wholesale.
func (s *Store) FetchSidebar(ctx context.Context) error {
	ticket := s.seq.Issue()
	s.beginLoading()
	defer s.endLoading()

	sidebar, err := s.api.CartSidebar(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str("op", "fetch_sidebar").Msg("cart sidebar fetch failed")
		return err
	}

	s.mu.Lock()
	if !s.seq.Accept(ticket) {
		s.mu.Unlock()
		s.discardStale("fetch_sidebar")
		return nil
	}
	if s.applyTTLLocked(sidebar.TTLSeconds) {
		if sidebar.ListID != nil {
			s.listID = *sidebar.ListID
		}
		s.itemCount = sidebar.TotalItems
		s.sidebar = &sidebar
	}
	s.mu.Unlock()
	s.notify()
	return nil
}

// AddItem adds qty of an offer, adopting the list id and countdown the server
// returns, then reconciles with the sidebar when it is loaded and with the
// header otherwise. A sidebar sync is forced when no list id is held
// afterwards, since only the sidebar carries it.
func (s *Store) AddItem(ctx context.Context, productID, offerID int64, qty int) (shopapi.AddItemResponse, error) {
	if qty < 1 {
		return shopapi.AddItemResponse{}, fmt.Errorf("add item: %w: %d", ErrInvalidQty, qty)
	}

	s.mutate.Lock()
	defer s.mutate.Unlock()

	ticket := s.seq.Issue()
	s.beginLoading()
	defer s.endLoading()

	resp, err := s.api.AddCartItem(ctx, shopapi.AddItemRequest{ProductID: productID, OfferID: offerID, Qty: qty})
	if err != nil {
		s.log.Warn().Err(err).Str("op", "add_item").Int64("product_id", productID).Msg("add item failed")
		return shopapi.AddItemResponse{}, err
	}

	s.mu.Lock()
	if !s.seq.Current(ticket) {
		s.mu.Unlock()
		s.discardStale("add_item")
		return resp, nil
	}
	if s.seq.Accept(ticket) {
		if s.applyTTLLocked(resp.TTLSeconds) {
			s.listID = resp.ListID
		}
	} else if s.ttl != nil && resp.ListID != 0 {
		// A newer read already anchored the countdown but carries no list id.
		s.listID = resp.ListID
	}
	useSidebar := s.sidebar != nil || s.sidebarOpen || s.listID == 0
	s.mu.Unlock()
	s.notify()

	s.reconcile(ctx, useSidebar)
	return resp, nil
}

// UpdateQty sets an item's quantity; zero deletes it. Both are followed by a
// sidebar sync. Nothing changes locally before the server answers.
func (s *Store) UpdateQty(ctx context.Context, itemID int64, qty int) error {
	if qty < 0 {
		return fmt.Errorf("update qty: %w: %d", ErrInvalidQty, qty)
	}

	s.mutate.Lock()
	defer s.mutate.Unlock()

	ticket := s.seq.Issue()
	s.beginLoading()
	defer s.endLoading()

	var err error
	if qty == 0 {
		err = s.api.RemoveCartItem(ctx, itemID)
	} else {
		err = s.api.UpdateCartItem(ctx, itemID, qty)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("op", "update_qty").Int64("item_id", itemID).Int("qty", qty).Msg("update qty failed")
		return err
	}
	if !s.seq.Current(ticket) {
		s.discardStale("update_qty")
		return nil
	}
	s.reconcile(ctx, true)
	return nil
}

// RemoveItem deletes an item and syncs the sidebar.
func (s *Store) RemoveItem(ctx context.Context, itemID int64) error {
	return s.UpdateQty(ctx, itemID, 0)
}

// Checkout sends the current list to the user's phone. The list stays valid
// until it expires, so local state is left as is.
func (s *Store) Checkout(ctx context.Context, phone string) (shopapi.CheckoutReceipt, error) {
	s.mutate.Lock()
	defer s.mutate.Unlock()

	s.mu.Lock()
	listID := s.listID
	s.mu.Unlock()
	if listID == 0 {
		return shopapi.CheckoutReceipt{}, ErrNoActiveList
	}

	s.beginLoading()
	defer s.endLoading()

	receipt, err := s.api.Checkout(ctx, listID, phone)
	if err != nil {
		s.log.Warn().Err(err).Str("op", "checkout").Int64("list_id", listID).Msg("checkout failed")
		return shopapi.CheckoutReceipt{}, err
	}
	s.log.Info().Int64("list_id", listID).Str("sms_status", receipt.SMSStatus).Msg("checkout queued")
	return receipt, nil
}

// Reset stops the countdown and clears everything. Responses still in flight
// are discarded when they arrive.
func (s *Store) Reset() {
	s.mu.Lock()
	s.seq.Invalidate()
	s.clearLocked()
	s.expired = false
	s.mu.Unlock()
	s.notify()
}

// Close stops the countdown without touching the aggregate.
func (s *Store) Close() {
	s.countdown.Stop()
}

func (s *Store) reconcile(ctx context.Context, useSidebar bool) {
	var err error
	if useSidebar {
		err = s.FetchSidebar(ctx)
	} else {
		err = s.FetchHeader(ctx)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("op", "reconcile").Msg("reconciliation fetch failed, state may be stale")
	}
}

// applyTTLLocked adopts a server countdown. A null or non-positive value means
// the server holds no active list: the aggregate is cleared and false returned.
func (s *Store) applyTTLLocked(ttl *int) bool {
	if ttl == nil || *ttl <= 0 {
		s.clearLocked()
		return false
	}
	v := *ttl
	s.ttl = &v
	s.expired = false
	s.countdown.Start()
	return true
}

func (s *Store) tick(run uint64) {
	s.mu.Lock()
	if !s.countdown.Current(run) || s.ttl == nil {
		s.mu.Unlock()
		return
	}
	next := *s.ttl - 1
	if next <= 0 {
		s.seq.Invalidate()
		s.clearLocked()
		s.expired = true
		s.mu.Unlock()
		s.log.Info().Msg("shopping list expired")
		s.notify()
		return
	}
	s.ttl = &next
	s.mu.Unlock()
	s.notify()
}

// clearLocked drops the whole aggregate in one step.
func (s *Store) clearLocked() {
	s.countdown.Stop()
	s.listID = 0
	s.ttl = nil
	s.itemCount = 0
	s.sidebar = nil
}

func (s *Store) beginLoading() {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()
	s.notify()
}

func (s *Store) endLoading() {
	s.mu.Lock()
	s.loading--
	s.mu.Unlock()
	s.notify()
}

func (s *Store) discardStale(op string) {
	state.ObserveStale(storeName)
	s.log.Debug().Str("op", op).Msg("discarding stale response")
}

func (s *Store) notify() {
	s.notifier.Notify()
}
