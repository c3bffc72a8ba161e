package notifications

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/five82/basket/internal/shopapi"
	"github.com/five82/basket/internal/state"
)

// DefaultLimit is how many notifications a fetch asks for.
const DefaultLimit = 50

const storeName = "notifications"

// Options configure a Store.
type Options struct {
	Logger   zerolog.Logger
	Notifier *state.Notifier
	Limit    int
}

// Store mirrors the notification inbox and its unread counter.
type Store struct {
	api      shopapi.NotificationsAPI
	log      zerolog.Logger
	notifier *state.Notifier
	seq      state.Sequencer
	unread   *state.Counter
	fetching atomic.Bool
	limit    int

	mutate sync.Mutex

	mu     sync.Mutex
	items  state.List[shopapi.Notification]
	loaded bool
	open   bool
}

// New returns an empty store.
func New(api shopapi.NotificationsAPI, opts Options) *Store {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	s := &Store{
		api:      api,
		log:      opts.Logger.With().Str("store", storeName).Logger(),
		notifier: opts.Notifier,
		limit:    limit,
	}
	s.unread = state.NewCounter("unread", api.UnreadCount, opts.Logger, opts.Notifier.Notify)
	return s
}

// Counter exposes the unread badge counter.
func (s *Store) Counter() *state.Counter { return s.unread }

// UnreadCount returns the badge value.
func (s *Store) UnreadCount() int { return s.unread.Value() }

// HasUnread reports a non-zero badge.
func (s *Store) HasUnread() bool { return s.unread.Value() > 0 }

// Items returns a copy of the inbox, newest first.
func (s *Store) Items() []shopapi.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items.Items()
}

// Unread returns the entries not yet read.
func (s *Store) Unread() []shopapi.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []shopapi.Notification
	for _, n := range s.items.Items() {
		if !n.IsRead {
			out = append(out, n)
		}
	}
	return out
}

// Loaded reports whether a fetch has succeeded since the last reset.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Loading reports whether a Fetch is in flight.
func (s *Store) Loading() bool { return s.fetching.Load() }

// IsOpen reports whether the inbox dropdown is showing.
func (s *Store) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Toggle flips the dropdown.
func (s *Store) Toggle() {
	s.mu.Lock()
	s.open = !s.open
	s.mu.Unlock()
	s.notify()
}

// Open shows the dropdown.
func (s *Store) Open() { s.setOpen(true) }

// Close hides the dropdown.
func (s *Store) Close() { s.setOpen(false) }

func (s *Store) setOpen(open bool) {
	s.mu.Lock()
	changed := s.open != open
	s.open = open
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// Fetch replaces the inbox with the server's. A fetch requested while another
// is in flight is dropped; a failed fetch keeps the previous inbox.
func (s *Store) Fetch(ctx context.Context, unreadOnly bool) error {
	if !s.fetching.CompareAndSwap(false, true) {
		s.log.Debug().Msg("fetch already in flight, dropped")
		return nil
	}
	defer s.fetching.Store(false)
	s.notify()
	defer s.notify()

	ticket := s.seq.Issue()
	items, err := s.api.ListNotifications(ctx, shopapi.NotificationQuery{UnreadOnly: unreadOnly, Limit: s.limit})
	if err != nil {
		s.log.Warn().Err(err).Str("op", "fetch").Msg("notifications fetch failed")
		return err
	}

	s.mu.Lock()
	if !s.seq.Accept(ticket) {
		s.mu.Unlock()
		state.ObserveStale(storeName)
		s.log.Debug().Str("op", "fetch").Msg("discarding stale response")
		return nil
	}
	s.items.Replace(items)
	s.loaded = true
	unread := s.items.Count(isUnread)
	s.mu.Unlock()

	// A page shorter than the limit is the whole inbox, so the badge can be
	// derived from it.
	if len(items) < s.limit {
		s.unread.Set(unread)
	}
	return nil
}

// RefreshUnread re-reads the unread badge. It reports false when a refresh
// was already in flight.
func (s *Store) RefreshUnread(ctx context.Context) (bool, error) {
	return s.unread.Refresh(ctx)
}

// MarkRead flags one notification as read. On failure the flag and the
// counter are put back.
func (s *Store) MarkRead(ctx context.Context, id int64) error {
	s.mutate.Lock()
	defer s.mutate.Unlock()

	s.mu.Lock()
	idx, found := s.findLocked(id)
	flipped := found && !s.items.At(idx).IsRead
	if flipped {
		n := s.items.At(idx)
		n.IsRead = true
		s.items.Set(idx, n)
	}
	version := s.items.Version()
	ticket := s.seq.Issue()
	s.mu.Unlock()
	if flipped {
		s.unread.Decrement()
		s.notify()
	}

	if err := s.api.MarkNotificationRead(ctx, id); err != nil {
		if flipped && s.revert(ticket, version, func() {
			if i, ok := s.findLocked(id); ok {
				n := s.items.At(i)
				n.IsRead = false
				s.items.Set(i, n)
			}
		}) {
			s.unread.Increment()
			state.ObserveRollback(storeName, "mark_read")
		}
		s.log.Warn().Err(err).Str("op", "mark_read").Int64("id", id).Msg("mark read failed")
		return err
	}
	return nil
}

// MarkAllRead flags every notification as read. On failure every flag and the
// counter are restored exactly.
func (s *Store) MarkAllRead(ctx context.Context) error {
	s.mutate.Lock()
	defer s.mutate.Unlock()

	s.mu.Lock()
	snap := s.items.Snapshot()
	version := s.items.Version()
	s.items.Update(func(n *shopapi.Notification) bool {
		if n.IsRead {
			return false
		}
		n.IsRead = true
		return true
	})
	ticket := s.seq.Issue()
	s.mu.Unlock()
	oldCount := s.unread.Value()
	s.unread.Set(0)
	s.notify()

	if err := s.api.MarkAllNotificationsRead(ctx); err != nil {
		if s.revert(ticket, version, func() { s.items.Restore(snap) }) {
			s.unread.Set(oldCount)
			state.ObserveRollback(storeName, "mark_all_read")
		}
		s.log.Warn().Err(err).Str("op", "mark_all_read").Msg("mark all read failed")
		return err
	}
	return nil
}

// Delete removes one notification, re-inserting it at its old position on
// failure. Deleting an id the store does not hold leaves the counter alone.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mutate.Lock()
	defer s.mutate.Unlock()

	s.mu.Lock()
	idx, found := s.findLocked(id)
	var removed shopapi.Notification
	if found {
		removed = s.items.RemoveAt(idx)
	}
	version := s.items.Version()
	ticket := s.seq.Issue()
	s.mu.Unlock()
	wasUnread := found && !removed.IsRead
	if wasUnread {
		s.unread.Decrement()
	}
	if found {
		s.notify()
	}

	if err := s.api.DeleteNotification(ctx, id); err != nil {
		if found && s.revert(ticket, version, func() { s.items.Insert(idx, removed) }) {
			if wasUnread {
				s.unread.Increment()
			}
			state.ObserveRollback(storeName, "delete")
		}
		s.log.Warn().Err(err).Str("op", "delete").Int64("id", id).Msg("delete notification failed")
		return err
	}
	return nil
}

// ClearAll empties the inbox. On failure the inbox and counter are restored.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mutate.Lock()
	defer s.mutate.Unlock()

	s.mu.Lock()
	snap := s.items.Snapshot()
	version := s.items.Version()
	s.items.RemoveAll()
	ticket := s.seq.Issue()
	s.mu.Unlock()
	oldCount := s.unread.Value()
	s.unread.Set(0)
	s.notify()

	if err := s.api.ClearNotifications(ctx); err != nil {
		if s.revert(ticket, version, func() { s.items.Restore(snap) }) {
			s.unread.Set(oldCount)
			state.ObserveRollback(storeName, "clear_all")
		}
		s.log.Warn().Err(err).Str("op", "clear_all").Msg("clear notifications failed")
		return err
	}
	return nil
}

// Reset clears the inbox and counter; responses in flight are discarded.
func (s *Store) Reset() {
	s.mu.Lock()
	s.seq.Invalidate()
	s.items.Clear()
	s.loaded = false
	s.open = false
	s.mu.Unlock()
	s.unread.Reset()
	s.notify()
}

// revert runs undo under the lock unless the store was reset or the server
// replaced the inbox since the mutation started. It reports whether undo ran.
func (s *Store) revert(ticket state.Ticket, version uint64, undo func()) bool {
	s.mu.Lock()
	ok := s.seq.Current(ticket) && s.items.Version() == version
	if ok {
		undo()
	}
	s.mu.Unlock()
	s.notify()
	return ok
}

func (s *Store) findLocked(id int64) (int, bool) {
	return s.items.Find(func(n shopapi.Notification) bool { return n.ID == id })
}

func isUnread(n shopapi.Notification) bool { return !n.IsRead }

func (s *Store) notify() {
	s.notifier.Notify()
}
