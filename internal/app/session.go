package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/five82/basket/internal/cart"
	"github.com/five82/basket/internal/favorites"
	"github.com/five82/basket/internal/logging"
	"github.com/five82/basket/internal/notifications"
	"github.com/five82/basket/internal/shopapi"
	"github.com/five82/basket/internal/state"
)

// SessionOptions configure a Session.
type SessionOptions struct {
	Logger            zerolog.Logger
	NotificationLimit int
	SidebarOpen       bool
	// TickInterval overrides the cart countdown step (tests).
	TickInterval time.Duration
}

// Session owns one instance of every store for a signed-in user. The UI, the
// poller and the CLI all read from the same Session.
type Session struct {
	Cart          *cart.Store
	Favorites     *favorites.Store
	Notifications *notifications.Store
	Tracked       *state.Counter

	// Changes fires whenever any store changes.
	Changes *state.Notifier
	Health  *state.Health

	log         zerolog.Logger
	sidebarOpen bool
}

// NewSession builds the stores on top of api.
func NewSession(api shopapi.API, opts SessionOptions) *Session {
	changes := &state.Notifier{}
	s := &Session{
		Changes:     changes,
		Health:      &state.Health{},
		log:         logging.Component(opts.Logger, "session"),
		sidebarOpen: opts.SidebarOpen,
	}
	s.Cart = cart.New(api, cart.Options{
		Logger:       logging.Component(opts.Logger, "cart"),
		Notifier:     changes,
		TickInterval: opts.TickInterval,
		SidebarOpen:  opts.SidebarOpen,
	})
	s.Favorites = favorites.New(api, favorites.Options{
		Logger:   logging.Component(opts.Logger, "favorites"),
		Notifier: changes,
	})
	s.Notifications = notifications.New(api, notifications.Options{
		Logger:   logging.Component(opts.Logger, "notifications"),
		Notifier: changes,
		Limit:    opts.NotificationLimit,
	})
	s.Tracked = state.NewCounter("tracked", api.TrackedProductCount, logging.Component(opts.Logger, "tracked"), changes.Notify)
	return s
}

// Load runs the initial fetch of every store concurrently. Each failure is
// logged and leaves that store empty; the returned error joins all of them.
func (s *Session) Load(ctx context.Context) error {
	err := gather(
		func() error {
			if s.sidebarOpen {
				return wrap("cart sidebar", s.Cart.FetchSidebar(ctx))
			}
			return wrap("cart header", s.Cart.FetchHeader(ctx))
		},
		func() error { return wrap("favorites", s.Favorites.Fetch(ctx)) },
		func() error { return wrap("notifications", s.Notifications.Fetch(ctx, false)) },
		func() error {
			_, err := s.Tracked.Refresh(ctx)
			return wrap("tracked products", err)
		},
	)
	if err != nil {
		s.log.Warn().Err(err).Msg("initial load incomplete")
	}
	s.Health.Record(err)
	s.Changes.Notify()
	return err
}

// Refresh is one background sync round: the cart header (which re-anchors the
// countdown), the unread badge and the tracked product count.
func (s *Session) Refresh(ctx context.Context) error {
	err := gather(
		func() error { return wrap("cart header", s.Cart.FetchHeader(ctx)) },
		func() error {
			_, err := s.Notifications.RefreshUnread(ctx)
			return wrap("unread count", err)
		},
		func() error {
			_, err := s.Tracked.Refresh(ctx)
			return wrap("tracked products", err)
		},
	)
	s.Health.Record(err)
	s.Changes.Notify()
	return err
}

// gather runs fns concurrently to completion. A failure does not cancel the
// others; the result joins every error returned.
func gather(fns ...func() error) error {
	var g errgroup.Group
	errs := make([]error, len(fns))
	for i, fn := range fns {
		g.Go(func() error {
			errs[i] = fn()
			return errs[i]
		})
	}
	if g.Wait() == nil {
		return nil
	}
	return errors.Join(errs...)
}

// Reset clears every store, e.g. on logout. Responses still in flight are
// discarded when they arrive.
func (s *Session) Reset() {
	s.Cart.Reset()
	s.Favorites.Reset()
	s.Notifications.Reset()
	s.Tracked.Reset()
	s.Health.Reset()
	s.log.Info().Msg("session reset")
	s.Changes.Notify()
}

// Close stops the cart countdown.
func (s *Session) Close() {
	s.Cart.Close()
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", what, err)
}
