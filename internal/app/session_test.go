package app

import (
	"errors"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/basket/internal/cart"
	"github.com/five82/basket/internal/config"
	"github.com/five82/basket/internal/shopapi"
	"github.com/five82/basket/internal/shopapi/shopapitest"
)

func seededServer(t *testing.T) *shopapitest.Server {
	t.Helper()
	srv := shopapitest.New(t)
	srv.SeedFavorites(
		shopapi.Favorite{FavoriteID: 1, ProductID: 11, Name: "Coffee", Price: decimal.RequireFromString("4.99")},
		shopapi.Favorite{FavoriteID: 2, ProductID: 12, Name: "Milk", Price: decimal.RequireFromString("1.29")},
	)
	srv.SeedNotifications(
		shopapi.Notification{ID: 1, Title: "Price drop", IsRead: false},
		shopapi.Notification{ID: 2, Title: "Welcome", IsRead: true},
	)
	srv.SetTracked(3)
	srv.AddOffer(shopapitest.Offer{ProductID: 11, OfferID: 501, Name: "Coffee", Price: decimal.RequireFromString("4.99")})
	return srv
}

func TestSession_LoadPopulatesEveryStore(t *testing.T) {
	srv := seededServer(t)
	session := NewSession(srv.NewClient(t), SessionOptions{Logger: zerolog.Nop()})
	defer session.Close()

	require.NoError(t, session.Load(t.Context()))

	assert.Equal(t, 2, session.Favorites.Count())
	assert.True(t, session.Favorites.IsFavorited(12))
	assert.Len(t, session.Notifications.Items(), 2)
	assert.Equal(t, 1, session.Notifications.UnreadCount())
	assert.Equal(t, 3, session.Tracked.Value())
	assert.Equal(t, cart.Absent, session.Cart.Snapshot().Phase())
	assert.Equal(t, 1, srv.Calls(http.MethodGet, "/shopping-list/header/ttl"))
	assert.Zero(t, srv.Calls(http.MethodGet, "/shopping-list/sidebar"))

	status := session.Health.Status()
	assert.NoError(t, status.LastError)
	assert.False(t, status.LastSynced.IsZero())
}

func TestSession_LoadWithSidebarOpenFetchesSidebar(t *testing.T) {
	srv := seededServer(t)
	session := NewSession(srv.NewClient(t), SessionOptions{Logger: zerolog.Nop(), SidebarOpen: true})
	defer session.Close()

	require.NoError(t, session.Load(t.Context()))
	assert.Equal(t, 1, srv.Calls(http.MethodGet, "/shopping-list/sidebar"))
	assert.Zero(t, srv.Calls(http.MethodGet, "/shopping-list/header/ttl"))
}

func TestSession_LoadFailureIsPartial(t *testing.T) {
	srv := seededServer(t)
	srv.Fail(http.MethodGet, "/favorites", http.StatusInternalServerError, 0)
	session := NewSession(srv.NewClient(t), SessionOptions{Logger: zerolog.Nop()})
	defer session.Close()

	err := session.Load(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "favorites")
	assert.Equal(t, http.StatusInternalServerError, shopapi.StatusOf(err))

	assert.False(t, session.Favorites.Loaded())
	assert.Equal(t, 3, session.Tracked.Value())
	assert.Equal(t, 1, session.Notifications.UnreadCount())
	assert.Equal(t, 1, session.Health.Status().ConsecutiveFailures)
}

func TestGather_JoinsEveryError(t *testing.T) {
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	ran := make([]bool, 3)

	err := gather(
		func() error { ran[0] = true; return errA },
		func() error { ran[1] = true; return nil },
		func() error { ran[2] = true; return errB },
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, []bool{true, true, true}, ran)

	assert.NoError(t, gather(func() error { return nil }))
}

func TestSession_RefreshTracksServer(t *testing.T) {
	srv := seededServer(t)
	session := NewSession(srv.NewClient(t), SessionOptions{Logger: zerolog.Nop()})
	defer session.Close()
	require.NoError(t, session.Load(t.Context()))

	_, err := session.Cart.AddItem(t.Context(), 11, 501, 1)
	require.NoError(t, err)
	srv.SetTracked(5)
	srv.SetTTL(90)

	require.NoError(t, session.Refresh(t.Context()))
	snap := session.Cart.Snapshot()
	assert.Equal(t, 1, snap.ItemCount)
	assert.Equal(t, 90, snap.TTL())
	assert.Equal(t, 5, session.Tracked.Value())

	srv.Expire()
	require.NoError(t, session.Refresh(t.Context()))
	assert.Equal(t, cart.Absent, session.Cart.Snapshot().Phase())
}

func TestSession_ResetClearsEverything(t *testing.T) {
	srv := seededServer(t)
	session := NewSession(srv.NewClient(t), SessionOptions{Logger: zerolog.Nop()})
	defer session.Close()
	require.NoError(t, session.Load(t.Context()))

	changes, unsubscribe := session.Changes.Subscribe()
	defer unsubscribe()

	session.Reset()

	assert.Zero(t, session.Favorites.Count())
	assert.Empty(t, session.Favorites.Items())
	assert.Empty(t, session.Notifications.Items())
	assert.Zero(t, session.Notifications.UnreadCount())
	assert.Zero(t, session.Tracked.Value())
	assert.True(t, session.Health.Status().LastSynced.IsZero())
	select {
	case <-changes:
	default:
		t.Fatal("Reset did not signal a change")
	}
}

func TestNewClient_PrefersInlineToken(t *testing.T) {
	srv := shopapitest.New(t)
	cfg := config.Config{
		APIBase:   srv.URL,
		Token:     "inline",
		TokenFile: "/nonexistent/token",
	}
	client, err := NewClient(cfg, "1.2.3", zerolog.Nop())
	require.NoError(t, err)
	_, err = client.CartHeader(t.Context())
	require.NoError(t, err)
}
