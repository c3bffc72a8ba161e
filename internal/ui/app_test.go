package ui

import (
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/basket/internal/cart"
	"github.com/five82/basket/internal/favorites"
	"github.com/five82/basket/internal/notifications"
	"github.com/five82/basket/internal/prefs"
	"github.com/five82/basket/internal/shopapi"
	"github.com/five82/basket/internal/shopapi/shopapitest"
	"github.com/five82/basket/internal/state"
)

type harness struct {
	srv       *shopapitest.Server
	cart      *cart.Store
	prefsPath string
}

func newModel(t *testing.T) (Model, *harness) {
	t.Helper()
	srv := shopapitest.New(t)
	srv.SeedNotifications(
		shopapi.Notification{ID: 1, Type: "price_drop", Title: "Coffee is cheaper", Message: "Now 3.99"},
		shopapi.Notification{ID: 2, Title: "Welcome", IsRead: true},
	)
	srv.SeedFavorites(shopapi.Favorite{FavoriteID: 9, ProductID: 11, Name: "Coffee", Price: decimal.RequireFromString("4.99")})
	srv.AddOffer(shopapitest.Offer{ProductID: 11, OfferID: 501, Name: "Coffee", Price: decimal.RequireFromString("4.99")})
	client := srv.NewClient(t)

	changes := &state.Notifier{}
	cartStore := cart.New(client, cart.Options{Logger: zerolog.Nop(), Notifier: changes})
	t.Cleanup(cartStore.Close)

	h := &harness{
		srv:       srv,
		cart:      cartStore,
		prefsPath: filepath.Join(t.TempDir(), "prefs.toml"),
	}
	m := New(Options{
		Context:       t.Context(),
		Cart:          cartStore,
		Favorites:     favorites.New(client, favorites.Options{Logger: zerolog.Nop(), Notifier: changes}),
		Notifications: notifications.New(client, notifications.Options{Logger: zerolog.Nop(), Notifier: changes}),
		Tracked:       state.NewCounter("tracked", client.TrackedProductCount, zerolog.Nop(), changes.Notify),
		Changes:       changes,
		Health:        &state.Health{},
		Prefs:         prefs.Defaults(),
		PrefsPath:     h.prefsPath,
		Logger:        zerolog.Nop(),
	})
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 30})
	return m, h
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	return next.(Model)
}

// press sends a key and runs whatever work it scheduled, feeding the results
// back into the model. Follow-up commands (flash timers) are not run.
func press(t *testing.T, m Model, k string) Model {
	t.Helper()
	var msg tea.KeyMsg
	switch k {
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		msg = tea.KeyMsg{Type: tea.KeyShiftTab}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	next, cmd := m.Update(msg)
	m = next.(Model)
	for _, result := range execute(cmd) {
		m = update(t, m, result)
	}
	return m
}

func execute(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var out []tea.Msg
	for _, c := range batch {
		out = append(out, execute(c)...)
	}
	return out
}

func TestModel_TabsOpenAndLoadPanels(t *testing.T) {
	m, h := newModel(t)
	require.Equal(t, ViewCart, m.view)

	m = press(t, m, "tab")
	assert.Equal(t, ViewFavorites, m.view)
	assert.True(t, m.favorites.Loaded())
	assert.False(t, m.notifications.IsOpen())

	m = press(t, m, "tab")
	assert.Equal(t, ViewNotifications, m.view)
	assert.True(t, m.notifications.IsOpen())
	assert.Len(t, m.notifications.Items(), 2)
	assert.Equal(t, 1, m.notifications.UnreadCount())

	m = press(t, m, "shift+tab")
	assert.Equal(t, ViewFavorites, m.view)
	assert.False(t, m.notifications.IsOpen(), "leaving the inbox closes the dropdown")

	// Leaving the cart tab recorded the sidebar as closed.
	assert.False(t, prefs.Load(h.prefsPath).SidebarOpen)
	m = press(t, m, "shift+tab")
	assert.Equal(t, ViewCart, m.view)
	assert.True(t, prefs.Load(h.prefsPath).SidebarOpen)
}

func TestModel_MarkReadAndCursor(t *testing.T) {
	m, h := newModel(t)
	m = press(t, m, "tab")
	m = press(t, m, "tab")

	for range 5 {
		m = press(t, m, "j")
	}
	assert.Equal(t, 1, m.cursor[ViewNotifications], "cursor stops at the last row")
	m = press(t, m, "k")
	assert.Equal(t, 0, m.cursor[ViewNotifications])

	m = press(t, m, "r")
	assert.Zero(t, m.notifications.UnreadCount())
	assert.True(t, h.srv.Notifications()[0].IsRead)
	assert.Equal(t, 1, h.srv.Calls("POST", "/notifications/1/read"))

	// Already read: no request.
	m = press(t, m, "r")
	assert.Equal(t, 1, h.srv.Calls("POST", "/notifications/1/read"))
	_ = m
}

func TestModel_CycleThemeSavesPrefs(t *testing.T) {
	m, h := newModel(t)
	m = press(t, m, "t")
	assert.Equal(t, "Kanagawa", m.theme.Name)
	assert.Equal(t, "Kanagawa", prefs.Load(h.prefsPath).Theme)
}

func TestModel_QtyUpOnCart(t *testing.T) {
	m, h := newModel(t)
	_, err := h.cart.AddItem(t.Context(), 11, 501, 1)
	require.NoError(t, err)
	require.NoError(t, h.cart.FetchSidebar(t.Context()))

	m = press(t, m, "+")
	items := cartItems(h.cart.Snapshot().Sidebar)
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Qty)

	// Not loaded locally, so the toggle adds and the server reports it held.
	m = press(t, m, "f")
	assert.Equal(t, "already a favorite", m.flash)
	assert.True(t, m.favorites.IsFavorited(11))

	view := m.View()
	assert.Contains(t, view, "basket")
	assert.Contains(t, view, "Coffee")
	assert.Contains(t, view, "total 9.98")
}

func TestModel_CheckoutWithoutPhoneFlashesHint(t *testing.T) {
	m, h := newModel(t)
	_, err := h.cart.AddItem(t.Context(), 11, 501, 1)
	require.NoError(t, err)

	m = press(t, m, "c")
	assert.True(t, m.flashErr)
	assert.Equal(t, "add a phone number to your config to check out", m.flash)

	m = update(t, m, flashExpiredMsg{seq: m.flashSeq})
	assert.Empty(t, m.flash)
}

func TestModel_FlashIgnoresStaleExpiry(t *testing.T) {
	m, _ := newModel(t)
	m = update(t, m, actionMsg{op: "one", note: "first"})
	stale := m.flashSeq
	m = update(t, m, actionMsg{op: "two", err: cart.ErrNoActiveList})
	m = update(t, m, flashExpiredMsg{seq: stale})
	assert.Equal(t, "no active list", m.flash)
}

func TestModel_ViewShowsBadges(t *testing.T) {
	m, _ := newModel(t)
	m = press(t, m, "tab")
	m = press(t, m, "tab")

	view := m.View()
	assert.Contains(t, view, "1 unread")
	assert.Contains(t, view, "no list")
	assert.Contains(t, view, "Coffee is cheaper")
	assert.True(t, strings.Contains(view, "Price Drop"))
}
