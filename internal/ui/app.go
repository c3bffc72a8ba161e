package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/five82/basket/internal/cart"
	"github.com/five82/basket/internal/favorites"
	"github.com/five82/basket/internal/notifications"
	"github.com/five82/basket/internal/prefs"
	"github.com/five82/basket/internal/shopapi"
	"github.com/five82/basket/internal/state"
)

// View is a top-level tab.
type View int

const (
	ViewCart View = iota
	ViewFavorites
	ViewNotifications
	viewCount
)

func (v View) String() string {
	switch v {
	case ViewCart:
		return "Cart"
	case ViewFavorites:
		return "Favorites"
	case ViewNotifications:
		return "Inbox"
	default:
		return fmt.Sprintf("view(%d)", int(v))
	}
}

const (
	actionTimeout = 15 * time.Second
	flashDuration = 5 * time.Second
)

// Options configure the UI.
type Options struct {
	Context       context.Context
	Cart          *cart.Store
	Favorites     *favorites.Store
	Notifications *notifications.Store
	Tracked       *state.Counter
	Changes       *state.Notifier
	Health        *state.Health
	// Refresh reloads every store; bound to the refresh key.
	Refresh   func(context.Context) error
	Phone     string
	Prefs     prefs.Prefs
	PrefsPath string
	Logger    zerolog.Logger
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx           context.Context
	cart          *cart.Store
	favorites     *favorites.Store
	notifications *notifications.Store
	tracked       *state.Counter
	health        *state.Health
	refresh       func(context.Context) error
	phone         string
	log           zerolog.Logger

	prefs     prefs.Prefs
	prefsPath string

	changes     <-chan struct{}
	unsubscribe func()

	keys   keyMap
	help   help.Model
	theme  Theme
	view   View
	cursor [viewCount]int
	width  int
	height int
	ready  bool

	flash    string
	flashErr bool
	flashSeq int

	now func() time.Time
}

// New creates the root model and subscribes it to store changes.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	changes := opts.Changes
	if changes == nil {
		changes = &state.Notifier{}
	}
	ch, unsubscribe := changes.Subscribe()

	p := opts.Prefs
	if p.Theme == "" {
		p = prefs.Defaults()
	}

	return Model{
		ctx:           ctx,
		cart:          opts.Cart,
		favorites:     opts.Favorites,
		notifications: opts.Notifications,
		tracked:       opts.Tracked,
		health:        opts.Health,
		refresh:       opts.Refresh,
		phone:         opts.Phone,
		log:           opts.Logger,
		prefs:         p,
		prefsPath:     opts.PrefsPath,
		changes:       ch,
		unsubscribe:   unsubscribe,
		keys:          DefaultKeyMap(),
		help:          help.New(),
		theme:         GetTheme(p.Theme),
		view:          ViewCart,
		now:           time.Now,
	}
}

// Messages

type changedMsg struct{}

type actionMsg struct {
	op   string
	note string
	err  error
}

type flashExpiredMsg struct{ seq int }

type prefsSavedMsg struct{ err error }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.waitForChange(), m.enterView(m.view))
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true
		return m, nil

	case changedMsg:
		m.clampCursor()
		return m, m.waitForChange()

	case actionMsg:
		if msg.err != nil {
			m.log.Warn().Err(msg.err).Str("op", msg.op).Msg("action failed")
			return m.setFlash(describeError(msg.err), true)
		}
		if msg.note != "" {
			return m.setFlash(msg.note, false)
		}
		return m, nil

	case flashExpiredMsg:
		if msg.seq == m.flashSeq {
			m.flash = ""
			m.flashErr = false
		}
		return m, nil

	case prefsSavedMsg:
		if msg.err != nil {
			m.log.Warn().Err(msg.err).Msg("save prefs failed")
		}
		return m, nil
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	return m.renderMain()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keys := m.keys.forView(m.view)

	switch {
	case key.Matches(msg, keys.Quit):
		m.unsubscribe()
		return m, tea.Quit

	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		return m, m.savePrefs()

	case key.Matches(msg, keys.Tab):
		return m.switchView((m.view + 1) % viewCount)

	case key.Matches(msg, keys.ShiftTab):
		return m.switchView((m.view + viewCount - 1) % viewCount)

	case key.Matches(msg, keys.Up):
		m.cursor[m.view] = clamp(m.cursor[m.view]-1, 0, m.rowCount()-1)
		return m, nil

	case key.Matches(msg, keys.Down):
		m.cursor[m.view] = clamp(m.cursor[m.view]+1, 0, m.rowCount()-1)
		return m, nil

	case key.Matches(msg, keys.Refresh):
		return m, m.refreshCmd()

	case key.Matches(msg, keys.Delete):
		return m, m.deleteSelected()
	}

	switch m.view {
	case ViewCart:
		return m, m.handleCartKey(msg, keys)
	case ViewNotifications:
		return m, m.handleInboxKey(msg, keys)
	}
	return m, nil
}

func (m Model) handleCartKey(msg tea.KeyMsg, keys keyMap) tea.Cmd {
	if key.Matches(msg, keys.Checkout) {
		phone := m.phone
		return m.run("checkout", func(ctx context.Context) (string, error) {
			receipt, err := m.cart.Checkout(ctx, phone)
			if err != nil {
				return "", err
			}
			return checkoutNote(receipt), nil
		})
	}

	item, ok := m.selectedCartItem()
	if !ok {
		return nil
	}
	switch {
	case key.Matches(msg, keys.QtyUp):
		return m.run("update qty", func(ctx context.Context) (string, error) {
			return "", m.cart.UpdateQty(ctx, item.ItemID, item.Qty+1)
		})
	case key.Matches(msg, keys.QtyDown):
		return m.run("update qty", func(ctx context.Context) (string, error) {
			return "", m.cart.UpdateQty(ctx, item.ItemID, item.Qty-1)
		})
	case key.Matches(msg, keys.Favorite):
		return m.run("favorite", func(ctx context.Context) (string, error) {
			res, err := m.favorites.Toggle(ctx, item.ProductID)
			if err != nil {
				return "", err
			}
			switch {
			case !res.Added:
				return "removed from favorites", nil
			case res.Already:
				return "already a favorite", nil
			default:
				return "added to favorites", nil
			}
		})
	}
	return nil
}

func (m Model) handleInboxKey(msg tea.KeyMsg, keys keyMap) tea.Cmd {
	switch {
	case key.Matches(msg, keys.MarkAllRead):
		return m.run("mark all read", func(ctx context.Context) (string, error) {
			return "", m.notifications.MarkAllRead(ctx)
		})
	case key.Matches(msg, keys.ClearAll):
		return m.run("clear all", func(ctx context.Context) (string, error) {
			return "inbox cleared", m.notifications.ClearAll(ctx)
		})
	case key.Matches(msg, keys.MarkRead):
		n, ok := m.selectedNotification()
		if !ok || n.IsRead {
			return nil
		}
		return m.run("mark read", func(ctx context.Context) (string, error) {
			return "", m.notifications.MarkRead(ctx, n.ID)
		})
	}
	return nil
}

func (m Model) deleteSelected() tea.Cmd {
	switch m.view {
	case ViewCart:
		item, ok := m.selectedCartItem()
		if !ok {
			return nil
		}
		return m.run("remove item", func(ctx context.Context) (string, error) {
			return "", m.cart.RemoveItem(ctx, item.ItemID)
		})
	case ViewFavorites:
		fav, ok := m.selectedFavorite()
		if !ok {
			return nil
		}
		return m.run("remove favorite", func(ctx context.Context) (string, error) {
			return "", m.favorites.Remove(ctx, fav.FavoriteID)
		})
	case ViewNotifications:
		n, ok := m.selectedNotification()
		if !ok {
			return nil
		}
		return m.run("delete notification", func(ctx context.Context) (string, error) {
			return "", m.notifications.Delete(ctx, n.ID)
		})
	}
	return nil
}

// switchView leaves the current tab and enters next. The cart sidebar and the
// inbox dropdown are marked open only while their tab shows.
func (m Model) switchView(next View) (tea.Model, tea.Cmd) {
	if next == m.view {
		return m, nil
	}
	switch m.view {
	case ViewCart:
		m.cart.SetSidebarOpen(false)
	case ViewNotifications:
		m.notifications.Close()
	}
	m.view = next
	m.clampCursor()

	cmds := []tea.Cmd{m.enterView(next)}
	if open := next == ViewCart; open != m.prefs.SidebarOpen {
		m.prefs.SidebarOpen = open
		cmds = append(cmds, m.savePrefs())
	}
	return m, tea.Batch(cmds...)
}

// enterView marks the tab's panel open and loads it when nothing is held yet.
func (m Model) enterView(v View) tea.Cmd {
	switch v {
	case ViewCart:
		if m.cart == nil {
			return nil
		}
		m.cart.SetSidebarOpen(true)
		if m.cart.Snapshot().Sidebar != nil {
			return nil
		}
		return m.run("load list", func(ctx context.Context) (string, error) {
			return "", m.cart.FetchSidebar(ctx)
		})
	case ViewFavorites:
		if m.favorites == nil || m.favorites.Loaded() {
			return nil
		}
		return m.run("load favorites", func(ctx context.Context) (string, error) {
			return "", m.favorites.Fetch(ctx)
		})
	case ViewNotifications:
		if m.notifications == nil {
			return nil
		}
		m.notifications.Open()
		if m.notifications.Loaded() {
			return nil
		}
		return m.run("load inbox", func(ctx context.Context) (string, error) {
			return "", m.notifications.Fetch(ctx, false)
		})
	}
	return nil
}

func (m Model) refreshCmd() tea.Cmd {
	view := m.view
	return m.run("refresh", func(ctx context.Context) (string, error) {
		if m.refresh != nil {
			if err := m.refresh(ctx); err != nil {
				return "", err
			}
		}
		if view == ViewCart {
			if err := m.cart.FetchSidebar(ctx); err != nil {
				return "", err
			}
		}
		return "refreshed", nil
	})
}

// run executes fn off the UI goroutine and reports the outcome as an actionMsg.
func (m Model) run(op string, fn func(ctx context.Context) (string, error)) tea.Cmd {
	parent := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, actionTimeout)
		defer cancel()
		note, err := fn(ctx)
		return actionMsg{op: op, note: note, err: err}
	}
}

func (m Model) waitForChange() tea.Cmd {
	ch := m.changes
	return func() tea.Msg {
		<-ch
		return changedMsg{}
	}
}

func (m Model) savePrefs() tea.Cmd {
	path, p := m.prefsPath, m.prefs
	return func() tea.Msg {
		return prefsSavedMsg{err: prefs.Save(path, p)}
	}
}

func (m Model) setFlash(text string, isErr bool) (tea.Model, tea.Cmd) {
	m.flashSeq++
	m.flash = text
	m.flashErr = isErr
	seq := m.flashSeq
	return m, tea.Tick(flashDuration, func(time.Time) tea.Msg {
		return flashExpiredMsg{seq: seq}
	})
}

func (m *Model) clampCursor() {
	m.cursor[m.view] = clamp(m.cursor[m.view], 0, m.rowCount()-1)
}

func (m Model) rowCount() int {
	switch m.view {
	case ViewCart:
		return len(cartItems(m.cart.Snapshot().Sidebar))
	case ViewFavorites:
		return len(m.favorites.Items())
	case ViewNotifications:
		return len(m.notifications.Items())
	}
	return 0
}

func (m Model) selectedCartItem() (shopapi.CartItem, bool) {
	items := cartItems(m.cart.Snapshot().Sidebar)
	i := m.cursor[ViewCart]
	if i < 0 || i >= len(items) {
		return shopapi.CartItem{}, false
	}
	return items[i], true
}

func (m Model) selectedFavorite() (shopapi.Favorite, bool) {
	items := m.favorites.Items()
	i := m.cursor[ViewFavorites]
	if i < 0 || i >= len(items) {
		return shopapi.Favorite{}, false
	}
	return items[i], true
}

func (m Model) selectedNotification() (shopapi.Notification, bool) {
	items := m.notifications.Items()
	i := m.cursor[ViewNotifications]
	if i < 0 || i >= len(items) {
		return shopapi.Notification{}, false
	}
	return items[i], true
}

// cartItems flattens the sidebar groups in display order.
func cartItems(sb *shopapi.Sidebar) []shopapi.CartItem {
	if sb == nil {
		return nil
	}
	var items []shopapi.CartItem
	for _, g := range sb.Groups {
		items = append(items, g.Items...)
	}
	return items
}

func checkoutNote(r shopapi.CheckoutReceipt) string {
	note := "checkout sent"
	if r.Queued {
		note = "checkout queued"
	}
	if r.SMSStatus != "" {
		note += " (sms " + r.SMSStatus + ")"
	}
	if r.Fee != nil {
		note += ", fee " + formatMoney(r.Fee.Final)
	}
	return note
}

// Run starts the Bubble Tea program and blocks until it exits.
func Run(opts Options) error {
	m := New(opts)
	defer m.unsubscribe()
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if err != nil && m.ctx.Err() != nil {
		return nil
	}
	return err
}
