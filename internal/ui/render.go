package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/basket/internal/cart"
	"github.com/five82/basket/internal/shopapi"
)

// expiringThreshold is when the countdown badge turns to the warning color.
const expiringThreshold = 5 * 60

func (m Model) renderMain() string {
	header := m.renderHeader()
	tabs := m.renderTabs()
	footer := m.renderFooter()
	helpView := m.help.View(m.keys.forView(m.view))

	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(tabs) -
		lipgloss.Height(footer) - lipgloss.Height(helpView)
	if bodyHeight < 1 {
		bodyHeight = 1
	}

	var lines []string
	var selected int
	switch m.view {
	case ViewCart:
		lines, selected = m.cartLines()
	case ViewFavorites:
		lines, selected = m.favoriteLines()
	case ViewNotifications:
		lines, selected = m.notificationLines()
	}
	start, end := visibleRange(selected, len(lines), bodyHeight)
	body := lipgloss.NewStyle().Height(bodyHeight).Width(m.width).
		Render(strings.Join(lines[start:end], "\n"))

	return lipgloss.JoinVertical(lipgloss.Left, header, tabs, body, footer, helpView)
}

func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	snap := m.cart.Snapshot()

	parts := []string{
		bg.Render("basket", styles.Logo),
		m.cartBadge(snap, styles),
		bg.Render(fmt.Sprintf("♥ %d", m.favorites.Count()), styles.Text),
	}
	if unread := m.notifications.UnreadCount(); unread > 0 {
		parts = append(parts, styles.Badge(badgeUnread).Render(fmt.Sprintf("%d unread", unread)))
	} else {
		parts = append(parts, bg.Render("inbox clear", styles.MutedText))
	}
	if m.tracked != nil {
		parts = append(parts, bg.Render(fmt.Sprintf("tracking %d", m.tracked.Value()), styles.MutedText))
	}
	if m.health != nil {
		status := m.health.Status()
		switch {
		case status.IsOffline():
			parts = append(parts,
				styles.Badge(badgeOffline).Render("offline"),
				bg.Render(truncate(describeError(status.LastError), 48), styles.DangerText))
		case status.LastError != nil:
			parts = append(parts, bg.Render(truncate(describeError(status.LastError), 48), styles.WarningText))
		case !status.LastSynced.IsZero():
			parts = append(parts, bg.Render("synced "+status.LastSynced.Format("15:04:05"), styles.FaintText))
		}
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

func (m Model) cartBadge(snap cart.Snapshot, styles Styles) string {
	var badge string
	switch snap.Phase() {
	case cart.Active:
		name := badgeActive
		if snap.TTL() <= expiringThreshold {
			name = badgeExpiring
		}
		badge = styles.Badge(name).Render("⏱ " + snap.TTLFormatted())
	case cart.Expiring:
		badge = styles.Badge(badgeExpiring).Render("⏱ " + snap.TTLFormatted())
	default:
		if snap.Expired {
			badge = styles.Badge(badgeExpired).Render("list expired")
		} else {
			badge = styles.Badge(badgeNoList).Render("no list")
		}
	}
	count := styles.Text.Render(fmt.Sprintf(" %d items", snap.ItemCount))
	if snap.Loading {
		count += styles.FaintText.Render(" …")
	}
	return badge + count
}

func (m Model) renderTabs() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	parts := make([]string, 0, viewCount)
	for v := View(0); v < viewCount; v++ {
		label := v.String()
		switch v {
		case ViewFavorites:
			label = fmt.Sprintf("%s (%d)", label, m.favorites.Count())
		case ViewNotifications:
			label = fmt.Sprintf("%s (%d)", label, m.notifications.UnreadCount())
		}
		if v == m.view {
			parts = append(parts, styles.ActiveTab.Render(label))
		} else {
			parts = append(parts, styles.Tab.Render(label))
		}
	}
	return bg.FillLine(strings.Join(parts, bg.Spaces(1)), m.width)
}

func (m Model) renderFooter() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	left := bg.Render(m.theme.Name, styles.FaintText)
	if m.flash != "" {
		style := styles.SuccessText
		if m.flashErr {
			style = styles.DangerText
		}
		left = bg.Render(truncate(m.flash, m.width-4), style)
	}
	return styles.Footer.Width(m.width).Render(left)
}

// cartLines renders the sidebar grouped by merchant. The second result is the
// line index of the selected item.
func (m Model) cartLines() ([]string, int) {
	styles := m.theme.Styles()
	snap := m.cart.Snapshot()

	if snap.Sidebar == nil || len(snap.Sidebar.Groups) == 0 {
		var msg string
		switch {
		case snap.Expired:
			msg = "Your shopping list expired. Add items to start a new one."
		case snap.IsActive() && snap.Sidebar == nil:
			msg = fmt.Sprintf("%d items in your list. Loading…", snap.ItemCount)
		default:
			msg = "No active shopping list."
		}
		return []string{styles.MutedText.Render(msg)}, 0
	}

	nameWidth := clamp(m.width-40, 12, 60)
	var lines []string
	selectedLine := 0
	index := 0
	for _, g := range snap.Sidebar.Groups {
		head := fmt.Sprintf(" %s  %s", g.Store.Name, formatMoney(g.GroupSubtotal))
		if g.GroupSaving.IsPositive() {
			head += "  save " + formatMoney(g.GroupSaving)
		}
		lines = append(lines, styles.GroupHeader.Width(m.width).Render(head))
		for _, it := range g.Items {
			line := m.cartItemLine(it, nameWidth, styles)
			if index == m.cursor[ViewCart] {
				selectedLine = len(lines)
				line = styles.Selected.Width(m.width).Render(line)
			}
			lines = append(lines, line)
			index++
		}
	}
	total := fmt.Sprintf("%d items  total %s", snap.Sidebar.TotalItems, formatMoney(snap.Sidebar.GrandTotal))
	if snap.Sidebar.GrandSaving.IsPositive() {
		total += "  you save " + formatMoney(snap.Sidebar.GrandSaving)
	}
	lines = append(lines, "", styles.AccentText.Bold(true).Render(total))
	return lines, selectedLine
}

func (m Model) cartItemLine(it shopapi.CartItem, nameWidth int, styles Styles) string {
	line := fmt.Sprintf("  %3d × %s %8s %9s",
		it.Qty,
		padRight(truncate(it.Name, nameWidth), nameWidth),
		formatMoney(it.UnitPrice),
		formatMoney(it.Subtotal))
	if it.OldPrice.Valid {
		line += " " + styles.Strike.Render(formatMoney(it.OldPrice.Decimal))
	}
	if it.EstimatedSaving.IsPositive() {
		line += " " + styles.Badge(badgeDiscount).Render("-"+formatMoney(it.EstimatedSaving))
	}
	return line
}

func (m Model) favoriteLines() ([]string, int) {
	styles := m.theme.Styles()
	items := m.favorites.Items()
	if len(items) == 0 {
		msg := "No favorites yet."
		if m.favorites.Loading() {
			msg = "Loading favorites…"
		}
		return []string{styles.MutedText.Render(msg)}, 0
	}

	now := m.now()
	nameWidth := clamp(m.width-50, 12, 60)
	lines := make([]string, 0, len(items)+1)
	if n := m.favorites.DiscountedCount(); n > 0 {
		lines = append(lines, styles.InfoText.Render(fmt.Sprintf(" %d of %d on sale", n, len(items))))
	}
	selectedLine := 0
	for i, f := range items {
		line := fmt.Sprintf("  %s %-16s %8s",
			padRight(truncate(f.Name, nameWidth), nameWidth),
			truncate(f.Business.Name, 16),
			formatMoney(f.Price))
		switch {
		case f.Pending:
			line += " " + styles.Badge(badgePending).Render("saving")
		case f.Discounted():
			if f.OldPrice.Valid {
				line += " " + styles.Strike.Render(formatMoney(f.OldPrice.Decimal))
			}
			if f.DiscountPercent != nil {
				line += " " + styles.Badge(badgeDiscount).Render(fmt.Sprintf("-%.0f%%", *f.DiscountPercent))
			}
		}
		if age := formatAge(f.ParsedCreatedAt(), now); age != "" {
			line += "  " + styles.FaintText.Render(age)
		}
		if i == m.cursor[ViewFavorites] {
			selectedLine = len(lines)
			line = styles.Selected.Width(m.width).Render(line)
		}
		lines = append(lines, line)
	}
	return lines, selectedLine
}

func (m Model) notificationLines() ([]string, int) {
	styles := m.theme.Styles()
	items := m.notifications.Items()
	if len(items) == 0 {
		msg := "Nothing new."
		if m.notifications.Loading() {
			msg = "Loading inbox…"
		}
		return []string{styles.MutedText.Render(msg)}, 0
	}

	now := m.now()
	titleWidth := clamp(m.width/3, 12, 40)
	lines := make([]string, 0, len(items))
	selectedLine := 0
	for i, n := range items {
		marker := "  "
		titleStyle := styles.MutedText
		if !n.IsRead {
			marker = styles.AccentText.Render("● ")
			titleStyle = styles.Text.Bold(true)
		}
		line := marker + titleStyle.Render(padRight(truncate(n.Title, titleWidth), titleWidth))
		if n.Type != "" {
			line += " " + styles.FaintText.Render("["+titleCase(n.Type)+"]")
		}
		line += " " + truncate(n.Message, clamp(m.width-titleWidth-30, 10, 120))
		if age := formatAge(n.ParsedCreatedAt(), now); age != "" {
			line += "  " + styles.FaintText.Render(age)
		}
		if i == m.cursor[ViewNotifications] {
			selectedLine = i
			line = styles.Selected.Width(m.width).Render(line)
		}
		lines = append(lines, line)
	}
	return lines, selectedLine
}
