package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Tab        key.Binding
	ShiftTab   key.Binding
	Refresh    key.Binding

	// Navigation
	Up   key.Binding
	Down key.Binding

	// Cart
	QtyUp    key.Binding
	QtyDown  key.Binding
	Checkout key.Binding
	Favorite key.Binding

	// Shared by every list
	Delete key.Binding

	// Notifications
	MarkRead    key.Binding
	MarkAllRead key.Binding
	ClearAll    key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more keys"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "theme"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "next tab"),
		),
		ShiftTab: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("shift+tab", "previous tab"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "refresh"),
		),

		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),

		QtyUp: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "qty +1"),
		),
		QtyDown: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "qty -1"),
		),
		Checkout: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "checkout"),
		),
		Favorite: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "favorite"),
		),

		Delete: key.NewBinding(
			key.WithKeys("d", "delete"),
			key.WithHelp("d", "remove"),
		),

		MarkRead: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "mark read"),
		),
		MarkAllRead: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "mark all read"),
		),
		ClearAll: key.NewBinding(
			key.WithKeys("X"),
			key.WithHelp("X", "clear all"),
		),
	}
}

// forView enables only the bindings that make sense on the given tab, so the
// help line never advertises a key that does nothing.
func (k keyMap) forView(v View) keyMap {
	onCart := v == ViewCart
	onInbox := v == ViewNotifications
	k.QtyUp.SetEnabled(onCart)
	k.QtyDown.SetEnabled(onCart)
	k.Checkout.SetEnabled(onCart)
	k.Favorite.SetEnabled(onCart)
	k.MarkRead.SetEnabled(onInbox)
	k.MarkAllRead.SetEnabled(onInbox)
	k.ClearAll.SetEnabled(onInbox)
	return k
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Tab, k.Up, k.Down, k.QtyUp, k.QtyDown, k.Delete, k.MarkRead, k.Checkout, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Tab, k.ShiftTab, k.Up, k.Down},
		{k.QtyUp, k.QtyDown, k.Checkout, k.Favorite, k.Delete},
		{k.MarkRead, k.MarkAllRead, k.ClearAll},
		{k.Refresh, k.CycleTheme, k.Help, k.Quit},
	}
}
