// Package ui is basket's terminal interface, built on Bubble Tea.
//
// # Layout
//
//	┌───────────────────────────────────────────────────────────────┐
//	│ basket  ⏱ 1:58:12 3 items  ♥ 4  2 unread  tracking 7  synced  │  header
//	│ Cart  Favorites (4)  Inbox (2)                                │  tabs
//	│                                                               │
//	│  body: sidebar groups, favorites or notifications             │
//	│                                                               │
//	│ flash message / theme name                                    │  footer
//	│ tab next tab • j/↓ down • + qty +1 • ...                      │  help
//	└───────────────────────────────────────────────────────────────┘
//
// # Data Flow
//
// The model holds no copies of server data. View reads the stores directly
// (they are safe for concurrent use) and the model re-renders whenever the
// session's change Notifier fires; every cart countdown tick notifies, so the
// header timer moves once a second without a UI-side ticker.
//
// Store calls run as tea.Cmds off the UI goroutine. Their outcome comes back
// as an actionMsg and is shown in the footer for a few seconds. Because the
// stores apply optimistic changes and roll them back themselves, the UI never
// patches state on its own.
//
// # Panels
//
// Entering the cart tab marks the cart sidebar open and fetches it when none
// is held; entering the inbox opens the notification dropdown and fetches the
// inbox on first use. Leaving either marks it closed. Whether the cart tab was
// showing is saved to prefs (sidebar_open) together with the theme.
//
// # Themes
//
// Nightfox, Kanagawa and Slate, cycled with t.
package ui
