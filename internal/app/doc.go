// Package app is basket's composition root.
//
// # Components
//
//   - session.go: Session, one instance of each store (cart, favorites,
//     notifications, tracked products) sharing a change Notifier and a
//     Health record
//   - poller.go: background loop calling Session.Refresh with exponential
//     backoff on consecutive failures
//   - metrics.go: optional Prometheus endpoint
//   - app.go: Run, which wires config, prefs, client, session, poller and UI
//
// # Startup
//
//	Run()
//	  ├─> prefs.Load()          theme, sidebar_open
//	  ├─> NewClient()           shopapi client from config
//	  ├─> NewSession()          stores
//	  ├─> MetricsServer.Start() when metrics_addr is set
//	  ├─> Session.Load()        concurrent initial fetch, failures logged
//	  ├─> StartPoller()         header, unread, tracked every poll_interval
//	  └─> ui.Run()              blocks until quit
//
// # Polling
//
// Each round refreshes the cart header, which re-anchors the local countdown
// to the server value, plus the unread and tracked counters. A failed round
// doubles the wait (poll_interval, 2x, 4x, ...) up to five minutes and the
// next success returns to the configured cadence.
//
// Store construction is explicit. Nothing in this package or below keeps
// package-level state apart from the Prometheus collectors.
package app
