// Package state provides the synchronization primitives shared by the cart,
// favorites and notification stores.
//
// # Overview
//
// The stores mirror collections the server owns. Network calls are slow and
// may fail, the user expects instant feedback, and responses can arrive
// after the store has moved on. The types here carry the bookkeeping for
// those cases so each store only expresses its own rules.
//
// # Core Types
//
// List:
//   - Ordered collection with Snapshot/Restore for optimistic rollback
//   - Replace marks a server sync; Restore refuses to undo past one
//   - Not synchronized; owned by a store that holds its own mutex
//
// Counter:
//   - Badge value with local Increment/Decrement/Set adjustments
//   - Refresh re-reads the server value behind an in-flight latch; a second
//     refresh while one is pending is dropped, not queued
//   - Reset discards any refresh still in flight
//
// Countdown:
//   - Cancellable repeating tick on its own goroutine
//   - Start always cancels the previous run first, so one run is active
//   - Ticks carry a run id so late ticks from a cancelled run are ignored
//
// Sequencer:
//   - Tickets for reads; Accept refuses responses older than the newest
//     applied one, or issued before the last Invalidate
//
// Notifier:
//   - Coalescing change signal consumed by the UI
//
// Health:
//   - Outcome of the background sync rounds (last error, failure streak)
//
// # Lock Ordering
//
// A store may call Countdown.Start/Stop while holding its own mutex. The
// countdown never calls back into the store while holding its own lock, so
// store mutex before countdown mutex is the only order that occurs.
//
// # Metrics
//
// Rollbacks, discarded stale responses and dropped counter refreshes are
// exported as Prometheus counters (basket_store_rollbacks_total,
// basket_store_stale_responses_total, basket_counter_dropped_refreshes_total).
package state
