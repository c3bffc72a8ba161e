// Package cart holds the time-boxed shopping list.
//
// The list is a server-computed aggregate: groups of items per merchant with
// subtotals, savings and a grand total. The store never derives money values
// itself. Every mutation is followed by a full reconciliation fetch and the
// aggregate is replaced wholesale with whatever the server returns.
//
// Between syncs a local countdown decrements the remaining lifetime once per
// tick. When it reaches zero the store stops the countdown and clears the
// identifier, countdown, items and counts in one step. Any fetch issued before
// that point is discarded if it arrives afterwards, and the same holds across
// Reset.
//
// Failures never change local state: reads keep the previous aggregate and
// mutations return the error to the caller.
package cart
