// Package notifications keeps the notification inbox and unread badge in
// sync with the server.
//
// Mark-read, mark-all-read, delete and clear-all apply locally before the
// request is sent and are undone if it fails. The unread counter moves with
// them. Undo is skipped when a fetch replaced the inbox in the meantime,
// since the fetched copy already reflects the server.
package notifications
