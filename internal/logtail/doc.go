// Package logtail reads the tail of basket's own JSON log for the logs
// subcommand.
//
// Read keeps a ring buffer of maxLines entries, so a large file is scanned
// once in O(maxLines) memory and entries come back oldest first. The level
// filter is applied before an entry enters the ring, so "the last 50 warnings"
// means exactly that rather than "warnings among the last 50 lines".
//
// Lines are decoded with the zerolog field names (level, time, message) plus
// the cmp component field set by the logging package. Lines that are not JSON
// are passed through unchanged by Format.
//
// A missing log file is not an error; Read returns no entries.
package logtail
