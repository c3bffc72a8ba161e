package ui

import (
	"errors"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/five82/basket/internal/cart"
	"github.com/five82/basket/internal/favorites"
	"github.com/five82/basket/internal/shopapi"
)

// truncate shortens a string to the given limit, adding an ellipsis if needed.
func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 0 {
		return value
	}
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	if limit <= 1 {
		return string(runes[:limit])
	}
	return string(runes[:limit-1]) + "…"
}

// padRight pads a string with spaces to the given width.
func padRight(s string, width int) string {
	n := len([]rune(s))
	if width <= n {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

// titleCase converts an underscore-separated string to title case.
func titleCase(value string) string {
	parts := strings.Split(strings.TrimSpace(value), "_")
	for i, part := range parts {
		if part == "" {
			continue
		}
		lower := strings.ToLower(part)
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// formatAge renders a server timestamp relative to now; empty when unparseable.
func formatAge(ts time.Time, now time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return humanize.RelTime(ts, now, "ago", "from now")
}

// describeError turns a store error into a short footer message.
func describeError(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, cart.ErrNoActiveList):
		return "no active list"
	case errors.Is(err, cart.ErrInvalidQty):
		return "invalid quantity"
	case errors.Is(err, favorites.ErrPending):
		return "still saving, try again in a moment"
	case errors.Is(err, shopapi.ErrCircuitOpen):
		return "server unavailable, backing off"
	}

	switch shopapi.CodeOf(err) {
	case shopapi.CodeInsufficientCredits:
		return "not enough credits"
	case shopapi.CodeListItemLimit:
		return "shopping list is full"
	}
	var apiErr *shopapi.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Flag("needs_phone") {
			return "add a phone number to your config to check out"
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
	}
	return err.Error()
}

// visibleRange returns the [start, end) window of total rows, at most height
// long, that keeps cursor in view.
func visibleRange(cursor, total, height int) (int, int) {
	if height <= 0 || total <= 0 {
		return 0, 0
	}
	if total <= height {
		return 0, total
	}
	start := cursor - height/2
	if start < 0 {
		start = 0
	}
	if start+height > total {
		start = total - height
	}
	return start, start + height
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
