package cart

import (
	"fmt"

	"github.com/five82/basket/internal/shopapi"
)

// Phase is the lifecycle stage of the shopping list.
type Phase int

const (
	// Absent means no list is held.
	Absent Phase = iota
	// Active means the countdown is running.
	Active
	// Expiring means the countdown hit zero; the store clears the list in
	// the same step, so readers normally see Absent right after.
	Expiring
)

func (p Phase) String() string {
	switch p {
	case Absent:
		return "absent"
	case Active:
		return "active"
	case Expiring:
		return "expiring"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Snapshot is a copy of the store's state for rendering.
type Snapshot struct {
	// ListID is zero until the server has reported one.
	ListID     int64
	TTLSeconds *int
	ItemCount  int
	// Sidebar is nil until a sidebar fetch succeeds.
	Sidebar *shopapi.Sidebar
	Loading bool
	// Expired is set when the local countdown cleared the list.
	Expired bool
	Ticking bool
}

// Phase derives the lifecycle stage from the countdown.
func (s Snapshot) Phase() Phase {
	switch {
	case s.TTLSeconds == nil:
		return Absent
	case *s.TTLSeconds > 0:
		return Active
	default:
		return Expiring
	}
}

// IsActive reports a running countdown.
func (s Snapshot) IsActive() bool {
	return s.Phase() == Active
}

// TTL returns the remaining seconds, zero when inactive.
func (s Snapshot) TTL() int {
	if s.TTLSeconds == nil || *s.TTLSeconds < 0 {
		return 0
	}
	return *s.TTLSeconds
}

// TTLFormatted renders the countdown as H:MM:SS, or M:SS under an hour.
func (s Snapshot) TTLFormatted() string {
	return FormatTTL(s.TTL())
}

// FormatTTL renders seconds the way the header badge shows them.
func FormatTTL(seconds int) string {
	if seconds <= 0 {
		return "00:00"
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	sec := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
