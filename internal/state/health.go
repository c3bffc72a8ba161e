package state

import (
	"fmt"
	"sync"
	"time"
)

// SyncStatus describes how the last background syncs went.
type SyncStatus struct {
	LastSynced          time.Time
	LastAttempt         time.Time
	LastError           error
	ConsecutiveFailures int
}

// IsOffline returns true when the API has been unreachable for multiple polls.
func (s SyncStatus) IsOffline() bool {
	return s.ConsecutiveFailures >= 2
}

// Health records the outcome of each background sync round.
type Health struct {
	mu     sync.RWMutex
	status SyncStatus
}

// Record stores the result of one sync round. A non-nil err keeps LastSynced
// and bumps the failure count.
func (h *Health) Record(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	h.status.LastAttempt = now
	if err != nil {
		h.status.LastError = err
		h.status.ConsecutiveFailures++
		return
	}
	h.status.LastError = nil
	h.status.LastSynced = now
	h.status.ConsecutiveFailures = 0
}

// Reset forgets all recorded rounds.
func (h *Health) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = SyncStatus{}
}

// Status returns a copy of the current status.
func (h *Health) Status() SyncStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := h.status
	if h.status.LastError != nil {
		status.LastError = fmt.Errorf("%w", h.status.LastError)
	}
	return status
}
