package state

import "sync"

// Ticket identifies one outstanding read.
type Ticket struct {
	epoch uint64
	seq   uint64
}

// Sequencer decides whether a response may still be applied. Every read takes
// a Ticket before its network call; Invalidate (on reset or expiry) moves the
// epoch on so that tickets issued earlier are refused.
type Sequencer struct {
	mu      sync.Mutex
	epoch   uint64
	issued  uint64
	applied uint64
}

// Issue hands out a ticket newer than every ticket issued before it.
func (s *Sequencer) Issue() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return Ticket{epoch: s.epoch, seq: s.issued}
}

// Accept reports whether a response for t may be applied and, if so, marks it
// as the newest applied response. Responses older than one already applied,
// or from a previous epoch, are refused.
func (s *Sequencer) Accept(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.epoch != s.epoch || t.seq <= s.applied {
		return false
	}
	s.applied = t.seq
	return true
}

// Current reports whether t belongs to the current epoch.
func (s *Sequencer) Current(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.epoch == s.epoch
}

// Invalidate refuses every ticket issued so far.
func (s *Sequencer) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
}
