package security

import (
	"sync"
)

type addressSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// SuspiciousLoginDetector tracks the distinct addresses each account has
// authenticated from and flags accounts that exceed the fan-out threshold.
//
// Sets only grow: there is no decay, so an account stays flagged for the
// life of the process. That is a policy choice, see DESIGN.md.
type SuspiciousLoginDetector struct {
	mu       sync.Mutex
	accounts map[string]*addressSet

	threshold int
}

// NewSuspiciousLoginDetector creates a detector that flags accounts seen
// from more than threshold distinct addresses.
func NewSuspiciousLoginDetector(threshold int) *SuspiciousLoginDetector {
	return &SuspiciousLoginDetector{
		accounts:  make(map[string]*addressSet),
		threshold: threshold,
	}
}

func (d *SuspiciousLoginDetector) setFor(email string) *addressSet {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, ok := d.accounts[email]
	if !ok {
		s = &addressSet{seen: make(map[string]struct{})}
		d.accounts[email] = s
	}
	return s
}

// RecordAndCheck adds address to the account's set and reports whether
// the set now holds more distinct addresses than the threshold.
func (d *SuspiciousLoginDetector) RecordAndCheck(email, address string) bool {
	s := d.setFor(email)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen[address] = struct{}{}
	return len(s.seen) > d.threshold
}

// DistinctAddresses returns how many addresses have been seen for email
func (d *SuspiciousLoginDetector) DistinctAddresses(email string) int {
	d.mu.Lock()
	s, ok := d.accounts[email]
	d.mu.Unlock()
	if !ok {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.seen)
}
