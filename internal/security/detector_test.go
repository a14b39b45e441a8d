package security

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuspiciousLoginDetector_FourthDistinctAddressFlags(t *testing.T) {
	d := NewSuspiciousLoginDetector(3)

	assert.False(t, d.RecordAndCheck("a@example.com", "10.0.0.1"))
	assert.False(t, d.RecordAndCheck("a@example.com", "10.0.0.2"))
	assert.False(t, d.RecordAndCheck("a@example.com", "10.0.0.3"))
	assert.True(t, d.RecordAndCheck("a@example.com", "10.0.0.4"))

	// Reusing an old address does not reset the signal.
	assert.True(t, d.RecordAndCheck("a@example.com", "10.0.0.1"))
	assert.Equal(t, 4, d.DistinctAddresses("a@example.com"))
}

func TestSuspiciousLoginDetector_RepeatedAddressIsIdempotent(t *testing.T) {
	d := NewSuspiciousLoginDetector(3)

	for i := 0; i < 10; i++ {
		assert.False(t, d.RecordAndCheck("a@example.com", "10.0.0.1"))
	}
	assert.Equal(t, 1, d.DistinctAddresses("a@example.com"))
}

func TestSuspiciousLoginDetector_AccountsAreIndependent(t *testing.T) {
	d := NewSuspiciousLoginDetector(3)

	for _, ip := range []string{"1.1.1.1", "2.2.2.2", "3.3.3.3", "4.4.4.4"} {
		d.RecordAndCheck("a@example.com", ip)
	}
	assert.False(t, d.RecordAndCheck("b@example.com", "1.1.1.1"))
	assert.Equal(t, 1, d.DistinctAddresses("b@example.com"))
}

func TestSuspiciousLoginDetector_UnknownAccountLookup(t *testing.T) {
	d := NewSuspiciousLoginDetector(3)

	assert.Zero(t, d.DistinctAddresses("nobody@example.com"))
	assert.Empty(t, d.accounts)
}

func TestSuspiciousLoginDetector_Concurrent(t *testing.T) {
	d := NewSuspiciousLoginDetector(3)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			d.RecordAndCheck("a@example.com", []string{"1.1.1.1", "2.2.2.2"}[n%2])
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 2, d.DistinctAddresses("a@example.com"))
}
