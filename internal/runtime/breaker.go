package runtime

import (
	"sync"
	"time"
)

// BreakerState is one of the three states a per-tool breaker can be in.
type BreakerState string

const (
	StateClosed   BreakerState = "closed"
	StateOpen     BreakerState = "open"
	StateHalfOpen BreakerState = "half_open"
)

type breakerEntry struct {
	state             BreakerState
	consecutiveFails  int
	successCount      int
	lastFailureTime   time.Time
	tripCount         int
}

// BreakerStatus is a read-only snapshot of one tool's breaker.
type BreakerStatus struct {
	State            BreakerState
	ConsecutiveFails int
	SuccessCount     int
	TripCount        int
}

// CircuitBreaker tracks one three-state automaton per tool name. A tool
// never seen before is CLOSED by default without allocation until first
// failure or lookup (spec.md §4.3).
type CircuitBreaker struct {
	mu        sync.Mutex
	threshold int
	timeout   time.Duration
	tools     map[string]*breakerEntry
}

// NewCircuitBreaker creates a breaker that trips after threshold
// consecutive failures and probes recovery after timeout.
func NewCircuitBreaker(threshold int, timeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		threshold: threshold,
		timeout:   timeout,
		tools:     make(map[string]*breakerEntry),
	}
}

func (b *CircuitBreaker) get(tool string) *breakerEntry {
	e, ok := b.tools[tool]
	if !ok {
		e = &breakerEntry{state: StateClosed}
		b.tools[tool] = e
	}
	return e
}

// CanCall reports whether tool may be invoked right now, performing lazy
// OPEN -> HALF_OPEN promotion when the timeout has elapsed.
func (b *CircuitBreaker) CanCall(tool string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.get(tool)

	switch e.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(e.lastFailureTime) >= b.timeout {
			e.state = StateHalfOpen
			return true
		}
		return false
	default: // HALF_OPEN: one probe permitted
		return true
	}
}

// RecordSuccess records a successful call; resets the breaker from
// HALF_OPEN to CLOSED, or clears the failure streak from CLOSED.
func (b *CircuitBreaker) RecordSuccess(tool string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.get(tool)
	e.successCount++
	if e.state == StateHalfOpen {
		e.state = StateClosed
	}
	e.consecutiveFails = 0
}

// RecordFailure records a failed call and trips the breaker when the
// consecutive-failure threshold is reached (or immediately, from
// HALF_OPEN). Returns true if this call just tripped the breaker.
func (b *CircuitBreaker) RecordFailure(tool string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := b.get(tool)
	e.consecutiveFails++
	e.lastFailureTime = time.Now()

	if e.state == StateHalfOpen {
		e.state = StateOpen
		e.tripCount++
		return true
	}
	if e.state == StateClosed && e.consecutiveFails >= b.threshold {
		e.state = StateOpen
		e.tripCount++
		return true
	}
	return false
}

// Reset clears a single tool's breaker back to its initial state.
func (b *CircuitBreaker) Reset(tool string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tools, tool)
}

// ResetAll clears every tracked breaker.
func (b *CircuitBreaker) ResetAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tools = make(map[string]*breakerEntry)
}

// Status returns a snapshot of every tracked tool's breaker, applying the
// same lazy OPEN -> HALF_OPEN promotion CanCall would.
func (b *CircuitBreaker) Status() map[string]BreakerStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]BreakerStatus, len(b.tools))
	for name, e := range b.tools {
		if e.state == StateOpen && time.Since(e.lastFailureTime) >= b.timeout {
			e.state = StateHalfOpen
		}
		out[name] = BreakerStatus{
			State:            e.state,
			ConsecutiveFails: e.consecutiveFails,
			SuccessCount:     e.successCount,
			TripCount:        e.tripCount,
		}
	}
	return out
}
