package outbox

import (
	"sync"
	"time"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

func (s breakerState) String() string {
	switch s {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// breaker приостанавливает публикацию, когда брокер подряд отклоняет события.
// После resetTimeout пропускается одно пробное событие: успех закрывает
// breaker, ошибка снова открывает его.
type breaker struct {
	mu           sync.Mutex
	maxFailures  int
	resetTimeout time.Duration
	now          func() time.Time

	failures int
	openedAt time.Time
	state    breakerState
}

func newBreaker(maxFailures int, resetTimeout time.Duration, now func() time.Time) *breaker {
	return &breaker{
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		now:          now,
	}
}

// allow сообщает, можно ли публиковать следующее событие.
func (b *breaker) allow() bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != breakerOpen {
		return true
	}
	if b.now().Sub(b.openedAt) < b.resetTimeout {
		return false
	}
	b.state = breakerHalfOpen
	return true
}

func (b *breaker) success() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.state = breakerClosed
}

// failure учитывает ошибку и возвращает true, если breaker только что открылся.
func (b *breaker) failure() bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	if b.state == breakerOpen {
		return false
	}
	if b.state == breakerHalfOpen || b.failures >= b.maxFailures {
		b.state = breakerOpen
		b.openedAt = b.now()
		return true
	}
	return false
}

func (b *breaker) current() breakerState {
	if b == nil {
		return breakerClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
