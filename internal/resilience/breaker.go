package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrBreakerOpen is returned while a tool's breaker rejects calls.
var ErrBreakerOpen = eris.New("oracle circuit breaker is open")

// Breaker stops calling a tool after consecutive failures. Once the
// cooldown has elapsed exactly one probe call is let through; other callers
// are rejected until the probe records its result.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	failures int
	openedAt time.Time
	open     bool
	probing  bool

	now func() time.Time
}

// NewBreaker creates a Breaker. Non-positive values select 5 failures and
// a 30s cooldown.
func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{name: name, threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Open reports whether calls are currently rejected.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open && (b.probing || b.now().Sub(b.openedAt) < b.cooldown)
}

// allow admits a call. After the cooldown the first caller becomes the
// probe.
func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open {
		return true
	}
	if b.probing || b.now().Sub(b.openedAt) < b.cooldown {
		return false
	}
	b.probing = true
	return true
}

// Call runs fn through the breaker.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if !b.allow() {
		return zero, eris.Wrap(ErrBreakerOpen, b.name)
	}
	val, err := fn(ctx)
	b.record(err)
	return val, err
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false

	if err == nil {
		if b.open {
			zap.L().Info("oracle breaker closed", zap.String("tool", b.name))
		}
		b.failures = 0
		b.open = false
		return
	}

	b.failures++
	if b.open || b.failures >= b.threshold {
		if !b.open {
			zap.L().Warn("oracle breaker opened",
				zap.String("tool", b.name),
				zap.Int("failures", b.failures),
				zap.Error(err))
		}
		b.open = true
		b.openedAt = b.now()
	}
}
