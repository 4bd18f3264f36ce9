// Package circuitbreaker stops calling a dependency after a run of
// consecutive failures and tries it again once a cooldown has passed.
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrOpen          = errors.New("circuit breaker is open")
	ErrTrialInFlight = errors.New("circuit breaker trial call already in flight")
)

type State int

const (
	Closed State = iota
	HalfOpen
	Open
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case HalfOpen:
		return "half-open"
	case Open:
		return "open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Config struct {
	// FailureThreshold consecutive failures open the breaker. Default 5.
	FailureThreshold int
	// Cooldown is how long the breaker stays open before a trial call. Default 30s.
	Cooldown time.Duration
	// IsFailure decides which errors count. Context cancellation never
	// counts. Default: every other non-nil error.
	IsFailure func(error) bool

	OnStateChange func(name string, from, to State)
	Logger        *zap.Logger
	Now           func() time.Time
}

// Stats is a point-in-time view of the breaker.
type Stats struct {
	State               State
	ConsecutiveFailures int
	Successes           uint64
	Failures            uint64
	Rejected            uint64
}

type Breaker struct {
	name string
	cfg  Config

	mu       sync.Mutex
	state    State
	openedAt time.Time
	probing  bool
	stats    Stats
}

func New(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Breaker{name: name, cfg: cfg}
}

func (b *Breaker) Name() string {
	return b.name
}

// Execute runs fn unless the breaker is open. While half-open a single trial call
// is let through. A panic in fn counts as a failure and is re-raised.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	trial, err := b.admit()
	if err != nil {
		return err
	}

	done := false
	defer func() {
		if !done {
			b.record(trial, errors.New("panic"))
		}
	}()

	err = fn(ctx)
	done = true
	b.record(trial, err)
	return err
}

func (b *Breaker) admit() (trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open && !b.cfg.Now().Before(b.openedAt.Add(b.cfg.Cooldown)) {
		b.transition(HalfOpen)
	}

	switch b.state {
	case Open:
		b.stats.Rejected++
		return false, ErrOpen
	case HalfOpen:
		if b.probing {
			b.stats.Rejected++
			return false, ErrTrialInFlight
		}
		b.probing = true
		return true, nil
	}
	return false, nil
}

func (b *Breaker) record(trial bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if trial {
		b.probing = false
	}

	if !b.countsAsFailure(err) {
		if err == nil {
			b.stats.Successes++
			b.stats.ConsecutiveFailures = 0
			if trial {
				b.transition(Closed)
			}
		}
		return
	}

	b.stats.Failures++
	b.stats.ConsecutiveFailures++
	if trial || (b.state == Closed && b.stats.ConsecutiveFailures >= b.cfg.FailureThreshold) {
		b.openedAt = b.cfg.Now()
		b.transition(Open)
	}
}

func (b *Breaker) countsAsFailure(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if b.cfg.IsFailure != nil {
		return b.cfg.IsFailure(err)
	}
	return true
}

// transition must be called with mu held.
func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.stats.State = to

	b.cfg.Logger.Info("Circuit breaker state changed",
		zap.String("name", b.name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.Int("consecutive_failures", b.stats.ConsecutiveFailures),
	)
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}

// Reset closes the breaker and clears the failure run. Counters are kept.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.stats.ConsecutiveFailures = 0
	b.probing = false
	b.transition(Closed)
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Open && !b.cfg.Now().Before(b.openedAt.Add(b.cfg.Cooldown)) {
		return HalfOpen
	}
	return b.state
}

func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.stats
}
