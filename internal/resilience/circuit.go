package resilience

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// State is the position of a Breaker.
type State int

const (
	// Closed lets every call through and counts outcomes.
	Closed State = iota
	// Open skips the guarded dependency until the cool-off has passed.
	Open
	// HalfOpen lets a single trial call through.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes a Breaker. Zero fields take the defaults below.
type BreakerConfig struct {
	// Target names the guarded dependency in metrics and logs.
	Target string
	// MinCalls is the number of outcomes needed before the breaker may open.
	MinCalls int
	// FailureRatio opens the breaker once failures/calls reaches it.
	FailureRatio float64
	// CoolOff is how long the breaker stays open before a trial call.
	CoolOff time.Duration
	Logger  *zerolog.Logger
	Now     func() time.Time
}

// Breaker guards an optional dependency such as the settings cache. While open,
// callers skip the dependency and use their fallback path.
type Breaker struct {
	cfg BreakerConfig

	mu       sync.Mutex
	state    State
	calls    int
	failures int
	openedAt time.Time
	trial    bool
}

// NewBreaker builds a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	cfg.Target = strings.TrimSpace(cfg.Target)
	if cfg.Target == "" {
		cfg.Target = "default"
	}
	if cfg.MinCalls <= 0 {
		cfg.MinCalls = 5
	}
	if cfg.FailureRatio <= 0 || cfg.FailureRatio > 1 {
		cfg.FailureRatio = 0.5
	}
	if cfg.CoolOff <= 0 {
		cfg.CoolOff = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	b := &Breaker{cfg: cfg}
	BreakerState.WithLabelValues(cfg.Target).Set(gaugeValue(Closed))
	return b
}

// State returns the current state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether the caller may use the dependency now. After the
// cool-off one trial call is allowed; later callers are refused until that trial
// reports back.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Closed:
		return true
	case Open:
		if b.cfg.Now().Sub(b.openedAt) < b.cfg.CoolOff {
			return false
		}
		b.moveLocked(ctx, HalfOpen)
		b.trial = true
		return true
	default:
		if b.trial {
			return false
		}
		b.trial = true
		return true
	}
}

// Report records the outcome of a call that Allow let through.
func (b *Breaker) Report(ctx context.Context, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Open:
		return
	case HalfOpen:
		b.trial = false
		if ok {
			b.moveLocked(ctx, Closed)
		} else {
			b.moveLocked(ctx, Open)
		}
		return
	}
	b.calls++
	if !ok {
		b.failures++
	}
	if b.calls < b.cfg.MinCalls {
		return
	}
	if float64(b.failures)/float64(b.calls) >= b.cfg.FailureRatio {
		b.moveLocked(ctx, Open)
		return
	}
	// keep the window recent
	if b.calls >= 4*b.cfg.MinCalls {
		b.calls /= 2
		b.failures /= 2
	}
}

func (b *Breaker) moveLocked(ctx context.Context, next State) {
	prev := b.state
	if prev == next {
		return
	}
	b.state = next
	b.calls, b.failures = 0, 0
	if next == Open {
		b.openedAt = b.cfg.Now()
		BreakerOpenedTotal.WithLabelValues(b.cfg.Target).Inc()
	}
	BreakerState.WithLabelValues(b.cfg.Target).Set(gaugeValue(next))
	BreakerTransitions.WithLabelValues(b.cfg.Target, prev.String(), next.String()).Inc()

	evt := b.logger(ctx).Info()
	if next == Open {
		evt = b.logger(ctx).Warn().Dur("cool_off", b.cfg.CoolOff)
	}
	if span := trace.SpanContextFromContext(ctx); span.IsValid() {
		evt = evt.Str("trace_id", span.TraceID().String())
	}
	evt.Str("target", b.cfg.Target).Str("from_state", prev.String()).Str("to_state", next.String()).Msg("breaker state changed")
}

func (b *Breaker) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	if b.cfg.Logger != nil {
		return b.cfg.Logger
	}
	nop := zerolog.Nop()
	return &nop
}

func gaugeValue(s State) float64 {
	switch s {
	case Open:
		return 1
	case HalfOpen:
		return 2
	default:
		return 0
	}
}
