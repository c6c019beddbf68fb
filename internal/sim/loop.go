// Package sim drives a fleet from a single goroutine.
package sim

import (
	"context"
	"errors"
	"time"

	"github.com/zeusync/orbitfleet/internal/core/observability/log"
	"github.com/zeusync/orbitfleet/internal/fleet"
)

var ErrStopped = errors.New("sim: loop stopped")

const inboxSize = 64

// TickHook runs on the loop goroutine after every fleet tick.
type TickHook func(elapsed time.Duration)

// Loop owns a fleet. Everything that touches the fleet after Run starts must
// go through Post or Do.
type Loop struct {
	fleet  *fleet.Fleet
	rate   time.Duration
	logger log.Log
	hooks  []TickHook

	inbox chan func()
	done  chan struct{}
	now   func() time.Time
}

// New creates a loop ticking f every rate.
func New(f *fleet.Fleet, rate time.Duration, logger log.Log, hooks ...TickHook) *Loop {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Loop{
		fleet:  f,
		rate:   rate,
		logger: logger.With(log.String("component", "sim")),
		hooks:  hooks,
		inbox:  make(chan func(), inboxSize),
		done:   make(chan struct{}),
		now:    time.Now,
	}
}

// Fleet returns the driven fleet. Only use it from posted closures once Run
// has started.
func (l *Loop) Fleet() *fleet.Fleet { return l.fleet }

// Step ticks the fleet by dt and runs the hooks.
func (l *Loop) Step(dt time.Duration) {
	l.fleet.Tick(dt)
	for _, hook := range l.hooks {
		hook(dt)
	}
}

// Post queues fn to run on the loop goroutine.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrStopped
	default:
	}
	select {
	case l.inbox <- fn:
		return nil
	case <-l.done:
		return ErrStopped
	}
}

// Do runs fn on the loop goroutine and waits for its result.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	if err := l.Post(func() { result <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-l.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run ticks the fleet until ctx is cancelled. Elapsed time is measured
// between ticks, so a late tick advances the ships further. Run must be
// called once.
func (l *Loop) Run(ctx context.Context) error {
	if l.rate <= 0 {
		return errors.New("sim: tick rate must be positive")
	}
	defer close(l.done)

	ticker := time.NewTicker(l.rate)
	defer ticker.Stop()

	l.logger.Info("loop started", log.Duration("tick_rate", l.rate), log.Int("ships", l.fleet.Count()))
	last := l.now()
	for {
		select {
		case <-ctx.Done():
			l.drain()
			l.logger.Info("loop stopped", log.Int("ships", l.fleet.Count()))
			return nil
		case fn := <-l.inbox:
			fn()
		case <-ticker.C:
			now := l.now()
			l.Step(now.Sub(last))
			last = now
		}
	}
}

// drain runs closures that were queued before shutdown.
func (l *Loop) drain() {
	for {
		select {
		case fn := <-l.inbox:
			fn()
		default:
			return
		}
	}
}
