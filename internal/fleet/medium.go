package fleet

import (
	"fmt"

	"github.com/zeusync/orbitfleet/internal/core/observability/log"
)

// Handler consumes a delivered Message.
type Handler func(msg Message)

// Medium is an external event source ships can listen to. Supports reports
// whether the medium advertises the named event in its message style set.
type Medium interface {
	Name() string
	Supports(event string) bool
}

// Subscriber is the capability a Medium needs before ships can bind to it.
type Subscriber interface {
	On(event string, handler Handler) (Subscription, error)
}

// Subscription is a live handler registration on a medium.
type Subscription interface {
	Cancel() error
}

// Binding asks for a ship to listen to Events on Medium.
type Binding struct {
	Medium Medium
	Events []string
}

func validateBindings(bindings []Binding) error {
	for i, b := range bindings {
		if b.Medium == nil {
			return fmt.Errorf("%w: binding %d has no medium", ErrInvalidSubscription, i)
		}
		if _, ok := b.Medium.(Subscriber); !ok {
			return fmt.Errorf("%w: medium %q cannot be subscribed to", ErrInvalidSubscription, b.Medium.Name())
		}
	}
	return nil
}

// bind subscribes the ship's receiver to every supported event. Unsupported
// events are skipped with a warning. On a subscribe failure the subscriptions
// made so far are kept on the ship so the caller can cancel them.
func (s *Ship) bind(bindings []Binding) error {
	for _, b := range bindings {
		sub := b.Medium.(Subscriber)
		for _, event := range b.Events {
			if event == "" || !b.Medium.Supports(event) {
				s.fleet.logger.Warn("medium does not support event",
					log.String("medium", b.Medium.Name()),
					log.String("event", event),
					log.String("ship", s.id),
				)
				continue
			}
			handle, err := sub.On(event, s.Receive)
			if err != nil {
				return fmt.Errorf("%w: medium %q event %q: %w", ErrInvalidSubscription, b.Medium.Name(), event, err)
			}
			s.subs = append(s.subs, handle)
		}
	}
	return nil
}

func (s *Ship) unbind() {
	for _, sub := range s.subs {
		if err := sub.Cancel(); err != nil {
			s.fleet.logger.Warn("cancel subscription", log.String("ship", s.id), log.Error(err))
		}
	}
	s.subs = nil
}
