package bus

import "time"

// EventBus is a synchronous, in-process pub/sub bus.
//
// Handlers subscribe by Event.Type() and run in the publisher's goroutine in
// subscription order. Handler errors are joined and returned from Publish.
// Observers see every delivery.
//
// Handlers may publish, subscribe or cancel subscriptions from inside a delivery;
// the set of handlers for one Publish is fixed when it starts, but a handler
// cancelled mid-delivery is not invoked afterwards.
type EventBus interface {
	// Publish delivers the event to subscribers of event.Type().
	Publish(event Event) error
	// Subscribe registers a handler for an event type.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// AddObserver registers an observer to receive delivery callbacks.
	AddObserver(obs EventBusObserver)
}

// Event is an immutable message transported by the EventBus.
type Event interface {
	Type() string
	// Source names the publisher.
	Source() string
	Data() any
}

type (
	// EventHandler is invoked per delivered event. Errors are aggregated by Publish.
	EventHandler func(event Event) error
)

// Subscription represents a registered handler bound to an event type.
type Subscription interface {
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

// EventBusObserver is notified after every delivery.
type EventBusObserver interface {
	OnDelivered(eventType string, handlers int, err error, duration time.Duration)
}
