// Package events provides generic, typed event emitters. Build progress (pass started, pass completed, build
// finished) is published through them.
package events

import (
	"reflect"
	"sync"
)

// EventHandler defines a function type where its input type is the generic type. A returned error stops the
// publishing of the event and is returned by Publish.
type EventHandler[T any] func(T) error

var (
	// globalEventHandlers maps an event type to the handlers subscribed to every event of that type.
	globalEventHandlers = make(map[reflect.Type][]any)

	// globalEventHandlersLock synchronizes access to globalEventHandlers.
	globalEventHandlersLock sync.RWMutex
)

// SubscribeAny adds an EventHandler invoked for every event of the generic type published by any EventEmitter.
// Handlers subscribed here remain for the lifetime of the process.
func SubscribeAny[T any](callback EventHandler[T]) {
	eventType := reflect.TypeOf((*T)(nil)).Elem()

	globalEventHandlersLock.Lock()
	defer globalEventHandlersLock.Unlock()
	globalEventHandlers[eventType] = append(globalEventHandlers[eventType], callback)
}

// EventEmitter describes a provider which can subscribe EventHandler methods for callback when the event type
// (generic) is published. It additionally provides methods for publishing events. The zero value is ready to use.
type EventEmitter[T any] struct {
	// subscriptions defines the EventHandler methods invoked when a new event is published to this emitter.
	subscriptions []EventHandler[T]

	// lock synchronizes access to subscriptions.
	lock sync.RWMutex
}

// Subscribe adds an EventHandler to the list of subscribed EventHandler objects for this emitter.
func (e *EventEmitter[T]) Subscribe(callback EventHandler[T]) {
	e.lock.Lock()
	defer e.lock.Unlock()
	e.subscriptions = append(e.subscriptions, callback)
}

// Publish emits the provided event to the handlers subscribed to this emitter, then to the handlers subscribed to
// the event type globally. Returns the first error a handler returns.
func (e *EventEmitter[T]) Publish(event T) error {
	e.lock.RLock()
	subscriptions := append([]EventHandler[T](nil), e.subscriptions...)
	e.lock.RUnlock()

	for _, subscription := range subscriptions {
		if err := subscription(event); err != nil {
			return err
		}
	}

	globalEventHandlersLock.RLock()
	callbacks := append([]any(nil), globalEventHandlers[reflect.TypeOf((*T)(nil)).Elem()]...)
	globalEventHandlersLock.RUnlock()

	for _, callback := range callbacks {
		if err := callback.(EventHandler[T])(event); err != nil {
			return err
		}
	}
	return nil
}
