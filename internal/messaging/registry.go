package messaging

import (
	"context"
	"fmt"
)

// HandlerFunc processes one inbound event payload. A plain error is treated
// as transient and the delivery is retried; wrap with model.Permanent to
// reject the delivery for good.
type HandlerFunc func(ctx context.Context, payload []byte) error

// HandlerRegistry maps routing keys to their handlers.
type HandlerRegistry struct {
	handlers map[string]HandlerFunc
}

// NewHandlerRegistry creates an empty registry.
func NewHandlerRegistry() *HandlerRegistry {
	return &HandlerRegistry{handlers: make(map[string]HandlerFunc)}
}

// Register binds handler to routingKey. Registering the same key twice is a
// wiring bug and fails.
func (r *HandlerRegistry) Register(routingKey string, handler HandlerFunc) error {
	if _, ok := r.handlers[routingKey]; ok {
		return fmt.Errorf("handler already registered for %s", routingKey)
	}

	r.handlers[routingKey] = handler

	return nil
}

// Lookup returns the handler for routingKey, if any.
func (r *HandlerRegistry) Lookup(routingKey string) (HandlerFunc, bool) {
	handler, ok := r.handlers[routingKey]
	return handler, ok
}
