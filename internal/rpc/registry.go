package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// Caller identifies who invoked a procedure.
type Caller struct {
	UserID    string
	ClientID  string
	Transport string
}

// Handler executes a named procedure. Returned errors surface to the client
// as an internal fault envelope; business refusals should be encoded in the
// result payload instead.
type Handler func(ctx context.Context, caller Caller, data json.RawMessage) (json.RawMessage, error)

// UnknownMethodError is returned when no procedure is registered under the
// requested name.
type UnknownMethodError struct {
	Method string
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("Unknown RPC method: %s", e.Method)
}

// Registry is a fixed set of named procedures. All registration happens at
// startup; Dispatch is read-only and safe for concurrent use.
type Registry struct {
	handlers map[string]Handler
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register binds a procedure name to its handler. Registering the same name
// twice replaces the earlier handler.
func (r *Registry) Register(name string, handler Handler) {
	r.handlers[name] = handler
}

// Dispatch runs the named procedure.
func (r *Registry) Dispatch(ctx context.Context, name string, caller Caller, data json.RawMessage) (json.RawMessage, error) {
	handler, ok := r.handlers[name]
	if !ok {
		return nil, &UnknownMethodError{Method: name}
	}
	r.logger.Debug("dispatching rpc",
		zap.String("method", name),
		zap.String("user", caller.UserID),
		zap.String("client", caller.ClientID))
	return handler(ctx, caller, data)
}
