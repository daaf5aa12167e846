package protocol

import "context"

// HandlerFunc implements one tool. params is the raw JSON arguments
// object; the handler is responsible for its own unmarshaling and
// validation, returning ErrInvalidParams on malformed input.
type HandlerFunc func(ctx context.Context, params []byte) (result any, warnings []string, err error)

// Dispatcher maps tool names to handlers, entirely pure: registration
// order doesn't matter and the same request always dispatches to the same
// handler.
type Dispatcher struct {
	handlers map[string]HandlerFunc
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]HandlerFunc)}
}

// Register binds name to fn. Re-registering a name replaces the handler.
func (d *Dispatcher) Register(name string, fn HandlerFunc) {
	d.handlers[name] = fn
}

// Dispatch resolves req (unwrapping tools/call), invokes the matching
// handler, and assembles the response envelope — including the blocked/
// error mapping — never panicking on handler error.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Response {
	name, params, err := req.resolve()
	if err != nil {
		blocked, result, detail := MapError(err)
		return Response{RequestID: req.ID, OK: false, Blocked: blocked, Result: result, Error: detail}
	}

	handler, ok := d.handlers[name]
	if !ok {
		blocked, result, detail := MapError(ErrUnknownTool)
		return Response{RequestID: req.ID, OK: false, Blocked: blocked, Result: result, Error: detail}
	}

	result, warnings, err := handler(ctx, params)
	if err != nil {
		blocked, blockedResult, detail := MapError(err)
		return Response{RequestID: req.ID, OK: false, Blocked: blocked, Result: blockedResult, Warnings: warnings, Error: detail}
	}

	return Response{RequestID: req.ID, OK: true, Result: result, Warnings: warnings}
}
