package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"runtime/debug"
	"time"

	"github.com/oklog/ulid/v2"
)

const logPrefix = "rpc:dispatch"

// Dispatcher resolves requests against a Registry and invokes handlers one at
// a time. It never returns a nil Response and never lets a failure escape.
type Dispatcher struct {
	registry *Registry
	logger   *slog.Logger
	hook     DispatchHook
	entropy  *ulid.MonotonicEntropy
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for dispatch diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithHook installs a dispatch observer.
func WithHook(hook DispatchHook) Option {
	return func(d *Dispatcher) { d.hook = hook }
}

// NewDispatcher creates a Dispatcher over reg.
func NewDispatcher(reg *Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: reg,
		logger:   slog.Default(),
		entropy:  ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch handles one request and returns its response.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) *Response {
	info := DispatchInfo{
		Method:    req.Method,
		RequestID: string(req.ID),
		TraceID:   ulid.MustNew(ulid.Timestamp(time.Now()), d.entropy).String(),
	}
	d.logger.Debug(fmt.Sprintf("%s - method=%s id=%s", logPrefix, req.Method, info.RequestID),
		slog.String("trace_id", info.TraceID))

	var token HookToken
	if d.hook != nil {
		ctx, token = d.hook.OnDispatchStart(ctx, info)
	}

	result, rpcErr := d.dispatch(ctx, req)

	if d.hook != nil {
		d.hook.OnDispatchEnd(ctx, token, info, rpcErr)
	}

	if rpcErr != nil {
		d.logger.Warn(fmt.Sprintf("%s - method=%s failed: %v", logPrefix, req.Method, rpcErr),
			slog.String("classification", rpcErr.Kind.String()),
			slog.String("trace_id", info.TraceID))
		return errorResponse(req.ID, rpcErr)
	}
	return &Response{JSONRPC: Version, ID: req.ID, Result: result}
}

func (d *Dispatcher) dispatch(ctx context.Context, req *Request) (json.RawMessage, *Error) {
	if req.JSONRPC != Version {
		return nil, &Error{Kind: KindMalformedMessage, Message: "Invalid JSON-RPC version"}
	}
	if req.Method == "" {
		return nil, &Error{Kind: KindMalformedMessage, Message: "Missing method"}
	}

	entry, ok := d.registry.Lookup(req.Method)
	if !ok {
		return nil, Errorf(KindMethodNotFound, "Method not found: %s", req.Method)
	}

	args, err := entry.bind(req.Params)
	if err != nil {
		return nil, AsError(err)
	}

	value, err := d.invoke(ctx, entry, args)
	if err != nil {
		return nil, AsError(err)
	}

	result, err := json.Marshal(value)
	if err != nil {
		return nil, &Error{Kind: KindInternal, Message: fmt.Sprintf("Failed to encode result: %v", err), err: err}
	}
	return result, nil
}

func (d *Dispatcher) invoke(ctx context.Context, entry *Entry, args json.RawMessage) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error(fmt.Sprintf("%s - handler %s panicked: %v", logPrefix, entry.name, r),
				slog.String("stack", string(debug.Stack())))
			err = Errorf(KindInternal, "Internal error in %s", entry.name)
		}
	}()
	return entry.invoke(ctx, args)
}
