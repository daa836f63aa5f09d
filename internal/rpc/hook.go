package rpc

import "context"

// DispatchInfo describes one dispatched call.
type DispatchInfo struct {
	Method    string
	RequestID string
	// TraceID correlates log lines of one dispatch.
	TraceID string
}

// HookToken is returned by OnDispatchStart and handed back to OnDispatchEnd.
type HookToken interface{}

// DispatchHook observes dispatches. Calls are never concurrent.
type DispatchHook interface {
	OnDispatchStart(ctx context.Context, info DispatchInfo) (context.Context, HookToken)
	OnDispatchEnd(ctx context.Context, token HookToken, info DispatchInfo, err *Error)
}
