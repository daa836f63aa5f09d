package rpc

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for the caller.
type Kind int

const (
	KindInternal Kind = iota
	KindMalformedMessage
	KindMethodNotFound
	KindInvalidParams
	KindRejectedStatement
	KindAdapterFailure
	KindPermissionDenied
)

var kindNames = map[Kind]string{
	KindInternal:          "Internal",
	KindMalformedMessage:  "MalformedMessage",
	KindMethodNotFound:    "MethodNotFound",
	KindInvalidParams:     "InvalidParams",
	KindRejectedStatement: "RejectedStatement",
	KindAdapterFailure:    "AdapterFailure",
	KindPermissionDenied:  "PermissionDenied",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) code() int {
	switch k {
	case KindMalformedMessage:
		return CodeInvalidRequest
	case KindMethodNotFound:
		return CodeMethodNotFound
	case KindInvalidParams:
		return CodeInvalidParams
	case KindRejectedStatement:
		return CodeRejectedStatement
	case KindAdapterFailure:
		return CodeAdapterFailure
	case KindPermissionDenied:
		return CodePermissionDenied
	default:
		return CodeInternalError
	}
}

// Error is a classified failure. Handlers return it (or wrap it) to choose
// the error kind; any other error is reported as KindInternal.
type Error struct {
	Kind      Kind
	Message   string
	Retryable bool
	// Code overrides the code derived from Kind when non-zero.
	Code int
	err  error
}

func (e *Error) Error() string {
	if e.err != nil && e.err.Error() != e.Message {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

// Object converts e to its wire form.
func (e *Error) Object() *ErrorObject {
	code := e.Code
	if code == 0 {
		code = e.Kind.code()
	}
	return &ErrorObject{
		Code:    code,
		Message: e.Message,
		Data: &ErrorData{
			Classification: e.Kind.String(),
			Retryable:      e.Retryable,
		},
	}
}

// Errorf builds a classified error with a formatted message.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies err, using its text as the message.
func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: err.Error(), err: err}
}

// AsError finds the classified error in err's chain, or wraps err as
// KindInternal.
func AsError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	return Wrap(KindInternal, err)
}
