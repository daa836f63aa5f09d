// Package rpc implements newline-delimited JSON-RPC 2.0 over a byte stream:
// framing, a registry of typed method handlers and a dispatcher that turns
// every handler failure into an error response.
package rpc

import "encoding/json"

// Version is the only accepted value of the jsonrpc member.
const Version = "2.0"

// JSON-RPC error codes. The -3200x range is server-defined.
const (
	CodeParseError        = -32700
	CodeInvalidRequest    = -32600
	CodeMethodNotFound    = -32601
	CodeInvalidParams     = -32602
	CodeInternalError     = -32603
	CodeRejectedStatement = -32001
	CodeAdapterFailure    = -32002
	CodePermissionDenied  = -32003
)

// Request is one decoded input line. ID is kept raw so it is echoed exactly.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response carries exactly one of Result or Error. A nil ID encodes as null.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

// ErrorObject is the wire form of an error.
type ErrorObject struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// ErrorData exposes the classification of an error to callers.
type ErrorData struct {
	Classification string `json:"classification"`
	Retryable      bool   `json:"retryable"`
}

func errorResponse(id json.RawMessage, err *Error) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Error:   err.Object(),
	}
}
