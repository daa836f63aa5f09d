package rpc

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// fallbackLine is written when a response cannot be encoded.
var fallbackLine = []byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"Failed to encode response"}}` + "\n")

// Server runs the framing loop: one request per input line, one response per
// output line, strictly in order.
type Server struct {
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewServer creates a framing loop around d.
func NewServer(d *Dispatcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{dispatcher: d, logger: logger}
}

// Serve reads requests from r and writes responses to w until r reaches end
// of stream (returns nil), ctx is cancelled between requests (returns the
// context error) or the transport itself fails.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	reader := bufio.NewReader(r)
	writer := bufio.NewWriter(w)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, readErr := reader.ReadBytes('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return fmt.Errorf("failed to read input: %w", readErr)
		}

		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			resp := s.handleLine(ctx, trimmed)
			if err := s.write(writer, resp); err != nil {
				return err
			}
		}

		if readErr != nil {
			return nil
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line []byte) *Response {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.logger.Warn(fmt.Sprintf("%s - malformed message: %v", logPrefix, err))
		code := CodeParseError
		var id json.RawMessage
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			// The object parsed, so the id (if any) was decoded.
			code = CodeInvalidRequest
			id = req.ID
		}
		return errorResponse(id, &Error{
			Kind:    KindMalformedMessage,
			Code:    code,
			Message: fmt.Sprintf("Parse error: %v", err),
			err:     err,
		})
	}
	return s.dispatcher.Dispatch(ctx, &req)
}

func (s *Server) write(w *bufio.Writer, resp *Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error(fmt.Sprintf("%s - failed to marshal response: %v", logPrefix, err))
		payload = fallbackLine
	} else {
		payload = append(payload, '\n')
	}

	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush response: %w", err)
	}
	return nil
}
