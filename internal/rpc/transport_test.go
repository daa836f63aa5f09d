package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, out string) []map[string]any {
	t.Helper()
	var responses []map[string]any
	for _, line := range strings.Split(strings.TrimSuffix(out, "\n"), "\n") {
		if line == "" {
			continue
		}
		var resp map[string]any
		if err := json.Unmarshal([]byte(line), &resp); err != nil {
			t.Fatalf("response line is not JSON: %q: %v", line, err)
		}
		responses = append(responses, resp)
	}
	return responses
}

func TestServe_OneResponsePerRequestInOrder(t *testing.T) {
	const n = 5
	var in strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&in, `{"jsonrpc":"2.0","id":%d,"method":"ping"}`+"\n", i)
	}

	var out bytes.Buffer
	srv := NewServer(testDispatcher(t), quietLogger())
	if err := srv.Serve(context.Background(), strings.NewReader(in.String()), &out); err != nil {
		t.Fatalf("Serve returned %v", err)
	}

	responses := decodeLines(t, out.String())
	if len(responses) != n {
		t.Fatalf("got %d responses, want %d", len(responses), n)
	}
	for i, resp := range responses {
		if resp["id"] != float64(i) {
			t.Errorf("response %d has id %v", i, resp["id"])
		}
		if resp["result"] != "pong" {
			t.Errorf("response %d result = %v", i, resp["result"])
		}
	}
}

func TestServe_MalformedLinesDoNotStopTheLoop(t *testing.T) {
	in := strings.Join([]string{
		`{not json`,
		``,
		`   `,
		`[{"jsonrpc":"2.0","id":1,"method":"ping"}]`,
		`{"jsonrpc":"2.0","id":"x","method":"dropTable"}`,
		`{"jsonrpc":"2.0","id":2,"method":"ping"}`,
	}, "\n")

	var out bytes.Buffer
	srv := NewServer(testDispatcher(t), quietLogger())
	if err := srv.Serve(context.Background(), strings.NewReader(in), &out); err != nil {
		t.Fatalf("Serve returned %v", err)
	}

	responses := decodeLines(t, out.String())
	if len(responses) != 4 {
		t.Fatalf("got %d responses, want 4: %s", len(responses), out.String())
	}

	parseErr := responses[0]["error"].(map[string]any)
	if parseErr["code"] != float64(CodeParseError) || responses[0]["id"] != nil {
		t.Errorf("unexpected parse error response: %v", responses[0])
	}
	batchErr := responses[1]["error"].(map[string]any)
	if batchErr["code"] != float64(CodeInvalidRequest) {
		t.Errorf("unexpected batch response: %v", responses[1])
	}
	notFound := responses[2]["error"].(map[string]any)
	if notFound["code"] != float64(CodeMethodNotFound) || responses[2]["id"] != "x" {
		t.Errorf("unexpected method-not-found response: %v", responses[2])
	}
	// Last line has no trailing newline and must still be answered.
	if responses[3]["result"] != "pong" {
		t.Errorf("unexpected final response: %v", responses[3])
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestServe_WriteFailureIsFatal(t *testing.T) {
	srv := NewServer(testDispatcher(t), quietLogger())
	err := srv.Serve(context.Background(),
		strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n"), failingWriter{})
	if err == nil || !strings.Contains(err.Error(), "broken pipe") {
		t.Fatalf("expected write failure, got %v", err)
	}
}

func TestServe_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	srv := NewServer(testDispatcher(t), quietLogger())
	err := srv.Serve(ctx, strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}`+"\n"), &out)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no output after cancellation, got %q", out.String())
	}
}

func TestServe_EmptyInput(t *testing.T) {
	var out bytes.Buffer
	srv := NewServer(testDispatcher(t), quietLogger())
	if err := srv.Serve(context.Background(), strings.NewReader(""), &out); err != nil {
		t.Fatalf("Serve returned %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no output, got %q", out.String())
	}
}

func TestServe_WrongFieldTypeEchoesID(t *testing.T) {
	in := strings.Join([]string{
		`{"jsonrpc":"2.0","id":7,"method":5}`,
		`{"method":["ping"],"jsonrpc":"2.0","id":"late"}`,
		`{"jsonrpc":"2.0","method":true}`,
	}, "\n")

	var out bytes.Buffer
	srv := NewServer(testDispatcher(t), quietLogger())
	if err := srv.Serve(context.Background(), strings.NewReader(in), &out); err != nil {
		t.Fatalf("Serve returned %v", err)
	}

	responses := decodeLines(t, out.String())
	if len(responses) != 3 {
		t.Fatalf("got %d responses, want 3: %s", len(responses), out.String())
	}
	wantIDs := []any{float64(7), "late", nil}
	for i, resp := range responses {
		errObj, ok := resp["error"].(map[string]any)
		if !ok || errObj["code"] != float64(CodeInvalidRequest) {
			t.Errorf("response %d: expected invalid request, got %v", i, resp)
		}
		if resp["id"] != wantIDs[i] {
			t.Errorf("response %d: id = %v, want %v", i, resp["id"], wantIDs[i])
		}
	}
}
