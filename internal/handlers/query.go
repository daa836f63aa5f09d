package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/shakram02/dbinspect-rpc/internal/database"
	"github.com/shakram02/dbinspect-rpc/internal/rpc"
	"github.com/shakram02/dbinspect-rpc/internal/sqlguard"
)

type queryArgs struct {
	SQL    string          `json:"sql"`
	Params json.RawMessage `json:"params"`
}

// RunQuery executes caller-supplied SQL after it passes both the read-only
// prefix check and the dialect inspection.
func (h *Handlers) RunQuery(ctx context.Context, args queryArgs) (*database.QueryResult, error) {
	if !sqlguard.IsReadOnly(args.SQL) {
		return nil, rpc.Errorf(rpc.KindRejectedStatement, "Only read-only SQL statements are allowed.")
	}
	if err := h.inspect(args.SQL); err != nil {
		return nil, err
	}
	bound, err := bindParams(args.Params)
	if err != nil {
		return nil, err
	}

	h.logger.Debug(fmt.Sprintf("%s - running statement", logPrefix), "params", len(bound))
	result, err := h.db.Query(ctx, args.SQL, bound)
	if err != nil {
		return nil, adapterError(err)
	}
	return result, nil
}

// ExplainQuery returns the execution plan of a read-only statement.
func (h *Handlers) ExplainQuery(ctx context.Context, args queryArgs) ([]map[string]any, error) {
	if !sqlguard.IsReadOnly(args.SQL) {
		return nil, rpc.Errorf(rpc.KindRejectedStatement, "Only read-only SQL statements can be explained.")
	}
	if err := h.inspect(args.SQL); err != nil {
		return nil, err
	}
	bound, err := bindParams(args.Params)
	if err != nil {
		return nil, err
	}

	plan, err := h.db.Explain(ctx, args.SQL, bound)
	if err != nil {
		return nil, adapterError(err)
	}
	return plan, nil
}

func (h *Handlers) inspect(sqlText string) error {
	if err := sqlguard.Inspect(h.db.Flavor(), sqlText); err != nil {
		h.logger.Info(fmt.Sprintf("%s - statement rejected", logPrefix), "reason", err)
		return rpc.Wrap(rpc.KindRejectedStatement, err)
	}
	return nil
}

// bindParams converts JSON statement parameters to driver arguments. An
// array binds positionally, an object binds by name (sorted for a stable
// order). Values must be scalars; integral numbers bind as int64.
func bindParams(raw json.RawMessage) ([]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return nil, rpc.Errorf(rpc.KindInvalidParams, "Invalid params: %v", err)
	}

	switch v := decoded.(type) {
	case []any:
		out := make([]any, len(v))
		for i, elem := range v {
			arg, err := bindValue(elem)
			if err != nil {
				return nil, rpc.Errorf(rpc.KindInvalidParams, "params[%d]: %v", i, err)
			}
			out[i] = arg
		}
		return out, nil
	case map[string]any:
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make([]any, 0, len(v))
		for _, name := range names {
			arg, err := bindValue(v[name])
			if err != nil {
				return nil, rpc.Errorf(rpc.KindInvalidParams, "params.%s: %v", name, err)
			}
			out = append(out, sql.Named(name, arg))
		}
		return out, nil
	default:
		return nil, rpc.Errorf(rpc.KindInvalidParams, "params must be an array or an object")
	}
}

func bindValue(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool:
		return t, nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		return t.Float64()
	default:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
}
