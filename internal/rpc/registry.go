package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Param declares one handler parameter. Wire is the name callers use, Name the
// JSON key of the handler's argument struct. Positional params bind in
// declaration order.
type Param struct {
	Wire     string
	Name     string
	Required bool
	// Default is applied when an optional param is omitted or null.
	Default any
}

// Entry is one registered method.
type Entry struct {
	name     string
	params   []Param
	defaults map[string]json.RawMessage
	invoke   func(ctx context.Context, args json.RawMessage) (any, error)
	err      error
}

// Name returns the wire name of the method.
func (e *Entry) Name() string { return e.name }

// Bind creates an Entry whose handler receives its parameters decoded into A
// after wire names are translated to handler names.
func Bind[A, R any](name string, fn func(context.Context, A) (R, error), params ...Param) Entry {
	entry := Entry{
		name:     name,
		params:   params,
		defaults: make(map[string]json.RawMessage),
	}
	for _, p := range params {
		if p.Default == nil {
			continue
		}
		raw, err := json.Marshal(p.Default)
		if err != nil {
			entry.err = fmt.Errorf("method %s: default for %s: %w", name, p.Wire, err)
			break
		}
		entry.defaults[p.Name] = raw
	}
	entry.invoke = func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args A
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, Errorf(KindInvalidParams, "Invalid params: %v", err)
		}
		return fn(ctx, args)
	}
	return entry
}

// BindNoArgs creates an Entry for a method without parameters.
func BindNoArgs[R any](name string, fn func(context.Context) (R, error)) Entry {
	return Bind(name, func(ctx context.Context, _ struct{}) (R, error) {
		return fn(ctx)
	})
}

// bind translates raw request params (array, object or absent) into the JSON
// object the handler argument struct decodes.
func (e *Entry) bind(raw json.RawMessage) (json.RawMessage, error) {
	supplied := make(map[string]json.RawMessage, len(e.params))

	trimmed := bytes.TrimSpace(raw)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
	case trimmed[0] == '[':
		var positional []json.RawMessage
		if err := json.Unmarshal(trimmed, &positional); err != nil {
			return nil, Errorf(KindInvalidParams, "Invalid params: %v", err)
		}
		if len(positional) > len(e.params) {
			return nil, Errorf(KindInvalidParams, "%s takes at most %d positional parameters, got %d",
				e.name, len(e.params), len(positional))
		}
		for i, value := range positional {
			supplied[e.params[i].Wire] = value
		}
	case trimmed[0] == '{':
		var named map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &named); err != nil {
			return nil, Errorf(KindInvalidParams, "Invalid params: %v", err)
		}
		for key, value := range named {
			if !e.accepts(key) {
				return nil, Errorf(KindInvalidParams, "%s got an unexpected parameter %q", e.name, key)
			}
			supplied[key] = value
		}
	default:
		return nil, Errorf(KindInvalidParams, "params must be an array or an object")
	}

	args := make(map[string]json.RawMessage, len(e.params))
	for _, p := range e.params {
		value, ok := supplied[p.Wire]
		if ok && !bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			args[p.Name] = value
			continue
		}
		if p.Required {
			return nil, Errorf(KindInvalidParams, "%s missing required parameter %q", e.name, p.Wire)
		}
		if def, ok := e.defaults[p.Name]; ok {
			args[p.Name] = def
		}
	}
	return json.Marshal(args)
}

func (e *Entry) accepts(wire string) bool {
	for _, p := range e.params {
		if p.Wire == wire {
			return true
		}
	}
	return false
}

// Registry maps wire names to entries. It is read-only once built.
type Registry struct {
	entries map[string]*Entry
}

// NewRegistry validates and indexes entries. Duplicate method names, duplicate
// parameter names and unencodable defaults are configuration errors.
func NewRegistry(entries ...Entry) (*Registry, error) {
	r := &Registry{entries: make(map[string]*Entry, len(entries))}
	var errs []error
	for i := range entries {
		e := entries[i]
		if e.err != nil {
			errs = append(errs, e.err)
			continue
		}
		if e.name == "" {
			errs = append(errs, errors.New("method with empty name"))
			continue
		}
		if _, dup := r.entries[e.name]; dup {
			errs = append(errs, fmt.Errorf("method %s registered twice", e.name))
			continue
		}
		if err := checkParams(&e); err != nil {
			errs = append(errs, err)
			continue
		}
		r.entries[e.name] = &e
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return r, nil
}

func checkParams(e *Entry) error {
	wire := make(map[string]bool, len(e.params))
	internal := make(map[string]bool, len(e.params))
	for _, p := range e.params {
		if p.Wire == "" || p.Name == "" {
			return fmt.Errorf("method %s: parameter with empty name", e.name)
		}
		if wire[p.Wire] || internal[p.Name] {
			return fmt.Errorf("method %s: parameter %s declared twice", e.name, p.Wire)
		}
		wire[p.Wire] = true
		internal[p.Name] = true
	}
	return nil
}

// Lookup returns the entry registered under a wire name.
func (r *Registry) Lookup(name string) (*Entry, bool) {
	e, ok := r.entries[name]
	return e, ok
}

// Methods lists the registered wire names in sorted order.
func (r *Registry) Methods() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
