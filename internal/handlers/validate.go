package handlers

import (
	"errors"
	"strings"

	"github.com/shakram02/dbinspect-rpc/internal/database"
	"github.com/shakram02/dbinspect-rpc/internal/rpc"
)

func invalidParams(message string) error {
	return rpc.Errorf(rpc.KindInvalidParams, "%s", message)
}

func requireName(value, message string) error {
	if strings.TrimSpace(value) == "" {
		return invalidParams(message)
	}
	return nil
}

// requireOptionalName rejects a provided but blank filter.
func requireOptionalName(value *string) error {
	if value != nil && strings.TrimSpace(*value) == "" {
		return invalidParams("tableName must not be blank when provided.")
	}
	return nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	s := strings.TrimSpace(*value)
	return &s
}

// checkTableName rejects names that could break out of a quoted identifier.
func checkTableName(name string) error {
	if strings.ContainsAny(name, "`;") {
		return invalidParams("Invalid characters in tableName.")
	}
	return nil
}

// adapterError classifies a database failure. Lost connections are
// retryable; privilege failures are reported as PermissionDenied.
func adapterError(err error) error {
	switch {
	case errors.Is(err, database.ErrPermission):
		return rpc.Wrap(rpc.KindPermissionDenied, err)
	case errors.Is(err, database.ErrConnection):
		rpcErr := rpc.Wrap(rpc.KindAdapterFailure, err)
		rpcErr.Retryable = true
		return rpcErr
	default:
		return rpc.Wrap(rpc.KindAdapterFailure, err)
	}
}
