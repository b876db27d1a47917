package service

import (
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/appdevjohn/Social-Network-Backend/internal/apperr"
)

var errInternal = errors.New("internal error")

// toConnectError maps a service error to a Connect error by its apperr kind.
// Errors without a kind are logged and hidden behind CodeInternal.
func toConnectError(logger *slog.Logger, op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *connect.Error
	if errors.As(err, &ce) {
		return ce
	}

	switch apperr.KindOf(err) {
	case apperr.NotFound:
		return connect.NewError(connect.CodeNotFound, err)
	case apperr.Conflict:
		return connect.NewError(connect.CodeAlreadyExists, err)
	case apperr.InvariantViolation:
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case apperr.Unavailable:
		return connect.NewError(connect.CodeUnavailable, err)
	case apperr.Invalid:
		return connect.NewError(connect.CodeInvalidArgument, err)
	case apperr.Forbidden:
		return connect.NewError(connect.CodePermissionDenied, err)
	default:
		logger.Error(op+" failed", "error", err)
		return connect.NewError(connect.CodeInternal, errInternal)
	}
}
