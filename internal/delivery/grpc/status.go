package grpc

import (
	"context"
	"errors"
	"net/http"
	"triage_service/internal/domain"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// StatusFromError maps a use case error onto a gRPC status. Errors that
// already carry a status are returned as they are.
func StatusFromError(err error) *status.Status {
	if err == nil {
		return status.New(codes.OK, "")
	}
	if st, ok := status.FromError(err); ok {
		return st
	}

	var vErr *domain.ValidationError
	var upErr *domain.UpstreamError
	switch {
	case errors.As(err, &vErr):
		return status.New(codes.InvalidArgument, vErr.Error())
	case errors.As(err, &upErr):
		return status.New(codeFromHTTP(upErr.StatusCode), string(upErr.Body))
	case errors.Is(err, domain.ErrNotFound):
		return status.New(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrEmailTaken), errors.Is(err, domain.ErrPhoneTaken):
		return status.New(codes.AlreadyExists, err.Error())
	case errors.Is(err, domain.ErrInvalidCredentials), errors.Is(err, domain.ErrUnauthenticated):
		return status.New(codes.Unauthenticated, err.Error())
	case errors.Is(err, domain.ErrNotConfigured):
		return status.New(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrGatewayTimeout), errors.Is(err, context.DeadlineExceeded):
		return status.New(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, domain.ErrBadGateway):
		return status.New(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.New(codes.Canceled, err.Error())
	default:
		return status.New(codes.Internal, err.Error())
	}
}

func codeFromHTTP(httpStatus int) codes.Code {
	switch {
	case httpStatus == http.StatusBadRequest:
		return codes.InvalidArgument
	case httpStatus == http.StatusUnauthorized:
		return codes.Unauthenticated
	case httpStatus == http.StatusForbidden:
		return codes.PermissionDenied
	case httpStatus == http.StatusNotFound:
		return codes.NotFound
	case httpStatus == http.StatusTooManyRequests:
		return codes.ResourceExhausted
	case httpStatus >= http.StatusInternalServerError:
		return codes.Unavailable
	default:
		return codes.Unknown
	}
}
