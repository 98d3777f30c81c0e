package delivery

import (
	"encoding/json"
	"errors"
	"net/http"
	grpcdelivery "triage_service/internal/delivery/grpc"
	"triage_service/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// respondError writes the HTTP form of a use case error. Upstream replies
// are relayed with their own status and body; everything else goes through
// the gRPC code table so both surfaces agree.
func respondError(c *gin.Context, logger logrus.FieldLogger, err error) {
	var upErr *domain.UpstreamError
	if errors.As(err, &upErr) {
		logger.Warnf("Handler Error: Relaying upstream status %d", upErr.StatusCode)
		contentType := "text/plain; charset=utf-8"
		if json.Valid(upErr.Body) {
			contentType = "application/json; charset=utf-8"
		}
		c.Data(upErr.StatusCode, contentType, upErr.Body)
		return
	}

	st, httpStatus, resp := httpError(err)
	logger.Warnf("Handler Error: Mapped error (Code: %s, Message: '%s') to HTTP Status %d", st.Code(), st.Message(), httpStatus)
	c.JSON(httpStatus, resp)
}

// httpError translates an error through the gRPC code table.
func httpError(err error) (*status.Status, int, ErrorResponse) {
	st := grpcdelivery.StatusFromError(err)

	var upErr *domain.UpstreamError
	if errors.As(err, &upErr) {
		return st, upErr.StatusCode, ErrorResponse{Error: "Failed to process request", Details: string(upErr.Body)}
	}

	switch st.Code() {
	case codes.InvalidArgument:
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			return st, http.StatusBadRequest, ErrorResponse{Error: vErr.Reason, Details: vErr.Fields}
		}
		return st, http.StatusBadRequest, ErrorResponse{Error: st.Message()}
	case codes.NotFound:
		return st, http.StatusNotFound, ErrorResponse{Error: "Not found", Details: st.Message()}
	case codes.AlreadyExists:
		return st, http.StatusConflict, ErrorResponse{Error: st.Message()}
	case codes.Unauthenticated:
		return st, http.StatusUnauthorized, ErrorResponse{Error: st.Message()}
	case codes.FailedPrecondition:
		// only a missing API key ends up here
		return st, http.StatusInternalServerError, ErrorResponse{Error: "Server configuration error", Details: "API key not configured"}
	case codes.DeadlineExceeded:
		return st, http.StatusGatewayTimeout, ErrorResponse{Error: "Gateway Timeout", Details: "Request to Deepseek API timed out"}
	case codes.Unavailable:
		return st, http.StatusBadGateway, ErrorResponse{Error: "Bad Gateway", Details: "Could not connect to Deepseek API"}
	case codes.Internal:
		resp := ErrorResponse{Error: "Internal server error"}
		if errors.Is(err, domain.ErrMalformedResponse) {
			resp.Details = "Unexpected response from Deepseek API"
		}
		return st, http.StatusInternalServerError, resp
	default:
		return st, http.StatusInternalServerError, ErrorResponse{Error: "An unexpected error occurred"}
	}
}

func badRequest(c *gin.Context, logger logrus.FieldLogger, msg string, err error) {
	logger.Warnf("%s: %v", msg, err)
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	c.JSON(http.StatusBadRequest, resp)
}
