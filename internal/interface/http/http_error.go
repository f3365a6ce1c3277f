package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/prayer-companion/internal/domain/prayer"
	apperrors "github.com/yanqian/prayer-companion/pkg/errors"
)

// HTTPError captures the metadata required to serialize an error response consistently.
type HTTPError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// NewHTTPError is a helper to build an HTTPError instance.
func NewHTTPError(status int, code, message string, err error) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message, Err: err}
}

// statusByCode maps domain error codes onto transport statuses.
var statusByCode = map[string]int{
	prayer.CodeInvalidInput:                 http.StatusBadRequest,
	prayer.CodeInvalidCoordinate:            http.StatusBadRequest,
	prayer.CodeLocationUnavailable:          http.StatusServiceUnavailable,
	prayer.CodeTimingUnavailable:            http.StatusBadGateway,
	prayer.CodeTimingParseError:             http.StatusBadGateway,
	prayer.CodePlaybackFailure:              http.StatusBadGateway,
	prayer.CodeNotificationPermissionDenied: http.StatusForbidden,
	"invalid_state":                         http.StatusConflict,
	"email_exists":                          http.StatusConflict,
	"invalid_credentials":                   http.StatusUnauthorized,
	"invalid_token":                         http.StatusUnauthorized,
	"member_not_found":                      http.StatusNotFound,
	"engine_stopped":                        http.StatusServiceUnavailable,
}

// fromAppError converts a domain error into an HTTPError, keeping the domain code.
func fromAppError(err error) *HTTPError {
	code := apperrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		return NewHTTPError(http.StatusInternalServerError, "internal_error", "something went wrong", err)
	}
	return NewHTTPError(status, code, apperrors.MessageOf(err), err)
}

func asHTTPError(err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return &HTTPError{
		Status:  http.StatusInternalServerError,
		Code:    "internal_error",
		Message: "something went wrong",
		Err:     err,
	}
}

func abortWithError(c *gin.Context, err *HTTPError) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}
