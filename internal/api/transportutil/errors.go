package transportutil

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	"github.com/platformplatform/account-api/internal/api/apierrors"
)

type Error struct {
	HTTPCode int               `json:"-"`
	Code     string            `json:"code,omitempty"`
	Message  string            `json:"message"`
	Fields   map[string]string `json:"fields,omitempty"`
}

func (e Error) Error() string {
	return e.Message
}

type ErrorResponse struct {
	Error *Error `json:"error,omitempty"`
}

func makeError(code int, e error) *Error {
	return &Error{
		HTTPCode: code,
		Message:  e.Error(),
	}
}

func MakeError(e error) *Error {
	srcErr := errors.Cause(e)
	switch err := srcErr.(type) {
	case *apierrors.ValidationError:
		return &Error{
			HTTPCode: http.StatusBadRequest,
			Code:     err.GetCode(),
			Message:  err.GetMessage(),
			Fields:   err.Fields,
		}
	case *apierrors.NotAcceptableError:
		return &Error{
			HTTPCode: http.StatusNotAcceptable,
			Code:     err.GetCode(),
			Message:  messageOrError(err.GetMessage(), err),
		}
	case *apierrors.ForbiddenError:
		return &Error{
			HTTPCode: http.StatusForbidden,
			Code:     err.GetCode(),
			Message:  err.GetMessage(),
		}
	case *apierrors.RaceConditionError:
		return &Error{
			HTTPCode: http.StatusConflict,
			Code:     "RACE_CONDITION",
			Message:  err.GetMessage(),
		}
	}

	switch srcErr {
	case apierrors.ErrNotFound:
		return makeError(http.StatusNotFound, e)
	case apierrors.ErrBadRequest:
		return makeError(http.StatusBadRequest, e)
	case apierrors.ErrNotAuthorized:
		return makeError(http.StatusForbidden, apierrors.ErrNotAuthorized)
	}

	return makeError(http.StatusInternalServerError, errors.New("internal error"))
}

func messageOrError(message string, err error) string {
	if message != "" {
		return message
	}
	return err.Error()
}

// isExpectedError is true for errors caused by the client.
func isExpectedError(err error) bool {
	return MakeError(err).HTTPCode < http.StatusInternalServerError
}

func EncodeError(_ context.Context, err error, w http.ResponseWriter) {
	httpErr := MakeError(err)
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(httpErr.HTTPCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: httpErr})
}
