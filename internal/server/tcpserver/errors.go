package tcpserver

import (
	"encoding/json"
	"errors"

	"github.com/and161185/vsp-server/internal/errs"
	"github.com/and161185/vsp-server/internal/wire"
)

// statusFor maps service and routing errors onto response status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return 400
	case errors.Is(err, errs.ErrUnauthorized):
		return 401
	case errors.Is(err, errs.ErrNotOwner):
		return 403
	case errors.Is(err, errs.ErrEndpointNotFound),
		errors.Is(err, errs.ErrNotFound),
		errors.Is(err, errs.ErrSessionNotFound),
		errors.Is(err, errs.ErrVideoNotFound):
		return 404
	case errors.Is(err, errMethodNotAllowed):
		return 405
	case errors.Is(err, errs.ErrAlreadyExists),
		errors.Is(err, errs.ErrSessionCommitted),
		errors.Is(err, errs.ErrIncompleteUpload):
		return 409
	case errors.Is(err, errs.ErrRangeNotSatisfiable):
		return 416
	case errors.Is(err, errs.ErrChecksumMismatch),
		errors.Is(err, errs.ErrMissingChunk):
		return 422
	case errors.Is(err, errs.ErrRateLimited):
		return 429
	default:
		return 500
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func errorResponse(err error) wire.Response {
	code := statusFor(err)
	if code == 500 {
		return internalError()
	}
	return jsonResponse(code, errorBody{Error: err.Error()})
}

func internalError() wire.Response {
	return jsonResponse(500, errorBody{Error: "internal error"})
}

func jsonResponse(status int, v any) wire.Response {
	body, err := json.Marshal(v)
	if err != nil {
		return wire.NewResponse(500, map[string]string{"Content-Type": "text/plain"}, []byte("internal error"))
	}
	return wire.NewResponse(status, map[string]string{"Content-Type": "application/json"}, body)
}
