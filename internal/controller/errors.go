package controller

import (
	"errors"
	"net/http"

	"github.com/flodrama/watchparty/internal/domain"
	"github.com/flodrama/watchparty/internal/repository/connection"
	"github.com/flodrama/watchparty/pkg/validator"
	"github.com/flodrama/watchparty/pkg/wsrouter"
)

var errRateLimited = errors.New("rate limit exceeded")

type validationError struct {
	errors []validator.ValidationError
}

func (e validationError) Error() string {
	return "validation failed"
}

type errorMapping struct {
	err    error
	code   string
	status int
}

var errorMappings = []errorMapping{
	{domain.ErrRoomNotFound, "ROOM_NOT_FOUND", http.StatusNotFound},
	{domain.ErrMemberNotFound, "MEMBER_NOT_FOUND", http.StatusNotFound},
	{domain.ErrDuplicateMember, "DUPLICATE_MEMBER", http.StatusConflict},
	{domain.ErrMembersLimitReached, "MEMBERS_LIMIT_REACHED", http.StatusConflict},
	{domain.ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest},
	{domain.ErrNotAuthorized, "NOT_AUTHORIZED", http.StatusForbidden},
	{connection.ErrAlreadyExists, "ALREADY_CONNECTED", http.StatusConflict},
	{errUnauthorized, "UNAUTHORIZED", http.StatusUnauthorized},
	{errRateLimited, "RATE_LIMITED", http.StatusTooManyRequests},
	{errShuttingDown, "SHUTTING_DOWN", http.StatusServiceUnavailable},
	{wsrouter.ErrUnknownMessageType, "UNKNOWN_MESSAGE_TYPE", http.StatusBadRequest},
	{wsrouter.ErrInvalidPayload, "INVALID_PAYLOAD", http.StatusBadRequest},
}

// mapError returns the client facing code and http status of err. Unknown
// errors map to INTERNAL and must not be shown to clients verbatim.
func mapError(err error) (string, int) {
	var vErr validationError
	if errors.As(err, &vErr) {
		return "VALIDATION_FAILED", http.StatusBadRequest
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.code, m.status
		}
	}

	return "INTERNAL", http.StatusInternalServerError
}
