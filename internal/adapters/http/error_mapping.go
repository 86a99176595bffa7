package httpadapter

import (
	"errors"
	"net/http"

	"github.com/kirillkom/intake-assistant/internal/core/domain"
)

// Checked in order; the first matching kind wins.
var statusByKind = []struct {
	kind   error
	status int
}{
	{domain.ErrInvalidInput, http.StatusBadRequest},
	{domain.ErrInvalidSchema, http.StatusUnprocessableEntity},
	{domain.ErrUnauthorized, http.StatusUnauthorized},
	{domain.ErrRunNotFound, http.StatusNotFound},
	{domain.ErrRunNotComplete, http.StatusConflict},
	{domain.ErrTemporary, http.StatusServiceUnavailable},
}

func mapErrorToHTTPStatus(err error) int {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return http.StatusRequestEntityTooLarge
	}
	for _, entry := range statusByKind {
		if domain.IsKind(err, entry.kind) {
			return entry.status
		}
	}
	return http.StatusInternalServerError
}
