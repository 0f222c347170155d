package httpadapter

import (
	"errors"
	"net/http"

	"github.com/synthexa/catalogmatch/internal/core/domain"
)

var (
	errInvoiceFileRequired = errors.New("multipart field 'file' is required")
	errRegistrationFailed  = errors.New("product registration failed")
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrOutcomeNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrProductNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
