package httpadapter

import (
	"net/http"

	"github.com/roadsight/road-safety-assistant/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrHistoryNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrCorpusUnavailable), domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
