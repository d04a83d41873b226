package httpsvc

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

const internalErrorMessage = "internal server error"

// mapErrorToStatus сопоставляет категорию ошибки с HTTP-статусом.
func mapErrorToStatus(err error) int {
	switch {
	case domain.IsInvalidInput(err), domain.IsInvalidState(err):
		return http.StatusBadRequest
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrIdempotencyKeyRequired):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrIdempotencyHashMismatch), errors.Is(err, domain.ErrIdempotencyInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError пишет {"message": ...}. Внутренние ошибки логируются, клиенту уходит общее сообщение.
func (s *Server) respondError(c *gin.Context, operation string, err error) {
	status := mapErrorToStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = internalErrorMessage
		fields := log.Fields{"operation": operation}
		if identity, ok := identityFrom(c); ok {
			fields["user_id"] = identity.UserID
		}
		s.logger.WithError(err).WithFields(fields).Error("request failed")
	}
	c.AbortWithStatusJSON(status, messageResponse{Message: message})
}
