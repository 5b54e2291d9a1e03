package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	domain "github.com/aq2208/gorder-settlement/internal/entity"
	"github.com/aq2208/gorder-settlement/internal/logging"
	"github.com/aq2208/gorder-settlement/internal/usecase"
)

const handlerTimeout = 5 * time.Second

func reqCtx(c *gin.Context) (context.Context, context.CancelFunc) {
	ctx := logging.WithCtx(c.Request.Context(), logging.From(c))
	return context.WithTimeout(ctx, handlerTimeout)
}

// statusOf maps domain failures onto HTTP codes.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrEmptyCart):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest, "invalid_amount"
	case errors.Is(err, domain.ErrSignatureMismatch):
		return http.StatusUnauthorized, "signature_mismatch"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrAlreadyGenerated):
		return http.StatusConflict, "already_generated"
	case errors.Is(err, domain.ErrOrderCancelled):
		return http.StatusConflict, "order_cancelled"
	case errors.Is(err, domain.ErrConflict), errors.Is(err, usecase.ErrDuplicate):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrPrecondition):
		return http.StatusUnprocessableEntity, "precondition_failed"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, "server_error"
}

func writeError(c *gin.Context, err error) {
	status, code := statusOf(err)
	_ = c.Error(err)
	if status == http.StatusInternalServerError {
		// internals stay in the log
		c.JSON(status, gin.H{"error": code})
		return
	}
	c.JSON(status, gin.H{"error": code, "detail": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "detail": err.Error()})
}
