package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/travel-support/internal/domain/errs"
	"github.com/garyjia/travel-support/internal/domain/workflow"
)

// Response represents a standard JSON response
type Response struct {
	Success bool              `json:"success"`
	Data    interface{}       `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Retry   bool              `json:"retry,omitempty"`
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: message})
}

// writeError maps a service error onto a status code and envelope
func (h *Handlers) writeError(c *gin.Context, err error) {
	var (
		verr *errs.ValidationError
		aerr *errs.AuthorizationError
		nerr *errs.NetworkError
	)

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, Response{
			Success: false,
			Error:   verr.Message,
			Fields:  verr.Fields,
		})
	case errors.As(err, &aerr):
		c.JSON(http.StatusForbidden, Response{Success: false, Error: aerr.Error()})
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: err.Error()})
	case workflow.IsConflict(err), errors.Is(err, errs.ErrConflict):
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
	case errors.As(err, &nerr):
		c.JSON(http.StatusBadGateway, Response{
			Success: false,
			Error:   nerr.Error(),
			Retry:   nerr.Retriable(),
		})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, Response{Success: false, Error: "request timed out", Retry: true})
	default:
		h.logger.Error("Unhandled request error",
			"error", err,
			"method", c.Request.Method,
			"path", c.Request.URL.Path)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "internal server error"})
	}
}
