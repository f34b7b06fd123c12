// Package handlers implements the HTTP endpoints of the reportiq API.
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/medtext/reportiq/pkg/errors"
)

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondError renders an AppError with its mapped HTTP status. Server-side
// errors are masked so internals never leak to callers.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)

	msg := err.Error()
	if errors.IsServerError(code) {
		msg = errors.DefaultMessageForCode(code)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		Code:    code.String(),
		Message: msg,
	})
}

// parsePagination reads limit and offset query parameters with bounds.
func parsePagination(c *gin.Context) (limit, offset int) {
	limit = 20
	offset = 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
