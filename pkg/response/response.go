// Package response maps the core's types.Kind-tagged errors onto HTTP
// status codes and a JSON error envelope. Grounded on the
// Handle/NotFound/BadRequest/... family here, switched from gorm sentinel
// errors to types.Kind since the core no longer leaks gorm errors past
// its package boundary; Success is dropped in favor of callers writing
// the literal response bodies the wire contract specifies.
package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ksred/order-core/internal/types"
)

// Error is the body of every error response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes
const (
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeBadRequest    = "BAD_REQUEST"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeConflict      = "CONFLICT"
)

// Handle maps err's Kind onto the matching HTTP status and error body. If
// err is nil, it writes data with the given success status instead.
func Handle(c *gin.Context, successStatus int, data interface{}, err error) {
	if err == nil {
		c.JSON(successStatus, data)
		return
	}

	var terr *types.Error
	if !errors.As(err, &terr) {
		InternalError(c, "an unexpected error occurred")
		return
	}

	switch terr.Kind {
	case types.KindNotFound:
		NotFound(c, terr.Message)
	case types.KindInvalidState, types.KindValidationFailed, types.KindInsufficientHoldings:
		BadRequest(c, terr.Message)
	case types.KindConflict:
		Conflict(c, terr.Message)
	default:
		InternalError(c, "an unexpected error occurred")
	}
}

// NotFound sends a 404 response.
func NotFound(c *gin.Context, message string) {
	c.JSON(http.StatusNotFound, Error{Code: ErrCodeNotFound, Message: message})
}

// BadRequest sends a 400 response.
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Error{Code: ErrCodeBadRequest, Message: message})
}

// Conflict sends a 409 response.
func Conflict(c *gin.Context, message string) {
	c.JSON(http.StatusConflict, Error{Code: ErrCodeConflict, Message: message})
}

// InternalError sends a 500 response.
func InternalError(c *gin.Context, message string) {
	c.JSON(http.StatusInternalServerError, Error{Code: ErrCodeInternalError, Message: message})
}
