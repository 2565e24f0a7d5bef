package apierrors

import (
	"net/http"

	"voice-server/internal/observability"

	"github.com/gin-gonic/gin"
)

var logger = observability.NewLogger()

// ErrorResponse is the JSON structure returned to API clients
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	CallID string `json:"call_id,omitempty"`
}

// respond writes the error response and logs correlation info
func respond(c *gin.Context, statusCode int, code, message string) {
	ctx := c.Request.Context()
	ctx = observability.WithFields(ctx,
		observability.Field{Key: "status_code", Value: statusCode},
		observability.Field{Key: "error_code", Value: code},
		observability.Field{Key: "error_message", Value: message},
	)
	logger.Info(ctx, "API error response")

	c.JSON(statusCode, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// NotFound sends a 404 response
func NotFound(c *gin.Context, message string) {
	respond(c, http.StatusNotFound, "NOT_FOUND", message)
}

// BadRequest sends a 400 response
func BadRequest(c *gin.Context, code, message string) {
	respond(c, http.StatusBadRequest, code, message)
}

// BadGateway sends a 502 response for upstream provider failures
func BadGateway(c *gin.Context, code, message string, internalErr error) {
	logger.Error(c.Request.Context(), "upstream provider error", internalErr)
	respond(c, http.StatusBadGateway, code, message)
}

// PartialFailure sends a 502 response that still carries the created call ID,
// so the operator knows the call exists even though a dependent step failed.
func PartialFailure(c *gin.Context, callID, message string, internalErr error) {
	ctx := observability.WithFields(c.Request.Context(),
		observability.Field{Key: "call_control_id", Value: callID},
	)
	logger.Error(ctx, "partial failure", internalErr)
	c.JSON(http.StatusBadGateway, ErrorResponse{
		Error:  message,
		Code:   "PARTIAL_FAILURE",
		CallID: callID,
	})
}

// InternalError sends a sanitized 500 response - never exposes internal details
func InternalError(c *gin.Context, internalErr error) {
	ctx := c.Request.Context()
	logger.Error(ctx, "internal error", internalErr)
	respond(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred. Please try again later.")
}
