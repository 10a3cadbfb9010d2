package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIResponse is the uniform success envelope. StatusCode always mirrors the
// HTTP status the response was written with.
type APIResponse[T any] struct {
	StatusCode int    `json:"statusCode"`
	Data       T      `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// APIError is the uniform failure envelope. Errors carries field-level
// details when available and is never null.
type APIError struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
	Errors     []any  `json:"errors"`
}

// Success writes the success envelope with the given status code.
func Success[T any](c *gin.Context, status int, data T, message string) {
	if status == 0 {
		status = http.StatusOK
	}
	if rid := c.GetString("request_id"); rid != "" {
		c.Header("X-Request-ID", rid)
	}
	c.JSON(status, APIResponse[T]{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    true,
	})
}

// Error writes the failure envelope with the given status code.
func Error(c *gin.Context, status int, message string, details ...any) {
	if status == 0 {
		status = http.StatusBadRequest
	}
	if rid := c.GetString("request_id"); rid != "" {
		c.Header("X-Request-ID", rid)
	}
	errs := make([]any, 0, len(details))
	for _, d := range details {
		if d != nil {
			errs = append(errs, d)
		}
	}
	c.JSON(status, APIError{
		StatusCode: status,
		Message:    message,
		Success:    false,
		Errors:     errs,
	})
}

// AbortError writes the failure envelope and aborts the handler chain.
// Intended for middleware.
func AbortError(c *gin.Context, status int, message string, details ...any) {
	Error(c, status, message, details...)
	c.Abort()
}
