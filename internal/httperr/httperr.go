package httperr

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

type HTTPError struct {
	Code      string `json:"error_code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func Write(c *gin.Context, status int, code, message string) {
	c.JSON(status, HTTPError{
		Code:    code,
		Message: message,
	})
}

func BadRequest(c *gin.Context, code, message string) {
	Write(c, http.StatusBadRequest, code, message)
}

func NotFound(c *gin.Context, code, message string) {
	Write(c, http.StatusNotFound, code, message)
}

func Internal(c *gin.Context, code, message string) {
	Write(c, http.StatusInternalServerError, code, message)
}

func Unauthorized(c *gin.Context, code, message string) {
	Write(c, http.StatusUnauthorized, code, message)
}

func Forbidden(c *gin.Context, code, message string) {
	Write(c, http.StatusForbidden, code, message)
}

// Respond maps a use-case error onto the HTTP response.
func Respond(c *gin.Context, err error) {
	var nf NotFoundError
	if errors.As(err, &nf) {
		NotFound(c, nf.Error(), nf.Entity+" not found.")
		return
	}

	if be, ok := AsBusiness(err); ok {
		status := http.StatusUnprocessableEntity
		if be.Retryable {
			status = http.StatusConflict
		}
		c.JSON(status, HTTPError{
			Code:      be.Code,
			Message:   be.Message,
			Retryable: be.Retryable,
		})
		return
	}

	log.Printf("[http] %s %s: %v", c.Request.Method, c.FullPath(), err)
	Internal(c, "internal_error", "Unexpected error.")
}
