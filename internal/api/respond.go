package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dharsanguruparan/AppCenter/internal/apperr"
)

const codeSuccess = "0"

type envelope struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func respond(c *gin.Context, status int, message string, data any) {
	c.JSON(status, envelope{Success: true, Code: codeSuccess, Message: message, Data: data})
}

func statusFor(err error) int {
	if errors.Is(err, apperr.ErrFileTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindUpstreamParse:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindPermission:
		return http.StatusForbidden
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// fail writes err as an error envelope. Internal failures are logged and
// reported with a generic message.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	var e *apperr.Error
	if !errors.As(err, &e) {
		e = apperr.ErrInternal
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, envelope{Code: e.Code, Message: e.Message})
}

func (s *Server) badRequest(c *gin.Context, message string) {
	s.fail(c, apperr.ErrValidation.WithMessage("%s", message))
}
