// Package response writes JSON error bodies for the HTTP surface.
package response

import (
	"net/http"

	"relay-service/pkg/apperror"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the JSON shape of every HTTP error
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var statusByKind = map[apperror.Kind]int{
	apperror.KindNotFound:         http.StatusNotFound,
	apperror.KindValidation:       http.StatusBadRequest,
	apperror.KindPermissionDenied: http.StatusForbidden,
	apperror.KindAuthFailure:      http.StatusUnauthorized,
	apperror.KindPersistence:      http.StatusInternalServerError,
	apperror.KindInternal:         http.StatusInternalServerError,
}

// StatusFor maps an error to its HTTP status
func StatusFor(err error) int {
	if status, ok := statusByKind[apperror.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error aborts c with the status and body derived from err
func Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(StatusFor(err), ErrorBody{
		Code:    string(apperror.KindOf(err)),
		Message: apperror.Message(err),
	})
}
