// Package response writes every body the gateway sends. It is the only place
// that decides HTTP status codes.
package response

import (
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"

	gwerrors "drive-gateway/internal/errors"
	"drive-gateway/internal/storage"
)

const statusSuccess = "success"

// Envelope is the body of every successful JSON response.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// ErrorBody is the body of every error response.
type ErrorBody struct {
	Detail string `json:"detail"`
}

func Success(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, Envelope{Status: statusSuccess, Message: message, Data: data})
}

// Error aborts the request with the status that matches err's kind.
func Error(c *gin.Context, err error) {
	kind := gwerrors.KindOf(err)

	// The request logger reports it from c.Errors.
	_ = c.Error(err)
	c.AbortWithStatusJSON(StatusFor(kind), ErrorBody{Detail: gwerrors.Detail(err)})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind gwerrors.Kind) int {
	switch kind {
	case gwerrors.KindValidation:
		return http.StatusBadRequest
	case gwerrors.KindUnauthorized:
		return http.StatusUnauthorized
	case gwerrors.KindPermissionDenied:
		return http.StatusForbidden
	case gwerrors.KindNotFound:
		return http.StatusNotFound
	case gwerrors.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Stream copies obj.Body to the client as it arrives from the provider.
// The caller still owns obj.Body and must close it.
func Stream(c *gin.Context, obj *storage.FileObject) {
	headers := map[string]string{}
	if obj.Name != "" {
		headers["Content-Disposition"] = mime.FormatMediaType("attachment", map[string]string{"filename": obj.Name})
	}
	if !obj.LastModified.IsZero() {
		headers["Last-Modified"] = obj.LastModified.UTC().Format(http.TimeFormat)
	}

	c.DataFromReader(http.StatusOK, obj.ContentLength, obj.ContentType, obj.Body, headers)
}
