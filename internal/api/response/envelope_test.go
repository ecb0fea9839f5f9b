package response

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwerrors "drive-gateway/internal/errors"
	"drive-gateway/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind gwerrors.Kind
		want int
	}{
		{gwerrors.KindValidation, http.StatusBadRequest},
		{gwerrors.KindUnauthorized, http.StatusUnauthorized},
		{gwerrors.KindPermissionDenied, http.StatusForbidden},
		{gwerrors.KindNotFound, http.StatusNotFound},
		{gwerrors.KindUnavailable, http.StatusServiceUnavailable},
		{gwerrors.KindUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.kind))
		})
	}
}

func TestSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Success(c, "File updated successfully", map[string]string{"id": "abc"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success","message":"File updated successfully","data":{"id":"abc"}}`, w.Body.String())
}

func TestError_UsesKindAndDetailOnly(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/files/x", nil)

	Error(c, gwerrors.Wrap(gwerrors.KindNotFound, "get", "File not found: x.", errors.New("googleapi: Error 404")))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, c.IsAborted())

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]any{"detail": "File not found: x."}, body)
}

func TestError_UnclassifiedIsInternal(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/files", nil)

	Error(c, errors.New("something odd"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"detail":"something odd"}`, w.Body.String())
}

func TestError_LeavesLoggingToRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/files/x", nil)

	Error(c, errors.New("provider exploded"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.Len(t, c.Errors, 1)
	assert.EqualError(t, c.Errors.Last().Err, "provider exploded")
	assert.Empty(t, buf.String())
}

func TestStream(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	modified := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	Stream(c, &storage.FileObject{
		Body:          io.NopCloser(strings.NewReader("hello")),
		Name:          "greeting.txt",
		ContentLength: 5,
		ContentType:   "text/plain",
		LastModified:  modified,
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello", w.Body.String())
	assert.Equal(t, "text/plain", w.Header().Get("Content-Type"))
	assert.Equal(t, "5", w.Header().Get("Content-Length"))
	assert.Equal(t, `attachment; filename=greeting.txt`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, modified.Format(http.TimeFormat), w.Header().Get("Last-Modified"))
}

func TestStream_UnknownLength(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Stream(c, &storage.FileObject{
		Body:          io.NopCloser(strings.NewReader("abc")),
		ContentLength: -1,
		ContentType:   "application/octet-stream",
	})

	assert.Equal(t, "abc", w.Body.String())
	assert.Empty(t, w.Header().Get("Content-Length"))
	assert.Empty(t, w.Header().Get("Content-Disposition"))
}
