package handlers

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"drive-gateway/internal/api/response"
	gwerrors "drive-gateway/internal/errors"
	"drive-gateway/internal/models"
	"drive-gateway/internal/utils"
)

// uploadField is the multipart field holding the file.
const uploadField = "file"

// Upload streams the multipart "file" part straight to the provider. The body
// is read part by part; nothing is spooled to memory or disk first.
func (h *FileHandler) Upload(c *gin.Context) {
	reader, err := c.Request.MultipartReader()
	if err != nil {
		response.Error(c, gwerrors.Validation("request body must be multipart/form-data"))
		return
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			response.Error(c, gwerrors.Validation("multipart field %q is required", uploadField))
			return
		}
		if err != nil {
			response.Error(c, gwerrors.Validation("malformed multipart body: %v", err))
			return
		}
		if part.FormName() != uploadField {
			part.Close()
			continue
		}

		spec := models.UploadSpec{
			Body:     part,
			Name:     utils.CleanFilename(part.FileName()),
			ParentID: c.Query("folder_id"),
			MimeType: utils.Sanitize(c.Query("mime_type"), declaredType(part.Header.Get("Content-Type"))),
		}

		file, err := h.storage.Upload(c.Request.Context(), spec)
		part.Close()
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Success(c, "File uploaded successfully", file)
		return
	}
}

// Download streams the file content without buffering it.
func (h *FileHandler) Download(c *gin.Context) {
	obj, err := h.storage.Download(c.Request.Context(), c.Param("file_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer obj.Body.Close()

	response.Stream(c, obj)
}

// declaredType ignores the generic type most clients send for any file, so
// the name-based guess can take over.
func declaredType(ct string) string {
	if ct == "application/octet-stream" {
		return ""
	}
	return ct
}
