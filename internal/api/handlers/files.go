package handlers

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"drive-gateway/internal/api/response"
	gwerrors "drive-gateway/internal/errors"
	"drive-gateway/internal/models"
	"drive-gateway/internal/storage"
)

// NextPageTokenHeader carries the cursor for the next page of a listing.
const NextPageTokenHeader = "X-Next-Page-Token"

// FileHandler maps the file endpoints onto storage operations.
type FileHandler struct {
	storage *storage.Client
}

// NewFileHandler creates a new FileHandler instance with its required dependencies
func NewFileHandler(st *storage.Client) *FileHandler {
	return &FileHandler{storage: st}
}

// ListFiles lists files, optionally restricted to the children of folder_id.
func (h *FileHandler) ListFiles(c *gin.Context) {
	limit, err := parseLimit(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	list, err := h.storage.ListFiles(c.Request.Context(), c.Query("folder_id"), limit, c.Query("page_token"))
	if err != nil {
		response.Error(c, err)
		return
	}

	writeList(c, list, fmt.Sprintf("Retrieved %d files", len(list.Files)))
}

// GetFile returns the metadata of one file.
func (h *FileHandler) GetFile(c *gin.Context) {
	file, err := h.storage.GetFile(c.Request.Context(), c.Param("file_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "File retrieved successfully", file)
}

// UpdateFile renames a file. Only the name can change.
func (h *FileHandler) UpdateFile(c *gin.Context) {
	file, err := h.storage.Rename(c.Request.Context(), c.Param("file_id"), c.Query("name"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "File updated successfully", file)
}

func (h *FileHandler) DeleteFile(c *gin.Context) {
	id := c.Param("file_id")
	if err := h.storage.DeleteFile(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, fmt.Sprintf("File %s deleted successfully", id), gin.H{"id": id})
}

// SearchFiles finds files whose name contains q.
func (h *FileHandler) SearchFiles(c *gin.Context) {
	limit, err := parseLimit(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	list, err := h.storage.Search(c.Request.Context(), c.Query("q"), limit, c.Query("page_token"))
	if err != nil {
		response.Error(c, err)
		return
	}

	writeList(c, list, fmt.Sprintf("Found %d files matching %q", len(list.Files), c.Query("q")))
}

func writeList(c *gin.Context, list *models.FileList, message string) {
	if list.NextPageToken != "" {
		c.Header(NextPageTokenHeader, list.NextPageToken)
	}
	files := list.Files
	if files == nil {
		files = []*models.File{}
	}
	response.Success(c, message, files)
}

func parseLimit(c *gin.Context) (int, error) {
	raw := c.DefaultQuery("limit", strconv.Itoa(storage.DefaultPageSize))
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, gwerrors.Validation("limit must be an integer, got %q", raw)
	}
	return limit, nil
}
