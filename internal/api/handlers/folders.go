package handlers

import (
	"github.com/gin-gonic/gin"

	"drive-gateway/internal/api/response"
	"drive-gateway/internal/models"
	"drive-gateway/internal/storage"
)

// FolderHandler handles folder creation.
type FolderHandler struct {
	storage *storage.Client
}

func NewFolderHandler(st *storage.Client) *FolderHandler {
	return &FolderHandler{storage: st}
}

// CreateFolder creates folder_name under parent_id, or at the root.
// Names need not be unique.
func (h *FolderHandler) CreateFolder(c *gin.Context) {
	folder, err := h.storage.CreateFolder(c.Request.Context(), models.FolderSpec{
		Name:     c.Query("folder_name"),
		ParentID: c.Query("parent_id"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "Folder created successfully", folder)
}
