package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"drive-gateway/internal/api/response"
)

const Version = "1.0.0"

// HealthHandler answers liveness and discovery requests without touching the
// provider.
type HealthHandler struct {
	provider string
	now      func() time.Time
}

func NewHealthHandler(provider string) *HealthHandler {
	return &HealthHandler{provider: provider, now: time.Now}
}

func (h *HealthHandler) Health(c *gin.Context) {
	response.Success(c, "Service is healthy", gin.H{
		"status":    "healthy",
		"provider":  h.provider,
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// Index describes the available endpoints.
func (h *HealthHandler) Index(c *gin.Context) {
	response.Success(c, "Drive Storage Gateway", gin.H{
		"version":  Version,
		"provider": h.provider,
		"endpoints": gin.H{
			"health":        "GET /health",
			"list":          "GET /files?limit=&folder_id=&page_token=",
			"info":          "GET /files/{file_id}",
			"upload":        "POST /upload?folder_id=",
			"download":      "GET /download/{file_id}",
			"delete":        "DELETE /files/{file_id}",
			"rename":        "PUT /files/{file_id}?name=",
			"create_folder": "POST /folders?folder_name=&parent_id=",
			"search":        "GET /search?q=&limit=&page_token=",
		},
	})
}
