package model

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP endpoints for model cache administration.
type Handler struct {
	cache *Cache
}

// NewHandler creates a model admin handler.
func NewHandler(cache *Cache) *Handler {
	return &Handler{cache: cache}
}

// RegisterRoutes sets up model administration routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/models", h.ListModels)
	r.GET("/models/:id/info", h.GetModelInfo)
	r.POST("/models/:id/refresh", h.RefreshModel)
	r.POST("/models/refresh", h.RefreshAll)
	r.DELETE("/models/:id", h.UnloadModel)
}

// ListModels handles GET /models
func (h *Handler) ListModels(c *gin.Context) {
	ids := h.cache.IDs()
	models := make([]Info, 0, len(ids))
	for _, id := range ids {
		if info, ok := h.cache.Info(id); ok {
			models = append(models, info)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"models":     models,
		"totalCount": len(models),
	})
}

// GetModelInfo handles GET /models/:id/info
func (h *Handler) GetModelInfo(c *gin.Context) {
	id := c.Param("id")
	info, ok := h.cache.Info(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "model_not_found",
			"message": "Model " + id + " is not loaded",
		})
		return
	}
	c.JSON(http.StatusOK, info)
}

// RefreshModel handles POST /models/:id/refresh — drops any cached copy and
// reloads the checkpoint from disk.
func (h *Handler) RefreshModel(c *gin.Context) {
	id := c.Param("id")
	h.cache.Unload(id)
	if !h.cache.Load(id) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "refresh_failed",
			"message": "Model " + id + " not found or failed to load",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Model " + id + " refreshed successfully",
	})
}

// RefreshAll handles POST /models/refresh
func (h *Handler) RefreshAll(c *gin.Context) {
	n := h.cache.RefreshAll()
	c.JSON(http.StatusOK, gin.H{
		"message": "All models refreshed",
		"loaded":  n,
	})
}

// UnloadModel handles DELETE /models/:id
func (h *Handler) UnloadModel(c *gin.Context) {
	id := c.Param("id")
	if !h.cache.Unload(id) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "model_not_found",
			"message": "Model " + id + " is not loaded",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Model " + id + " unloaded",
	})
}
