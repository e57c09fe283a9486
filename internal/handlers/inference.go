package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/cars-recognizer/internal/store"
	"github.com/example/cars-recognizer/internal/usecase"
)

// RecognizeSingle classifies one stored image by id.
func (h *Handler) RecognizeSingle(c *gin.Context) {
	imageID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "image id must be an integer"})
		return
	}

	result, err := h.uc.ClassifyImage(c.Request.Context(), imageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "image not found"})
			return
		}
		h.logger.Error("recognition failed", zap.Int("image_id", imageID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// RecognizeBatch classifies a list of image ids, skipping the ones that fail.
func (h *Handler) RecognizeBatch(c *gin.Context) {
	var imageIDs []int
	if err := c.ShouldBindJSON(&imageIDs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "request body must be a JSON array of image ids"})
		return
	}

	results, err := h.uc.ClassifyBatch(c.Request.Context(), imageIDs)
	if err != nil {
		if errors.Is(err, usecase.ErrNothingProcessed) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "no image was successfully processed"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, results)
}

// ClearCache empties the in-memory result cache.
func (h *Handler) ClearCache(c *gin.Context) {
	h.uc.ClearCache()
	c.JSON(http.StatusOK, gin.H{"message": "Result cache cleared."})
}
