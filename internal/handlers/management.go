package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/cars-recognizer/internal/store"
)

// ListFiles returns every ledger record.
func (h *Handler) ListFiles(c *gin.Context) {
	records, err := h.ledger.GetAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to read metadata"})
		return
	}
	if records == nil {
		records = []store.ImageRecord{}
	}
	c.JSON(http.StatusOK, records)
}

// GetFile returns one record by id.
func (h *Handler) GetFile(c *gin.Context) {
	imageID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "image id must be an integer"})
		return
	}

	record, err := h.ledger.GetByID(imageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "image not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to read metadata"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// DeleteFile removes a record and its backing file from disk. Deleting the
// file is this handler's job, not the ledger's.
func (h *Handler) DeleteFile(c *gin.Context) {
	imageID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "image id must be an integer"})
		return
	}

	record, err := h.ledger.GetByID(imageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "image not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to read metadata"})
		return
	}

	h.removeBackingFile(record.Path)
	if _, err := h.ledger.DeleteByID(imageID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to delete record"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("File %q deleted.", record.Filename)})
}

// DeleteAllFiles removes every record and backing file.
func (h *Handler) DeleteAllFiles(c *gin.Context) {
	records, err := h.ledger.GetAll()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to read metadata"})
		return
	}

	count := 0
	for _, record := range records {
		h.removeBackingFile(record.Path)
		deleted, err := h.ledger.DeleteByID(record.ID)
		if err != nil {
			h.logger.Error("failed to delete record", zap.Int("id", record.ID), zap.Error(err))
			continue
		}
		if deleted {
			count++
		}
	}
	h.logger.Info("all files deleted", zap.Int("count", count))
	c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("Deleted %d file(s).", count)})
}

// ReprocessFile clears the classification results so the image can be
// classified again.
func (h *Handler) ReprocessFile(c *gin.Context) {
	imageID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "image id must be an integer"})
		return
	}

	record, err := h.ledger.ResetResults(imageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"detail": "image not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "failed to reset results"})
		return
	}
	h.logger.Info("results reset", zap.Int("id", imageID))
	c.JSON(http.StatusOK, record)
}

func (h *Handler) removeBackingFile(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		h.logger.Warn("failed to remove backing file", zap.String("path", path), zap.Error(err))
	}
}
