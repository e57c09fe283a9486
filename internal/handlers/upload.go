package handlers

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/cars-recognizer/internal/imagefile"
	"github.com/example/cars-recognizer/internal/store"
)

type uploadResponse struct {
	Message string              `json:"message"`
	Files   []store.ImageRecord `json:"files"`
}

// UploadSingle accepts one image, validates it, writes it to the upload
// directory, and records it in the ledger.
func (h *Handler) UploadSingle(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "image file is required"})
		return
	}

	record, reason := h.storeUpload(file)
	if reason != "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": reason})
		return
	}

	h.logger.Info("file uploaded",
		zap.String("filename", record.Filename),
		zap.Int64("size_bytes", record.SizeBytes))
	c.JSON(http.StatusOK, uploadResponse{
		Message: "File uploaded successfully.",
		Files:   []store.ImageRecord{*record},
	})
}

// UploadBatch accepts several images at once; invalid files are reported but
// do not block the valid ones.
func (h *Handler) UploadBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "multipart form is required"})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "no files provided"})
		return
	}

	uploaded := make([]store.ImageRecord, 0, len(files))
	var uploadErrors []string
	for _, file := range files {
		record, reason := h.storeUpload(file)
		if reason != "" {
			uploadErrors = append(uploadErrors, fmt.Sprintf("%s: %s", file.Filename, reason))
			continue
		}
		uploaded = append(uploaded, *record)
	}

	if len(uploaded) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"detail": strings.Join(uploadErrors, "; ")})
		return
	}

	message := fmt.Sprintf("Uploaded %d file(s).", len(uploaded))
	if len(uploadErrors) > 0 {
		message += " Errors: " + strings.Join(uploadErrors, "; ")
	}
	h.logger.Info("batch upload finished",
		zap.Int("uploaded", len(uploaded)),
		zap.Int("errors", len(uploadErrors)))
	c.JSON(http.StatusOK, uploadResponse{Message: message, Files: uploaded})
}

// storeUpload validates and persists one multipart file. It returns the new
// ledger record, or a human-readable rejection reason.
func (h *Handler) storeUpload(file *multipart.FileHeader) (*store.ImageRecord, string) {
	if file.Filename == "" {
		return nil, "missing filename"
	}
	if !imagefile.ValidExtension(file.Filename) {
		return nil, "unsupported file format, allowed: jpg, jpeg, png"
	}

	src, err := file.Open()
	if err != nil {
		return nil, "unable to open uploaded file"
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, "failed to read uploaded file"
	}
	if !imagefile.ValidSize(data, h.cfg.App.MaxUploadSize) {
		return nil, fmt.Sprintf("file too large, limit is %d MB", h.cfg.App.MaxUploadSize/(1024*1024))
	}
	if !imagefile.ValidSignature(data) {
		return nil, "file is corrupt or not an image"
	}

	if err := os.MkdirAll(h.cfg.App.UploadDir, 0o755); err != nil {
		h.logger.Error("failed to create upload dir", zap.Error(err))
		return nil, "failed to store file"
	}
	path := filepath.Join(h.cfg.App.UploadDir, filepath.Base(file.Filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		h.logger.Error("failed to write uploaded file", zap.String("path", path), zap.Error(err))
		return nil, "failed to store file"
	}

	record, err := h.ledger.Add(file.Filename, path, imagefile.MimeType(file.Filename), int64(len(data)))
	if err != nil {
		h.logger.Error("failed to record upload", zap.Error(err))
		return nil, "failed to record file metadata"
	}
	return record, ""
}
