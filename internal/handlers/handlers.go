package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/cars-recognizer/internal/config"
	"github.com/example/cars-recognizer/internal/store"
	"github.com/example/cars-recognizer/internal/usecase"
)

// Handler bundles the dependencies of the HTTP surface.
type Handler struct {
	uc     *usecase.RecognitionUseCase
	ledger *store.MetadataStore
	cfg    *config.Config
	logger *zap.Logger
}

// New creates the HTTP handler set.
func New(uc *usecase.RecognitionUseCase, ledger *store.MetadataStore, cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{uc: uc, ledger: ledger, cfg: cfg, logger: logger.Named("handlers")}
}

// Register wires all routes to the Gin router. The optional middleware is
// applied to every group except the root and health endpoints.
func (h *Handler) Register(router *gin.Engine, middleware ...gin.HandlerFunc) {
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":        "Cars Recognizer API",
			"version":     "1.0.0",
			"description": "Upload a car photo and get make/model predictions.",
		})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	upload := router.Group("/upload", middleware...)
	{
		upload.POST("", h.UploadSingle)
		upload.POST("/batch", h.UploadBatch)
	}

	inference := router.Group("/inference", middleware...)
	{
		inference.POST("/batch", h.RecognizeBatch)
		inference.POST("/cache/clear", h.ClearCache)
		inference.POST("/:id", h.RecognizeSingle)
	}

	files := router.Group("/files", middleware...)
	{
		files.GET("", h.ListFiles)
		files.GET("/:id", h.GetFile)
		files.DELETE("", h.DeleteAllFiles)
		files.DELETE("/:id", h.DeleteFile)
		files.POST("/:id/reprocess", h.ReprocessFile)
	}

	visualization := router.Group("/visualization", middleware...)
	{
		visualization.GET("/stats", h.GetStats)
		visualization.GET("/export/csv", h.ExportCSV)
		visualization.GET("/report", h.Report)
	}
}
