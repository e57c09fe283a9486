package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/cars-recognizer/internal/classifier"
	"github.com/example/cars-recognizer/internal/logging"
	"github.com/example/cars-recognizer/internal/store"
)

// Ledger defines the persistence operations needed by the recognition flow.
type Ledger interface {
	GetByID(id int) (*store.ImageRecord, error)
	GetAll() ([]store.ImageRecord, error)
	UpdateResults(id int, predictions []classifier.Prediction) (*store.ImageRecord, error)
}

// Cache abstracts the result cache to make testing easier.
type Cache interface {
	Get(fingerprint string) ([]classifier.Prediction, bool)
	Put(fingerprint string, predictions []classifier.Prediction)
	Clear()
}

// Result is the outcome of classifying one stored image.
type Result struct {
	ID          int                     `json:"id"`
	Filename    string                  `json:"filename"`
	Predictions []classifier.Prediction `json:"predictions"`
}

// RecognitionUseCase composes fingerprinting, the result cache, the remote
// classifier, and the ledger into the classification operations.
type RecognitionUseCase struct {
	ledger Ledger
	cache  Cache
	model  classifier.Client
	logger *zap.Logger
}

// NewRecognitionUseCase constructs a new use case instance.
func NewRecognitionUseCase(ledger Ledger, cache Cache, model classifier.Client, logger *zap.Logger) *RecognitionUseCase {
	return &RecognitionUseCase{
		ledger: ledger,
		cache:  cache,
		model:  model,
		logger: logger.Named("recognition_usecase"),
	}
}

// Fingerprint derives the cache identity of raw image bytes. Byte-identical
// uploads always map to the same key.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ClassifyPath reads the image at path and returns its top-3 predictions,
// consulting the cache before the remote model. A failed remote call leaves
// the cache untouched.
func (uc *RecognitionUseCase) ClassifyPath(ctx context.Context, path string) ([]classifier.Prediction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image file: %w", err)
	}

	fingerprint := Fingerprint(data)
	if cached, ok := uc.cache.Get(fingerprint); ok {
		uc.logger.Info("result served from cache", zap.String("fingerprint", fingerprint[:12]))
		return cached, nil
	}

	predictions, err := uc.model.Classify(ctx, data)
	if err != nil {
		return nil, err
	}

	uc.cache.Put(fingerprint, predictions)
	return predictions, nil
}

// ClassifyImage resolves the image id through the ledger, classifies its
// file, and writes the predictions back into the record.
func (uc *RecognitionUseCase) ClassifyImage(ctx context.Context, imageID int) (*Result, error) {
	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.classify_image", requestID)

	record, err := uc.ledger.GetByID(imageID)
	if err != nil {
		return nil, logging.NewOperationError("usecase.classify_image", requestID, err)
	}

	predictions, err := uc.ClassifyPath(ctx, record.Path)
	if err != nil {
		wrapped := logging.NewOperationError("usecase.classify_image", requestID, err)
		opLogger.Error("classification failed", zap.Int("image_id", imageID), zap.Error(wrapped))
		return nil, wrapped
	}

	if _, err := uc.ledger.UpdateResults(imageID, predictions); err != nil {
		wrapped := logging.NewOperationError("usecase.update_results", requestID, err)
		opLogger.Error("failed to persist results", zap.Int("image_id", imageID), zap.Error(wrapped))
		return nil, wrapped
	}

	topLabel := ""
	if len(predictions) > 0 {
		topLabel = predictions[0].Label
	}
	opLogger.Info("image classified",
		zap.Int("image_id", imageID),
		zap.String("top_label", topLabel))

	return &Result{
		ID:          record.ID,
		Filename:    record.Filename,
		Predictions: predictions,
	}, nil
}

// ClearCache drops every cached result. Operational reset only.
func (uc *RecognitionUseCase) ClearCache() {
	uc.cache.Clear()
	uc.logger.Info("result cache cleared")
}
