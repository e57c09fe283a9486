package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrNothingProcessed is returned when a batch yields no successful results.
var ErrNothingProcessed = errors.New("no images were successfully processed")

// ClassifyBatch classifies every id independently. Unknown ids and failed
// classifications are logged and skipped, never aborting the batch. The
// returned results follow the order of the successfully processed input ids;
// an empty outcome is reported as ErrNothingProcessed.
func (uc *RecognitionUseCase) ClassifyBatch(ctx context.Context, imageIDs []int) ([]Result, error) {
	results := make([]Result, 0, len(imageIDs))

	for _, imageID := range imageIDs {
		result, err := uc.ClassifyImage(ctx, imageID)
		if err != nil {
			uc.logger.Warn("image skipped in batch", zap.Int("image_id", imageID), zap.Error(err))
			continue
		}
		results = append(results, *result)
	}

	if len(results) == 0 {
		return nil, ErrNothingProcessed
	}

	uc.logger.Info("batch classification finished",
		zap.Int("processed", len(results)),
		zap.Int("requested", len(imageIDs)))
	return results, nil
}
