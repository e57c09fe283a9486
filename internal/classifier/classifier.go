package classifier

import "context"

// Prediction is a single ranked label returned by the classification model.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Client exposes the subset of the remote model used by the recognition flow.
type Client interface {
	Classify(ctx context.Context, imageBytes []byte) ([]Prediction, error)
}
