package hfclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/cars-recognizer/internal/classifier"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "google/vit-base-patch16-224"

// DefaultBaseURL is the Hugging Face Inference API router endpoint.
const DefaultBaseURL = "https://router.huggingface.co/hf-inference/models"

const topK = 3

// Config holds the gateway settings. Zero values fall back to the reference
// deployment defaults.
type Config struct {
	BaseURL          string
	Model            string
	Token            string
	Timeout          time.Duration
	ColdStartDelay   time.Duration
	ColdStartRetries int
}

// Client calls the Hugging Face Inference API over HTTP. It is stateless
// apart from its configuration; re-sending the same bytes is always safe.
type Client struct {
	httpClient       *http.Client
	url              string
	token            string
	coldStartDelay   time.Duration
	coldStartRetries int
	logger           *zap.Logger
}

// New constructs a gateway client. The token is validated lazily, on the
// first classification attempt, so a service without a token still starts.
func New(cfg Config, logger *zap.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	delay := cfg.ColdStartDelay
	if delay <= 0 {
		delay = 5 * time.Second
	}
	retries := cfg.ColdStartRetries
	if retries <= 0 {
		retries = 5
	}
	return &Client{
		httpClient:       &http.Client{Timeout: timeout},
		url:              strings.TrimSuffix(baseURL, "/") + "/" + model,
		token:            cfg.Token,
		coldStartDelay:   delay,
		coldStartRetries: retries,
		logger:           logger.Named("hfclient"),
	}
}

type rawPrediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type apiError struct {
	Error string `json:"error"`
}

// Classify sends the image bytes to the inference API and returns the top-3
// predictions sorted by descending confidence. A 503 whose body reports the
// model is loading is retried after a fixed delay, up to the configured
// attempt cap; every other failure is returned immediately.
func (c *Client) Classify(ctx context.Context, imageBytes []byte) ([]classifier.Prediction, error) {
	if c.token == "" {
		return nil, classifier.ErrMissingToken
	}

	for attempt := 1; ; attempt++ {
		predictions, retryable, err := c.classifyOnce(ctx, imageBytes)
		if err == nil {
			return predictions, nil
		}
		if !retryable || attempt >= c.coldStartRetries {
			return nil, err
		}

		c.logger.Info("model is loading, waiting before retry",
			zap.Int("attempt", attempt),
			zap.Duration("delay", c.coldStartDelay))
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("classification aborted: %w", ctx.Err())
		case <-time.After(c.coldStartDelay):
		}
	}
}

func (c *Client) classifyOnce(ctx context.Context, imageBytes []byte) ([]classifier.Prediction, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(imageBytes))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("connection error calling inference API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("connection error reading inference response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var raw []rawPrediction
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, false, fmt.Errorf("%w: undecodable response: %s", classifier.ErrModelUnavailable, body)
		}
		c.logger.Info("inference API responded", zap.Int("predictions", len(raw)))
		return topPredictions(raw), false, nil

	case http.StatusUnauthorized:
		return nil, false, classifier.ErrInvalidToken

	case http.StatusTooManyRequests:
		return nil, false, classifier.ErrRateLimited

	case http.StatusServiceUnavailable:
		var payload apiError
		_ = json.Unmarshal(body, &payload)
		if strings.Contains(strings.ToLower(payload.Error), "loading") {
			return nil, true, fmt.Errorf("%w: %s", classifier.ErrModelLoading, payload.Error)
		}
		return nil, false, fmt.Errorf("%w: %s", classifier.ErrModelUnavailable, payload.Error)

	default:
		return nil, false, fmt.Errorf("%w: status=%d body=%s", classifier.ErrModelUnavailable, resp.StatusCode, body)
	}
}

// topPredictions sorts by descending score keeping the response order among
// equal scores, truncates to topK, and rounds confidences to 4 decimals.
func topPredictions(raw []rawPrediction) []classifier.Prediction {
	sort.SliceStable(raw, func(i, j int) bool { return raw[i].Score > raw[j].Score })
	if len(raw) > topK {
		raw = raw[:topK]
	}
	predictions := make([]classifier.Prediction, len(raw))
	for i, item := range raw {
		predictions[i] = classifier.Prediction{
			Label:      item.Label,
			Confidence: roundConfidence(item.Score),
		}
	}
	return predictions
}

func roundConfidence(score float64) float64 {
	return math.Round(score*10000) / 10000
}
