package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/example/cars-recognizer/internal/auth"
	"github.com/example/cars-recognizer/internal/cache"
	"github.com/example/cars-recognizer/internal/classifier"
	"github.com/example/cars-recognizer/internal/config"
	"github.com/example/cars-recognizer/internal/store"
	"github.com/example/cars-recognizer/internal/usecase"
)

var jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02, 0x03}

type stubModel struct {
	predictions []classifier.Prediction
	err         error
	calls       int
}

func (s *stubModel) Classify(ctx context.Context, imageBytes []byte) ([]classifier.Prediction, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.predictions, nil
}

type testEnv struct {
	router *gin.Engine
	ledger *store.MetadataStore
	cfg    *config.Config
}

func newTestEnv(t *testing.T, model classifier.Client, middleware ...gin.HandlerFunc) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	cfg := &config.Config{
		App: config.AppConfig{
			UploadDir:     filepath.Join(dir, "uploads"),
			MetadataFile:  filepath.Join(dir, "metadata.json"),
			MaxUploadSize: 1024 * 1024,
			CacheCapacity: 16,
		},
	}

	logger := zap.NewNop()
	ledger := store.New(cfg.App.MetadataFile, logger)
	resultCache, err := cache.New(cfg.App.CacheCapacity)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	uc := usecase.NewRecognitionUseCase(ledger, resultCache, model, logger)

	router := gin.New()
	New(uc, ledger, cfg, logger).Register(router, middleware...)
	return &testEnv{router: router, ledger: ledger, cfg: cfg}
}

func buildUpload(t *testing.T, field, filename string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("failed to create multipart part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("failed to write payload: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func doUpload(t *testing.T, env *testEnv, filename string, payload []byte) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := buildUpload(t, "file", filename, payload)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	return resp
}

func TestUploadAcceptsValidJPEG(t *testing.T) {
	env := newTestEnv(t, &stubModel{})

	resp := doUpload(t, env, "car.jpg", jpegBytes)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var payload struct {
		Files []store.ImageRecord `json:"files"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(payload.Files) != 1 {
		t.Fatalf("expected one file, got %d", len(payload.Files))
	}
	record := payload.Files[0]
	if record.ID != 1 || record.Processed || record.MimeType != "image/jpeg" {
		t.Fatalf("unexpected record: %+v", record)
	}
	if _, err := os.Stat(record.Path); err != nil {
		t.Fatalf("expected backing file on disk: %v", err)
	}
}

func TestUploadRejectsBadExtension(t *testing.T) {
	env := newTestEnv(t, &stubModel{})

	resp := doUpload(t, env, "car.gif", jpegBytes)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestUploadRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t, &stubModel{})

	resp := doUpload(t, env, "car.jpg", []byte("definitely not an image"))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	env := newTestEnv(t, &stubModel{})

	payload := append(append([]byte{}, jpegBytes...), bytes.Repeat([]byte{0}, int(env.cfg.App.MaxUploadSize))...)
	resp := doUpload(t, env, "car.jpg", payload)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestUploadBatchReportsPerFileErrors(t *testing.T) {
	env := newTestEnv(t, &stubModel{})

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, name := range []string{"good.jpg", "bad.txt"} {
		part, err := writer.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("failed to create part: %v", err)
		}
		_, _ = part.Write(jpegBytes)
	}
	_ = writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload/batch", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var payload uploadResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(payload.Files) != 1 || payload.Files[0].Filename != "good.jpg" {
		t.Fatalf("expected only good.jpg to upload, got %+v", payload.Files)
	}
	if !strings.Contains(payload.Message, "bad.txt") {
		t.Fatalf("expected error mention of bad.txt in %q", payload.Message)
	}
}

func TestRecognizeSingleUnknownID(t *testing.T) {
	env := newTestEnv(t, &stubModel{})

	req := httptest.NewRequest(http.MethodPost, "/inference/99", nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestRecognizeSingleEndToEnd(t *testing.T) {
	model := &stubModel{predictions: []classifier.Prediction{
		{Label: "Toyota Camry", Confidence: 0.91},
		{Label: "Honda Accord", Confidence: 0.05},
		{Label: "Mazda 6", Confidence: 0.02},
	}}
	env := newTestEnv(t, model)

	if resp := doUpload(t, env, "car.jpg", jpegBytes); resp.Code != http.StatusOK {
		t.Fatalf("upload failed: %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/inference/1", nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var result usecase.Result
	if err := json.Unmarshal(resp.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if result.ID != 1 || len(result.Predictions) != 3 || result.Predictions[0].Label != "Toyota Camry" {
		t.Fatalf("unexpected result: %+v", result)
	}

	record, err := env.ledger.GetByID(1)
	if err != nil {
		t.Fatalf("failed to load record: %v", err)
	}
	if !record.Processed || len(record.Results) != 3 {
		t.Fatalf("expected processed record with results, got %+v", record)
	}
}

func TestRecognizeSingleClassifierFailureReturns502(t *testing.T) {
	env := newTestEnv(t, &stubModel{err: classifier.ErrRateLimited})

	if resp := doUpload(t, env, "car.jpg", jpegBytes); resp.Code != http.StatusOK {
		t.Fatalf("upload failed: %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/inference/1", nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
}

func TestRecognizeBatchAllFailuresReturns400(t *testing.T) {
	env := newTestEnv(t, &stubModel{err: classifier.ErrModelUnavailable})

	req := httptest.NewRequest(http.MethodPost, "/inference/batch", strings.NewReader("[1,2,3]"))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestReprocessResetsRecord(t *testing.T) {
	model := &stubModel{predictions: []classifier.Prediction{{Label: "Kia Optima", Confidence: 0.5}}}
	env := newTestEnv(t, model)

	doUpload(t, env, "car.jpg", jpegBytes)
	req := httptest.NewRequest(http.MethodPost, "/inference/1", nil)
	env.router.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodPost, "/files/1/reprocess", nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	record, err := env.ledger.GetByID(1)
	if err != nil {
		t.Fatalf("failed to load record: %v", err)
	}
	if record.Processed || record.Results != nil {
		t.Fatalf("expected reset record, got %+v", record)
	}
}

func TestDeleteFileRemovesBackingFile(t *testing.T) {
	env := newTestEnv(t, &stubModel{})

	doUpload(t, env, "car.jpg", jpegBytes)
	record, err := env.ledger.GetByID(1)
	if err != nil {
		t.Fatalf("failed to load record: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/files/1", nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if _, err := os.Stat(record.Path); !os.IsNotExist(err) {
		t.Fatal("expected backing file to be removed from disk")
	}
	if _, err := env.ledger.GetByID(1); err == nil {
		t.Fatal("expected record to be gone")
	}
}

func TestExportCSVWithoutProcessedFiles(t *testing.T) {
	env := newTestEnv(t, &stubModel{})

	req := httptest.NewRequest(http.MethodGet, "/visualization/export/csv", nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestExportCSVContainsProcessedRows(t *testing.T) {
	model := &stubModel{predictions: []classifier.Prediction{{Label: "Toyota Camry", Confidence: 0.91}}}
	env := newTestEnv(t, model)

	doUpload(t, env, "car.jpg", jpegBytes)
	env.router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/inference/1", nil))

	req := httptest.NewRequest(http.MethodGet, "/visualization/export/csv", nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got := resp.Header().Get("Content-Disposition"); !strings.Contains(got, "results.csv") {
		t.Fatalf("unexpected content disposition: %q", got)
	}
	body := resp.Body.String()
	if !strings.Contains(body, "filename,top_prediction,confidence,all_predictions") {
		t.Fatalf("missing header row in %q", body)
	}
	if !strings.Contains(body, "car.jpg,Toyota Camry,0.91") {
		t.Fatalf("missing data row in %q", body)
	}
}

func TestStatsEndpoint(t *testing.T) {
	model := &stubModel{predictions: []classifier.Prediction{{Label: "Toyota Camry", Confidence: 0.91}}}
	env := newTestEnv(t, model)

	doUpload(t, env, "car.jpg", jpegBytes)
	env.router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/inference/1", nil))

	req := httptest.NewRequest(http.MethodGet, "/visualization/stats", nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var stats usecase.StatsSummary
	if err := json.Unmarshal(resp.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if stats.TotalFiles != 1 || stats.ProcessedFiles != 1 || stats.UnprocessedFiles != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(stats.TopBrands) != 1 || stats.TopBrands[0].Label != "Toyota Camry" {
		t.Fatalf("unexpected top brands: %+v", stats.TopBrands)
	}
}

func TestRoutesRequireAuthWhenConfigured(t *testing.T) {
	const secret = "test-secret"
	env := newTestEnv(t, &stubModel{}, auth.JWTMiddleware(secret, ""))

	req := httptest.NewRequest(http.MethodGet, "/files", nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}

	claims := jwt.RegisteredClaims{
		Subject:   "user-123",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/files", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp = httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", resp.Code)
	}

	// Health stays open even when auth is configured.
	resp = httptest.NewRecorder()
	env.router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected open health endpoint, got %d", resp.Code)
	}
}
