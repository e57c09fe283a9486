package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/cars-recognizer/internal/auth"
	"github.com/example/cars-recognizer/internal/cache"
	"github.com/example/cars-recognizer/internal/config"
	"github.com/example/cars-recognizer/internal/handlers"
	"github.com/example/cars-recognizer/internal/hfclient"
	"github.com/example/cars-recognizer/internal/logging"
	"github.com/example/cars-recognizer/internal/store"
	"github.com/example/cars-recognizer/internal/usecase"
)

func main() {
	logger, err := logging.NewLogger()
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	if err := os.MkdirAll(cfg.App.UploadDir, 0o755); err != nil {
		logger.Fatal("failed to create upload directory", zap.Error(err))
	}

	ledger := store.New(cfg.App.MetadataFile, logger)
	resultCache, err := cache.New(cfg.App.CacheCapacity)
	if err != nil {
		logger.Fatal("failed to create result cache", zap.Error(err))
	}

	model := hfclient.New(hfclient.Config{
		BaseURL:          cfg.HF.BaseURL,
		Model:            cfg.HF.Model,
		Token:            cfg.HF.Token,
		Timeout:          cfg.HF.Timeout,
		ColdStartDelay:   cfg.HF.ColdStartDelay,
		ColdStartRetries: cfg.HF.ColdStartRetries,
	}, logger)
	if cfg.HF.Token == "" {
		logger.Warn("HF_API_TOKEN is not set, classification requests will fail")
	}

	uc := usecase.NewRecognitionUseCase(ledger, resultCache, model, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = cfg.App.MaxUploadSize

	var middleware []gin.HandlerFunc
	if cfg.Auth.JWTSecret != "" {
		middleware = append(middleware, auth.JWTMiddleware(cfg.Auth.JWTSecret, cfg.Auth.JWTAudience))
	}
	handlers.New(uc, ledger, cfg, logger).Register(router, middleware...)

	addr := net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	logger.Info("Cars Recognizer API listening",
		zap.String("addr", addr),
		zap.String("model", cfg.HF.Model))
	if err := serveHTTPServer(server, 15*time.Second, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
