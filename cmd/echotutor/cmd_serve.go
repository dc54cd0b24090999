package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/echotutor/tutor-service/internal/api"
	"github.com/echotutor/tutor-service/internal/config"
	"github.com/echotutor/tutor-service/internal/dashscope"
	"github.com/echotutor/tutor-service/internal/observability"
	"github.com/echotutor/tutor-service/internal/resilience"
	"github.com/echotutor/tutor-service/internal/session"
	"github.com/echotutor/tutor-service/internal/stt"
	"github.com/echotutor/tutor-service/internal/tutor"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("upload_dir", cfg.UploadDir).
		Str("audio_dir", cfg.AudioDir).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Bool("credential", cfg.DashScopeAPIKey != "").
		Msg("Echo Tutor starting")

	for _, dir := range []string{cfg.UploadDir, cfg.AudioDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	client := dashscope.NewClient(cfg)
	if !client.HasCredential() {
		logger.Warn().Msg("no DashScope API key configured, remote operations will return fallback values")
	}

	transcriber := stt.NewDeepgramTranscriber(cfg)
	if !transcriber.Available() {
		logger.Warn().Msg("no Deepgram API key configured, pronunciation practice will be degraded")
	}

	var budget *tutor.TokenBudget
	if cfg.QuestionPromptTokens > 0 {
		budget, err = tutor.NewTokenBudget(cfg.QuestionPromptTokens)
		if err != nil {
			logger.Warn().Err(err).Msg("tokenizer unavailable, question prompts will not be trimmed")
		}
	}

	store := session.NewStore(config.Seconds(cfg.SessionTTL), config.Seconds(cfg.SessionCleanupInterval))
	manager := session.NewManager(cfg, store, client, tutor.New(cfg, client, transcriber, budget))
	defer manager.Close()

	checks := readinessChecks(cfg, client)
	logger.Info().Strs("checks", observability.CheckNames(checks)).Msg("readiness checks registered")

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.Port),
		Handler:     api.NewServer(cfg, manager, checks...).Handler(),
		ReadTimeout: 60 * time.Second,
		// uploads wait for OCR, speech and question generation
		WriteTimeout: time.Duration(cfg.OCRTimeout+cfg.TTSTimeout+cfg.ChatTimeout)*time.Second + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	grpcServer, healthServer, err := startGRPCHealth(cfg, logger)
	if err != nil {
		return err
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("http://localhost:%s/api/v1", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		stopGRPCHealth(grpcServer, healthServer)
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	logger.Info().Int("active_sessions", manager.ActiveSessions()).Msg("Shutting down server...")
	stopGRPCHealth(grpcServer, healthServer)

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	for _, op := range []string{dashscope.OpOCR, dashscope.OpTTS, dashscope.OpChat} {
		requests, failures, rate := client.BreakerStats(op)
		logger.Info().
			Str("operation", op).
			Int64("requests", requests).
			Int64("failures", failures).
			Float64("failure_rate_pct", rate).
			Msg("remote call summary")
	}

	logger.Info().Msg("Server exited gracefully")
	return nil
}

// readinessChecks reports the provider credential, its breakers and the
// writability of the storage directories
func readinessChecks(cfg *config.Config, client *dashscope.Client) []observability.HealthCheck {
	return []observability.HealthCheck{
		{
			Name: "dashscope",
			Check: func(ctx context.Context) (bool, error) {
				if !client.HasCredential() {
					return false, errors.New("API key not configured")
				}
				for _, op := range []string{dashscope.OpOCR, dashscope.OpTTS, dashscope.OpChat} {
					if client.BreakerState(op) == resilience.StateOpen {
						return false, fmt.Errorf("%s circuit open", op)
					}
				}
				return true, nil
			},
		},
		{
			Name: "storage",
			Check: func(ctx context.Context) (bool, error) {
				for _, dir := range []string{cfg.UploadDir, cfg.AudioDir} {
					if err := checkWritable(dir); err != nil {
						return false, err
					}
				}
				return true, nil
			},
		},
	}
}

func checkWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".ready-*")
	if err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(filepath.Clean(name))
}

// startGRPCHealth serves the standard gRPC health service for orchestrators
// that probe over gRPC. An empty port disables it.
func startGRPCHealth(cfg *config.Config, logger zerolog.Logger) (*grpc.Server, *health.Server, error) {
	if cfg.GRPCHealthPort == "" {
		return nil, nil, nil
	}

	lis, err := net.Listen("tcp", ":"+cfg.GRPCHealthPort)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen on gRPC health port: %w", err)
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	go func() {
		logger.Info().Str("port", cfg.GRPCHealthPort).Msg("gRPC health service listening")
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error().Err(err).Msg("gRPC health service stopped")
		}
	}()
	return grpcServer, healthServer, nil
}

func stopGRPCHealth(grpcServer *grpc.Server, healthServer *health.Server) {
	if grpcServer == nil {
		return
	}
	healthServer.Shutdown()
	grpcServer.GracefulStop()
}
