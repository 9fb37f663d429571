package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lexiqai/meeting-recorder/internal/audio"
	"github.com/lexiqai/meeting-recorder/internal/config"
	"github.com/lexiqai/meeting-recorder/internal/observability"
	"github.com/lexiqai/meeting-recorder/internal/quota"
	"github.com/lexiqai/meeting-recorder/internal/recording"
	"github.com/lexiqai/meeting-recorder/internal/resilience"
	"github.com/lexiqai/meeting-recorder/internal/storage"
	"github.com/lexiqai/meeting-recorder/internal/stt"
	"github.com/lexiqai/meeting-recorder/internal/transport"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("stt_provider", cfg.STTProvider).
		Str("storage_backend", cfg.StorageBackend).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Meeting Recorder Service starting")

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	store, err := storage.Open(startupCtx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open storage")
	}
	defer store.Close()

	provider, err := stt.NewProvider(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create STT provider")
	}
	if config.IsPlaceholderKey(cfg.ProviderAPIKey()) {
		// Recordings will be refused at start until a real key is configured
		logger.Warn().Str("provider", provider.Name()).Msg("STT API key is missing or a placeholder")
	}

	checks := map[string]observability.HealthCheckFunc{
		"storage": func(ctx context.Context) (bool, error) {
			if err := store.Ping(ctx); err != nil {
				return false, err
			}
			return true, nil
		},
	}

	var gate quota.Gate = quota.Unlimited
	redisGate, err := quota.FromConfig(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to configure transcription quota")
	}
	if redisGate != nil {
		defer redisGate.Close()
		gate = redisGate
		checks["quota"] = func(ctx context.Context) (bool, error) {
			if err := redisGate.Ping(ctx); err != nil {
				return false, err
			}
			return true, nil
		}
		logger.Info().Int("daily_limit", cfg.QuotaDailyLimit).Msg("Transcription quota enabled")
	}

	factory := newOrchestratorFactory(cfg, provider, store, gate)

	// Create HTTP server
	mux := http.NewServeMux()

	// Register recording WebSocket handler
	mux.HandleFunc("/streams/recording", transport.HandleRecordingWS(factory, cfg.SampleRate, logger))

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness endpoint
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Websocket sessions last as long as a meeting, so no read/write timeouts
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// gRPC health service mirrors /ready for load balancers that speak gRPC
	healthServer := observability.NewHealthServer(checks, logger)
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go healthServer.Watch(watchCtx, 15*time.Second)
	go func() {
		if err := healthServer.Serve(fmt.Sprintf(":%s", cfg.GRPCHealthPort)); err != nil {
			logger.Error().Err(err).Msg("gRPC health server stopped")
		}
	}()

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", recordingEndpoint(cfg)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopWatch()
	healthServer.Stop()
	// Shutdown does not wait for hijacked websocket connections; open
	// sessions finish their stop sequence when their connection drops
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}

// newOrchestratorFactory builds one orchestrator per websocket connection
func newOrchestratorFactory(cfg *config.Config, provider stt.Provider, store storage.DurableStore, gate quota.Gate) transport.Factory {
	retry := resilience.NewRetryConfig(cfg.RetryMaxAttempts, cfg.RetryInitialBackoff, cfg.RetryBackoffFactor)

	var newLive func(sampleRate int) stt.LiveListener
	if cfg.LiveCaptionsEnabled && cfg.STTProvider == config.ProviderDeepgram {
		newLive = func(sampleRate int) stt.LiveListener {
			return stt.NewDeepgramLive(cfg, sampleRate, observability.GetLogger())
		}
	}

	return func(devices audio.MediaDevices, events recording.Events, logger zerolog.Logger) (*recording.Orchestrator, error) {
		return recording.New(recording.Options{
			Config:          cfg,
			Devices:         devices,
			Provider:        provider,
			Store:           store,
			Quota:           gate,
			NewLiveListener: newLive,
			Retry:           retry,
			Events:          events,
			Logger:          logger,
		})
	}
}

func recordingEndpoint(cfg *config.Config) string {
	if cfg.PublicURL != "" {
		return cfg.PublicURL + "/streams/recording"
	}
	return fmt.Sprintf("ws://localhost:%s/streams/recording", cfg.Port)
}
