// Command recalld runs the recall engine's WebSocket/HTTP server.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/recallhq/engine/pkg/api"
	"github.com/recallhq/engine/pkg/clock"
	"github.com/recallhq/engine/pkg/config"
	"github.com/recallhq/engine/pkg/events"
	"github.com/recallhq/engine/pkg/fsrs"
	"github.com/recallhq/engine/pkg/idgen"
	"github.com/recallhq/engine/pkg/llm"
	"github.com/recallhq/engine/pkg/repository"
	"github.com/recallhq/engine/pkg/session"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	logger := slog.Default()
	ctx := context.Background()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}

	logger.Info("starting recalld",
		"config_dir", *configDir,
		"listen_addr", cfg.Server.ListenAddr,
		"tutor_model", cfg.LLM.TutorModel)

	llmClient, err := newLLMClient(cfg.LLM)
	if err != nil {
		log.Fatalf("Failed to construct LLM client: %v", err)
	}
	defer func() {
		if err := llmClient.Close(); err != nil {
			logger.Warn("error closing LLM client", "error", err)
		}
	}()

	repos := repository.NewMemoryRepositories().AsRepositories()

	scheduler := fsrs.New(cfg.FSRS.Weights, cfg.FSRS.DesiredRetention)
	connManager := events.NewConnectionManager(events.DefaultWriteTimeout)
	sink := api.NewConnManagerSink(connManager, logger)

	engine := session.NewEngine(session.Deps{
		Repos:               repos,
		Clock:               clock.System{},
		IDs:                 idgen.UUIDGenerator{},
		Scheduler:           scheduler,
		TutorClient:         llmClient,
		EvaluatorClient:     llmClient,
		RabbitholeClient:    llmClient,
		TranscriptionClient: llmClient,
		Sink:                sink,
		Logger:              logger,
	}, cfg.Engine, cfg.LLM)

	var sweeper *session.Sweeper
	if cfg.Sweeper.Enabled {
		sweeper = session.NewSweeper(repos, clock.System{}, cfg.Sweeper.PauseTTL, logger)
		if err := sweeper.Start(cfg.Sweeper.Schedule); err != nil {
			log.Fatalf("Failed to start sweeper: %v", err)
		}
		defer sweeper.Stop()
	}

	server := api.NewServer(cfg.Server, engine, connManager, logger)

	go func() {
		logger.Info("HTTP server listening", "addr", cfg.Server.ListenAddr)
		if err := server.Start(cfg.Server.ListenAddr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
}

// newLLMClient builds the single llm.Client shared by every call site
// (tutor, evaluator, rabbithole, transcription each pass their own
// Model string per call, so one underlying connection suffices).
//
// The gRPC side-car path requires the generated proto/llmpb bindings,
// which this module does not check in and which only compile into the
// binary with `-tags grpc` (see pkg/llm/grpc_client.go). A default
// build without that tag falls back to a stub that fails clearly if
// UseDirectAnthropic isn't set, instead of failing to compile.
func newLLMClient(cfg config.LLMProviderConfig) (llm.Client, error) {
	if cfg.UseDirectAnthropic {
		apiKeyEnv := cfg.AnthropicAPIKeyEnv
		if apiKeyEnv == "" {
			apiKeyEnv = "ANTHROPIC_API_KEY"
		}
		return llm.NewAnthropicClient(os.Getenv(apiKeyEnv), cfg.TutorModel), nil
	}
	return llm.NewGRPCClient(cfg.ServiceAddr, llm.WithModel(cfg.TutorModel))
}
