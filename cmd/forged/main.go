// forged is the orchestrator server: it drives LLM-backed agents through
// multi-step code investigations over an MCTS decision engine, exposed as
// an HTTP/SSE API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tarsiersync/forgecode/pkg/api"
	"github.com/tarsiersync/forgecode/pkg/config"
	"github.com/tarsiersync/forgecode/pkg/filelock"
	"github.com/tarsiersync/forgecode/pkg/inference"
	"github.com/tarsiersync/forgecode/pkg/inference/anthropicbackend"
	"github.com/tarsiersync/forgecode/pkg/inference/grpcbackend"
	"github.com/tarsiersync/forgecode/pkg/ledger"
	"github.com/tarsiersync/forgecode/pkg/reward"
	"github.com/tarsiersync/forgecode/pkg/session"
	"github.com/tarsiersync/forgecode/pkg/tracking"
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
	sessionDir := flag.String("session-dir",
		getEnv("SESSION_DIR", "./data/sessions"),
		"Path to the session store directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	httpPort := getEnv("HTTP_PORT", "8080")

	log.Printf("Starting forged")
	log.Printf("HTTP Port: %s", httpPort)
	log.Printf("Config Directory: %s", *configDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("Failed to initialize configuration: %v", err)
	}

	client, err := newLLMClient(cfg)
	if err != nil {
		log.Fatalf("Failed to construct LLM client: %v", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			log.Printf("Error closing LLM client: %v", err)
		}
	}()

	dbConfig, err := ledger.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("Failed to load ledger database config: %v", err)
	}
	store, err := ledger.Open(dbConfig)
	if err != nil {
		log.Fatalf("Failed to connect to ledger database: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("Error closing ledger store: %v", err)
		}
	}()
	log.Println("Connected to ledger database")

	if err := os.MkdirAll(*sessionDir, 0o755); err != nil {
		log.Fatalf("Failed to create session directory: %v", err)
	}

	sessions := session.NewManager(*sessionDir)
	engine := inference.New(client, cfg.Tools)
	rewards := reward.New(client)
	tracker := tracking.NewRegistry()
	locks := filelock.New()

	// StubToolExecutor stands in for the real filesystem/MCP-backed tool
	// executor: session.ToolExecutor is the seam a production deployment
	// wires its own implementation into, the same way the teacher's
	// pkg/agent.ToolExecutor is implemented separately by pkg/mcp.
	loop := session.NewLoop(sessions, engine, rewards, session.StubToolExecutor{}, tracker, locks)

	server := api.NewServer(cfg, store, sessions, loop, tracker)

	ln, err := net.Listen("tcp", ":"+httpPort)
	if err != nil {
		log.Fatalf("Failed to listen on :%s: %v", httpPort, err)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on :%s", httpPort)
		log.Printf("Health check available at: http://localhost:%s/health", httpPort)
		if err := server.StartWithListener(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		log.Fatalf("HTTP server failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during graceful shutdown: %v", err)
	}
}

// newLLMClient builds the default provider named by cfg.Defaults.LLMProvider
// into a concrete inference.LLMClient, dispatching on its configured backend.
func newLLMClient(cfg *config.Config) (inference.LLMClient, error) {
	providerName := cfg.Defaults.LLMProvider
	provider, err := cfg.GetLLMProvider(providerName)
	if err != nil {
		return nil, err
	}

	switch provider.Backend {
	case config.LLMBackendGRPC:
		return grpcbackend.New(provider.Addr)
	case config.LLMBackendAnthropic:
		return anthropicbackend.New(anthropicbackend.Config{
			APIKey:       os.Getenv(provider.APIKeyEnv),
			BaseURL:      provider.BaseURL,
			DefaultModel: provider.Model,
			MaxTokens:    provider.MaxTokens,
		})
	default:
		return nil, fmt.Errorf("forged: unknown LLM backend %q for provider %q", provider.Backend, providerName)
	}
}
