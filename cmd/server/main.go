package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mlenoir/illustrate"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// Local .env is optional; absence is not an error.
	_ = godotenv.Load()

	cfg := illustrate.DefaultConfig()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			slog.Error("opening config", "error", err)
			os.Exit(1)
		}
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			f.Close()
			slog.Error("parsing config", "error", err)
			os.Exit(1)
		}
		f.Close()
	}

	applyEnvOverrides(&cfg)

	apiKey := os.Getenv("ILLUSTRATE_API_KEY")
	corsOrigins := os.Getenv("ILLUSTRATE_CORS_ORIGINS")

	engine, err := illustrate.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}

	h := newHandler(engine)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /enhance", h.handleEnhance)
	mux.HandleFunc("GET /health", h.handleHealth)

	// Middleware chain: recovery -> cors -> auth -> request id -> logging -> mux
	var handler http.Handler = mux
	handler = logMiddleware(handler)
	handler = requestIDMiddleware(handler)
	handler = authMiddleware(apiKey, handler)
	handler = corsMiddleware(corsOrigins, handler)
	handler = recoveryMiddleware(handler)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // enhancement calls out to LLMs and can be long
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

// applyEnvOverrides layers environment variables over the config file.
// LLM_API_KEY, SEARCH_API_KEY and SEARCH_ENGINE_ID are the primary surface;
// well-known provider keys work as fallbacks.
func applyEnvOverrides(cfg *illustrate.Config) {
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.Suggestion.APIKey = v
		cfg.Vision.APIKey = v
	}
	if v := os.Getenv("SEARCH_API_KEY"); v != "" {
		cfg.Search.APIKey = v
	}
	if v := os.Getenv("SEARCH_ENGINE_ID"); v != "" {
		cfg.Search.EngineID = v
	}
	if v := os.Getenv("ILLUSTRATE_SUGGESTION_PROVIDER"); v != "" {
		cfg.Suggestion.Provider = v
	}
	if v := os.Getenv("ILLUSTRATE_SUGGESTION_MODEL"); v != "" {
		cfg.Suggestion.Model = v
	}
	if v := os.Getenv("ILLUSTRATE_SUGGESTION_BASE_URL"); v != "" {
		cfg.Suggestion.BaseURL = v
	}
	if v := os.Getenv("ILLUSTRATE_VISION_PROVIDER"); v != "" {
		cfg.Vision.Provider = v
	}
	if v := os.Getenv("ILLUSTRATE_VISION_MODEL"); v != "" {
		cfg.Vision.Model = v
	}
	if v := os.Getenv("ILLUSTRATE_VISION_BASE_URL"); v != "" {
		cfg.Vision.BaseURL = v
	}

	// Fallback: check well-known provider env vars for API keys.
	fillProviderKey(&cfg.Suggestion)
	fillProviderKey(&cfg.Vision)
}

func fillProviderKey(cfg *illustrate.LLMConfig) {
	if cfg.APIKey != "" {
		return
	}
	switch cfg.Provider {
	case "xai":
		cfg.APIKey = os.Getenv("XAI_API_KEY")
	case "openai":
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	case "groq":
		cfg.APIKey = os.Getenv("GROQ_API_KEY")
	case "gemini":
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
}
