// Command enhance backfills one or more article files with images and
// writes the run artifacts next to an output directory: the structured
// article view, the suggested slots, and the enhanced HTML.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/mlenoir/illustrate"
	"github.com/mlenoir/illustrate/article"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON)")
	outDir := flag.String("out", ".", "Output directory for artifacts")
	maxSlots := flag.Int("max-slots", 0, "Maximum image slots per article (0 = config default)")
	concurrency := flag.Int("concurrency", 0, "Parallel slot resolution (0 = config default)")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: enhance [flags] <article files...>")
		flag.PrintDefaults()
		os.Exit(2)
	}

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

	engine, err := illustrate.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		slog.Error("creating output directory", "dir", *outDir, "error", err)
		os.Exit(1)
	}

	var opts []illustrate.EnhanceOption
	if *maxSlots > 0 {
		opts = append(opts, illustrate.WithMaxSlots(*maxSlots))
	}
	if *concurrency > 0 {
		opts = append(opts, illustrate.WithConcurrency(*concurrency))
	}

	// Each input file is processed independently; one failure never aborts
	// the batch.
	failures := 0
	for _, path := range flag.Args() {
		if err := enhanceFile(context.Background(), engine, path, *outDir, opts); err != nil {
			slog.Error("enhancement failed", "file", path, "error", err)
			failures++
		}
	}

	if failures > 0 {
		slog.Warn("batch finished with failures", "failed", failures, "total", flag.NArg())
		os.Exit(1)
	}
}

func enhanceFile(ctx context.Context, engine illustrate.Engine, path, outDir string, opts []illustrate.EnhanceOption) error {
	slog.Info("enhancing", "file", path)

	res, err := engine.EnhanceFile(ctx, path, opts...)
	if err != nil {
		return err
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := writeArtifacts(res, outDir, stem); err != nil {
		return err
	}

	slog.Info("done", "file", path,
		"sections", len(res.Document.Sections),
		"slots", len(res.Slots),
		"injected", res.Report.Injected,
		"skipped", len(res.Report.Skipped))
	return nil
}

// writeArtifacts writes the three per-file artifacts: the article view, the
// slot list, and the enhanced HTML.
func writeArtifacts(res *illustrate.Result, outDir, stem string) error {
	if err := writeJSONFile(filepath.Join(outDir, stem+"_article_view.json"), res.Document); err != nil {
		return err
	}
	payload := article.SlotsPayload{Slots: res.Slots}
	if err := writeJSONFile(filepath.Join(outDir, stem+"_image_slots.json"), payload); err != nil {
		return err
	}
	htmlPath := filepath.Join(outDir, stem+"_enhanced.html")
	if err := os.WriteFile(htmlPath, []byte(res.EnhancedHTML), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", htmlPath, err)
	}
	return nil
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// applyEnvOverrides layers environment variables over the config.
// LLM_API_KEY, SEARCH_API_KEY and SEARCH_ENGINE_ID are the primary surface.
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
	if v := os.Getenv("ILLUSTRATE_VISION_PROVIDER"); v != "" {
		cfg.Vision.Provider = v
	}
	if v := os.Getenv("ILLUSTRATE_VISION_MODEL"); v != "" {
		cfg.Vision.Model = v
	}

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
