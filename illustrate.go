// Package illustrate backfills articles with images. The pipeline structures
// an HTML article into sections and paragraphs with stable ids, asks a chat
// model where images belong, resolves each suggestion to a real image via
// web search plus vision curation, and injects captioned figure blocks back
// into the article.
package illustrate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mlenoir/illustrate/article"
	"github.com/mlenoir/illustrate/imagesearch"
	"github.com/mlenoir/illustrate/llm"
	"github.com/mlenoir/illustrate/source"
	"github.com/mlenoir/illustrate/suggest"
)

// Engine is the main entry point for the enhancement pipeline.
type Engine interface {
	// Enhance runs the full pipeline on an HTML article string.
	Enhance(ctx context.Context, htmlSrc string, opts ...EnhanceOption) (*Result, error)

	// EnhanceFile normalizes a document file (html, md, pdf, txt) into
	// article HTML and enhances it.
	EnhanceFile(ctx context.Context, path string, opts ...EnhanceOption) (*Result, error)
}

// Result carries every artifact of one enhancement run.
type Result struct {
	Document      *article.Document      `json:"document"`
	AnnotatedHTML string                 `json:"annotated_html"`
	EnhancedHTML  string                 `json:"enhanced_html"`
	Slots         []article.Slot         `json:"slots"`
	Resolved      []article.ResolvedSlot `json:"resolved_slots"`
	Report        *article.InjectReport  `json:"report"`
}

// EnhanceOption configures a single enhancement run.
type EnhanceOption func(*enhanceOptions)

type enhanceOptions struct {
	maxSlots    int
	concurrency int
}

// WithMaxSlots overrides the configured slot budget for this run.
func WithMaxSlots(n int) EnhanceOption {
	return func(o *enhanceOptions) { o.maxSlots = n }
}

// WithConcurrency overrides how many slots resolve in parallel for this run.
// Results always come back in slot order regardless.
func WithConcurrency(n int) EnhanceOption {
	return func(o *enhanceOptions) { o.concurrency = n }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg       Config
	suggester *suggest.Suggester
	searcher  imagesearch.Searcher
	curate    *curator
	sources   *source.Registry
}

// hostedProviders require an API key; without one the stage is disabled
// rather than guaranteed to fail on the first request.
var hostedProviders = map[string]bool{
	"xai":        true,
	"openai":     true,
	"groq":       true,
	"gemini":     true,
	"openrouter": true,
}

// New creates an enhancement engine. Missing credentials disable the
// affected stage with a warning instead of failing: without a suggestion
// model articles pass through untouched apart from id annotation, and
// without search credentials suggested slots stay unresolved.
func New(cfg Config) (Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MaxSlots == 0 {
		cfg.MaxSlots = DefaultConfig().MaxSlots
	}
	if cfg.CandidatesPerSlot == 0 {
		cfg.CandidatesPerSlot = DefaultConfig().CandidatesPerSlot
	}
	if cfg.ResolveConcurrency == 0 {
		cfg.ResolveConcurrency = 1
	}

	e := &engine{cfg: cfg, sources: source.NewRegistry()}

	if provider := providerFor(cfg.Suggestion, "suggestion"); provider != nil {
		e.suggester = suggest.New(provider)
	}

	if cfg.Search.APIKey == "" || cfg.Search.EngineID == "" {
		slog.Warn("engine: search credentials missing, image resolution disabled")
	} else {
		searcher, err := imagesearch.NewGoogle(cfg.Search.APIKey, cfg.Search.EngineID)
		if err != nil {
			return nil, fmt.Errorf("creating image searcher: %w", err)
		}
		e.searcher = searcher
	}

	e.curate = &curator{model: cfg.Vision.Model}
	if provider := providerFor(cfg.Vision, "vision"); provider != nil {
		vision, ok := provider.(llm.VisionProvider)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrVisionNotSupported, cfg.Vision.Provider)
		}
		e.curate.vision = vision
	}

	return e, nil
}

// providerFor builds the LLM provider for one stage, or nil when the stage
// is unconfigured or a hosted provider has no key.
func providerFor(cfg LLMConfig, stage string) llm.Provider {
	if cfg.Provider == "" {
		slog.Warn("engine: no provider configured, stage disabled", "stage", stage)
		return nil
	}
	if hostedProviders[cfg.Provider] && cfg.APIKey == "" {
		slog.Warn("engine: api key missing, stage disabled",
			"stage", stage, "provider", cfg.Provider)
		return nil
	}
	p, err := llm.NewProvider(llm.Config{
		Provider: cfg.Provider,
		Model:    cfg.Model,
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
	})
	if err != nil {
		slog.Warn("engine: provider creation failed, stage disabled",
			"stage", stage, "error", err)
		return nil
	}
	return p
}

// Enhance runs structure, suggestion, resolution and injection on an HTML
// article. Suggestion failures abort the run; per-slot resolution failures
// only drop the slot.
func (e *engine) Enhance(ctx context.Context, htmlSrc string, opts ...EnhanceOption) (*Result, error) {
	options := &enhanceOptions{
		maxSlots:    e.cfg.MaxSlots,
		concurrency: e.cfg.ResolveConcurrency,
	}
	for _, o := range opts {
		o(options)
	}

	annotated, doc, err := article.Structure(htmlSrc)
	if err != nil {
		return nil, fmt.Errorf("structuring article: %w", err)
	}
	slog.Info("enhance: article structured",
		"title", doc.Title, "sections", len(doc.Sections))

	var slots []article.Slot
	if e.suggester == nil {
		slog.Warn("enhance: suggestion disabled, no slots will be filled")
	} else {
		slots, err = e.suggester.Suggest(ctx, doc, options.maxSlots)
		if err != nil {
			return nil, fmt.Errorf("suggesting slots: %w", err)
		}
	}

	resolved := e.resolveSlots(ctx, doc, slots, options.concurrency)

	enhanced, report, err := article.Inject(annotated, resolved)
	if err != nil {
		return nil, fmt.Errorf("injecting images: %w", err)
	}
	slog.Info("enhance: done",
		"slots", len(slots), "injected", report.Injected, "skipped", len(report.Skipped))

	return &Result{
		Document:      doc,
		AnnotatedHTML: annotated,
		EnhancedHTML:  enhanced,
		Slots:         slots,
		Resolved:      resolved,
		Report:        report,
	}, nil
}

// EnhanceFile normalizes the input file into article HTML and enhances it.
func (e *engine) EnhanceFile(ctx context.Context, path string, opts ...EnhanceOption) (*Result, error) {
	htmlSrc, err := e.sources.ReadFile(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reading source %s: %w", path, err)
	}
	return e.Enhance(ctx, htmlSrc, opts...)
}

// resolveSlots resolves every slot to an image, up to concurrency slots in
// parallel. Each result lands at its slot's original index, so the output
// order never depends on scheduling.
func (e *engine) resolveSlots(ctx context.Context, doc *article.Document, slots []article.Slot, concurrency int) []article.ResolvedSlot {
	resolved := make([]article.ResolvedSlot, len(slots))
	if len(slots) == 0 {
		return resolved
	}

	if e.searcher == nil {
		slog.Warn("enhance: no searcher, slots stay unresolved", "slots", len(slots))
		for i, slot := range slots {
			resolved[i] = article.ResolvedSlot{Slot: slot}
		}
		return resolved
	}

	if concurrency < 1 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, slot := range slots {
		wg.Add(1)
		go func(i int, slot article.Slot) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			resolved[i] = e.resolveSlot(ctx, doc, slot)
		}(i, slot)
	}
	wg.Wait()
	return resolved
}

// resolveSlot searches candidates for one slot and curates the best match.
// Every failure path returns the slot unresolved; injection drops it.
func (e *engine) resolveSlot(ctx context.Context, doc *article.Document, slot article.Slot) article.ResolvedSlot {
	out := article.ResolvedSlot{Slot: slot}

	candidates, err := e.searcher.Search(ctx, slot.SearchQuery, e.cfg.CandidatesPerSlot)
	if err != nil {
		slog.Warn("resolve: image search failed, dropping slot",
			"query", slot.SearchQuery, "section_id", slot.SectionID, "error", err)
		return out
	}
	if len(candidates) == 0 {
		slog.Warn("resolve: no candidates, dropping slot",
			"query", slot.SearchQuery, "section_id", slot.SectionID)
		return out
	}

	cand, caption, err := e.curate.pick(ctx, slot, slotContext(doc, slot), candidates)
	if err != nil {
		slog.Warn("resolve: curation failed, dropping slot",
			"query", slot.SearchQuery, "section_id", slot.SectionID, "error", err)
		return out
	}

	out.ImageURL = cand.URL
	out.AltText = slot.AltTextHint
	out.Caption = caption
	slog.Info("resolve: slot resolved",
		"section_id", slot.SectionID, "paragraph_id", slot.ParagraphID, "url", cand.URL)
	return out
}
