package llm

import "context"

// xaiProvider implements VisionProvider for xAI (Grok).
// xAI uses the OpenAI-compatible API format, and Grok vision models can
// judge candidate images directly by URL.
//
// API key: set via config or XAI_API_KEY env var.
type xaiProvider struct {
	base openAICompatClient
}

// NewXAI creates a provider for xAI (Grok).
func NewXAI(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.x.ai"
	}
	if cfg.Model == "" {
		cfg.Model = "grok-2-vision-1212"
	}
	return &xaiProvider{base: newOpenAICompatClient(cfg)}
}

func (p *xaiProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	return p.base.chat(ctx, req)
}

func (p *xaiProvider) ChatWithImages(ctx context.Context, req VisionChatRequest) (*ChatResponse, error) {
	return p.base.chatWithImages(ctx, req)
}
