// Package suggest asks a chat model where an article would benefit from
// illustration. The model sees the structured article view and answers with
// slot records keyed by the stable section and paragraph ids.
package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mlenoir/illustrate/article"
	"github.com/mlenoir/illustrate/llm"
)

var (
	// ErrSuggestionFailed indicates the suggestion request itself failed.
	// The pipeline cannot continue without suggestions, so callers treat
	// this as fatal for the run.
	ErrSuggestionFailed = errors.New("suggest: slot suggestion request failed")

	// ErrSlotSchema indicates the model's answer did not decode into the
	// expected slot payload. Validated here, at the trust boundary, so the
	// rest of the pipeline never sees a malformed slot.
	ErrSlotSchema = errors.New("suggest: slot payload violates schema")
)

// DefaultMaxSlots bounds how many slots are requested per article.
const DefaultMaxSlots = 5

const systemPrompt = `You are an editorial assistant that decides where an article needs images.
You are given the structured view of an article: its title and its sections,
each with stable ids and paragraph texts. Suggest up to %d image slots.

Respond with JSON only, in this exact shape:
{"slots": [{
  "section_id": "...",        // required, id of the target section
  "paragraph_id": "...",      // optional, id of the target paragraph
  "position": "after",        // one of: before, after, inside
  "image_type": "photo",      // photo, illustration, diagram, chart, map
  "search_query": "...",      // required, a concrete web image search query
  "alt_text_hint": "...",     // accessibility text for the image
  "caption_hint": "...",      // short caption shown under the image
  "priority": 0.8,            // 0.0 to 1.0, how much this slot matters
  "recommended_dimensions": {"width": 800, "height": 600}
}]}

Only reference section and paragraph ids that appear in the article view.
Prefer slots that anchor on a specific paragraph. Do not suggest images for
every section; pick the places where a reader genuinely gains something.`

// Suggester turns a structured article into image slot suggestions.
type Suggester struct {
	chat        llm.Provider
	temperature float64
	maxTokens   int
}

// New creates a Suggester on top of a chat provider.
func New(chat llm.Provider) *Suggester {
	return &Suggester{
		chat:        chat,
		temperature: 0.3,
		maxTokens:   2048,
	}
}

// Suggest requests slot suggestions for the document. maxSlots bounds the
// returned slice; values below 1 fall back to DefaultMaxSlots.
func (s *Suggester) Suggest(ctx context.Context, doc *article.Document, maxSlots int) ([]article.Slot, error) {
	if maxSlots < 1 {
		maxSlots = DefaultMaxSlots
	}

	view, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling article view: %v", ErrSuggestionFailed, err)
	}

	resp, err := s.chat.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: fmt.Sprintf(systemPrompt, maxSlots)},
			{Role: "user", Content: "Article view:\n" + string(view)},
		},
		Temperature:    s.temperature,
		MaxTokens:      s.maxTokens,
		ResponseFormat: "json_object",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSuggestionFailed, err)
	}

	slots, err := decodeSlots(resp.Content)
	if err != nil {
		return nil, err
	}

	if len(slots) > maxSlots {
		slots = slots[:maxSlots]
	}
	slog.Info("suggest: slots received", "count", len(slots))
	return slots, nil
}

// decodeSlots parses and validates the model output. Models occasionally
// wrap JSON in markdown fences even in JSON mode, so those are stripped
// before decoding.
func decodeSlots(content string) ([]article.Slot, error) {
	cleaned := stripFences(content)

	var payload article.SlotsPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSlotSchema, err)
	}

	for i := range payload.Slots {
		slot := &payload.Slots[i]
		if slot.SectionID == "" {
			return nil, fmt.Errorf("%w: slot %d has no section_id", ErrSlotSchema, i)
		}
		if slot.SearchQuery == "" {
			return nil, fmt.Errorf("%w: slot %d has no search_query", ErrSlotSchema, i)
		}
		switch slot.Position {
		case article.PositionBefore, article.PositionAfter, article.PositionInside:
		default:
			slot.Position = article.PositionAfter
		}
		if slot.Priority < 0 {
			slot.Priority = 0
		}
		if slot.Priority > 1 {
			slot.Priority = 1
		}
	}
	return payload.Slots, nil
}

// stripFences removes a surrounding markdown code fence, with or without a
// language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// Drop the language tag line ("json" etc).
		if lang := strings.TrimSpace(s[:i]); lang == "" || !strings.ContainsAny(lang, "{}[]") {
			s = s[i+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
