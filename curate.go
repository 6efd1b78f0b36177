package illustrate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mlenoir/illustrate/article"
	"github.com/mlenoir/illustrate/imagesearch"
	"github.com/mlenoir/illustrate/llm"
)

// maxCurationAttempts bounds retries when candidate images turn out to be
// unreachable for the vision provider.
const maxCurationAttempts = 3

const curationSystemPrompt = `You pick the best image for a slot in an article.
You are shown numbered candidate images with their metadata and the context
of the slot they would fill. Respond with JSON only:
{"selected_index": <number of the best candidate, starting at 0>,
 "caption": "<a short factual caption for that image>"}
Judge relevance to the slot context first, then visual quality. Reject logos,
thumbnails and images unrelated to the topic by picking a better candidate.`

// curator selects the best candidate image for a slot. With no vision
// provider the top-ranked search result wins.
type curator struct {
	vision llm.VisionProvider
	model  string
}

type curationSelection struct {
	SelectedIndex int    `json:"selected_index"`
	Caption       string `json:"caption"`
}

// pick returns the chosen candidate and its caption.
//
// The vision provider fetches candidate URLs itself; when a fetch fails the
// request errors out naming the URL, so that candidate is excluded and the
// selection retried with the rest. Running out of candidates or attempts
// drops the slot.
func (c *curator) pick(ctx context.Context, slot article.Slot, articleContext string, candidates []imagesearch.Candidate) (imagesearch.Candidate, string, error) {
	if len(candidates) == 0 {
		return imagesearch.Candidate{}, "", ErrNoCandidates
	}

	if c.vision == nil {
		cand := candidates[0]
		return cand, fallbackCaption(slot, cand), nil
	}

	remaining := candidates
	for attempt := 0; attempt < maxCurationAttempts && len(remaining) > 0; attempt++ {
		resp, err := c.vision.ChatWithImages(ctx, c.buildRequest(slot, articleContext, remaining))
		if err != nil {
			if i := unreachableCandidate(err, remaining); i >= 0 {
				slog.Warn("curate: candidate unreachable, excluding and retrying",
					"url", remaining[i].URL, "attempt", attempt+1)
				remaining = append(remaining[:i:i], remaining[i+1:]...)
				continue
			}
			return imagesearch.Candidate{}, "", fmt.Errorf("vision curation failed: %w", err)
		}

		var sel curationSelection
		if err := json.Unmarshal([]byte(trimFence(resp.Content)), &sel); err != nil ||
			sel.SelectedIndex < 0 || sel.SelectedIndex >= len(remaining) {
			// An unusable selection is not worth a retry round-trip; the
			// top-ranked candidate is a reasonable answer.
			slog.Warn("curate: unusable selection, using top candidate",
				"content", resp.Content, "error", err)
			cand := remaining[0]
			return cand, fallbackCaption(slot, cand), nil
		}

		cand := remaining[sel.SelectedIndex]
		caption := strings.TrimSpace(sel.Caption)
		if caption == "" {
			caption = fallbackCaption(slot, cand)
		}
		return cand, caption, nil
	}

	return imagesearch.Candidate{}, "", fmt.Errorf("%w: all candidates failed curation", ErrNoCandidates)
}

// buildRequest lays out the slot context, the numbered candidate metadata
// and the candidate images themselves.
func (c *curator) buildRequest(slot article.Slot, articleContext string, candidates []imagesearch.Candidate) llm.VisionChatRequest {
	var b strings.Builder
	fmt.Fprintf(&b, "Slot context:\n- search query: %s\n- image type: %s\n", slot.SearchQuery, slot.ImageType)
	if articleContext != "" {
		fmt.Fprintf(&b, "- surrounding text: %s\n", articleContext)
	}
	if slot.CaptionHint != "" {
		fmt.Fprintf(&b, "- caption hint: %s\n", slot.CaptionHint)
	}
	if slot.AltTextHint != "" {
		fmt.Fprintf(&b, "- depicts: %s\n", slot.AltTextHint)
	}
	b.WriteString("\nCandidates:\n")
	for i, cand := range candidates {
		fmt.Fprintf(&b, "%d: %s (%dx%d, %s) from %s\n",
			i, cand.Title, cand.Width, cand.Height, cand.MIMEType, cand.SourcePage)
	}

	parts := []llm.ContentPart{{Type: "text", Text: b.String()}}
	for _, cand := range candidates {
		parts = append(parts, llm.ContentPart{
			Type:     "image_url",
			ImageURL: &llm.ImageURL{URL: cand.URL, Detail: "low"},
		})
	}

	return llm.VisionChatRequest{
		Model: c.model,
		Messages: []llm.VisionMessage{
			{Role: "system", Content: []llm.ContentPart{{Type: "text", Text: curationSystemPrompt}}},
			{Role: "user", Content: parts},
		},
		Temperature:    0.2,
		MaxTokens:      512,
		ResponseFormat: "json_object",
	}
}

// unreachableCandidate returns the index of the candidate whose URL appears
// in the provider error, or -1. Vision APIs report image fetch failures as
// request errors mentioning the offending URL.
func unreachableCandidate(err error, candidates []imagesearch.Candidate) int {
	msg := err.Error()
	for i, cand := range candidates {
		if cand.URL != "" && strings.Contains(msg, cand.URL) {
			return i
		}
	}
	return -1
}

func fallbackCaption(slot article.Slot, cand imagesearch.Candidate) string {
	if slot.CaptionHint != "" {
		return slot.CaptionHint
	}
	return cand.Title
}

// trimFence removes a surrounding markdown code fence from model output.
func trimFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 && !strings.ContainsAny(s[:i], "{[") {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
