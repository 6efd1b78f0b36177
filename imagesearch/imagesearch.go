// Package imagesearch resolves text queries to candidate image URLs.
package imagesearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrMissingCredentials is returned when a searcher is constructed without
// the credentials its backend requires.
var ErrMissingCredentials = errors.New("imagesearch: api key and engine id are required")

// Candidate is one ranked image result.
type Candidate struct {
	URL        string `json:"url"`
	Title      string `json:"title,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	MIMEType   string `json:"mime_type,omitempty"`
	SourcePage string `json:"source_page,omitempty"`
}

// Searcher resolves a query to ranked image candidates. An empty result
// slice is a valid answer, not an error.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Candidate, error)
}

const (
	googleEndpoint = "https://www.googleapis.com/customsearch/v1"

	// The Custom Search API caps results at 10 per request.
	maxResultsPerRequest = 10
)

// Google implements Searcher on the Google Custom Search JSON API with
// searchType=image. The engine id selects a Programmable Search Engine
// configured for image search.
type Google struct {
	apiKey   string
	engineID string
	endpoint string
	client   *http.Client
}

// NewGoogle creates a Google image searcher.
func NewGoogle(apiKey, engineID string) (*Google, error) {
	if apiKey == "" || engineID == "" {
		return nil, ErrMissingCredentials
	}
	return &Google{
		apiKey:   apiKey,
		engineID: engineID,
		endpoint: googleEndpoint,
		client:   &http.Client{Timeout: 30 * time.Second},
	}, nil
}

type googleResponse struct {
	Items []struct {
		Link  string `json:"link"`
		Title string `json:"title"`
		Mime  string `json:"mime"`
		Image struct {
			Width       int    `json:"width"`
			Height      int    `json:"height"`
			ContextLink string `json:"contextLink"`
		} `json:"image"`
	} `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Search returns up to limit image candidates in API ranking order.
func (g *Google) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	if limit < 1 || limit > maxResultsPerRequest {
		limit = maxResultsPerRequest
	}

	params := url.Values{}
	params.Set("key", g.apiKey)
	params.Set("cx", g.engineID)
	params.Set("q", query)
	params.Set("searchType", "image")
	params.Set("num", strconv.Itoa(limit))

	req, err := http.NewRequestWithContext(ctx, "GET", g.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}

	var decoded googleResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if decoded.Error != nil {
			return nil, fmt.Errorf("image search error %d: %s", decoded.Error.Code, decoded.Error.Message)
		}
		return nil, fmt.Errorf("image search error %d: %s", resp.StatusCode, string(body))
	}

	candidates := make([]Candidate, 0, len(decoded.Items))
	for _, item := range decoded.Items {
		if item.Link == "" {
			continue
		}
		candidates = append(candidates, Candidate{
			URL:        item.Link,
			Title:      item.Title,
			Width:      item.Image.Width,
			Height:     item.Image.Height,
			MIMEType:   item.Mime,
			SourcePage: item.Image.ContextLink,
		})
	}
	return candidates, nil
}
