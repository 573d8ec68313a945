package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/slanglab/backend/internal/models"
)

// WebSearchSource implements a general web evidence provider backed by the
// Google Programmable Search API. It catches uses of a phrase on blogs,
// forums, and sites the platform-specific providers do not cover.
type WebSearchSource struct {
	apiKey   string
	engineID string
	client   *resty.Client
}

type webSearchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Pagemap struct {
			Metatags []map[string]string `json:"metatags"`
		} `json:"pagemap"`
	} `json:"items"`
}

// NewWebSearchSource creates a new general web search source.
func NewWebSearchSource(apiKey, engineID string) *WebSearchSource {
	return &WebSearchSource{
		apiKey:   apiKey,
		engineID: engineID,
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", userAgent),
	}
}

func (w *WebSearchSource) GetName() string {
	return "websearch"
}

func (w *WebSearchSource) IsEnabled() bool {
	return w.apiKey != "" && w.engineID != ""
}

func (w *WebSearchSource) FetchSightings(ctx context.Context, phrase string, window time.Duration) ([]models.Sighting, error) {
	if !w.IsEnabled() {
		logrus.Debug("Web search source disabled - missing API key or engine ID")
		return nil, nil
	}

	// The API restricts recency to whole days.
	days := int(window.Hours() / 24)
	if days < 1 {
		days = 1
	}

	resp, err := w.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":      w.apiKey,
			"cx":       w.engineID,
			"q":        fmt.Sprintf("%q", phrase),
			"dateRestrict": fmt.Sprintf("d%d", days),
			"num":      "10",
		}).
		Get("https://www.googleapis.com/customsearch/v1")
	if err != nil {
		return nil, fmt.Errorf("web search failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("web search returned status %d", resp.StatusCode())
	}

	var searchResp webSearchResponse
	if err := json.Unmarshal(resp.Body(), &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse web search response: %w", err)
	}

	now := time.Now()
	var sightings []models.Sighting
	for _, item := range searchResp.Items {
		if item.Link == "" {
			continue
		}
		sightings = append(sightings, models.Sighting{
			ID:      uuid.New(),
			Source:  w.GetName(),
			URL:     item.Link,
			Snippet: item.Title + " " + item.Snippet,
			// No engagement signal for arbitrary pages; matched pages from
			// the restricted window get a flat mid-scale score.
			Score:      50,
			ObservedAt: now,
		})
	}

	return dedupeByURL(sightings), nil
}
