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

// YouTubeSource implements the YouTube Data API evidence provider.
type YouTubeSource struct {
	apiKey string
	client *resty.Client
}

type youtubeSearchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
			PublishedAt  string `json:"publishedAt"`
		} `json:"snippet"`
	} `json:"items"`
}

// NewYouTubeSource creates a new YouTube source.
func NewYouTubeSource(apiKey string) *YouTubeSource {
	return &YouTubeSource{
		apiKey: apiKey,
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", userAgent),
	}
}

func (y *YouTubeSource) GetName() string {
	return "youtube"
}

func (y *YouTubeSource) IsEnabled() bool {
	return y.apiKey != ""
}

func (y *YouTubeSource) FetchSightings(ctx context.Context, phrase string, window time.Duration) ([]models.Sighting, error) {
	if !y.IsEnabled() {
		logrus.Debug("YouTube source disabled - missing API key")
		return nil, nil
	}

	publishedAfter := time.Now().Add(-window).UTC().Format(time.RFC3339)

	resp, err := y.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"part":           "snippet",
			"q":              phrase,
			"type":           "video",
			"order":          "date",
			"maxResults":     "50",
			"publishedAfter": publishedAfter,
			"key":            y.apiKey,
		}).
		Get("https://www.googleapis.com/youtube/v3/search")
	if err != nil {
		return nil, fmt.Errorf("youtube search failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("youtube search returned status %d", resp.StatusCode())
	}

	var searchResp youtubeSearchResponse
	if err := json.Unmarshal(resp.Body(), &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse youtube response: %w", err)
	}

	var sightings []models.Sighting
	for _, item := range searchResp.Items {
		if item.ID.VideoID == "" {
			continue
		}
		observedAt, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		if err != nil {
			observedAt = time.Now()
		}

		sightings = append(sightings, models.Sighting{
			ID:         uuid.New(),
			Source:     y.GetName(),
			URL:        "https://www.youtube.com/watch?v=" + item.ID.VideoID,
			Snippet:    item.Snippet.Title + " " + item.Snippet.Description,
			// The search endpoint exposes no engagement counts, so video
			// results carry a flat mid-scale score.
			Score:      55,
			ObservedAt: observedAt,
		})
	}

	return dedupeByURL(sightings), nil
}
