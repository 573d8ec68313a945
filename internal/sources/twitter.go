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

// TwitterSource implements the Twitter/X API evidence provider.
type TwitterSource struct {
	bearerToken string
	client      *resty.Client
}

type twitterSearchResponse struct {
	Data []twitterTweet `json:"data"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

type twitterTweet struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	AuthorID      string `json:"author_id"`
	CreatedAt     string `json:"created_at"`
	PublicMetrics struct {
		RetweetCount int `json:"retweet_count"`
		LikeCount    int `json:"like_count"`
		ReplyCount   int `json:"reply_count"`
	} `json:"public_metrics"`
}

// NewTwitterSource creates a new Twitter source.
func NewTwitterSource(bearerToken string) *TwitterSource {
	return &TwitterSource{
		bearerToken: bearerToken,
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", userAgent),
	}
}

func (t *TwitterSource) GetName() string {
	return "twitter"
}

func (t *TwitterSource) IsEnabled() bool {
	return t.bearerToken != ""
}

func (t *TwitterSource) FetchSightings(ctx context.Context, phrase string, window time.Duration) ([]models.Sighting, error) {
	if !t.IsEnabled() {
		logrus.Debug("Twitter source disabled - missing bearer token")
		return nil, nil
	}

	startTime := time.Now().Add(-window).UTC().Format(time.RFC3339)

	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+t.bearerToken).
		SetQueryParams(map[string]string{
			"query":        fmt.Sprintf("%q -is:retweet lang:en", phrase),
			"start_time":   startTime,
			"max_results":  "100",
			"tweet.fields": "created_at,public_metrics,author_id",
		}).
		Get("https://api.twitter.com/2/tweets/search/recent")
	if err != nil {
		return nil, fmt.Errorf("twitter search failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("twitter search returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var searchResp twitterSearchResponse
	if err := json.Unmarshal(resp.Body(), &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse twitter response: %w", err)
	}

	var sightings []models.Sighting
	for _, tweet := range searchResp.Data {
		observedAt, err := time.Parse(time.RFC3339, tweet.CreatedAt)
		if err != nil {
			observedAt = time.Now()
		}

		sightings = append(sightings, models.Sighting{
			ID:         uuid.New(),
			Source:     t.GetName(),
			URL:        fmt.Sprintf("https://twitter.com/i/web/status/%s", tweet.ID),
			Snippet:    tweet.Text,
			Score:      twitterRelevance(tweet),
			ObservedAt: observedAt,
		})
	}

	return dedupeByURL(sightings), nil
}

// twitterRelevance estimates 0-100 relevance from tweet engagement.
func twitterRelevance(tweet twitterTweet) int {
	score := 50
	score += tweet.PublicMetrics.LikeCount / 10
	score += tweet.PublicMetrics.RetweetCount / 2
	score += tweet.PublicMetrics.ReplyCount / 5
	return clampScore(score)
}
