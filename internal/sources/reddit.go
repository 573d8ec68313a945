package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/slanglab/backend/internal/models"
)

// RedditSource implements the Reddit API evidence provider. The app-only
// OAuth token is cached until shortly before expiry; the cron pass and a
// manual trigger can fetch concurrently, so the cache is mutex-guarded.
type RedditSource struct {
	clientID     string
	clientSecret string
	client       *resty.Client
	authURL      string

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

type redditAuthResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type redditSearchResponse struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	Permalink   string  `json:"permalink"`
	Created     float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
}

// NewRedditSource creates a new Reddit source.
func NewRedditSource(clientID, clientSecret string) *RedditSource {
	return &RedditSource{
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       resty.New().SetTimeout(30 * time.Second),
		authURL:      "https://www.reddit.com/api/v1/access_token",
	}
}

func (r *RedditSource) GetName() string {
	return "reddit"
}

func (r *RedditSource) IsEnabled() bool {
	return r.clientID != "" && r.clientSecret != ""
}

func (r *RedditSource) FetchSightings(ctx context.Context, phrase string, window time.Duration) ([]models.Sighting, error) {
	if !r.IsEnabled() {
		logrus.Debug("Reddit source disabled - missing credentials")
		return nil, nil
	}

	token, err := r.authenticate()
	if err != nil {
		return nil, fmt.Errorf("reddit authentication failed: %w", err)
	}

	cutoff := time.Now().Add(-window)

	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", userAgent).
		SetHeader("Authorization", "Bearer "+token).
		SetQueryParams(map[string]string{
			"q":     fmt.Sprintf("%q", phrase),
			"sort":  "new",
			"limit": "100",
			"t":     "week",
		}).
		Get("https://oauth.reddit.com/search")
	if err != nil {
		return nil, fmt.Errorf("reddit search failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("reddit search returned status %d", resp.StatusCode())
	}

	var searchResp redditSearchResponse
	if err := json.Unmarshal(resp.Body(), &searchResp); err != nil {
		return nil, fmt.Errorf("failed to parse reddit response: %w", err)
	}

	var sightings []models.Sighting
	for _, child := range searchResp.Data.Children {
		post := child.Data
		observedAt := time.Unix(int64(post.Created), 0)
		if observedAt.Before(cutoff) {
			continue
		}

		snippet := post.Title
		if post.Selftext != "" {
			snippet = post.Title + " " + post.Selftext
		}

		sightings = append(sightings, models.Sighting{
			ID:         uuid.New(),
			Source:     r.GetName(),
			URL:        "https://www.reddit.com" + post.Permalink,
			Snippet:    snippet,
			Score:      redditRelevance(post),
			ObservedAt: observedAt,
		})
	}

	return dedupeByURL(sightings), nil
}

// redditRelevance estimates 0-100 relevance from post engagement.
func redditRelevance(post redditPost) int {
	score := 50
	score += post.Score / 10
	score += post.NumComments / 5
	return clampScore(score)
}

// authenticate returns a valid app-only token, refreshing it when the cached
// one is near expiry. Holding the lock across the refresh means concurrent
// passes share one token fetch instead of racing the cache.
func (r *RedditSource) authenticate() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.accessToken != "" && time.Now().Before(r.tokenExpiry) {
		return r.accessToken, nil
	}

	resp, err := r.client.R().
		SetHeader("User-Agent", userAgent).
		SetBasicAuth(r.clientID, r.clientSecret).
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		Post(r.authURL)
	if err != nil {
		return "", err
	}

	var authResp redditAuthResponse
	if err := json.Unmarshal(resp.Body(), &authResp); err != nil {
		return "", err
	}
	if authResp.AccessToken == "" {
		return "", fmt.Errorf("reddit returned empty access token")
	}

	r.accessToken = authResp.AccessToken
	// Refresh a minute early so an in-flight search never carries a token
	// that expires mid-request.
	r.tokenExpiry = time.Now().Add(time.Duration(authResp.ExpiresIn)*time.Second - time.Minute)
	return r.accessToken, nil
}
