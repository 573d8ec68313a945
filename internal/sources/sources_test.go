package sources

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slanglab/backend/internal/models"
)

func TestSourceNames(t *testing.T) {
	assert.Equal(t, "reddit", NewRedditSource("id", "secret").GetName())
	assert.Equal(t, "twitter", NewTwitterSource("token").GetName())
	assert.Equal(t, "youtube", NewYouTubeSource("key").GetName())
	assert.Equal(t, "websearch", NewWebSearchSource("key", "engine").GetName())
}

func TestIsEnabled(t *testing.T) {
	tests := []struct {
		name     string
		source   Source
		expected bool
	}{
		{"reddit with credentials", NewRedditSource("id", "secret"), true},
		{"reddit missing secret", NewRedditSource("id", ""), false},
		{"reddit missing both", NewRedditSource("", ""), false},
		{"twitter with token", NewTwitterSource("token"), true},
		{"twitter without token", NewTwitterSource(""), false},
		{"youtube with key", NewYouTubeSource("key"), true},
		{"youtube without key", NewYouTubeSource(""), false},
		{"websearch with both", NewWebSearchSource("key", "engine"), true},
		{"websearch missing engine", NewWebSearchSource("key", ""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.source.IsEnabled())
		})
	}
}

func TestClampScore(t *testing.T) {
	assert.Equal(t, 0, clampScore(-5))
	assert.Equal(t, 0, clampScore(0))
	assert.Equal(t, 73, clampScore(73))
	assert.Equal(t, 100, clampScore(100))
	assert.Equal(t, 100, clampScore(480))
}

func TestRedditRelevance(t *testing.T) {
	tests := []struct {
		name     string
		post     redditPost
		expected int
	}{
		{"no engagement", redditPost{}, 50},
		{"moderate engagement", redditPost{Score: 120, NumComments: 25}, 67},
		{"viral post clamps at 100", redditPost{Score: 5000, NumComments: 900}, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, redditRelevance(tt.post))
		})
	}
}

func TestTwitterRelevance(t *testing.T) {
	tweet := twitterTweet{}
	tweet.PublicMetrics.LikeCount = 100
	tweet.PublicMetrics.RetweetCount = 10
	tweet.PublicMetrics.ReplyCount = 25

	assert.Equal(t, 70, twitterRelevance(tweet))
	assert.Equal(t, 50, twitterRelevance(twitterTweet{}))
}

func TestDedupeByURL(t *testing.T) {
	now := time.Now()
	sightings := []models.Sighting{
		{URL: "https://example.com/a", Score: 60, ObservedAt: now},
		{URL: "https://example.com/b", Score: 70, ObservedAt: now},
		{URL: "https://example.com/a", Score: 90, ObservedAt: now},
	}

	unique := dedupeByURL(sightings)

	assert.Len(t, unique, 2)
	assert.Equal(t, 60, unique[0].Score, "first occurrence wins")
	assert.Equal(t, "https://example.com/b", unique[1].URL)
}
