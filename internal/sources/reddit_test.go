package sources

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedditAuthenticate_SharedTokenAcrossGoroutines(t *testing.T) {
	var tokenRequests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenRequests, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-1","expires_in":3600}`))
	}))
	defer server.Close()

	source := NewRedditSource("id", "secret")
	source.authURL = server.URL

	// The cron pass and a manual trigger can authenticate at the same time;
	// every caller must see a valid token and the cache must absorb all but
	// one fetch.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := source.authenticate()
			assert.NoError(t, err)
			assert.Equal(t, "tok-1", token)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenRequests))
}

func TestRedditAuthenticate_RefreshesExpiredToken(t *testing.T) {
	var tokenRequests int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&tokenRequests, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok-2","expires_in":3600}`))
	}))
	defer server.Close()

	source := NewRedditSource("id", "secret")
	source.authURL = server.URL
	source.accessToken = "stale"
	source.tokenExpiry = time.Now().Add(-time.Minute)

	token, err := source.authenticate()
	require.NoError(t, err)

	assert.Equal(t, "tok-2", token)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenRequests))
}
