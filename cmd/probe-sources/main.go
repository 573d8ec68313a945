// Command probe-sources checks connectivity to each evidence provider with
// a sample phrase, for verifying credentials before a deploy.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/slanglab/backend/internal/config"
	"github.com/slanglab/backend/internal/sources"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	phrase := "rizz"
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	probes := []sources.Source{
		sources.NewRedditSource(cfg.RedditClientID, cfg.RedditClientSecret),
		sources.NewTwitterSource(cfg.TwitterBearerToken),
		sources.NewYouTubeSource(cfg.YouTubeAPIKey),
		sources.NewWebSearchSource(cfg.SearchAPIKey, cfg.SearchEngineID),
	}

	fmt.Printf("Probing %d evidence providers with phrase %q\n", len(probes), phrase)
	for _, src := range probes {
		probe(ctx, src, phrase)
	}
}

func probe(ctx context.Context, src sources.Source, phrase string) {
	fmt.Printf("%-12s ", src.GetName())

	if !src.IsEnabled() {
		fmt.Println("DISABLED (missing credentials)")
		return
	}

	start := time.Now()
	sightings, err := src.FetchSightings(ctx, phrase, 24*time.Hour)
	if err != nil {
		fmt.Printf("FAILED: %v\n", err)
		return
	}

	fmt.Printf("OK: %d sightings in %v\n", len(sightings), time.Since(start).Round(time.Millisecond))
}
