package sources

import (
	"context"
	"fmt"

	"github.com/tardnicus/wemb/internal/config"
	"github.com/tardnicus/wemb/internal/models"
)

// Source is the feed collaborator: a producer of marketplace posts from one
// community's new queue.
type Source interface {
	Name() string
	// Fetch returns the community's current new-queue window, oldest first.
	// The window is bounded (about 100 posts), so a reconnect naturally
	// backfills recent history; the processed-submission cache keeps the
	// backfill from being re-notified. A request failure is a
	// connection-level failure and ends the current stream session.
	Fetch(ctx context.Context) ([]models.Post, error)
}

// NewSource selects the feed implementation for the configured mode.
func NewSource(cfg *config.Config) (Source, error) {
	switch cfg.FeedMode {
	case "reddit":
		return NewRedditSource(cfg), nil
	case "mock":
		return NewMockSource(cfg.Subreddit), nil
	default:
		return nil, fmt.Errorf("unknown feed mode %q (use 'reddit' or 'mock')", cfg.FeedMode)
	}
}
