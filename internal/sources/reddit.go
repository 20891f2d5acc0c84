package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/tardnicus/wemb/internal/config"
	"github.com/tardnicus/wemb/internal/models"
	"golang.org/x/time/rate"
)

// RedditSource follows one subreddit's new queue. With client credentials it
// fetches through oauth.reddit.com; without them it falls back to the public
// JSON listing. Every fetch re-reads the full window so a reconnect starts
// from a cold state.
type RedditSource struct {
	subreddit    string
	clientID     string
	clientSecret string
	userAgent    string
	limit        int
	client       *resty.Client
	limiter      *rate.Limiter
	accessToken  string
}

var _ Source = (*RedditSource)(nil)

type redditAuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type redditListingResponse struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Author          string  `json:"author"`
	AuthorFlairText string  `json:"author_flair_text"`
	Permalink       string  `json:"permalink"`
	Created         float64 `json:"created_utc"`
}

// NewRedditSource creates a new Reddit feed client
func NewRedditSource(cfg *config.Config) *RedditSource {
	return &RedditSource{
		subreddit:    cfg.Subreddit,
		clientID:     cfg.RedditClientID,
		clientSecret: cfg.RedditClientSecret,
		userAgent:    cfg.RedditUserAgent,
		limit:        cfg.FetchLimit,
		client:       resty.New().SetTimeout(30 * time.Second),
		limiter:      rate.NewLimiter(rate.Every(cfg.PollInterval), 1),
	}
}

func (r *RedditSource) Name() string {
	return "reddit:r/" + r.subreddit
}

// Fetch returns the subreddit's current new queue, oldest first. Calls are
// paced by the poll-interval limiter so a tight monitor loop cannot hammer
// the API.
func (r *RedditSource) Fetch(ctx context.Context) ([]models.Post, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	if r.authenticated() && r.accessToken == "" {
		if err := r.authenticate(ctx); err != nil {
			return nil, fmt.Errorf("reddit authentication failed: %w", err)
		}
	}

	listingURL := fmt.Sprintf("https://www.reddit.com/r/%s/new.json?limit=%d&raw_json=1", r.subreddit, r.limit)
	req := r.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", r.userAgent)
	if r.accessToken != "" {
		listingURL = fmt.Sprintf("https://oauth.reddit.com/r/%s/new.json?limit=%d&raw_json=1", r.subreddit, r.limit)
		req.SetHeader("Authorization", "Bearer "+r.accessToken)
	}

	resp, err := req.Get(listingURL)
	if err != nil {
		return nil, fmt.Errorf("fetch new queue: %w", err)
	}
	if resp.StatusCode() == 401 {
		// Expired token; drop it so the next session re-authenticates.
		r.accessToken = ""
		return nil, fmt.Errorf("reddit API returned status 401")
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("reddit API returned status %d", resp.StatusCode())
	}

	return parseListing(resp.Body())
}

func (r *RedditSource) authenticated() bool {
	return r.clientID != "" && r.clientSecret != ""
}

func (r *RedditSource) authenticate(ctx context.Context) error {
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("User-Agent", r.userAgent).
		SetBasicAuth(r.clientID, r.clientSecret).
		SetFormData(map[string]string{
			"grant_type": "client_credentials",
		}).
		Post("https://www.reddit.com/api/v1/access_token")

	if err != nil {
		return err
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("token endpoint returned status %d", resp.StatusCode())
	}

	var authResp redditAuthResponse
	if err := json.Unmarshal(resp.Body(), &authResp); err != nil {
		return err
	}
	if authResp.AccessToken == "" {
		return fmt.Errorf("token endpoint returned no access token")
	}

	r.accessToken = authResp.AccessToken
	logrus.Debugf("Authenticated against the Reddit API (token expires in %ds)", authResp.ExpiresIn)
	return nil
}

// parseListing decodes a new-queue listing. Reddit returns newest-first;
// posts are reversed so the monitor sees them in submission order.
func parseListing(body []byte) ([]models.Post, error) {
	var listing redditListingResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("decode new queue: %w", err)
	}

	children := listing.Data.Children
	posts := make([]models.Post, 0, len(children))
	for i := len(children) - 1; i >= 0; i-- {
		posts = append(posts, toPost(children[i].Data))
	}
	return posts, nil
}

func toPost(p redditPost) models.Post {
	return models.Post{
		ID:        p.ID,
		Title:     p.Title,
		Author:    p.Author,
		FlairText: p.AuthorFlairText,
		URL:       "https://www.reddit.com" + p.Permalink,
		CreatedAt: time.Unix(int64(p.Created), 0).UTC(),
	}
}
