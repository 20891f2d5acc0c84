package sources

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/tardnicus/wemb/internal/models"
)

// MockSource fabricates marketplace posts so the whole pipeline can run
// locally without Reddit access. Each fetch emits a few fresh posts cycling
// through titles and flairs that exercise both match outcomes.
type MockSource struct {
	subreddit string
	mu        sync.Mutex
	seq       int
}

var _ Source = (*MockSource)(nil)

var mockTitles = []string{
	"[WTS] Seiko SARB035 full kit",
	"[WTS] Omega Speedmaster Professional 3570.50",
	"[WTB] Tudor Black Bay 58 blue",
	"[WTS] Casio F-91W lot of three",
	"[WTB] Seiko SKX007, any condition",
	"Mailbag Monday: what arrived this week?",
}

var mockFlairs = []string{
	"0 Transactions",
	"3 Transactions",
	"7 Transactions",
	"25 Transactions",
	"",
}

// NewMockSource creates a mock feed for the given community name.
func NewMockSource(subreddit string) *MockSource {
	return &MockSource{subreddit: subreddit}
}

func (m *MockSource) Name() string {
	return "mock:r/" + m.subreddit
}

// Fetch simulates a short network delay and returns the next batch of
// fabricated posts.
func (m *MockSource) Fetch(ctx context.Context) ([]models.Post, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(500 * time.Millisecond):
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	posts := make([]models.Post, 0, 3)
	for i := 0; i < 3; i++ {
		m.seq++
		posts = append(posts, models.Post{
			ID:        fmt.Sprintf("mock_%d", m.seq),
			Title:     mockTitles[m.seq%len(mockTitles)],
			Author:    fmt.Sprintf("mock_user_%d", rand.Intn(100)),
			FlairText: mockFlairs[m.seq%len(mockFlairs)],
			URL:       fmt.Sprintf("https://www.reddit.com/r/%s/comments/mock_%d/", m.subreddit, m.seq),
			CreatedAt: time.Now().UTC(),
		})
	}
	return posts, nil
}
