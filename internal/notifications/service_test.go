package notifications

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tardnicus/wemb/internal/config"
	"github.com/tardnicus/wemb/internal/models"
)

func TestSendMatchPostsMentionAndPermalink(t *testing.T) {
	var received webhookMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	svc := NewService(&config.Config{WebhookURL: server.URL, MentionString: "@here"})

	criterion := models.Criterion{ID: 1, Type: models.SubmissionTypeWTS}
	post := models.Post{ID: "abc", URL: "https://www.reddit.com/r/watchexchange/comments/abc/wts/"}

	require.NoError(t, svc.SendMatch(criterion, post))
	assert.Equal(t, "@here https://www.reddit.com/r/watchexchange/comments/abc/wts/", received.Content)
}

func TestSendMatchWithoutMentionString(t *testing.T) {
	var received webhookMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	svc := NewService(&config.Config{WebhookURL: server.URL})
	post := models.Post{ID: "abc", URL: "https://www.reddit.com/r/watchexchange/comments/abc/wts/"}

	require.NoError(t, svc.SendMatch(models.Criterion{}, post))
	assert.Equal(t, post.URL, received.Content)
}

func TestSendMatchReportsWebhookFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	svc := NewService(&config.Config{WebhookURL: server.URL})

	err := svc.SendMatch(models.Criterion{}, models.Post{URL: "https://example.com/post"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestSendReportDeliversWebhookDigest(t *testing.T) {
	var received webhookMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	svc := NewService(&config.Config{WebhookURL: server.URL})

	report := &models.Report{
		GeneratedAt:  time.Now().UTC(),
		Period:       "daily",
		TotalMatches: 2,
		Matches: []models.MatchRecord{
			{CriterionID: 1, Type: models.SubmissionTypeWTS, Title: "[WTS] Seiko SARB035", URL: "https://example.com/a"},
			{CriterionID: 2, Type: models.SubmissionTypeWTB, Title: "[WTB] Omega Speedmaster", URL: "https://example.com/b"},
		},
		Summary: map[string]int{"WTS": 1, "WTB": 1},
	}

	require.NoError(t, svc.SendReport(report))
	assert.Contains(t, received.Content, "2 match(es)")
	assert.Contains(t, received.Content, "[WTS] Seiko SARB035")
	assert.Contains(t, received.Content, "WTS: 1")
	assert.Contains(t, received.Content, "WTB: 1")
}

func TestBuildWebhookDigestTruncatesLongLists(t *testing.T) {
	report := &models.Report{Period: "daily", TotalMatches: 12, Summary: map[string]int{"WTS": 12}}
	for i := 0; i < 12; i++ {
		report.Matches = append(report.Matches, models.MatchRecord{
			Type:  models.SubmissionTypeWTS,
			Title: fmt.Sprintf("[WTS] lot %d", i),
			URL:   fmt.Sprintf("https://example.com/%d", i),
		})
	}

	content := buildWebhookDigest(report)
	assert.Contains(t, content, "... and 2 more")
	assert.NotContains(t, content, "lot 11")
}

func TestBuildEmailHTML(t *testing.T) {
	report := &models.Report{
		GeneratedAt:  time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Period:       "weekly",
		TotalMatches: 1,
		Matches: []models.MatchRecord{
			{CriterionID: 7, Type: models.SubmissionTypeWTS, Title: "[WTS] Tudor BB58", Author: "seller", URL: "https://example.com/bb58"},
		},
		Summary: map[string]int{"WTS": 1},
	}

	html, err := buildEmailHTML(report)
	require.NoError(t, err)
	assert.Contains(t, html, "[WTS] Tudor BB58")
	assert.Contains(t, html, "criterion #7")
	assert.Contains(t, html, "https://example.com/bb58")

	text := buildEmailText(report)
	assert.Contains(t, text, "Total matches: 1")
	assert.Contains(t, text, "[WTS] Tudor BB58")
}
