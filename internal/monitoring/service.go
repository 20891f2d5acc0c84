package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tardnicus/wemb/internal/archive"
	"github.com/tardnicus/wemb/internal/config"
	"github.com/tardnicus/wemb/internal/models"
	"github.com/tardnicus/wemb/internal/notifications"
	"github.com/tardnicus/wemb/internal/sources"
	"github.com/tardnicus/wemb/internal/store"
)

// maxBufferedMatches bounds the in-memory match buffer between digests.
const maxBufferedMatches = 500

// Service follows the submission stream and checks every new submission
// against the stored criteria.
type Service struct {
	config    *config.Config
	source    sources.Source
	criteria  store.CriteriaStore
	processed store.ProcessedStore
	notifier  notifications.Notifier
	archive   archive.Store

	metrics Metrics
	matches []models.MatchRecord
	mu      sync.RWMutex
}

// Metrics holds stream counters
type Metrics struct {
	PostsSeen         int       `json:"posts_seen"`
	SkippedDuplicates int       `json:"skipped_duplicates"`
	PostsEvaluated    int       `json:"posts_evaluated"`
	Matches           int       `json:"matches"`
	NotifierFailures  int       `json:"notifier_failures"`
	Reconnects        int       `json:"reconnects"`
	LastPostAt        time.Time `json:"last_post_at"`
	LastError         string    `json:"last_error,omitempty"`
}

// NewService creates a new monitoring service
func NewService(cfg *config.Config, source sources.Source, criteria store.CriteriaStore, processed store.ProcessedStore, notifier notifications.Notifier, archiveStore archive.Store) *Service {
	return &Service{
		config:    cfg,
		source:    source,
		criteria:  criteria,
		processed: processed,
		notifier:  notifier,
		archive:   archiveStore,
	}
}

// Run follows the submission stream until ctx is cancelled. Cancellation is
// the only way out; any other stream failure is logged and the stream is
// reopened after the configured backoff. The feed replays a window of recent
// submissions on reconnect, so posts handled during the outage are caught up
// and the processed cache keeps the replayed ones from being re-notified.
func (s *Service) Run(ctx context.Context) error {
	for {
		err := s.stream(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			logrus.Info("Monitor shutting down")
			return err
		}

		s.recordError(err)
		logrus.Errorf("Stream failed, reconnecting in %v: %v", s.config.ReconnectBackoff, err)

		select {
		case <-ctx.Done():
			logrus.Info("Monitor shutting down")
			return ctx.Err()
		case <-time.After(s.config.ReconnectBackoff):
		}

		s.mu.Lock()
		s.metrics.Reconnects++
		s.mu.Unlock()
	}
}

// stream polls the source until a fetch fails or ctx is cancelled. Fetch
// pacing lives in the source itself.
func (s *Service) stream(ctx context.Context) error {
	logrus.Infof("Following new submissions on %s", s.source.Name())

	for {
		posts, err := s.source.Fetch(ctx)
		if err != nil {
			return fmt.Errorf("fetch submissions: %w", err)
		}

		for _, post := range posts {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.handlePost(ctx, post)
		}
	}
}

// handlePost runs the per-submission pipeline: processed-cache check, fresh
// criteria read, per-criterion match and notify, then the processed-cache
// commit. Each stage failure is contained so one bad submission cannot take
// the stream down.
func (s *Service) handlePost(ctx context.Context, post models.Post) {
	logrus.Debugf("Incoming submission %s", post.ID)
	logrus.Debugf("  URL: %s", post.URL)
	logrus.Debugf("  Title: %s", post.Title)
	logrus.Debugf("  Flair: %s", post.FlairText)

	s.mu.Lock()
	s.metrics.PostsSeen++
	s.metrics.LastPostAt = time.Now().UTC()
	s.mu.Unlock()

	seen, err := s.processed.HasProcessed(ctx, post.ID)
	if err != nil {
		if ctx.Err() == nil {
			logrus.Errorf("Failed to read processed cache for %s: %v", post.ID, err)
			s.recordError(err)
		}
		return
	}
	if seen {
		logrus.Debug("Submission has already been processed, skipping")
		s.mu.Lock()
		s.metrics.SkippedDuplicates++
		s.mu.Unlock()
		return
	}

	// Criteria are read fresh for every submission so additions and
	// deletions take effect without a restart.
	criteria, err := s.criteria.ListAll(ctx)
	if err != nil {
		// Leaving the submission uncommitted means the replay window
		// delivers it again once the store recovers.
		if ctx.Err() == nil {
			logrus.Errorf("Failed to load criteria: %v", err)
			s.recordError(err)
		}
		return
	}
	if len(criteria) == 0 {
		// Still falls through to the commit: an unmatched post is a
		// processed post, with or without criteria configured.
		logrus.Warn("No criteria loaded, nothing to check")
	} else {
		s.mu.Lock()
		s.metrics.PostsEvaluated++
		s.mu.Unlock()
	}

	for _, criterion := range criteria {
		logrus.Debugf("  Checking %s", criterion)
		if !CheckCriterion(criterion, post) {
			logrus.Debug("    Did not match")
			continue
		}

		logrus.Infof("Submission %s matched criterion #%d: %s", post.ID, criterion.ID, post.Title)
		if err := s.notifier.SendMatch(criterion, post); err != nil {
			logrus.Errorf("Failed to notify for submission %s: %v", post.ID, err)
			s.mu.Lock()
			s.metrics.NotifierFailures++
			s.mu.Unlock()
		}
		s.recordMatch(criterion, post)
	}

	logrus.Debugf("Adding submission %s to the processed cache", post.ID)
	if err := s.processed.MarkProcessed(ctx, post.ID, time.Now().UTC()); err != nil {
		if errors.Is(err, store.ErrAlreadyProcessed) {
			logrus.Infof("Submission %s was already recorded by another writer", post.ID)
		} else if ctx.Err() == nil {
			logrus.Errorf("Failed to record submission %s as processed: %v", post.ID, err)
			s.recordError(err)
		}
	}
}

func (s *Service) recordMatch(criterion models.Criterion, post models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.Matches++
	if len(s.matches) >= maxBufferedMatches {
		return
	}
	s.matches = append(s.matches, models.MatchRecord{
		CriterionID: criterion.ID,
		Type:        criterion.Type,
		PostID:      post.ID,
		Title:       post.Title,
		Author:      post.Author,
		URL:         post.URL,
		MatchedAt:   time.Now().UTC(),
	})
}

func (s *Service) recordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.LastError = err.Error()
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}

// RunDigest archives the matches buffered since the previous digest and
// sends them as a report. The scheduler calls this on the configured cadence.
func (s *Service) RunDigest() error {
	matches := s.drainMatches()
	if len(matches) == 0 {
		logrus.Info("No matches since the last digest, skipping")
		return nil
	}

	report := s.buildReport(matches)

	if err := s.archiveReport(report); err != nil {
		logrus.Errorf("Failed to archive digest: %v", err)
	}

	if err := s.notifier.SendReport(report); err != nil {
		return fmt.Errorf("send digest: %w", err)
	}

	logrus.Infof("Sent digest with %d match(es)", report.TotalMatches)
	return nil
}

func (s *Service) drainMatches() []models.MatchRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches := s.matches
	s.matches = nil
	return matches
}

func (s *Service) buildReport(matches []models.MatchRecord) *models.Report {
	report := &models.Report{
		GeneratedAt:  time.Now().UTC(),
		Period:       s.config.DigestSchedule,
		TotalMatches: len(matches),
		Matches:      matches,
		Summary:      make(map[string]int),
	}

	for _, match := range matches {
		report.Summary[string(match.Type)]++
	}

	return report
}

func (s *Service) archiveReport(report *models.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal digest: %w", err)
	}

	filename := fmt.Sprintf("matches-%s.json", report.GeneratedAt.Format("2006-01-02-15-04-05"))
	return s.archive.Store(filename, data)
}
