package store

import (
	"context"
	"errors"
	"time"

	"github.com/tardnicus/wemb/internal/models"
)

// ErrNotFound is returned when a criterion id does not exist.
var ErrNotFound = errors.New("criterion not found")

// ErrAlreadyProcessed is returned by MarkProcessed when the submission id is
// already recorded. Callers treat it as a benign race, not a failure.
var ErrAlreadyProcessed = errors.New("submission already processed")

// CriteriaStore persists search criteria. The monitor loop reads it fresh on
// every post while the admin surface writes to it concurrently.
type CriteriaStore interface {
	// ListAll returns every criterion in id order with keywords loaded.
	ListAll(ctx context.Context) ([]models.Criterion, error)
	Get(ctx context.Context, id int64) (models.Criterion, error)
	// Add persists the criterion and its keywords, returning the assigned id.
	Add(ctx context.Context, c models.Criterion) (int64, error)
	// Delete removes the criterion and its keyword rows in one transaction.
	Delete(ctx context.Context, id int64) error
}

// ProcessedStore records which submissions have completed processing, so a
// restart or reconnect never notifies for the same post twice.
type ProcessedStore interface {
	HasProcessed(ctx context.Context, id string) (bool, error)
	// MarkProcessed inserts a single row for id, returning ErrAlreadyProcessed
	// if another writer got there first.
	MarkProcessed(ctx context.Context, id string, at time.Time) error
}
