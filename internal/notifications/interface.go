package notifications

import "github.com/tardnicus/wemb/internal/models"

// Notifier is the outbound sink for match alerts and digest reports.
type Notifier interface {
	// SendMatch announces one matched submission. Failures are non-fatal to
	// the monitor loop; no retry happens here.
	SendMatch(criterion models.Criterion, post models.Post) error
	SendReport(report *models.Report) error
}
