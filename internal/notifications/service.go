package notifications

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/tardnicus/wemb/internal/config"
	"github.com/tardnicus/wemb/internal/models"
	"gopkg.in/gomail.v2"
)

// Service handles sending notifications via the configured channels: a
// Discord-compatible webhook for individual matches and digests, plus an
// optional email channel for digests.
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements Notifier
var _ Notifier = (*Service)(nil)

type webhookMessage struct {
	Content string `json:"content"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// SendMatch posts the mention string and the submission permalink to the
// webhook, one message per matched submission.
func (s *Service) SendMatch(criterion models.Criterion, post models.Post) error {
	content := post.URL
	if s.config.MentionString != "" {
		content = s.config.MentionString + " " + post.URL
	}

	logrus.Debugf("Sending match notification for criterion #%d", criterion.ID)
	return s.postWebhook(content)
}

// SendReport sends a digest via every configured notification channel.
func (s *Service) SendReport(report *models.Report) error {
	var failures []string

	if s.config.WebhookURL != "" {
		if err := s.postWebhook(buildWebhookDigest(report)); err != nil {
			logrus.Errorf("Failed to send webhook digest: %v", err)
			failures = append(failures, fmt.Sprintf("webhook: %v", err))
		} else {
			logrus.Info("Successfully sent digest to webhook")
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(report); err != nil {
			logrus.Errorf("Failed to send email digest: %v", err)
			failures = append(failures, fmt.Sprintf("email: %v", err))
		} else {
			logrus.Info("Successfully sent digest via email")
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(failures, "; "))
	}

	return nil
}

func (s *Service) postWebhook(content string) error {
	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(webhookMessage{Content: content}).
		Post(s.config.WebhookURL)

	if err != nil {
		return fmt.Errorf("failed to post webhook message: %w", err)
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return nil
}

func buildWebhookDigest(report *models.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**wemb %s digest**: %d match(es)\n", report.Period, report.TotalMatches)
	for _, t := range []models.SubmissionType{models.SubmissionTypeWTS, models.SubmissionTypeWTB} {
		if count := report.Summary[string(t)]; count > 0 {
			fmt.Fprintf(&b, "%s: %d\n", t, count)
		}
	}

	limit := 10
	if len(report.Matches) < limit {
		limit = len(report.Matches)
	}
	for i := 0; i < limit; i++ {
		match := report.Matches[i]
		fmt.Fprintf(&b, "%d. %s\n   <%s>\n", i+1, match.Title, match.URL)
	}
	if len(report.Matches) > limit {
		fmt.Fprintf(&b, "... and %d more", len(report.Matches)-limit)
	}

	return b.String()
}

func (s *Service) sendEmail(report *models.Report) error {
	subject := fmt.Sprintf("wemb digest: %d match(es)", report.TotalMatches)

	htmlBody, err := buildEmailHTML(report)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	textBody := buildEmailText(report)

	// Create message
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", textBody)
	m.AddAlternative("text/html", htmlBody)

	// Send email
	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	return nil
}

func buildEmailHTML(report *models.Report) (string, error) {
	tmpl := `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>wemb digest</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #2c3e50; color: white; padding: 20px; border-radius: 5px; }
        .summary { background-color: #f5f5f5; padding: 15px; margin: 20px 0; border-radius: 5px; }
        .match { border-left: 4px solid #2c3e50; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .match-title { font-weight: bold; margin-bottom: 5px; }
        .match-meta { color: #666; font-size: 0.9em; }
    </style>
</head>
<body>
    <div class="header">
        <h1>Watch exchange matches</h1>
        <p>{{.Period}} digest generated on {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM UTC"}}</p>
    </div>

    <div class="summary">
        <h2>Summary</h2>
        <p><strong>Total matches:</strong> {{.TotalMatches}}</p>
        {{range $type, $count := .Summary}}
            <p><strong>{{$type}} matches:</strong> {{$count}}</p>
        {{end}}
    </div>

    {{if .Matches}}
    <h2>Matched submissions</h2>
    {{range $index, $match := .Matches}}
        {{if lt $index 25}}
        <div class="match">
            <div class="match-title">
                <a href="{{$match.URL}}" target="_blank">{{$match.Title}}</a>
            </div>
            <div class="match-meta">
                by {{$match.Author}} | criterion #{{$match.CriterionID}} | {{$match.MatchedAt.Format "Jan 2, 2006 15:04"}} UTC
            </div>
        </div>
        {{end}}
    {{end}}
    {{end}}

    <hr>
    <p><small>This digest was generated automatically by wemb.</small></p>
</body>
</html>
`

	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, report); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func buildEmailText(report *models.Report) string {
	var text strings.Builder

	text.WriteString(fmt.Sprintf("wemb %s digest\n", report.Period))
	text.WriteString(fmt.Sprintf("Generated: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05 UTC")))

	text.WriteString("SUMMARY\n")
	text.WriteString("=======\n")
	text.WriteString(fmt.Sprintf("Total matches: %d\n", report.TotalMatches))
	for _, t := range []models.SubmissionType{models.SubmissionTypeWTS, models.SubmissionTypeWTB} {
		if count := report.Summary[string(t)]; count > 0 {
			text.WriteString(fmt.Sprintf("%s matches: %d\n", t, count))
		}
	}

	if len(report.Matches) > 0 {
		text.WriteString("\nMATCHED SUBMISSIONS\n")
		text.WriteString("===================\n")

		limit := 25
		if len(report.Matches) < limit {
			limit = len(report.Matches)
		}
		for i := 0; i < limit; i++ {
			match := report.Matches[i]
			text.WriteString(fmt.Sprintf("\n%d. %s\n", i+1, match.Title))
			text.WriteString(fmt.Sprintf("   by %s | criterion #%d | %s\n",
				match.Author, match.CriterionID, match.MatchedAt.Format("Jan 2, 2006 15:04")))
			text.WriteString(fmt.Sprintf("   URL: %s\n", match.URL))
		}
	}

	text.WriteString("\n---\nThis digest was generated automatically by wemb.\n")

	return text.String()
}
