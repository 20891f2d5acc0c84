package models

import (
	"fmt"
	"strings"
	"time"
)

// SubmissionType classifies a marketplace post as a sale or a purchase request.
type SubmissionType string

const (
	// SubmissionTypeWTS marks "want to sell" posts.
	SubmissionTypeWTS SubmissionType = "WTS"
	// SubmissionTypeWTB marks "want to buy" posts.
	SubmissionTypeWTB SubmissionType = "WTB"
)

// DefaultMinTransactions is the flair transaction count a criterion requires
// when none is given.
const DefaultMinTransactions = 5

// ParseSubmissionType parses a user-supplied submission type, accepting any
// casing of "wts" or "wtb".
func ParseSubmissionType(s string) (SubmissionType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "WTS":
		return SubmissionTypeWTS, nil
	case "WTB":
		return SubmissionTypeWTB, nil
	default:
		return "", fmt.Errorf("unknown submission type %q (expected wts or wtb)", s)
	}
}

// Marker returns the bracketed tag a post title must contain for this type,
// e.g. "[wts]" for SubmissionTypeWTS. Titles are matched case-insensitively.
func (t SubmissionType) Marker() string {
	return "[" + strings.ToLower(string(t)) + "]"
}

// Criterion is one persisted search rule: posts of the given type whose title
// contains the keywords and whose author has enough confirmed transactions.
type Criterion struct {
	ID              int64          `json:"id"`
	Type            SubmissionType `json:"submission_type"`
	MinTransactions int            `json:"min_transactions"`
	Keywords        []string       `json:"keywords"`
	AllRequired     bool           `json:"all_required"`
}

// NewCriterion validates and builds a criterion. A negative transaction count
// is rejected here so invalid rules never reach the store.
func NewCriterion(t SubmissionType, minTransactions int, keywords []string, allRequired bool) (Criterion, error) {
	if t != SubmissionTypeWTS && t != SubmissionTypeWTB {
		return Criterion{}, fmt.Errorf("unknown submission type %q", string(t))
	}
	if minTransactions < 0 {
		return Criterion{}, fmt.Errorf("min transactions must be non-negative, got %d", minTransactions)
	}
	return Criterion{
		Type:            t,
		MinTransactions: minTransactions,
		Keywords:        NormalizeKeywords(keywords),
		AllRequired:     allRequired,
	}, nil
}

// NormalizeKeywords replaces an empty keyword list with the single empty
// keyword, which is a substring of every title and so disables keyword
// filtering for that criterion.
func NormalizeKeywords(keywords []string) []string {
	if len(keywords) == 0 {
		return []string{""}
	}
	out := make([]string, len(keywords))
	copy(out, keywords)
	return out
}

func (c Criterion) String() string {
	mode := "any"
	if c.AllRequired {
		mode = "all"
	}
	return fmt.Sprintf("criterion #%d [%s] min_transactions=%d mode=%s keywords=%q",
		c.ID, c.Type, c.MinTransactions, mode, c.Keywords)
}

// Post is a read-only view of one marketplace submission from the feed.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Author    string    `json:"author"`
	FlairText string    `json:"flair_text"` // author flair, e.g. "12 Transactions"; untrusted
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

// MatchRecord captures one criterion/post match for digests and the archive.
type MatchRecord struct {
	CriterionID int64          `json:"criterion_id"`
	Type        SubmissionType `json:"submission_type"`
	PostID      string         `json:"post_id"`
	Title       string         `json:"title"`
	Author      string         `json:"author"`
	URL         string         `json:"url"`
	MatchedAt   time.Time      `json:"matched_at"`
}

// Report is a periodic digest of recent matches.
type Report struct {
	GeneratedAt  time.Time      `json:"generated_at"`
	Period       string         `json:"period"`
	TotalMatches int            `json:"total_matches"`
	Matches      []MatchRecord  `json:"matches"`
	Summary      map[string]int `json:"summary"` // match counts by submission type
}
