package monitoring

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tardnicus/wemb/internal/models"
)

// reTransactions captures the leading digit run of an author flair such as
// "17 Transactions". Everything after the digits is ignored.
var reTransactions = regexp.MustCompile(`^\d+`)

// CheckTitle reports whether the submission title satisfies the criterion's
// type marker and keyword rules. All comparisons are case-insensitive.
func CheckTitle(c models.Criterion, title string) bool {
	title = strings.ToLower(title)

	if !strings.Contains(title, c.Type.Marker()) {
		return false
	}

	if c.AllRequired {
		for _, keyword := range c.Keywords {
			if !strings.Contains(title, strings.ToLower(keyword)) {
				return false
			}
		}
		return true
	}

	for _, keyword := range c.Keywords {
		if strings.Contains(title, strings.ToLower(keyword)) {
			return true
		}
	}

	return false
}

// ParseTransactions extracts the transaction count from an author flair.
// Flair text is user-controlled, so a missing or malformed count is reported
// as an error rather than treated as zero.
func ParseTransactions(flair string) (int, error) {
	digits := reTransactions.FindString(flair)
	if digits == "" {
		return 0, fmt.Errorf("no leading transaction count in flair %q", flair)
	}

	count, err := strconv.Atoi(digits)
	if err != nil {
		return 0, fmt.Errorf("transaction count %q out of range: %w", digits, err)
	}

	return count, nil
}

// CheckCriterion runs the two-gate check for one criterion against one
// submission: the title gate (type marker plus keywords) first, then the
// transaction count parsed from the author's flair.
func CheckCriterion(c models.Criterion, post models.Post) bool {
	if !CheckTitle(c, post.Title) {
		logrus.Debug("    Failed on title criteria (1/2)")
		return false
	}

	transactions, err := ParseTransactions(post.FlairText)
	if err != nil {
		logrus.Warnf("Submission %s by %s has an invalid user flair: %v", post.ID, post.Author, err)
		return false
	}

	if transactions < c.MinTransactions {
		logrus.Debugf("    Failed on minimum transaction count (2/2): %d < %d", transactions, c.MinTransactions)
		return false
	}

	return true
}
