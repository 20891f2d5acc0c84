package monitoring

import (
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tardnicus/wemb/internal/models"
)

func TestCheckTitle(t *testing.T) {
	tests := []struct {
		name      string
		criterion models.Criterion
		title     string
		expected  bool
	}{
		{
			name:      "marker and keyword present",
			criterion: models.Criterion{Type: models.SubmissionTypeWTS, Keywords: []string{"seiko"}, AllRequired: true},
			title:     "[WTS] Seiko SKX007 full kit",
			expected:  true,
		},
		{
			name:      "marker mismatch",
			criterion: models.Criterion{Type: models.SubmissionTypeWTS, Keywords: []string{"seiko"}, AllRequired: true},
			title:     "[WTB] Seiko 5 wanted",
			expected:  false,
		},
		{
			name:      "marker absent entirely",
			criterion: models.Criterion{Type: models.SubmissionTypeWTS, Keywords: []string{"seiko"}, AllRequired: true},
			title:     "Seiko SKX007 full kit",
			expected:  false,
		},
		{
			name:      "all mode requires every keyword",
			criterion: models.Criterion{Type: models.SubmissionTypeWTS, Keywords: []string{"seiko", "chronograph"}, AllRequired: true},
			title:     "[WTS] Seiko diver",
			expected:  false,
		},
		{
			name:      "all mode passes with every keyword",
			criterion: models.Criterion{Type: models.SubmissionTypeWTS, Keywords: []string{"seiko", "chronograph"}, AllRequired: true},
			title:     "[WTS] Seiko chronograph lot",
			expected:  true,
		},
		{
			name:      "any mode passes with a single keyword",
			criterion: models.Criterion{Type: models.SubmissionTypeWTS, Keywords: []string{"omega", "tudor"}, AllRequired: false},
			title:     "[WTS] Tudor Black Bay 58",
			expected:  true,
		},
		{
			name:      "any mode fails with no keyword",
			criterion: models.Criterion{Type: models.SubmissionTypeWTS, Keywords: []string{"omega", "tudor"}, AllRequired: false},
			title:     "[WTS] Rolex Submariner date",
			expected:  false,
		},
		{
			name:      "empty keyword always passes the keyword gate",
			criterion: models.Criterion{Type: models.SubmissionTypeWTB, Keywords: []string{""}, AllRequired: true},
			title:     "[WTB] literally anything",
			expected:  true,
		},
		{
			name:      "uppercase keyword matches lowercase title",
			criterion: models.Criterion{Type: models.SubmissionTypeWTS, Keywords: []string{"SEIKO"}, AllRequired: true},
			title:     "[wts] seiko skx007",
			expected:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CheckTitle(tt.criterion, tt.title))
		})
	}
}

func TestParseTransactions(t *testing.T) {
	tests := []struct {
		name     string
		flair    string
		expected int
		wantErr  bool
	}{
		{name: "count with suffix", flair: "17 Transactions", expected: 17},
		{name: "digits only", flair: "5", expected: 5},
		{name: "zero transactions", flair: "0 Transactions", expected: 0},
		{name: "empty flair", flair: "", wantErr: true},
		{name: "no digits", flair: "Trusted Seller", wantErr: true},
		{name: "digits not leading", flair: "Transactions: 12", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := ParseTransactions(tt.flair)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, count)
		})
	}
}

func TestCheckCriterion(t *testing.T) {
	criterion, err := models.NewCriterion(models.SubmissionTypeWTS, 5, []string{"Seiko"}, true)
	require.NoError(t, err)

	tests := []struct {
		name     string
		post     models.Post
		expected bool
	}{
		{
			name:     "both gates pass",
			post:     models.Post{ID: "a1", Title: "[WTS] Seiko 5 for trade", FlairText: "12 Transactions"},
			expected: true,
		},
		{
			name:     "category marker mismatch",
			post:     models.Post{ID: "a2", Title: "[WTB] Seiko 5 wanted", FlairText: "12 Transactions"},
			expected: false,
		},
		{
			name:     "transaction count below minimum",
			post:     models.Post{ID: "a3", Title: "[WTS] Seiko 5", FlairText: "3 Transactions"},
			expected: false,
		},
		{
			name:     "transaction count at minimum",
			post:     models.Post{ID: "a4", Title: "[WTS] Seiko 5", FlairText: "5 Transactions"},
			expected: true,
		},
		{
			name:     "absent flair never matches",
			post:     models.Post{ID: "a5", Title: "[WTS] Seiko 5", FlairText: ""},
			expected: false,
		},
		{
			name:     "malformed flair never matches",
			post:     models.Post{ID: "a6", Title: "[WTS] Seiko 5", FlairText: "Trusted Seller"},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CheckCriterion(criterion, tt.post))
		})
	}
}

func TestCheckCriterionGateOrder(t *testing.T) {
	criterion, err := models.NewCriterion(models.SubmissionTypeWTS, 5, []string{"seiko"}, true)
	require.NoError(t, err)

	hook := logtest.NewGlobal()
	defer hook.Reset()

	// The title gate runs first, so a failing title means the malformed
	// flair is never inspected.
	assert.False(t, CheckCriterion(criterion, models.Post{ID: "b1", Title: "[WTB] Seiko 5", FlairText: "garbage"}))
	for _, entry := range hook.AllEntries() {
		assert.NotEqual(t, logrus.WarnLevel, entry.Level)
	}

	hook.Reset()

	// With the title gate passing, the malformed flair is diagnosed.
	assert.False(t, CheckCriterion(criterion, models.Post{ID: "b2", Title: "[WTS] Seiko 5", FlairText: "garbage"}))
	warned := false
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warned = true
		}
	}
	assert.True(t, warned, "expected a warning about the invalid flair")
}
