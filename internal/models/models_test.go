package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubmissionType(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    SubmissionType
		wantErr bool
	}{
		{name: "lowercase wts", input: "wts", want: SubmissionTypeWTS},
		{name: "uppercase wtb", input: "WTB", want: SubmissionTypeWTB},
		{name: "mixed case", input: "Wts", want: SubmissionTypeWTS},
		{name: "surrounding spaces", input: " wtb ", want: SubmissionTypeWTB},
		{name: "unknown type", input: "wtt", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSubmissionType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSubmissionTypeMarker(t *testing.T) {
	assert.Equal(t, "[wts]", SubmissionTypeWTS.Marker())
	assert.Equal(t, "[wtb]", SubmissionTypeWTB.Marker())
}

func TestNewCriterionValidation(t *testing.T) {
	_, err := NewCriterion(SubmissionTypeWTS, -1, []string{"seiko"}, true)
	assert.Error(t, err, "negative transaction count must be rejected")

	c, err := NewCriterion(SubmissionTypeWTS, 0, []string{"seiko"}, true)
	require.NoError(t, err, "zero transaction count is legal")
	assert.Equal(t, 0, c.MinTransactions)

	_, err = NewCriterion(SubmissionType("WTT"), DefaultMinTransactions, nil, true)
	assert.Error(t, err, "unknown submission type must be rejected")
}

func TestNewCriterionNormalizesEmptyKeywords(t *testing.T) {
	c, err := NewCriterion(SubmissionTypeWTB, DefaultMinTransactions, nil, false)
	require.NoError(t, err)
	assert.Equal(t, []string{""}, c.Keywords)

	c, err = NewCriterion(SubmissionTypeWTB, DefaultMinTransactions, []string{}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{""}, c.Keywords)

	c, err = NewCriterion(SubmissionTypeWTB, DefaultMinTransactions, []string{"omega", "speedmaster"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"omega", "speedmaster"}, c.Keywords)
}

func TestCriterionString(t *testing.T) {
	c := Criterion{ID: 3, Type: SubmissionTypeWTS, MinTransactions: 5, Keywords: []string{"seiko"}, AllRequired: true}
	s := c.String()
	assert.Contains(t, s, "#3")
	assert.Contains(t, s, "WTS")
	assert.Contains(t, s, "mode=all")
}
