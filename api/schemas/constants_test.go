package schemas_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/phpsca/api/schemas"
)

// TestConstants verifies that severity constants hold their expected string values.
func TestConstants(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name     string
		constant interface{}
		expected string
	}{
		{"SeverityCritical", schemas.SeverityCritical, "critical"},
		{"SeverityHigh", schemas.SeverityHigh, "high"},
		{"SeverityMedium", schemas.SeverityMedium, "medium"},
		{"SeverityLow", schemas.SeverityLow, "low"},
		{"SeverityInfo", schemas.SeverityInfo, "info"},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, fmt.Sprintf("%v", tt.constant))
		})
	}
}

func TestSeverity_ParseAndRank(t *testing.T) {
	t.Parallel()
	assert.Equal(t, schemas.SeverityCritical, schemas.ParseSeverity(" CRITICAL "))
	assert.Equal(t, schemas.SeverityInfo, schemas.ParseSeverity("info"))
	assert.Equal(t, schemas.SeverityMedium, schemas.ParseSeverity("bogus"))

	assert.Greater(t, schemas.SeverityCritical.Rank(), schemas.SeverityHigh.Rank())
	assert.Greater(t, schemas.SeverityHigh.Rank(), schemas.SeverityMedium.Rank())
	assert.Greater(t, schemas.SeverityLow.Rank(), schemas.SeverityInfo.Rank())
}

func TestSummarize(t *testing.T) {
	t.Parallel()
	envs := []*schemas.ResultEnvelope{
		{File: "a.php", Findings: []schemas.Finding{{Severity: schemas.SeverityHigh}, {Severity: schemas.SeverityCritical}}},
		{File: "b.php", Error: "syntax error"},
		nil,
		{File: "c.php", Findings: []schemas.Finding{{Severity: schemas.SeverityHigh}}},
	}
	s := schemas.Summarize(envs)
	assert.Equal(t, 3, s.Files)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 3, s.Findings)
	assert.Equal(t, 2, s.BySeverity[schemas.SeverityHigh])
	assert.Equal(t, 1, s.BySeverity[schemas.SeverityCritical])
}
