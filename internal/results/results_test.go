package results

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/phpsca/api/schemas"
	"github.com/xkilldash9x/phpsca/internal/results/providers"
)

func finding(sev schemas.Severity, line int, cwe ...string) schemas.Finding {
	return schemas.Finding{
		VulnerabilityName: string(sev),
		Severity:          sev,
		CWE:               cwe,
		Location:          schemas.Location{File: "a.php", Line: line},
	}
}

func lines(findings []schemas.Finding) []int {
	out := make([]int, len(findings))
	for i, f := range findings {
		out[i] = f.Location.Line
	}
	return out
}

func TestPrioritize(t *testing.T) {
	findings := []schemas.Finding{
		finding(schemas.SeverityHigh, 9),
		finding(schemas.SeverityCritical, 12),
		finding(schemas.SeverityHigh, 3),
		finding(schemas.SeverityCritical, 4),
		finding(schemas.SeverityLow, 1),
	}
	Prioritize(findings)
	assert.Equal(t, []int{4, 12, 3, 9, 1}, lines(findings))
}

func TestEnricher(t *testing.T) {
	e := NewEnricher(providers.NewInMemoryCWEProvider(), zaptest.NewLogger(t))

	f := finding(schemas.SeverityCritical, 1, "CWE-89")
	e.EnrichFinding(&f)
	assert.Contains(t, f.Weakness, "SQL Injection")
	assert.Equal(t, []string{"https://cwe.mitre.org/data/definitions/89.html"}, f.References)

	// Enriching twice does not duplicate references.
	e.EnrichFinding(&f)
	assert.Len(t, f.References, 1)

	empty := finding(schemas.SeverityHigh, 1, "CWE-22")
	empty.Description = ""
	e.EnrichFinding(&empty)
	assert.Contains(t, empty.Description, "pathname")

	none := NewEnricher(nil, zaptest.NewLogger(t))
	g := finding(schemas.SeverityHigh, 1, "CWE-79")
	none.EnrichFinding(&g)
	assert.Empty(t, g.Weakness)
	assert.Empty(t, g.References)
}

func TestPipeline_Process(t *testing.T) {
	results := []*schemas.ResultEnvelope{
		{File: "a.php", Findings: []schemas.Finding{
			finding(schemas.SeverityLow, 2),
			finding(schemas.SeverityHigh, 8, "CWE-79"),
			finding(schemas.SeverityCritical, 5, "CWE-78"),
		}},
		{File: "b.php", Error: "syntax error", Findings: []schemas.Finding{}},
		nil,
	}

	p := NewPipeline(PipelineConfig{
		MinSeverity: schemas.SeverityHigh,
		CWEProvider: providers.NewInMemoryCWEProvider(),
	}, zaptest.NewLogger(t))
	require.NoError(t, p.Process(context.Background(), results))

	got := results[0].Findings
	require.Len(t, got, 2)
	assert.Equal(t, []int{5, 8}, lines(got))
	assert.Contains(t, got[0].Weakness, "OS Command Injection")
	assert.Empty(t, results[1].Findings)
}

func TestPipeline_NoThreshold(t *testing.T) {
	results := []*schemas.ResultEnvelope{{File: "a.php", Findings: []schemas.Finding{
		finding(schemas.SeverityInfo, 1),
		finding(schemas.SeverityLow, 2),
	}}}
	p := NewPipeline(PipelineConfig{}, zaptest.NewLogger(t))
	require.NoError(t, p.Process(context.Background(), results))
	assert.Equal(t, []int{2, 1}, lines(results[0].Findings))
}

func TestPipeline_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewPipeline(PipelineConfig{}, zaptest.NewLogger(t))
	err := p.Process(ctx, []*schemas.ResultEnvelope{{File: "a.php"}})
	assert.ErrorIs(t, err, context.Canceled)
}
