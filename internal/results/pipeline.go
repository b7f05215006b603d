// File: internal/results/pipeline.go
package results

import (
	"context"

	"go.uber.org/zap"

	"github.com/xkilldash9x/phpsca/api/schemas"
)

// Pipeline post-processes analysis results before they are reported.
type Pipeline struct {
	enricher    *Enricher
	minSeverity schemas.Severity
	logger      *zap.Logger
}

// NewPipeline creates a new results processing pipeline.
func NewPipeline(cfg PipelineConfig, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		enricher:    NewEnricher(cfg.CWEProvider, logger),
		minSeverity: cfg.MinSeverity,
		logger:      logger.Named("results_pipeline"),
	}
}

// Process filters, enriches and prioritizes the findings of every envelope
// in place. Failed envelopes pass through untouched.
func (p *Pipeline) Process(ctx context.Context, results []*schemas.ResultEnvelope) error {
	var total, dropped int
	for _, res := range results {
		if err := ctx.Err(); err != nil {
			return err
		}
		if res == nil || res.Failed() {
			continue
		}

		// 1. Severity threshold
		var n int
		res.Findings, n = filterBySeverity(res.Findings, p.minSeverity)
		dropped += n

		// 2. Enrichment
		for i := range res.Findings {
			p.enricher.EnrichFinding(&res.Findings[i])
		}

		// 3. Prioritization
		Prioritize(res.Findings)
		total += len(res.Findings)
	}

	p.logger.Debug("Results processing complete",
		zap.Int("findings", total),
		zap.Int("below_threshold", dropped),
	)
	return nil
}
