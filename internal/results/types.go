package results

import (
	"github.com/xkilldash9x/phpsca/api/schemas"
	"github.com/xkilldash9x/phpsca/internal/results/providers"
)

// PipelineConfig holds all configuration required for the results pipeline.
type PipelineConfig struct {
	// MinSeverity drops findings ranked below it. Empty keeps everything.
	MinSeverity schemas.Severity
	// CWEProvider is optional. If nil, enrichment is skipped.
	CWEProvider providers.CWEProvider
}
