// internal/results/enrich.go
package results

import (
	"go.uber.org/zap"

	"github.com/xkilldash9x/phpsca/api/schemas"
	"github.com/xkilldash9x/phpsca/internal/results/providers"
)

// Enricher is responsible for enhancing findings with additional context.
type Enricher struct {
	cweProvider providers.CWEProvider
	logger      *zap.Logger
}

// NewEnricher creates a new Enricher instance.
func NewEnricher(cweProvider providers.CWEProvider, logger *zap.Logger) *Enricher {
	return &Enricher{
		cweProvider: cweProvider,
		logger:      logger.Named("enricher"),
	}
}

// EnrichFinding enhances a single finding.
func (e *Enricher) EnrichFinding(finding *schemas.Finding) {
	e.enrichCWE(finding)
}

func (e *Enricher) enrichCWE(finding *schemas.Finding) {
	if e.cweProvider == nil {
		return
	}
	for i, cweID := range finding.CWE {
		entry, err := e.cweProvider.GetCWE(cweID)
		if err != nil {
			e.logger.Debug("Could not retrieve CWE details", zap.String("cwe_id", cweID), zap.Error(err))
			continue
		}
		// The first CWE names the weakness.
		if i == 0 && finding.Weakness == "" {
			finding.Weakness = entry.Name
		}
		if finding.Description == "" && entry.Description != "" {
			finding.Description = entry.Description
		}
		finding.References = appendUnique(finding.References, entry.URL())
	}
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
