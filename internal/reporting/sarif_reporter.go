// internal/reporting/sarif_reporter.go
package reporting

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/phpsca/api/schemas"
	"github.com/xkilldash9x/phpsca/internal/reporting/sarif"
)

// Constants for tool identification in the SARIF report.
const (
	ToolName     = "phpsca"
	ToolInfoURI  = "https://github.com/xkilldash9x/phpsca"
	SARIFVersion = "2.1.0"
	SARIFSchema  = "https://schemastore.azurewebsites.net/schemas/json/sarif-2.1.0-rtm.5.json"

	flowFingerprintKey = "phpscaFlow/v1"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ruleIDSanitizer matches runs of characters not allowed in rule IDs. Alphanumerics,
// underscore and dot are kept; every other run collapses into a single hyphen.
var ruleIDSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_.]+`)

// RuleFingerprint identifies a rule definition by its content.
type RuleFingerprint string

// calculateFingerprint hashes the fields that define a rule.
func calculateFingerprint(finding schemas.Finding) RuleFingerprint {
	sortedCWEs := append([]string(nil), finding.CWE...)
	sort.Strings(sortedCWEs)

	data := struct {
		Name           string
		Description    string
		Recommendation string
		CWEs           []string
	}{
		Name:           finding.VulnerabilityName,
		Description:    finding.Description,
		Recommendation: finding.Recommendation,
		CWEs:           sortedCWEs,
	}

	h := sha1.New()
	_ = json.NewEncoder(h).Encode(data)
	return RuleFingerprint(hex.EncodeToString(h.Sum(nil)))
}

// SARIFReporter implements the Reporter interface for the SARIF 2.1.0 format.
// Results are buffered and the log is written on Close.
type SARIFReporter struct {
	writer io.WriteCloser
	logger *zap.Logger
	log    *sarif.Log
	// mu protects the log structure and the maps.
	mu sync.Mutex
	// rulesByFingerprint maps a content fingerprint to the generated Rule ID.
	rulesByFingerprint map[RuleFingerprint]string
	// ruleIDUsage counts how often a base Rule ID was handed out, to suffix collisions.
	ruleIDUsage   map[string]int
	notifications []*sarif.Notification
}

// NewSARIFReporter creates a new reporter that writes SARIF output.
func NewSARIFReporter(writer io.WriteCloser, toolVersion string, logger *zap.Logger) *SARIFReporter {
	log := &sarif.Log{
		Version: SARIFVersion,
		Schema:  SARIFSchema,
		Runs: []*sarif.Run{
			{
				Tool: &sarif.Tool{
					Driver: &sarif.ToolComponent{
						Name:           ToolName,
						Version:        pString(toolVersion),
						InformationURI: pString(ToolInfoURI),
						// Empty slices (not nil) marshal as [] rather than null.
						Rules: []*sarif.ReportingDescriptor{},
					},
				},
				Results: []*sarif.Result{},
			},
		},
	}

	return &SARIFReporter{
		writer:             writer,
		logger:             logger.Named("sarif_reporter"),
		log:                log,
		rulesByFingerprint: make(map[RuleFingerprint]string),
		ruleIDUsage:        make(map[string]int),
	}
}

// Write converts a ResultEnvelope into SARIF results and adds them to the log.
// A failed envelope becomes a tool execution notification.
func (r *SARIFReporter) Write(result *schemas.ResultEnvelope) error {
	if result == nil {
		return fmt.Errorf("cannot write a nil envelope")
	}
	startTime := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if result.Failed() {
		r.notifications = append(r.notifications, &sarif.Notification{
			Message:   &sarif.Message{Text: pString(result.Error)},
			Level:     sarif.LevelError,
			Locations: []*sarif.Location{{PhysicalLocation: physical(result.File, 0, 0, "")}},
		})
	}

	run := r.log.Runs[0]
	for _, finding := range result.Findings {
		ruleID := r.ensureRule(finding)

		sarifResult := &sarif.Result{
			RuleID:    ruleID,
			Message:   &sarif.Message{Text: pString(resultMessage(finding))},
			Level:     sarif.Level(mapSeverityToSARIFLevel(finding.Severity)),
			Locations: r.createLocations(finding),
			CodeFlows: r.createCodeFlows(finding),
		}
		if finding.Fingerprint != "" {
			sarifResult.PartialFingerprints = map[string]string{flowFingerprintKey: finding.Fingerprint}
		}
		run.Results = append(run.Results, sarifResult)
	}

	if len(result.Findings) > 0 {
		r.logger.Debug("Wrote findings to SARIF buffer",
			zap.String("file", result.File),
			zap.Int("findings_count", len(result.Findings)),
			zap.Duration("duration_ms", time.Since(startTime)),
		)
	}
	return nil
}

// Close finalizes the SARIF log and writes it to the output writer.
func (r *SARIFReporter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	run := r.log.Runs[0]
	run.Invocations = []*sarif.Invocation{{
		ExecutionSuccessful:        len(r.notifications) == 0,
		ToolExecutionNotifications: r.notifications,
	}}

	r.logger.Info("Finalizing SARIF report",
		zap.Int("total_results", len(run.Results)),
		zap.Int("total_rules", len(run.Tool.Driver.Rules)),
	)

	out, encodeErr := json.MarshalIndent(r.log, "", "  ")
	if encodeErr == nil {
		_, encodeErr = r.writer.Write(append(out, '\n'))
	}
	// Always attempt to close the writer, regardless of encoding success.
	closeErr := r.writer.Close()

	if encodeErr != nil {
		r.logger.Error("Failed to encode SARIF log", zap.Error(encodeErr))
		return fmt.Errorf("failed to encode SARIF output: %w", encodeErr)
	}
	if closeErr != nil {
		r.logger.Error("Failed to close output writer", zap.Error(closeErr))
		return fmt.Errorf("failed to close output writer: %w", closeErr)
	}
	return nil
}

// sanitizeRuleName creates a standardized base name for the rule ID.
func (r *SARIFReporter) sanitizeRuleName(name string) string {
	if name == "" {
		return "UNNAMED-VULNERABILITY"
	}
	sanitizedName := strings.ToUpper(name)
	sanitizedName = ruleIDSanitizer.ReplaceAllString(sanitizedName, "-")
	sanitizedName = strings.Trim(sanitizedName, "-")
	if sanitizedName == "" {
		return "UNKNOWN-VULNERABILITY"
	}
	return sanitizedName
}

// ensureRule returns the rule ID for the finding's definition, registering it
// on first sight. Must be called while holding the mutex.
func (r *SARIFReporter) ensureRule(finding schemas.Finding) string {
	fingerprint := calculateFingerprint(finding)
	if ruleID, exists := r.rulesByFingerprint[fingerprint]; exists {
		return ruleID
	}

	baseRuleID := "PHPSCA-" + r.sanitizeRuleName(finding.VulnerabilityName)
	usageCount := r.ruleIDUsage[baseRuleID]
	r.ruleIDUsage[baseRuleID] = usageCount + 1

	finalRuleID := baseRuleID
	if usageCount > 0 {
		finalRuleID = fmt.Sprintf("%s-%d", baseRuleID, usageCount)
		r.logger.Debug("Rule ID collision detected, generated new ID with suffix",
			zap.String("base_id", baseRuleID),
			zap.String("final_id", finalRuleID),
		)
	}

	markdownHelp := fmt.Sprintf("**Vulnerability:** %s\n\n**Description:**\n%s\n\n**Recommendation:**\n%s",
		finding.VulnerabilityName, finding.Description, finding.Recommendation)

	var helpURI *string
	if len(finding.References) > 0 {
		helpURI = pString(finding.References[0])
	}

	driver := r.log.Runs[0].Tool.Driver
	driver.Rules = append(driver.Rules, &sarif.ReportingDescriptor{
		ID:               finalRuleID,
		Name:             pString(finding.VulnerabilityName),
		ShortDescription: &sarif.MultiformatMessageString{Text: pString(finding.VulnerabilityName)},
		FullDescription:  &sarif.MultiformatMessageString{Text: pString(finding.Description)},
		Help: &sarif.MultiformatMessageString{
			Text:     pString(finding.Recommendation),
			Markdown: pString(markdownHelp),
		},
		HelpURI: helpURI,
		Properties: &sarif.PropertyBag{
			"tags":              []string{"security", "taint"},
			"precision":         "medium",
			"security-severity": securitySeverity(finding.Severity),
			"CWE":               finding.CWE,
		},
	})
	r.rulesByFingerprint[fingerprint] = finalRuleID
	return finalRuleID
}

// createLocations points the result at the sink call.
func (r *SARIFReporter) createLocations(finding schemas.Finding) []*sarif.Location {
	loc := finding.Location
	if loc.File == "" {
		loc.File = finding.Target
	}
	return []*sarif.Location{{
		PhysicalLocation: physical(loc.File, loc.Line, loc.Column, loc.Snippet),
		Message:          &sarif.Message{Text: pString(fmt.Sprintf("Tainted data reaches %s", finding.Sink))},
	}}
}

// createCodeFlows renders the trace from the source to the sink, so the
// steps are emitted in reverse.
func (r *SARIFReporter) createCodeFlows(finding schemas.Finding) []*sarif.CodeFlow {
	if len(finding.Trace) == 0 {
		return nil
	}
	flow := &sarif.ThreadFlow{Locations: make([]*sarif.ThreadFlowLocation, 0, len(finding.Trace))}
	for i := len(finding.Trace) - 1; i >= 0; i-- {
		step := finding.Trace[i]
		flow.Locations = append(flow.Locations, &sarif.ThreadFlowLocation{
			Location: &sarif.Location{
				PhysicalLocation: physical(finding.Target, step.Line, 0, ""),
				Message:          &sarif.Message{Text: pString(stepLabel(step))},
			},
		})
	}
	codeFlow := &sarif.CodeFlow{ThreadFlows: []*sarif.ThreadFlow{flow}}
	if finding.Context != "" {
		codeFlow.Message = &sarif.Message{Text: pString("Called via " + finding.Context)}
	}
	return []*sarif.CodeFlow{codeFlow}
}

func physical(file string, line, column int, snippet string) *sarif.PhysicalLocation {
	pl := &sarif.PhysicalLocation{ArtifactLocation: &sarif.ArtifactLocation{URI: pString(file)}}
	if line > 0 {
		pl.Region = &sarif.Region{StartLine: line, StartColumn: column}
		if snippet != "" {
			pl.Region.Snippet = &sarif.Message{Text: pString(snippet)}
		}
	}
	return pl
}

func resultMessage(finding schemas.Finding) string {
	msg := finding.VulnerabilityName
	if finding.Sink != "" {
		msg = fmt.Sprintf("%s: user input reaches %s", finding.VulnerabilityName, finding.Sink)
	}
	if len(finding.Sources) > 0 {
		msg += fmt.Sprintf(" (from %s)", strings.Join(finding.Sources, ", "))
	}
	return msg
}

// mapSeverityToSARIFLevel converts a finding severity to a SARIF level.
func mapSeverityToSARIFLevel(severity schemas.Severity) string {
	switch strings.ToLower(string(severity)) {
	case "critical", "high":
		return string(sarif.LevelError)
	case "medium":
		return string(sarif.LevelWarning)
	default:
		return string(sarif.LevelNote)
	}
}

// securitySeverity is the numeric score code scanning UIs sort rules by.
func securitySeverity(severity schemas.Severity) string {
	switch severity {
	case schemas.SeverityCritical:
		return "9.0"
	case schemas.SeverityHigh:
		return "7.5"
	case schemas.SeverityMedium:
		return "5.0"
	case schemas.SeverityLow:
		return "3.0"
	}
	return "0.0"
}

// pString returns a pointer to the given string value. Helper for optional SARIF fields.
func pString(s string) *string {
	return &s
}
