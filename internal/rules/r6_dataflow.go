package rules

import (
	"context"
	"regexp"
	"strings"

	"github.com/privoscope/privoscope/internal/domain/findings"
	"github.com/privoscope/privoscope/internal/domain/rules"
)

var (
	sensitiveSourceAssignmentPattern = regexp.MustCompile(`(?i)\b(?:ssn|credit_card|password|email)\s*=\s*(?:request|req|input)\.`)
	piiLoggingCallPattern            = regexp.MustCompile(`(?i)\b(?:log|logger|console\.log|print(?:ln)?)\s*\(.*\b(?:ssn|password|email|credit_card)\b`)
	stackTraceEmitterPattern         = regexp.MustCompile(`(?i)\b(?:printStackTrace|console\.error|traceback\.print_exc)\s*\(`)
	retentionPattern                 = regexp.MustCompile(`(?i)\bretain\b.*\bfor\s+\d+\s*(?:days?|months?|years?)\b`)
	piiColumnDMLPattern              = regexp.MustCompile(`(?i)\b(?:INSERT\s+INTO|UPDATE)\b.*\b(?:ssn|email|phone|address)\b`)
)

var retentionCompanionTokens = []string{MarkerTTL, MarkerDeleteAfter, MarkerExpires}

// DataFlowRule is R6: PII propagation into logs, traces, unmanaged
// retention, and DSAR-untracked storage.
type DataFlowRule struct{}

func NewDataFlowRule() *DataFlowRule { return &DataFlowRule{} }

func (DataFlowRule) ID() string                  { return "R6" }
func (DataFlowRule) Description() string         { return "Unsafe personal-data flow into logs, traces, or long-term storage" }
func (DataFlowRule) Category() findings.Category { return findings.CategoryDataflow }

func (r DataFlowRule) Evaluate(_ context.Context, content, _ string) ([]rules.Violation, error) {
	lines := splitLines(content)
	lowerContent := strings.ToLower(content)
	fileHasDSAR := strings.Contains(content, MarkerDSARCall)

	var out []rules.Violation
	for i, line := range lines {
		if sensitiveSourceAssignmentPattern.MatchString(line) {
			out = append(out, rules.Violation{
				Line: i + 1, Subtype: "sensitive_source_assignment", Match: line,
				Category: findings.CategoryDataflow, Severity: findings.SeverityMedium,
				Description: "Personal data read directly from request input into a sensitive field",
				FixHint:     "Validate and sanitize request-derived PII before assignment.",
			})
		}
		if piiLoggingCallPattern.MatchString(line) {
			out = append(out, rules.Violation{
				Line: i + 1, Subtype: "pii_in_log_call", Match: line,
				Category: findings.CategoryDataflow, Severity: findings.SeverityHigh,
				Description: "Logging call argument appears to contain personal data",
				FixHint:     "Mask or omit PII fields before logging.",
				RegulationRefs: []findings.RegulationRef{{Regulation: "GDPR", Section: "Art. 5(1)(f)"}},
			})
		}
		if stackTraceEmitterPattern.MatchString(line) {
			out = append(out, rules.Violation{
				Line: i + 1, Subtype: "unsanitized_stack_trace", Match: line,
				Category: findings.CategoryDataflow, Severity: findings.SeverityMedium,
				Description: "Raw stack trace emission may leak request data containing PII",
				FixHint:     "Route exceptions through a sanitizing error handler before logging.",
			})
		}
		if retentionPattern.MatchString(line) {
			if !fileHasAnyToken(lowerContent, retentionCompanionTokens) {
				out = append(out, rules.Violation{
					Line: i + 1, Subtype: "retention_without_ttl", Match: line,
					Category: findings.CategoryDataflow, Severity: findings.SeverityMedium,
					Description: "Data retention period declared without a companion TTL/expiry token",
					FixHint:     "Add a ttl, delete_after, or expires token so retention is enforced automatically.",
					RegulationRefs: []findings.RegulationRef{{Regulation: "GDPR", Section: "Art. 5(1)(e)"}},
				})
			}
		}
		if piiColumnDMLPattern.MatchString(line) && !fileHasDSAR {
			out = append(out, rules.Violation{
				Line: i + 1, Subtype: "pii_write_without_dsar", Match: line,
				Category: findings.CategoryDataflow, Severity: findings.SeverityMedium,
				Description: "Write to a personal-data column without a DSAR registration call in this file",
				FixHint:     "Call register_dsar( so this data is discoverable for subject access requests.",
				RegulationRefs: []findings.RegulationRef{{Regulation: "GDPR", Section: "Art. 15"}},
			})
		}
	}
	return out, nil
}

func fileHasAnyToken(lowerContent string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(lowerContent, strings.ToLower(t)) {
			return true
		}
	}
	return false
}
