package rules

import (
	"context"
	"regexp"

	"github.com/privoscope/privoscope/internal/domain/findings"
	"github.com/privoscope/privoscope/internal/domain/rules"
)

var (
	hardcodedCredentialPattern   = regexp.MustCompile(`(?i)\b(?:password|secret|api_key)\s*=\s*["'][^"']{4,}["']`)
	excessiveCollectionAggregate = regexp.MustCompile(`(?i)\ball_user_(?:fields|data|attributes)\b`)
	piiInLogsLiteralPattern      = regexp.MustCompile(`(?i)\blog\.(?:info|debug|warn)\(.*\b(?:ssn|email|password)\b`)
	thirdPartyIntegrationPattern = regexp.MustCompile(`(?i)\b(?:segment|mixpanel|fullstory)\.identify\(`)
	permanentDeletionPattern     = regexp.MustCompile(`(?i)\bpermanently_delete\s*=\s*true\b`)
	disabledOptOutAIPattern      = regexp.MustCompile(`(?i)\ballow_opt_out\s*=\s*false\b`)
	backupAllLiteralPattern      = regexp.MustCompile(`(?i)\bbackup_all\s*=\s*true\b`)
)

type aiGuidanceHit struct {
	re      *regexp.Regexp
	subtype string
	desc    string
	fix     string
	sev     findings.Severity
	law     string
}

var aiGuidanceHits = []aiGuidanceHit{
	{hardcodedCredentialPattern, "hardcoded_credential", "Hardcoded credential literal",
		"Move this credential to a secret manager and rotate it.", findings.SeverityCritical, "GDPR Art. 32"},
	{excessiveCollectionAggregate, "excessive_collection", "Aggregate field suggests collection beyond stated purpose",
		"Enumerate only the fields required for the feature.", findings.SeverityMedium, "GDPR Art. 5(1)(c)"},
	{piiInLogsLiteralPattern, "pii_in_logs", "Personal data written to application logs",
		"Mask PII fields before logging.", findings.SeverityHigh, "GDPR Art. 5(1)(f)"},
	{thirdPartyIntegrationPattern, "third_party_identify_call", "Third-party analytics identify() call forwards user identity",
		"Confirm a data-processing agreement covers this third party before forwarding identifiers.", findings.SeverityMedium, "GDPR Art. 28"},
	{permanentDeletionPattern, "permanent_deletion_literal", "Permanent deletion flag bypasses standard retention workflow",
		"Route deletions through the erasure service so they remain auditable.", findings.SeverityMedium, "GDPR Art. 17"},
	{disabledOptOutAIPattern, "opt_out_disabled", "Opt-out mechanism explicitly disabled",
		"Do not hardcode allow_opt_out=false.", findings.SeverityHigh, "CCPA 1798.120"},
	{backupAllLiteralPattern, "backup_all_literal", "Blanket backup-everything flag conflicts with data minimization",
		"Scope backups to the data actually required for recovery.", findings.SeverityLow, "GDPR Art. 5(1)(c)"},
}

// AIGuidanceRule is R8: patterns whose hits carry a law citation intended
// for downstream AI-assisted compliance narration.
type AIGuidanceRule struct{}

func NewAIGuidanceRule() *AIGuidanceRule { return &AIGuidanceRule{} }

func (AIGuidanceRule) ID() string                  { return "R8" }
func (AIGuidanceRule) Description() string         { return "Pattern carrying an explicit regulatory citation for AI narration" }
func (AIGuidanceRule) Category() findings.Category { return findings.CategoryAIGuidance }

func (r AIGuidanceRule) Evaluate(_ context.Context, content, _ string) ([]rules.Violation, error) {
	lines := splitLines(content)
	var out []rules.Violation
	for i, line := range lines {
		for _, h := range aiGuidanceHits {
			if h.re.MatchString(line) {
				out = append(out, rules.Violation{
					Line: i + 1, Subtype: h.subtype, Match: line,
					Category: findings.CategoryAIGuidance, Severity: h.sev,
					Description: h.desc, FixHint: h.fix, Law: h.law,
				})
			}
		}
	}
	return out, nil
}
