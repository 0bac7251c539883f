package rules

import (
	"context"
	"regexp"
	"strings"

	"github.com/privoscope/privoscope/internal/domain/findings"
	"github.com/privoscope/privoscope/internal/domain/rules"
)

var (
	sensitiveColumnDDLPattern = regexp.MustCompile(`(?i)\b(?:CREATE|ALTER)\s+TABLE\b.*\b(?:ssn|password|email|credit_card|phone)\b`)
	sensitiveColumnDMLPattern = regexp.MustCompile(`(?i)\b(?:INSERT\s+INTO|UPDATE)\b.*\b(?:ssn|password|email|credit_card|phone)\b`)
	insecureHTTPPattern       = regexp.MustCompile(`https?://`)
	insecureHTTPLiteralPattern = regexp.MustCompile(`http://`)
	tlsDisabledPattern        = regexp.MustCompile(`(?i)\b(?:tls|ssl)\s*=\s*false\b`)
	piiPrimaryKeyPattern      = regexp.MustCompile(`(?i)\b(?:email|phone|ssn)\b.*\bPRIMARY\s+KEY\b`)
	piiEndpointPattern        = regexp.MustCompile(`(?i)@(?:Get|Post|Route)Mapping\(.*(?:email|ssn|phone|profile)`)
)

// EncryptionRule is R5: sensitive data handled without encryption/transport
// safeguards, or PII-returning endpoints missing rate limiting.
type EncryptionRule struct{}

func NewEncryptionRule() *EncryptionRule { return &EncryptionRule{} }

func (EncryptionRule) ID() string                  { return "R5" }
func (EncryptionRule) Description() string         { return "Sensitive data handled without encryption or transport safeguards" }
func (EncryptionRule) Category() findings.Category { return findings.CategorySecurity }

func (r EncryptionRule) Evaluate(_ context.Context, content, _ string) ([]rules.Violation, error) {
	lines := splitLines(content)
	fileHasRateLimit := strings.Contains(content, MarkerRateLimitCall)

	var out []rules.Violation
	for i, line := range lines {
		if sensitiveColumnDDLPattern.MatchString(line) || sensitiveColumnDMLPattern.MatchString(line) {
			if suppressed, _ := hasMarkerOnLineOrAbove(lines, i+1, encryptionMarkers); !suppressed {
				out = append(out, rules.Violation{
					Line: i + 1, Subtype: "unencrypted_sensitive_column", Match: line,
					Category: findings.CategorySecurity, Severity: findings.SeverityHigh,
					Description: "Sensitive column referenced without an encryption marker",
					FixHint:     "Add an @encrypt or @secure marker, or encrypt the column at the application layer.",
					RegulationRefs: []findings.RegulationRef{{Regulation: "GDPR", Section: "Art. 32"}},
				})
			}
		}
		if insecureHTTPLiteralPattern.MatchString(line) && insecureHTTPPattern.MatchString(line) {
			out = append(out, rules.Violation{
				Line: i + 1, Subtype: "insecure_http_protocol", Match: line,
				Category: findings.CategorySecurity, Severity: findings.SeverityHigh,
				Description: "Insecure HTTP Protocol",
				FixHint:     "Use https:// for any endpoint that may carry personal data.",
				RegulationRefs: []findings.RegulationRef{{Regulation: "GDPR", Section: "Art. 32"}},
			})
		}
		if tlsDisabledPattern.MatchString(line) {
			out = append(out, rules.Violation{
				Line: i + 1, Subtype: "tls_disabled", Match: line,
				Category: findings.CategorySecurity, Severity: findings.SeverityCritical,
				Description: "TLS/SSL explicitly disabled",
				FixHint:     "Remove the tls=false/ssl=false override; terminate TLS for all personal-data transport.",
				RegulationRefs: []findings.RegulationRef{{Regulation: "GDPR", Section: "Art. 32"}},
			})
		}
		if piiPrimaryKeyPattern.MatchString(line) {
			out = append(out, rules.Violation{
				Line: i + 1, Subtype: "pii_primary_key", Match: line,
				Category: findings.CategorySecurity, Severity: findings.SeverityHigh,
				Description: "PII literal used as a primary key",
				FixHint:     "Use a surrogate key and store PII in a separate, access-controlled column.",
				RegulationRefs: []findings.RegulationRef{{Regulation: "GDPR", Section: "Art. 5(1)(c)"}},
			})
		}
		if piiEndpointPattern.MatchString(line) && !fileHasRateLimit {
			out = append(out, rules.Violation{
				Line: i + 1, Subtype: "unrated_pii_endpoint", Match: line,
				Category: findings.CategorySecurity, Severity: findings.SeverityMedium,
				Description: "PII-returning endpoint without a rate limit in this file",
				FixHint:     "Call apply_rate_limit( on this endpoint to reduce bulk-exfiltration risk.",
				RegulationRefs: []findings.RegulationRef{{Regulation: "GDPR", Section: "Art. 32"}},
			})
		}
	}
	return out, nil
}
