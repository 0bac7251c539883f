package rules

import (
	"context"
	"regexp"

	"github.com/privoscope/privoscope/internal/domain/findings"
	"github.com/privoscope/privoscope/internal/domain/rules"
)

var (
	dataCaptureAssignmentPattern = regexp.MustCompile(`(?i)\b(?:user_data|personal_data|profile_data)\s*[:=]`)
	piiObjectLiteralPattern      = regexp.MustCompile(`(?i)\b(?:email|phone|ssn|address)\s*:\s*["'][^"']+["']`)
	disabledOptOutPattern        = regexp.MustCompile(`(?i)\bopt_out\s*=\s*false\b`)
	forcedConsentPattern         = regexp.MustCompile(`(?i)\bforced_consent\s*=\s*true\b`)
)

// ConsentRule is R4: data-capture without a nearby consent marker.
type ConsentRule struct{}

func NewConsentRule() *ConsentRule { return &ConsentRule{} }

func (ConsentRule) ID() string                  { return "R4" }
func (ConsentRule) Description() string         { return "Data capture without consent marker" }
func (ConsentRule) Category() findings.Category { return findings.CategoryConsent }

func (r ConsentRule) Evaluate(_ context.Context, content, _ string) ([]rules.Violation, error) {
	lines := splitLines(content)
	var out []rules.Violation
	for i, line := range lines {
		if dataCaptureAssignmentPattern.MatchString(line) || piiObjectLiteralPattern.MatchString(line) {
			if suppressed, _ := hasMarkerOnLineOrAbove(lines, i+1, consentMarkers); !suppressed {
				out = append(out, rules.Violation{
					Line: i + 1, Subtype: "missing_consent_marker", Match: line,
					Category: findings.CategoryConsent, Severity: findings.SeverityHigh,
					Description: "Personal-data capture without an adjacent consent marker",
					FixHint:     "Add a @consent_required, @privacy_consent, or data_purpose= marker on this line or the line above.",
					RegulationRefs: []findings.RegulationRef{{Regulation: "GDPR", Section: "Art. 6"}},
				})
			}
		}
		if disabledOptOutPattern.MatchString(line) {
			out = append(out, rules.Violation{
				Line: i + 1, Subtype: "disabled_opt_out", Match: line,
				Category: findings.CategoryConsent, Severity: findings.SeverityHigh,
				Description: "Opt-out mechanism explicitly disabled",
				FixHint:     "Do not hardcode opt_out=false; respect the user's stored preference.",
				RegulationRefs: []findings.RegulationRef{{Regulation: "CCPA", Section: "1798.120"}},
			})
		}
		if forcedConsentPattern.MatchString(line) {
			out = append(out, rules.Violation{
				Line: i + 1, Subtype: "forced_consent", Match: line,
				Category: findings.CategoryConsent, Severity: findings.SeverityCritical,
				Description: "Consent forced rather than obtained; invalid under freely-given consent requirements",
				FixHint:     "Remove the forced_consent flag and implement an explicit consent capture flow.",
				RegulationRefs: []findings.RegulationRef{{Regulation: "GDPR", Section: "Art. 7"}},
			})
		}
	}
	return out, nil
}
