package rules

import (
	"context"
	"regexp"

	"github.com/privoscope/privoscope/internal/domain/findings"
	"github.com/privoscope/privoscope/internal/domain/rules"
)

var (
	hardcodedDeletePattern = regexp.MustCompile(`(?i)DELETE\s+FROM\s+users\s+WHERE\s+id\s*=\s*['"]?\d+['"]?`)
	sellUserDataPattern    = regexp.MustCompile(`(?i)\bsell_user_data\s*=\s*true\b`)
	collectAllDataPattern  = regexp.MustCompile(`(?i)\b(?:collect[_\s]?all[_\s]?data|store[_\s]?everything)\b`)
)

// PrivacyPolicyRule is R3: GDPR right-to-erasure and CCPA do-not-sell hazards.
type PrivacyPolicyRule struct{}

func NewPrivacyPolicyRule() *PrivacyPolicyRule { return &PrivacyPolicyRule{} }

func (PrivacyPolicyRule) ID() string                  { return "R3" }
func (PrivacyPolicyRule) Description() string         { return "Right-to-erasure / do-not-sell policy hazard" }
func (PrivacyPolicyRule) Category() findings.Category { return findings.CategoryConsent }

func (r PrivacyPolicyRule) Evaluate(_ context.Context, content, _ string) ([]rules.Violation, error) {
	lines := splitLines(content)
	var out []rules.Violation
	for i, line := range lines {
		switch {
		case hardcodedDeletePattern.MatchString(line):
			out = append(out, rules.Violation{
				Line: i + 1, Subtype: "hardcoded_erasure", Match: line,
				Category: findings.CategoryConsent, Severity: findings.SeverityHigh,
				Description: "Hardcoded user-erasure statement; right-to-erasure requests should go through an auditable deletion workflow",
				FixHint:     "Route deletions through a DSAR-aware erasure service instead of a literal DELETE statement.",
				RegulationRefs: []findings.RegulationRef{{Regulation: "GDPR", Section: "Art. 17"}},
			})
		case sellUserDataPattern.MatchString(line):
			out = append(out, rules.Violation{
				Line: i + 1, Subtype: "sell_user_data", Match: line,
				Category: findings.CategoryConsent, Severity: findings.SeverityCritical,
				Description: "Explicit user-data sale flag without a documented opt-out mechanism",
				FixHint:     "Gate data sale behind a verified do-not-sell opt-out check.",
				RegulationRefs: []findings.RegulationRef{{Regulation: "CCPA", Section: "1798.120"}},
			})
		case collectAllDataPattern.MatchString(line):
			out = append(out, rules.Violation{
				Line: i + 1, Subtype: "over_collection", Match: line,
				Category: findings.CategoryConsent, Severity: findings.SeverityMedium,
				Description: "Blanket data-collection literal conflicts with data-minimization principles",
				FixHint:     "Collect only the fields required for the stated purpose.",
				RegulationRefs: []findings.RegulationRef{{Regulation: "GDPR", Section: "Art. 5(1)(c)"}},
			})
		}
	}
	return out, nil
}
