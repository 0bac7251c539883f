package rules

import (
	"context"
	"regexp"

	"github.com/privoscope/privoscope/internal/domain/findings"
	"github.com/privoscope/privoscope/internal/domain/rules"
)

var (
	objectCreationPIIPattern = regexp.MustCompile(`(?i)\bnew\s+(?:User|Customer|Profile|Account)\s*\(`)
	storagePIIPattern        = regexp.MustCompile(`(?i)\b(?:save|persist|store)\s*\(.*\b(?:ssn|email|password|phone)\b`)
)

// DevGuidanceRule is R9: object-creation and storage patterns carrying
// PII-denoting identifiers, classified by developer-facing impact.
type DevGuidanceRule struct{}

func NewDevGuidanceRule() *DevGuidanceRule { return &DevGuidanceRule{} }

func (DevGuidanceRule) ID() string                  { return "R9" }
func (DevGuidanceRule) Description() string         { return "Object or storage pattern carrying personal data, classified by impact" }
func (DevGuidanceRule) Category() findings.Category { return findings.CategoryDevGuide }

func (r DevGuidanceRule) Evaluate(_ context.Context, content, _ string) ([]rules.Violation, error) {
	lines := splitLines(content)
	var out []rules.Violation
	for i, line := range lines {
		if objectCreationPIIPattern.MatchString(line) {
			out = append(out, rules.Violation{
				Line: i + 1, Subtype: "pii_object_creation", Match: line,
				Category: findings.CategoryDevGuide, Severity: findings.SeverityMedium,
				Description: "Object holding personal-data fields constructed here",
				FixHint:     "Confirm downstream handling of this object respects field-level access control.",
				Impact:      "MEDIUM",
				Suggestion:  "Review the constructor's call sites for unnecessary field propagation.",
			})
		}
		if storagePIIPattern.MatchString(line) {
			out = append(out, rules.Violation{
				Line: i + 1, Subtype: "pii_storage_call", Match: line,
				Category: findings.CategoryDevGuide, Severity: findings.SeverityHigh,
				Description: "Storage call persists a field carrying personal data",
				FixHint:     "Verify the target store encrypts this field at rest and enforces a retention policy.",
				Impact:      "HIGH",
				Suggestion:  "Add an encryption-at-rest check to the storage adapter for this field.",
			})
		}
	}
	return out, nil
}
