package rules

import (
	"context"
	"regexp"

	"github.com/privoscope/privoscope/internal/domain/findings"
	"github.com/privoscope/privoscope/internal/domain/rules"
)

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[a-z]{2,}`)

// EmailRule is R1: flags email-like literals. It never fires positive
// (good-practice) markers and has no suppression window.
type EmailRule struct{}

func NewEmailRule() *EmailRule { return &EmailRule{} }

func (EmailRule) ID() string                        { return "R1" }
func (EmailRule) Description() string               { return "Hardcoded email address literal" }
func (EmailRule) Category() findings.Category       { return findings.CategoryPII }

func (r EmailRule) Evaluate(_ context.Context, content, _ string) ([]rules.Violation, error) {
	lines := splitLines(content)
	var out []rules.Violation
	for i, line := range lines {
		if !emailPattern.MatchString(line) {
			continue
		}
		out = append(out, rules.Violation{
			Line:        i + 1,
			Match:       line,
			Category:    findings.CategoryPII,
			Severity:    findings.SeverityMedium,
			Description: "Email address literal found in source",
			FixHint:     "Move PII literals out of source into test fixtures or configuration, or mask before logging/storing.",
			RegulationRefs: []findings.RegulationRef{
				{Regulation: "GDPR", Section: "Art. 4(1)"},
				{Regulation: "CCPA", Section: "1798.140(v)"},
			},
		})
	}
	return out, nil
}
