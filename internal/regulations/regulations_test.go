package regulations

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/privoscope/privoscope/internal/domain/findings"
)

func TestGroupFor_PrefersRuleIDOverCategory(t *testing.T) {
	f := findings.Finding{RuleID: "R1", Category: findings.CategoryDevGuide}
	assert.Equal(t, "GDPR_PII", GroupFor(f))
}

func TestGroupFor_FallsBackToCategory(t *testing.T) {
	f := findings.Finding{RuleID: "AI_DISCOVERED", Category: findings.CategorySecurity}
	assert.Equal(t, "GDPR_SECURITY", GroupFor(f))
}

func TestGroupFor_UnclassifiedFallback(t *testing.T) {
	f := findings.Finding{RuleID: "UNKNOWN", Category: findings.Category("UNKNOWN")}
	assert.Equal(t, "UNCLASSIFIED", GroupFor(f))
}

func TestRiskAssessmentFor(t *testing.T) {
	assert.Equal(t, "CRITICAL", RiskAssessmentFor(findings.SeverityCritical).BusinessRisk)
	assert.Equal(t, "MINIMAL", RiskAssessmentFor(findings.SeverityLow).FinancialImpact)
	assert.Equal(t, "LOW", RiskAssessmentFor(findings.Severity("")).BusinessRisk, "unknown severity falls back to the LOW row")
}

func TestRecommendationsFor_SortsByGroupSizeDescending(t *testing.T) {
	byGroup := map[string][]findings.Finding{
		"GDPR_PII":     {{}, {}, {}},
		"GDPR_CONSENT": {{}},
	}
	recs := RecommendationsFor(byGroup)
	assert.Len(t, recs, 2)
	assert.Contains(t, recs[0], "tokenize")
}

func TestFixTemplateFor_KnownAndUnknownRule(t *testing.T) {
	after, steps := FixTemplateFor("R1")
	assert.NotEmpty(t, after)
	assert.NotEmpty(t, steps)

	after, steps = FixTemplateFor("RXX")
	assert.Equal(t, "<manual review required>", after)
	assert.NotEmpty(t, steps)
}

func TestEffortFor(t *testing.T) {
	assert.Equal(t, findings.EffortLarge, EffortFor(findings.SeverityCritical))
	assert.Equal(t, findings.EffortMedium, EffortFor(findings.SeverityHigh))
	assert.Equal(t, findings.EffortSmall, EffortFor(findings.SeverityMedium))
	assert.Equal(t, findings.EffortTrivial, EffortFor(findings.SeverityLow))
}
