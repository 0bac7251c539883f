package agents

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privoscope/privoscope/internal/domain/findings"
)

func TestFixSuggestAgent_SkipsSuppressedFindings(t *testing.T) {
	agent := NewFixSuggestAgent(nil, nil, false, nil, nil, "corr")
	in := ComplianceOutput{Findings: []findings.Finding{
		{FindingID: "1", Suppressed: true},
		{FindingID: "2", FilePath: "a.go", Severity: findings.SeverityHigh, RuleID: "R1"},
	}}
	result := agent.Process(context.Background(), in)
	require.Len(t, result.Output.Fixes, 1)
	assert.Equal(t, "2", result.Output.Fixes[0].FindingID)
}

func TestFixSuggestAgent_GroupsByFileAndPriority(t *testing.T) {
	agent := NewFixSuggestAgent(nil, nil, false, nil, nil, "corr")
	in := ComplianceOutput{Findings: []findings.Finding{
		{FindingID: "1", FilePath: "a.go", Severity: findings.SeverityHigh, RuleID: "R1"},
		{FindingID: "2", FilePath: "a.go", Severity: findings.SeverityHigh, RuleID: "R5"},
	}}
	result := agent.Process(context.Background(), in)
	require.Len(t, result.Output.ByFile["a.go"], 2)
	require.Len(t, result.Output.ByPriority[string(findings.SeverityHigh)], 2)
	require.Len(t, result.Output.ByViolation, 2)
}

func TestFixSuggestAgent_AIOverridesFallbackWhenAvailable(t *testing.T) {
	ai := fakeAI{ok: true, text: `{"after":"masked(x)","steps":["mask it"],"confidence":0.8}`}
	agent := NewFixSuggestAgent(nil, ai, true, nil, nil, "corr")
	in := ComplianceOutput{Findings: []findings.Finding{
		{FindingID: "1", FilePath: "a.go", Severity: findings.SeverityHigh, RuleID: "R1"},
	}}
	result := agent.Process(context.Background(), in)
	require.Len(t, result.Output.Fixes, 1)
	assert.True(t, result.Output.Fixes[0].AIEnhanced)
	assert.Equal(t, "masked(x)", result.Output.Fixes[0].After)
}

func TestFixSuggestAgent_AIUnavailableFallsBackToTemplate(t *testing.T) {
	ai := fakeAI{ok: false}
	agent := NewFixSuggestAgent(nil, ai, true, nil, nil, "corr")
	in := ComplianceOutput{Findings: []findings.Finding{
		{FindingID: "1", FilePath: "a.go", Severity: findings.SeverityHigh, RuleID: "R1"},
	}}
	result := agent.Process(context.Background(), in)
	require.Len(t, result.Output.Fixes, 1)
	assert.False(t, result.Output.Fixes[0].AIEnhanced)
	assert.NotEmpty(t, result.Output.Fixes[0].After)
}
