package agents

import (
	"context"
	"encoding/json"

	"github.com/hashicorp/go-hclog"

	domainai "github.com/privoscope/privoscope/internal/domain/ai"
	"github.com/privoscope/privoscope/internal/domain/findings"
	domainstore "github.com/privoscope/privoscope/internal/domain/store"
	"github.com/privoscope/privoscope/internal/clock"
	"github.com/privoscope/privoscope/internal/infra/ai/prompt"
	"github.com/privoscope/privoscope/internal/regulations"
)

// FixSuggestOutput is S4's output (spec §4.7 S4).
type FixSuggestOutput struct {
	findings.FixRecommendations
	Findings []findings.Finding `json:"findings"`
}

type aiFixRecord struct {
	After        string   `json:"after"`
	Steps        []string `json:"steps"`
	Alternatives []string `json:"alternatives"`
	Confidence   float64  `json:"confidence"`
}

// FixSuggestAgent is S4: deterministic fallback table plus optional
// language/context-aware AI enhancement, grouped by file/violation/priority.
type FixSuggestAgent struct {
	Base[ComplianceOutput, FixSuggestOutput]
}

func NewFixSuggestAgent(store domainstore.ResultStore, aiClient domainai.Client, aiEnabled bool, clk clock.Clock, logger hclog.Logger, correlationID string) *FixSuggestAgent {
	a := &FixSuggestAgent{}
	a.Base = Base[ComplianceOutput, FixSuggestOutput]{
		StageIDValue:  "S4_FIX_SUGGEST",
		CorrelationID: correlationID,
		Store:         store,
		AIClient:      aiClient,
		AIEnabled:     aiEnabled,
		Clock:         clk,
		Logger:        logger,
		Validate:      a.validate,
		Compute:       a.compute,
	}
	return a
}

func (a *FixSuggestAgent) validate(in ComplianceOutput) (FixSuggestOutput, []findings.StageError, bool) {
	return FixSuggestOutput{}, nil, true
}

func (a *FixSuggestAgent) compute(ctx context.Context, in ComplianceOutput, call AICaller) (FixSuggestOutput, findings.AIUsage, []findings.StageError) {
	var fixes []findings.FixSuggestion
	usage := findings.AIUsage{}

	for _, f := range in.Findings {
		if f.Suppressed {
			continue
		}
		after, steps := regulations.FixTemplateFor(f.RuleID)
		fix := findings.FixSuggestion{
			FindingID: f.FindingID,
			Before:    f.MatchExcerpt,
			After:     after,
			Steps:     steps,
			Effort:    regulations.EffortFor(f.Severity),
		}

		fixPrompt := prompt.FixSuggestPrompt(string(f.Language), f.RuleID, f.MatchExcerpt)
		if text, ok := call(ctx, fixPrompt, ""); ok {
			var rec aiFixRecord
			if err := json.Unmarshal([]byte(text), &rec); err == nil && rec.After != "" {
				fix.After = rec.After
				fix.Steps = rec.Steps
				fix.Alternatives = rec.Alternatives
				fix.AIEnhanced = true
				fix.AIConfidence = rec.Confidence
				usage.Used = true
				if rec.Confidence > usage.Confidence {
					usage.Confidence = rec.Confidence
				}
			}
		}
		fixes = append(fixes, fix)
	}

	byFile := make(map[string][]findings.FixSuggestion)
	byViolation := make(map[string]findings.FixSuggestion)
	byPriority := make(map[string][]findings.FixSuggestion)

	findingByID := make(map[string]findings.Finding, len(in.Findings))
	for _, f := range in.Findings {
		findingByID[f.FindingID] = f
	}

	for _, fix := range fixes {
		byViolation[fix.FindingID] = fix
		if f, ok := findingByID[fix.FindingID]; ok {
			byFile[f.FilePath] = append(byFile[f.FilePath], fix)
			priority := string(f.Severity)
			byPriority[priority] = append(byPriority[priority], fix)
		}
	}

	out := FixSuggestOutput{
		FixRecommendations: findings.FixRecommendations{
			Fixes:       fixes,
			ByFile:      byFile,
			ByViolation: byViolation,
			ByPriority:  byPriority,
		},
		Findings: in.Findings,
	}
	return out, usage, nil
}
