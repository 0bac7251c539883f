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

// ComplianceOutput is S3's output (spec §4.7 S3), embedded verbatim in the
// final Report as compliance_analysis.
type ComplianceOutput struct {
	findings.ComplianceAnalysis
	Findings []findings.Finding `json:"findings"`
}

// ComplianceAgent is S3: regulation grouping, compliance scoring, and risk
// rollup. AI may only rewrite textual recommendations.
type ComplianceAgent struct {
	Base[EnhanceOutput, ComplianceOutput]
}

func NewComplianceAgent(store domainstore.ResultStore, aiClient domainai.Client, aiEnabled bool, clk clock.Clock, logger hclog.Logger, correlationID string) *ComplianceAgent {
	a := &ComplianceAgent{}
	a.Base = Base[EnhanceOutput, ComplianceOutput]{
		StageIDValue:  "S3_COMPLIANCE",
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

func (a *ComplianceAgent) validate(in EnhanceOutput) (ComplianceOutput, []findings.StageError, bool) {
	return ComplianceOutput{}, nil, true
}

func (a *ComplianceAgent) compute(ctx context.Context, in EnhanceOutput, call AICaller) (ComplianceOutput, findings.AIUsage, []findings.StageError) {
	byGroup := make(map[string][]findings.Finding)
	var countedTotal int
	var weightSum int
	var highest findings.Severity

	for _, f := range in.Findings {
		if f.Suppressed || f.IsPositive {
			continue
		}
		group := regulations.GroupFor(f)
		byGroup[group] = append(byGroup[group], f)
		countedTotal++
		weightSum += f.Severity.Weight()
		if f.Severity.Rank() > highest.Rank() {
			highest = f.Severity
		}
	}

	score := 100
	if countedTotal > 0 {
		maxPossible := countedTotal * 10
		score = int(round(100 - (float64(weightSum)/float64(maxPossible))*100))
		if score < 0 {
			score = 0
		}
		if score > 100 {
			score = 100
		}
	}

	recs := regulations.RecommendationsFor(byGroup)
	usage := findings.AIUsage{}

	if summary, err := json.Marshal(struct {
		Score int            `json:"compliance_score"`
		Bands map[string]int `json:"violations_by_regulation_count"`
	}{score, countsOf(byGroup)}); err == nil {
		if text, ok := call(ctx, prompt.RecommendationPrompt(string(summary)), ""); ok {
			var aiRecs []string
			if err := json.Unmarshal([]byte(text), &aiRecs); err == nil && len(aiRecs) > 0 {
				recs = aiRecs
				usage.Used = true
				usage.Confidence = 0.7
			}
		}
	}

	out := ComplianceOutput{
		ComplianceAnalysis: findings.ComplianceAnalysis{
			ViolationsByRegulation: byGroup,
			ComplianceScore:        score,
			RiskAssessment:         regulations.RiskAssessmentFor(highest),
			Recommendations:        recs,
		},
		Findings: in.Findings,
	}
	return out, usage, nil
}

func countsOf(byGroup map[string][]findings.Finding) map[string]int {
	out := make(map[string]int, len(byGroup))
	for g, fs := range byGroup {
		out[g] = len(fs)
	}
	return out
}

func round(f float64) float64 {
	if f < 0 {
		return float64(int(f - 0.5))
	}
	return float64(int(f + 0.5))
}
