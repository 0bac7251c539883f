package agents

import (
	"context"
	"encoding/json"

	"github.com/hashicorp/go-hclog"

	domainai "github.com/privoscope/privoscope/internal/domain/ai"
	"github.com/privoscope/privoscope/internal/domain/findings"
	domainstore "github.com/privoscope/privoscope/internal/domain/store"
	"github.com/privoscope/privoscope/internal/clock"
	"github.com/privoscope/privoscope/internal/errcode"
	"github.com/privoscope/privoscope/internal/infra/ai/prompt"
)

const aiEnhanceBatchSize = 20

// EnhanceOutput is S2's output: the same bucketed shape as S1, carrying
// enriched (and possibly additional) findings.
type EnhanceOutput struct {
	Findings         []findings.Finding `json:"findings"`
	CountsBySeverity map[string]int     `json:"counts_by_severity"`
	CountsByLanguage map[string]int     `json:"counts_by_language"`
}

type enhancementRecord struct {
	Description     string                  `json:"description"`
	BusinessImpact   string                 `json:"business_impact"`
	RegulationRefs  []findings.RegulationRef `json:"regulation_refs"`
	Confidence      float64                 `json:"confidence"`
	FilePath        string                  `json:"file_path"`
	Line            int                     `json:"line"`
	Severity        string                  `json:"severity"`
	Category        string                  `json:"category"`
	MatchExcerpt    string                  `json:"match_excerpt"`
}

// AIEnhanceAgent is S2: enriches each Finding with AI-derived context,
// batched at aiEnhanceBatchSize, and never removes a Finding.
type AIEnhanceAgent struct {
	Base[ScanOutput, EnhanceOutput]
}

func NewAIEnhanceAgent(store domainstore.ResultStore, aiClient domainai.Client, aiEnabled bool, clk clock.Clock, logger hclog.Logger, correlationID string) *AIEnhanceAgent {
	a := &AIEnhanceAgent{}
	a.Base = Base[ScanOutput, EnhanceOutput]{
		StageIDValue:  "S2_AI_ENHANCE",
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

func (a *AIEnhanceAgent) validate(in ScanOutput) (EnhanceOutput, []findings.StageError, bool) {
	return EnhanceOutput{}, nil, true
}

func (a *AIEnhanceAgent) compute(ctx context.Context, in ScanOutput, call AICaller) (EnhanceOutput, findings.AIUsage, []findings.StageError) {
	result := append([]findings.Finding(nil), in.Findings...)
	var errs []findings.StageError
	usage := findings.AIUsage{}

	total := len(result)
	for start := 0; start < total; start += aiEnhanceBatchSize {
		end := start + aiEnhanceBatchSize
		if end > total {
			end = total
		}
		batch := result[start:end]

		summary, err := json.Marshal(batch)
		if err != nil {
			continue
		}
		text, ok := call(ctx, prompt.EnhancementPrompt(string(summary)), "")
		if !ok {
			continue
		}

		var records []enhancementRecord
		if err := json.Unmarshal([]byte(text), &records); err != nil {
			errs = append(errs, findings.StageError{Code: errcode.AIUnavailable, Message: "malformed AI enhancement response: " + err.Error()})
			continue
		}

		usage.Used = true
		for i := range batch {
			if i >= len(records) {
				break
			}
			rec := records[i]
			if rec.Description != "" {
				batch[i].Description = rec.Description
			}
			batch[i].RegulationRefs = append(batch[i].RegulationRefs, rec.RegulationRefs...)
			batch[i].AIEnhanced = true
			if rec.Confidence > usage.Confidence {
				usage.Confidence = rec.Confidence
			}
			batch[i].AIConfidence = rec.Confidence
		}

		for i := len(batch); i < len(records); i++ {
			rec := records[i]
			if rec.FilePath == "" || rec.Line <= 0 {
				continue
			}
			sev := findings.Severity(rec.Severity)
			if sev.Weight() == 0 {
				sev = findings.SeverityMedium
			}
			nf := findings.Finding{
				FilePath:     rec.FilePath,
				Line:         rec.Line,
				RuleID:       "AI_DISCOVERED",
				Category:     findings.Category(rec.Category),
				Severity:     sev,
				MatchExcerpt: findings.TruncateExcerpt(rec.MatchExcerpt),
				Description:  rec.Description,
				AIEnhanced:   true,
				AIConfidence: rec.Confidence,
			}
			nf = nf.WithComputedID()
			result = append(result, nf)
		}
	}

	bySeverity := map[string]int{}
	byLanguage := map[string]int{}
	for _, f := range result {
		bySeverity[string(f.Severity)]++
		byLanguage[string(f.Language)]++
	}

	return EnhanceOutput{Findings: result, CountsBySeverity: bySeverity, CountsByLanguage: byLanguage}, usage, errs
}
