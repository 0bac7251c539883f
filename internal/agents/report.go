package agents

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/hashicorp/go-hclog"
	"github.com/owenrumney/go-sarif/v2/sarif"

	domainai "github.com/privoscope/privoscope/internal/domain/ai"
	"github.com/privoscope/privoscope/internal/domain/findings"
	domainstore "github.com/privoscope/privoscope/internal/domain/store"
	"github.com/privoscope/privoscope/internal/clock"
	"github.com/privoscope/privoscope/internal/errcode"
)

// ReportOutput is S5's output: the terminal Report plus the locator it was
// persisted under.
type ReportOutput struct {
	Report  findings.Report `json:"report"`
	Locator string          `json:"locator"`
}

// ReportInput bundles every prior stage's output the Report Agent compiles
// from (spec §4.8: "cumulative dossier {S1.out, S2.out, ...}").
type ReportInput struct {
	Scan        ScanOutput
	Enhance     EnhanceOutput
	Compliance  ComplianceOutput
	FixSuggest  FixSuggestOutput
	AgentsUsed  []string
	AIUsedAny   bool
	ExportSARIF bool
}

// ReportAgent is S5: composes the final Report and persists it via the
// Result Store Adapter, optionally also exporting a SARIF sidecar.
type ReportAgent struct {
	Base[ReportInput, ReportOutput]
}

func NewReportAgent(store domainstore.ResultStore, aiClient domainai.Client, aiEnabled bool, clk clock.Clock, logger hclog.Logger, correlationID string) *ReportAgent {
	a := &ReportAgent{}
	a.Base = Base[ReportInput, ReportOutput]{
		StageIDValue:  "S5_REPORT",
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

func (a *ReportAgent) validate(in ReportInput) (ReportOutput, []findings.StageError, bool) {
	return ReportOutput{}, nil, true
}

func (a *ReportAgent) compute(ctx context.Context, in ReportInput, _ AICaller) (ReportOutput, findings.AIUsage, []findings.StageError) {
	var errs []findings.StageError

	allFindings := in.FixSuggest.Findings
	if allFindings == nil {
		allFindings = in.Compliance.Findings
	}

	total := 0
	highCount := 0
	for _, f := range allFindings {
		if f.Suppressed || f.IsPositive {
			continue
		}
		total++
		if f.Severity == findings.SeverityHigh || f.Severity == findings.SeverityCritical {
			highCount++
		}
	}

	score := in.Compliance.ComplianceScore
	status := statusFromScore(score)
	riskLevel := in.Compliance.RiskAssessment.BusinessRisk

	actionItems := actionItemsFor(total, in.Compliance.Recommendations)

	report := findings.Report{
		Metadata: findings.ReportMetadata{
			CorrelationID:   a.CorrelationID,
			TotalViolations: total,
			AgentsUsed:      in.AgentsUsed,
			AIEnhanced:      in.AIUsedAny,
		},
		ExecutiveSummary: findings.ExecutiveSummary{
			Status:            status,
			Message:           summaryMessage(status, total),
			ComplianceScore:   score,
			RiskLevel:         riskLevel,
			TotalViolations:   total,
			HighSeverityCount: highCount,
		},
		DetailedFindings:   allFindings,
		ComplianceAnalysis: in.Compliance.ComplianceAnalysis,
		FixRecommendations: in.FixSuggest.FixRecommendations,
		RiskAssessment:     in.Compliance.RiskAssessment,
		ActionItems:        actionItems,
		BedrockEnhanced:    in.AIUsedAny,
	}
	report.Metadata.GeneratedAt = a.now()

	payload, err := json.Marshal(report)
	if err != nil {
		errs = append(errs, findings.StageError{Code: errcode.IOTransient, Message: "failed to marshal report: " + err.Error()})
		return ReportOutput{Report: report}, findings.AIUsage{}, errs
	}

	locator := ""
	if a.Store != nil {
		loc, err := a.Store.PutReport(ctx, a.CorrelationID, payload, "application/json")
		if err != nil {
			errs = append(errs, findings.StageError{Code: errcode.IOTransient, Message: "failed to persist report: " + err.Error()})
		} else {
			locator = loc
		}

		if in.ExportSARIF {
			if sarifPayload, serr := buildSARIF(allFindings); serr == nil {
				if _, err := a.Store.PutReport(ctx, a.CorrelationID+"-sarif", sarifPayload, "application/sarif+json"); err != nil {
					errs = append(errs, findings.StageError{Code: errcode.IOTransient, Message: "failed to persist SARIF export: " + err.Error()})
				}
			}
		}
	}

	return ReportOutput{Report: report, Locator: locator}, findings.AIUsage{Used: in.AIUsedAny}, errs
}

func statusFromScore(score int) findings.Status {
	switch {
	case score >= 90:
		return findings.StatusCompliant
	case score >= 60:
		return findings.StatusNeedsImprovement
	default:
		return findings.StatusNonCompliant
	}
}

func summaryMessage(status findings.Status, total int) string {
	switch status {
	case findings.StatusCompliant:
		return "No significant privacy or compliance hazards detected."
	case findings.StatusNeedsImprovement:
		return "Some privacy or compliance hazards were found and should be addressed."
	default:
		if total == 0 {
			return "The request could not be processed; no findings were produced."
		}
		return "Significant privacy or compliance hazards were found and require prompt remediation."
	}
}

func actionItemsFor(total int, recommendations []string) []string {
	var items []string
	if total > 0 {
		items = append(items, "Implement suggested fixes for all violations")
	}
	for _, r := range recommendations {
		items = append(items, r)
	}
	return items
}

// buildSARIF renders findings as a SARIF 2.1.0 run, a supplementary export
// format alongside the canonical JSON report.
func buildSARIF(findingsList []findings.Finding) ([]byte, error) {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, err
	}
	run := sarif.NewRunWithInformationURI("privoscope", "https://github.com/privoscope/privoscope")

	seenRules := map[string]bool{}
	for _, f := range findingsList {
		if f.Suppressed || f.IsPositive {
			continue
		}
		if !seenRules[f.RuleID] {
			run.AddRule(f.RuleID).
				WithDescription(f.RuleDescription).
				WithDefaultConfiguration(&sarif.ReportingConfiguration{Level: sarifLevel(f.Severity)})
			seenRules[f.RuleID] = true
		}

		location := sarif.NewLocation().WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(f.FilePath)).
				WithRegion(sarif.NewRegion().WithStartLine(f.Line)),
		)
		result := sarif.NewRuleResult(f.RuleID).
			WithMessage(sarif.NewTextMessage(f.Description)).
			WithLevel(sarifLevel(f.Severity)).
			WithLocations([]*sarif.Location{location})
		run.AddResult(result)
	}
	report.AddRun(run)

	var buf bytes.Buffer
	if err := report.PrettyWrite(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sarifLevel(sev findings.Severity) string {
	switch sev {
	case findings.SeverityCritical, findings.SeverityHigh:
		return "error"
	case findings.SeverityMedium:
		return "warning"
	default:
		return "note"
	}
}
