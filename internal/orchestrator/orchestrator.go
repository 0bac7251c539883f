// Package orchestrator implements the Orchestrator (C8): it sequences the
// five Stage Agents end to end under a global deadline and assembles the
// final Report, driven by a run-until-done loop.
package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/privoscope/privoscope/internal/agents"
	"github.com/privoscope/privoscope/internal/clock"
	domainai "github.com/privoscope/privoscope/internal/domain/ai"
	"github.com/privoscope/privoscope/internal/domain/findings"
	domainstore "github.com/privoscope/privoscope/internal/domain/store"
	"github.com/privoscope/privoscope/internal/engine"
	"github.com/privoscope/privoscope/internal/errcode"
)

// Orchestrator wires the Rule Engine, the Result Store, and an optional AI
// client into one end-to-end run of the five-stage pipeline.
type Orchestrator struct {
	Eng            *engine.Engine
	Store          domainstore.ResultStore
	AIClient       domainai.Client
	AIEnabled      bool
	Clock          clock.Clock
	Logger         hclog.Logger
	GlobalDeadline time.Duration
	ExtraIgnored   []string
}

// New builds an Orchestrator. A zero GlobalDeadline disables the
// deadline guard entirely (spec §6 default GLOBAL_DEADLINE_MS=900000).
func New(eng *engine.Engine, store domainstore.ResultStore, aiClient domainai.Client, aiEnabled bool, globalDeadline time.Duration, extraIgnored []string) *Orchestrator {
	return &Orchestrator{
		Eng:            eng,
		Store:          store,
		AIClient:       aiClient,
		AIEnabled:      aiEnabled,
		Clock:          clock.System{},
		Logger:         hclog.NewNullLogger(),
		GlobalDeadline: globalDeadline,
		ExtraIgnored:   extraIgnored,
	}
}

// Run drives S1 through S5 over req, returning the terminal Report and the
// locator it was persisted under. A tripped global deadline halts the
// sequence after whichever stage is in flight and yields a PARTIAL report
// built from whatever stages completed (spec §4.8).
func (o *Orchestrator) Run(ctx context.Context, req findings.ScanRequest) (*findings.Report, string) {
	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	req.CorrelationID = correlationID
	triggeredAt := o.clockOrDefault().Now()

	if o.GlobalDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.GlobalDeadline)
		defer cancel()
	}

	log := o.logger().With("correlation_id", correlationID)
	log.Info("pipeline run started")

	var completed []string
	var degradedReasons []string
	var errorLog []stageErrorEntry
	aiUsedAny := false

	recordErrs := func(stageID string, errs []findings.StageError) {
		degradedReasons = append(degradedReasons, codesOf(errs)...)
		for _, e := range errs {
			errorLog = append(errorLog, stageErrorEntry{stageID: stageID, err: e})
		}
	}

	scanAgent := agents.NewScanAgent(o.Eng, o.ExtraIgnored, o.Store, o.AIClient, o.AIEnabled, o.clockOrDefault(), o.Logger, correlationID)
	scanResult := scanAgent.Process(ctx, req)
	completed = append(completed, "S1_SCAN")
	recordErrs("S1_SCAN", scanResult.Errors)
	aiUsedAny = aiUsedAny || scanResult.AI.Used

	if deadlineTripped(ctx) {
		report, locator := o.partialReport(correlationID, completed, degradedReasons, aiUsedAny, scanResult.Output, agents.EnhanceOutput{}, agents.ComplianceOutput{}, agents.FixSuggestOutput{})
		o.persistAudit(req.TenantID, correlationID, report, triggeredAt, errorLog)
		return report, locator
	}

	enhanceAgent := agents.NewAIEnhanceAgent(o.Store, o.AIClient, o.AIEnabled, o.clockOrDefault(), o.Logger, correlationID)
	enhanceResult := enhanceAgent.Process(ctx, scanResult.Output)
	completed = append(completed, "S2_AI_ENHANCE")
	recordErrs("S2_AI_ENHANCE", enhanceResult.Errors)
	aiUsedAny = aiUsedAny || enhanceResult.AI.Used

	if deadlineTripped(ctx) {
		report, locator := o.partialReport(correlationID, completed, degradedReasons, aiUsedAny, scanResult.Output, enhanceResult.Output, agents.ComplianceOutput{}, agents.FixSuggestOutput{})
		o.persistAudit(req.TenantID, correlationID, report, triggeredAt, errorLog)
		return report, locator
	}

	complianceAgent := agents.NewComplianceAgent(o.Store, o.AIClient, o.AIEnabled, o.clockOrDefault(), o.Logger, correlationID)
	complianceResult := complianceAgent.Process(ctx, enhanceResult.Output)
	completed = append(completed, "S3_COMPLIANCE")
	recordErrs("S3_COMPLIANCE", complianceResult.Errors)
	aiUsedAny = aiUsedAny || complianceResult.AI.Used

	if deadlineTripped(ctx) {
		report, locator := o.partialReport(correlationID, completed, degradedReasons, aiUsedAny, scanResult.Output, enhanceResult.Output, complianceResult.Output, agents.FixSuggestOutput{})
		o.persistAudit(req.TenantID, correlationID, report, triggeredAt, errorLog)
		return report, locator
	}

	fixAgent := agents.NewFixSuggestAgent(o.Store, o.AIClient, o.AIEnabled, o.clockOrDefault(), o.Logger, correlationID)
	fixResult := fixAgent.Process(ctx, complianceResult.Output)
	completed = append(completed, "S4_FIX_SUGGEST")
	recordErrs("S4_FIX_SUGGEST", fixResult.Errors)
	aiUsedAny = aiUsedAny || fixResult.AI.Used

	if deadlineTripped(ctx) {
		report, locator := o.partialReport(correlationID, completed, degradedReasons, aiUsedAny, scanResult.Output, enhanceResult.Output, complianceResult.Output, fixResult.Output)
		o.persistAudit(req.TenantID, correlationID, report, triggeredAt, errorLog)
		return report, locator
	}

	reportAgent := agents.NewReportAgent(o.Store, o.AIClient, o.AIEnabled, o.clockOrDefault(), o.Logger, correlationID)
	reportInput := agents.ReportInput{
		Scan:        scanResult.Output,
		Enhance:     enhanceResult.Output,
		Compliance:  complianceResult.Output,
		FixSuggest:  fixResult.Output,
		AgentsUsed:  append([]string(nil), completed...),
		AIUsedAny:   aiUsedAny,
		ExportSARIF: true,
	}
	reportResult := reportAgent.Process(ctx, reportInput)
	completed = append(completed, "S5_REPORT")
	recordErrs("S5_REPORT", reportResult.Errors)

	report := reportResult.Output.Report
	report.Metadata.CompletedStages = completed
	report.Metadata.DegradedReasons = dedupeStrings(degradedReasons)
	if highest := errcode.HighestOf(report.Metadata.DegradedReasons); highest == errcode.DeadlineExceeded {
		report.ExecutiveSummary.Status = findings.StatusPartial
	}

	log.Info("pipeline run finished", "status", report.ExecutiveSummary.Status, "total_violations", report.Metadata.TotalViolations)
	o.persistAudit(req.TenantID, correlationID, &report, triggeredAt, errorLog)
	return &report, reportResult.Output.Locator
}

// stageErrorEntry pairs one StageError with the stage that produced it, so
// the audit trail (scan_errors) can record which stage degraded.
type stageErrorEntry struct {
	stageID string
	err     findings.StageError
}

// persistAudit indexes the run for tenant-scoped history listing and
// appends every stage error to the audit trail. Best-effort: a failure
// here never fails the pipeline run itself.
func (o *Orchestrator) persistAudit(tenantID, correlationID string, report *findings.Report, triggeredAt time.Time, errs []stageErrorEntry) {
	if o.Store == nil || report == nil {
		return
	}
	ctx := context.Background()
	log := o.logger().With("correlation_id", correlationID)

	rec := domainstore.ScanRecord{
		CorrelationID:   correlationID,
		TenantID:        tenantID,
		TriggeredAt:     triggeredAt,
		Status:          string(report.ExecutiveSummary.Status),
		ComplianceScore: report.ExecutiveSummary.ComplianceScore,
		TotalViolations: report.ExecutiveSummary.TotalViolations,
		DurationMS:      o.clockOrDefault().Now().Sub(triggeredAt).Milliseconds(),
	}
	if err := o.Store.SaveScanRecord(ctx, rec); err != nil {
		log.Warn("failed to save scan record", "error", err)
	}

	for _, e := range errs {
		entry := domainstore.ScanErrorEntry{
			TenantID:      tenantID,
			CorrelationID: correlationID,
			StageID:       e.stageID,
			Code:          e.err.Code,
			Message:       e.err.Message,
			CreatedAt:     o.clockOrDefault().Now(),
		}
		if err := o.Store.RecordScanError(ctx, entry); err != nil {
			log.Warn("failed to record scan error", "error", err)
		}
	}
}

// partialReport assembles a PARTIAL report from whichever stages completed
// before the global deadline tripped (spec §4.8, §7).
func (o *Orchestrator) partialReport(correlationID string, completed, degradedReasons []string, aiUsedAny bool, scanOut agents.ScanOutput, enhanceOut agents.EnhanceOutput, complianceOut agents.ComplianceOutput, fixOut agents.FixSuggestOutput) (*findings.Report, string) {
	degradedReasons = append(degradedReasons, errcode.DeadlineExceeded)

	allFindings := fixOut.Findings
	if allFindings == nil {
		allFindings = complianceOut.Findings
	}
	if allFindings == nil {
		allFindings = enhanceOut.Findings
	}
	if allFindings == nil {
		allFindings = scanOut.Findings
	}

	report := findings.Report{
		Metadata: findings.ReportMetadata{
			GeneratedAt:     o.clockOrDefault().Now(),
			CorrelationID:   correlationID,
			TotalViolations: len(allFindings),
			AgentsUsed:      completed,
			AIEnhanced:      aiUsedAny,
			DegradedReasons: dedupeStrings(degradedReasons),
			CompletedStages: completed,
		},
		ExecutiveSummary: findings.ExecutiveSummary{
			Status:          findings.StatusPartial,
			Message:         "The pipeline exceeded its global deadline before completing every stage.",
			ComplianceScore: complianceOut.ComplianceScore,
			RiskLevel:       complianceOut.RiskAssessment.BusinessRisk,
			TotalViolations: len(allFindings),
		},
		DetailedFindings:   allFindings,
		ComplianceAnalysis: complianceOut.ComplianceAnalysis,
		FixRecommendations: fixOut.FixRecommendations,
		RiskAssessment:     complianceOut.RiskAssessment,
		BedrockEnhanced:    aiUsedAny,
	}

	locator := ""
	if o.Store != nil {
		if payload, err := marshalReport(report); err == nil {
			if loc, err := o.Store.PutReport(context.Background(), correlationID, payload, "application/json"); err == nil {
				locator = loc
			}
		}
	}
	return &report, locator
}

func marshalReport(r findings.Report) ([]byte, error) {
	return json.Marshal(r)
}

func deadlineTripped(ctx context.Context) bool {
	return ctx.Err() != nil
}

func codesOf(errs []findings.StageError) []string {
	var out []string
	for _, e := range errs {
		out = append(out, e.Code)
	}
	return out
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func (o *Orchestrator) logger() hclog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return hclog.NewNullLogger()
}

func (o *Orchestrator) clockOrDefault() clock.Clock {
	if o.Clock != nil {
		return o.Clock
	}
	return clock.System{}
}
