package agents

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	domainai "github.com/privoscope/privoscope/internal/domain/ai"
	"github.com/privoscope/privoscope/internal/domain/findings"
	domainstore "github.com/privoscope/privoscope/internal/domain/store"
	"github.com/privoscope/privoscope/internal/clock"
	"github.com/privoscope/privoscope/internal/engine"
	"github.com/privoscope/privoscope/internal/errcode"
)

// ScanOutput is S1's output shape (spec §4.7 S1).
type ScanOutput struct {
	Findings         []findings.Finding `json:"findings"`
	RuleStats        []engine.RuleStat  `json:"rule_stats"`
	CountsBySeverity map[string]int     `json:"counts_by_severity"`
	CountsByLanguage map[string]int     `json:"counts_by_language"`
}

// ScanAgent is S1: runs the Rule Engine over a project path or a scratch
// directory built from an inline source, deduplicates, and bucket-counts.
type ScanAgent struct {
	Base[findings.ScanRequest, ScanOutput]
	eng          *engine.Engine
	extraIgnored []string
}

// NewScanAgent builds S1. eng is the Rule Engine instance this agent drives.
func NewScanAgent(eng *engine.Engine, extraIgnored []string, store domainstore.ResultStore, aiClient domainai.Client, aiEnabled bool, clk clock.Clock, logger hclog.Logger, correlationID string) *ScanAgent {
	a := &ScanAgent{eng: eng, extraIgnored: extraIgnored}
	a.Base = Base[findings.ScanRequest, ScanOutput]{
		StageIDValue:  "S1_SCAN",
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

func (a *ScanAgent) validate(req findings.ScanRequest) (ScanOutput, []findings.StageError, bool) {
	if err := req.Validate(); err != nil {
		return ScanOutput{CountsBySeverity: map[string]int{}, CountsByLanguage: map[string]int{}},
			[]findings.StageError{{Code: errcode.InputInvalid, Message: err.Error()}}, false
	}
	return ScanOutput{}, nil, true
}

func (a *ScanAgent) compute(ctx context.Context, req findings.ScanRequest, _ AICaller) (ScanOutput, findings.AIUsage, []findings.StageError) {
	opts := req.Options
	var root string
	var cleanup func()
	var errs []findings.StageError

	if req.InlineSource != nil && req.InlineSource.Content != "" {
		scratchRoot, err := scratchDirFor(req.InlineSource)
		if err != nil {
			errs = append(errs, findings.StageError{Code: errcode.IOTransient, Message: err.Error()})
			return ScanOutput{CountsBySeverity: map[string]int{}, CountsByLanguage: map[string]int{}}, findings.AIUsage{}, errs
		}
		root = scratchRoot
		cleanup = func() { os.RemoveAll(scratchRoot) }
	} else {
		root = req.ProjectPath
	}
	if cleanup != nil {
		defer cleanup()
	}

	result, err := a.eng.Run(ctx, root, opts, a.extraIgnored)
	if err != nil {
		errs = append(errs, findings.StageError{Code: errcode.IOTransient, Message: err.Error()})
		return ScanOutput{CountsBySeverity: map[string]int{}, CountsByLanguage: map[string]int{}}, findings.AIUsage{}, errs
	}
	for _, fe := range result.FileErrors {
		errs = append(errs, findings.StageError{
			Code:     errcode.RuleInternal,
			Message:  fe.Err,
			FilePath: fe.Path,
			RuleID:   fe.RuleID,
		})
	}
	for _, w := range result.Warnings {
		errs = append(errs, findings.StageError{Code: errcode.IOTransient, Message: w.Message, FilePath: w.Path})
	}

	deduped := dedupeByFindingID(result.Findings)

	bySeverity := map[string]int{}
	byLanguage := map[string]int{}
	for _, f := range deduped {
		bySeverity[string(f.Severity)]++
		byLanguage[string(f.Language)]++
	}

	return ScanOutput{
		Findings:         deduped,
		RuleStats:        result.RuleStats,
		CountsBySeverity: bySeverity,
		CountsByLanguage: byLanguage,
	}, findings.AIUsage{}, errs
}

func dedupeByFindingID(in []findings.Finding) []findings.Finding {
	seen := make(map[string]bool, len(in))
	out := make([]findings.Finding, 0, len(in))
	for _, f := range in {
		if seen[f.FindingID] {
			continue
		}
		seen[f.FindingID] = true
		out = append(out, f)
	}
	return out
}

// scratchDirFor writes an inline source to a freshly created scratch
// directory named test.<file_type>, isolated per call so concurrent scans
// never share scratch state (spec §4.7 S1, §5 Ordering guarantees).
func scratchDirFor(src *findings.InlineSource) (string, error) {
	dir, err := os.MkdirTemp("", fmt.Sprintf("privoscope-scan-%s-", uuid.NewString()))
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, "test."+src.FileType)
	if err := os.WriteFile(path, []byte(src.Content), 0o600); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	return dir, nil
}
