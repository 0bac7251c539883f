// Package engine implements the Rule Engine (C3): it fans the Scanner Set
// across the Rule Catalog over a directory, producing a deterministically
// ordered list of Findings plus violation envelope strings.
package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hashicorp/go-hclog"

	"github.com/privoscope/privoscope/internal/domain/ai"
	"github.com/privoscope/privoscope/internal/domain/findings"
	domainrules "github.com/privoscope/privoscope/internal/domain/rules"
	domainscanners "github.com/privoscope/privoscope/internal/domain/scanners"
	"github.com/privoscope/privoscope/internal/rules"
)

const defaultQueueSize = 256

// RuleStat is one entry of get_rule_stats(): how many violations a rule
// produced in the most recent run, plus its static description.
type RuleStat struct {
	RuleID      string `json:"rule_id"`
	Description string `json:"description"`
	Count       int    `json:"count"`
}

// Result is everything one engine Run produces.
type Result struct {
	Findings   []findings.Finding
	Envelopes  []string
	Warnings   []domainscanners.Warning
	RuleStats  []RuleStat
	FileErrors []FileError
}

// FileError records a RULE_INTERNAL condition: a single (file, rule) pair
// that failed to evaluate. All other pairs continue (spec §7).
type FileError struct {
	Path   string
	RuleID string
	Err    string
}

// Engine owns the scanner set, the rule catalog, and the AI client used by
// R10 and exposed to callers via the set_ai_* configuration hooks.
type Engine struct {
	mu        sync.RWMutex
	scanner   domainscanners.Set
	aiClient  ai.Client
	aiEnabled bool
	workers   int
	queueSize int
	logger    hclog.Logger
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithWorkers overrides the bounded worker-pool size (spec §5, default 4).
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithQueueSize overrides the bounded backpressure queue (spec §5, default 256).
func WithQueueSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.queueSize = n
		}
	}
}

// WithLogger attaches a structured logger; a discard logger is used otherwise.
func WithLogger(l hclog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New builds an Engine over scanner, with AI enabled by default and no
// AI client configured (R10 becomes a no-op until set_ai_key/config wires one).
func New(scanner domainscanners.Set, opts ...Option) *Engine {
	e := &Engine{
		scanner:   scanner,
		aiEnabled: true,
		workers:   4,
		queueSize: defaultQueueSize,
		logger:    hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetAIEnabled implements the set_ai_enabled(bool) configuration hook.
func (e *Engine) SetAIEnabled(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.aiEnabled = enabled
}

// SetAIClient implements set_ai_key/set_ai_config: the engine does not
// construct transport clients itself, it accepts an already-configured one.
func (e *Engine) SetAIClient(client ai.Client) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.aiClient = client
}

func (e *Engine) currentCatalog() []domainrules.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	var client ai.Client
	if e.aiEnabled {
		client = e.aiClient
	}
	return rules.Catalog(client)
}

// GetRuleStats returns the static rule descriptions with zero counts; a
// caller wanting post-run counts should use Result.RuleStats instead.
func (e *Engine) GetRuleStats() []RuleStat {
	var stats []RuleStat
	for _, r := range e.currentCatalog() {
		stats = append(stats, RuleStat{RuleID: r.ID(), Description: r.Description()})
	}
	return stats
}

// violationRecord pairs a Violation with the file it came from, for
// the final cross-file sort.
type violationRecord struct {
	file    domainscanners.ScannedFile
	ruleID  string
	ruleIdx int
	v       domainrules.Violation
}

// Run walks root via the Scanner Set and evaluates the rule catalog across
// every discovered file using a bounded worker pool. Results are merged and
// sorted deterministically before returning, regardless of the order worker
// goroutines complete in (spec §5 Scheduling model, §8 Property 2).
func (e *Engine) Run(ctx context.Context, root string, opts findings.Options, extraIgnored []string) (Result, error) {
	catalog := e.currentCatalog()

	files, warnings, err := e.scanner.Scan(root, opts.MaxBytesPerFile, extraIgnored)
	if err != nil {
		return Result{}, err
	}

	if len(files) == 0 {
		return Result{Warnings: warnings, RuleStats: zeroStats(catalog)}, nil
	}

	type fileResult struct {
		records []violationRecord
		errs    []FileError
	}

	results := make([]fileResult, len(files))
	sem := make(chan struct{}, e.workers)
	if cap(sem) == 0 {
		sem = make(chan struct{}, 1)
	}

	g, gctx := errgroup.WithContext(ctx)
	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-heartbeat.C:
				e.logger.Info("engine heartbeat", "files", len(files), "root", root)
			}
		}
	}()

	for i, f := range files {
		i, f := i, f
		if !opts.AllowsLanguage(f.Language) {
			continue
		}
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			records, errs := e.evaluateFile(gctx, catalog, f)
			results[i] = fileResult{records: records, errs: errs}
			return nil
		})
	}

	runErr := g.Wait()
	close(done)
	if runErr != nil && runErr != context.Canceled && runErr != context.DeadlineExceeded {
		return Result{}, runErr
	}

	var all []violationRecord
	var fileErrors []FileError
	counts := make(map[string]int)
	for _, r := range results {
		all = append(all, r.records...)
		fileErrors = append(fileErrors, r.errs...)
	}

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.file.Path != b.file.Path {
			return a.file.Path < b.file.Path
		}
		if a.v.Line != b.v.Line {
			return a.v.Line < b.v.Line
		}
		if a.ruleID != b.ruleID {
			return a.ruleID < b.ruleID
		}
		return a.v.PatternIndex < b.v.PatternIndex
	})

	var out []findings.Finding
	var envelopes []string
	seen := make(map[string]bool)
	for _, r := range all {
		if r.v.IsPositive {
			counts[r.ruleID]++
			continue
		}
		if !opts.MeetsSeverityFloor(r.v.Severity) {
			continue
		}
		if !opts.AllowsRule(r.ruleID) {
			continue
		}
		excerpt := findings.TruncateExcerpt(r.v.Match)
		f := findings.Finding{
			FilePath:        r.file.Path,
			Line:            r.v.Line,
			Language:        r.file.Language,
			RuleID:          r.ruleID,
			RuleDescription: ruleDescription(catalog, r.ruleID),
			Category:        r.v.Category,
			Severity:        r.v.Severity,
			MatchExcerpt:    excerpt,
			Description:     r.v.Description,
			FixHint:         r.v.FixHint,
			RegulationRefs:  r.v.RegulationRefs,
			IsPositive:      r.v.IsPositive,
			Truncated:       r.file.Truncated,
		}
		f = f.WithComputedID()
		if seen[f.FindingID] {
			continue
		}
		seen[f.FindingID] = true
		out = append(out, f)
		counts[r.ruleID]++
		envelopes = append(envelopes, formatEnvelope(f))
	}

	var stats []RuleStat
	for _, rule := range catalog {
		stats = append(stats, RuleStat{RuleID: rule.ID(), Description: rule.Description(), Count: counts[rule.ID()]})
	}

	return Result{
		Findings:   out,
		Envelopes:  envelopes,
		Warnings:   warnings,
		RuleStats:  stats,
		FileErrors: fileErrors,
	}, nil
}

func (e *Engine) evaluateFile(ctx context.Context, catalog []domainrules.Rule, f domainscanners.ScannedFile) ([]violationRecord, []FileError) {
	var records []violationRecord
	var errs []FileError
	for idx, rule := range catalog {
		violations, err := safeEvaluate(ctx, rule, f.Content, f.Path)
		if err != nil {
			errs = append(errs, FileError{Path: f.Path, RuleID: rule.ID(), Err: err.Error()})
			continue
		}
		for _, v := range violations {
			records = append(records, violationRecord{file: f, ruleID: rule.ID(), ruleIdx: idx, v: v})
		}
	}
	return records, errs
}

// safeEvaluate recovers a panicking rule evaluator into a RULE_INTERNAL
// error for this single (file, rule) pair (spec §7).
func safeEvaluate(ctx context.Context, rule domainrules.Rule, content, path string) (result []domainrules.Violation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("RULE_INTERNAL: rule %s panicked: %v", rule.ID(), r)
		}
	}()
	return rule.Evaluate(ctx, content, path)
}

func ruleDescription(catalog []domainrules.Rule, ruleID string) string {
	for _, r := range catalog {
		if r.ID() == ruleID {
			return r.Description()
		}
	}
	return ""
}

func zeroStats(catalog []domainrules.Rule) []RuleStat {
	var stats []RuleStat
	for _, r := range catalog {
		stats = append(stats, RuleStat{RuleID: r.ID(), Description: r.Description()})
	}
	return stats
}

// formatEnvelope renders the stable, externally-consumed violation string
// from spec §6: `[<language>] <path>:<line> - <desc> (found: "<match>")`.
func formatEnvelope(f findings.Finding) string {
	escaped := strings.ReplaceAll(f.MatchExcerpt, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	return fmt.Sprintf("[%s] %s:%d - %s (found: \"%s\")", f.Language, f.FilePath, f.Line, f.RuleDescription, escaped)
}
