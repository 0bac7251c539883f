// Package rules declares the Rule Catalog port (C2): a pure function from
// file content to violations, identified by a stable rule_id.
package rules

import (
	"context"

	"github.com/privoscope/privoscope/internal/domain/findings"
)

// Violation is one match produced by a Rule against one file.
type Violation struct {
	Line           int
	Subtype        string
	Match          string
	Category       findings.Category
	Severity       findings.Severity
	Description    string
	FixHint        string
	RegulationRefs []findings.RegulationRef
	IsPositive     bool
	Law            string // AI_GUIDANCE rules (R8): GDPR article / CCPA section
	Impact         string // DEV_GUIDANCE rule (R9): HIGH | MEDIUM | LOW
	Suggestion     string // DEV_GUIDANCE rule (R9)
	PatternIndex   int
}

// Rule is a deterministic function from file content to violations.
// Evaluate must perform no I/O and must never block: rule evaluation is
// one of the non-suspending computations in the concurrency model (spec §5).
// R10 is the sole exception — it is explicitly an AI-backed rule and takes
// a context for its bounded remote call.
type Rule interface {
	ID() string
	Description() string
	Category() findings.Category
	Evaluate(ctx context.Context, content, path string) ([]Violation, error)
}
