// Package ai declares the AI Collaborator Adapter port (C4): a single
// analyze operation whose failure must never propagate as a raised error.
package ai

import "context"

// Client abstracts a remote LLM collaborator. Analyze returns ("", false)
// on any transport, auth, quota, or parse-precondition failure — callers
// must have a deterministic fallback and must never treat a false ok as
// fatal (spec §4.4 Failure policy).
type Client interface {
	Analyze(ctx context.Context, promptText, extraContext string) (text string, ok bool)
}

// CallStats records per-call adapter metrics (spec §4.4).
type CallStats struct {
	Attempted bool
	Succeeded bool
	LatencyMS int64
	ModelID   string
}
