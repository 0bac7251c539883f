// Package prompt builds the request bodies sent to the AI Collaborator
// Adapter for the Remote-AI Rule and the AI-aware pipeline stages.
package prompt

import "fmt"

// SystemPrompt is the shared system message: strict JSON-only output, no
// markdown fences, schema left to the caller's specific prompt.
func SystemPrompt() string {
	return `You are a privacy and data-protection compliance analyst. Respond with ` +
		`a single valid JSON value only — no markdown fences, no commentary. ` +
		`Use the exact field names requested in the user message. Be conservative: ` +
		`when uncertain whether something is a real hazard, omit it rather than guess.`
}

// UserPrompt wraps the rule/stage-specific instruction plus the source
// content or finding context it applies to.
func UserPrompt(instruction, context string) string {
	return fmt.Sprintf("%s\n\n---\n%s", instruction, context)
}

// EnhancementPrompt builds the S2 AI-Enhance Agent's batch prompt: for
// each finding, ask for an enriched description, business-impact note,
// additional regulation refs, and a confidence score.
func EnhancementPrompt(batchSummary string) string {
	return fmt.Sprintf(
		"For each finding below, return an enriched description, a one-sentence "+
			"business-impact note, any additional regulation_refs (regulation, "+
			"article_or_section) you'd add, and a confidence in [0,1]. Respond with "+
			"a JSON array aligned index-for-index with the input findings, each "+
			"object having fields: description, business_impact, regulation_refs, "+
			"confidence. You may also append objects for newly discovered findings "+
			"not in the input, each with additional fields: file_path, line, "+
			"severity, category, match_excerpt.\n\nFindings:\n%s", batchSummary)
}

// RecommendationPrompt asks the Compliance Agent's AI pass to rewrite the
// textual recommendations list without touching the numeric score.
func RecommendationPrompt(findingsSummary string) string {
	return fmt.Sprintf(
		"Given this compliance summary, rewrite the recommendations list as "+
			"clear, prioritized, actionable guidance. Respond with a JSON array "+
			"of strings. Do not invent a compliance_score; none is requested "+
			"here.\n\nSummary:\n%s", findingsSummary)
}

// FixSuggestPrompt asks for a language-aware, context-aware fix for one finding.
func FixSuggestPrompt(language, ruleID, matchExcerpt string) string {
	return fmt.Sprintf(
		"The following %s source line was flagged by rule %s: %q. Respond with "+
			"a JSON object with fields: after (a concrete replacement string), "+
			"steps (an ordered array of short implementation steps), alternatives "+
			"(a possibly-empty array of alternative fixes), confidence ([0,1]).",
		language, ruleID, matchExcerpt)
}
