// Package regulations holds the hardcoded lookup tables the Compliance
// and Fix-Suggest agents map findings through: rule/category to regulation
// group, highest-severity to risk assessment, and rule/language to fix
// template (spec §4.7 S3, S4).
package regulations

import (
	"sort"

	"github.com/privoscope/privoscope/internal/domain/findings"
)

// groupByRuleID maps a rule id to the regulation group name used to bucket
// violations_by_regulation when a Finding's own regulation_refs are empty.
var groupByRuleID = map[string]string{
	"R1":  "GDPR_PII",
	"R2":  "GDPR_PII",
	"R3":  "GDPR_ERASURE",
	"R4":  "GDPR_CONSENT",
	"R5":  "GDPR_SECURITY",
	"R6":  "GDPR_DATAFLOW",
	"R7":  "GDPR_ADVANCED",
	"R8":  "MULTI_REGULATION",
	"R9":  "INTERNAL_GUIDANCE",
	"R10": "AI_ASSISTED",
}

// groupByCategory is the fallback keyed on category when rule_id is unknown
// (e.g. AI_DISCOVERED findings from S2).
var groupByCategory = map[findings.Category]string{
	findings.CategoryPII:        "GDPR_PII",
	findings.CategorySecurity:   "GDPR_SECURITY",
	findings.CategoryConsent:    "GDPR_CONSENT",
	findings.CategoryDataflow:   "GDPR_DATAFLOW",
	findings.CategoryAdvanced:   "GDPR_ADVANCED",
	findings.CategoryAIGuidance: "MULTI_REGULATION",
	findings.CategoryDevGuide:   "INTERNAL_GUIDANCE",
}

// GroupFor resolves a Finding's regulation group by rule_id first, falling
// back to category (spec §4.7 S3: "merging the Finding's regulation_refs
// with a hardcoded map keyed on rule_id + category").
func GroupFor(f findings.Finding) string {
	if g, ok := groupByRuleID[f.RuleID]; ok {
		return g
	}
	if g, ok := groupByCategory[f.Category]; ok {
		return g
	}
	return "UNCLASSIFIED"
}

// riskRow is one entry of the fixed risk-assessment lookup table.
type riskRow struct {
	business, legal, reputation, financial string
}

var riskTable = map[findings.Severity]riskRow{
	findings.SeverityCritical: {"CRITICAL", "CRITICAL", "HIGH", "SEVERE"},
	findings.SeverityHigh:     {"HIGH", "HIGH", "MEDIUM", "SIGNIFICANT"},
	findings.SeverityMedium:   {"MEDIUM", "MEDIUM", "LOW", "MODERATE"},
	findings.SeverityLow:      {"LOW", "LOW", "LOW", "MINIMAL"},
}

// RiskAssessmentFor rolls up the fixed lookup table keyed on the highest
// severity present among findings (spec §4.7 S3).
func RiskAssessmentFor(highest findings.Severity) findings.RiskAssessment {
	row, ok := riskTable[highest]
	if !ok {
		row = riskRow{"LOW", "LOW", "LOW", "MINIMAL"}
	}
	return findings.RiskAssessment{
		BusinessRisk:    row.business,
		LegalRisk:       row.legal,
		ReputationRisk:  row.reputation,
		FinancialImpact: row.financial,
	}
}

// RecommendationsFor builds the priority-sorted deterministic fallback
// recommendation list from the distinct regulation groups present.
func RecommendationsFor(byGroup map[string][]findings.Finding) []string {
	groups := make([]string, 0, len(byGroup))
	for g := range byGroup {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return len(byGroup[groups[i]]) > len(byGroup[groups[j]])
	})

	var out []string
	for _, g := range groups {
		out = append(out, recommendationText(g, len(byGroup[g])))
	}
	return out
}

func recommendationText(group string, count int) string {
	switch group {
	case "GDPR_PII":
		return "Remove or tokenize hardcoded personal-data literals found across the codebase."
	case "GDPR_ERASURE":
		return "Route deletion and do-not-sell operations through auditable, policy-aware services."
	case "GDPR_CONSENT":
		return "Add consent markers to every personal-data capture point lacking one."
	case "GDPR_SECURITY":
		return "Enforce encryption at rest and in transit for all sensitive data paths."
	case "GDPR_DATAFLOW":
		return "Eliminate personal-data leakage into logs, traces, and unmanaged retention."
	case "GDPR_ADVANCED":
		return "Close the remaining context-aware privacy gaps flagged across GraphQL, ML, and DDL surfaces."
	case "MULTI_REGULATION":
		return "Prioritize the AI-flagged cross-regulation hazards; they carry explicit legal citations."
	case "INTERNAL_GUIDANCE":
		return "Review developer-guidance findings during the next code-review pass."
	case "AI_ASSISTED":
		return "Triage the AI-assisted contextual findings manually; they are not deterministic pattern matches."
	default:
		return "Review the remaining unclassified findings."
	}
}

// fixTemplate is one entry of the deterministic S4 fallback table.
type fixTemplate struct {
	after string
	steps []string
}

// fixTemplatesByRule is keyed on rule_id; language-specific overrides are
// layered on top in fixTemplatesByRuleAndLanguage.
var fixTemplatesByRule = map[string]fixTemplate{
	"R1": {"<redacted-email>", []string{"Remove the literal email address.", "Replace it with a fixture or configuration value."}},
	"R2": {"<redacted>", []string{"Replace the literal with a masked or tokenized placeholder.", "Confirm no test relies on the literal's real value."}},
	"R3": {"call_erasure_service(user_id)", []string{"Replace the literal SQL with a call to the erasure service.", "Ensure the call is audited."}},
	"R4": {"@consent_required\n<original line>", []string{"Add a consent marker directly above the capture line.", "Confirm the marker matches an enforced consent check."}},
	"R5": {"<add @encrypt / https:// / tls=true>", []string{"Apply the missing encryption or transport marker.", "Re-run the scan to confirm the marker suppresses the finding."}},
	"R6": {"logger.info(\"user action\", redact(fields))", []string{"Mask PII fields before logging.", "Add a retention TTL or DSAR registration call as applicable."}},
	"R7": {"<add the missing scope/consent/minimization marker>", []string{"Add the specific marker named in the finding's description."}},
	"R8": {"<move credential to a secret manager>", []string{"Rotate the exposed credential.", "Source it from environment/secret manager at runtime."}},
	"R9": {"<review storage/construction call>", []string{"Confirm the target store enforces encryption and retention."}},
}

// FixTemplateFor returns the deterministic (after, steps) fallback for a
// rule, independent of language — S4's fallback table (spec §4.7 S4).
func FixTemplateFor(ruleID string) (after string, steps []string) {
	t, ok := fixTemplatesByRule[ruleID]
	if !ok {
		return "<manual review required>", []string{"No deterministic fix template exists for this rule; review manually."}
	}
	return t.after, append([]string(nil), t.steps...)
}

// EffortFor derives the fallback effort sizing from severity (spec §4.7 S4).
func EffortFor(sev findings.Severity) findings.Effort {
	switch sev {
	case findings.SeverityCritical:
		return findings.EffortLarge
	case findings.SeverityHigh:
		return findings.EffortMedium
	case findings.SeverityMedium:
		return findings.EffortSmall
	default:
		return findings.EffortTrivial
	}
}
