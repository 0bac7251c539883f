package findings

import "time"

// Status is the executive-summary compliance status.
type Status string

const (
	StatusCompliant        Status = "COMPLIANT"
	StatusNeedsImprovement Status = "NEEDS_IMPROVEMENT"
	StatusNonCompliant     Status = "NON_COMPLIANT"
	StatusPartial          Status = "PARTIAL"
)

// RiskAssessment is the fixed-lookup-table risk rollup produced by the
// Compliance Agent and echoed in the final Report.
type RiskAssessment struct {
	BusinessRisk    string `json:"business_risk"`
	LegalRisk       string `json:"legal_risk"`
	ReputationRisk  string `json:"reputation_risk"`
	FinancialImpact string `json:"financial_impact"`
}

// ComplianceAnalysis is the Compliance Agent's output (spec §4.7 S3).
type ComplianceAnalysis struct {
	ViolationsByRegulation map[string][]Finding `json:"violations_by_regulation"`
	ComplianceScore        int                  `json:"compliance_score"`
	RiskAssessment         RiskAssessment       `json:"risk_assessment"`
	Recommendations        []string             `json:"recommendations"`
}

// Effort is the fix-suggestion sizing enum.
type Effort string

const (
	EffortTrivial Effort = "TRIVIAL"
	EffortSmall   Effort = "SMALL"
	EffortMedium  Effort = "MEDIUM"
	EffortLarge   Effort = "LARGE"
)

// FixSuggestion is the Fix-Suggest Agent's per-finding output (spec §4.7 S4).
type FixSuggestion struct {
	FindingID    string   `json:"finding_id"`
	Before       string   `json:"before"`
	After        string   `json:"after"`
	Steps        []string `json:"steps"`
	Alternatives []string `json:"alternatives,omitempty"`
	Effort       Effort   `json:"effort"`
	AIEnhanced   bool     `json:"ai_enhanced"`
	AIConfidence float64  `json:"ai_confidence"`
}

// FixRecommendations is the Fix-Suggest Agent's full output, grouped three ways.
type FixRecommendations struct {
	Fixes        []FixSuggestion            `json:"fixes"`
	ByFile       map[string][]FixSuggestion `json:"by_file"`
	ByViolation  map[string]FixSuggestion   `json:"by_violation"`
	ByPriority   map[string][]FixSuggestion `json:"by_priority"`
}

// ReportMetadata is the Report's metadata block (spec §4.7 S5).
type ReportMetadata struct {
	GeneratedAt     time.Time `json:"generated_at"`
	CorrelationID   string    `json:"correlation_id"`
	TotalViolations int       `json:"total_violations"`
	AgentsUsed      []string  `json:"agents_used"`
	AIEnhanced      bool      `json:"ai_enhanced"`
	DegradedReasons []string  `json:"degraded_reasons,omitempty"`
	CompletedStages []string  `json:"completed_stages,omitempty"`
}

// ExecutiveSummary is the Report's top-level, human-facing summary.
type ExecutiveSummary struct {
	Status            Status `json:"status"`
	Message           string `json:"message"`
	ComplianceScore   int    `json:"compliance_score"`
	RiskLevel         string `json:"risk_level"`
	TotalViolations   int    `json:"total_violations"`
	HighSeverityCount int    `json:"high_severity_count"`
}

// Report is the terminal stage's output (spec §3).
type Report struct {
	Metadata           ReportMetadata     `json:"metadata"`
	ExecutiveSummary   ExecutiveSummary   `json:"executive_summary"`
	DetailedFindings   []Finding          `json:"detailed_findings"`
	ComplianceAnalysis ComplianceAnalysis `json:"compliance_analysis"`
	FixRecommendations FixRecommendations `json:"fix_recommendations"`
	RiskAssessment     RiskAssessment     `json:"risk_assessment"`
	ActionItems        []string           `json:"action_items"`
	BedrockEnhanced    bool               `json:"bedrock_enhanced"`
}
