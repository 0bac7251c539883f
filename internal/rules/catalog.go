package rules

import (
	"github.com/privoscope/privoscope/internal/domain/ai"
	domainrules "github.com/privoscope/privoscope/internal/domain/rules"
)

// Catalog builds the fixed, ordered rule set (R1..R10). Order is part of
// the contract: the engine preserves catalog order as a tiebreaker when
// two violations share (file_path, line) (spec §4.3 Ordering).
func Catalog(aiClient ai.Client) []domainrules.Rule {
	return []domainrules.Rule{
		NewEmailRule(),
		NewComprehensivePIIRule(),
		NewPrivacyPolicyRule(),
		NewConsentRule(),
		NewEncryptionRule(),
		NewDataFlowRule(),
		NewAdvancedPrivacyRule(),
		NewAIGuidanceRule(),
		NewDevGuidanceRule(),
		NewRemoteAIRule(aiClient),
	}
}
