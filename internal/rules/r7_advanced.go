package rules

import (
	"context"
	"regexp"

	"github.com/privoscope/privoscope/internal/domain/findings"
	"github.com/privoscope/privoscope/internal/domain/rules"
)

var (
	graphqlPIIFieldPattern   = regexp.MustCompile(`(?i)\b(?:email|ssn|phone|address)\s*:\s*(?:String|string)\b`)
	adTrackingLoadPattern    = regexp.MustCompile(`(?i)\b(?:loadAdSDK|trackingPixel|analytics\.track)\s*\(`)
	nonEEARegionPattern      = regexp.MustCompile(`(?i)\bregion\s*=\s*["'](?:us-east-1|us-west-2|ap-southeast-1|sa-east-1)["']`)
	piiJoinPattern           = regexp.MustCompile(`(?i)\bJOIN\b.*\busers\b.*\bJOIN\b`)
	mlTrainingLiteralPattern = regexp.MustCompile(`(?i)\btrain(?:ing)?[_\s]?(?:dataset|data)\s*=`)
	apiVersionBumpPattern    = regexp.MustCompile(`(?i)\bapi[_\s]?version\s*=\s*["']v?\d+["']`)
	newColumnDDLPattern      = regexp.MustCompile(`(?i)\bADD\s+COLUMN\b`)
)

var minimizationMarkers = []string{MarkerMinimization}
var scopeMarkers = []string{MarkerScope}
var optOutMarkers = []string{MarkerConsentOptOut}
var pseudonymizeMarkers = []string{MarkerPseudonymize, MarkerHash, MarkerTokenize}
var privacyContractMarkers = []string{MarkerPrivacyContract}
var columnAnnotationMarkers = []string{MarkerColumnAnnotated, MarkerColumnReferenced, MarkerColumnUsed}

// AdvancedPrivacyRule is R7: context-aware patterns, each with its own
// one-line suppression marker set.
type AdvancedPrivacyRule struct{}

func NewAdvancedPrivacyRule() *AdvancedPrivacyRule { return &AdvancedPrivacyRule{} }

func (AdvancedPrivacyRule) ID() string                  { return "R7" }
func (AdvancedPrivacyRule) Description() string         { return "Context-aware advanced privacy hazard" }
func (AdvancedPrivacyRule) Category() findings.Category { return findings.CategoryAdvanced }

func (r AdvancedPrivacyRule) Evaluate(_ context.Context, content, _ string) ([]rules.Violation, error) {
	lines := splitLines(content)
	var out []rules.Violation

	emit := func(i int, subtype, desc, fix string, sev findings.Severity) {
		out = append(out, rules.Violation{
			Line: i + 1, Subtype: subtype, Match: lines[i],
			Category: findings.CategoryAdvanced, Severity: sev,
			Description: desc, FixHint: fix,
		})
	}

	for i, line := range lines {
		if graphqlPIIFieldPattern.MatchString(line) {
			if ok, _ := hasMarkerOnLineOrAbove(lines, i+1, scopeMarkers); !ok {
				emit(i, "missing_field_scope", "GraphQL/REST PII field declared without a @scope annotation",
					"Add a @scope marker documenting which consumers may read this field.", findings.SeverityMedium)
			}
		}
		if adTrackingLoadPattern.MatchString(line) {
			if ok, _ := hasMarkerOnLineOrAbove(lines, i+1, optOutMarkers); !ok {
				emit(i, "tracking_without_opt_out", "Ad/tracking SDK loaded without a recorded opt-out check",
					`Guard the tracking load with a consent="opt_out" check.`, findings.SeverityHigh)
			}
		}
		if nonEEARegionPattern.MatchString(line) {
			emit(i, "non_eea_storage_region", "Cloud region suggests storage of EU personal data outside the EEA",
				"Use an EU-region bucket/database for EU subject data, or document a valid transfer mechanism.", findings.SeverityHigh)
		}
		if piiJoinPattern.MatchString(line) {
			if ok, _ := hasMarkerOnLineOrAbove(lines, i+1, pseudonymizeMarkers); !ok {
				emit(i, "large_pii_join_unprotected", "Large join across personal-data tables without pseudonymization nearby",
					"Pseudonymize, hash, or tokenize joined identifiers before materializing the result set.", findings.SeverityMedium)
			}
		}
		if mlTrainingLiteralPattern.MatchString(line) {
			if ok, _ := hasMarkerOnLineOrAbove(lines, i+1, minimizationMarkers); !ok {
				emit(i, "training_data_without_minimization", "Training dataset assembled without an explicit minimization marker",
					"Document a minimization marker or strip identifying fields before training.", findings.SeverityMedium)
			}
		}
		if apiVersionBumpPattern.MatchString(line) {
			if ok, _ := hasMarkerOnLineOrAbove(lines, i+1, privacyContractMarkers); !ok {
				emit(i, "api_version_without_privacy_contract", "API version bump without an accompanying privacy-contract version token",
					"Bump privacy_contract_version alongside the API version.", findings.SeverityLow)
			}
		}
		if newColumnDDLPattern.MatchString(line) {
			if ok, _ := hasMarkerOnLineOrAbove(lines, i+1, columnAnnotationMarkers); !ok {
				emit(i, "new_column_without_annotation", "New column added without a @required/@referenced/@used annotation",
					"Annotate the new column so downstream data-mapping tooling can classify it.", findings.SeverityLow)
			}
		}
	}
	return out, nil
}
