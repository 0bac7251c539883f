// Package rules implements the Rule Catalog (C2): ten deterministic,
// pattern-based privacy rules. Every regex in the package is compiled once
// at package-init time (spec §9 "Regex catalog compilation"), never in the
// hot path.
package rules

import "strings"

// splitLines splits normalized (\n-only) content into its lines. Line
// numbering is 1-based; index i corresponds to line i+1.
func splitLines(content string) []string {
	return strings.Split(content, "\n")
}

// hasMarkerOnLineOrAbove implements the single common suppression rule
// used throughout the catalog (spec §4.2, §9): a would-be violation on
// 1-based line is suppressed if any marker matches on line-1 or line
// itself. The window is exactly one line above and the line itself, and
// is not configurable.
func hasMarkerOnLineOrAbove(lines []string, line int, markers []string) (bool, string) {
	idx := line - 1 // 0-based index of `line`
	if idx >= 0 && idx < len(lines) {
		if m, ok := matchAnyMarker(lines[idx], markers); ok {
			return true, m
		}
	}
	if idx-1 >= 0 && idx-1 < len(lines) {
		if m, ok := matchAnyMarker(lines[idx-1], markers); ok {
			return true, m
		}
	}
	return false, ""
}

func matchAnyMarker(line string, markers []string) (string, bool) {
	for _, m := range markers {
		if strings.Contains(line, m) {
			return m, true
		}
	}
	return "", false
}

// Canonical suppression/guard token spellings (spec §9 Open Questions:
// "implementers should pick one canonical form per token and document
// it" — these are the forms this implementation recognizes).
const (
	MarkerConsentRequired = "@consent_required"
	MarkerPrivacyConsent  = "@privacy_consent"
	MarkerGDPRConsent     = "@gdpr_consent"
	MarkerDataPurpose     = "data_purpose="
	MarkerProfilingOff    = "profiling_disabled=true"

	MarkerEncrypt   = "@encrypt"
	MarkerEncrypted = "@encrypted"
	MarkerSecure    = "@secure"

	MarkerRateLimitCall = "apply_rate_limit("
	MarkerDSARCall      = "register_dsar("

	MarkerScope           = "@scope"
	MarkerConsentOptOut   = `consent="opt_out"`
	MarkerPseudonymize    = "pseudonymize"
	MarkerHash            = "hash"
	MarkerTokenize        = "tokenize"
	MarkerMinimization    = "minimization"
	MarkerPrivacyContract = "privacy_contract_version"
	MarkerColumnAnnotated = "@required"
	MarkerColumnReferenced = "@referenced"
	MarkerColumnUsed      = "@used"

	MarkerTTL         = "ttl"
	MarkerDeleteAfter = "delete_after"
	MarkerExpires     = "expires"
)

var consentMarkers = []string{
	MarkerConsentRequired, MarkerPrivacyConsent, MarkerGDPRConsent,
	MarkerDataPurpose, MarkerProfilingOff,
}

var encryptionMarkers = []string{MarkerEncrypt, MarkerEncrypted, MarkerSecure}
