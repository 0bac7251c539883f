package rules

import (
	"context"
	"fmt"
	"regexp"

	"github.com/privoscope/privoscope/internal/domain/findings"
	"github.com/privoscope/privoscope/internal/domain/rules"
)

// piiSubPattern is one of R2's fifty-plus sub-patterns. Subtype identity is
// preserved in the emitted match_excerpt as "<subtype>: <line>" (spec §4.2).
type piiSubPattern struct {
	subtype  string
	re       *regexp.Regexp
	severity findings.Severity
	fixHint  string
}

// piiCatalog is grouped by concern for readability; evaluation order across
// the whole slice is the rule's declaration order (spec §4.2 Ordering).
var piiCatalog = buildPIICatalog()

func buildPIICatalog() []piiSubPattern {
	var all []piiSubPattern
	groups := [][]piiSubPattern{
		nationalIDPatterns(),
		paymentPatterns(),
		travelDocumentPatterns(),
		contactPatterns(),
		locationPatterns(),
		medicalPatterns(),
		biometricPatterns(),
		credentialPatterns(),
		schemaPatterns(),
	}
	for _, g := range groups {
		all = append(all, g...)
	}
	return all
}

func nationalIDPatterns() []piiSubPattern {
	return []piiSubPattern{
		{"ssn_dashed", regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), findings.SeverityCritical, "Remove hardcoded SSNs; use synthetic test data and encrypt at rest."},
		{"ssn_labeled", regexp.MustCompile(`(?i)\bssn\s*[:=]\s*\d{3}-?\d{2}-?\d{4}\b`), findings.SeverityCritical, "Remove hardcoded SSNs; use synthetic test data and encrypt at rest."},
		{"national_id_generic", regexp.MustCompile(`(?i)\bnational[_\s]?id\s*[:=]\s*[A-Za-z0-9]{6,}\b`), findings.SeverityHigh, "Avoid embedding national identifiers; reference by tokenized ID instead."},
		{"ni_number_uk", regexp.MustCompile(`\b[A-CEGHJ-PR-TW-Z]{2}\d{6}[A-D]\b`), findings.SeverityCritical, "Remove UK National Insurance numbers from source."},
		{"sin_canada", regexp.MustCompile(`\b\d{3}-\d{3}-\d{3}\b`), findings.SeverityCritical, "Remove Canadian SIN-formatted literals from source."},
		{"aadhaar_india", regexp.MustCompile(`\b\d{4}\s\d{4}\s\d{4}\b`), findings.SeverityCritical, "Remove Aadhaar-formatted literals from source."},
		{"tax_id_ein", regexp.MustCompile(`\b\d{2}-\d{7}\b`), findings.SeverityHigh, "Remove hardcoded tax identification numbers."},
		{"routing_number_us", regexp.MustCompile(`(?i)routing[_\s]?number\s*[:=]\s*\d{9}\b`), findings.SeverityHigh, "Do not hardcode bank routing numbers."},
		{"bank_account_number", regexp.MustCompile(`(?i)\baccount[_\s]?number\s*[:=]\s*\d{8,17}\b`), findings.SeverityCritical, "Do not hardcode bank account numbers; use tokenized references."},
		{"iban", regexp.MustCompile(`\b[A-Z]{2}\d{2}[A-Z0-9]{10,30}\b`), findings.SeverityCritical, "Remove hardcoded IBANs from source and test fixtures."},
	}
}

func paymentPatterns() []piiSubPattern {
	return []piiSubPattern{
		{"visa_card", regexp.MustCompile(`\b4\d{12}(?:\d{3})?\b`), findings.SeverityCritical, "Remove hardcoded card numbers; use a PCI-compliant vault/tokenization service."},
		{"mastercard", regexp.MustCompile(`\b5[1-5]\d{14}\b`), findings.SeverityCritical, "Remove hardcoded card numbers; use a PCI-compliant vault/tokenization service."},
		{"amex_card", regexp.MustCompile(`\b3[47]\d{13}\b`), findings.SeverityCritical, "Remove hardcoded card numbers; use a PCI-compliant vault/tokenization service."},
		{"discover_card", regexp.MustCompile(`\b6(?:011|5\d{2})\d{12}\b`), findings.SeverityCritical, "Remove hardcoded card numbers; use a PCI-compliant vault/tokenization service."},
		{"card_number_spaced", regexp.MustCompile(`\b\d{4}[ -]\d{4}[ -]\d{4}[ -]\d{4}\b`), findings.SeverityCritical, "Remove hardcoded card numbers; use a PCI-compliant vault/tokenization service."},
		{"amex_spaced", regexp.MustCompile(`\b\d{4}[ -]\d{6}[ -]\d{5}\b`), findings.SeverityCritical, "Remove hardcoded card numbers; use a PCI-compliant vault/tokenization service."},
		{"generic_pan_13_19", regexp.MustCompile(`\b\d{13,19}\b`), findings.SeverityHigh, "Verify this is not a payment card PAN; if so, tokenize and remove from source."},
		{"cvv_context", regexp.MustCompile(`(?i)\bcvv\s*[:=]\s*\d{3,4}\b`), findings.SeverityCritical, "Never store or hardcode CVV values; PCI-DSS prohibits CVV retention."},
		{"swift_bic", regexp.MustCompile(`(?i)(?:swift|bic)\s*[:=]\s*[A-Z]{6}[A-Z0-9]{2}(?:[A-Z0-9]{3})?\b`), findings.SeverityHigh, "Avoid hardcoding bank SWIFT/BIC codes tied to real accounts."},
	}
}

func travelDocumentPatterns() []piiSubPattern {
	return []piiSubPattern{
		{"us_passport", regexp.MustCompile(`(?i)passport\s*(?:no\.?|number)?\s*[:=]\s*[A-Z0-9]{6,9}\b`), findings.SeverityCritical, "Remove passport numbers from source; use masked test fixtures."},
		{"passport_mrz", regexp.MustCompile(`\bP<[A-Z]{3}[A-Z<]{10,39}`), findings.SeverityCritical, "Remove machine-readable-zone passport data from source."},
		{"driver_license_us", regexp.MustCompile(`(?i)(?:driver'?s?\s*license|dl)\s*#?\s*[:=]\s*[A-Z0-9]{6,12}\b`), findings.SeverityHigh, "Remove driver's license numbers from source."},
		{"vehicle_vin", regexp.MustCompile(`\b[A-HJ-NPR-Z0-9]{17}\b`), findings.SeverityMedium, "Confirm whether this VIN is tied to a real person; mask if so."},
		{"visa_document_number", regexp.MustCompile(`(?i)visa[_\s]?(?:number|no\.?)\s*[:=]\s*[A-Z0-9]{6,12}\b`), findings.SeverityHigh, "Remove visa document numbers from source."},
	}
}

func contactPatterns() []piiSubPattern {
	return []piiSubPattern{
		{"phone_intl", regexp.MustCompile(`\+\d{1,3}[\s.\-]?\(?\d{1,4}\)?[\s.\-]?\d{3,4}[\s.\-]?\d{3,4}\b`), findings.SeverityMedium, "Remove hardcoded phone numbers; use placeholder/test values."},
		{"phone_us_parens", regexp.MustCompile(`\(\d{3}\)\s?\d{3}-\d{4}\b`), findings.SeverityMedium, "Remove hardcoded phone numbers; use placeholder/test values."},
		{"phone_dashed", regexp.MustCompile(`\b\d{3}-\d{3}-\d{4}\b`), findings.SeverityMedium, "Remove hardcoded phone numbers; use placeholder/test values."},
		{"email_column_reference", regexp.MustCompile(`(?i)\bcolumn\s+email\b`), findings.SeverityLow, "Ensure the email column is access-controlled and encrypted at rest."},
	}
}

func locationPatterns() []piiSubPattern {
	return []piiSubPattern{
		{"us_zip", regexp.MustCompile(`(?i)\bzip(?:code)?\s*[:=]\s*\d{5}(?:-\d{4})?\b`), findings.SeverityLow, "Avoid pairing hardcoded ZIP codes with other identifying fields."},
		{"canada_postal", regexp.MustCompile(`\b[A-Za-z]\d[A-Za-z][ -]?\d[A-Za-z]\d\b`), findings.SeverityLow, "Avoid pairing hardcoded postal codes with other identifying fields."},
		{"street_address", regexp.MustCompile(`(?i)\b\d{1,6}\s+[A-Za-z0-9.\s]{2,40}\b(?:Street|St\.|Avenue|Ave\.|Boulevard|Blvd\.|Road|Rd\.|Lane|Ln\.|Drive|Dr\.)\b`), findings.SeverityMedium, "Remove hardcoded street addresses from source and fixtures."},
		{"user_ip_assignment", regexp.MustCompile(`(?i)\buser[_\s]?ip\s*[:=]\s*(?:\d{1,3}\.){3}\d{1,3}\b`), findings.SeverityMedium, "IP addresses tied to a user are personal data under GDPR; avoid hardcoding."},
	}
}

func medicalPatterns() []piiSubPattern {
	return []piiSubPattern{
		{"icd_code", regexp.MustCompile(`(?i)\bicd[-_]?1?0?\s*[:=]\s*[A-TV-Z][0-9]{2}(?:\.[0-9]{1,4})?\b`), findings.SeverityHigh, "ICD diagnosis codes are protected health information under HIPAA."},
		{"cpt_code", regexp.MustCompile(`(?i)\bcpt\s*[:=]\s*\d{5}\b`), findings.SeverityHigh, "CPT procedure codes are protected health information under HIPAA."},
		{"medical_record_number", regexp.MustCompile(`(?i)\bmrn\s*[:=]\s*[A-Za-z0-9]{6,}\b`), findings.SeverityCritical, "Medical record numbers are protected health information under HIPAA."},
		{"health_insurance_id", regexp.MustCompile(`(?i)\b(?:member|policy)[_\s]?id\s*[:=]\s*[A-Za-z0-9]{6,}\b`), findings.SeverityHigh, "Health insurance identifiers are protected health information under HIPAA."},
		{"blood_type", regexp.MustCompile(`(?i)\bblood[_\s]?type\s*[:=]\s*(?:AB|A|B|O)[+-]\b`), findings.SeverityMedium, "Blood type tied to an identified person is health data under GDPR Art. 9."},
		{"genetic_marker", regexp.MustCompile(`(?i)\b(?:genetic|dna)[_\s]?(?:marker|sequence)\b`), findings.SeverityCritical, "Genetic data is a special category under GDPR Art. 9; avoid hardcoding."},
	}
}

func biometricPatterns() []piiSubPattern {
	return []piiSubPattern{
		{"biometric_keyword", regexp.MustCompile(`(?i)\b(?:fingerprint|retina[_\s]?scan|iris[_\s]?scan|facial[_\s]?recognition[_\s]?template|voiceprint)\b`), findings.SeverityCritical, "Biometric identifiers are a special category under GDPR Art. 9."},
		{"biometric_hash_hex64", regexp.MustCompile(`\b[a-fA-F0-9]{64}\b`), findings.SeverityHigh, "Confirm this 64-hex value is not a raw biometric hash; if so, remove from source."},
		{"fingerprint_hash_assignment", regexp.MustCompile(`(?i)\bfingerprint[_\s]?hash\s*[:=]\s*[a-fA-F0-9]{32,}\b`), findings.SeverityCritical, "Biometric identifiers are a special category under GDPR Art. 9."},
		{"facial_template_id", regexp.MustCompile(`(?i)\bfacial[_\s]?template[_\s]?id\s*[:=]\s*[A-Za-z0-9]{6,}\b`), findings.SeverityCritical, "Biometric identifiers are a special category under GDPR Art. 9."},
	}
}

func credentialPatterns() []piiSubPattern {
	return []piiSubPattern{
		{"api_key_assignment", regexp.MustCompile(`(?i)\b(?:api[_-]?key|secret|token)\s*[:=]\s*["']?[A-Za-z0-9_\-]{20,}["']?`), findings.SeverityHigh, "Move API keys/tokens/secrets to a secret manager; rotate any exposed values."},
		{"bearer_token", regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-_.]{20,}`), findings.SeverityHigh, "Do not hardcode bearer tokens; source from a secret manager at runtime."},
		{"jwt_secret_assignment", regexp.MustCompile(`(?i)\bjwt_secret\s*[:=]\s*["']?[A-Za-z0-9_\-]{16,}`), findings.SeverityCritical, "Move JWT signing secrets to a secret manager; rotate immediately if exposed."},
		{"oauth_client_secret", regexp.MustCompile(`(?i)\bclient_secret\s*[:=]\s*["']?[A-Za-z0-9_\-]{16,}`), findings.SeverityCritical, "Move OAuth client secrets to a secret manager; rotate immediately if exposed."},
		{"device_imei", regexp.MustCompile(`(?i)\bimei\s*[:=]\s*\d{15}\b`), findings.SeverityMedium, "Device IMEIs can be used to re-identify a user; avoid hardcoding."},
		{"mac_address", regexp.MustCompile(`\b(?:[0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}\b`), findings.SeverityLow, "MAC addresses can be used to track a device; avoid hardcoding in source."},
	}
}

func schemaPatterns() []piiSubPattern {
	return []piiSubPattern{
		{"column_ssn", regexp.MustCompile(`(?i)\bcolumn\s+ssn\b`), findings.SeverityMedium, "Ensure this SSN column is encrypted at rest and access-controlled."},
		{"column_dob", regexp.MustCompile(`(?i)\b(?:date_of_birth|dob)\b`), findings.SeverityLow, "Date of birth is personal data; ensure appropriate access controls."},
		{"column_password_plaintext", regexp.MustCompile(`(?i)\bpassword_plain(?:text)?\b`), findings.SeverityCritical, "Never store plaintext passwords; hash with a modern KDF (argon2/bcrypt)."},
		{"column_social_security", regexp.MustCompile(`(?i)\bcolumn\s+social_security\b`), findings.SeverityMedium, "Ensure this SSN column is encrypted at rest and access-controlled."},
		{"column_biometric", regexp.MustCompile(`(?i)\bcolumn\s+biometric\b`), findings.SeverityHigh, "Biometric columns are a special category under GDPR Art. 9."},
		{"column_health", regexp.MustCompile(`(?i)\bcolumn\s+(?:diagnosis|health_record)\b`), findings.SeverityHigh, "Health-record columns are protected under HIPAA."},
	}
}

// ComprehensivePIIRule is R2: fifty-plus sub-patterns across national
// identifiers, payment, travel documents, contact, location, medical,
// biometric, credential, and DB-schema categories.
type ComprehensivePIIRule struct{}

func NewComprehensivePIIRule() *ComprehensivePIIRule { return &ComprehensivePIIRule{} }

func (ComprehensivePIIRule) ID() string                  { return "R2" }
func (ComprehensivePIIRule) Description() string         { return "Comprehensive PII literal detection" }
func (ComprehensivePIIRule) Category() findings.Category { return findings.CategoryPII }

func (r ComprehensivePIIRule) Evaluate(_ context.Context, content, _ string) ([]rules.Violation, error) {
	lines := splitLines(content)
	var out []rules.Violation
	for patternIdx, sp := range piiCatalog {
		for i, line := range lines {
			if !sp.re.MatchString(line) {
				continue
			}
			out = append(out, rules.Violation{
				Line:         i + 1,
				Subtype:      sp.subtype,
				Match:        fmt.Sprintf("%s: %s", sp.subtype, line),
				Category:     findings.CategoryPII,
				Severity:     sp.severity,
				Description:  fmt.Sprintf("Potential %s found in source", sp.subtype),
				FixHint:      sp.fixHint,
				PatternIndex: patternIdx,
			})
		}
	}
	return out, nil
}
