package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privoscope/privoscope/internal/domain/findings"
)

func TestCatalog_OrderAndIDsAreStable(t *testing.T) {
	catalog := Catalog(nil)
	require.Len(t, catalog, 10)

	wantIDs := []string{"R1", "R2", "R3", "R4", "R5", "R6", "R7", "R8", "R9", "R10"}
	for i, want := range wantIDs {
		assert.Equal(t, want, catalog[i].ID(), "catalog order is part of the ordering contract (spec §4.3)")
	}
}

func TestEmailRule(t *testing.T) {
	r := NewEmailRule()
	violations, err := r.Evaluate(context.Background(), "const contact = \"jane.doe@example.com\";\n", "a.js")
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, 1, violations[0].Line)
	assert.Equal(t, findings.SeverityMedium, violations[0].Severity)
	assert.Equal(t, findings.CategoryPII, violations[0].Category)
}

func TestEmailRule_NoMatch(t *testing.T) {
	r := NewEmailRule()
	violations, err := r.Evaluate(context.Background(), "const x = 1;\n", "a.js")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

// Consent suppression window: a marker on the violating line or the line
// directly above suppresses the finding; any other placement does not
// (spec §4.2/§9, the E2 end-to-end scenario).
func TestConsentRule_SuppressionWindow(t *testing.T) {
	cases := []struct {
		name      string
		content   string
		wantCount int
	}{
		{
			name:      "marker on same line suppresses",
			content:   "user_data = capture(req) // @consent_required\n",
			wantCount: 0,
		},
		{
			name:      "marker on line directly above suppresses",
			content:   "// @privacy_consent\nuser_data = capture(req)\n",
			wantCount: 0,
		},
		{
			name:      "marker two lines above does not suppress",
			content:   "// @consent_required\nx = 1\nuser_data = capture(req)\n",
			wantCount: 1,
		},
		{
			name:      "no marker at all",
			content:   "user_data = capture(req)\n",
			wantCount: 1,
		},
	}
	r := NewConsentRule()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			violations, err := r.Evaluate(context.Background(), tc.content, "a.py")
			require.NoError(t, err)
			assert.Len(t, violations, tc.wantCount)
		})
	}
}

func TestConsentRule_ForcedConsentIsCritical(t *testing.T) {
	r := NewConsentRule()
	violations, err := r.Evaluate(context.Background(), "forced_consent = true\n", "a.py")
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, findings.SeverityCritical, violations[0].Severity)
	assert.Equal(t, "forced_consent", violations[0].Subtype)
}

func TestEncryptionRule_TLSDisabledIsCritical(t *testing.T) {
	r := NewEncryptionRule()
	violations, err := r.Evaluate(context.Background(), "tls = false\n", "config.go")
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, findings.SeverityCritical, violations[0].Severity)
}

func TestEncryptionRule_SuppressedByEncryptMarker(t *testing.T) {
	r := NewEncryptionRule()
	content := "// @encrypt\nCREATE TABLE users (ssn VARCHAR(11));\n"
	violations, err := r.Evaluate(context.Background(), content, "schema.sql")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestEncryptionRule_PIIEndpointRateLimitedInSameFileSuppresses(t *testing.T) {
	r := NewEncryptionRule()
	withLimit := "apply_rate_limit(endpoint)\n@GetMapping(\"/profile\")\n"
	violations, err := r.Evaluate(context.Background(), withLimit, "controller.java")
	require.NoError(t, err)
	assert.Empty(t, violations)

	withoutLimit := "@GetMapping(\"/profile\")\n"
	violations, err = r.Evaluate(context.Background(), withoutLimit, "controller.java")
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "unrated_pii_endpoint", violations[0].Subtype)
}

func TestDevGuidanceRule_ImpactClassification(t *testing.T) {
	r := NewDevGuidanceRule()
	violations, err := r.Evaluate(context.Background(), "save(user.ssn)\n", "a.rb")
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "HIGH", violations[0].Impact)
}

func TestSplitLines_PreservesOneBasedIndexing(t *testing.T) {
	lines := splitLines("a\nb\nc")
	require.Len(t, lines, 3)
	assert.Equal(t, "a", lines[0])
	assert.Equal(t, "c", lines[2])
}

func TestHasMarkerOnLineOrAbove(t *testing.T) {
	lines := splitLines("marker here @encrypt\nviolation line\nunrelated\n")
	ok, marker := hasMarkerOnLineOrAbove(lines, 2, encryptionMarkers)
	assert.True(t, ok)
	assert.Equal(t, MarkerEncrypt, marker)

	ok, _ = hasMarkerOnLineOrAbove(lines, 3, encryptionMarkers)
	assert.False(t, ok)
}
