package findings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Invariant 1 (spec §3): finding_id is a pure function of exactly
// (file_path, line, rule_id, match_excerpt) and is stable across repeated
// computation and unaffected by any other field.
func TestComputeFindingID_StableAndFieldScoped(t *testing.T) {
	a := ComputeFindingID("pkg/user.go", 42, "R1", `foo@bar.com`)
	b := ComputeFindingID("pkg/user.go", 42, "R1", `foo@bar.com`)
	assert.Equal(t, a, b, "finding_id must be deterministic for identical inputs")
	assert.Len(t, a, 32)

	c := ComputeFindingID("pkg/user.go", 43, "R1", `foo@bar.com`)
	assert.NotEqual(t, a, c, "line must be part of the identity")

	d := ComputeFindingID("pkg/other.go", 42, "R1", `foo@bar.com`)
	assert.NotEqual(t, a, d, "file_path must be part of the identity")
}

func TestFinding_WithComputedID_IgnoresUnrelatedFields(t *testing.T) {
	base := Finding{FilePath: "a.go", Line: 1, RuleID: "R2", MatchExcerpt: "x"}
	withSeverity := base
	withSeverity.Severity = SeverityCritical
	withSeverity.Description = "different description entirely"

	assert.Equal(t, base.WithComputedID().FindingID, withSeverity.WithComputedID().FindingID)
}

func TestTruncateExcerpt(t *testing.T) {
	short := "short excerpt"
	assert.Equal(t, short, TruncateExcerpt(short))

	long := make([]byte, maxExcerptLen+50)
	for i := range long {
		long[i] = 'a'
	}
	got := TruncateExcerpt(string(long))
	assert.True(t, len(got) > maxExcerptLen, "truncated form still carries the ellipsis byte(s)")
	assert.Equal(t, "…", got[len(got)-len("…"):])
}

func TestSeverityWeightAndRank(t *testing.T) {
	assert.Equal(t, 10, SeverityCritical.Weight())
	assert.Equal(t, 5, SeverityHigh.Weight())
	assert.Equal(t, 2, SeverityMedium.Weight())
	assert.Equal(t, 1, SeverityLow.Weight())
	assert.Equal(t, 0, Severity("UNKNOWN").Weight())

	assert.True(t, SeverityCritical.Rank() > SeverityHigh.Rank())
	assert.True(t, SeverityHigh.Rank() > SeverityMedium.Rank())
	assert.True(t, SeverityMedium.Rank() > SeverityLow.Rank())
}

func TestHighestSeverity(t *testing.T) {
	assert.Equal(t, SeverityCritical, HighestSeverity([]Severity{SeverityLow, SeverityCritical, SeverityMedium}))
	assert.Equal(t, Severity(""), HighestSeverity(nil))
}
