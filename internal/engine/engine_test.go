package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privoscope/privoscope/internal/domain/findings"
	domainrules "github.com/privoscope/privoscope/internal/domain/rules"
	"github.com/privoscope/privoscope/internal/scanners"
)

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestEngine_Run_FindsAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "app.js", "const admin = \"root@example.com\";\n")
	writeFile(t, dir, "node_modules/vendor/lib.js", "const admin = \"ignored@example.com\";\n")

	e := New(scanners.New())
	result, err := e.Run(context.Background(), dir, findings.DefaultOptions(), nil)
	require.NoError(t, err)

	require.Len(t, result.Findings, 1)
	assert.Equal(t, "R1", result.Findings[0].RuleID)
	assert.Contains(t, result.Findings[0].FilePath, "app.js")
}

// Property 2 (spec §8): the same input directory, run repeatedly, always
// produces findings in the same deterministic (file_path, line, rule_id)
// order, regardless of how the bounded worker pool interleaves files.
func TestEngine_Run_DeterministicOrdering(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 12; i++ {
		writeFile(t, dir, filepath.Join("pkg", string(rune('a'+i))+".py"),
			"user_data = capture(req)\nemail_literal = \"user@example.com\"\n")
	}

	e := New(scanners.New(), WithWorkers(8))
	var firstEnvelopes []string
	for run := 0; run < 3; run++ {
		result, err := e.Run(context.Background(), dir, findings.DefaultOptions(), nil)
		require.NoError(t, err)
		if run == 0 {
			firstEnvelopes = result.Envelopes
			assert.NotEmpty(t, firstEnvelopes)
			continue
		}
		assert.Equal(t, firstEnvelopes, result.Envelopes, "ordering must be stable across repeated runs")
	}
}

func TestEngine_Run_SeverityFloorFiltersFindings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.py", "tls = false\nemail = \"a@b.com\"\n")

	opts := findings.DefaultOptions()
	opts.SeverityFloor = findings.SeverityCritical
	e := New(scanners.New())
	result, err := e.Run(context.Background(), dir, opts, nil)
	require.NoError(t, err)

	for _, f := range result.Findings {
		assert.Equal(t, findings.SeverityCritical, f.Severity)
	}
}

func TestEngine_Run_RuleFilterRestrictsCatalog(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.py", "tls = false\nemail = \"a@b.com\"\n")

	opts := findings.DefaultOptions()
	opts.RuleFilterAll = false
	opts.RuleFilter = map[string]bool{"R1": true}
	e := New(scanners.New())
	result, err := e.Run(context.Background(), dir, opts, nil)
	require.NoError(t, err)

	for _, f := range result.Findings {
		assert.Equal(t, "R1", f.RuleID)
	}
}

func TestEngine_Run_EmptyDirectoryYieldsZeroStats(t *testing.T) {
	dir := t.TempDir()
	e := New(scanners.New())
	result, err := e.Run(context.Background(), dir, findings.DefaultOptions(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Findings)
	assert.NotEmpty(t, result.RuleStats)
	for _, stat := range result.RuleStats {
		assert.Zero(t, stat.Count)
	}
}

func TestEngine_GetRuleStats_ListsFullCatalog(t *testing.T) {
	e := New(scanners.New())
	stats := e.GetRuleStats()
	require.Len(t, stats, 10)
	assert.Equal(t, "R1", stats[0].RuleID)
}

// safeEvaluate must recover a panicking rule into a per-(file,rule)
// RULE_INTERNAL FileError rather than aborting the whole run (spec §7).
type panickingRule struct{}

func (panickingRule) ID() string                  { return "RP" }
func (panickingRule) Description() string         { return "panics" }
func (panickingRule) Category() findings.Category { return findings.CategorySecurity }
func (panickingRule) Evaluate(_ context.Context, _, _ string) ([]domainrules.Violation, error) {
	panic("boom")
}

func TestSafeEvaluate_RecoversPanicIntoError(t *testing.T) {
	_, err := safeEvaluate(context.Background(), panickingRule{}, "content", "path.go")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RULE_INTERNAL")
}
