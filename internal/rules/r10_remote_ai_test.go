package rules

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privoscope/privoscope/internal/domain/findings"
)

type fakeAIClient struct {
	text string
	ok   bool
}

func (f fakeAIClient) Analyze(_ context.Context, _, _ string) (string, bool) {
	return f.text, f.ok
}

// chunkCountingClient records how many times Analyze was called and the
// length, in lines, of each chunk it was handed.
type chunkCountingClient struct {
	calls      int
	chunkLines []int
}

func (c *chunkCountingClient) Analyze(_ context.Context, _, extraContext string) (string, bool) {
	c.calls++
	c.chunkLines = append(c.chunkLines, len(strings.Split(extraContext, "\n")))
	return `[{"line": 1, "subtype": "contextual_pii", "severity": "HIGH"}]`, true
}

func TestRemoteAIRule_NilClientIsNoop(t *testing.T) {
	r := NewRemoteAIRule(nil)
	violations, err := r.Evaluate(context.Background(), "anything", "a.go")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestRemoteAIRule_AdapterFailureDegradesToEmpty(t *testing.T) {
	r := NewRemoteAIRule(fakeAIClient{ok: false})
	violations, err := r.Evaluate(context.Background(), "anything", "a.go")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestRemoteAIRule_MalformedJSONDegradesToEmpty(t *testing.T) {
	r := NewRemoteAIRule(fakeAIClient{text: "not json", ok: true})
	violations, err := r.Evaluate(context.Background(), "anything", "a.go")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestRemoteAIRule_ParsesRecordsAndDefaultsSeverity(t *testing.T) {
	client := fakeAIClient{
		ok: true,
		text: `[
			{"line": 3, "subtype": "contextual_pii", "description": "x", "fix": "y", "law": "GDPR Art. 9", "severity": "CRITICAL"},
			{"line": 5, "subtype": "unclear", "description": "z", "severity": "BOGUS"}
		]`,
	}
	r := NewRemoteAIRule(client)
	violations, err := r.Evaluate(context.Background(), "anything", "a.go")
	require.NoError(t, err)
	require.Len(t, violations, 2)
	assert.Equal(t, findings.SeverityCritical, violations[0].Severity)
	assert.Equal(t, "GDPR Art. 9", violations[0].Law)
	assert.Equal(t, findings.SeverityLow, violations[1].Severity, "unrecognized severity falls back to LOW")
}

func TestRemoteAIRule_SkipsZeroOrNegativeLine(t *testing.T) {
	client := fakeAIClient{ok: true, text: `[{"line": 0, "subtype": "x"}]`}
	r := NewRemoteAIRule(client)
	violations, err := r.Evaluate(context.Background(), "anything", "a.go")
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestRemoteAIRule_ChunksContentByFiftyLinesAndRebasesLineNumbers(t *testing.T) {
	lines := make([]string, 120)
	for i := range lines {
		lines[i] = "x = 1"
	}
	content := strings.Join(lines, "\n")

	client := &chunkCountingClient{}
	r := NewRemoteAIRule(client)
	violations, err := r.Evaluate(context.Background(), content, "a.py")
	require.NoError(t, err)

	require.Equal(t, 3, client.calls, "120 lines at 50 lines/chunk must yield 3 calls")
	assert.Equal(t, []int{50, 50, 20}, client.chunkLines)

	require.Len(t, violations, 3)
	assert.Equal(t, 1, violations[0].Line)
	assert.Equal(t, 51, violations[1].Line)
	assert.Equal(t, 101, violations[2].Line)
}

func TestRemoteAIRule_CustomChunkSize(t *testing.T) {
	lines := make([]string, 30)
	for i := range lines {
		lines[i] = "y = 2"
	}
	content := strings.Join(lines, "\n")

	client := &chunkCountingClient{}
	r := NewRemoteAIRuleWithChunkSize(client, 10)
	_, err := r.Evaluate(context.Background(), content, "a.py")
	require.NoError(t, err)
	assert.Equal(t, 3, client.calls)
	assert.Equal(t, []int{10, 10, 10}, client.chunkLines)
}
