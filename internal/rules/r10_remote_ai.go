package rules

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/privoscope/privoscope/internal/domain/ai"
	"github.com/privoscope/privoscope/internal/domain/findings"
	"github.com/privoscope/privoscope/internal/domain/rules"
)

// defaultChunkLines is the recommended default chunk size for the caller-side
// chunking the adapter itself never performs (spec §4.4 "Chunking").
const defaultChunkLines = 50

// remoteAIRecord is the shape the adapter's response is expected to decode
// into. A response that fails to parse is treated the same as ok=false:
// this rule never fails the catalog, it only ever contributes less.
type remoteAIRecord struct {
	Line        int    `json:"line"`
	Subtype     string `json:"subtype"`
	Description string `json:"description"`
	Fix         string `json:"fix"`
	Law         string `json:"law"`
	Severity    string `json:"severity"`
}

// RemoteAIRule is R10: delegates to the AI Collaborator Adapter for
// patterns too contextual for static regexes. Per spec §4.2, any adapter
// failure degrades to an empty result — the other nine rules must still
// run and produce output.
type RemoteAIRule struct {
	client     ai.Client
	chunkLines int
}

func NewRemoteAIRule(client ai.Client) *RemoteAIRule {
	return &RemoteAIRule{client: client, chunkLines: defaultChunkLines}
}

// NewRemoteAIRuleWithChunkSize overrides the default 50-line chunk size,
// for deployments that need a different call/cost tradeoff.
func NewRemoteAIRuleWithChunkSize(client ai.Client, chunkLines int) *RemoteAIRule {
	if chunkLines <= 0 {
		chunkLines = defaultChunkLines
	}
	return &RemoteAIRule{client: client, chunkLines: chunkLines}
}

func (RemoteAIRule) ID() string                  { return "R10" }
func (RemoteAIRule) Description() string         { return "AI-assisted contextual privacy pattern detection" }
func (RemoteAIRule) Category() findings.Category { return findings.CategoryAdvanced }

func (r RemoteAIRule) Evaluate(ctx context.Context, content, path string) ([]rules.Violation, error) {
	if r.client == nil {
		return nil, nil
	}
	chunkLines := r.chunkLines
	if chunkLines <= 0 {
		chunkLines = defaultChunkLines
	}

	var out []rules.Violation
	for _, chunk := range splitIntoChunks(content, chunkLines) {
		prompt := buildRemoteAIPrompt(path)
		text, ok := r.client.Analyze(ctx, prompt, chunk.text)
		if !ok {
			continue
		}

		var records []remoteAIRecord
		if err := json.Unmarshal([]byte(text), &records); err != nil {
			continue
		}

		for _, rec := range records {
			if rec.Line <= 0 {
				continue
			}
			sev := findings.Severity(rec.Severity)
			if sev.Weight() == 0 {
				sev = findings.SeverityLow
			}
			out = append(out, rules.Violation{
				Line:        chunk.startLine + rec.Line - 1,
				Subtype:     rec.Subtype,
				Match:       fmt.Sprintf("%s: ai-identified", rec.Subtype),
				Category:    findings.CategoryAdvanced,
				Severity:    sev,
				Description: rec.Description,
				FixHint:     rec.Fix,
				Law:         rec.Law,
			})
		}
	}
	return out, nil
}

// aiChunk is one line-bounded slice of a file's content, with the 1-based
// line number its first line corresponds to in the original file.
type aiChunk struct {
	text      string
	startLine int
}

// splitIntoChunks breaks content into chunks of at most chunkLines lines
// each (spec §4.4 "Chunking" — the adapter itself does no chunking, so the
// caller must), preserving each chunk's offset for re-basing reported line
// numbers back onto the original file.
func splitIntoChunks(content string, chunkLines int) []aiChunk {
	lines := strings.Split(content, "\n")
	var chunks []aiChunk
	for start := 0; start < len(lines); start += chunkLines {
		end := start + chunkLines
		if end > len(lines) {
			end = len(lines)
		}
		chunks = append(chunks, aiChunk{
			text:      strings.Join(lines[start:end], "\n"),
			startLine: start + 1,
		})
	}
	if len(chunks) == 0 {
		chunks = append(chunks, aiChunk{text: content, startLine: 1})
	}
	return chunks
}

func buildRemoteAIPrompt(path string) string {
	return fmt.Sprintf(
		"Analyze the source file %q for privacy hazards not covered by deterministic "+
			"pattern rules. Respond with a JSON array of objects, each with fields "+
			"line, subtype, description, fix, law, severity (one of CRITICAL, HIGH, "+
			"MEDIUM, LOW). Respond with an empty array if nothing is found.", path)
}
