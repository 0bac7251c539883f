// Package agents implements the Agent Stage Framework (C6) and the five
// concrete Stage Agents (C7) built on top of it.
package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	domainai "github.com/privoscope/privoscope/internal/domain/ai"
	"github.com/privoscope/privoscope/internal/domain/findings"
	domainstore "github.com/privoscope/privoscope/internal/domain/store"
	"github.com/privoscope/privoscope/internal/clock"
	"github.com/privoscope/privoscope/internal/errcode"
	"github.com/privoscope/privoscope/internal/middleware"
)

// Base composes the common machinery every stage shares: validate ->
// compute-or-fallback -> persist -> emit-metrics -> log (spec §4.6). It is
// composition, not inheritance: a concrete stage builds one Base with its
// own Validate/Compute closures and embeds it to satisfy stageport.Stage.
type Base[I, O any] struct {
	StageIDValue  string
	CorrelationID string
	Store         domainstore.ResultStore
	AIClient      domainai.Client
	AIEnabled     bool
	Clock         clock.Clock
	Logger        hclog.Logger

	// Validate checks input against the stage's declared schema. If ok is
	// false, fallbackOutput is used as-is and errs MUST contain the schema
	// violation (spec §4.6: "minimal pass-through of the input").
	Validate func(input I) (fallbackOutput O, errs []findings.StageError, ok bool)

	// Compute produces the stage's real output. It must never panic; any
	// recoverable condition belongs in the returned errs slice so the
	// stage stays fail-open (spec §3 Invariant 5).
	Compute func(ctx context.Context, input I, call AICaller) (output O, ai findings.AIUsage, errs []findings.StageError)
}

// AICaller is the ai_call(prompt) -> text | none hook every stage gets
// from the framework (spec §4.6), pre-bound to the run's AIEnabled flag.
type AICaller func(ctx context.Context, prompt, context string) (text string, ok bool)

// StageID implements stageport.Stage.
func (b *Base[I, O]) StageID() string { return b.StageIDValue }

func (b *Base[I, O]) logger() hclog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return hclog.NewNullLogger()
}

func (b *Base[I, O]) now() time.Time {
	if b.Clock != nil {
		return b.Clock.Now()
	}
	return time.Now()
}

// aiCaller binds the stage's AIClient/AIEnabled into the ai_call hook the
// stage's Compute closure receives.
func (b *Base[I, O]) aiCaller() AICaller {
	return func(ctx context.Context, prompt, context string) (string, bool) {
		if !b.AIEnabled || b.AIClient == nil {
			return "", false
		}
		return b.AIClient.Analyze(ctx, prompt, context)
	}
}

// Process implements stageport.Stage[I, O]: input validation, compute (or
// fallback), best-effort persistence, metrics, and structured logging,
// always returning a StageResult even when every sub-step degrades.
func (b *Base[I, O]) Process(ctx context.Context, input I) findings.StageResult[O] {
	start := b.now()
	log := b.logger().With("stage_id", b.StageIDValue, "correlation_id", b.CorrelationID)
	inputSize := sizeOf(input)
	log.Info("stage entry", "input_size", inputSize)

	result := findings.StageResult[O]{
		CorrelationID: b.CorrelationID,
		StageID:       b.StageIDValue,
		InputSummary:  summarize(input),
	}

	if b.Validate != nil {
		if fallback, errs, ok := b.Validate(input); !ok {
			result.Output = fallback
			result.Errors = append(result.Errors, errs...)
			result.ProducedAt = b.now()
			b.finish(ctx, &result, start, inputSize, log)
			return result
		}
	}

	output, ai, errs := b.Compute(ctx, input, b.aiCaller())
	result.Output = output
	result.AI = ai
	result.Errors = append(result.Errors, errs...)
	result.ProducedAt = b.now()
	b.finish(ctx, &result, start, inputSize, log)
	return result
}

func (b *Base[I, O]) finish(ctx context.Context, result *findings.StageResult[O], start time.Time, inputSize int, log hclog.Logger) {
	duration := b.now().Sub(start)
	outputSize := sizeOf(result.Output)
	middleware.RecordStageIO(inputSize, outputSize)

	if b.Store != nil {
		payload, err := json.Marshal(result)
		if err != nil {
			result.Errors = append(result.Errors, findings.StageError{
				Code:    errcode.IOTransient,
				Message: fmt.Sprintf("failed to marshal stage result: %v", err),
			})
		} else if err := b.Store.PutStageResult(ctx, result.CorrelationID, result.StageID, payload); err != nil {
			result.Errors = append(result.Errors, findings.StageError{
				Code:    errcode.IOTransient,
				Message: fmt.Sprintf("failed to persist stage result: %v", err),
			})
		}
	}

	log.Info("stage exit",
		"duration_ms", duration.Milliseconds(),
		"ai_used", result.AI.Used,
		"ai_confidence", result.AI.Confidence,
		"error_count", len(result.Errors),
		"input_size", inputSize,
		"output_size", outputSize,
	)
}

// sizeOf is the marshaled byte size of v, used for the per-stage
// input_size/output_size metric (spec §4.6).
func sizeOf(v any) int {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return len(b)
}

func summarize(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%T", v)
	}
	if len(b) > 256 {
		return string(b[:256]) + "…"
	}
	return string(b)
}
