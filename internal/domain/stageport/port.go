// Package stageport declares the one-method contract every Agent Stage
// exposes publicly (spec §4.6): process(input) -> StageResult<output>.
package stageport

import (
	"context"

	"github.com/privoscope/privoscope/internal/domain/findings"
)

// Stage is the public contract of one pipeline stage. I is the stage's
// declared input shape, O its output shape.
type Stage[I, O any] interface {
	StageID() string
	Process(ctx context.Context, input I) findings.StageResult[O]
}
