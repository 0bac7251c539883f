package agents

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/privoscope/privoscope/internal/domain/findings"
	domainstore "github.com/privoscope/privoscope/internal/domain/store"
	"github.com/privoscope/privoscope/internal/errcode"
	"github.com/privoscope/privoscope/internal/middleware"
)

var _ domainstore.ResultStore = (*memStore)(nil)

type fakeAI struct {
	text string
	ok   bool
}

func (f fakeAI) Analyze(_ context.Context, _, _ string) (string, bool) { return f.text, f.ok }

func TestBase_Process_ValidateFailureShortCircuitsCompute(t *testing.T) {
	computeCalled := false
	b := Base[string, string]{
		StageIDValue:  "S_TEST",
		CorrelationID: "corr-1",
		Clock:         fixedClock{t: time.Unix(0, 0)},
		Validate: func(in string) (string, []findings.StageError, bool) {
			return "fallback", []findings.StageError{{Code: errcode.InputInvalid, Message: "bad input"}}, false
		},
		Compute: func(ctx context.Context, in string, call AICaller) (string, findings.AIUsage, []findings.StageError) {
			computeCalled = true
			return "should not run", findings.AIUsage{}, nil
		},
	}

	result := b.Process(context.Background(), "anything")
	assert.False(t, computeCalled)
	assert.Equal(t, "fallback", result.Output)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, errcode.InputInvalid, result.Errors[0].Code)
}

func TestBase_Process_PersistsViaStore(t *testing.T) {
	store := newMemStore()
	b := Base[string, string]{
		StageIDValue:  "S_TEST",
		CorrelationID: "corr-2",
		Store:         store,
		Clock:         fixedClock{t: time.Unix(100, 0)},
		Compute: func(ctx context.Context, in string, call AICaller) (string, findings.AIUsage, []findings.StageError) {
			return "ok", findings.AIUsage{}, nil
		},
	}

	result := b.Process(context.Background(), "in")
	assert.Equal(t, "ok", result.Output)
	assert.Equal(t, time.Unix(100, 0), result.ProducedAt)

	payload, ok, err := store.GetStageResult(context.Background(), "corr-2", "S_TEST")
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, payload)
}

// Property 9 (spec §8): re-putting identical stage-result content is a
// no-op, so PutStageResult is idempotent on the composite key.
func TestMemStore_PutStageResult_IdempotentOnIdenticalPayload(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()
	require.NoError(t, store.PutStageResult(ctx, "c", "S1", []byte("x")))
	require.NoError(t, store.PutStageResult(ctx, "c", "S1", []byte("x")))
	assert.Equal(t, 1, store.puts)

	require.NoError(t, store.PutStageResult(ctx, "c", "S1", []byte("y")))
	assert.Equal(t, 2, store.puts)
}

func TestBase_AICaller_RespectsAIEnabledFlag(t *testing.T) {
	b := Base[string, string]{
		StageIDValue: "S_TEST",
		AIEnabled:    false,
		AIClient:     fakeAI{text: "result", ok: true},
	}
	text, ok := b.aiCaller()(context.Background(), "prompt", "ctx")
	assert.False(t, ok)
	assert.Empty(t, text)

	b.AIEnabled = true
	text, ok = b.aiCaller()(context.Background(), "prompt", "ctx")
	assert.True(t, ok)
	assert.Equal(t, "result", text)
}

func TestBase_Process_RecordsStageIOMetrics(t *testing.T) {
	before := middleware.GetMetrics()["stage_invocations"].(uint64)

	b := Base[string, string]{
		StageIDValue:  "S_TEST",
		CorrelationID: "corr-3",
		Clock:         fixedClock{t: time.Unix(0, 0)},
		Compute: func(ctx context.Context, in string, call AICaller) (string, findings.AIUsage, []findings.StageError) {
			return "some output", findings.AIUsage{}, nil
		},
	}
	b.Process(context.Background(), "some input")

	after := middleware.GetMetrics()["stage_invocations"].(uint64)
	assert.Equal(t, before+1, after)
}

func TestStageResult_Partial(t *testing.T) {
	r := findings.StageResult[string]{}
	assert.False(t, r.Partial())
	r.Errors = append(r.Errors, findings.StageError{Code: errcode.StagePartial})
	assert.True(t, r.Partial())
}
