package postaction

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptforge/backend/internal/models"
)

type captureRecorder struct {
	runs []models.ActionRun
}

func (c *captureRecorder) RecordRun(_ context.Context, run models.ActionRun) {
	c.runs = append(c.runs, run)
}

type stubExecutor struct {
	name string
	res  *Result
	err  error
	fn   func(ctx context.Context, in Input) (*Result, error)
}

func (s *stubExecutor) Name() string { return s.name }

func (s *stubExecutor) Execute(ctx context.Context, in Input) (*Result, error) {
	if s.fn != nil {
		return s.fn(ctx, in)
	}
	return s.res, s.err
}

func TestRegistryBuiltins(t *testing.T) {
	r := NewRegistry(nil)
	assert.ElementsMatch(t, []string{
		ActionChildrenText,
		ActionChildrenJSON,
		ActionChildrenSections,
		ActionCreateTemplate,
	}, r.Actions())
}

func TestRegistryUnknownAction(t *testing.T) {
	st := defaultsStore(t)
	rec := &captureRecorder{}
	r := NewRegistry(rec)

	res := r.Execute(context.Background(), "definitely_not_registered", testInput(t, st, `{}`, Config{}))
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, "Unknown action type: definitely_not_registered", res.Error)

	require.Len(t, rec.runs, 1)
	assert.False(t, rec.runs[0].Success)
}

func TestRegistryContainsPanics(t *testing.T) {
	st := defaultsStore(t)
	r := NewRegistry(nil)
	r.Register(&stubExecutor{name: "explosive", fn: func(context.Context, Input) (*Result, error) {
		panic("boom")
	}})

	var res *Result
	require.NotPanics(t, func() {
		res = r.Execute(context.Background(), "explosive", testInput(t, st, `{}`, Config{}))
	})
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "internal error")
	assert.Contains(t, res.Error, "boom")
}

func TestRegistryRuntimeRegistration(t *testing.T) {
	st := defaultsStore(t)
	r := NewRegistry(nil)
	r.Register(&stubExecutor{name: "custom_action", res: &Result{Message: "done"}})

	res := r.Execute(context.Background(), "custom_action", testInput(t, st, `{}`, Config{}))
	assert.True(t, res.Success)
	assert.Equal(t, "custom_action", res.Action)
	assert.Equal(t, "done", res.Message)
}

func TestRegistryMergesPartialResultOnError(t *testing.T) {
	st := defaultsStore(t)
	partial := &Result{
		CreatedCount: 2,
		Children:     []models.PromptNode{{PromptName: "one"}, {PromptName: "two"}},
	}
	r := NewRegistry(nil)
	r.Register(&stubExecutor{name: "flaky", res: partial, err: errors.New("insert child 3 of 4: store unreachable")})

	res := r.Execute(context.Background(), "flaky", testInput(t, st, `{}`, Config{}))
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "store unreachable")
	assert.Equal(t, 2, res.CreatedCount)
	assert.Len(t, res.Children, 2)
}

func TestRegistryRecordsSuccessfulRun(t *testing.T) {
	st := defaultsStore(t)
	rec := &captureRecorder{}
	r := NewRegistry(rec)

	in := testInput(t, st, `{"list":["a","b"]}`, Config{"json_path": "list"})
	res := r.Execute(context.Background(), ActionChildrenJSON, in)
	require.True(t, res.Success)
	assert.Equal(t, 2, res.CreatedCount)

	require.Len(t, rec.runs, 1)
	run := rec.runs[0]
	assert.True(t, run.Success)
	assert.Equal(t, ActionChildrenJSON, run.ActionID)
	assert.Equal(t, 2, run.CreatedCount)
	assert.Equal(t, in.Prompt.RowID, run.NodeRowID)
}

func TestRegistryEndToEndJSONEnvelope(t *testing.T) {
	st := defaultsStore(t)
	r := NewRegistry(nil)

	in := testInput(t, st, `{"data":"oops"}`, Config{"json_path": "data"})
	res := r.Execute(context.Background(), ActionChildrenJSON, in)

	raw, err := json.Marshal(res)
	require.NoError(t, err)

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(raw, &envelope))
	assert.Equal(t, false, envelope["success"])
	assert.Contains(t, envelope["error"], "data")
}
