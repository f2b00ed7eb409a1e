package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentdispatch/core"
	"github.com/hupe1980/agentdispatch/model"
)

func TestExecuteJob(t *testing.T) {
	adapter := NewAdapter("falcon", func(_ context.Context, job *core.Job, report core.ProgressFunc) (*core.Result, error) {
		report(50, "halfway")
		return &core.Result{Success: true, Summary: "found " + job.Input.Query}, nil
	}, WithDescription("lead generation"))

	assert.Equal(t, "falcon", adapter.Name())
	assert.Equal(t, "lead generation", adapter.Description())

	var progress int
	result, err := adapter.ExecuteJob(context.Background(),
		&core.Job{Input: core.Input{Query: "leads"}},
		func(p int, _ string) { progress = p })
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "found leads", result.Summary)
	assert.Equal(t, 50, progress)
}

func TestExecuteJobWithoutFunc(t *testing.T) {
	adapter := NewAdapter("falcon", nil)
	_, err := adapter.ExecuteJob(context.Background(), &core.Job{}, nil)
	require.Error(t, err)
}

func TestExecuteJobNilReport(t *testing.T) {
	adapter := NewAdapter("falcon", func(_ context.Context, _ *core.Job, report core.ProgressFunc) (*core.Result, error) {
		report(10, "must not panic")
		return &core.Result{Success: true}, nil
	})
	_, err := adapter.ExecuteJob(context.Background(), &core.Job{}, nil)
	require.NoError(t, err)
}

func TestGenerationWithoutGenerator(t *testing.T) {
	adapter := NewAdapter("falcon", nil)

	_, err := adapter.GenerateAcknowledgment(context.Background(), &core.Job{Type: "find_leads"}, "find leads")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNoGenerator)

	var genErr *core.MessageGenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, core.StageAcknowledgment, genErr.Stage)
	assert.Equal(t, "falcon", genErr.Agent)
}

func TestGenerateAcknowledgment(t *testing.T) {
	var captured model.Request
	gen := model.GeneratorFunc(func(_ context.Context, req model.Request) (string, error) {
		captured = req
		return "On it!", nil
	})
	adapter := NewAdapter("falcon", nil, WithGenerator(gen))

	text, err := adapter.GenerateAcknowledgment(context.Background(), &core.Job{Type: "find_leads"}, "find leads in Berlin")
	require.NoError(t, err)
	assert.Equal(t, "On it!", text)

	// The instruction template is rendered with the agent name bound.
	assert.Contains(t, captured.Instructions, "falcon")
	assert.Contains(t, captured.Prompt, "find leads in Berlin")
	assert.Contains(t, captured.Prompt, "find_leads")
}

func TestGenerateCompletionOutcomes(t *testing.T) {
	var captured model.Request
	gen := model.GeneratorFunc(func(_ context.Context, req model.Request) (string, error) {
		captured = req
		return "Done.", nil
	})
	adapter := NewAdapter("sage", nil, WithGenerator(gen))
	job := &core.Job{Type: "research"}

	_, err := adapter.GenerateCompletion(context.Background(), job, &core.Result{Success: true, Summary: "3 sources reviewed"}, "research X")
	require.NoError(t, err)
	assert.Contains(t, captured.Prompt, "succeeded: 3 sources reviewed")

	_, err = adapter.GenerateCompletion(context.Background(), job, &core.Result{Success: false, Error: "rate limited"}, "research X")
	require.NoError(t, err)
	assert.Contains(t, captured.Prompt, "failed: rate limited")

	_, err = adapter.GenerateCompletion(context.Background(), job, nil, "research X")
	require.NoError(t, err)
	assert.Contains(t, captured.Prompt, "no result was produced")
}

func TestGenerationFailureIsWrapped(t *testing.T) {
	gen := model.GeneratorFunc(func(context.Context, model.Request) (string, error) {
		return "", errors.New("model unavailable")
	})
	adapter := NewAdapter("echo", nil, WithGenerator(gen))

	_, err := adapter.GenerateCompletion(context.Background(), &core.Job{}, &core.Result{Success: true}, "msg")
	require.Error(t, err)

	var genErr *core.MessageGenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, core.StageCompletion, genErr.Stage)
	assert.Contains(t, err.Error(), "model unavailable")
}
