package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corescaffold/cogkernel/internal/config"
	"github.com/corescaffold/cogkernel/internal/store"
)

func writeLibrary(t *testing.T, lib Library) string {
	t.Helper()
	path := t.TempDir() + "/library.json"
	require.NoError(t, store.WriteJSON(path, lib))
	return path
}

func bugfixGraph() Graph {
	return Graph{
		WorkflowID:     "bugfix_workflow",
		TriggerDomains: []string{"bugfix"},
		Nodes: []Node{
			{ID: "start", Type: NodeStart},
			{ID: "reproduce", Type: NodeTask, Instruction: "reproduce the failure"},
			{ID: "escalate", Type: NodeEscalate},
			{ID: "done", Type: NodeExit},
		},
		Edges: []Edge{
			{From: "start", To: "reproduce", Condition: Always},
			{From: "reproduce", To: "done", Condition: OnSuccess},
			{From: "reproduce", To: "reproduce", Condition: OnRetry, MaxRetries: 1},
			{From: "reproduce", To: "escalate", Condition: OnExhaust},
			{From: "escalate", To: "done", Condition: Always},
		},
	}
}

func TestSelectTieBreaksByLibraryOrderAndHonorsWhitelist(t *testing.T) {
	lib := Library{Workflows: []Graph{
		{WorkflowID: "a", TriggerDomains: []string{"bugfix"}},
		{WorkflowID: "b", TriggerDomains: []string{"bugfix"}},
	}}
	cfg := config.DefaultWorkflowConfig()
	cfg.LibraryPath = writeLibrary(t, lib)
	e, err := NewEngine(cfg, nil)
	require.NoError(t, err)

	res := e.Select("bugfix", nil, nil)
	require.True(t, res.IsOk())
	g, _ := res.Effect()
	assert.Equal(t, "a", g.WorkflowID)

	res = e.Select("bugfix", []string{"b"}, nil)
	g, _ = res.Effect()
	assert.Equal(t, "b", g.WorkflowID)
}

func TestSelectResumesContinuationWorkflow(t *testing.T) {
	lib := Library{Workflows: []Graph{bugfixGraph()}}
	cfg := config.DefaultWorkflowConfig()
	cfg.LibraryPath = writeLibrary(t, lib)
	e, err := NewEngine(cfg, nil)
	require.NoError(t, err)

	res := e.Select("bugfix", nil, &TraversalState{WorkflowID: "bugfix_workflow"})
	require.True(t, res.IsOk())
	g, _ := res.Effect()
	assert.Equal(t, "bugfix_workflow", g.WorkflowID)
}

func TestSelectSkipsWhenLibraryMissing(t *testing.T) {
	cfg := config.DefaultWorkflowConfig()
	cfg.LibraryPath = t.TempDir() + "/missing.json"
	e, err := NewEngine(cfg, nil)
	require.NoError(t, err)

	res := e.Select("bugfix", nil, nil)
	assert.True(t, res.IsPassthrough())
}

func TestStartChainsThroughToFirstTaskNode(t *testing.T) {
	g := bugfixGraph()
	cfg := config.DefaultWorkflowConfig()
	cfg.LibraryPath = writeLibrary(t, Library{Workflows: []Graph{g}})
	e, err := NewEngine(cfg, nil)
	require.NoError(t, err)

	res := e.Start(context.Background(), 1, g)
	require.True(t, res.IsOk())
	step, _ := res.Effect()
	assert.Equal(t, "reproduce", step.State.CurrentNode)
	assert.Equal(t, "reproduce the failure", step.Instruction)
	assert.False(t, step.Exited)
}

func TestResumeRetriesThenExhaustsToEscalateThenExits(t *testing.T) {
	g := bugfixGraph()
	cfg := config.DefaultWorkflowConfig()
	cfg.LibraryPath = writeLibrary(t, Library{Workflows: []Graph{g}})
	e, err := NewEngine(cfg, nil)
	require.NoError(t, err)

	startRes := e.Start(context.Background(), 1, g)
	step, _ := startRes.Effect()
	state := step.State

	// first failure: retries (max_retries=1)
	res := e.Resume(context.Background(), 2, g, state, TurnSignal{Verified: false})
	step, _ = res.Effect()
	assert.Equal(t, "reproduce", step.State.CurrentNode)
	assert.Equal(t, 1, state.RetryCountByNode["reproduce"])

	// second failure: retry exhausted, exhaust edge to escalate, chains to done
	res = e.Resume(context.Background(), 3, g, state, TurnSignal{Verified: false})
	require.True(t, res.IsOk())
	step, _ = res.Effect()
	assert.True(t, step.Exited)
	assert.True(t, step.Escalate, "passing through an escalate node must surface Escalate even though it chains on to exit rather than dead-ending")
	assert.Equal(t, "done", step.State.CurrentNode)
}

func TestResumeOnSuccessExitsDirectly(t *testing.T) {
	g := bugfixGraph()
	cfg := config.DefaultWorkflowConfig()
	cfg.LibraryPath = writeLibrary(t, Library{Workflows: []Graph{g}})
	e, err := NewEngine(cfg, nil)
	require.NoError(t, err)

	startRes := e.Start(context.Background(), 1, g)
	step, _ := startRes.Effect()

	res := e.Resume(context.Background(), 2, g, step.State, TurnSignal{Verified: true})
	require.True(t, res.IsOk())
	step, _ = res.Effect()
	assert.True(t, step.Exited)
}

func TestResumeWithNilStateStartsFresh(t *testing.T) {
	g := bugfixGraph()
	cfg := config.DefaultWorkflowConfig()
	cfg.LibraryPath = writeLibrary(t, Library{Workflows: []Graph{g}})
	e, err := NewEngine(cfg, nil)
	require.NoError(t, err)

	res := e.Resume(context.Background(), 1, g, nil, TurnSignal{})
	require.True(t, res.IsOk())
	step, _ := res.Effect()
	assert.Equal(t, "reproduce", step.State.CurrentNode)
}

func TestResumeCanceledMarksEventWithoutAdvancing(t *testing.T) {
	g := bugfixGraph()
	cfg := config.DefaultWorkflowConfig()
	cfg.LibraryPath = writeLibrary(t, Library{Workflows: []Graph{g}})
	e, err := NewEngine(cfg, nil)
	require.NoError(t, err)

	startRes := e.Start(context.Background(), 1, g)
	step, _ := startRes.Effect()

	res := e.Resume(context.Background(), 2, g, step.State, TurnSignal{Canceled: true})
	require.True(t, res.IsOk())
	step2, _ := res.Effect()
	assert.Equal(t, "reproduce", step2.State.CurrentNode)
	assert.Equal(t, "canceled", step2.State.EventLog[len(step2.State.EventLog)-1].Kind)
}
