package pipeline

import (
	"context"
	"crypto/sha1"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corescaffold/cogkernel/internal/belief"
	"github.com/corescaffold/cogkernel/internal/config"
	"github.com/corescaffold/cogkernel/internal/maintenance"
	"github.com/corescaffold/cogkernel/internal/memory"
	"github.com/corescaffold/cogkernel/internal/orgkernel"
	"github.com/corescaffold/cogkernel/internal/store"
	"github.com/corescaffold/cogkernel/internal/supervisor"
	"github.com/corescaffold/cogkernel/internal/toolgate"
	"github.com/corescaffold/cogkernel/internal/tools"
	"github.com/corescaffold/cogkernel/internal/workflow"
)

// fakeVectorStore is the in-memory store.VectorStore used across the
// package tests that exercise memory and maintenance, matching the
// pattern memory/retrieval_test.go and maintenance/pass_test.go use.
type fakeVectorStore struct {
	records map[string]store.Record
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{records: make(map[string]store.Record)}
}

func (f *fakeVectorStore) Store(_ context.Context, rec store.Record) error {
	f.records[rec.ID] = rec
	return nil
}

func (f *fakeVectorStore) Search(_ context.Context, query []float32, limit int) ([]store.Match, error) {
	var out []store.Match
	for _, rec := range f.records {
		sim := 0.1
		if len(query) > 0 && len(rec.Embedding) > 0 && query[0] == rec.Embedding[0] {
			sim = 1.0
		}
		out = append(out, store.Match{Record: rec, Similarity: sim})
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeVectorStore) Delete(_ context.Context, id string) error {
	delete(f.records, id)
	return nil
}

func (f *fakeVectorStore) IterateAll(_ context.Context, fn func(store.Record) error) error {
	for _, rec := range f.records {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeVectorStore) Close() error { return nil }

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	sum := sha1.Sum([]byte(text))
	return []float32{float32(sum[0])}, nil
}

func (fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := (fakeEmbedder{}).Embed(context.Background(), t)
		out[i] = v
	}
	return out, nil
}

func (fakeEmbedder) Dimensions() int { return 1 }
func (fakeEmbedder) Name() string    { return "fake" }

func newTestBelief(t *testing.T) *belief.Tracker {
	t.Helper()
	cfg := config.DefaultBeliefConfig()
	cfg.SlotTaxonomyPath = t.TempDir() + "/slot_taxonomy.json"
	tr, err := belief.NewTracker(cfg, 6)
	require.NoError(t, err)
	return tr
}

// newTestOrg writes a one-commander organization whose only role
// answers the "refactor" domain and escalates to PaceAlternate after
// two consecutive edit_file failures, mirroring orgkernel's own
// kernel_test.go fixture. It returns the kernel along with the
// organizations directory it was built from, since CoreContext also
// needs that path to resolve where to write SALUTE reports.
func newTestOrg(t *testing.T) (*orgkernel.Kernel, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, orgkernel.SetActiveOrganization(dir, "demo"))
	require.NoError(t, store.WriteJSON(dir+"/demo.json", orgkernel.Organization{
		OrgID:     "demo",
		Mission:   "ship the refactor",
		Hierarchy: map[string][]string{"specialist-1": {}},
	}))
	require.NoError(t, store.WriteJSON(dir+"/roles/specialist-1.json", orgkernel.Role{
		RoleID:   "specialist-1",
		RoleType: orgkernel.RoleSpecialist,
		Capabilities: orgkernel.Capabilities{
			Domains:   []string{"refactor"},
			Workflows: []string{"refactor_workflow"},
		},
		PacePlan: orgkernel.PacePlan{
			Alternate: orgkernel.PaceTier{Metric: "tool_failures_consecutive", Tool: "edit_file", Operator: ">=", Threshold: 2},
		},
		Doctrine: orgkernel.Doctrine{SALUTEIntervalTurns: 100},
	}))

	cfg := config.DefaultOrgKernelConfig()
	cfg.OrganizationsDir = dir
	return orgkernel.NewKernel(cfg, nil), dir
}

func refactorGraph() workflow.Graph {
	return workflow.Graph{
		WorkflowID:     "refactor_workflow",
		TriggerDomains: []string{"refactor"},
		Nodes: []workflow.Node{
			{ID: "start", Type: workflow.NodeStart},
			{ID: "apply", Type: workflow.NodeTask, Instruction: "apply the refactor"},
			{ID: "done", Type: workflow.NodeExit},
		},
		Edges: []workflow.Edge{
			{From: "start", To: "apply", Condition: workflow.Always},
			{From: "apply", To: "done", Condition: workflow.OnSuccess},
		},
	}
}

func newTestWorkflow(t *testing.T) *workflow.Engine {
	t.Helper()
	cfg := config.DefaultWorkflowConfig()
	cfg.LibraryPath = t.TempDir() + "/library.json"
	require.NoError(t, store.WriteJSON(cfg.LibraryPath, workflow.Library{Workflows: []workflow.Graph{refactorGraph()}}))
	eng, err := workflow.NewEngine(cfg, nil)
	require.NoError(t, err)
	return eng
}

// refactorEscalateGraph sends a failed "apply" verification straight to
// an escalate node (no retry edge), which then exits, mirroring
// workflow's own bugfixGraph escalate fixture but for the "refactor"
// domain this package's newTestOrg role answers.
func refactorEscalateGraph() workflow.Graph {
	return workflow.Graph{
		WorkflowID:     "refactor_escalate_workflow",
		TriggerDomains: []string{"refactor"},
		Nodes: []workflow.Node{
			{ID: "start", Type: workflow.NodeStart},
			{ID: "apply", Type: workflow.NodeTask, Instruction: "apply the refactor"},
			{ID: "escalate", Type: workflow.NodeEscalate},
			{ID: "done", Type: workflow.NodeExit},
		},
		Edges: []workflow.Edge{
			{From: "start", To: "apply", Condition: workflow.Always},
			{From: "apply", To: "done", Condition: workflow.OnSuccess},
			{From: "apply", To: "escalate", Condition: workflow.OnFail},
			{From: "escalate", To: "done", Condition: workflow.Always},
		},
	}
}

func newTestWorkflowWithEscalate(t *testing.T) *workflow.Engine {
	t.Helper()
	cfg := config.DefaultWorkflowConfig()
	cfg.LibraryPath = t.TempDir() + "/library.json"
	require.NoError(t, store.WriteJSON(cfg.LibraryPath, workflow.Library{Workflows: []workflow.Graph{refactorEscalateGraph()}}))
	eng, err := workflow.NewEngine(cfg, nil)
	require.NoError(t, err)
	return eng
}

func newTestToolGate(t *testing.T) *toolgate.Gate {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultToolGateConfig()
	cfg.SchemaPath = dir + "/tool_schemas.json"
	cfg.AdvicePath = dir + "/tool_advice.json"
	require.NoError(t, store.WriteJSON(cfg.SchemaPath, toolgate.SchemaTable{}))
	require.NoError(t, store.WriteJSON(cfg.AdvicePath, toolgate.AdviceTable{}))
	g, err := toolgate.NewGate(cfg)
	require.NoError(t, err)
	return g
}

func newTestRegistry(t *testing.T, execute tools.ExecuteFunc) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	reg.MustRegister(&tools.Tool{
		Name:     "edit_file",
		Category: tools.CategoryCode,
		Execute:  execute,
		Schema:   tools.ToolSchema{},
	})
	return reg
}

func newTestMaintenance(t *testing.T, vectors store.VectorStore, intervalLoops int) *maintenance.Pass {
	t.Helper()
	cfg := config.DefaultMaintenanceConfig()
	cfg.ReportPath = t.TempDir() + "/maintenance_report.json"
	cfg.IntervalLoops = intervalLoops
	return maintenance.NewPass(cfg, vectors, nil, config.OntologyConfig{}, t.TempDir()+"/co_retrieval_log.jsonl")
}

func newTestMemory(t *testing.T, vectors store.VectorStore) *memory.Engine {
	t.Helper()
	cfg := config.DefaultMemoryConfig()
	cfg.CoRetrievalLogPath = t.TempDir() + "/co_retrieval_log.json"
	cfg.MaxInjected = 3
	return memory.NewEngine(cfg, vectors, fakeEmbedder{}, nil, nil)
}

func newTestSupervisor(t *testing.T) *supervisor.Supervisor {
	t.Helper()
	return supervisor.NewSupervisor(config.DefaultSupervisorConfig(), nil)
}

func newTestCoreContext(t *testing.T, execute tools.ExecuteFunc, vectors store.VectorStore, intervalLoops int) *CoreContext {
	t.Helper()
	cfg := config.DefaultConfig()
	org, orgDir := newTestOrg(t)
	cfg.OrgKernel.OrganizationsDir = orgDir
	return NewCoreContext(
		cfg,
		nil,
		newTestBelief(t),
		org,
		newTestWorkflow(t),
		newTestToolGate(t),
		newTestMemory(t, vectors),
		newTestSupervisor(t),
		newTestMaintenance(t, vectors, intervalLoops),
		newTestRegistry(t, execute),
	)
}

func TestBeginReturnsClarifyingQuestionAndSkipsRestOfPipeline(t *testing.T) {
	cc := newTestCoreContext(t, func(context.Context, map[string]any) (string, error) {
		t.Fatal("tool should never be invoked in a clarification turn")
		return "", nil
	}, newFakeVectorStore(), 1000)

	plan := cc.Begin(context.Background(), 1, "refactor the auth module")

	assert.Equal(t, "Which file?", plan.ClarifyingQuestion)
	assert.Empty(t, plan.RoleID)
	assert.Empty(t, plan.WorkflowID)
	assert.Empty(t, plan.PromptText)
}

func TestBeginComposesPromptWithWorkflowInstructionAndMemoryContext(t *testing.T) {
	vectors := newFakeVectorStore()
	require.NoError(t, vectors.Store(context.Background(), store.Record{
		ID: "mem-1", Content: "the auth module lives in agent/auth.py", Embedding: []float32{42},
	}))
	cc := newTestCoreContext(t, func(context.Context, map[string]any) (string, error) {
		return "ok", nil
	}, vectors, 1000)

	cc.Begin(context.Background(), 1, "refactor the auth module")
	plan := cc.Begin(context.Background(), 2, "agent/auth.py")

	assert.Equal(t, "specialist-1", plan.RoleID)
	assert.Equal(t, "refactor_workflow", plan.WorkflowID)
	assert.Contains(t, plan.PromptText, "[WORKFLOW INSTRUCTION]")
	assert.Contains(t, plan.PromptText, "apply the refactor")
	assert.Contains(t, plan.PromptText, "[MEMORY CONTEXT]")
}

func TestRoleChangeClearsCarriedWorkflowTraversal(t *testing.T) {
	cc := newTestCoreContext(t, func(context.Context, map[string]any) (string, error) {
		return "ok", nil
	}, newFakeVectorStore(), 1000)

	cc.Begin(context.Background(), 1, "refactor the auth module")
	cc.Begin(context.Background(), 2, "agent/auth.py")
	_, _, active := cc.ActiveWorkflow()
	require.True(t, active)

	cc.mu.Lock()
	cc.activeRoleID = "some-other-role"
	cc.mu.Unlock()

	cc.Begin(context.Background(), 3, "agent/auth.py")
	_, _, active = cc.ActiveWorkflow()
	assert.False(t, active, "a role change must drop the previously active workflow traversal")
}

func TestExecuteToolBlockedByPreCheckNeverReachesRegistry(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultToolGateConfig()
	cfg.SchemaPath = dir + "/tool_schemas.json"
	cfg.AdvicePath = dir + "/tool_advice.json"
	require.NoError(t, store.WriteJSON(cfg.SchemaPath, toolgate.SchemaTable{
		"edit_file": {Required: []string{"path"}},
	}))
	require.NoError(t, store.WriteJSON(cfg.AdvicePath, toolgate.AdviceTable{}))
	gate, err := toolgate.NewGate(cfg)
	require.NoError(t, err)

	called := false
	registry := newTestRegistry(t, func(context.Context, map[string]any) (string, error) {
		called = true
		return "ok", nil
	})

	cc := NewCoreContext(config.DefaultConfig(), nil, nil, nil, nil, gate, nil, nil, nil, registry)

	_, err = cc.ExecuteTool(context.Background(), 1, "edit_file", map[string]interface{}{})
	require.Error(t, err)
	assert.False(t, called, "a blocked pre-check must not reach the tool registry")
}

func TestExecuteToolTracksConsecutiveFailuresAndResetsOnSuccess(t *testing.T) {
	fail := true
	cc := newTestCoreContext(t, func(context.Context, map[string]any) (string, error) {
		if fail {
			return "", assert.AnError
		}
		return "ok", nil
	}, newFakeVectorStore(), 1000)

	_, err := cc.ExecuteTool(context.Background(), 1, "edit_file", map[string]interface{}{})
	require.Error(t, err)
	_, err = cc.ExecuteTool(context.Background(), 2, "edit_file", map[string]interface{}{})
	require.Error(t, err)

	cc.mu.Lock()
	consecutive := cc.toolFailuresConsecutive["edit_file"]
	total := cc.toolFailuresTotal
	cc.mu.Unlock()
	assert.Equal(t, 2, consecutive)
	assert.Equal(t, 2, total)

	fail = false
	_, err = cc.ExecuteTool(context.Background(), 3, "edit_file", map[string]interface{}{})
	require.NoError(t, err)

	cc.mu.Lock()
	consecutive = cc.toolFailuresConsecutive["edit_file"]
	cc.mu.Unlock()
	assert.Equal(t, 0, consecutive, "a success must reset the consecutive-failure streak (spec: reset-on-success atomically)")
}

func TestEndRunsMaintenanceWhenIntervalReached(t *testing.T) {
	dir := t.TempDir()
	reportPath := dir + "/maintenance_report.json"
	cfg := config.DefaultMaintenanceConfig()
	cfg.ReportPath = reportPath
	cfg.IntervalLoops = 1

	vectors := newFakeVectorStore()
	require.NoError(t, vectors.Store(context.Background(), store.Record{ID: "dormant-1", CreatedAt: time.Now().UTC()}))
	pass := maintenance.NewPass(cfg, vectors, nil, config.OntologyConfig{}, dir+"/co_retrieval_log.jsonl")

	cfg2 := config.DefaultConfig()
	org, orgDir := newTestOrg(t)
	cfg2.OrgKernel.OrganizationsDir = orgDir
	cc := NewCoreContext(cfg2, nil, newTestBelief(t), org, newTestWorkflow(t), newTestToolGate(t), newTestMemory(t, vectors), newTestSupervisor(t), pass, newTestRegistry(t, func(context.Context, map[string]any) (string, error) {
		return "ok", nil
	}))

	cc.End(context.Background(), 1, true, false)

	var report maintenance.Report
	require.NoError(t, store.ReadJSON(reportPath, &report), "maintenance report must have been written once the turn counter reached the interval")
	assert.Equal(t, 1, report.Turn)
}

func TestEndEmitsSALUTEOnPACETransition(t *testing.T) {
	cc := newTestCoreContext(t, func(context.Context, map[string]any) (string, error) {
		return "", assert.AnError
	}, newFakeVectorStore(), 1000)

	cc.Begin(context.Background(), 1, "refactor the auth module")
	cc.Begin(context.Background(), 2, "agent/auth.py")

	_, _ = cc.ExecuteTool(context.Background(), 2, "edit_file", map[string]interface{}{})
	_, _ = cc.ExecuteTool(context.Background(), 2, "edit_file", map[string]interface{}{})
	cc.End(context.Background(), 2, false, false)

	cc.mu.Lock()
	orgDir := cc.Config.OrgKernel.OrganizationsDir
	cc.mu.Unlock()

	report, err := orgkernel.LoadLatestSALUTE(orgDir, "specialist-1")
	require.NoError(t, err)
	assert.Equal(t, string(orgkernel.PaceAlternate), report.Status.PaceLevel)
}

func TestWorkflowEscalateNodeRaisesPACETier(t *testing.T) {
	vectors := newFakeVectorStore()
	cfg := config.DefaultConfig()
	org, orgDir := newTestOrg(t)
	cfg.OrgKernel.OrganizationsDir = orgDir
	cc := NewCoreContext(
		cfg,
		nil,
		newTestBelief(t),
		org,
		newTestWorkflowWithEscalate(t),
		newTestToolGate(t),
		newTestMemory(t, vectors),
		newTestSupervisor(t),
		newTestMaintenance(t, vectors, 1000),
		newTestRegistry(t, func(context.Context, map[string]any) (string, error) { return "ok", nil }),
	)

	cc.Begin(context.Background(), 1, "refactor the auth module")
	plan := cc.Begin(context.Background(), 2, "agent/auth.py")
	require.Equal(t, orgkernel.PacePrimary, plan.PaceLevel)
	_, node, active := cc.ActiveWorkflow()
	require.True(t, active)
	require.Equal(t, "apply", node)

	cc.End(context.Background(), 2, false, false)

	plan = cc.Begin(context.Background(), 3, "agent/auth.py")
	assert.True(t, plan.WorkflowExited, "the apply task's on_fail edge must chain through escalate to exit")
	assert.Equal(t, orgkernel.PaceAlternate, plan.PaceLevel, "an escalate node traversed this turn must raise PACE by one tier with no tool-failure trigger firing")

	report, err := orgkernel.LoadLatestSALUTE(orgDir, "specialist-1")
	require.NoError(t, err)
	assert.Equal(t, string(orgkernel.PaceAlternate), report.Status.PaceLevel)
	assert.Equal(t, "escalating", report.Status.State)
}
