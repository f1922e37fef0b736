// Package pipeline wires the Belief State Tracker, Organization Kernel,
// Graph Workflow Engine, Tool Gate, Memory Enhancement and Supervisor
// into the single-threaded, strict-sequence turn pipeline (spec §5):
// "components in §4.1-4.5 and §4.8 run in strict sequence with no
// concurrency between them". Maintenance runs out-of-band, driven by a
// turn counter rather than a background goroutine.
package pipeline

import (
	"sync"

	"github.com/corescaffold/cogkernel/internal/belief"
	"github.com/corescaffold/cogkernel/internal/config"
	"github.com/corescaffold/cogkernel/internal/maintenance"
	"github.com/corescaffold/cogkernel/internal/memory"
	"github.com/corescaffold/cogkernel/internal/orgkernel"
	"github.com/corescaffold/cogkernel/internal/rules"
	"github.com/corescaffold/cogkernel/internal/supervisor"
	"github.com/corescaffold/cogkernel/internal/toolgate"
	"github.com/corescaffold/cogkernel/internal/tools"
	"github.com/corescaffold/cogkernel/internal/workflow"
)

// failureRingCap bounds CoreContext.recentFailures; the same ring size
// the Tool Gate already uses for its own per-tool/kind ring (spec §3
// FailureRecord, default 20).
const failureRingCap = 20

// CoreContext carries the process-wide mutable state spec §9 calls out
// explicitly: "the 'active organization' sentinel and the belief state
// are effectively process-wide. Carry them in an explicit CoreContext
// passed through the pipeline; avoid hidden singletons." It also holds
// every wired component so Turn (turn.go) has a single receiver.
type CoreContext struct {
	Config *config.Config

	Rules       *rules.Engine
	Belief      *belief.Tracker
	Org         *orgkernel.Kernel
	Workflow    *workflow.Engine
	ToolGate    *toolgate.Gate
	Memory      *memory.Engine
	Supervisor  *supervisor.Supervisor
	Maintenance *maintenance.Pass
	Tools       *tools.Registry

	mu sync.Mutex

	// beliefState is the BST's cross-turn TTL'd classification.
	beliefState *belief.BeliefState
	history     []string

	// activeRoleID/activeWorkflowID/traversal/currentGraph track the Org
	// Kernel's and Graph Engine's carried state. A role change clears
	// traversal/currentGraph: "the previously active workflow is not
	// resumed for the new role" (spec §8 scenario 2).
	activeRoleID     string
	activeWorkflowID string
	lastDomain       string
	traversal        *workflow.TraversalState
	currentGraph     workflow.Graph
	pendingSignal    workflow.TurnSignal

	toolFailuresConsecutive map[string]int
	toolFailuresTotal       int
	turnsSinceProgress      int
	recentFailures          []supervisor.FailureObservation

	// saluteTurnsSinceLast is keyed per role_id: spec §9's open question
	// on salute_interval_turns scope is resolved "per-role to match the
	// microcosm/macrocosm parity claim".
	saluteTurnsSinceLast map[string]int

	// workflowState is the status.state value from the last emitted
	// SALUTE report, tracked so emitSALUTEIfDue can detect a lifecycle
	// change (idle/active/waiting/error_recovery/escalating/complete/
	// aborted) and fire its own emission trigger alongside the
	// interval/PACE triggers (spec §4.2: "on workflow state changes").
	workflowState string

	// pendingSteering is Supervisor's most recent output, injected as
	// additive context into the next turn's composed prompt (spec §9
	// open question on steering placement: this implementation appends
	// steering after the BST/workflow/memory sections rather than
	// rewriting the user message).
	pendingSteering []supervisor.Steering

	contextFillPct float64
}

// NewCoreContext wires every already-constructed component together.
// Any component may be nil (except Config), matching the "every
// subcomponent... a disabled component degrades to passthrough"
// contract (spec §6) — a nil component behaves like one built with
// Enabled: false.
func NewCoreContext(cfg *config.Config, rulesEngine *rules.Engine, beliefTracker *belief.Tracker, org *orgkernel.Kernel, workflowEngine *workflow.Engine, toolGate *toolgate.Gate, memoryEngine *memory.Engine, supervisorV *supervisor.Supervisor, maintenancePass *maintenance.Pass, toolsRegistry *tools.Registry) *CoreContext {
	return &CoreContext{
		Config:                  cfg,
		Rules:                   rulesEngine,
		Belief:                  beliefTracker,
		Org:                     org,
		Workflow:                workflowEngine,
		ToolGate:                toolGate,
		Memory:                  memoryEngine,
		Supervisor:              supervisorV,
		Maintenance:             maintenancePass,
		Tools:                   toolsRegistry,
		toolFailuresConsecutive: make(map[string]int),
		saluteTurnsSinceLast:    make(map[string]int),
	}
}

// SetContextFillPct lets a caller (the process hosting the model call)
// report the context window's fill percentage for PACE's
// context_fill_pct trigger and Supervisor's context_exhaustion check;
// spec §9 leaves the context watchdog unspecified, so this is an
// external input rather than something the pipeline measures itself.
func (cc *CoreContext) SetContextFillPct(pct float64) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.contextFillPct = pct
}

// ActiveWorkflow returns the currently selected workflow graph's ID and
// current node, for callers (e.g. cmd/corectl status output) that want
// to display traversal progress without reaching into CoreContext's
// unexported fields.
func (cc *CoreContext) ActiveWorkflow() (workflowID, currentNode string, active bool) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.traversal == nil {
		return "", "", false
	}
	return cc.currentGraph.WorkflowID, cc.traversal.CurrentNode, true
}

// buildAgentStateLocked snapshots the counters PACE and Supervisor both read
// (spec §4.2, §4.8). Caller must hold cc.mu.
func (cc *CoreContext) buildAgentStateLocked() orgkernel.AgentState {
	failures := make(map[string]int, len(cc.toolFailuresConsecutive))
	for k, v := range cc.toolFailuresConsecutive {
		failures[k] = v
	}
	return orgkernel.AgentState{
		ToolFailuresConsecutive: failures,
		TurnsSinceProgress:      cc.turnsSinceProgress,
		ContextFillPct:          cc.contextFillPct,
	}
}
