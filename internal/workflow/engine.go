package workflow

import (
	"context"
	"fmt"

	"github.com/corescaffold/cogkernel/internal/config"
	"github.com/corescaffold/cogkernel/internal/logging"
	"github.com/corescaffold/cogkernel/internal/outcome"
	"github.com/corescaffold/cogkernel/internal/rules"
)

// maxChainHops bounds how many nodes enterChain walks through within a
// single turn before giving up; a workflow graph is author-controlled
// data, but a cyclic start/decision/escalate chain with no task or
// exit node would otherwise spin forever.
const maxChainHops = 64

// Engine selects and traverses workflow graphs (spec §4.3).
type Engine struct {
	cfg     config.WorkflowConfig
	rules   *rules.Engine
	library Library
}

// NewEngine loads the workflow library. A missing library file is not
// fatal (spec §4.3 failure semantics): Engine.Select simply has nothing
// to match and returns outcome.Skip.
func NewEngine(cfg config.WorkflowConfig, rulesEngine *rules.Engine) (*Engine, error) {
	lib, err := LoadLibrary(cfg.LibraryPath)
	if err != nil {
		return nil, err
	}
	logging.Workflow("loaded %d workflow(s) from %s", len(lib.Workflows), cfg.LibraryPath)
	return &Engine{cfg: cfg, rules: rulesEngine, library: lib}, nil
}

// TurnSignal carries the result of the prior turn's task-node
// verification into Resume.
type TurnSignal struct {
	Verified bool
	Canceled bool
}

// Select picks the workflow whose trigger_domains include domain and
// whose id is allowed by the role's workflow whitelist (empty/nil
// allowed means unrestricted, spec §4.2 "backward compatibility"),
// tie-broken by library order. If continuation names a workflow still
// present in the library, it is returned directly so the caller resumes
// instead of reselecting (spec §4.3).
func (e *Engine) Select(domain string, allowed []string, continuation *TraversalState) outcome.Outcome[Graph] {
	if !e.cfg.Enabled {
		return outcome.Skip[Graph]("workflow engine disabled")
	}

	if continuation != nil {
		if g, ok := e.graphByID(continuation.WorkflowID); ok {
			return outcome.Ok(g)
		}
	}

	allowedSet := toSet(allowed)
	for _, g := range e.library.Workflows {
		if !containsDomain(g.TriggerDomains, domain) {
			continue
		}
		if len(allowedSet) > 0 && !allowedSet[g.WorkflowID] {
			continue
		}
		return outcome.Ok(g)
	}
	return outcome.Skip[Graph](fmt.Sprintf("no workflow matches domain %q", domain))
}

// Start begins a fresh traversal at g's start node, chaining through
// any immediate (non-task, non-exit) nodes until a task instruction is
// ready or the graph exits on its first hop.
func (e *Engine) Start(ctx context.Context, turn int, g Graph) outcome.Outcome[StepResult] {
	start, ok := g.startNode()
	if !ok {
		return outcome.Fail[StepResult](fmt.Sprintf("workflow %s has no start node", g.WorkflowID))
	}
	state := &TraversalState{
		WorkflowID:       g.WorkflowID,
		RetryCountByNode: make(map[string]int),
	}
	res, err := e.enterChain(ctx, turn, g, state, start)
	if err != nil {
		return outcome.Fail[StepResult](err.Error())
	}
	return outcome.Ok(res)
}

// Resume advances state from its current (task) node using signal, the
// verification outcome of the instruction that node injected last turn,
// then chains through any subsequent non-task nodes.
func (e *Engine) Resume(ctx context.Context, turn int, g Graph, state *TraversalState, signal TurnSignal) outcome.Outcome[StepResult] {
	if state == nil {
		return e.Start(ctx, turn, g)
	}
	if signal.Canceled {
		e.logEvent(state, turn, state.CurrentNode, "canceled", "", "")
		return outcome.Ok(StepResult{State: state})
	}

	edge, ok, kind := e.selectEdge(g, state.CurrentNode, signal.Verified, state)
	if !ok {
		return outcome.Fail[StepResult](fmt.Sprintf("node %s in workflow %s has no matching edge", state.CurrentNode, g.WorkflowID))
	}
	e.logEvent(state, turn, state.CurrentNode, kind, "", "")

	next, ok := g.nodeByID(edge.To)
	if !ok {
		return outcome.Fail[StepResult](fmt.Sprintf("workflow %s edge targets unknown node %s", g.WorkflowID, edge.To))
	}
	res, err := e.enterChain(ctx, turn, g, state, next)
	if err != nil {
		return outcome.Fail[StepResult](err.Error())
	}
	return outcome.Ok(res)
}

// enterChain walks nodes starting at node, entering each and following
// its always/decision edge, until it lands on a task node (which pauses
// for model output) or an exit node.
func (e *Engine) enterChain(ctx context.Context, turn int, g Graph, state *TraversalState, node Node) (StepResult, error) {
	// escalated latches once an escalate node is entered anywhere in the
	// chain, so the flag survives into whichever node the chain finally
	// pauses at (task or exit), not just a dead-end escalate node (spec
	// §4.3: escalate "emits an event, raises PACE level by one tier,
	// follows always" — it always has somewhere to go).
	escalated := false
	for hop := 0; hop < maxChainHops; hop++ {
		state.CurrentNode = node.ID
		state.Visited = append(state.Visited, node.ID)
		e.logEvent(state, turn, node.ID, "enter", "", "")

		switch node.Type {
		case NodeTask:
			return StepResult{State: state, Instruction: node.Instruction, Escalate: escalated}, nil

		case NodeExit:
			e.logEvent(state, turn, node.ID, "exit", "", "")
			return StepResult{State: state, Exited: true, Escalate: escalated}, nil

		case NodeEscalate:
			e.logEvent(state, turn, node.ID, "escalate", "", "")
			escalated = true
			edge, ok, _ := e.selectEdge(g, node.ID, true, state)
			if !ok {
				return StepResult{State: state, Escalate: true}, nil
			}
			next, ok := g.nodeByID(edge.To)
			if !ok {
				return StepResult{}, fmt.Errorf("workflow %s escalate edge targets unknown node %s", g.WorkflowID, edge.To)
			}
			node = next
			continue

		case NodeCheckpoint:
			e.logEvent(state, turn, node.ID, "checkpoint", "", "")
			edge, ok, _ := e.selectEdge(g, node.ID, true, state)
			if !ok {
				return StepResult{State: state, Checkpoint: true, Escalate: escalated}, nil
			}
			next, ok := g.nodeByID(edge.To)
			if !ok {
				return StepResult{}, fmt.Errorf("workflow %s checkpoint edge targets unknown node %s", g.WorkflowID, edge.To)
			}
			node = next
			continue

		case NodeDecision:
			held := e.evaluatePredicate(ctx, g.WorkflowID, node)
			edge, ok, kind := e.selectEdge(g, node.ID, held, state)
			if !ok {
				return StepResult{}, fmt.Errorf("decision node %s in workflow %s has no matching edge", node.ID, g.WorkflowID)
			}
			e.logEvent(state, turn, node.ID, kind, "", "")
			next, ok := g.nodeByID(edge.To)
			if !ok {
				return StepResult{}, fmt.Errorf("workflow %s decision edge targets unknown node %s", g.WorkflowID, edge.To)
			}
			node = next
			continue

		case NodeStart:
			edge, ok, _ := e.selectEdge(g, node.ID, true, state)
			if !ok {
				return StepResult{}, fmt.Errorf("start node %s in workflow %s has no always edge", node.ID, g.WorkflowID)
			}
			next, ok := g.nodeByID(edge.To)
			if !ok {
				return StepResult{}, fmt.Errorf("workflow %s start edge targets unknown node %s", g.WorkflowID, edge.To)
			}
			node = next
			continue

		default:
			return StepResult{}, fmt.Errorf("workflow %s node %s has unknown type %q", g.WorkflowID, node.ID, node.Type)
		}
	}
	return StepResult{}, fmt.Errorf("workflow %s exceeded %d hops without reaching a task or exit node", g.WorkflowID, maxChainHops)
}

// evaluatePredicate runs node.Verification as a Mangle Holds query when
// a rules engine is wired; a node with no verification predicate (or no
// engine) is treated as always-true, matching the "engine does not
// block" failure semantics (spec §4.3).
func (e *Engine) evaluatePredicate(ctx context.Context, workflowID string, node Node) bool {
	if node.Verification == "" || e.rules == nil {
		return true
	}
	held, err := e.rules.Holds(ctx, node.Verification)
	if err != nil {
		logging.WorkflowDebug("verification query failed for workflow=%s node=%s: %v", workflowID, node.ID, err)
		return false
	}
	return held
}

// selectEdge applies the fixed edge-priority order on_success, on_retry
// (while retry_count_by_node[node] < max_retries), on_fail, on_exhaust,
// always (spec §4.3). verified gates which branch of the priority list
// applies; nodes with only an always edge ignore it.
func (e *Engine) selectEdge(g Graph, nodeID string, verified bool, state *TraversalState) (Edge, bool, string) {
	byCond := make(map[EdgeCondition]Edge)
	for _, edge := range g.edgesFrom(nodeID) {
		if _, exists := byCond[edge.Condition]; !exists {
			byCond[edge.Condition] = edge
		}
	}

	if verified {
		if edge, ok := byCond[OnSuccess]; ok {
			return edge, true, "verify_pass"
		}
	} else {
		if edge, ok := byCond[OnRetry]; ok {
			max := edge.MaxRetries
			if max <= 0 {
				max = e.cfg.DefaultMaxRetries
			}
			if state.RetryCountByNode[nodeID] < max {
				state.RetryCountByNode[nodeID]++
				return edge, true, "retry"
			}
		}
		if edge, ok := byCond[OnFail]; ok {
			return edge, true, "verify_fail"
		}
		if edge, ok := byCond[OnExhaust]; ok {
			return edge, true, "exhaust"
		}
	}
	if edge, ok := byCond[Always]; ok {
		return edge, true, "always"
	}
	return Edge{}, false, ""
}

func (e *Engine) logEvent(state *TraversalState, turn int, node, kind, tool, note string) {
	state.EventLog = append(state.EventLog, Event{Turn: turn, Node: node, Kind: kind, Tool: tool, Note: note})
	logging.WorkflowDebug("workflow=%s turn=%d node=%s event=%s", state.WorkflowID, turn, node, kind)
}

func (e *Engine) graphByID(id string) (Graph, bool) {
	for _, g := range e.library.Workflows {
		if g.WorkflowID == id {
			return g, true
		}
	}
	return Graph{}, false
}

func containsDomain(domains []string, domain string) bool {
	for _, d := range domains {
		if d == domain {
			return true
		}
	}
	return false
}

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}
