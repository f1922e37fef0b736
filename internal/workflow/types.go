// Package workflow implements the Graph Workflow Engine (spec §4.3): it
// selects a workflow by domain and role whitelist, holds per-turn
// traversal state, and advances a node on every turn based on the prior
// turn's verification result.
package workflow

// NodeType is one of a workflow graph's six node kinds (spec §3).
type NodeType string

const (
	NodeStart      NodeType = "start"
	NodeTask       NodeType = "task"
	NodeDecision   NodeType = "decision"
	NodeEscalate   NodeType = "escalate"
	NodeCheckpoint NodeType = "checkpoint"
	NodeExit       NodeType = "exit"
)

// EdgeCondition is one of the five edge kinds an outgoing edge carries,
// evaluated in the fixed priority order on_success, on_retry, on_fail,
// on_exhaust, always (spec §4.3).
type EdgeCondition string

const (
	OnSuccess EdgeCondition = "on_success"
	OnFail    EdgeCondition = "on_fail"
	OnRetry   EdgeCondition = "on_retry"
	OnExhaust EdgeCondition = "on_exhaust"
	Always    EdgeCondition = "always"
)

var edgePriority = []EdgeCondition{OnSuccess, OnRetry, OnFail, OnExhaust, Always}

// Node is a single vertex in a workflow graph.
type Node struct {
	ID           string   `json:"id"`
	Type         NodeType `json:"type"`
	Instruction  string   `json:"instruction,omitempty"`
	Verification string   `json:"verification,omitempty"` // Mangle query, e.g. "?file_exists(\"agent/auth.py\")"
}

// Edge is a directed, conditioned transition between two nodes.
type Edge struct {
	From       string        `json:"from"`
	To         string        `json:"to"`
	Condition  EdgeCondition `json:"condition"`
	MaxRetries int           `json:"max_retries,omitempty"`
}

// Graph is one named workflow: trigger domains, nodes, and edges
// (spec §3 "Workflow Graph").
type Graph struct {
	WorkflowID     string   `json:"workflow_id"`
	TriggerDomains []string `json:"trigger_domains"`
	Nodes          []Node   `json:"nodes"`
	Edges          []Edge   `json:"edges"`
}

// Library is the ordered set of workflow graphs loaded from
// workflows/library.json; order is the selection tie-break (spec §4.3).
type Library struct {
	Workflows []Graph `json:"workflows"`
}

// TraversalState is the per-active-turn traversal record (spec §3):
// current node, visited history, per-node retry counters, and the
// per-turn event log.
type TraversalState struct {
	WorkflowID       string           `json:"workflow_id"`
	CurrentNode      string           `json:"current_node"`
	Visited          []string         `json:"visited"`
	RetryCountByNode map[string]int   `json:"retry_count_by_node"`
	EventLog         []Event          `json:"event_log"`
}

// Event is one append to the per-turn event log (spec §4.3: "Every node
// entry/verify/retry/escalate appends an event record").
type Event struct {
	Turn int    `json:"turn"`
	Node string `json:"node"`
	Kind string `json:"kind"` // enter|verify_pass|verify_fail|retry|exhaust|always|escalate|checkpoint|exit|canceled
	Tool string `json:"tool,omitempty"`
	Note string `json:"note,omitempty"`
}

// StepResult is what Start and Resume return after processing one turn:
// the instruction (if any) to inject into the model context, whether the
// graph reached an exit node, and whether an escalate node was entered
// anywhere in the chain walked this turn.
type StepResult struct {
	State       *TraversalState
	Instruction string
	Exited      bool
	Escalate    bool
	Checkpoint  bool
}
