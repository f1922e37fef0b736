package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/corescaffold/cogkernel/internal/belief"
	"github.com/corescaffold/cogkernel/internal/logging"
	"github.com/corescaffold/cogkernel/internal/maintenance"
	"github.com/corescaffold/cogkernel/internal/memory"
	"github.com/corescaffold/cogkernel/internal/orgkernel"
	"github.com/corescaffold/cogkernel/internal/supervisor"
	"github.com/corescaffold/cogkernel/internal/workflow"
)

// historyLimit bounds how many prior user messages BST's
// last_mentioned_file/last_mentioned_entity resolvers scan back over.
const historyLimit = 50

// TurnPlan is everything Begin produces for the caller to hand to the
// model invocation (spec §6 "Model invocation contract"): a single
// composed prompt plus the structured pieces a caller may want to log
// or render separately.
type TurnPlan struct {
	Turn               int
	Domain             string
	ClarifyingQuestion string
	PromptText         string
	Instruction        string
	Memories           []memory.Candidate
	Connections        []memory.Connection
	RoleID             string
	WorkflowID         string
	PaceLevel          orgkernel.PaceLevel
	WorkflowExited     bool
	WorkflowEscalate   bool
	WorkflowCheckpoint bool
}

// Begin runs the strict-sequence, suspension-free portion of a turn
// (spec §5 ordering guarantees): BST, then Org Kernel, then Graph
// Engine, then Memory Enhancement. It stops short of the model call and
// tool invocations, the pipeline's only two suspension points (spec
// §9).
func (cc *CoreContext) Begin(ctx context.Context, turn int, message string) TurnPlan {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	plan := TurnPlan{Turn: turn}

	enrichedText, domain := cc.runBelief(turn, message, &plan)
	if plan.ClarifyingQuestion != "" {
		// Spec §8 scenario 1: "no model task call for the original
		// request" when a required slot is unfilled.
		return plan
	}
	plan.Domain = domain
	cc.lastDomain = domain

	roleID, allowed, paceLevel, transitioned := cc.runOrgKernel(ctx, domain)
	plan.RoleID = roleID
	plan.PaceLevel = paceLevel

	instruction := cc.runWorkflow(ctx, turn, domain, allowed, &plan)
	plan.Instruction = instruction
	transitioned = cc.handleWorkflowEscalation(&plan, roleID, transitioned)

	if roleID != "" {
		if role, ok := cc.Org.RoleByID(roleID); ok {
			cc.emitSALUTEIfDue(role, turn, plan.PaceLevel, transitioned, cc.workflowLifecycleState(&plan))
		}
	}

	memResult := cc.runMemory(ctx, turn, domain, message)
	plan.Memories = memResult.Memories
	plan.Connections = memResult.Connections

	plan.PromptText = composePrompt(enrichedText, instruction, memResult, cc.pendingSteering)
	cc.pendingSteering = nil

	logging.Pipeline("turn=%d domain=%q role=%q workflow=%q memories=%d", turn, domain, roleID, plan.WorkflowID, len(plan.Memories))
	return plan
}

// runBelief classifies the message and renders the BST's output (spec
// §4.1). Caller holds cc.mu.
func (cc *CoreContext) runBelief(turn int, message string, plan *TurnPlan) (enriched, domain string) {
	cc.history = append(cc.history, message)
	if len(cc.history) > historyLimit {
		cc.history = cc.history[len(cc.history)-historyLimit:]
	}

	if cc.Belief == nil {
		return message, ""
	}
	out := cc.Belief.Process(turn, message, cc.history, cc.beliefState)
	if !out.IsOk() {
		cc.beliefState = nil
		return message, ""
	}
	result, _ := out.Effect()
	cc.beliefState = result.State
	plan.Domain = result.Domain

	if result.ClarifyingQuestion != "" {
		plan.ClarifyingQuestion = result.ClarifyingQuestion
		return "", result.Domain
	}
	if result.Enriched != nil {
		return result.Enriched.Render(), result.Domain
	}
	return result.Passthrough, result.Domain
}

// runOrgKernel selects the turn's role, clears carried workflow state on
// a role change (spec §8 scenario 2), and evaluates PACE against the
// counters carried from the prior turn's tool executions. Caller holds
// cc.mu.
func (cc *CoreContext) runOrgKernel(ctx context.Context, domain string) (string, []string, orgkernel.PaceLevel, bool) {
	if cc.Org == nil || !cc.Org.Active() {
		cc.activeRoleID = ""
		return "", nil, "", false
	}

	out := cc.Org.SelectRole(domain)
	role, ok := out.Effect()
	roleID := ""
	var allowed []string
	if ok {
		roleID = role.RoleID
		allowed = role.Capabilities.Workflows
	}

	if roleID != cc.activeRoleID {
		cc.traversal = nil
		cc.activeWorkflowID = ""
		cc.currentGraph = workflow.Graph{}
	}
	cc.activeRoleID = roleID

	if roleID == "" {
		return roleID, allowed, "", false
	}

	org, _ := cc.Org.Organization()
	state := cc.buildAgentStateLocked()
	level, transitioned := cc.Org.EvaluatePACE(ctx, org.OrgID, roleID, role, state)
	return roleID, allowed, level, transitioned
}

// workflowLifecycleState derives SALUTE's status.state (spec §3's
// idle|active|waiting|error_recovery|escalating|complete|aborted
// enum) from this turn's workflow outcome, so emitSALUTEIfDue can
// detect a lifecycle change and fire spec §4.2's "on workflow state
// changes" trigger independent of the interval/PACE triggers. Caller
// holds cc.mu.
func (cc *CoreContext) workflowLifecycleState(plan *TurnPlan) string {
	switch {
	case plan.WorkflowEscalate:
		return "escalating"
	case plan.WorkflowExited:
		return "complete"
	case plan.WorkflowCheckpoint:
		return "waiting"
	case plan.RoleID == "":
		return "idle"
	case plan.PaceLevel != orgkernel.PacePrimary && plan.PaceLevel != "":
		return "error_recovery"
	case cc.traversal != nil:
		return "active"
	default:
		return "idle"
	}
}

// endLifecycleState derives SALUTE's status.state for the emission
// End (rather than Begin) may trigger: a canceled turn marks the
// traversal aborted (spec §8 "cancellation... marks the workflow
// traversal with an event canceled"), an exited/absent traversal reads
// complete, and an elevated PACE tier without cancellation reads
// error_recovery. Caller holds cc.mu.
func (cc *CoreContext) endLifecycleState(canceled bool, level orgkernel.PaceLevel) string {
	switch {
	case canceled:
		return "aborted"
	case cc.activeRoleID == "":
		return "idle"
	case cc.traversal == nil:
		return "complete"
	case level != orgkernel.PacePrimary && level != "":
		return "error_recovery"
	default:
		return "active"
	}
}

// emitSALUTEIfDue applies spec §4.2's emission rule (every
// salute_interval_turns, on any PACE transition, or on a workflow
// state change) and spec §9's per-role turn-counter resolution of the
// open question. Caller holds cc.mu.
func (cc *CoreContext) emitSALUTEIfDue(role orgkernel.Role, turn int, level orgkernel.PaceLevel, transitioned bool, state string) {
	cc.saluteTurnsSinceLast[role.RoleID]++
	since := cc.saluteTurnsSinceLast[role.RoleID]
	stateChanged := state != cc.workflowState
	if !orgkernel.ShouldEmitSALUTE(role, since, transitioned) && !stateChanged {
		return
	}
	cc.saluteTurnsSinceLast[role.RoleID] = 0
	cc.workflowState = state

	var report orgkernel.SALUTEReport
	report.Status.State = state
	report.Status.PaceLevel = string(level)
	report.Status.Health = orgkernel.HealthNominal
	if level == orgkernel.PaceEmergency {
		report.Status.Health = orgkernel.HealthCritical
	} else if level != orgkernel.PacePrimary {
		report.Status.Health = orgkernel.HealthDegraded
	}

	report.Activity.Domain = cc.lastDomain
	report.Activity.Workflow = cc.activeWorkflowID
	if cc.traversal != nil {
		report.Activity.Step = cc.traversal.CurrentNode
	}

	report.Unit.RoleID = role.RoleID
	report.Unit.ReportsTo = role.ReportsTo
	if org, ok := cc.Org.Organization(); ok {
		report.Unit.Organization = org.OrgID
	}

	report.Time.TurnsElapsed = turn
	report.Time.TurnsSinceProgress = cc.turnsSinceProgress

	report.Environment.ContextFillPct = cc.contextFillPct
	report.Environment.ToolFailuresConsecutive = maxConsecutiveFailure(cc.toolFailuresConsecutive)
	report.Environment.ToolFailuresTotal = cc.toolFailuresTotal

	organizationsDir := ""
	if cc.Config != nil {
		organizationsDir = cc.Config.OrgKernel.OrganizationsDir
	}
	if err := orgkernel.EmitSALUTE(organizationsDir, role.RoleID, report); err != nil {
		logging.PipelineDebug("salute emission failed for role=%s: %v", role.RoleID, err)
	}
}

// runWorkflow selects (or resumes) the turn's workflow graph (spec
// §4.3). Caller holds cc.mu.
func (cc *CoreContext) runWorkflow(ctx context.Context, turn int, domain string, allowed []string, plan *TurnPlan) string {
	if cc.Workflow == nil {
		return ""
	}

	if cc.traversal == nil {
		out := cc.Workflow.Select(domain, allowed, nil)
		g, ok := out.Effect()
		if !ok {
			return ""
		}
		cc.currentGraph = g
		cc.activeWorkflowID = g.WorkflowID
		stepOut := cc.Workflow.Start(ctx, turn, g)
		step, ok := stepOut.Effect()
		if !ok {
			return ""
		}
		cc.traversal = step.State
		plan.WorkflowID = g.WorkflowID
		plan.WorkflowExited = step.Exited
		plan.WorkflowEscalate = step.Escalate
		plan.WorkflowCheckpoint = step.Checkpoint
		return step.Instruction
	}

	out := cc.Workflow.Select(domain, allowed, cc.traversal)
	g, ok := out.Effect()
	if !ok {
		return ""
	}
	cc.currentGraph = g
	plan.WorkflowID = g.WorkflowID

	stepOut := cc.Workflow.Resume(ctx, turn, g, cc.traversal, cc.pendingSignal)
	cc.pendingSignal = workflow.TurnSignal{}
	step, ok := stepOut.Effect()
	if !ok {
		return ""
	}
	cc.traversal = step.State
	plan.WorkflowExited = step.Exited
	plan.WorkflowEscalate = step.Escalate
	plan.WorkflowCheckpoint = step.Checkpoint
	if step.Exited {
		cc.traversal = nil
		cc.activeWorkflowID = ""
	}
	return step.Instruction
}

// handleWorkflowEscalation raises roleID's PACE tier by one step when
// this turn's workflow traversal entered an escalate node (spec §4.3:
// escalate "raises PACE level by one tier, follows always"), and
// reports that it did so as a PACE transition for the SALUTE emission
// decision. Caller holds cc.mu.
func (cc *CoreContext) handleWorkflowEscalation(plan *TurnPlan, roleID string, transitioned bool) bool {
	if !plan.WorkflowEscalate || cc.Org == nil || roleID == "" {
		return transitioned
	}
	org, ok := cc.Org.Organization()
	if !ok {
		return transitioned
	}
	plan.PaceLevel = cc.Org.RaiseTier(org.OrgID, roleID)
	return true
}

// runMemory retrieves memory context for the turn (spec §4.5). Graph
// Engine writes (the traversal state update above) precede this read
// per spec §5's ordering guarantee. Caller holds cc.mu.
func (cc *CoreContext) runMemory(ctx context.Context, turn int, domain, message string) memory.Result {
	if cc.Memory == nil {
		return memory.Result{}
	}
	out := cc.Memory.Retrieve(ctx, turn, domain, message)
	result, _ := out.Effect()
	return result
}

// composePrompt assembles the model-facing text in a fixed section
// order: the BST-enriched (or passthrough) message, the workflow's
// current instruction, retrieved memory context, and any steering
// carried over from the previous turn's Supervisor scan (spec §6
// "Model invocation contract").
func composePrompt(enriched, instruction string, memResult memory.Result, steering []supervisor.Steering) string {
	var b strings.Builder
	b.WriteString(enriched)

	if instruction != "" {
		b.WriteString("\n\n[WORKFLOW INSTRUCTION]\n")
		b.WriteString(instruction)
	}

	if len(memResult.Memories) > 0 || len(memResult.Connections) > 0 {
		b.WriteString("\n\n[MEMORY CONTEXT]\n")
		for _, m := range memResult.Memories {
			fmt.Fprintf(&b, "- %s\n", m.Content)
		}
		for _, c := range memResult.Connections {
			fmt.Fprintf(&b, "- known connection: %s %s %s (confidence %.2f)\n", c.From, c.Relationship, c.To, c.Confidence)
		}
	}

	if len(steering) > 0 {
		b.WriteString("\n\n[STEERING]\n")
		for _, s := range steering {
			fmt.Fprintf(&b, "- %s\n", s.Message)
		}
	}

	return b.String()
}

// ExecuteTool wraps one tool invocation with the Tool Gate's
// before/after checks (spec §4.4), updating the consecutive/total
// failure counters PACE and Supervisor both read. This is one of the
// pipeline's two suspension points (spec §9): the tool may block.
func (cc *CoreContext) ExecuteTool(ctx context.Context, turn int, toolName string, args map[string]interface{}) (string, error) {
	cc.mu.Lock()
	gate := cc.ToolGate
	registry := cc.Tools
	cc.mu.Unlock()

	resolvedArgs := args
	if gate != nil {
		preOut := gate.PreCheck(turn, toolName, args)
		if pre, ok := preOut.Effect(); ok {
			if pre.Blocked {
				return "", fmt.Errorf("tool %s blocked: %s", toolName, pre.Reason)
			}
			resolvedArgs = pre.Args
		}
	}

	if registry == nil {
		return "", fmt.Errorf("no tool registry wired")
	}
	result, err := registry.Execute(ctx, toolName, resolvedArgs)
	if result == nil {
		// Registry.Execute only returns a nil result when the tool name
		// itself is unregistered; there is no execution to classify.
		return "", err
	}

	if gate != nil {
		post := gate.PostCheck(turn, toolName, *result)
		cc.mu.Lock()
		if post.Kind == "" {
			cc.toolFailuresConsecutive[toolName] = 0
			cc.turnsSinceProgress = 0
		} else {
			cc.toolFailuresConsecutive[toolName] = post.ConsecutiveFailures
			cc.toolFailuresTotal++
			cc.pushFailure(supervisor.FailureObservation{ToolName: toolName, ErrorKind: string(post.Kind), Turn: turn})
		}
		cc.mu.Unlock()
	}

	return result.Result, result.Error
}

// pushFailure appends to the bounded failure ring. Caller holds cc.mu.
func (cc *CoreContext) pushFailure(f supervisor.FailureObservation) {
	cc.recentFailures = append(cc.recentFailures, f)
	if len(cc.recentFailures) > failureRingCap {
		cc.recentFailures = cc.recentFailures[len(cc.recentFailures)-failureRingCap:]
	}
}

// End closes out a turn (spec §5): it feeds the prior task node's
// verification outcome into the Graph Engine, re-evaluates PACE against
// this turn's tool executions, runs the Supervisor's post-turn anomaly
// scan, and ticks the Maintenance Pass.
func (cc *CoreContext) End(ctx context.Context, turn int, verified, canceled bool) []supervisor.Steering {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	if verified {
		cc.turnsSinceProgress = 0
	} else {
		cc.turnsSinceProgress++
	}
	cc.pendingSignal = workflow.TurnSignal{Verified: verified, Canceled: canceled}

	var steering []supervisor.Steering
	if cc.Supervisor != nil {
		in := supervisor.Input{
			Turn:               turn,
			TurnsSinceProgress: cc.turnsSinceProgress,
			ContextFillPct:     cc.contextFillPct,
			RecentFailures:     append([]supervisor.FailureObservation{}, cc.recentFailures...),
		}
		if cc.activeRoleID != "" && cc.Org != nil {
			if role, ok := cc.Org.RoleByID(cc.activeRoleID); ok {
				org, _ := cc.Org.Organization()
				level, transitioned := cc.Org.EvaluatePACE(ctx, org.OrgID, cc.activeRoleID, role, cc.buildAgentStateLocked())
				in.PaceTier = string(level)
				in.MaxTurnsWithoutProgress = role.Doctrine.MaxTurnsWithoutProgress
				in.PaceContingentText = role.PacePlan.Contingent.Action
				in.PaceEmergencyText = role.PacePlan.Emergency.Action
				cc.emitSALUTEIfDue(role, turn, level, transitioned, cc.endLifecycleState(canceled, level))
			}
		}
		steering = cc.Supervisor.Scan(ctx, in)
		cc.pendingSteering = steering
	}

	if cc.Maintenance != nil && cc.Maintenance.Tick() {
		report := cc.Maintenance.Run(ctx, turn)
		logging.PipelineDebug("maintenance cycle ran at end of turn=%d: %+v", turn, maintenanceSummary(report))
	}

	return steering
}

// maxConsecutiveFailure reports the highest per-tool consecutive
// failure count, the single number SALUTE's fixed schema has room for
// (spec §3 environment.tool_failures_consecutive).
func maxConsecutiveFailure(m map[string]int) int {
	max := 0
	for _, v := range m {
		if v > max {
			max = v
		}
	}
	return max
}

func maintenanceSummary(r maintenance.Report) map[string]int {
	return map[string]int{
		"deduped":       len(r.Deduped),
		"related":       len(r.RelatedLinksAdded),
		"clusters":      len(r.ClusterCandidates),
		"dormant":       len(r.DormancyFlags),
		"ontology":      r.OntologyMerges,
		"relationships": r.OntologyRelationships,
	}
}

// BeliefStateSnapshot returns a copy of the carried belief state, for
// callers (e.g. cmd/corectl status output) that want to display it
// without reaching into unexported CoreContext fields.
func (cc *CoreContext) BeliefStateSnapshot() *belief.BeliefState {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	if cc.beliefState == nil {
		return nil
	}
	snapshot := *cc.beliefState
	return &snapshot
}
