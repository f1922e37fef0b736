package orgkernel

import (
	"context"

	"github.com/corescaffold/cogkernel/internal/logging"
)

// PaceLevel is the four-tier failure-response doctrine (spec glossary).
type PaceLevel string

const (
	PacePrimary    PaceLevel = "primary"
	PaceAlternate  PaceLevel = "alternate"
	PaceContingent PaceLevel = "contingent"
	PaceEmergency  PaceLevel = "emergency"
)

var paceRank = map[PaceLevel]int{
	PacePrimary:    0,
	PaceAlternate:  1,
	PaceContingent: 2,
	PaceEmergency:  3,
}

// AgentState is the per-turn fact set PACE triggers evaluate against
// (spec §4.2).
type AgentState struct {
	ToolFailuresConsecutive map[string]int
	TurnsSinceProgress      int
	ContextFillPct          float64
	UnrecoverableError      bool
}

// paceTracker holds the per-role PACE hysteresis state: the current
// tier and how many consecutive clean turns have elapsed, since
// recovery to a lower tier requires two consecutive turns with every
// higher tier's trigger false (spec §4.2).
type paceTracker struct {
	level       PaceLevel
	cleanStreak int
}

// evaluateTier reports whether tier's trigger condition holds against
// state. Triggers are structured (metric/operator/threshold) rather
// than Mangle query strings, per the numeric-comparisons-stay-in-Go
// decision recorded in DESIGN.md's internal/rules section.
func evaluateTier(tier PaceTier, state AgentState) bool {
	if tier.Metric == "" {
		return false
	}
	var value float64
	switch tier.Metric {
	case "tool_failures_consecutive":
		value = float64(state.ToolFailuresConsecutive[tier.Tool])
	case "turns_since_progress":
		value = float64(state.TurnsSinceProgress)
	case "context_fill_pct":
		value = state.ContextFillPct
	case "unrecoverable_error":
		if state.UnrecoverableError {
			value = 1
		}
	default:
		return false
	}

	switch tier.Operator {
	case ">=":
		return value >= tier.Threshold
	case ">":
		return value > tier.Threshold
	case "==":
		return value == tier.Threshold
	default:
		return false
	}
}

// EvaluatePACE computes the highest tier whose trigger currently holds
// and applies the hysteresis rule for recovery to a lower tier
// (spec §4.2, §8 "PACE monotonicity within a streak"). If engine is
// non-nil, the resulting tier is asserted as a pace_tier fact so
// Supervisor and SALUTE can query org-wide escalation via
// rules/pace.mg rather than re-deriving it.
func (k *Kernel) EvaluatePACE(ctx context.Context, orgID, roleID string, role Role, state AgentState) (PaceLevel, bool) {
	tracker := k.paceTrackers[roleID]
	if tracker == nil {
		tracker = &paceTracker{level: PacePrimary}
		k.paceTrackers[roleID] = tracker
	}

	triggered := PacePrimary
	for _, candidate := range []struct {
		level PaceLevel
		tier  PaceTier
	}{
		{PaceEmergency, role.PacePlan.Emergency},
		{PaceContingent, role.PacePlan.Contingent},
		{PaceAlternate, role.PacePlan.Alternate},
	} {
		if evaluateTier(candidate.tier, state) {
			triggered = candidate.level
			break
		}
	}

	transitioned := false
	switch {
	case paceRank[triggered] > paceRank[tracker.level]:
		tracker.level = triggered
		tracker.cleanStreak = 0
		transitioned = true
	case paceRank[triggered] < paceRank[tracker.level]:
		tracker.cleanStreak++
		if tracker.cleanStreak >= 2 {
			tracker.level = triggered
			tracker.cleanStreak = 0
			transitioned = true
		}
	default:
		tracker.cleanStreak = 0
	}

	if k.rules != nil {
		if err := k.rules.Assert("pace_tier", orgID, roleID, string(tracker.level)); err != nil {
			logging.OrgKernelDebug("pace_tier assert failed for role=%s: %v", roleID, err)
		}
	}

	return tracker.level, transitioned
}

var paceStep = map[PaceLevel]PaceLevel{
	PacePrimary:    PaceAlternate,
	PaceAlternate:  PaceContingent,
	PaceContingent: PaceEmergency,
	PaceEmergency:  PaceEmergency,
}

// RaiseTier forces the named role's PACE tier up by exactly one step,
// regardless of whether any doctrine trigger currently holds (spec
// §4.3 escalate node: "raise PACE level by one tier"). It resets the
// hysteresis clean streak, so recovery from the forced tier still
// requires two consecutive clean turns like a trigger-driven
// escalation.
func (k *Kernel) RaiseTier(orgID, roleID string) PaceLevel {
	tracker := k.paceTrackers[roleID]
	if tracker == nil {
		tracker = &paceTracker{level: PacePrimary}
		k.paceTrackers[roleID] = tracker
	}

	tracker.level = paceStep[tracker.level]
	tracker.cleanStreak = 0

	if k.rules != nil {
		if err := k.rules.Assert("pace_tier", orgID, roleID, string(tracker.level)); err != nil {
			logging.OrgKernelDebug("pace_tier assert failed for role=%s: %v", roleID, err)
		}
	}

	return tracker.level
}
