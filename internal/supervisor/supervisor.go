package supervisor

import (
	"context"
	"time"

	"github.com/corescaffold/cogkernel/internal/config"
	"github.com/corescaffold/cogkernel/internal/logging"
	"github.com/corescaffold/cogkernel/internal/rules"
	"github.com/corescaffold/cogkernel/internal/store"
)

var steeringText = map[Anomaly]string{
	AnomalyStall:            "reassess approach",
	AnomalyLoop:             "try a different method",
	AnomalyContextExhaustion: "wrap up current task",
	AnomalyCascadeFailure:   "verify environment",
}

var paceRank = map[string]int{"primary": 0, "alternate": 1, "contingent": 2, "emergency": 3}

// Supervisor scans post-turn state for anomalies and injects
// cooldown-gated steering messages (spec §4.8).
type Supervisor struct {
	cfg      config.SupervisorConfig
	rules    *rules.Engine
	lastSeen map[Anomaly]int // anomaly -> last turn it fired
}

// NewSupervisor wires an optional rules engine: when non-nil, the
// anomalies Scan detects are also asserted into rules/supervisor.mg so
// its anomaly/any_anomaly predicates can be queried there. Scan itself
// derives every anomaly in Go (spec §4.8's table is counts and
// percentages, not boolean facts) and does not query the engine.
func NewSupervisor(cfg config.SupervisorConfig, rulesEngine *rules.Engine) *Supervisor {
	return &Supervisor{cfg: cfg, rules: rulesEngine, lastSeen: make(map[Anomaly]int)}
}

// Scan evaluates one turn's Input against the anomaly table and
// returns the steering messages that survive their per-anomaly
// cooldown (spec §4.8).
func (s *Supervisor) Scan(ctx context.Context, in Input) []Steering {
	if !s.cfg.Enabled {
		return nil
	}

	symptoms := s.detect(in)
	s.assertSymptoms(ctx, in.Turn, symptoms)

	var out []Steering
	for _, a := range symptoms {
		if !s.offCooldown(a, in.Turn) {
			continue
		}
		msg := s.messageFor(a, in)
		if msg == "" {
			continue
		}
		s.lastSeen[a] = in.Turn
		steering := Steering{Anomaly: a, Message: msg, Turn: in.Turn}
		out = append(out, steering)
		s.audit(steering)
	}
	return out
}

func (s *Supervisor) detect(in Input) []Anomaly {
	var out []Anomaly
	if in.TurnsSinceProgress > s.stallThreshold(in) {
		out = append(out, AnomalyStall)
	}
	if s.loopDetected(in.RecentFailures) {
		out = append(out, AnomalyLoop)
	}
	if in.ContextFillPct > s.cfg.ContextFillPct {
		out = append(out, AnomalyContextExhaustion)
	}
	if s.cascadeDetected(in.RecentFailures) {
		out = append(out, AnomalyCascadeFailure)
	}
	if paceRank[in.PaceTier] >= paceRank[s.cfg.PaceEscalationTier] && in.PaceTier != "" {
		out = append(out, AnomalyPaceEscalation)
	}
	return out
}

// stallThreshold prefers the active role's
// doctrine.max_turns_without_progress (spec §4.8) over the
// supervisor-wide StallTurns default, so each role's stall tolerance
// can differ; a role with no doctrine set (or no role active at all)
// falls back to the global config.
func (s *Supervisor) stallThreshold(in Input) int {
	if in.MaxTurnsWithoutProgress > 0 {
		return in.MaxTurnsWithoutProgress
	}
	return s.cfg.StallTurns
}

// loopDetected reports whether the same (tool, error_kind) pair
// appears at least LoopRepeatCount times in the recent failure ring
// (spec §4.8 "loop").
func (s *Supervisor) loopDetected(failures []FailureObservation) bool {
	counts := make(map[string]int)
	for _, f := range failures {
		key := f.ToolName + "|" + f.ErrorKind
		counts[key]++
		if counts[key] >= s.cfg.LoopRepeatCount {
			return true
		}
	}
	return false
}

// cascadeDetected reports whether at least CascadeDistinctToolCount
// distinct tools appear in the recent failure ring (spec §4.8
// "cascade_failure").
func (s *Supervisor) cascadeDetected(failures []FailureObservation) bool {
	distinct := make(map[string]bool)
	for _, f := range failures {
		distinct[f.ToolName] = true
	}
	return len(distinct) >= s.cfg.CascadeDistinctToolCount
}

func (s *Supervisor) offCooldown(a Anomaly, turn int) bool {
	last, seen := s.lastSeen[a]
	return !seen || turn-last >= s.cfg.CooldownTurns
}

func (s *Supervisor) messageFor(a Anomaly, in Input) string {
	if a == AnomalyPaceEscalation {
		if in.PaceTier == "emergency" && in.PaceEmergencyText != "" {
			return in.PaceEmergencyText
		}
		return in.PaceContingentText
	}
	return steeringText[a]
}

// assertSymptoms pushes this turn's observed symptoms into
// rules/supervisor.mg so any_anomaly/anomaly queries stay consistent
// with what Scan derives in Go.
func (s *Supervisor) assertSymptoms(ctx context.Context, turn int, symptoms []Anomaly) {
	if s.rules == nil {
		return
	}
	for _, a := range symptoms {
		pred := symptomPredicate(a)
		if pred == "" {
			continue
		}
		if err := s.rules.Assert(pred, turn); err != nil {
			logging.SupervisorDebug("assert %s failed: %v", pred, err)
		}
	}
}

func symptomPredicate(a Anomaly) string {
	switch a {
	case AnomalyStall:
		return "stalled"
	case AnomalyLoop:
		return "looping"
	case AnomalyContextExhaustion:
		return "context_exhausted"
	case AnomalyCascadeFailure:
		return "cascade_failing"
	case AnomalyPaceEscalation:
		return "pace_escalation_seen"
	default:
		return ""
	}
}

func (s *Supervisor) audit(steering Steering) {
	entry := auditEntry{Timestamp: time.Now().UTC(), Turn: steering.Turn, Anomaly: steering.Anomaly, Message: steering.Message}
	if err := store.AppendJSONL(s.cfg.AuditLogPath, entry); err != nil {
		logging.SupervisorDebug("audit append failed: %v", err)
	}
}
