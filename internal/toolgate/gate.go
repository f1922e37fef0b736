package toolgate

import (
	"fmt"
	"strings"
	"sync"

	"github.com/corescaffold/cogkernel/internal/config"
	"github.com/corescaffold/cogkernel/internal/logging"
	"github.com/corescaffold/cogkernel/internal/outcome"
	"github.com/corescaffold/cogkernel/internal/tools"
)

// Gate wraps every tool invocation with the before/after hooks spec
// §4.4 describes. State (consecutive-failure counters and the bounded
// failure ring) lives only in memory: it is live per-turn-pipeline
// state, not part of the persisted filesystem layout (spec §6).
type Gate struct {
	cfg     config.ToolGateConfig
	schemas SchemaTable
	advice  AdviceTable

	mu          sync.Mutex
	consecutive map[string]int
	ring        []FailureRecord
}

// NewGate loads the static schema and advice tables. Either file may be
// absent; an absent table just means validation/advice has nothing
// beyond the tool's own declared ToolSchema (spec §4.4 failure
// semantics: the gate degrades to pass-through, never blocks).
func NewGate(cfg config.ToolGateConfig) (*Gate, error) {
	schemas, err := LoadSchemaTable(cfg.SchemaPath)
	if err != nil {
		return nil, err
	}
	advice, err := LoadAdviceTable(cfg.AdvicePath)
	if err != nil {
		return nil, err
	}
	return &Gate{
		cfg:         cfg,
		schemas:     schemas,
		advice:      advice,
		consecutive: make(map[string]int),
	}, nil
}

// PreCheck validates and resolves tool_args and returns any advisory
// warnings to surface to the model, per spec §4.4's "Before execution"
// hook. It never returns outcome.Fail: an unfixable argument mismatch
// is reported as a KindSyntax-blocked result, not an error, so the
// caller can substitute a structured failure and skip the call.
func (g *Gate) PreCheck(turn int, toolName string, args map[string]interface{}) outcome.Outcome[PreCheckResult] {
	if !g.cfg.Enabled {
		return outcome.Skip[PreCheckResult]("tool gate disabled")
	}

	resolved, missing := g.resolveArgs(toolName, args)
	result := PreCheckResult{Args: resolved}

	if len(missing) > 0 {
		result.Blocked = true
		result.Reason = KindSyntax
		result.Warnings = append(result.Warnings, fmt.Sprintf("missing required argument(s) for %s: %s", toolName, strings.Join(missing, ", ")))
		logging.ToolGateDebug("blocked %s: missing required args %v", toolName, missing)
		return outcome.Ok(result)
	}

	g.mu.Lock()
	consecutive := g.consecutive[toolName]
	globalFailures := g.recentFailures(turn)
	g.mu.Unlock()

	if consecutive >= g.cfg.ToolThreshold {
		if advice, ok := g.advice.Advice(toolName, g.lastKind(toolName)); ok {
			result.Warnings = append(result.Warnings, advice)
		}
	}
	if globalFailures >= g.cfg.GlobalThreshold {
		result.Warnings = append(result.Warnings, "step back and reassess: multiple recent tool failures across the session")
	}

	return outcome.Ok(result)
}

// resolveArgs applies alias resolution and default injection from the
// static schema table, then reports any still-missing required args.
func (g *Gate) resolveArgs(toolName string, args map[string]interface{}) (map[string]interface{}, []string) {
	resolved := make(map[string]interface{}, len(args))
	for k, v := range args {
		resolved[k] = v
	}

	schema, ok := g.schemas[toolName]
	if !ok {
		return resolved, nil
	}

	for alias, canonical := range schema.Aliases {
		if v, ok := resolved[alias]; ok {
			if _, exists := resolved[canonical]; !exists {
				resolved[canonical] = v
			}
			delete(resolved, alias)
		}
	}
	for k, v := range schema.Defaults {
		if _, exists := resolved[k]; !exists {
			resolved[k] = v
		}
	}

	var missing []string
	for _, req := range schema.Required {
		if _, exists := resolved[req]; !exists {
			missing = append(missing, req)
		}
	}
	return resolved, missing
}

// PostCheck classifies a tool's result and updates the failure tracker
// (spec §4.4 "After execution" logger).
func (g *Gate) PostCheck(turn int, toolName string, result tools.ToolResult) PostCheckResult {
	kind := ClassifyFailure(result.Error, result.Result)

	g.mu.Lock()
	defer g.mu.Unlock()

	if kind == KindNone {
		g.consecutive[toolName] = 0
		return PostCheckResult{Kind: KindNone}
	}

	g.consecutive[toolName]++
	errText := ""
	if result.Error != nil {
		errText = result.Error.Error()
	}
	g.ring = append(g.ring, FailureRecord{
		ToolName:       toolName,
		ErrorKind:      kind,
		MessagePreview: preview(errText, 200),
		Turn:           turn,
	})
	if len(g.ring) > g.cfg.FailureRingSize {
		g.ring = g.ring[len(g.ring)-g.cfg.FailureRingSize:]
	}

	return PostCheckResult{
		Kind:                kind,
		ConsecutiveFailures: g.consecutive[toolName],
		GlobalThresholdHit:  g.recentFailures(turn) >= g.cfg.GlobalThreshold,
	}
}

// ConsecutiveFailures reports the live counter for a tool (read by
// internal/orgkernel's PACE evaluation).
func (g *Gate) ConsecutiveFailures(toolName string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.consecutive[toolName]
}

// Ring returns a snapshot copy of the bounded failure ring.
func (g *Gate) Ring() []FailureRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]FailureRecord, len(g.ring))
	copy(out, g.ring)
	return out
}

// recentFailures counts ring entries within the last RecentWindowTurns
// turns of turn (spec §4.4: the global-threshold check looks back a
// bounded number of turns, not the whole ring regardless of age).
// Caller holds g.mu. A non-positive RecentWindowTurns disables the
// turn-window bound and falls back to the whole ring.
func (g *Gate) recentFailures(turn int) int {
	if g.cfg.RecentWindowTurns <= 0 {
		return len(g.ring)
	}
	cutoff := turn - g.cfg.RecentWindowTurns
	count := 0
	for _, rec := range g.ring {
		if rec.Turn > cutoff {
			count++
		}
	}
	return count
}

func (g *Gate) lastKind(toolName string) ErrorKind {
	for i := len(g.ring) - 1; i >= 0; i-- {
		if g.ring[i].ToolName == toolName {
			return g.ring[i].ErrorKind
		}
	}
	return KindNone
}

func preview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
