package supervisor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corescaffold/cogkernel/internal/config"
)

func testConfig(t *testing.T) config.SupervisorConfig {
	t.Helper()
	cfg := config.DefaultSupervisorConfig()
	cfg.AuditLogPath = t.TempDir() + "/supervisor_audit.jsonl"
	return cfg
}

func TestScanDetectsStall(t *testing.T) {
	s := NewSupervisor(testConfig(t), nil)
	out := s.Scan(context.Background(), Input{Turn: 1, TurnsSinceProgress: 5})
	require.Len(t, out, 1)
	assert.Equal(t, AnomalyStall, out[0].Anomaly)
	assert.Equal(t, "reassess approach", out[0].Message)
}

func TestScanPrefersRoleDoctrineOverGlobalStallTurns(t *testing.T) {
	s := NewSupervisor(testConfig(t), nil)

	// global StallTurns default is 3; 4 turns without progress would
	// normally stall, but a role doctrine of 10 should override it.
	out := s.Scan(context.Background(), Input{Turn: 1, TurnsSinceProgress: 4, MaxTurnsWithoutProgress: 10})
	assert.Empty(t, out, "a role doctrine's higher max_turns_without_progress must suppress the global StallTurns default")

	out = s.Scan(context.Background(), Input{Turn: 2, TurnsSinceProgress: 11, MaxTurnsWithoutProgress: 10})
	require.Len(t, out, 1)
	assert.Equal(t, AnomalyStall, out[0].Anomaly)
}

func TestScanDetectsLoop(t *testing.T) {
	s := NewSupervisor(testConfig(t), nil)
	failures := []FailureObservation{
		{ToolName: "edit_file", ErrorKind: "syntax", Turn: 1},
		{ToolName: "edit_file", ErrorKind: "syntax", Turn: 2},
		{ToolName: "edit_file", ErrorKind: "syntax", Turn: 3},
	}
	out := s.Scan(context.Background(), Input{Turn: 3, RecentFailures: failures})
	var kinds []Anomaly
	for _, o := range out {
		kinds = append(kinds, o.Anomaly)
	}
	assert.Contains(t, kinds, AnomalyLoop)
}

func TestScanDetectsCascadeFailure(t *testing.T) {
	s := NewSupervisor(testConfig(t), nil)
	failures := []FailureObservation{
		{ToolName: "edit_file", ErrorKind: "syntax", Turn: 1},
		{ToolName: "run_tests", ErrorKind: "timeout", Turn: 2},
		{ToolName: "search", ErrorKind: "network", Turn: 3},
	}
	out := s.Scan(context.Background(), Input{Turn: 3, RecentFailures: failures})
	var kinds []Anomaly
	for _, o := range out {
		kinds = append(kinds, o.Anomaly)
	}
	assert.Contains(t, kinds, AnomalyCascadeFailure)
}

func TestScanDetectsContextExhaustion(t *testing.T) {
	s := NewSupervisor(testConfig(t), nil)
	out := s.Scan(context.Background(), Input{Turn: 1, ContextFillPct: 0.95})
	require.Len(t, out, 1)
	assert.Equal(t, AnomalyContextExhaustion, out[0].Anomaly)
}

func TestScanDetectsPaceEscalationUsesRoleText(t *testing.T) {
	s := NewSupervisor(testConfig(t), nil)
	out := s.Scan(context.Background(), Input{Turn: 1, PaceTier: "emergency", PaceEmergencyText: "abort and hand off"})
	require.Len(t, out, 1)
	assert.Equal(t, "abort and hand off", out[0].Message)
}

func TestScanRespectsCooldown(t *testing.T) {
	s := NewSupervisor(testConfig(t), nil)
	first := s.Scan(context.Background(), Input{Turn: 1, TurnsSinceProgress: 5})
	require.Len(t, first, 1)

	second := s.Scan(context.Background(), Input{Turn: 2, TurnsSinceProgress: 5})
	assert.Empty(t, second)

	third := s.Scan(context.Background(), Input{Turn: 4, TurnsSinceProgress: 5})
	require.Len(t, third, 1)
}

func TestScanSkipsWhenDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Enabled = false
	s := NewSupervisor(cfg, nil)
	out := s.Scan(context.Background(), Input{Turn: 1, TurnsSinceProgress: 99})
	assert.Empty(t, out)
}
