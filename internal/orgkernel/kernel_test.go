package orgkernel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corescaffold/cogkernel/internal/config"
	"github.com/corescaffold/cogkernel/internal/store"
)

func writeJSONFixture(path string, v interface{}) error {
	return store.WriteJSON(path, v)
}

func writeOrg(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, SetActiveOrganization(dir, "demo"))
	require.NoError(t, writeJSONFixture(dir+"/demo.json", Organization{
		OrgID:     "demo",
		Mission:   "keep the lights on",
		Hierarchy: map[string][]string{"commander-1": {"specialist-1", "executive-1"}},
	}))
	require.NoError(t, writeJSONFixture(dir+"/roles/commander-1.json", Role{
		RoleID:   "commander-1",
		RoleType: RoleCommander,
		Capabilities: Capabilities{
			Domains: []string{"refactor"},
		},
		Doctrine: Doctrine{SALUTEIntervalTurns: 5},
	}))
	require.NoError(t, writeJSONFixture(dir+"/roles/executive-1.json", Role{
		RoleID:   "executive-1",
		RoleType: RoleExecutive,
		Capabilities: Capabilities{
			Domains: []string{"refactor"},
		},
	}))
	require.NoError(t, writeJSONFixture(dir+"/roles/specialist-1.json", Role{
		RoleID:   "specialist-1",
		RoleType: RoleSpecialist,
		Capabilities: Capabilities{
			Domains: []string{"refactor"},
		},
		PacePlan: PacePlan{
			Alternate: PaceTier{Metric: "tool_failures_consecutive", Tool: "edit_file", Operator: ">=", Threshold: 2},
		},
	}))
}

func TestSelectRolePrefersSpecialistOverExecutiveOverCommander(t *testing.T) {
	dir := t.TempDir()
	writeOrg(t, dir)

	cfg := config.DefaultOrgKernelConfig()
	cfg.OrganizationsDir = dir
	k := NewKernel(cfg, nil)
	require.True(t, k.Active())

	res := k.SelectRole("refactor")
	require.True(t, res.IsOk())
	role, _ := res.Effect()
	assert.Equal(t, "specialist-1", role.RoleID)
}

func TestSelectRoleSkipsWhenNoOrganizationActive(t *testing.T) {
	cfg := config.DefaultOrgKernelConfig()
	cfg.OrganizationsDir = t.TempDir()
	k := NewKernel(cfg, nil)
	assert.False(t, k.Active())

	res := k.SelectRole("refactor")
	assert.True(t, res.IsPassthrough())
}

func TestSelectRoleSkipsWhenNoDomainMatch(t *testing.T) {
	dir := t.TempDir()
	writeOrg(t, dir)
	cfg := config.DefaultOrgKernelConfig()
	cfg.OrganizationsDir = dir
	k := NewKernel(cfg, nil)

	res := k.SelectRole("bugfix")
	assert.True(t, res.IsPassthrough())
}

func TestEvaluatePACEEscalatesAndRecoversWithHysteresis(t *testing.T) {
	dir := t.TempDir()
	writeOrg(t, dir)
	cfg := config.DefaultOrgKernelConfig()
	cfg.OrganizationsDir = dir
	k := NewKernel(cfg, nil)
	role, ok := k.RoleByID("specialist-1")
	require.True(t, ok)

	level, transitioned := k.EvaluatePACE(nil, "demo", "specialist-1", role, AgentState{
		ToolFailuresConsecutive: map[string]int{"edit_file": 2},
	})
	assert.Equal(t, PaceAlternate, level)
	assert.True(t, transitioned)

	// one clean turn: not enough to recover yet
	level, transitioned = k.EvaluatePACE(nil, "demo", "specialist-1", role, AgentState{})
	assert.Equal(t, PaceAlternate, level)
	assert.False(t, transitioned)

	// second consecutive clean turn: recovers to primary
	level, transitioned = k.EvaluatePACE(nil, "demo", "specialist-1", role, AgentState{})
	assert.Equal(t, PacePrimary, level)
	assert.True(t, transitioned)
}

func TestShouldEmitSALUTE(t *testing.T) {
	role := Role{Doctrine: Doctrine{SALUTEIntervalTurns: 5}}
	assert.False(t, ShouldEmitSALUTE(role, 3, false))
	assert.True(t, ShouldEmitSALUTE(role, 5, false))
	assert.True(t, ShouldEmitSALUTE(role, 0, true))
}

func TestEmitAndLoadSALUTE(t *testing.T) {
	dir := t.TempDir()
	report := SALUTEReport{
		Status: saluteStatus{State: "active", PaceLevel: "primary", Health: HealthNominal},
		Unit:   saluteUnit{RoleID: "specialist-1"},
	}
	require.NoError(t, EmitSALUTE(dir, "specialist-1", report))

	loaded, err := LoadLatestSALUTE(dir, "specialist-1")
	require.NoError(t, err)
	assert.Equal(t, "active", loaded.Status.State)
	assert.NotEmpty(t, loaded.Time.Timestamp)
}
