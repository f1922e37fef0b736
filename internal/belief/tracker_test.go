package belief

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corescaffold/cogkernel/internal/config"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	cfg := config.DefaultBeliefConfig()
	cfg.SlotTaxonomyPath = t.TempDir() + "/slot_taxonomy.json"
	tr, err := NewTracker(cfg, 6)
	require.NoError(t, err)
	return tr
}

func TestClarificationLoop(t *testing.T) {
	tr := newTestTracker(t)

	res := tr.Process(1, "refactor the auth module", nil, nil)
	require.True(t, res.IsOk())
	r, _ := res.Effect()
	assert.Equal(t, "refactor", r.Domain)
	assert.Equal(t, "Which file?", r.ClarifyingQuestion)
	require.NotNil(t, r.State)
	assert.Equal(t, "refactor", r.State.Domain)
	assert.Nil(t, r.State.Slots["target_file"])
	assert.Equal(t, 6, r.State.TTLRemaining)

	res2 := tr.Process(2, "agent/auth.py", nil, r.State)
	r2, _ := res2.Effect()
	require.NotNil(t, r2.Enriched)
	assert.Equal(t, "agent/auth.py", r2.Enriched.TaskContext["target_file"])
	assert.Contains(t, r2.Enriched.Render(), "[TASK CONTEXT]")
	assert.Contains(t, r2.Enriched.Render(), "target_file: agent/auth.py")
	assert.Contains(t, r2.Enriched.Render(), "[USER MESSAGE]\nagent/auth.py")
	require.NotNil(t, r2.State)
	assert.Equal(t, 6, r2.State.TTLRemaining)
}

func TestUnderspecifiedContinuationReusesPriorDomain(t *testing.T) {
	tr := newTestTracker(t)
	prior := &BeliefState{
		Domain:       "refactor",
		Slots:        map[string]interface{}{"target_file": "agent/auth.py"},
		TTLRemaining: 3,
	}

	res := tr.Process(3, "fix it", nil, prior)
	r, _ := res.Effect()
	assert.Equal(t, "refactor", r.Domain)
	require.NotNil(t, r.Enriched)
	assert.Equal(t, "agent/auth.py", r.Enriched.TaskContext["target_file"])
}

func TestConversationalPassthroughWhenNoTriggerMatches(t *testing.T) {
	tr := newTestTracker(t)
	res := tr.Process(1, "hello there, how are you?", nil, nil)
	r, _ := res.Effect()
	assert.Equal(t, "conversational", r.Domain)
	assert.Equal(t, "hello there, how are you?", r.Passthrough)
}

func TestDisabledTrackerSkips(t *testing.T) {
	cfg := config.DefaultBeliefConfig()
	cfg.Enabled = false
	cfg.SlotTaxonomyPath = t.TempDir() + "/slot_taxonomy.json"
	tr, err := NewTracker(cfg, 6)
	require.NoError(t, err)

	res := tr.Process(1, "refactor the auth module", nil, nil)
	assert.True(t, res.IsPassthrough())
}

func TestBeliefStateTick(t *testing.T) {
	bs := &BeliefState{TTLRemaining: 1}
	assert.False(t, bs.Tick())
	var nilState *BeliefState
	assert.False(t, nilState.Tick())
}
