package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/corescaffold/cogkernel/internal/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine(config.DefaultRulesConfig())
	require.NoError(t, e.LoadSchemaString(`
		Decl edge(X, Y) bound [/string, /string].
		Decl path(X, Y) bound [/string, /string].
		path(X, Y) :- edge(X, Y).
		path(X, Z) :- edge(X, Y), path(Y, Z).
	`))
	return e
}

func TestAssertAndQueryDerivedFact(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.AssertAll([]Fact{
		{Predicate: "edge", Args: []interface{}{"a", "b"}},
		{Predicate: "edge", Args: []interface{}{"b", "c"}},
	}))

	res, err := e.Query(context.Background(), "path(a, X)")
	require.NoError(t, err)
	require.Len(t, res.Bindings, 2)

	var targets []string
	for _, b := range res.Bindings {
		targets = append(targets, b["X"].(string))
	}
	assert.ElementsMatch(t, []string{"b", "c"}, targets)
}

func TestHoldsFalseForUnsatisfiedGroundQuery(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Assert("edge", "a", "b"))

	ok, err := e.Holds(context.Background(), "path(a, c)")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = e.Holds(context.Background(), "path(a, b)")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestResetClearsFactsButKeepsSchema(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.Assert("edge", "a", "b"))
	assert.Equal(t, 1, e.FactCount())

	e.Reset()
	assert.Equal(t, 0, e.FactCount())

	ok, err := e.Holds(context.Background(), "path(a, b)")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, e.Assert("edge", "a", "b"))
	ok, err = e.Holds(context.Background(), "path(a, b)")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAssertUnknownPredicateErrors(t *testing.T) {
	e := newTestEngine(t)
	err := e.Assert("not_declared", "x")
	assert.Error(t, err)
}
