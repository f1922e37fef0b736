package main

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/corescaffold/cogkernel/internal/belief"
	"github.com/corescaffold/cogkernel/internal/config"
	"github.com/corescaffold/cogkernel/internal/pipeline"
)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out)
}

func newMinimalCoreContext(t *testing.T) *pipeline.CoreContext {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Belief.SlotTaxonomyPath = t.TempDir() + "/slot_taxonomy.json"

	tracker, err := belief.NewTracker(cfg.Belief, cfg.BeliefStateTTLTurns())
	require.NoError(t, err)

	return pipeline.NewCoreContext(cfg, nil, tracker, nil, nil, nil, nil, nil, nil, nil)
}

func TestRunOneTurnPrintsClarifyingQuestion(t *testing.T) {
	cc := newMinimalCoreContext(t)

	out := captureStdout(t, func() {
		runOneTurn(context.Background(), cc, 1, "refactor the auth module", nil)
	})

	require.Contains(t, out, "[clarify]")
	require.Contains(t, out, "Which file?")
}

func TestSignalContextCancelsOnDone(t *testing.T) {
	ctx, cancel := signalContext()
	defer cancel()

	select {
	case <-ctx.Done():
		t.Fatal("context should not be canceled before timeout or signal")
	default:
	}
	cancel()
	<-ctx.Done()
	require.ErrorIs(t, ctx.Err(), context.Canceled)
}
