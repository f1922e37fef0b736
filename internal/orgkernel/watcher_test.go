package orgkernel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corescaffold/cogkernel/internal/config"
)

func TestWatchReloadsOnActiveSentinelChange(t *testing.T) {
	dir := t.TempDir()
	writeOrg(t, dir)

	cfg := config.DefaultOrgKernelConfig()
	cfg.OrganizationsDir = dir
	k := NewKernel(cfg, nil)
	require.True(t, k.Active())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop, err := k.Watch(ctx)
	require.NoError(t, err)
	defer stop()

	require.NoError(t, writeJSONFixture(dir+"/second.json", Organization{
		OrgID:   "second",
		Mission: "stand up a new line of business",
	}))
	require.NoError(t, SetActiveOrganization(dir, "second"))

	require.Eventually(t, func() bool {
		org, active := k.Organization()
		return active && org.OrgID == "second"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatchDisabledByConfigIsNoop(t *testing.T) {
	dir := t.TempDir()
	writeOrg(t, dir)

	cfg := config.DefaultOrgKernelConfig()
	cfg.OrganizationsDir = dir
	cfg.WatchForChanges = false
	k := NewKernel(cfg, nil)

	stop, err := k.Watch(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, stop)
	stop()
}
