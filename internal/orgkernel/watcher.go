package orgkernel

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/corescaffold/cogkernel/internal/logging"
)

// debounceWindow absorbs the burst of events a single atomic-rename
// write to active.json produces (temp file create, rename, sometimes a
// trailing chmod).
const debounceWindow = 200 * time.Millisecond

// Watch starts an fsnotify watcher on organizations/active.json and
// calls Reload on every settled change, so a macrocosm deployment picks
// up an operator switching the active organization without a restart
// (spec §5 microcosm/macrocosm parity; cfg.WatchForChanges gates this).
// It returns a stop function; the watcher goroutine exits when either
// ctx is canceled or stop is called.
func (k *Kernel) Watch(ctx context.Context) (stop func(), err error) {
	if !k.cfg.WatchForChanges {
		return func() {}, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(k.cfg.OrganizationsDir); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	sentinel := filepath.Join(k.cfg.OrganizationsDir, "active.json")
	done := make(chan struct{})
	go k.watchLoop(ctx, watcher, sentinel, done)

	stop = func() {
		_ = watcher.Close()
		<-done
	}
	return stop, nil
}

func (k *Kernel) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, sentinel string, done chan struct{}) {
	defer close(done)

	var pending bool
	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != sentinel {
				continue
			}
			pending = true
			timer.Reset(debounceWindow)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.OrgKernelDebug("active.json watcher error: %v", err)

		case <-timer.C:
			if !pending {
				continue
			}
			pending = false
			if err := k.Reload(); err != nil {
				logging.OrgKernelDebug("reload after active.json change failed: %v", err)
				continue
			}
			logging.OrgKernel("reloaded organization after active.json change")
		}
	}
}
