package orgkernel

import (
	"fmt"
	"sort"

	"github.com/corescaffold/cogkernel/internal/config"
	"github.com/corescaffold/cogkernel/internal/logging"
	"github.com/corescaffold/cogkernel/internal/outcome"
	"github.com/corescaffold/cogkernel/internal/rules"
)

// Kernel loads the active organization and its roles, selects the role
// for a turn's domain, and tracks PACE hysteresis per role.
type Kernel struct {
	cfg   config.OrgKernelConfig
	rules *rules.Engine

	org   Organization
	roles map[string]Role
	ready bool

	paceTrackers map[string]*paceTracker
}

// NewKernel constructs a Kernel and loads the active organization, if
// any (spec §4.2: "Activates only if an active organization sentinel
// exists"). rulesEngine may be nil; PACE tier facts are then tracked
// only in memory, without cross-component Mangle queries.
func NewKernel(cfg config.OrgKernelConfig, rulesEngine *rules.Engine) *Kernel {
	k := &Kernel{
		cfg:          cfg,
		rules:        rulesEngine,
		paceTrackers: make(map[string]*paceTracker),
	}
	if !cfg.Enabled {
		return k
	}
	if err := k.reload(); err != nil {
		logging.OrgKernel("no active organization loaded: %v", err)
	}
	return k
}

// reload re-reads active.json and the associated organization/role
// profiles from disk.
func (k *Kernel) reload() error {
	orgID, active, err := loadActiveOrgID(k.cfg.OrganizationsDir)
	if err != nil {
		return fmt.Errorf("read active sentinel: %w", err)
	}
	if !active {
		k.ready = false
		return fmt.Errorf("no organization is active")
	}

	org, err := loadOrganization(k.cfg.OrganizationsDir, orgID)
	if err != nil {
		k.ready = false
		return err
	}
	roles, err := loadRoles(k.cfg.OrganizationsDir, org)
	if err != nil {
		k.ready = false
		return err
	}

	k.org = org
	k.roles = roles
	k.ready = true
	logging.OrgKernel("organization %s active, mission=%q, %d role(s) loaded", org.OrgID, org.Mission, len(roles))
	return nil
}

// Reload re-reads organization/role state from disk, for callers that
// watch active.json for changes (cfg.WatchForChanges).
func (k *Kernel) Reload() error {
	return k.reload()
}

// Active reports whether an organization is currently loaded.
func (k *Kernel) Active() bool {
	return k.cfg.Enabled && k.ready
}

// Organization returns the currently active organization, if any.
func (k *Kernel) Organization() (Organization, bool) {
	return k.org, k.Active()
}

// SelectRole picks the role whose capabilities.domains contains domain,
// breaking ties specialist > executive > commander, then by the
// lexically smaller role_id (spec §4.2). It returns outcome.Skip when
// no organization is active or no role matches, never outcome.Fail: a
// missing role assignment degrades the turn to "no role active" rather
// than aborting it.
func (k *Kernel) SelectRole(domain string) outcome.Outcome[Role] {
	if !k.Active() {
		return outcome.Skip[Role]("no organization active")
	}

	var candidates []Role
	for _, role := range k.roles {
		for _, d := range role.Capabilities.Domains {
			if d == domain {
				candidates = append(candidates, role)
				break
			}
		}
	}
	if len(candidates) == 0 {
		return outcome.Skip[Role](fmt.Sprintf("no role capable of domain %q", domain))
	}

	sort.Slice(candidates, func(i, j int) bool {
		ri, rj := roleTypeRank(candidates[i].RoleType), roleTypeRank(candidates[j].RoleType)
		if ri != rj {
			return ri < rj
		}
		return candidates[i].RoleID < candidates[j].RoleID
	})

	selected := candidates[0]
	logging.OrgKernelDebug("selected role=%s type=%s for domain=%s (%d candidate(s))", selected.RoleID, selected.RoleType, domain, len(candidates))
	return outcome.Ok(selected)
}

// RoleByID looks up a loaded role profile directly, for callers
// (Workflow, ToolGate) that already know the role from turn context.
func (k *Kernel) RoleByID(roleID string) (Role, bool) {
	if !k.Active() {
		return Role{}, false
	}
	role, ok := k.roles[roleID]
	return role, ok
}

// RoleIDs lists every loaded role, for callers (e.g. a status command)
// that want to report on the whole organization rather than one turn's
// selected role.
func (k *Kernel) RoleIDs() []string {
	ids := make([]string, 0, len(k.roles))
	for id := range k.roles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ShouldEmitSALUTE reports whether turnsSinceLast has reached the
// role's salute_interval_turns, or a PACE tier just transitioned
// (spec §4.2: emit every N turns, on PACE transitions, on workflow
// state changes).
func ShouldEmitSALUTE(role Role, turnsSinceLast int, paceTransitioned bool) bool {
	if paceTransitioned {
		return true
	}
	interval := role.Doctrine.SALUTEIntervalTurns
	if interval <= 0 {
		return false
	}
	return turnsSinceLast >= interval
}
