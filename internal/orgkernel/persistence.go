package orgkernel

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/corescaffold/cogkernel/internal/store"
)

// loadActiveOrgID reads organizations/active.json; an absent sentinel
// means no organization is active (spec §4.2: "Activates only if an
// active organization sentinel exists").
func loadActiveOrgID(organizationsDir string) (string, bool, error) {
	var sentinel activeSentinel
	path := filepath.Join(organizationsDir, "active.json")
	if err := store.ReadJSON(path, &sentinel); err != nil {
		return "", false, err
	}
	if sentinel.OrgID == "" {
		return "", false, nil
	}
	return sentinel.OrgID, true, nil
}

// SetActiveOrganization writes the active.json sentinel.
func SetActiveOrganization(organizationsDir, orgID string) error {
	return store.WriteJSON(filepath.Join(organizationsDir, "active.json"), activeSentinel{OrgID: orgID})
}

func loadOrganization(organizationsDir, orgID string) (Organization, error) {
	var org Organization
	path := filepath.Join(organizationsDir, orgID+".json")
	if err := store.ReadJSON(path, &org); err != nil {
		return Organization{}, err
	}
	if org.OrgID == "" {
		return Organization{}, fmt.Errorf("organization %s not found at %s", orgID, path)
	}
	return org, nil
}

// loadRoles loads every role profile referenced by org's hierarchy from
// organizations/roles/<role_id>.json.
func loadRoles(organizationsDir string, org Organization) (map[string]Role, error) {
	roles := make(map[string]Role)
	for roleID, subordinates := range org.Hierarchy {
		for _, id := range append([]string{roleID}, subordinates...) {
			if _, loaded := roles[id]; loaded {
				continue
			}
			role, err := loadRole(organizationsDir, id)
			if err != nil {
				continue // a missing role profile degrades: it simply never matches
			}
			roles[id] = role
		}
	}
	return roles, nil
}

func loadRole(organizationsDir, roleID string) (Role, error) {
	var role Role
	path := filepath.Join(organizationsDir, "roles", roleID+".json")
	if err := store.ReadJSON(path, &role); err != nil {
		return Role{}, err
	}
	if role.RoleID == "" {
		return Role{}, fmt.Errorf("role %s not found at %s", roleID, path)
	}
	return role, nil
}

// listRoleIDs enumerates every *.json under organizations/roles/,
// independent of any organization's hierarchy. Nothing in the module
// calls it; cmd/corectl salute lists roles through Kernel.RoleIDs,
// which covers only the active organization's loaded roles.
func listRoleIDs(organizationsDir string) ([]string, error) {
	dir := filepath.Join(organizationsDir, "roles")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	return ids, nil
}
