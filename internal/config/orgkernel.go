package config

// OrgKernelConfig configures the Organization Kernel (spec §4.2).
type OrgKernelConfig struct {
	Enabled bool `yaml:"enabled"`

	// OrganizationsDir is the root of organizations/ (spec §6 layout):
	// active.json sentinel, <org_id>.json templates, roles/<role_id>.json,
	// reports/<role_id>_latest.json, reports/archive/.
	OrganizationsDir string `yaml:"organizations_dir"`

	// ArchiveTTL controls when SALUTE archive entries become cleanup
	// candidates (§4.2, default 1h; cleanup itself is not required for
	// correctness).
	ArchiveTTL string `yaml:"archive_ttl"`

	// WatchForChanges enables an fsnotify watcher on active.json so a
	// macrocosm deployment picks up organization/role changes without a
	// restart (§5 microcosm/macrocosm parity).
	WatchForChanges bool `yaml:"watch_for_changes"`
}

func DefaultOrgKernelConfig() OrgKernelConfig {
	return OrgKernelConfig{
		Enabled:          true,
		OrganizationsDir: "organizations",
		ArchiveTTL:       "1h",
		WatchForChanges:  true,
	}
}
