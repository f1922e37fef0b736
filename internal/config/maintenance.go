package config

// MaintenanceConfig configures the Maintenance Pass (spec §4.7): periodic
// deduplication, related-memory linking, cluster detection, dormancy
// flagging, and ontology upkeep.
type MaintenanceConfig struct {
	Enabled bool `yaml:"enabled"`

	// IntervalLoops runs maintenance every N idle turns (default 25).
	IntervalLoops int `yaml:"interval_loops"`

	// MaxPairsPerCycle bounds the O(n^2)-ish dedup/related-link scan per
	// cycle so a large memory store doesn't stall a turn (default 20).
	MaxPairsPerCycle int `yaml:"max_pairs_per_cycle"`

	// TagOverlapThreshold is the minimum shared-tag count to propose a
	// related-memory link (default 3).
	TagOverlapThreshold int `yaml:"tag_overlap_threshold"`

	// MaxRelatedPerMemory bounds how many related links a memory accumulates
	// (default 10).
	MaxRelatedPerMemory int `yaml:"max_related_per_memory"`

	// ClusterThreshold is the co-retrieval count a memory pair must exceed
	// to be reported as a cluster candidate (default 5).
	ClusterThreshold int `yaml:"cluster_threshold"`

	// DormancyThresholdDays flags a memory dormant once unaccessed this long.
	DormancyThresholdDays int `yaml:"dormancy_threshold_days"`

	// ArchivalThresholdCycles is carried in the config file shape; the
	// maintenance pass does not read it (dormancy flagging uses
	// DormancyThresholdDays) and proposes no archival.
	ArchivalThresholdCycles int `yaml:"archival_threshold_cycles"`

	// ReportPath is where the maintenance pass writes its summary.
	ReportPath string `yaml:"report_path"`
}

func DefaultMaintenanceConfig() MaintenanceConfig {
	return MaintenanceConfig{
		Enabled:                 true,
		IntervalLoops:           25,
		MaxPairsPerCycle:        20,
		TagOverlapThreshold:     3,
		MaxRelatedPerMemory:     10,
		ClusterThreshold:        5,
		DormancyThresholdDays:   30,
		ArchivalThresholdCycles: 4,
		ReportPath:              "memory/maintenance_report.json",
	}
}
