package orgkernel

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/corescaffold/cogkernel/internal/logging"
	"github.com/corescaffold/cogkernel/internal/store"
)

// Health is the SALUTE status.health enum.
type Health string

const (
	HealthNominal  Health = "nominal"
	HealthDegraded Health = "degraded"
	HealthCritical Health = "critical"
)

type saluteStatus struct {
	State      string  `json:"state"` // idle|active|waiting|error_recovery|escalating|complete|aborted
	Progress   float64 `json:"progress"`
	PaceLevel  string  `json:"pace_level"`
	Health     Health  `json:"health"`
}

type saluteActivity struct {
	CurrentTask      string `json:"current_task"`
	Domain           string `json:"domain"`
	Workflow         string `json:"workflow"`
	Step             string `json:"step"`
	TotalSteps       int    `json:"total_steps"`
	CurrentTool      string `json:"current_tool"`
	IterationsOnStep int    `json:"iterations_on_step"`
}

type saluteLocation struct {
	CWD              string   `json:"cwd"`
	FilesModified    []string `json:"files_modified"`
	FilesRead        []string `json:"files_read"`
	ResourcesClaimed []string `json:"resources_claimed"`
}

type saluteUnit struct {
	RoleID       string `json:"role_id"`
	ReportsTo    string `json:"reports_to"`
	Organization string `json:"organization"`
}

type saluteTime struct {
	Timestamp            string `json:"timestamp"`
	TaskStarted          string `json:"task_started"`
	ElapsedS             float64 `json:"elapsed_s"`
	TurnsElapsed         int    `json:"turns_elapsed"`
	TurnsSinceProgress   int    `json:"turns_since_progress"`
	ContextTurnsRemaining *int  `json:"context_turns_remaining,omitempty"`
}

type saluteEnvironment struct {
	Model                    string  `json:"model"`
	ContextFillPct           float64 `json:"context_fill_pct"`
	ContextTokensUsed        int     `json:"context_tokens_used"`
	ContextTokensMax         int     `json:"context_tokens_max"`
	ToolFailuresConsecutive  int     `json:"tool_failures_consecutive"`
	ToolFailuresTotal        int     `json:"tool_failures_total"`
	MemoryFragmentsStored    int     `json:"memory_fragments_stored"`
}

// SALUTEReport is the fixed-schema status record the Org Kernel emits
// (spec §3/§4.2): Status/Activity/Location/Unit/Time/Environment.
type SALUTEReport struct {
	Status      saluteStatus      `json:"status"`
	Activity    saluteActivity    `json:"activity"`
	Location    saluteLocation    `json:"location"`
	Unit        saluteUnit        `json:"unit"`
	Time        saluteTime        `json:"time"`
	Environment saluteEnvironment `json:"environment"`
}

// EmitSALUTE overwrites reports/<role_id>_latest.json and writes an
// immutable archive copy named reports/archive/<role_id>_<iso>.json
// (spec §4.2). Called on every doctrine.salute_interval_turns turns, on
// any PACE transition, and on workflow state changes.
func EmitSALUTE(organizationsDir, roleID string, report SALUTEReport) error {
	report.Time.Timestamp = time.Now().UTC().Format(time.RFC3339)

	latestPath := filepath.Join(organizationsDir, "reports", roleID+"_latest.json")
	if err := store.WriteJSON(latestPath, report); err != nil {
		return fmt.Errorf("write salute latest for %s: %w", roleID, err)
	}

	archiveName := fmt.Sprintf("%s_%s.json", roleID, sanitizeTimestamp(report.Time.Timestamp))
	archivePath := filepath.Join(organizationsDir, "reports", "archive", archiveName)
	if err := store.WriteJSON(archivePath, report); err != nil {
		return fmt.Errorf("write salute archive for %s: %w", roleID, err)
	}

	logging.OrgKernel("SALUTE emitted for role=%s state=%s pace=%s", roleID, report.Status.State, report.Status.PaceLevel)
	return nil
}

// LoadLatestSALUTE reads the latest SALUTE record for a role, if any.
func LoadLatestSALUTE(organizationsDir, roleID string) (SALUTEReport, error) {
	var report SALUTEReport
	path := filepath.Join(organizationsDir, "reports", roleID+"_latest.json")
	err := store.ReadJSON(path, &report)
	return report, err
}

func sanitizeTimestamp(ts string) string {
	out := make([]byte, 0, len(ts))
	for _, r := range ts {
		switch r {
		case ':':
			continue
		default:
			out = append(out, byte(r))
		}
	}
	return string(out)
}
