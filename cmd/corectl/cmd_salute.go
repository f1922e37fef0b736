package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corescaffold/cogkernel/internal/orgkernel"
)

var saluteCmd = &cobra.Command{
	Use:   "salute [role-id]",
	Short: "Print the latest SALUTE status report for one role, or every role",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSalute,
}

func runSalute(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	handle, err := wireCore(ctx)
	if err != nil {
		return fmt.Errorf("wire core: %w", err)
	}
	defer handle.Close()

	org := handle.ctx.Org
	if org == nil || !org.Active() {
		return fmt.Errorf("no active organization")
	}

	roleIDs := org.RoleIDs()
	if len(args) == 1 {
		roleIDs = []string{args[0]}
	}
	if len(roleIDs) == 0 {
		fmt.Println("no roles loaded")
		return nil
	}

	organizationsDir := handle.ctx.Config.OrgKernel.OrganizationsDir
	for _, roleID := range roleIDs {
		report, err := orgkernel.LoadLatestSALUTE(organizationsDir, roleID)
		if err != nil {
			fmt.Printf("%s: no report yet (%v)\n", roleID, err)
			continue
		}
		fmt.Printf("%s: state=%s pace=%s health=%s task=%q workflow=%s step=%s/%d turn=%d\n",
			roleID, report.Status.State, report.Status.PaceLevel, report.Status.Health,
			report.Activity.CurrentTask, report.Activity.Workflow, report.Activity.Step,
			report.Activity.TotalSteps, report.Time.TurnsElapsed)
	}
	return nil
}
