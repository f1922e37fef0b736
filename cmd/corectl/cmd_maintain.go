package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Force an out-of-band maintenance pass and print its report",
	Long: `maintain runs the maintenance pass immediately instead of waiting
for its turn-count interval: dedup, relatedness linking, cluster
candidates, dormancy flags, and ontology consolidation.`,
	RunE: runMaintain,
}

func runMaintain(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	handle, err := wireCore(ctx)
	if err != nil {
		return fmt.Errorf("wire core: %w", err)
	}
	defer handle.Close()

	if handle.ctx.Maintenance == nil {
		return fmt.Errorf("maintenance pass is disabled in configuration")
	}

	report := handle.ctx.Maintenance.Run(ctx, turnCounter)
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
