// Package main implements corectl - the cognitive scaffolding core's CLI.
//
// This file is the entry point and command registration hub. Command
// implementations are split across cmd_*.go files for maintainability.
//
// # File Index
//
// Entry Point & Global State:
//   - main.go        - Entry point, rootCmd, global flags, init(), wireCore()
//
// Turn Pipeline:
//   - cmd_turn.go     - turnCmd, chatCmd, runTurn(), runChat()
//
// Maintenance:
//   - cmd_maintain.go - maintainCmd, runMaintain()
//
// Organization Status:
//   - cmd_salute.go   - saluteCmd, runSalute()
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/corescaffold/cogkernel/internal/belief"
	"github.com/corescaffold/cogkernel/internal/config"
	"github.com/corescaffold/cogkernel/internal/embedding"
	"github.com/corescaffold/cogkernel/internal/logging"
	"github.com/corescaffold/cogkernel/internal/maintenance"
	"github.com/corescaffold/cogkernel/internal/memory"
	"github.com/corescaffold/cogkernel/internal/ontology"
	"github.com/corescaffold/cogkernel/internal/orgkernel"
	"github.com/corescaffold/cogkernel/internal/pipeline"
	"github.com/corescaffold/cogkernel/internal/rules"
	"github.com/corescaffold/cogkernel/internal/store"
	"github.com/corescaffold/cogkernel/internal/supervisor"
	"github.com/corescaffold/cogkernel/internal/toolgate"
	"github.com/corescaffold/cogkernel/internal/tools"
	"github.com/corescaffold/cogkernel/internal/tools/core"
	"github.com/corescaffold/cogkernel/internal/workflow"
)

var (
	// Global flags
	verbose    bool
	workspace  string
	configPath string
	timeout    time.Duration

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "corectl",
	Short: "corectl - the cognitive scaffolding core's turn-pipeline CLI",
	Long: `corectl drives the cognitive scaffolding core: a deterministic turn
pipeline wrapping an unreliable model call with belief tracking, role
routing, workflow traversal, memory retrieval, and anomaly supervision.

Logic and state machines decide what happens each turn; the model only
fills in the unstructured pieces the pipeline hands it.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		}
		if err := logging.Initialize(ws); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize file logging: %v\n", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

// coreHandle bundles the wired pipeline with the resources that need an
// orderly shutdown once a command is done with them.
type coreHandle struct {
	ctx     *pipeline.CoreContext
	vectors store.VectorStore
}

func (h *coreHandle) Close() error {
	if h.vectors != nil {
		return h.vectors.Close()
	}
	return nil
}

// wireCore loads configuration and constructs every pipeline component,
// mirroring the construction order spec §7 lists each component's
// inputs in: rules engine first (everything else may consult it),
// then belief/org/workflow/toolgate (turn-local components), then the
// vector store and embedder memory and ontology share, then
// maintenance/supervisor, then the tool registry.
func wireCore(ctx context.Context) (*coreHandle, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	rulesEngine := rules.NewEngine(cfg.Rules)
	if err := rulesEngine.LoadSchemas(); err != nil {
		logging.BootError("rule schema load failed, continuing with an empty ruleset: %v", err)
	}

	beliefTracker, err := belief.NewTracker(cfg.Belief, cfg.BeliefStateTTLTurns())
	if err != nil {
		return nil, fmt.Errorf("construct belief tracker: %w", err)
	}

	org := orgkernel.NewKernel(cfg.OrgKernel, rulesEngine)

	workflowEngine, err := workflow.NewEngine(cfg.Workflow, rulesEngine)
	if err != nil {
		return nil, fmt.Errorf("construct workflow engine: %w", err)
	}

	toolGate, err := toolgate.NewGate(cfg.ToolGate)
	if err != nil {
		return nil, fmt.Errorf("construct tool gate: %w", err)
	}

	embedder, err := embedding.NewEngineFromConfig(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("construct embedding engine: %w", err)
	}

	vectors, err := store.OpenSQLiteVecStore(cfg.Store, embedder.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	ontologyStore, err := ontology.NewStore(ctx, cfg.Ontology, vectors, embedder)
	if err != nil {
		_ = vectors.Close()
		return nil, fmt.Errorf("construct ontology store: %w", err)
	}

	memoryEngine := memory.NewEngine(cfg.Memory, vectors, embedder, ontologyStore, ontologyStore)
	maintenancePass := maintenance.NewPass(cfg.Maintenance, vectors, ontologyStore, cfg.Ontology, cfg.Memory.CoRetrievalLogPath)
	supervisorV := supervisor.NewSupervisor(cfg.Supervisor, rulesEngine)
	toolsRegistry := tools.NewRegistry()
	if err := core.RegisterAll(toolsRegistry); err != nil {
		_ = vectors.Close()
		return nil, fmt.Errorf("register builtin tools: %w", err)
	}

	cc := pipeline.NewCoreContext(cfg, rulesEngine, beliefTracker, org, workflowEngine, toolGate, memoryEngine, supervisorV, maintenancePass, toolsRegistry)
	return &coreHandle{ctx: cc, vectors: vectors}, nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "cogkernel.yaml", "Path to the core's configuration file")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Per-turn operation timeout")

	rootCmd.AddCommand(turnCmd, chatCmd, maintainCmd, saluteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
