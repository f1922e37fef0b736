package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corescaffold/cogkernel/internal/pipeline"
)

var turnCounter int

var turnCmd = &cobra.Command{
	Use:   "turn [message]",
	Short: "Run a single turn through the pipeline and print the composed prompt",
	Long: `turn runs Begin for one message, prints the TurnPlan the model would
receive, then immediately calls End as if the model answered without
invoking any tool. Useful for inspecting role routing, workflow
traversal, and memory injection without a live model in the loop.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTurn,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Drive the pipeline interactively, one line of stdin per turn",
	RunE:  runChat,
}

func runTurn(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	handle, err := wireCore(ctx)
	if err != nil {
		return fmt.Errorf("wire core: %w", err)
	}
	defer handle.Close()

	message := strings.Join(args, " ")
	turnCounter++
	runOneTurn(ctx, handle.ctx, turnCounter, message, nil)
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	handle, err := wireCore(ctx)
	if err != nil {
		return fmt.Errorf("wire core: %w", err)
	}
	defer handle.Close()

	if handle.ctx.Org != nil {
		stopWatch, err := handle.ctx.Org.Watch(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: organization watcher not started: %v\n", err)
		} else {
			defer stopWatch()
		}
	}

	fmt.Println("corectl chat - one message per line, Ctrl-D to exit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		turnCounter++
		runOneTurn(ctx, handle.ctx, turnCounter, line, scanner)
	}
	return scanner.Err()
}

// runOneTurn composes the prompt for one message, prints it, and walks
// the turn to completion. When stdin is available it also offers the
// operator a chance to name a tool to exercise ExecuteTool with, so the
// tool gate and PACE counters can be driven interactively; otherwise it
// closes the turn with no tool call and a clean End.
func runOneTurn(ctx context.Context, cc *pipeline.CoreContext, turn int, message string, stdin *bufio.Scanner) {
	plan := cc.Begin(ctx, turn, message)
	if plan.ClarifyingQuestion != "" {
		fmt.Printf("[clarify] %s\n", plan.ClarifyingQuestion)
		return
	}

	fmt.Printf("--- turn %d (role=%s workflow=%s pace=%s) ---\n", turn, plan.RoleID, plan.WorkflowID, plan.PaceLevel)
	fmt.Println(plan.PromptText)

	canceled := false
	if stdin != nil {
		fmt.Print("tool to run (blank to skip): ")
		if stdin.Scan() {
			toolName := strings.TrimSpace(stdin.Text())
			if toolName != "" {
				if _, err := cc.ExecuteTool(ctx, turn, toolName, map[string]interface{}{}); err != nil {
					fmt.Printf("[tool error] %v\n", err)
				}
			}
		}
	}

	steering := cc.End(ctx, turn, true, canceled)
	for _, s := range steering {
		fmt.Printf("[steering] %s: %s\n", s.Anomaly, s.Message)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx, cancel
}
