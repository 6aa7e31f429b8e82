package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/moxieworks/moxie/internal/config"
	"github.com/moxieworks/moxie/internal/events"
	"github.com/moxieworks/moxie/internal/gateway"
	"github.com/moxieworks/moxie/internal/orchestrator"
	"github.com/moxieworks/moxie/internal/sessions"
	"github.com/moxieworks/moxie/internal/store"
)

var spawnCmd = &cobra.Command{
	Use:   "spawn <task...>",
	Short: "Launch a background subagent run",
	Long: `Register a background run for the given task. The run executes through
the chat gateway; its announce is delivered to the requester session's
channel when the run finishes.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSpawn,
}

func init() {
	spawnCmd.Flags().String("agent", "", "Agent to run the child under (default: requester's agent)")
	spawnCmd.Flags().String("requester", "agent:main:main", "Requester session key")
	spawnCmd.Flags().String("label", "", "Label for the child session")
	spawnCmd.Flags().String("cleanup", "delete", "Cleanup policy: delete or keep")
	spawnCmd.Flags().Duration("timeout", 0, "Completion wait bound (0 = configured default)")
	rootCmd.AddCommand(spawnCmd)
}

// connectOrchestrator builds a store-backed orchestrator wired to the
// gateway, for one-shot CLI operations.
func connectOrchestrator(ctx context.Context) (*orchestrator.Orchestrator, *gateway.Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	st, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	client := gateway.New(cfg.Gateway.EffectiveURL(), cfg.Gateway.Token)
	files := sessions.NewFileStore(st)
	o := orchestrator.New(orchestrator.Options{
		Store:     st,
		Runtime:   client,
		Messenger: client,
		Sessions:  files,
		Bus:       events.NewBus(),
		Config:    cfg,
	})
	client.SetTools(o)
	client.SetAppender(sessions.NewUsageRecorder(files, st))
	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := client.Connect(dialCtx); err != nil {
		o.Close()
		return nil, nil, err
	}
	return o, client, nil
}

func runSpawn(cmd *cobra.Command, args []string) error {
	task := strings.Join(args, " ")
	agentID, _ := cmd.Flags().GetString("agent")
	requester, _ := cmd.Flags().GetString("requester")
	label, _ := cmd.Flags().GetString("label")
	cleanup, _ := cmd.Flags().GetString("cleanup")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	o, client, err := connectOrchestrator(cmd.Context())
	if err != nil {
		return err
	}
	defer client.Close()
	defer o.Close()

	res := o.Spawn(cmd.Context(), orchestrator.SpawnRequest{
		AgentID:             agentID,
		RequesterSessionKey: requester,
		Task:                task,
		Label:               label,
		Cleanup:             store.CleanupMode(cleanup),
		Timeout:             timeout,
	})
	if res.Status != orchestrator.StatusAccepted {
		return fmt.Errorf("spawn %s: %s", res.Status, res.Error)
	}
	fmt.Printf("%s run %s\n", colorize(colorGreen, "accepted"), colorize(colorBold, res.RunID))

	// The waiter and announce run in the background; give them a moment so
	// short tasks announce before this process exits.
	if timeout > 0 {
		waitForRunSettled(o, res.RunID, timeout+5*time.Second)
	}
	return nil
}

// waitForRunSettled polls until the run's announce concluded or the bound
// elapses.
func waitForRunSettled(o *orchestrator.Orchestrator, runID string, bound time.Duration) {
	deadline := time.Now().Add(bound)
	for time.Now().Before(deadline) {
		rec := o.Registry().Get(runID)
		if rec == nil || !rec.AnnounceCompletedAt.IsZero() {
			return
		}
		time.Sleep(250 * time.Millisecond)
	}
}
