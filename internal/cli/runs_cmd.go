package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/moxieworks/moxie/internal/config"
	"github.com/moxieworks/moxie/internal/debug"
	"github.com/moxieworks/moxie/internal/gateway"
	"github.com/moxieworks/moxie/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List tracked background runs",
	RunE:  runRunsList,
}

var runsStopCmd = &cobra.Command{
	Use:   "stop <run-id>",
	Short: "Stop tracking a run and delete its child session",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsStop,
}

func init() {
	runsCmd.AddCommand(runsStopCmd)
	rootCmd.AddCommand(runsCmd)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	runs := st.LoadRuns()
	if len(runs) == 0 {
		fmt.Println(colorize(colorDim, "no tracked runs"))
		return nil
	}

	list := make([]*store.RunRecord, 0, len(runs))
	for _, rec := range runs {
		list = append(list, rec)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CreatedAt.Before(list[j].CreatedAt) })

	fmt.Printf("%-10s %-9s %-10s %-8s %s\n", "RUN", "STATE", "AGE", "CLEANUP", "TASK")
	for _, rec := range list {
		state := runState(rec)
		task := rec.Task
		if len(task) > 48 {
			task = task[:45] + "..."
		}
		fmt.Printf("%-10s %s %-10s %-8s %s\n",
			rec.RunID,
			colorize(statusStyle(state), fmt.Sprintf("%-9s", state)),
			ageString(rec.CreatedAt),
			string(rec.Cleanup),
			task,
		)
	}
	return nil
}

func runState(rec *store.RunRecord) string {
	switch {
	case !rec.AnnounceCompletedAt.IsZero():
		return "announced"
	case !rec.EndedAt.IsZero():
		return "ended"
	case !rec.StartedAt.IsZero():
		return "running"
	default:
		return "pending"
	}
}

func ageString(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func runRunsStop(cmd *cobra.Command, args []string) error {
	runID := args[0]

	// The registry owning the run is in the daemon; its persist step is the
	// snapshot's only writer. Route the stop through the gateway when a
	// daemon is attached, and touch the files directly only when it isn't.
	if err := stopViaDaemon(cmd.Context(), runID); err == nil {
		fmt.Printf("%s run %s\n", colorize(colorYellow, "stopped"), runID)
		return nil
	} else if !errors.Is(err, errNoDaemon) {
		return err
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	if err := stopDirect(st, runID); err != nil {
		return err
	}
	fmt.Printf("%s run %s %s\n",
		colorize(colorYellow, "stopped"), runID, colorize(colorDim, "(no daemon attached)"))
	return nil
}

// errNoDaemon marks a stop that could not reach a daemon and may fall back
// to direct store edits.
var errNoDaemon = errors.New("no daemon attached")

func stopViaDaemon(ctx context.Context, runID string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	client := gateway.New(cfg.Gateway.EffectiveURL(), cfg.Gateway.Token)
	dialCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Connect(dialCtx); err != nil {
		debug.LogKV("cli", "stop falling back to direct store edit", "run_id", runID, "err", err)
		return errNoDaemon
	}
	defer client.Close()
	return client.StopRun(ctx, runID)
}

// stopDirect removes the run from the snapshot and deletes its child
// session. Only safe while no daemon holds the registry.
func stopDirect(st *store.Store, runID string) error {
	runs := st.LoadRuns()
	rec, ok := runs[runID]
	if !ok {
		return fmt.Errorf("unknown run %q", runID)
	}
	delete(runs, runID)
	if err := st.SaveRuns(runs); err != nil {
		return fmt.Errorf("updating run snapshot: %w", err)
	}
	if err := st.DeleteSession(rec.ChildSessionKey, true); err != nil {
		return fmt.Errorf("deleting child session: %w", err)
	}
	return nil
}
