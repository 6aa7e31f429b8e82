package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/moxieworks/moxie/internal/config"
	"github.com/moxieworks/moxie/internal/debug"
	"github.com/moxieworks/moxie/internal/events"
	"github.com/moxieworks/moxie/internal/gateway"
	"github.com/moxieworks/moxie/internal/orchestrator"
	"github.com/moxieworks/moxie/internal/sessions"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Connect to the chat gateway and serve spawn/send tool calls",
	Long: `Run the orchestration daemon. It connects to the chat gateway over
websocket, resumes any runs persisted by a previous process, and serves
spawn and send tool calls arriving from chat sessions until interrupted.`,
	RunE: runDaemon,
}

func init() {
	daemonCmd.Flags().String("gateway", "", "Gateway websocket URL (overrides config)")
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	url := cfg.Gateway.EffectiveURL()
	if flag, _ := cmd.Flags().GetString("gateway"); flag != "" {
		url = flag
	}

	st, err := openStore()
	if err != nil {
		return err
	}

	client := gateway.New(url, cfg.Gateway.Token)
	files := sessions.NewFileStore(st)
	o := orchestrator.New(orchestrator.Options{
		Store:     st,
		Runtime:   client,
		Messenger: client,
		Sessions:  files,
		Bus:       events.NewBus(),
		Config:    cfg,
	})
	defer o.Close()
	client.SetTools(o)
	client.SetAppender(sessions.NewUsageRecorder(files, st))

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	err = client.Connect(ctx)
	cancel()
	if err != nil {
		return err
	}
	defer client.Close()

	o.Resume()

	fmt.Printf("%s moxie daemon connected to %s\n", colorize(colorGreen, "●"), url)
	fmt.Println(colorize(colorDim, "press ctrl+c to stop"))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	debug.LogKV("cli", "daemon stopping", "signal", sig.String())
	fmt.Println("\nshutting down")
	return nil
}
