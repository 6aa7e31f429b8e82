package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/moxieworks/moxie/internal/orchestrator"
)

var sendCmd = &cobra.Command{
	Use:   "send <agent> <message...>",
	Short: "Send a message to another live agent",
	Long: `Send a message directly to another agent's session and print its reply.
Cross-agent messaging must be enabled and both agents must be on the
configured allow list. With --timeout 0 the send is fire-and-forget.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().String("from", "main", "Sending agent ID")
	sendCmd.Flags().Duration("timeout", 30*time.Second, "Synchronous wait bound (0 = fire-and-forget)")
	sendCmd.Flags().Int("max-turns", 0, "Ping-pong turn bound override (0 = configured)")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	toAgent := args[0]
	message := strings.Join(args[1:], " ")
	fromAgent, _ := cmd.Flags().GetString("from")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	maxTurns, _ := cmd.Flags().GetInt("max-turns")

	o, client, err := connectOrchestrator(cmd.Context())
	if err != nil {
		return err
	}
	defer client.Close()
	defer o.Close()

	res := o.SendToSession(cmd.Context(), orchestrator.SendRequest{
		FromAgentID: fromAgent,
		ToAgentID:   toAgent,
		Message:     message,
		Timeout:     timeout,
		MaxTurns:    maxTurns,
	})
	switch res.Status {
	case orchestrator.StatusOK:
		fmt.Printf("%s %s\n", colorize(colorCyan, toAgent+":"), res.Reply)
	case orchestrator.StatusAccepted:
		fmt.Printf("%s run %s\n", colorize(colorGreen, "sent"), res.RunID)
	case orchestrator.StatusForbidden:
		return fmt.Errorf("forbidden: %s", res.Error)
	case orchestrator.StatusTimeout:
		fmt.Printf("%s no reply within %s (exchange continues in background, run %s)\n",
			colorize(colorYellow, "timeout"), timeout, res.RunID)
	default:
		return fmt.Errorf("send failed: %s", res.Error)
	}
	return nil
}
