package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moxieworks/moxie/internal/buildinfo"
	"github.com/moxieworks/moxie/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show state overview",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	bi := buildinfo.Current()
	fmt.Printf("%s v%s (%s)\n", colorize(colorBold, "moxie"), bi.Version, bi.CommitHash)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	st, err := openStore()
	if err != nil {
		return err
	}

	runs := st.LoadRuns()
	pending, ended, announced := 0, 0, 0
	for _, rec := range runs {
		switch runState(rec) {
		case "announced":
			announced++
		case "ended":
			ended++
		default:
			pending++
		}
	}
	sessionsList, err := st.ListSessions()
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	fmt.Printf("state dir:   %s\n", st.Root())
	fmt.Printf("gateway:     %s\n", cfg.Gateway.EffectiveURL())
	fmt.Printf("runs:        %d tracked (%d pending, %d ended, %d announced)\n",
		len(runs), pending, ended, announced)
	fmt.Printf("sessions:    %d\n", len(sessionsList))
	if cfg.Chat.CrossAgentEnabled {
		fmt.Printf("cross-agent: enabled for %v (max %d turns)\n",
			cfg.Chat.AllowedPeers, cfg.Chat.EffectiveMaxTurns())
	} else {
		fmt.Printf("cross-agent: %s\n", colorize(colorDim, "disabled"))
	}
	return nil
}
