// Package cli implements the moxie command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/moxieworks/moxie/internal/buildinfo"
	"github.com/moxieworks/moxie/internal/debug"
)

const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

var rootCmd = &cobra.Command{
	Use:   "moxie",
	Short: "Subagent orchestration daemon for multi-channel chat agents",
	Long: colorBold + `moxie` + colorReset + ` v` + buildinfo.Current().Version + `

  The orchestration layer of a multi-channel chat-agent platform: top-level
  agents delegate work to background subagents, exchange messages with other
  live agents, and the results reach whoever asked, across restarts and
  slow networks.

` + colorBold + `Getting started:` + colorReset + `
  moxie daemon                    Connect to the chat gateway and serve tool calls
  moxie spawn "task..."           Launch a background run from the command line
  moxie send <agent> "msg..."     Message another live agent
  moxie runs                      List tracked runs
  moxie status                    Show daemon state overview`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.PersistentFlags().Bool("debug", false, "Enable verbose debug logging to ~/.moxie/debug/")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		debugFlag, _ := cmd.Flags().GetBool("debug")
		if !debugFlag && !debug.ShouldEnableFromEnv() {
			return nil
		}
		logPath, err := debug.Init()
		if err != nil {
			return fmt.Errorf("initializing debug logger: %w", err)
		}
		fmt.Fprintf(os.Stderr, "%s[debug]%s logging to %s\n", colorDim, colorReset, logPath)
		bi := buildinfo.Current()
		debug.LogKV("cli", "moxie starting",
			"version", bi.Version,
			"commit", bi.CommitHash,
			"pid", os.Getpid(),
			"command", cmd.Name(),
			"args", args,
		)
		return nil
	}
}

// Execute runs the root command.
func Execute() {
	defer debug.Close()
	if err := rootCmd.Execute(); err != nil {
		debug.Logf("cli", "exit with error: %v", err)
		fmt.Fprintf(os.Stderr, "%sError: %s%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}
	debug.Log("cli", "exit success")
}
