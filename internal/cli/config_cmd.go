package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moxieworks/moxie/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with the current (default) values",
	RunE:  runConfigInit,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	fmt.Println(colorize(colorDim, fmt.Sprintf(
		"effective: retention %s, sweep %s, announce wait %s, wait timeout %s, max turns %d",
		cfg.Subagents.EffectiveRetention(),
		cfg.Subagents.EffectiveSweepInterval(),
		cfg.Subagents.EffectiveAnnounceWait(),
		cfg.Subagents.EffectiveWaitTimeout(),
		cfg.Chat.EffectiveMaxTurns(),
	)))
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("wrote %s\n", colorize(colorBold, config.Dir()+"/config.json"))
	return nil
}
