package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mistakeknot/briefq/internal/cli"
)

func newKeysCmd() *cobra.Command {
	keys := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys",
	}

	var agent string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a key for an agent and add it to the keys file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			key, err := cli.InitKeysFile(cfg.KeysFile, agent)
			if err != nil {
				return err
			}
			fmt.Printf("added key for %s to %s\n%s\n", agent, cfg.KeysFile, key)
			return nil
		},
	}
	initCmd.Flags().StringVar(&agent, "agent", "", "agent the key authenticates as")
	_ = initCmd.MarkFlagRequired("agent")

	keys.AddCommand(initCmd)
	return keys
}
